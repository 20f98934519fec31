package services

import (
	"context"
	"strings"
	"testing"

	"evolveedu/internal/config"
	"evolveedu/internal/models"
	"evolveedu/internal/observability"
	contextutils "evolveedu/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoadmapService(gen *stubGenerator) *RoadmapService {
	pm, err := NewPromptManager()
	if err != nil {
		panic(err)
	}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	return NewRoadmapService(nil, testServiceConfig(), gen, pm, logger)
}

func TestParseRoadmap(t *testing.T) {
	raw := `Title: Python Mastery Roadmap
Milestone 1: Python Fundamentals
Learn basic syntax and programming constructs
Phase 2: Building Real Production Applications With Modern Frameworks
Practice building small projects
Week 1: Install Python and set up your editor
Week 2: Write your first scripts
I recommend pairing study with daily drills`

	plan := parseRoadmap(raw, "Python")

	assert.Equal(t, "Python Mastery Roadmap", plan.Title)
	assert.Equal(t, "A personalized learning roadmap for Python", plan.Description)

	// Week lines also open milestones; the roadmap keyword set includes them.
	require.Len(t, plan.Milestones, 4)
	assert.Equal(t, "Milestone 1 Python Fundamentals", plan.Milestones[0].Title)
	assert.Equal(t, "Learn basic syntax and programming constructs", plan.Milestones[0].Description)
	assert.Equal(t, "Programming", plan.Milestones[0].SkillFocus)
	assert.Equal(t, 20, plan.Milestones[0].EstimatedHours)
	assert.Equal(t, 1, plan.Milestones[0].Order)

	// Long titles are trimmed to 50 characters.
	assert.Len(t, plan.Milestones[1].Title, 50)
	assert.True(t, strings.HasSuffix(plan.Milestones[1].Title, "..."))

	require.Len(t, plan.WeeklyGoals, 2)
	assert.Equal(t, models.WeeklyGoal{Week: 1, Goal: "Install Python and set up your editor"}, plan.WeeklyGoals[0])
	assert.Equal(t, models.WeeklyGoal{Week: 2, Goal: "Write your first scripts"}, plan.WeeklyGoals[1])

	require.Len(t, plan.Recommendations, 1)
	assert.Equal(t, "I recommend pairing study with daily drills", plan.Recommendations[0])
}

func TestParseRoadmap_DefaultsWhenNothingExtractable(t *testing.T) {
	plan := parseRoadmap("no structure at all", "Go")

	assert.Equal(t, "Learning Path: Go", plan.Title)
	assert.Empty(t, plan.Milestones)
	assert.Empty(t, plan.WeeklyGoals)
	assert.Empty(t, plan.Recommendations)
}

func TestExtractSkillFocus(t *testing.T) {
	assert.Equal(t, "Data", extractSkillFocus("Master data pipelines end to end"))
	assert.Equal(t, "Practice", extractSkillFocus("Practice yoga daily"))
	assert.Equal(t, "General Skill", extractSkillFocus("in a of it"))
}

func TestFallbackRoadmap(t *testing.T) {
	// 6 months at 5 hours per week is a 120 hour budget, split 0.3/0.4/0.3.
	plan := fallbackRoadmap("Data Engineering", 6, 5)

	assert.Equal(t, "Learning Path: Data Engineering", plan.Title)
	assert.Equal(t, "A structured learning path to achieve Data Engineering", plan.Description)
	require.Len(t, plan.Milestones, 3)
	assert.Equal(t, "Foundation Skills", plan.Milestones[0].Title)
	assert.Equal(t, 36, plan.Milestones[0].EstimatedHours)
	assert.Equal(t, "Intermediate Development", plan.Milestones[1].Title)
	assert.Equal(t, 48, plan.Milestones[1].EstimatedHours)
	assert.Equal(t, "Advanced Practice", plan.Milestones[2].Title)
	assert.Equal(t, 36, plan.Milestones[2].EstimatedHours)

	assert.Equal(t, plan, fallbackRoadmap("Data Engineering", 6, 5))
}

func TestOverallProgress(t *testing.T) {
	milestones := []models.Milestone{
		{Status: models.MilestoneCompleted},
		{Status: models.MilestoneCompleted},
		{Status: models.MilestoneInProgress, ProgressPercent: 50},
		{Status: models.MilestoneNotStarted, ProgressPercent: 90},
	}
	// (100 + 100 + 50 + 0) / 4 truncates to 62; untouched milestones weigh 0
	// regardless of any stored percent.
	assert.Equal(t, 62, overallProgress(milestones))

	assert.Equal(t, 0, overallProgress(nil))
	assert.Equal(t, 100, overallProgress([]models.Milestone{{Status: models.MilestoneCompleted}}))
}

func TestFormatSkillsForAnalysis(t *testing.T) {
	got := formatSkillsForAnalysis([]models.SkillAssessment{
		{Name: "Python", Level: "advanced"},
		{Name: "SQL"},
	})
	assert.Equal(t, "- Python: Current: advanced, Target: intermediate\n- SQL: Current: beginner, Target: intermediate", got)

	assert.Equal(t, "- No skills assessed yet", formatSkillsForAnalysis(nil))
}

func TestParseGapAnalysis(t *testing.T) {
	raw := `Readiness score: 45%
Critical gaps:
- Python needs significant work
Strengths: strong motivation and good analytical habits
Next steps: enroll in a structured beginner course`

	analysis := parseGapAnalysis(raw, []models.SkillAssessment{
		{Name: "Python", Level: "beginner"},
		{Name: "SQL", Level: "intermediate"},
	})

	assert.Equal(t, 45, analysis.ReadinessScore)
	assert.Equal(t, []string{"Python"}, analysis.Gaps)
	require.Len(t, analysis.Strengths, 1)
	assert.Contains(t, analysis.Strengths[0], "strong motivation")
	require.Len(t, analysis.NextSteps, 1)
	assert.Contains(t, analysis.NextSteps[0], "enroll")
}

func TestParseGapAnalysis_EmptyBucketsGetDefaults(t *testing.T) {
	analysis := parseGapAnalysis("nothing useful in this reply", nil)

	assert.Equal(t, 60, analysis.ReadinessScore, "default score when no score line")
	assert.Equal(t, []string{"Technical Skills"}, analysis.Gaps)
	assert.Equal(t, []string{"Motivation to learn", "Clear career goal"}, analysis.Strengths)
	assert.Equal(t, []string{"Start with foundational courses"}, analysis.NextSteps)
}

func TestAnalyzeSkillGap_SentinelFallsBack(t *testing.T) {
	s := newTestRoadmapService(&stubGenerator{err: contextutils.ErrInferenceUnavailable})

	analysis, err := s.AnalyzeSkillGap(context.Background(), &models.GapAnalysisRequest{
		Subject: "backend engineer",
		Skills:  []models.SkillAssessment{{Name: "Go", Level: "beginner"}},
	})
	require.NoError(t, err)
	assert.Equal(t, fallbackGapAnalysis(), *analysis)
}

func TestParseProgressInsights(t *testing.T) {
	raw := `Insight: you retain concepts well after practice
You should review earlier milestones weekly
Focus: spaced repetition drills
This long motivational line needs to be over fifty characters in total length.`

	insights := parseProgressInsights(raw, 55)

	assert.Equal(t, "good", insights.Assessment)
	assert.Equal(t, []string{"Insight: you retain concepts well after practice"}, insights.KeyInsights)
	assert.Equal(t, []string{"You should review earlier milestones weekly"}, insights.Recommendations)
	assert.Equal(t, []string{"spaced repetition drills"}, insights.NextFocusAreas)
	assert.Equal(t, "This long motivational line needs to be over fifty characters in total length.", insights.Motivation)
}

func TestParseProgressInsights_Defaults(t *testing.T) {
	insights := parseProgressInsights("short", 10)

	assert.Equal(t, "needs_improvement", insights.Assessment)
	assert.Equal(t, []string{"Making progress on learning journey"}, insights.KeyInsights)
	assert.Equal(t, []string{"Continue consistent study schedule"}, insights.Recommendations)
	assert.Equal(t, "Keep up the great work on your learning journey!", insights.Motivation)
}

func TestAssessmentBand(t *testing.T) {
	assert.Equal(t, "excellent", assessmentBand(80))
	assert.Equal(t, "good", assessmentBand(50))
	assert.Equal(t, "needs_improvement", assessmentBand(49))
}

func TestFallbackInsights_Bands(t *testing.T) {
	assert.Equal(t, "You're almost there! Your dedication is paying off.", fallbackInsights(85).Motivation)
	assert.Equal(t, "You're making good progress. Stay consistent!", fallbackInsights(60).Motivation)
	assert.Equal(t, "Every expert was once a beginner. Keep going!", fallbackInsights(20).Motivation)
}

func TestParseResourceRecommendations(t *testing.T) {
	raw := `Python Crash Course: a book for beginners
This one is free and widely praised by the community online
Advanced tutorial on decorators and metaclasses
This is a paid deep dive for experienced developers`

	recs := parseResourceRecommendations(raw, []string{"python"}, models.DifficultyIntermediate)

	require.Len(t, recs.Resources, 2)
	assert.Equal(t, "Python Crash Course", recs.Resources[0].Title)
	assert.Equal(t, "course", recs.Resources[0].Type)
	assert.Equal(t, "free", recs.Resources[0].Cost)
	assert.Equal(t, "This one is free and widely praised by the community online", recs.Resources[0].Description)

	assert.Equal(t, "Advanced tutorial on decorators and metaclasses", recs.Resources[1].Title)
	assert.Equal(t, "tutorial", recs.Resources[1].Type)
	assert.Equal(t, "paid", recs.Resources[1].Cost)

	assert.Equal(t, "Start with fundamentals of python, then progress to practical projects.", recs.LearningPath)
	assert.Len(t, recs.Tips, 4)
}

func TestResourceType(t *testing.T) {
	assert.Equal(t, "video", resourceType("Watch this video walkthrough"))
	assert.Equal(t, "article", resourceType("An in-depth blog post"))
	assert.Equal(t, "book", resourceType("The definitive book on the topic"))
	assert.Equal(t, "project", resourceType("Build a capstone project"))
	assert.Equal(t, "course", resourceType("Something without a keyword"))
}

func TestFallbackResources(t *testing.T) {
	recs := fallbackResources([]string{"Go"}, models.DifficultyBeginner)

	require.Len(t, recs.Resources, 2)
	assert.Equal(t, "Getting Started with Go", recs.Resources[0].Title)
	assert.Equal(t, "tutorial", recs.Resources[0].Type)
	assert.Equal(t, "free", recs.Resources[0].Cost)
	assert.Equal(t, models.DifficultyBeginner, recs.Resources[0].Difficulty)
	assert.Equal(t, "Advanced Go Course", recs.Resources[1].Title)
	assert.Equal(t, models.DifficultyAdvanced, recs.Resources[1].Difficulty)
	assert.Equal(t, "paid", recs.Resources[1].Cost)
	assert.Equal(t, "Start with fundamentals, then move to practical projects in Go.", recs.LearningPath)
	assert.Equal(t, []string{"Practice regularly", "Join online communities", "Work on real projects", "Seek feedback"}, recs.Tips)
}

func TestRecommendResources_SentinelFallsBack(t *testing.T) {
	s := newTestRoadmapService(&stubGenerator{err: contextutils.ErrInferenceUnavailable})

	recs, err := s.RecommendResources(context.Background(), &models.ResourceRequest{Topics: []string{"Rust"}})
	require.NoError(t, err)
	assert.Equal(t, "Getting Started with Rust", recs.Resources[0].Title)
	assert.Equal(t, models.DifficultyIntermediate, recs.Resources[0].Difficulty, "difficulty defaults when omitted")
}

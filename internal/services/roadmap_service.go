package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"evolveedu/internal/config"
	"evolveedu/internal/inference"
	"evolveedu/internal/models"
	"evolveedu/internal/observability"
	"evolveedu/internal/textparse"
	contextutils "evolveedu/internal/utils"
)

var (
	milestoneKeywords = []string{"milestone", "phase", "step", "stage", "week", "month"}
	skillKeywords     = []string{"learn", "master", "understand", "practice", "develop"}
	skillIndicators   = []string{
		"programming", "development", "analysis", "design", "management",
		"communication", "leadership", "technical", "software", "data",
	}
)

// RoadmapServiceInterface defines the interface for roadmap operations
type RoadmapServiceInterface interface {
	GenerateRoadmap(ctx context.Context, learnerID string, req *models.CreateRoadmapRequest) (*models.Roadmap, error)
	GetRoadmap(ctx context.Context, learnerID string, roadmapID int) (*models.Roadmap, error)
	ListRoadmaps(ctx context.Context, learnerID string) ([]models.Roadmap, error)
	AnalyzeSkillGap(ctx context.Context, req *models.GapAnalysisRequest) (*models.GapAnalysis, error)
	UpdateMilestone(ctx context.Context, learnerID string, roadmapID, milestoneID int, req *models.UpdateMilestoneRequest) (*models.Roadmap, error)
	ProgressInsights(ctx context.Context, learnerID string, roadmapID int) (*models.ProgressInsights, error)
	RecommendResources(ctx context.Context, req *models.ResourceRequest) (*models.ResourceRecommendations, error)
}

// RoadmapService builds and tracks personalized learning roadmaps
type RoadmapService struct {
	db        *sql.DB
	config    *config.Config
	generator inference.Generator
	prompts   *PromptManager
	logger    *observability.Logger
}

// NewRoadmapService creates a new RoadmapService instance
func NewRoadmapService(db *sql.DB, cfg *config.Config, generator inference.Generator, prompts *PromptManager, logger *observability.Logger) *RoadmapService {
	return &RoadmapService{
		db:        db,
		config:    cfg,
		generator: generator,
		prompts:   prompts,
		logger:    logger,
	}
}

// GenerateRoadmap produces a personalized roadmap for the requested subject
// and persists it together with its milestones. Milestone target dates are
// spread evenly across the requested timeline so reminders have something to
// fire against.
func (s *RoadmapService) GenerateRoadmap(ctx context.Context, learnerID string, req *models.CreateRoadmapRequest) (result0 *models.Roadmap, err error) {
	ctx, span := observability.TraceRoadmapFunction(ctx, "GenerateRoadmap",
		observability.AttributeLearnerID(learnerID),
		observability.AttributeSubject(req.Subject),
	)
	defer observability.FinishSpan(span, &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	skillLevel := req.SkillLevel
	if skillLevel == "" {
		skillLevel = models.DifficultyBeginner
	}

	prompt, err := s.prompts.Render(RoadmapGeneratePromptTemplate, PromptData{
		Subject:      req.Subject,
		SkillLevel:   skillLevel,
		Months:       req.Months,
		HoursPerWeek: req.HoursPerWeek,
	})
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to render roadmap prompt")
	}

	var plan models.LearningRoadmap
	raw, genErr := s.generator.Generate(ctx, s.config.Domains.Roadmap.Model, prompt,
		inference.DefaultParams(s.config.Domains.Roadmap.MaxNewTokens))
	if genErr != nil {
		s.logger.Warn(ctx, "Roadmap generation unavailable, using fallback", map[string]interface{}{
			"learner_id": learnerID,
			"subject":    req.Subject,
			"error":      genErr.Error(),
		})
		plan = fallbackRoadmap(req.Subject, req.Months, req.HoursPerWeek)
	} else {
		plan = parseRoadmap(raw, req.Subject)
		if len(plan.Milestones) == 0 {
			plan.Milestones = fallbackRoadmap(req.Subject, req.Months, req.HoursPerWeek).Milestones
		}
	}

	roadmap := &models.Roadmap{
		LearnerID:       learnerID,
		Subject:         req.Subject,
		SkillLevel:      skillLevel,
		Months:          req.Months,
		HoursPerWeek:    req.HoursPerWeek,
		Title:           plan.Title,
		Description:     plan.Description,
		WeeklyGoals:     plan.WeeklyGoals,
		Recommendations: plan.Recommendations,
		Status:          models.RoadmapStatusActive,
	}
	if req.ReminderEmail != "" {
		roadmap.ReminderEmail = sql.NullString{String: req.ReminderEmail, Valid: true}
	}

	if err := s.createRoadmap(ctx, roadmap, plan.Milestones); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Roadmap generated", map[string]interface{}{
		"roadmap_id": roadmap.ID,
		"learner_id": learnerID,
		"milestones": len(roadmap.Milestones),
		"fallback":   genErr != nil,
	})

	return roadmap, nil
}

// GetRoadmap fetches one roadmap with its milestones
func (s *RoadmapService) GetRoadmap(ctx context.Context, learnerID string, roadmapID int) (result0 *models.Roadmap, err error) {
	ctx, span := observability.TraceRoadmapFunction(ctx, "GetRoadmap",
		observability.AttributeRoadmapID(roadmapID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT id, learner_id, subject, skill_level, months, hours_per_week, title, description,
		       weekly_goals, recommendations, status, overall_progress_percent, reminder_email,
		       created_at, updated_at
		FROM roadmaps
		WHERE id = $1 AND learner_id = $2`

	var roadmap models.Roadmap
	var weeklyGoals, recommendations []byte
	var status string
	err = s.db.QueryRowContext(ctx, query, roadmapID, learnerID).Scan(
		&roadmap.ID, &roadmap.LearnerID, &roadmap.Subject, &roadmap.SkillLevel,
		&roadmap.Months, &roadmap.HoursPerWeek, &roadmap.Title, &roadmap.Description,
		&weeklyGoals, &recommendations, &status, &roadmap.OverallProgressPercent,
		&roadmap.ReminderEmail, &roadmap.CreatedAt, &roadmap.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrRecordNotFound
		}
		return nil, contextutils.WrapErrorf(err, "failed to get roadmap %d", roadmapID)
	}
	roadmap.Status = models.RoadmapStatus(status)
	if err := json.Unmarshal(weeklyGoals, &roadmap.WeeklyGoals); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to decode weekly goals")
	}
	if err := json.Unmarshal(recommendations, &roadmap.Recommendations); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to decode recommendations")
	}

	roadmap.Milestones, err = s.getMilestones(ctx, roadmapID)
	if err != nil {
		return nil, err
	}
	return &roadmap, nil
}

// ListRoadmaps returns the learner's roadmaps without milestones, newest first
func (s *RoadmapService) ListRoadmaps(ctx context.Context, learnerID string) (result0 []models.Roadmap, err error) {
	ctx, span := observability.TraceRoadmapFunction(ctx, "ListRoadmaps",
		observability.AttributeLearnerID(learnerID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT id, learner_id, subject, skill_level, months, hours_per_week, title, description,
		       weekly_goals, recommendations, status, overall_progress_percent, reminder_email,
		       created_at, updated_at
		FROM roadmaps
		WHERE learner_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, learnerID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to list roadmaps")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var roadmaps []models.Roadmap
	for rows.Next() {
		var roadmap models.Roadmap
		var weeklyGoals, recommendations []byte
		var status string
		if err := rows.Scan(&roadmap.ID, &roadmap.LearnerID, &roadmap.Subject, &roadmap.SkillLevel,
			&roadmap.Months, &roadmap.HoursPerWeek, &roadmap.Title, &roadmap.Description,
			&weeklyGoals, &recommendations, &status, &roadmap.OverallProgressPercent,
			&roadmap.ReminderEmail, &roadmap.CreatedAt, &roadmap.UpdatedAt); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to scan roadmap")
		}
		roadmap.Status = models.RoadmapStatus(status)
		if err := json.Unmarshal(weeklyGoals, &roadmap.WeeklyGoals); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to decode weekly goals")
		}
		if err := json.Unmarshal(recommendations, &roadmap.Recommendations); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to decode recommendations")
		}
		roadmaps = append(roadmaps, roadmap)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to iterate roadmaps")
	}
	return roadmaps, nil
}

// AnalyzeSkillGap scores the learner's readiness for a subject from their
// self-assessed skills. No rows are persisted; the analysis is advisory.
func (s *RoadmapService) AnalyzeSkillGap(ctx context.Context, req *models.GapAnalysisRequest) (result0 *models.GapAnalysis, err error) {
	ctx, span := observability.TraceRoadmapFunction(ctx, "AnalyzeSkillGap",
		observability.AttributeSubject(req.Subject),
	)
	defer observability.FinishSpan(span, &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	prompt, err := s.prompts.Render(RoadmapGapPromptTemplate, PromptData{
		Subject:    req.Subject,
		SourceText: formatSkillsForAnalysis(req.Skills),
	})
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to render gap analysis prompt")
	}

	raw, genErr := s.generator.Generate(ctx, s.config.Domains.Roadmap.Model, prompt,
		inference.DefaultParams(s.config.Domains.Roadmap.MaxNewTokens))
	if genErr != nil {
		analysis := fallbackGapAnalysis()
		return &analysis, nil
	}

	analysis := parseGapAnalysis(raw, req.Skills)
	return &analysis, nil
}

// UpdateMilestone saves one milestone's progress and recomputes the roadmap's
// overall progress from all of its milestones.
func (s *RoadmapService) UpdateMilestone(ctx context.Context, learnerID string, roadmapID, milestoneID int, req *models.UpdateMilestoneRequest) (result0 *models.Roadmap, err error) {
	ctx, span := observability.TraceRoadmapFunction(ctx, "UpdateMilestone",
		observability.AttributeRoadmapID(roadmapID),
	)
	defer observability.FinishSpan(span, &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	progress := req.ProgressPercent
	if req.Status == models.MilestoneCompleted {
		progress = 100
	}

	query := `
		UPDATE milestones SET status = $1, progress_percent = $2
		WHERE id = $3 AND roadmap_id = $4
		  AND EXISTS (SELECT 1 FROM roadmaps WHERE id = $4 AND learner_id = $5)`
	result, err := s.db.ExecContext(ctx, query, string(req.Status), progress, milestoneID, roadmapID, learnerID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to update milestone %d", milestoneID)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to check milestone update")
	}
	if affected == 0 {
		return nil, contextutils.ErrRecordNotFound
	}

	if err := s.recomputeProgress(ctx, roadmapID); err != nil {
		return nil, err
	}
	return s.GetRoadmap(ctx, learnerID, roadmapID)
}

// recomputeProgress recalculates overall roadmap progress: completed
// milestones weigh 100, in-progress ones weigh their own percent, untouched
// ones weigh 0. The overall value is the integer truncation of the mean, and
// the roadmap flips to completed at exactly 100.
func (s *RoadmapService) recomputeProgress(ctx context.Context, roadmapID int) error {
	milestones, err := s.getMilestones(ctx, roadmapID)
	if err != nil {
		return err
	}
	overall := overallProgress(milestones)

	status := models.RoadmapStatusActive
	if overall == 100 {
		status = models.RoadmapStatusCompleted
	}

	query := "UPDATE roadmaps SET overall_progress_percent = $1, status = $2, updated_at = NOW() WHERE id = $3"
	if _, err := s.db.ExecContext(ctx, query, overall, string(status), roadmapID); err != nil {
		return contextutils.WrapErrorf(err, "failed to update roadmap progress")
	}
	return nil
}

// overallProgress is the integer truncation of the mean milestone weight.
func overallProgress(milestones []models.Milestone) int {
	if len(milestones) == 0 {
		return 0
	}
	total := 0
	for _, m := range milestones {
		switch m.Status {
		case models.MilestoneCompleted:
			total += 100
		case models.MilestoneInProgress:
			total += m.ProgressPercent
		}
	}
	return total / len(milestones)
}

// ProgressInsights generates an assessment of the learner's progress on one
// roadmap. The assessment band always comes from the stored progress value;
// only the prose buckets come from the model.
func (s *RoadmapService) ProgressInsights(ctx context.Context, learnerID string, roadmapID int) (result0 *models.ProgressInsights, err error) {
	ctx, span := observability.TraceRoadmapFunction(ctx, "ProgressInsights",
		observability.AttributeRoadmapID(roadmapID),
	)
	defer observability.FinishSpan(span, &err)

	roadmap, err := s.GetRoadmap(ctx, learnerID, roadmapID)
	if err != nil {
		return nil, err
	}

	completed := 0
	for _, m := range roadmap.Milestones {
		if m.Status == models.MilestoneCompleted {
			completed++
		}
	}

	prompt, err := s.prompts.Render(RoadmapProgressPromptTemplate, PromptData{
		Title:           roadmap.Title,
		ProgressPercent: roadmap.OverallProgressPercent,
		TotalCount:      len(roadmap.Milestones),
		CompletedCount:  completed,
	})
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to render progress prompt")
	}

	raw, genErr := s.generator.Generate(ctx, s.config.Domains.Roadmap.Model, prompt,
		inference.DefaultParams(s.config.Domains.Roadmap.MaxNewTokens))
	if genErr != nil {
		insights := fallbackInsights(roadmap.OverallProgressPercent)
		return &insights, nil
	}

	insights := parseProgressInsights(raw, roadmap.OverallProgressPercent)
	return &insights, nil
}

// RecommendResources suggests study resources for a topic list. Advisory
// only; nothing is persisted.
func (s *RoadmapService) RecommendResources(ctx context.Context, req *models.ResourceRequest) (result0 *models.ResourceRecommendations, err error) {
	ctx, span := observability.TraceRoadmapFunction(ctx, "RecommendResources")
	defer observability.FinishSpan(span, &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyIntermediate
	}

	prompt, err := s.prompts.Render(RoadmapResourcesPromptTemplate, PromptData{
		Topics:     strings.Join(req.Topics, ", "),
		Difficulty: difficulty,
	})
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to render resources prompt")
	}

	raw, genErr := s.generator.Generate(ctx, s.config.Domains.Roadmap.Model, prompt,
		inference.DefaultParams(s.config.Domains.Roadmap.MaxNewTokens))
	if genErr != nil {
		recs := fallbackResources(req.Topics, difficulty)
		return &recs, nil
	}

	recs := parseResourceRecommendations(raw, req.Topics, difficulty)
	return &recs, nil
}

// parseRoadmap structures a raw model reply into a roadmap plan.
func parseRoadmap(raw, subject string) models.LearningRoadmap {
	plan := models.LearningRoadmap{
		Title:       fmt.Sprintf("Learning Path: %s", subject),
		Description: fmt.Sprintf("A personalized learning roadmap for %s", subject),
	}

	lines := textparse.Lines(raw)

	for _, line := range lines {
		if len(line) > 10 && textparse.ContainsAny(line, []string{"roadmap", "title"}) {
			title := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(line, "Title:", ""), "Roadmap:", ""))
			if title != "" {
				plan.Title = title
			}
			break
		}
	}

	plan.Milestones = extractMilestones(lines)
	plan.WeeklyGoals = extractWeeklyGoals(lines)
	plan.Recommendations = extractRecommendations(lines)
	return plan
}

// extractMilestones runs the milestone state machine: a keyword line opens a
// new milestone, skill lines fill the current one's description and focus.
func extractMilestones(lines []string) []models.PlannedMilestone {
	var milestones []models.PlannedMilestone
	var current *models.PlannedMilestone

	for _, line := range lines {
		if line == "" {
			continue
		}

		if textparse.ContainsAny(line, milestoneKeywords) {
			if current != nil {
				milestones = append(milestones, *current)
			}
			title := strings.TrimSpace(strings.ReplaceAll(line, ":", ""))
			if len(title) > 50 {
				title = title[:47] + "..."
			}
			current = &models.PlannedMilestone{
				Title:          title,
				EstimatedHours: 20,
				Order:          len(milestones) + 1,
			}
			continue
		}

		if current != nil && textparse.ContainsAny(line, skillKeywords) {
			if current.Description == "" {
				current.Description = line
			}
			if current.SkillFocus == "" {
				current.SkillFocus = extractSkillFocus(line)
			}
		}
	}
	if current != nil {
		milestones = append(milestones, *current)
	}
	return milestones
}

// extractSkillFocus names the skill a milestone line is about: a known
// indicator word when present, else the first substantial word.
func extractSkillFocus(line string) string {
	words := strings.Fields(line)
	for _, word := range words {
		for _, indicator := range skillIndicators {
			if strings.EqualFold(word, indicator) {
				return capitalize(word)
			}
		}
	}
	for _, word := range words {
		if len(word) > 3 && isAlpha(word) {
			return capitalize(word)
		}
	}
	return "General Skill"
}

// extractWeeklyGoals collects "week N" lines, keeping the value after ":"
// when present, capped at the first 4 weeks.
func extractWeeklyGoals(lines []string) []models.WeeklyGoal {
	var goals []models.WeeklyGoal
	for _, line := range lines {
		if !textparse.ContainsAny(line, []string{"week"}) || !strings.ContainsFunc(line, unicode.IsDigit) {
			continue
		}
		goal := line
		if idx := strings.Index(goal, ":"); idx >= 0 {
			goal = strings.TrimSpace(goal[idx+1:])
		}
		goals = append(goals, models.WeeklyGoal{Week: len(goals) + 1, Goal: goal})
		if len(goals) >= 4 {
			break
		}
	}
	return goals
}

// extractRecommendations collects advisory lines, capped at 5.
func extractRecommendations(lines []string) []string {
	var recs []string
	for _, line := range lines {
		if !textparse.ContainsAny(line, []string{"recommend", "suggest", "tip", "advice", "consider"}) {
			continue
		}
		if len(line) > 10 {
			recs = append(recs, line)
		}
		if len(recs) >= 5 {
			break
		}
	}
	return recs
}

// fallbackRoadmap is the deterministic roadmap produced when the model is
// unavailable: three milestones splitting the total hour budget 0.3/0.4/0.3,
// where the budget is months * 4 weeks * hours per week.
func fallbackRoadmap(subject string, months, hoursPerWeek int) models.LearningRoadmap {
	totalHours := months * 4 * hoursPerWeek
	return models.LearningRoadmap{
		Title:       fmt.Sprintf("Learning Path: %s", subject),
		Description: fmt.Sprintf("A structured learning path to achieve %s", subject),
		Milestones: []models.PlannedMilestone{
			{
				Title:          "Foundation Skills",
				Description:    "Build fundamental knowledge and skills",
				SkillFocus:     fmt.Sprintf("%s - Foundation Skills", subject),
				EstimatedHours: int(float64(totalHours) * 0.3),
				Order:          1,
			},
			{
				Title:          "Intermediate Development",
				Description:    "Develop intermediate level competencies",
				SkillFocus:     fmt.Sprintf("%s - Intermediate Development", subject),
				EstimatedHours: int(float64(totalHours) * 0.4),
				Order:          2,
			},
			{
				Title:          "Advanced Practice",
				Description:    "Advanced skills and real-world application",
				SkillFocus:     fmt.Sprintf("%s - Advanced Practice", subject),
				EstimatedHours: int(float64(totalHours) * 0.3),
				Order:          3,
			},
		},
	}
}

// formatSkillsForAnalysis renders the self-assessment for the prompt.
func formatSkillsForAnalysis(skills []models.SkillAssessment) string {
	if len(skills) == 0 {
		return "- No skills assessed yet"
	}
	lines := make([]string, 0, len(skills))
	for _, skill := range skills {
		level := skill.Level
		if level == "" {
			level = "beginner"
		}
		lines = append(lines, fmt.Sprintf("- %s: Current: %s, Target: intermediate", skill.Name, level))
	}
	return strings.Join(lines, "\n")
}

// parseGapAnalysis extracts the readiness score and the gap, strength, and
// next-step buckets from a raw reply. Empty buckets get canned defaults.
func parseGapAnalysis(raw string, skills []models.SkillAssessment) models.GapAnalysis {
	analysis := models.GapAnalysis{
		ReadinessScore: textparse.Score(raw, 60),
	}

	lines := textparse.Lines(raw)

	// Gaps: skill names mentioned between a gap trigger and the next section.
	inGapSection := false
	for _, line := range lines {
		if textparse.ContainsAny(line, []string{"critical", "gaps"}) {
			inGapSection = true
			continue
		}
		if !inGapSection || line == "" {
			continue
		}
		if textparse.ContainsAny(line, []string{"strength", "next", "step", "time"}) {
			inGapSection = false
			continue
		}
		for _, skill := range skills {
			if textparse.ContainsAny(line, []string{skill.Name}) {
				analysis.Gaps = append(analysis.Gaps, skill.Name)
				break
			}
		}
	}

	for _, line := range lines {
		if textparse.ContainsAny(line, []string{"strength", "good", "strong", "proficient"}) {
			clean := strings.TrimSpace(strings.Trim(line, "-* \t"))
			if len(clean) > 10 {
				analysis.Strengths = append(analysis.Strengths, clean)
			}
		}
	}

	for _, line := range lines {
		if textparse.ContainsAny(line, []string{"next", "recommend", "should", "action"}) {
			clean := strings.TrimSpace(strings.Trim(line, "-* \t"))
			if len(clean) > 10 {
				analysis.NextSteps = append(analysis.NextSteps, clean)
			}
		}
	}

	fallback := fallbackGapAnalysis()
	if len(analysis.Gaps) == 0 {
		analysis.Gaps = fallback.Gaps
	}
	if len(analysis.Strengths) == 0 {
		analysis.Strengths = fallback.Strengths
	}
	if len(analysis.NextSteps) == 0 {
		analysis.NextSteps = fallback.NextSteps
	}
	return analysis
}

// fallbackGapAnalysis is the deterministic analysis used when the model is
// unavailable.
func fallbackGapAnalysis() models.GapAnalysis {
	return models.GapAnalysis{
		ReadinessScore: 60,
		Gaps:           []string{"Technical Skills"},
		Strengths:      []string{"Motivation to learn", "Clear career goal"},
		NextSteps:      []string{"Start with foundational courses"},
	}
}

// parseProgressInsights buckets reply lines into insights, recommendations,
// focus areas, and a motivation message.
func parseProgressInsights(raw string, progressPercent int) models.ProgressInsights {
	insights := models.ProgressInsights{
		Assessment: assessmentBand(progressPercent),
	}

	for _, line := range textparse.Lines(raw) {
		if line == "" {
			continue
		}
		switch {
		case textparse.ContainsAny(line, []string{"insight"}):
			insights.KeyInsights = append(insights.KeyInsights, line)
		case textparse.ContainsAny(line, []string{"recommend", "should"}):
			insights.Recommendations = append(insights.Recommendations, line)
		case textparse.ContainsAny(line, []string{"focus"}):
			insights.NextFocusAreas = append(insights.NextFocusAreas, strings.TrimSpace(strings.ReplaceAll(line, "Focus:", "")))
		case len(line) > 50 && insights.Motivation == "":
			insights.Motivation = line
		}
	}

	if len(insights.KeyInsights) == 0 {
		insights.KeyInsights = []string{"Making progress on learning journey"}
	}
	if len(insights.Recommendations) == 0 {
		insights.Recommendations = []string{"Continue consistent study schedule"}
	}
	if insights.Motivation == "" {
		insights.Motivation = "Keep up the great work on your learning journey!"
	}
	return insights
}

// assessmentBand maps progress to an assessment label.
func assessmentBand(progressPercent int) string {
	switch {
	case progressPercent >= 80:
		return "excellent"
	case progressPercent >= 50:
		return "good"
	default:
		return "needs_improvement"
	}
}

// fallbackInsights is the deterministic per-band insight set.
func fallbackInsights(progressPercent int) models.ProgressInsights {
	switch {
	case progressPercent >= 80:
		return models.ProgressInsights{
			Assessment:      "excellent",
			KeyInsights:     []string{"Great progress on your learning journey!"},
			Recommendations: []string{"Keep up the excellent work", "Focus on completing remaining milestones"},
			NextFocusAreas:  []string{"Final project completion", "Skill consolidation"},
			Motivation:      "You're almost there! Your dedication is paying off.",
		}
	case progressPercent >= 50:
		return models.ProgressInsights{
			Assessment:      "good",
			KeyInsights:     []string{"Steady progress on your roadmap"},
			Recommendations: []string{"Maintain consistent study schedule", "Focus on practical application"},
			NextFocusAreas:  []string{"Hands-on practice", "Skill building"},
			Motivation:      "You're making good progress. Stay consistent!",
		}
	default:
		return models.ProgressInsights{
			Assessment:      "needs_improvement",
			KeyInsights:     []string{"More consistent effort needed"},
			Recommendations: []string{"Set smaller daily goals", "Find accountability partner"},
			NextFocusAreas:  []string{"Foundation building", "Consistent practice"},
			Motivation:      "Every expert was once a beginner. Keep going!",
		}
	}
}

// parseResourceRecommendations collects up to 8 resource titles with type,
// cost, and description details from the lines that follow each title.
func parseResourceRecommendations(raw string, topics []string, difficulty string) models.ResourceRecommendations {
	var resources []models.LearningResource
	var current *models.LearningResource

	for _, line := range textparse.Lines(raw) {
		if line == "" {
			continue
		}

		isTitle := len(line) > 15 &&
			(strings.Contains(line, ":") || textparse.ContainsAny(line, []string{"course", "tutorial"})) &&
			len(resources) < 8

		if isTitle {
			if current != nil {
				resources = append(resources, *current)
			}
			title := line
			if idx := strings.Index(line, ":"); idx >= 0 {
				title = strings.TrimSpace(line[:idx])
			}
			current = &models.LearningResource{
				Title:       title,
				Description: fmt.Sprintf("Learning resource for %s", strings.Join(topics, ", ")),
				Type:        resourceType(line),
				Difficulty:  difficulty,
				Cost:        "free",
			}
			continue
		}

		if current != nil && len(line) > 20 {
			if textparse.ContainsAny(line, []string{"paid"}) {
				current.Cost = "paid"
			} else if textparse.ContainsAny(line, []string{"free"}) {
				current.Cost = "free"
			}
			if len(current.Description) < 50 {
				current.Description = line
			}
		}
	}
	if current != nil && len(resources) < 8 {
		resources = append(resources, *current)
	}

	if len(resources) == 0 {
		return fallbackResources(topics, difficulty)
	}

	first := "your chosen area"
	if len(topics) > 0 {
		first = topics[0]
	}
	return models.ResourceRecommendations{
		Resources:    resources,
		LearningPath: fmt.Sprintf("Start with fundamentals of %s, then progress to practical projects.", first),
		Tips: []string{
			"Practice regularly", "Join online communities",
			"Work on real projects", "Seek feedback from peers",
		},
	}
}

// resourceType guesses the resource type from keywords; course is the default.
func resourceType(line string) string {
	switch {
	case textparse.ContainsAny(line, []string{"course"}):
		return "course"
	case textparse.ContainsAny(line, []string{"video"}):
		return "video"
	case textparse.ContainsAny(line, []string{"article", "blog"}):
		return "article"
	case textparse.ContainsAny(line, []string{"book"}):
		return "book"
	case textparse.ContainsAny(line, []string{"tutorial"}):
		return "tutorial"
	case textparse.ContainsAny(line, []string{"project"}):
		return "project"
	default:
		return "course"
	}
}

// fallbackResources is the deterministic two-resource recommendation set.
func fallbackResources(topics []string, difficulty string) models.ResourceRecommendations {
	first := "Your Skills"
	pathArea := "your chosen area"
	if len(topics) > 0 {
		first = topics[0]
		pathArea = topics[0]
	}
	return models.ResourceRecommendations{
		Resources: []models.LearningResource{
			{
				Title:       fmt.Sprintf("Getting Started with %s", first),
				Description: "A comprehensive guide to get you started",
				Type:        "tutorial",
				Difficulty:  difficulty,
				Cost:        "free",
			},
			{
				Title:       fmt.Sprintf("Advanced %s Course", first),
				Description: "Deep dive into advanced concepts",
				Type:        "course",
				Difficulty:  models.DifficultyAdvanced,
				Cost:        "paid",
			},
		},
		LearningPath: fmt.Sprintf("Start with fundamentals, then move to practical projects in %s.", pathArea),
		Tips:         []string{"Practice regularly", "Join online communities", "Work on real projects", "Seek feedback"},
	}
}

func capitalize(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
}

func isAlpha(word string) bool {
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return word != ""
}

// createRoadmap inserts a roadmap and its milestones in one transaction.
// Milestone target dates are spread evenly across the roadmap's timeline
// (months * 30 days).
func (s *RoadmapService) createRoadmap(ctx context.Context, roadmap *models.Roadmap, milestones []models.PlannedMilestone) (err error) {
	weeklyGoals, err := json.Marshal(roadmap.WeeklyGoals)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to marshal weekly goals")
	}
	recommendations, err := json.Marshal(roadmap.Recommendations)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to marshal recommendations")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Warn(ctx, "Failed to roll back roadmap transaction", map[string]interface{}{"error": rbErr.Error()})
			}
		}
	}()

	query := `
		INSERT INTO roadmaps (learner_id, subject, skill_level, months, hours_per_week, title,
		                      description, weekly_goals, recommendations, status,
		                      overall_progress_percent, reminder_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowContext(ctx, query,
		roadmap.LearnerID, roadmap.Subject, roadmap.SkillLevel, roadmap.Months, roadmap.HoursPerWeek,
		roadmap.Title, roadmap.Description, weeklyGoals, recommendations, string(roadmap.Status),
		roadmap.ReminderEmail,
	).Scan(&roadmap.ID, &roadmap.CreatedAt, &roadmap.UpdatedAt)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to create roadmap")
	}

	insertMilestone := `
		INSERT INTO milestones (roadmap_id, title, description, skill_focus, estimated_hours,
		                        ord, status, progress_percent, target_date, reminder_sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, FALSE)
		RETURNING id`

	totalDays := roadmap.Months * 30
	for i, planned := range milestones {
		target := time.Now().AddDate(0, 0, totalDays*(i+1)/len(milestones))
		milestone := models.Milestone{
			RoadmapID:      roadmap.ID,
			Title:          planned.Title,
			Description:    planned.Description,
			SkillFocus:     planned.SkillFocus,
			EstimatedHours: planned.EstimatedHours,
			Order:          i + 1,
			Status:         models.MilestoneNotStarted,
			TargetDate:     sql.NullTime{Time: target, Valid: true},
		}
		err = tx.QueryRowContext(ctx, insertMilestone,
			roadmap.ID, planned.Title, planned.Description, planned.SkillFocus,
			planned.EstimatedHours, i+1, string(models.MilestoneNotStarted),
			milestone.TargetDate,
		).Scan(&milestone.ID)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to create milestone")
		}
		roadmap.Milestones = append(roadmap.Milestones, milestone)
	}

	if err = tx.Commit(); err != nil {
		return contextutils.WrapErrorf(err, "failed to commit roadmap")
	}
	return nil
}

// getMilestones loads a roadmap's milestones in order.
func (s *RoadmapService) getMilestones(ctx context.Context, roadmapID int) (result0 []models.Milestone, err error) {
	query := `
		SELECT id, roadmap_id, title, description, skill_focus, estimated_hours, ord,
		       status, progress_percent, target_date, reminder_sent
		FROM milestones
		WHERE roadmap_id = $1
		ORDER BY ord`

	rows, err := s.db.QueryContext(ctx, query, roadmapID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to load milestones")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var milestones []models.Milestone
	for rows.Next() {
		var m models.Milestone
		var status string
		if err := rows.Scan(&m.ID, &m.RoadmapID, &m.Title, &m.Description, &m.SkillFocus,
			&m.EstimatedHours, &m.Order, &status, &m.ProgressPercent, &m.TargetDate, &m.ReminderSent); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to scan milestone")
		}
		m.Status = models.MilestoneStatus(status)
		milestones = append(milestones, m)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to iterate milestones")
	}
	return milestones, nil
}

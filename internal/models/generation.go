package models

// Transient shapes produced by the generation pipeline. Every field is always
// populated: the parser fills what it can extract and each extraction rule
// carries its own default, so a partial parse never leaves a hole.

// StudyNotes is the structured output of note generation
type StudyNotes struct {
	Title                string   `json:"title"`
	Content              string   `json:"content"`
	Summary              string   `json:"summary"`
	KeyPoints            []string `json:"key_points"`
	Questions            []string `json:"questions"`
	Difficulty           string   `json:"difficulty"`
	Tags                 []string `json:"tags"`
	EstimatedReadMinutes int      `json:"estimated_read_minutes"`
}

// GeneratedQuestion is one question produced by quiz generation before persistence
type GeneratedQuestion struct {
	Text           string       `json:"text"`
	Type           QuestionType `json:"type"`
	Options        []string     `json:"options"`
	CorrectAnswers []string     `json:"correct_answers"`
	Explanation    string       `json:"explanation"`
	Hint           string       `json:"hint"`
	Points         int          `json:"points"`
}

// GeneratedQuiz is the structured output of quiz generation
type GeneratedQuiz struct {
	Title     string              `json:"title"`
	Questions []GeneratedQuestion `json:"questions"`
}

// QuizEvaluation is the graded outcome of a quiz attempt
type QuizEvaluation struct {
	ScorePercent    float64          `json:"score_percent"`
	Passed          bool             `json:"passed"`
	CorrectCount    int              `json:"correct_count"`
	TotalQuestions  int              `json:"total_questions"`
	Feedback        string           `json:"feedback"`
	Recommendations []string         `json:"recommendations"`
	PerQuestion     []QuestionResult `json:"per_question"`
}

// PlannedMilestone is one milestone produced by roadmap generation before persistence
type PlannedMilestone struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	SkillFocus     string `json:"skill_focus"`
	EstimatedHours int    `json:"estimated_hours"`
	Order          int    `json:"order"`
}

// LearningRoadmap is the structured output of roadmap generation
type LearningRoadmap struct {
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Milestones      []PlannedMilestone `json:"milestones"`
	WeeklyGoals     []WeeklyGoal       `json:"weekly_goals"`
	Recommendations []string           `json:"recommendations"`
}

// GapAnalysis is the structured output of skill-gap analysis
type GapAnalysis struct {
	ReadinessScore int      `json:"readiness_score"`
	Gaps           []string `json:"gaps"`
	Strengths      []string `json:"strengths"`
	NextSteps      []string `json:"next_steps"`
}

// ProgressInsights is the structured output of roadmap progress analysis
type ProgressInsights struct {
	Assessment      string   `json:"assessment"`
	KeyInsights     []string `json:"key_insights"`
	Recommendations []string `json:"recommendations"`
	NextFocusAreas  []string `json:"next_focus_areas"`
	Motivation      string   `json:"motivation"`
}

// LearningResource is one recommended study resource
type LearningResource struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Difficulty  string `json:"difficulty"`
	Cost        string `json:"cost"`
}

// ResourceRecommendations is the structured output of resource recommendation
type ResourceRecommendations struct {
	Resources    []LearningResource `json:"resources"`
	LearningPath string             `json:"learning_path"`
	Tips         []string           `json:"tips"`
}

// TutorReply is the structured output of one tutor turn
type TutorReply struct {
	Content        string   `json:"content"`
	Intent         string   `json:"intent"`
	Confidence     float64  `json:"confidence"`
	Topics         []string `json:"topics"`
	ResponseTimeMs int      `json:"response_time_ms"`
}

// SolutionStep is one step of a worked problem solution
type SolutionStep struct {
	Step        int    `json:"step"`
	Description string `json:"description"`
}

// ProblemSolution is the structured output of step-by-step problem solving
type ProblemSolution struct {
	Analysis        string         `json:"analysis"`
	Steps           []SolutionStep `json:"steps"`
	FinalAnswer     string         `json:"final_answer"`
	KeyConcepts     []string       `json:"key_concepts"`
	SimilarProblems []string       `json:"similar_problems"`
}

// ConceptExplanation is the structured output of concept explanation
type ConceptExplanation struct {
	Explanation       string   `json:"explanation"`
	Examples          []string `json:"examples"`
	Analogies         []string `json:"analogies"`
	Prerequisites     []string `json:"prerequisites"`
	RelatedConcepts   []string `json:"related_concepts"`
	PracticeQuestions []string `json:"practice_questions"`
}

// StudyDay is one day of a generated study plan
type StudyDay struct {
	Day    int      `json:"day"`
	Topics []string `json:"topics"`
	Tasks  []string `json:"tasks"`
}

// PlanMilestone is a checkpoint within a study plan
type PlanMilestone struct {
	Day       int    `json:"day"`
	Milestone string `json:"milestone"`
}

// StudyPlan is the structured output of study-plan generation
type StudyPlan struct {
	Subject    string          `json:"subject"`
	Days       []StudyDay      `json:"days"`
	Milestones []PlanMilestone `json:"milestones"`
	TotalTasks int             `json:"total_tasks"`
	Tips       []string        `json:"tips"`
}

// LearningInsight is one observation derived from a learner's tutoring history
type LearningInsight struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Actions     []string `json:"actions"`
}

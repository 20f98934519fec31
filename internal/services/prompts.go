// Package services provides the domain services behind the HTTP API: note
// generation, quizzes, learning roadmaps, the AI tutor, and email reminders.
package services

import (
	"embed"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var promptTemplatesFS embed.FS

// Template names as constants
const (
	NotesGeneratePromptTemplate    = "notes_generate.tmpl"
	NotesEnhancePromptTemplate     = "notes_enhance.tmpl"
	QuizGeneratePromptTemplate     = "quiz_generate.tmpl"
	QuizGradePromptTemplate        = "quiz_grade.tmpl"
	QuizFeedbackPromptTemplate     = "quiz_feedback.tmpl"
	RoadmapGeneratePromptTemplate  = "roadmap_generate.tmpl"
	RoadmapGapPromptTemplate       = "roadmap_gap.tmpl"
	RoadmapProgressPromptTemplate  = "roadmap_progress.tmpl"
	RoadmapResourcesPromptTemplate = "roadmap_resources.tmpl"
	TutorChatPromptTemplate        = "tutor_chat.tmpl"
	TutorSolvePromptTemplate       = "tutor_solve.tmpl"
	TutorExplainPromptTemplate     = "tutor_explain.tmpl"
	TutorStudyPlanPromptTemplate   = "tutor_study_plan.tmpl"
)

// PromptData holds data for rendering generation prompt templates
type PromptData struct {
	// Common fields
	Title      string
	Subject    string
	Difficulty string
	SourceType string
	SourceText string
	Topic      string
	Topics     string // pre-joined topic list

	// Quiz fields
	QuestionCount  int
	UserAnswer     string
	CorrectAnswers string // pre-joined accepted answers
	ScorePercent   int
	CorrectCount   int
	TotalCount     int

	// Roadmap fields
	SkillLevel      string
	Months          int
	HoursPerWeek    int
	ProgressPercent int
	CompletedCount  int

	// Tutor fields
	SessionType        string
	Context            string
	Message            string
	Concept            string
	Problem            string
	ProblemType        string
	DurationDays       int
	ProblemFocus       bool
	ConceptFocus       bool
	RequestExplanation bool
	RequestExamples    bool
}

// PromptManager renders the embedded generation prompt templates
type PromptManager struct {
	templates *template.Template
}

// NewPromptManager creates a new prompt manager
func NewPromptManager() (result0 *PromptManager, err error) {
	templates, err := template.New("").ParseFS(promptTemplatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}

	return &PromptManager{
		templates: templates,
	}, nil
}

// Render renders a prompt template with the given data
func (pm *PromptManager) Render(templateName string, data PromptData) (result0 string, err error) {
	var buf strings.Builder
	err = pm.templates.ExecuteTemplate(&buf, templateName, data)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// truncate caps s at max bytes; prompt excerpts are budgeted per call site.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

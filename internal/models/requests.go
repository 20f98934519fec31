package models

import (
	"strings"

	contextutils "evolveedu/internal/utils"
)

// CreateNoteRequest is the payload for note generation. Text and pdf sources
// carry already-extracted text; youtube sources carry the video URL.
type CreateNoteRequest struct {
	Title      string `json:"title"`
	SourceType string `json:"source_type"`
	SourceText string `json:"source_text,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
}

// Validate checks the request for required fields
func (r *CreateNoteRequest) Validate() error {
	switch r.SourceType {
	case SourceTypeText, SourceTypePDF:
		if strings.TrimSpace(r.SourceText) == "" {
			return contextutils.WrapError(contextutils.ErrMissingRequired, "source_text is required for text and pdf sources")
		}
	case SourceTypeYouTube:
		if strings.TrimSpace(r.SourceURL) == "" {
			return contextutils.WrapError(contextutils.ErrMissingRequired, "source_url is required for youtube sources")
		}
	default:
		return contextutils.WrapError(contextutils.ErrInvalidInput, "source_type must be text, pdf, or youtube")
	}
	return nil
}

// CreateQuizRequest is the payload for quiz generation
type CreateQuizRequest struct {
	Topic         string `json:"topic"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"question_count"`
	SourceText    string `json:"source_text,omitempty"`
}

// Validate checks the request for required fields
func (r *CreateQuizRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "topic is required")
	}
	if r.QuestionCount < 1 || r.QuestionCount > 20 {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "question_count must be between 1 and 20")
	}
	return nil
}

// SubmitAttemptRequest carries a learner's answers keyed by question ID
type SubmitAttemptRequest struct {
	Answers map[string]string `json:"answers"`
}

// Validate checks the request for required fields
func (r *SubmitAttemptRequest) Validate() error {
	if len(r.Answers) == 0 {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "answers are required")
	}
	return nil
}

// CreateRoadmapRequest is the payload for roadmap generation
type CreateRoadmapRequest struct {
	Subject       string `json:"subject"`
	SkillLevel    string `json:"skill_level"`
	Months        int    `json:"months"`
	HoursPerWeek  int    `json:"hours_per_week"`
	ReminderEmail string `json:"reminder_email,omitempty"`
}

// Validate checks the request for required fields
func (r *CreateRoadmapRequest) Validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "subject is required")
	}
	if r.Months < 1 || r.Months > 36 {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "months must be between 1 and 36")
	}
	if r.HoursPerWeek < 1 || r.HoursPerWeek > 80 {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "hours_per_week must be between 1 and 80")
	}
	if r.ReminderEmail != "" && !contextutils.IsValidEmail(r.ReminderEmail) {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "reminder_email is not a valid email address")
	}
	return nil
}

// SkillAssessment is one skill with the learner's self-assessed level
type SkillAssessment struct {
	Name  string `json:"name"`
	Level string `json:"level"`
}

// GapAnalysisRequest is the payload for skill-gap analysis
type GapAnalysisRequest struct {
	Subject string            `json:"subject"`
	Skills  []SkillAssessment `json:"skills"`
}

// Validate checks the request for required fields
func (r *GapAnalysisRequest) Validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "subject is required")
	}
	return nil
}

// ResourceRequest is the payload for resource recommendations
type ResourceRequest struct {
	Topics     []string `json:"topics"`
	Difficulty string   `json:"difficulty"`
}

// Validate checks the request for required fields
func (r *ResourceRequest) Validate() error {
	if len(r.Topics) == 0 {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "topics are required")
	}
	return nil
}

// UpdateMilestoneRequest updates one milestone's progress
type UpdateMilestoneRequest struct {
	Status          MilestoneStatus `json:"status"`
	ProgressPercent int             `json:"progress_percent"`
}

// Validate checks the request for required fields
func (r *UpdateMilestoneRequest) Validate() error {
	switch r.Status {
	case MilestoneNotStarted, MilestoneInProgress, MilestoneCompleted:
	default:
		return contextutils.WrapError(contextutils.ErrInvalidInput, "status must be not_started, in_progress, or completed")
	}
	if r.ProgressPercent < 0 || r.ProgressPercent > 100 {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "progress_percent must be between 0 and 100")
	}
	return nil
}

// StartTutorSessionRequest opens a tutoring session
type StartTutorSessionRequest struct {
	SessionType     SessionType `json:"session_type"`
	Subject         string      `json:"subject,omitempty"`
	DifficultyLevel string      `json:"difficulty_level,omitempty"`
}

// Validate checks the request for required fields
func (r *StartTutorSessionRequest) Validate() error {
	if !ValidSessionType(r.SessionType) {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "session_type is not recognized")
	}
	return nil
}

// TutorMessageRequest is one student message within a session
type TutorMessageRequest struct {
	Message            string `json:"message"`
	RequestExplanation bool   `json:"request_explanation,omitempty"`
	RequestExamples    bool   `json:"request_examples,omitempty"`
}

// Validate checks the request for required fields
func (r *TutorMessageRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "message is required")
	}
	return nil
}

// SolveProblemRequest asks for a worked step-by-step solution
type SolveProblemRequest struct {
	Problem     string `json:"problem"`
	ProblemType string `json:"problem_type"`
	Difficulty  string `json:"difficulty,omitempty"`
}

// Validate checks the request for required fields
func (r *SolveProblemRequest) Validate() error {
	if strings.TrimSpace(r.Problem) == "" {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "problem is required")
	}
	return nil
}

// ExplainConceptRequest asks for a structured concept explanation
type ExplainConceptRequest struct {
	Concept string `json:"concept"`
	Subject string `json:"subject"`
	Request string `json:"request,omitempty"`
}

// Validate checks the request for required fields
func (r *ExplainConceptRequest) Validate() error {
	if strings.TrimSpace(r.Concept) == "" {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "concept is required")
	}
	return nil
}

// StudyPlanRequest asks for a day-by-day study schedule
type StudyPlanRequest struct {
	Subject      string   `json:"subject"`
	DurationDays int      `json:"duration_days"`
	Topics       []string `json:"topics"`
	Difficulty   string   `json:"difficulty,omitempty"`
}

// Validate checks the request for required fields
func (r *StudyPlanRequest) Validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "subject is required")
	}
	if r.DurationDays < 1 || r.DurationDays > 365 {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "duration_days must be between 1 and 365")
	}
	if len(r.Topics) == 0 {
		return contextutils.WrapError(contextutils.ErrMissingRequired, "topics are required")
	}
	return nil
}

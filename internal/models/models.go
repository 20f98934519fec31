// Package models defines data structures used throughout the EvolveEdu backend.
package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Difficulty tiers shared by notes, quizzes, and roadmaps.
const (
	// DifficultyBeginner is the default tier when no keyword matches
	DifficultyBeginner = "Beginner"
	// DifficultyIntermediate matches intermediate/moderate/medium keywords
	DifficultyIntermediate = "Intermediate"
	// DifficultyAdvanced matches advanced/complex/difficult/expert keywords
	DifficultyAdvanced = "Advanced"
)

// Note source types accepted by the notes API.
const (
	// SourceTypeText is raw pasted text
	SourceTypeText = "text"
	// SourceTypePDF is text already extracted from a PDF upstream
	SourceTypePDF = "pdf"
	// SourceTypeYouTube is a YouTube URL; source text is synthesized from the video ID
	SourceTypeYouTube = "youtube"
)

// Note represents a generated study note
type Note struct {
	ID                   int              `json:"id" yaml:"id"`
	LearnerID            string           `json:"learner_id" yaml:"learner_id"`
	Title                string           `json:"title" yaml:"title"`
	SourceType           string           `json:"source_type" yaml:"source_type"`
	SourceText           string           `json:"-" yaml:"source_text"`
	Content              string           `json:"content" yaml:"content"`
	Summary              string           `json:"summary" yaml:"summary"`
	KeyPoints            []string         `json:"key_points" yaml:"key_points"`
	Questions            []string         `json:"questions" yaml:"questions"`
	Difficulty           string           `json:"difficulty" yaml:"difficulty"`
	Tags                 []string         `json:"tags" yaml:"tags"`
	EstimatedReadMinutes int              `json:"estimated_read_minutes" yaml:"estimated_read_minutes"`
	Enhancements         *NoteEnhancement `json:"enhancements,omitempty" yaml:"enhancements,omitempty"`
	CreatedAt            time.Time        `json:"created_at" yaml:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" yaml:"updated_at"`
}

// NoteEnhancement holds the second-pass enrichment of an existing note
type NoteEnhancement struct {
	Insights         []string `json:"insights" yaml:"insights"`
	Applications     []string `json:"applications" yaml:"applications"`
	MemoryTechniques []string `json:"memory_techniques" yaml:"memory_techniques"`
	RelatedTopics    []string `json:"related_topics" yaml:"related_topics"`
}

// QuestionType represents the type of quiz question
type QuestionType string

// Question types supported by the quiz generator
const (
	// MultipleChoice represents four-option questions with one correct answer
	MultipleChoice QuestionType = "multiple_choice"
	// TrueFalse represents True/False statements
	TrueFalse QuestionType = "true_false"
	// ShortAnswer represents free-text questions graded by a second inference round
	ShortAnswer QuestionType = "short_answer"
)

// Quiz represents a generated quiz
type Quiz struct {
	ID            int            `json:"id" yaml:"id"`
	LearnerID     string         `json:"learner_id" yaml:"learner_id"`
	Title         string         `json:"title" yaml:"title"`
	Topic         string         `json:"topic" yaml:"topic"`
	Difficulty    string         `json:"difficulty" yaml:"difficulty"`
	QuestionCount int            `json:"question_count" yaml:"question_count"`
	PassingScore  int            `json:"passing_score" yaml:"passing_score"`
	Questions     []QuizQuestion `json:"questions,omitempty" yaml:"questions,omitempty"`
	CreatedAt     time.Time      `json:"created_at" yaml:"created_at"`
}

// QuizQuestion represents one question belonging to a quiz
type QuizQuestion struct {
	ID     int          `json:"id" yaml:"id"`
	QuizID int          `json:"quiz_id" yaml:"quiz_id"`
	Text   string       `json:"text" yaml:"text"`
	Type   QuestionType `json:"type" yaml:"type"`
	// Options is empty for short_answer questions
	Options []string `json:"options" yaml:"options"`
	// CorrectAnswers holds the correct option for choice questions and every
	// accepted answer for short_answer questions
	CorrectAnswers []string `json:"correct_answers" yaml:"correct_answers"`
	Explanation    string   `json:"explanation" yaml:"explanation"`
	Hint           string   `json:"hint" yaml:"hint"`
	Points         int      `json:"points" yaml:"points"`
	Order          int      `json:"order" yaml:"order"`
}

// QuizAttempt represents one graded submission of answers against a quiz
type QuizAttempt struct {
	ID        int    `json:"id" yaml:"id"`
	QuizID    int    `json:"quiz_id" yaml:"quiz_id"`
	LearnerID string `json:"learner_id" yaml:"learner_id"`
	// Answers maps question ID to the submitted answer text
	Answers         map[string]string `json:"answers" yaml:"answers"`
	ScorePercent    float64           `json:"score_percent" yaml:"score_percent"`
	Passed          bool              `json:"passed" yaml:"passed"`
	Feedback        string            `json:"feedback" yaml:"feedback"`
	Recommendations []string          `json:"recommendations" yaml:"recommendations"`
	PerQuestion     []QuestionResult  `json:"per_question" yaml:"per_question"`
	CreatedAt       time.Time         `json:"created_at" yaml:"created_at"`
}

// QuestionResult is the graded outcome for one question in an attempt
type QuestionResult struct {
	QuestionID   int    `json:"question_id" yaml:"question_id"`
	Question     string `json:"question" yaml:"question"`
	Correct      bool   `json:"correct" yaml:"correct"`
	PointsEarned int    `json:"points_earned" yaml:"points_earned"`
	UserAnswer   string `json:"user_answer" yaml:"user_answer"`
	Explanation  string `json:"explanation" yaml:"explanation"`
}

// RoadmapStatus represents the lifecycle state of a roadmap
type RoadmapStatus string

const (
	// RoadmapStatusActive is a roadmap still in progress
	RoadmapStatusActive RoadmapStatus = "active"
	// RoadmapStatusCompleted is set when overall progress reaches exactly 100
	RoadmapStatusCompleted RoadmapStatus = "completed"
)

// MilestoneStatus represents the state of one roadmap milestone
type MilestoneStatus string

const (
	// MilestoneNotStarted contributes 0 to roadmap progress
	MilestoneNotStarted MilestoneStatus = "not_started"
	// MilestoneInProgress contributes its own progress percent
	MilestoneInProgress MilestoneStatus = "in_progress"
	// MilestoneCompleted contributes 100 to roadmap progress
	MilestoneCompleted MilestoneStatus = "completed"
)

// Roadmap represents a personalized learning roadmap
type Roadmap struct {
	ID                     int            `json:"id" yaml:"id"`
	LearnerID              string         `json:"learner_id" yaml:"learner_id"`
	Subject                string         `json:"subject" yaml:"subject"`
	SkillLevel             string         `json:"skill_level" yaml:"skill_level"`
	Months                 int            `json:"months" yaml:"months"`
	HoursPerWeek           int            `json:"hours_per_week" yaml:"hours_per_week"`
	Title                  string         `json:"title" yaml:"title"`
	Description            string         `json:"description" yaml:"description"`
	WeeklyGoals            []WeeklyGoal   `json:"weekly_goals" yaml:"weekly_goals"`
	Recommendations        []string       `json:"recommendations" yaml:"recommendations"`
	Status                 RoadmapStatus  `json:"status" yaml:"status"`
	OverallProgressPercent int            `json:"overall_progress_percent" yaml:"overall_progress_percent"`
	ReminderEmail          sql.NullString `json:"reminder_email" yaml:"reminder_email"`
	Milestones             []Milestone    `json:"milestones,omitempty" yaml:"milestones,omitempty"`
	CreatedAt              time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at" yaml:"updated_at"`
}

// WeeklyGoal is one entry of a roadmap's first-weeks plan
type WeeklyGoal struct {
	Week int    `json:"week" yaml:"week"`
	Goal string `json:"goal" yaml:"goal"`
}

// Milestone represents one step of a roadmap
type Milestone struct {
	ID              int             `json:"id" yaml:"id"`
	RoadmapID       int             `json:"roadmap_id" yaml:"roadmap_id"`
	Title           string          `json:"title" yaml:"title"`
	Description     string          `json:"description" yaml:"description"`
	SkillFocus      string          `json:"skill_focus" yaml:"skill_focus"`
	EstimatedHours  int             `json:"estimated_hours" yaml:"estimated_hours"`
	Order           int             `json:"order" yaml:"order"`
	Status          MilestoneStatus `json:"status" yaml:"status"`
	ProgressPercent int             `json:"progress_percent" yaml:"progress_percent"`
	TargetDate      sql.NullTime    `json:"target_date" yaml:"target_date"`
	ReminderSent    bool            `json:"reminder_sent" yaml:"reminder_sent"`
}

// MarshalJSON customizes JSON marshaling for Roadmap to handle sql.NullString properly
func (r Roadmap) MarshalJSON() (result0 []byte, err error) {
	type alias Roadmap
	return json.Marshal(&struct {
		alias
		ReminderEmail *string `json:"reminder_email"`
	}{
		alias:         alias(r),
		ReminderEmail: nullStringToPointer(r.ReminderEmail),
	})
}

// MarshalJSON customizes JSON marshaling for Milestone to handle sql.NullTime properly
func (m Milestone) MarshalJSON() (result0 []byte, err error) {
	type alias Milestone
	return json.Marshal(&struct {
		alias
		TargetDate *time.Time `json:"target_date"`
	}{
		alias:      alias(m),
		TargetDate: nullTimeToPointer(m.TargetDate),
	})
}

// SessionType represents the kind of tutoring a session provides
type SessionType string

// Tutor session types
const (
	// SessionChat is open-ended conversational tutoring
	SessionChat SessionType = "chat"
	// SessionProblemSolving focuses on step-by-step problem guidance
	SessionProblemSolving SessionType = "problem_solving"
	// SessionConceptExplanation focuses on clear concept explanations
	SessionConceptExplanation SessionType = "concept_explanation"
	// SessionHomeworkHelp assists with homework
	SessionHomeworkHelp SessionType = "homework_help"
	// SessionExamPrep assists with exam preparation
	SessionExamPrep SessionType = "exam_prep"
)

// ValidSessionType reports whether t is one of the supported session types.
func ValidSessionType(t SessionType) bool {
	switch t {
	case SessionChat, SessionProblemSolving, SessionConceptExplanation, SessionHomeworkHelp, SessionExamPrep:
		return true
	}
	return false
}

// TutorSession represents an ongoing conversation with the AI tutor
type TutorSession struct {
	ID              int            `json:"id" yaml:"id"`
	LearnerID       string         `json:"learner_id" yaml:"learner_id"`
	Subject         sql.NullString `json:"subject" yaml:"subject"`
	SessionType     SessionType    `json:"session_type" yaml:"session_type"`
	DifficultyLevel sql.NullString `json:"difficulty_level" yaml:"difficulty_level"`
	StartedAt       time.Time      `json:"started_at" yaml:"started_at"`
	LastActivity    time.Time      `json:"last_activity" yaml:"last_activity"`
	DurationMinutes int            `json:"duration_minutes" yaml:"duration_minutes"`
	Messages        []TutorMessage `json:"messages,omitempty" yaml:"messages,omitempty"`
}

// MarshalJSON customizes JSON marshaling for TutorSession to handle sql.NullString properly
func (s TutorSession) MarshalJSON() (result0 []byte, err error) {
	type alias TutorSession
	return json.Marshal(&struct {
		alias
		Subject         *string `json:"subject"`
		DifficultyLevel *string `json:"difficulty_level"`
	}{
		alias:           alias(s),
		Subject:         nullStringToPointer(s.Subject),
		DifficultyLevel: nullStringToPointer(s.DifficultyLevel),
	})
}

// MessageRole distinguishes learner messages from tutor replies
type MessageRole string

const (
	// RoleStudent marks a message written by the learner
	RoleStudent MessageRole = "user"
	// RoleTutor marks a generated tutor reply
	RoleTutor MessageRole = "tutor"
)

// TutorMessage represents one message within a tutor session
type TutorMessage struct {
	ID              int             `json:"id" yaml:"id"`
	SessionID       int             `json:"session_id" yaml:"session_id"`
	Role            MessageRole     `json:"role" yaml:"role"`
	Content         string          `json:"content" yaml:"content"`
	Intent          sql.NullString  `json:"intent" yaml:"intent"`
	ConfidenceScore sql.NullFloat64 `json:"confidence_score" yaml:"confidence_score"`
	TopicTags       []string        `json:"topic_tags" yaml:"topic_tags"`
	ResponseTimeMs  sql.NullInt32   `json:"response_time_ms" yaml:"response_time_ms"`
	CreatedAt       time.Time       `json:"created_at" yaml:"created_at"`
}

// MarshalJSON customizes JSON marshaling for TutorMessage to handle sql.Null types properly
func (m TutorMessage) MarshalJSON() (result0 []byte, err error) {
	type alias TutorMessage
	return json.Marshal(&struct {
		alias
		Intent          *string  `json:"intent"`
		ConfidenceScore *float64 `json:"confidence_score"`
		ResponseTimeMs  *int32   `json:"response_time_ms"`
	}{
		alias:           alias(m),
		Intent:          nullStringToPointer(m.Intent),
		ConfidenceScore: nullFloat64ToPointer(m.ConfidenceScore),
		ResponseTimeMs:  nullInt32ToPointer(m.ResponseTimeMs),
	})
}

// WorkerStatus represents the heartbeat row for a background worker instance
type WorkerStatus struct {
	ID                 int            `json:"id" yaml:"id"`
	WorkerInstance     string         `json:"worker_instance" yaml:"worker_instance"`
	IsRunning          bool           `json:"is_running" yaml:"is_running"`
	IsPaused           bool           `json:"is_paused" yaml:"is_paused"`
	LastHeartbeat      sql.NullTime   `json:"last_heartbeat" yaml:"last_heartbeat"`
	LastRunStart       sql.NullTime   `json:"last_run_start" yaml:"last_run_start"`
	LastRunFinish      sql.NullTime   `json:"last_run_finish" yaml:"last_run_finish"`
	LastRunError       sql.NullString `json:"last_run_error" yaml:"last_run_error"`
	RemindersSentTotal int            `json:"reminders_sent_total" yaml:"reminders_sent_total"`
	UpdatedAt          time.Time      `json:"updated_at" yaml:"updated_at"`
}

// MarshalJSON customizes JSON marshaling for WorkerStatus to handle sql.Null types properly
func (w WorkerStatus) MarshalJSON() (result0 []byte, err error) {
	type alias WorkerStatus
	return json.Marshal(&struct {
		alias
		LastHeartbeat *time.Time `json:"last_heartbeat"`
		LastRunStart  *time.Time `json:"last_run_start"`
		LastRunFinish *time.Time `json:"last_run_finish"`
		LastRunError  *string    `json:"last_run_error"`
	}{
		alias:         alias(w),
		LastHeartbeat: nullTimeToPointer(w.LastHeartbeat),
		LastRunStart:  nullTimeToPointer(w.LastRunStart),
		LastRunFinish: nullTimeToPointer(w.LastRunFinish),
		LastRunError:  nullStringToPointer(w.LastRunError),
	})
}

// Helper functions for converting sql.Null types to pointers
func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func nullInt32ToPointer(ni sql.NullInt32) *int32 {
	if ni.Valid {
		return &ni.Int32
	}
	return nil
}

func nullFloat64ToPointer(nf sql.NullFloat64) *float64 {
	if nf.Valid {
		return &nf.Float64
	}
	return nil
}

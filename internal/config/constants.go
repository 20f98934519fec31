package config

import "time"

// Inference defaults
const (
	// DefaultInferenceBaseURL is the hosted model endpoint prefix; the model
	// ID is appended per request.
	DefaultInferenceBaseURL = "https://api-inference.huggingface.co/models"

	DefaultInferenceMaxRetries    = 3
	DefaultInferenceRetryDelay    = 1 * time.Second
	DefaultInferenceTimeout       = 60 * time.Second
	DefaultInferenceMaxConcurrent = 4
)

// Per-domain model defaults. The token budgets differ because the domains
// ask for output of very different lengths.
const (
	DefaultNotesModel        = "google/flan-t5-large"
	DefaultNotesMaxNewTokens = 1000

	DefaultQuizModel        = "google/flan-t5-large"
	DefaultQuizMaxNewTokens = 800

	DefaultRoadmapModel        = "google/flan-t5-large"
	DefaultRoadmapMaxNewTokens = 1000

	DefaultTutorModel        = "microsoft/DialoGPT-large"
	DefaultTutorMaxNewTokens = 500
)

// Sampling parameters shared by every generation request.
const (
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9

	// DialoGPTPadTokenID is required by the conversational tutor model; the
	// other models ignore it.
	DialoGPTPadTokenID = 50256
)

// Timeout constants
const (
	ServerShutdownTimeout = 30 * time.Second
	WorkerShutdownTimeout = 30 * time.Second
	TestTimeout           = 100 * time.Millisecond

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Session timeouts
	SessionMaxAge = 30 * 24 * time.Hour
)

// Worker timing
const (
	WorkerCheckInterval     = 15 * time.Minute
	WorkerHeartbeatInterval = 30 * time.Second
)

// Session configuration constants
const (
	// Session settings
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	// Session name
	SessionName = "evolveedu-session"
)

// Prompt excerpt budgets. Source material is truncated before templating so
// the instruction part of the prompt always survives the model's input limit.
const (
	NotesPromptExcerptChars   = 3000
	EnhancePromptExcerptChars = 2500
	TutorPromptExcerptChars   = 2000
)

// Domain thresholds
const (
	// QuizPassingScore is the percent score at or above which an attempt passes.
	QuizPassingScore = 70

	// TutorContextMessages is how many recent messages are replayed into the
	// conversation context of each tutor prompt.
	TutorContextMessages = 5

	// TutorReplyMaxChars truncates runaway replies to their first sentences.
	TutorReplyMaxChars = 800

	// TutorReplyMinChars is the floor below which a reply is replaced with a
	// canned response.
	TutorReplyMinChars = 20
)

// Reminder constants
const (
	// DefaultReminderWindowHours is how far ahead of a milestone target date
	// the worker starts sending reminder emails.
	DefaultReminderWindowHours = 48
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:"
)

package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"evolveedu/internal/config"
	"evolveedu/internal/models"
	"evolveedu/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestLogger creates a logger for testing
func createTestLogger() *observability.Logger {
	cfg := &config.OpenTelemetryConfig{
		EnableLogging: false,
	}
	return observability.NewLogger(cfg)
}

func emailTestConfig(enabled bool) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{AppBaseURL: "https://app.example.com"},
		Email: config.EmailConfig{
			Enabled: enabled,
			SMTP: config.SMTPConfig{
				Host:        "smtp.example.com",
				Port:        587,
				Username:    "sender@example.com",
				Password:    "password",
				FromAddress: "noreply@example.com",
				FromName:    "EvolveEdu",
			},
		},
	}
}

func TestNewEmailService(t *testing.T) {
	service := NewEmailService(emailTestConfig(true), createTestLogger())
	assert.NotNil(t, service)
	assert.True(t, service.IsEnabled())
}

func TestEmailService_DisabledSkipsSend(t *testing.T) {
	cfg := emailTestConfig(false)
	service := NewEmailService(cfg, createTestLogger())

	assert.False(t, service.IsEnabled())

	// Disabled send is a no-op, not an error.
	err := service.SendEmail(context.Background(), "learner@example.com", "Subject", "milestone_reminder", nil)
	assert.NoError(t, err)

	roadmap := &models.Roadmap{ID: 1, Title: "Learning Path: Go"}
	milestone := &models.Milestone{ID: 2, Title: "Foundation Skills"}
	err = service.SendMilestoneReminder(context.Background(), "learner@example.com", roadmap, milestone)
	assert.NoError(t, err)
}

func TestGenerateEmailContent_MilestoneReminder(t *testing.T) {
	service := NewEmailService(emailTestConfig(true), createTestLogger())

	content, err := service.generateEmailContent("milestone_reminder", map[string]interface{}{
		"RoadmapTitle":   "Learning Path: Go",
		"MilestoneTitle": "Foundation Skills",
		"TargetDate":     "September 15, 2026",
		"SkillFocus":     "Programming",
		"EstimatedHours": 36,
		"RoadmapURL":     "https://app.example.com/roadmaps/7",
	})
	require.NoError(t, err)
	assert.Contains(t, content, "Foundation Skills")
	assert.Contains(t, content, "Learning Path: Go")
	assert.Contains(t, content, "September 15, 2026")
	assert.Contains(t, content, "https://app.example.com/roadmaps/7")
	assert.Contains(t, content, "36 hours")
}

func TestGenerateEmailContent_UnknownTemplate(t *testing.T) {
	service := NewEmailService(emailTestConfig(true), createTestLogger())

	_, err := service.generateEmailContent("nonexistent", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown template")
}

func TestGenerateEmailContent_TestEmail(t *testing.T) {
	service := NewEmailService(emailTestConfig(true), createTestLogger())

	content, err := service.generateEmailContent("test_email", map[string]interface{}{
		"TestTime": time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC).Format(time.RFC1123),
		"Message":  "configuration check",
	})
	require.NoError(t, err)
	assert.Contains(t, content, "configuration check")
}

func TestLogEmailService(t *testing.T) {
	service := NewLogEmailService(emailTestConfig(false), createTestLogger())

	assert.False(t, service.IsEnabled())
	assert.NoError(t, service.SendEmail(context.Background(), "a@b.c", "s", "t", map[string]interface{}{"k": 1}))

	roadmap := &models.Roadmap{ID: 1, Title: "Learning Path: Go"}
	milestone := &models.Milestone{ID: 2, Title: "Foundation Skills", TargetDate: sql.NullTime{Time: time.Now(), Valid: true}}
	assert.NoError(t, service.SendMilestoneReminder(context.Background(), "a@b.c", roadmap, milestone))
}

// Package mailer defines the email sending interface used by the reminder worker.
package mailer

import (
	"context"

	"evolveedu/internal/models"
)

// Mailer defines the interface for email sending functionality
type Mailer interface {
	// SendMilestoneReminder sends a reminder for a milestone coming due
	SendMilestoneReminder(ctx context.Context, to string, roadmap *models.Roadmap, milestone *models.Milestone) error

	// SendEmail sends a generic email with the given parameters
	SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) error

	// IsEnabled returns whether email functionality is enabled
	IsEnabled() bool
}

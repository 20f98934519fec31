package services

import (
	"context"

	"evolveedu/internal/config"
	"evolveedu/internal/models"
	"evolveedu/internal/observability"
	"evolveedu/internal/services/mailer"
)

// LogEmailService implements the Mailer interface without sending anything.
// It is used when email is disabled or the app runs in test mode; every send
// becomes a structured log line so reminder flows stay observable.
type LogEmailService struct {
	cfg    *config.Config
	logger *observability.Logger
}

var _ mailer.Mailer = (*LogEmailService)(nil)

// NewLogEmailService creates a new LogEmailService instance
func NewLogEmailService(cfg *config.Config, logger *observability.Logger) *LogEmailService {
	return &LogEmailService{
		cfg:    cfg,
		logger: logger,
	}
}

// SendMilestoneReminder logs the reminder instead of sending it
func (e *LogEmailService) SendMilestoneReminder(ctx context.Context, to string, roadmap *models.Roadmap, milestone *models.Milestone) error {
	ctx, span := observability.TraceEmailFunction(ctx, "SendMilestoneReminder",
		observability.AttributeRoadmapID(roadmap.ID),
	)
	defer span.End()

	e.logger.Info(ctx, "Email disabled: would send milestone reminder", map[string]interface{}{
		"to":           to,
		"roadmap_id":   roadmap.ID,
		"milestone_id": milestone.ID,
		"milestone":    milestone.Title,
	})
	return nil
}

// SendEmail logs the email instead of sending it
func (e *LogEmailService) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) error {
	ctx, span := observability.TraceEmailFunction(ctx, "SendEmail")
	defer span.End()

	e.logger.Info(ctx, "Email disabled: would send email", map[string]interface{}{
		"to":        to,
		"subject":   subject,
		"template":  templateName,
		"data_keys": getMapKeys(data),
	})
	return nil
}

// IsEnabled reports false so callers can skip expensive reminder queries
func (e *LogEmailService) IsEnabled() bool {
	return false
}

// getMapKeys returns the keys of a map as a slice of strings
func getMapKeys(data map[string]interface{}) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	return keys
}

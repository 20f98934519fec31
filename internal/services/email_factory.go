package services

import (
	"context"

	"evolveedu/internal/config"
	"evolveedu/internal/observability"
	"evolveedu/internal/services/mailer"
)

// CreateEmailService creates an appropriate email service based on
// configuration. Test mode and disabled email both get the log-backed no-op
// sender; everything else gets the real SMTP sender.
func CreateEmailService(cfg *config.Config, logger *observability.Logger) mailer.Mailer {
	if cfg.IsTest {
		logger.Info(context.Background(), "Using log email service", map[string]interface{}{
			"test_mode": true,
		})
		return NewLogEmailService(cfg, logger)
	}

	if !cfg.Email.Enabled || cfg.Email.SMTP.Host == "" {
		logger.Info(context.Background(), "Email disabled, using log email service", map[string]interface{}{
			"enabled": cfg.Email.Enabled,
		})
		return NewLogEmailService(cfg, logger)
	}

	return NewEmailService(cfg, logger)
}

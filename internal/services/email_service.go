package services

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"evolveedu/internal/config"
	"evolveedu/internal/models"
	"evolveedu/internal/observability"
	"evolveedu/internal/services/mailer"
	contextutils "evolveedu/internal/utils"

	gomail "gopkg.in/mail.v2"
)

// EmailService implements the mailer.Mailer interface over SMTP
type EmailService struct {
	cfg    *config.Config
	logger *observability.Logger
	dialer *gomail.Dialer
}

// Ensure EmailService implements the Mailer interface
var _ mailer.Mailer = (*EmailService)(nil)

// NewEmailService creates a new EmailService instance
func NewEmailService(cfg *config.Config, logger *observability.Logger) *EmailService {
	var dialer *gomail.Dialer
	if cfg.Email.Enabled && cfg.Email.SMTP.Host != "" {
		dialer = gomail.NewDialer(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
		)
	}

	return &EmailService{
		cfg:    cfg,
		logger: logger,
		dialer: dialer,
	}
}

// SendMilestoneReminder sends a reminder email for a milestone coming due
func (e *EmailService) SendMilestoneReminder(ctx context.Context, to string, roadmap *models.Roadmap, milestone *models.Milestone) (err error) {
	ctx, span := observability.TraceEmailFunction(ctx, "SendMilestoneReminder",
		observability.AttributeRoadmapID(roadmap.ID),
	)
	defer observability.FinishSpan(span, &err)

	if !e.IsEnabled() {
		e.logger.Info(ctx, "Email disabled, skipping milestone reminder", map[string]interface{}{
			"roadmap_id":   roadmap.ID,
			"milestone_id": milestone.ID,
		})
		return nil
	}

	targetDate := ""
	if milestone.TargetDate.Valid {
		targetDate = milestone.TargetDate.Time.Format("January 2, 2006")
	}

	data := map[string]interface{}{
		"RoadmapTitle":   roadmap.Title,
		"MilestoneTitle": milestone.Title,
		"TargetDate":     targetDate,
		"SkillFocus":     milestone.SkillFocus,
		"EstimatedHours": milestone.EstimatedHours,
		"RoadmapURL":     fmt.Sprintf("%s/roadmaps/%d", e.cfg.Server.AppBaseURL, roadmap.ID),
	}

	subject := fmt.Sprintf("Milestone coming up: %s", milestone.Title)

	if err = e.SendEmail(ctx, to, subject, "milestone_reminder", data); err != nil {
		return contextutils.WrapError(err, "failed to send milestone reminder")
	}

	e.logger.Info(ctx, "Milestone reminder sent", map[string]interface{}{
		"roadmap_id":   roadmap.ID,
		"milestone_id": milestone.ID,
		"to":           to,
	})
	return nil
}

// SendEmail sends a generic email with the given parameters
func (e *EmailService) SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) (err error) {
	ctx, span := observability.TraceEmailFunction(ctx, "SendEmail")
	defer observability.FinishSpan(span, &err)

	if !e.IsEnabled() {
		e.logger.Info(ctx, "Email disabled, skipping email send", map[string]interface{}{
			"to":       to,
			"template": templateName,
		})
		return nil
	}

	if e.dialer == nil {
		return contextutils.ErrorWithContextf("email service not properly configured")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", e.cfg.Email.SMTP.FromName, e.cfg.Email.SMTP.FromAddress))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	content, err := e.generateEmailContent(templateName, data)
	if err != nil {
		return contextutils.WrapError(err, "failed to generate email content")
	}
	m.SetBody("text/html", content)

	if err = e.dialer.DialAndSend(m); err != nil {
		e.logger.Error(ctx, "Failed to send email", err, map[string]interface{}{
			"to":       to,
			"template": templateName,
			"subject":  subject,
		})
		return contextutils.WrapError(contextutils.ErrEmailSendFailed, err.Error())
	}

	e.logger.Info(ctx, "Email sent successfully", map[string]interface{}{
		"to":       to,
		"template": templateName,
		"subject":  subject,
	})
	return nil
}

// IsEnabled returns whether email functionality is enabled
func (e *EmailService) IsEnabled() bool {
	return e.cfg.Email.Enabled && e.cfg.Email.SMTP.Host != ""
}

// generateEmailContent generates email content from templates
func (e *EmailService) generateEmailContent(templateName string, data map[string]interface{}) (string, error) {
	switch templateName {
	case "milestone_reminder":
		return renderEmailTemplate("milestone_reminder", milestoneReminderTemplate, data)
	case "test_email":
		return renderEmailTemplate("test_email", testEmailTemplate, data)
	default:
		return "", contextutils.ErrorWithContextf("unknown template: %s", templateName)
	}
}

func renderEmailTemplate(name, templateStr string, data map[string]interface{}) (string, error) {
	tmpl, err := template.New(name).Parse(templateStr)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to parse template")
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", contextutils.WrapError(err, "failed to execute template")
	}
	return buf.String(), nil
}

const milestoneReminderTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Milestone Reminder</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #4CAF50; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9f9f9; padding: 20px; }
        .button { display: inline-block; background-color: #4CAF50; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; margin: 20px 0; }
        .footer { background-color: #eee; padding: 15px; text-align: center; font-size: 12px; color: #666; border-radius: 0 0 5px 5px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>🎯 Milestone Reminder</h1>
        </div>
        <div class="content">
            <h2>{{.MilestoneTitle}}</h2>
            <p>Your milestone on the roadmap <strong>{{.RoadmapTitle}}</strong> is coming up{{if .TargetDate}} on <strong>{{.TargetDate}}</strong>{{end}}.</p>
            {{if .SkillFocus}}<p>Skill focus: <strong>{{.SkillFocus}}</strong></p>{{end}}
            <p>Estimated effort: <strong>{{.EstimatedHours}} hours</strong></p>
            <p>Keep up the momentum and stay on track with your learning goals!</p>
            <div style="text-align: center;">
                <a href="{{.RoadmapURL}}" class="button">View Your Roadmap</a>
            </div>
        </div>
        <div class="footer">
            <p>This reminder was sent because your roadmap has an email reminder configured.</p>
        </div>
    </div>
</body>
</html>`

const testEmailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Test Email</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #2196F3; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9f9f9; padding: 20px; }
        .footer { background-color: #eee; padding: 15px; text-align: center; font-size: 12px; color: #666; border-radius: 0 0 5px 5px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>📧 Test Email</h1>
        </div>
        <div class="content">
            <p>This is a test email to verify that your email settings are working correctly.</p>
            <p><strong>Test Time:</strong> {{.TestTime}}</p>
            <p><strong>Message:</strong> {{.Message}}</p>
            <p>If you received this email, your email configuration is working properly!</p>
        </div>
        <div class="footer">
            <p>This is a test email. No action is required.</p>
        </div>
    </div>
</body>
</html>`

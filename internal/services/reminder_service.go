package services

import (
	"context"
	"database/sql"
	"time"

	"evolveedu/internal/models"
	"evolveedu/internal/observability"
	contextutils "evolveedu/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// MilestoneReminder pairs a due milestone with the roadmap it belongs to and
// the address the reminder should go to.
type MilestoneReminder struct {
	Roadmap   models.Roadmap
	Milestone models.Milestone
	Email     string
}

// ReminderServiceInterface defines milestone reminder queries used by the worker
type ReminderServiceInterface interface {
	ListDueMilestoneReminders(ctx context.Context, window time.Duration) ([]MilestoneReminder, error)
	MarkReminderSent(ctx context.Context, milestoneID int) error
}

// ReminderService finds milestones coming due on roadmaps that opted into
// email reminders
type ReminderService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewReminderService creates a new ReminderService
func NewReminderService(db *sql.DB, logger *observability.Logger) *ReminderService {
	return &ReminderService{
		db:     db,
		logger: logger,
	}
}

// ListDueMilestoneReminders returns unsent reminders for incomplete milestones
// whose target date falls within the window from now. Roadmaps without a
// reminder email are skipped at the query level.
func (s *ReminderService) ListDueMilestoneReminders(ctx context.Context, window time.Duration) (result0 []MilestoneReminder, err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "list_due_milestone_reminders",
		attribute.String("reminder.window", window.String()),
	)
	defer observability.FinishSpan(span, &err)

	var rows *sql.Rows
	rows, err = s.db.QueryContext(ctx, `
		SELECT r.id, r.learner_id, r.subject, r.title, r.reminder_email,
		       m.id, m.roadmap_id, m.title, m.description, m.skill_focus,
		       m.estimated_hours, m.ord, m.status, m.progress_percent, m.target_date
		FROM milestones m
		JOIN roadmaps r ON r.id = m.roadmap_id
		WHERE m.reminder_sent = FALSE
		  AND m.status != 'completed'
		  AND m.target_date IS NOT NULL
		  AND m.target_date <= NOW() + $1 * INTERVAL '1 hour'
		  AND r.reminder_email IS NOT NULL
		ORDER BY m.target_date ASC
	`, window.Hours())
	if err != nil {
		s.logger.Error(ctx, "Failed to query due milestone reminders", err, map[string]interface{}{
			"window": window.String(),
		})
		return nil, contextutils.WrapError(err, "failed to query due milestone reminders")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr, map[string]interface{}{})
		}
	}()

	var reminders []MilestoneReminder
	for rows.Next() {
		var reminder MilestoneReminder
		var email sql.NullString
		if err = rows.Scan(
			&reminder.Roadmap.ID, &reminder.Roadmap.LearnerID, &reminder.Roadmap.Subject,
			&reminder.Roadmap.Title, &email,
			&reminder.Milestone.ID, &reminder.Milestone.RoadmapID, &reminder.Milestone.Title,
			&reminder.Milestone.Description, &reminder.Milestone.SkillFocus,
			&reminder.Milestone.EstimatedHours, &reminder.Milestone.Order,
			&reminder.Milestone.Status, &reminder.Milestone.ProgressPercent,
			&reminder.Milestone.TargetDate,
		); err != nil {
			s.logger.Error(ctx, "Failed to scan milestone reminder row", err, map[string]interface{}{})
			return nil, contextutils.WrapError(err, "failed to scan milestone reminder row")
		}
		reminder.Roadmap.ReminderEmail = email
		reminder.Email = email.String
		reminders = append(reminders, reminder)
	}

	if err = rows.Err(); err != nil {
		s.logger.Error(ctx, "Error iterating milestone reminder rows", err, map[string]interface{}{})
		return nil, contextutils.WrapError(err, "error iterating milestone reminder rows")
	}

	span.SetAttributes(attribute.Int("reminder.count", len(reminders)))
	s.logger.Debug(ctx, "Found due milestone reminders", map[string]interface{}{"count": len(reminders)})
	return reminders, nil
}

// MarkReminderSent flags a milestone so the worker never reminds about it twice
func (s *ReminderService) MarkReminderSent(ctx context.Context, milestoneID int) (err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "mark_reminder_sent",
		attribute.Int("milestone.id", milestoneID),
	)
	defer observability.FinishSpan(span, &err)

	var result sql.Result
	result, err = s.db.ExecContext(ctx, `
		UPDATE milestones SET reminder_sent = TRUE WHERE id = $1
	`, milestoneID)
	if err != nil {
		s.logger.Error(ctx, "Failed to mark reminder sent", err, map[string]interface{}{
			"milestone_id": milestoneID,
		})
		return contextutils.WrapErrorf(err, "failed to mark reminder sent for milestone %d", milestoneID)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "milestone %d not found", milestoneID)
	}

	s.logger.Debug(ctx, "Marked reminder sent", map[string]interface{}{"milestone_id": milestoneID})
	return nil
}

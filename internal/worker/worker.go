// Package worker contains the background worker responsible for sending
// milestone reminder emails. The worker runs independently of HTTP request
// handling: it periodically scans roadmap milestones coming due, emails the
// address the roadmap registered, and reports its own health through the
// worker status table.
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"evolveedu/internal/config"
	"evolveedu/internal/models"
	"evolveedu/internal/observability"
	"evolveedu/internal/services"
	"evolveedu/internal/services/mailer"
	contextutils "evolveedu/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxRunHistory   = 20
	maxActivityLogs = 100
)

// Status represents the current state of the worker
type Status struct {
	IsRunning       bool      `json:"is_running"`
	IsPaused        bool      `json:"is_paused"`
	CurrentActivity string    `json:"current_activity,omitempty"`
	LastRunStart    time.Time `json:"last_run_start"`
	LastRunFinish   time.Time `json:"last_run_finish"`
	LastRunError    string    `json:"last_run_error,omitempty"`
}

// RunRecord tracks individual worker runs
type RunRecord struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"` // Success, Failure
	Details   string        `json:"details"`
}

// ActivityLog represents a single activity log entry
type ActivityLog struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // INFO, WARN, ERROR
	Message   string    `json:"message"`
}

// Config holds worker-specific configuration
type Config struct {
	StartWorkerPaused bool
}

// Worker sends milestone reminder emails in the background
type Worker struct {
	workerService   services.WorkerServiceInterface
	reminderService services.ReminderServiceInterface
	emailService    mailer.Mailer
	instance        string
	status          Status
	history         []RunRecord
	activityLogs    []ActivityLog
	mu              sync.RWMutex
	manualTrigger   chan bool
	cfg             *config.Config
	workerCfg       Config
	logger          *observability.Logger

	totalRemindersSent int

	// Time function for testing - defaults to time.Now
	timeNow func() time.Time
	cancel  context.CancelFunc
}

// NewWorker creates a new Worker instance
func NewWorker(workerService services.WorkerServiceInterface, reminderService services.ReminderServiceInterface, emailService mailer.Mailer, instance string, cfg *config.Config, logger *observability.Logger) *Worker {
	if instance == "" {
		instance = "default"
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		workerService:   workerService,
		reminderService: reminderService,
		emailService:    emailService,
		instance:        instance,
		status:          Status{IsRunning: false, CurrentActivity: "Initialized"},
		history:         make([]RunRecord, 0, maxRunHistory),
		activityLogs:    make([]ActivityLog, 0, maxActivityLogs),
		manualTrigger:   make(chan bool, 1),
		cfg:             cfg,
		workerCfg:       Config{StartWorkerPaused: getEnvBool("WORKER_START_PAUSED", false)},
		logger:          logger,
		timeNow:         time.Now,
	}

	if w.workerCfg.StartWorkerPaused {
		w.handleStartupPause(ctx)
	}

	w.cancel = cancel

	return w
}

// getEnvBool is a helper function to get boolean environment variables
func getEnvBool(key string, defaultValue bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}

// Start begins the worker's background processing loop
func (w *Worker) Start(ctx context.Context) {
	w.status.IsRunning = true
	w.updateDatabaseStatus(ctx)

	w.handleStartupPause(ctx)

	go w.heartbeatLoop(ctx)

	ticker := time.NewTicker(config.WorkerCheckInterval)
	defer ticker.Stop()

	initialStatus := w.getInitialWorkerStatus(ctx)

	w.logger.Info(ctx, "Worker started", map[string]interface{}{
		"instance": w.instance,
		"status":   initialStatus,
	})
	w.logActivity("INFO", fmt.Sprintf("Worker %s started (%s)", w.instance, initialStatus))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Worker shutting down", map[string]interface{}{
				"instance": w.instance,
			})
			w.logActivity("INFO", fmt.Sprintf("Worker %s shutting down", w.instance))
			w.status.IsRunning = false
			w.updateDatabaseStatus(ctx)
			return

		case <-ticker.C:
			w.run()

		case <-w.manualTrigger:
			w.logger.Info(ctx, "Worker triggered manually", map[string]interface{}{
				"instance": w.instance,
			})
			w.logActivity("INFO", fmt.Sprintf("Worker %s triggered manually", w.instance))
			w.run()
		}
	}
}

// handleStartupPause sets global pause if configured
func (w *Worker) handleStartupPause(ctx context.Context) {
	if w.workerCfg.StartWorkerPaused {
		w.logger.Info(ctx, "Worker configured to start paused - setting global pause", map[string]interface{}{
			"instance": w.instance,
		})
		if err := w.workerService.SetGlobalPause(ctx, true); err != nil {
			w.logger.Error(ctx, "Failed to set global pause on startup", err, map[string]interface{}{
				"instance": w.instance,
			})
		}
	}
}

// getInitialWorkerStatus determines the initial status string
func (w *Worker) getInitialWorkerStatus(ctx context.Context) string {
	initialStatus := "running"
	globalPaused, err := w.workerService.IsGlobalPaused(ctx)
	if err != nil {
		w.logger.Error(ctx, "Failed to check global pause status on startup", err, map[string]interface{}{
			"instance": w.instance,
		})
	} else if globalPaused {
		initialStatus = "paused (globally)"
	} else {
		status, err := w.workerService.GetWorkerStatus(ctx, w.instance)
		if err != nil {
			// Not found is expected on first startup
			w.logger.Debug(ctx, "Worker status not found on startup (expected for new worker)", map[string]interface{}{
				"instance": w.instance,
			})
		} else if status != nil && status.IsPaused {
			initialStatus = "paused (instance)"
		}
	}
	return initialStatus
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(config.WorkerHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.updateHeartbeat(ctx)
		}
	}
}

// updateHeartbeat updates the heartbeat in the database
func (w *Worker) updateHeartbeat(ctx context.Context) {
	if err := w.workerService.UpdateHeartbeat(ctx, w.instance); err != nil {
		w.logger.Error(ctx, "Failed to update heartbeat for worker", err, map[string]interface{}{
			"instance": w.instance,
		})
	}
}

// run executes a single worker cycle
func (w *Worker) run() {
	ctx, span := observability.TraceWorkerFunction(context.Background(), "run",
		attribute.String("worker.instance", w.instance),
	)
	defer observability.FinishSpan(span, nil)

	w.updateDatabaseStatus(ctx)

	paused, reason := w.checkPauseStatus(ctx)
	if paused {
		span.SetAttributes(attribute.String("pause_reason", reason))
		w.updateActivity(reason)
		return
	}

	w.status.LastRunStart = w.timeNow()
	w.updateActivity("Sending milestone reminders")
	w.updateDatabaseStatus(ctx)

	details, err := w.processMilestoneReminders(ctx)

	w.status.LastRunFinish = w.timeNow()
	if err != nil {
		w.status.LastRunError = err.Error()
		w.logger.Error(ctx, "Worker run failed", err, map[string]interface{}{
			"instance": w.instance,
		})
	} else {
		w.status.LastRunError = ""
	}

	w.updateActivity("Idle")
	w.recordRunHistory(details, err)
	w.updateDatabaseStatus(ctx)
}

// processMilestoneReminders finds due milestones and emails their reminders.
// A send failure for one milestone does not stop the rest; the milestone is
// left unflagged so the next run retries it.
func (w *Worker) processMilestoneReminders(ctx context.Context) (result0 string, err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "process_milestone_reminders",
		attribute.String("worker.instance", w.instance),
		attribute.Bool("email.enabled", w.cfg.Email.Enabled),
		attribute.Bool("email.milestone_reminder.enabled", w.cfg.Email.MilestoneReminder.Enabled),
	)
	defer observability.FinishSpan(span, &err)

	if !w.cfg.Email.MilestoneReminder.Enabled {
		w.logger.Info(ctx, "Milestone reminders disabled, skipping", nil)
		return "Milestone reminders disabled", nil
	}

	windowHours := w.cfg.Email.MilestoneReminder.WindowHours
	if windowHours <= 0 {
		windowHours = config.DefaultReminderWindowHours
	}
	window := time.Duration(windowHours) * time.Hour

	reminders, err := w.reminderService.ListDueMilestoneReminders(ctx, window)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to list due milestone reminders")
	}

	span.SetAttributes(
		attribute.Int("reminders.due", len(reminders)),
		attribute.Int("reminder.window_hours", windowHours),
	)

	if len(reminders) == 0 {
		return "No milestone reminders due", nil
	}

	sent := 0
	failed := 0

	for i := range reminders {
		reminder := &reminders[i]
		if sendErr := w.emailService.SendMilestoneReminder(ctx, reminder.Email, &reminder.Roadmap, &reminder.Milestone); sendErr != nil {
			failed++
			w.logger.Error(ctx, "Failed to send milestone reminder", sendErr, map[string]interface{}{
				"milestone_id": reminder.Milestone.ID,
				"roadmap_id":   reminder.Roadmap.ID,
				"email":        reminder.Email,
			})
			continue
		}

		if markErr := w.reminderService.MarkReminderSent(ctx, reminder.Milestone.ID); markErr != nil {
			// The email went out; a re-send on the next run beats silently
			// losing the flag, so only log here
			w.logger.Error(ctx, "Failed to mark reminder sent", markErr, map[string]interface{}{
				"milestone_id": reminder.Milestone.ID,
			})
		}

		sent++
		w.logActivity("INFO", fmt.Sprintf("Sent milestone reminder for %q to %s", reminder.Milestone.Title, reminder.Email))
	}

	w.mu.Lock()
	w.totalRemindersSent += sent
	w.mu.Unlock()

	span.SetAttributes(
		attribute.Int("reminders.sent", sent),
		attribute.Int("reminders.failed", failed),
	)

	w.logger.Info(ctx, "Milestone reminders processed", map[string]interface{}{
		"instance":     w.instance,
		"due":          len(reminders),
		"sent":         sent,
		"failed":       failed,
		"window_hours": windowHours,
	})

	details := fmt.Sprintf("Sent %d of %d due milestone reminders", sent, len(reminders))
	if failed > 0 {
		return details, contextutils.ErrorWithContextf("%d of %d milestone reminders failed to send", failed, len(reminders))
	}
	return details, nil
}

// checkPauseStatus checks global and instance pause
func (w *Worker) checkPauseStatus(ctx context.Context) (bool, string) {
	globalPaused, err := w.workerService.IsGlobalPaused(ctx)
	if err != nil {
		w.logger.Error(ctx, "Failed to check global pause status", err, map[string]interface{}{
			"instance": w.instance,
		})
		return true, "Error checking global pause status"
	}
	if globalPaused {
		return true, "Globally paused"
	}
	status, err := w.workerService.GetWorkerStatus(ctx, w.instance)
	if err != nil {
		// Status not found can happen during startup - assume not paused
		w.logger.Debug(ctx, "Worker status not found during pause check (assuming not paused)", map[string]interface{}{
			"instance": w.instance,
		})
		return false, ""
	} else if status != nil && status.IsPaused {
		return true, "Worker instance paused"
	}
	return false, ""
}

// recordRunHistory records the run in history and trims the slice
func (w *Worker) recordRunHistory(details string, err error) {
	record := RunRecord{
		StartTime: w.status.LastRunStart,
		EndTime:   w.status.LastRunFinish,
		Duration:  w.status.LastRunFinish.Sub(w.status.LastRunStart),
		Details:   details,
	}
	if err != nil {
		record.Status = "Failure"
	} else {
		record.Status = "Success"
	}
	w.mu.Lock()
	w.history = append(w.history, record)
	if len(w.history) > maxRunHistory {
		w.history = w.history[len(w.history)-maxRunHistory:]
	}
	w.mu.Unlock()
}

// GetStatus returns the current worker status
func (w *Worker) GetStatus() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// GetHistory returns a copy of the worker's run history
func (w *Worker) GetHistory() []RunRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	history := make([]RunRecord, len(w.history))
	copy(history, w.history)
	return history
}

// GetActivityLogs returns a copy of recent activity logs
func (w *Worker) GetActivityLogs() []ActivityLog {
	w.mu.RLock()
	defer w.mu.RUnlock()
	logs := make([]ActivityLog, len(w.activityLogs))
	copy(logs, w.activityLogs)
	return logs
}

// GetInstance returns the worker instance name
func (w *Worker) GetInstance() string {
	return w.instance
}

// GetEmailService returns the email service
func (w *Worker) GetEmailService() mailer.Mailer {
	return w.emailService
}

// TotalRemindersSent returns the number of reminders sent since startup
func (w *Worker) TotalRemindersSent() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.totalRemindersSent
}

// TriggerManualRun triggers a manual worker run
func (w *Worker) TriggerManualRun() {
	ctx := context.Background()
	select {
	case w.manualTrigger <- true:
		w.logger.Info(ctx, "Manual trigger sent to worker", map[string]interface{}{
			"instance": w.instance,
		})
	default:
		w.logger.Info(ctx, "Manual trigger already pending for worker", map[string]interface{}{
			"instance": w.instance,
		})
	}
}

// Pause pauses the worker
func (w *Worker) Pause(ctx context.Context) {
	if err := w.workerService.PauseWorker(ctx, w.instance); err != nil {
		w.logger.Warn(ctx, "Failed to pause worker in service", map[string]interface{}{
			"instance": w.instance,
			"error":    err.Error(),
		})
	}
	w.logger.Info(ctx, "Worker paused", map[string]interface{}{
		"instance": w.instance,
	})
	w.logActivity("INFO", fmt.Sprintf("Worker %s paused", w.instance))
	w.status.IsPaused = true
	w.updateDatabaseStatus(ctx)
}

// Resume resumes the worker
func (w *Worker) Resume(ctx context.Context) {
	if err := w.workerService.ResumeWorker(ctx, w.instance); err != nil {
		w.logger.Warn(ctx, "Failed to resume worker in service", map[string]interface{}{
			"instance": w.instance,
			"error":    err.Error(),
		})
		// Do not unpause if resume failed
		w.updateDatabaseStatus(ctx)
		return
	}
	w.logger.Info(ctx, "Worker resumed", map[string]interface{}{
		"instance": w.instance,
	})
	w.logActivity("INFO", fmt.Sprintf("Worker %s resumed", w.instance))
	w.status.IsPaused = false
	w.updateDatabaseStatus(ctx)
}

// Shutdown gracefully shuts down the worker and cleans up resources
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.logger.Info(ctx, "Worker starting shutdown", map[string]interface{}{
		"instance": w.instance,
	})

	if w.cancel != nil {
		w.cancel()
	}

	w.activityLogs = make([]ActivityLog, 0)

	w.logger.Info(ctx, "Worker shutdown completed", map[string]interface{}{
		"instance": w.instance,
	})
	return nil
}

// updateDatabaseStatus updates the worker status in the database
func (w *Worker) updateDatabaseStatus(ctx context.Context) {
	w.mu.RLock()
	dbStatus := &models.WorkerStatus{
		WorkerInstance:     w.instance,
		IsRunning:          w.status.IsRunning,
		IsPaused:           w.status.IsPaused,
		LastHeartbeat:      sql.NullTime{Time: w.timeNow(), Valid: true},
		LastRunStart:       sql.NullTime{Time: w.status.LastRunStart, Valid: !w.status.LastRunStart.IsZero()},
		LastRunFinish:      sql.NullTime{Time: w.status.LastRunFinish, Valid: !w.status.LastRunFinish.IsZero()},
		LastRunError:       sql.NullString{String: w.status.LastRunError, Valid: w.status.LastRunError != ""},
		RemindersSentTotal: w.totalRemindersSent,
	}
	w.mu.RUnlock()

	if err := w.workerService.UpdateWorkerStatus(ctx, w.instance, dbStatus); err != nil {
		w.logger.Error(ctx, "Failed to update worker status in database", err, map[string]interface{}{
			"instance": w.instance,
		})
	}
}

// updateActivity records what the worker is currently doing
func (w *Worker) updateActivity(activity string) {
	w.mu.Lock()
	w.status.CurrentActivity = activity
	w.mu.Unlock()
}

// logActivity appends to the bounded activity log buffer
func (w *Worker) logActivity(level, message string) {
	w.mu.Lock()
	w.activityLogs = append(w.activityLogs, ActivityLog{
		Timestamp: w.timeNow(),
		Level:     level,
		Message:   message,
	})
	if len(w.activityLogs) > maxActivityLogs {
		w.activityLogs = w.activityLogs[len(w.activityLogs)-maxActivityLogs:]
	}
	w.mu.Unlock()
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"evolveedu/internal/models"
	"evolveedu/internal/observability"
	contextutils "evolveedu/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// ErrSettingNotFound is returned when a setting is not found in the database
var ErrSettingNotFound = errors.New("setting not found")

// heartbeatHealthWindow is how recent a heartbeat must be for an instance to
// count as healthy.
const heartbeatHealthWindow = 5 * time.Minute

// WorkerServiceInterface defines the interface for reminder worker management
type WorkerServiceInterface interface {
	// Settings management
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	IsGlobalPaused(ctx context.Context) (bool, error)
	SetGlobalPause(ctx context.Context, paused bool) error

	// Status management
	UpdateWorkerStatus(ctx context.Context, instance string, status *models.WorkerStatus) error
	GetWorkerStatus(ctx context.Context, instance string) (*models.WorkerStatus, error)
	GetAllWorkerStatuses(ctx context.Context) ([]models.WorkerStatus, error)
	UpdateHeartbeat(ctx context.Context, instance string) error
	IsWorkerHealthy(ctx context.Context, instance string) (bool, error)

	// Control operations
	PauseWorker(ctx context.Context, instance string) error
	ResumeWorker(ctx context.Context, instance string) error
	GetWorkerHealth(ctx context.Context) (map[string]interface{}, error)
}

// WorkerService implements reminder worker management operations
type WorkerService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewWorkerServiceWithLogger creates a new WorkerService instance with logger
func NewWorkerServiceWithLogger(db *sql.DB, logger *observability.Logger) *WorkerService {
	return &WorkerService{
		db:     db,
		logger: logger,
	}
}

// GetSetting retrieves a setting value by key
func (s *WorkerService) GetSetting(ctx context.Context, key string) (result0 string, err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "get_setting", attribute.String("setting.key", key))
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(key) == "" {
		return "", contextutils.WrapErrorf(errors.New("invalid setting key"), "setting key cannot be empty")
	}

	var value string
	err = s.db.QueryRowContext(ctx,
		`SELECT setting_value FROM worker_settings WHERE setting_key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", contextutils.WrapErrorf(ErrSettingNotFound, "%s", key)
	}
	if err != nil {
		s.logger.Error(ctx, "Failed to get setting", err, map[string]interface{}{"setting_key": key})
		return "", contextutils.WrapErrorf(err, "failed to get setting %s", key)
	}

	return value, nil
}

// SetSetting updates or creates a setting
func (s *WorkerService) SetSetting(ctx context.Context, key, value string) (err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "set_setting", attribute.String("setting.key", key))
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(key) == "" {
		return contextutils.WrapErrorf(errors.New("invalid setting key"), "setting key cannot be empty")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO worker_settings (setting_key, setting_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (setting_key) DO UPDATE SET
			setting_value = EXCLUDED.setting_value,
			updated_at = EXCLUDED.updated_at
	`, key, value)
	if err != nil {
		s.logger.Error(ctx, "Failed to set setting", err, map[string]interface{}{"setting_key": key, "setting_value": value})
		return contextutils.WrapErrorf(err, "failed to set setting %s", key)
	}

	return nil
}

// IsGlobalPaused checks if reminder sending is globally paused
func (s *WorkerService) IsGlobalPaused(ctx context.Context) (result0 bool, err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "is_global_paused")
	defer observability.FinishSpan(span, &err)

	value, err := s.GetSetting(ctx, "global_pause")
	if err != nil {
		// A missing setting means not paused; initialize it so the admin
		// surface always sees an explicit value
		if errors.Is(err, ErrSettingNotFound) {
			if setErr := s.SetSetting(ctx, "global_pause", "false"); setErr != nil {
				return false, contextutils.WrapError(setErr, "failed to initialize global_pause setting")
			}
			return false, nil
		}
		return false, err
	}

	return value == "true", nil
}

// SetGlobalPause sets the global pause state
func (s *WorkerService) SetGlobalPause(ctx context.Context, paused bool) (err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "set_global_pause", attribute.Bool("paused", paused))
	defer observability.FinishSpan(span, &err)

	value := "false"
	if paused {
		value = "true"
	}
	if err = s.SetSetting(ctx, "global_pause", value); err != nil {
		return err
	}

	s.logger.Info(ctx, "Global pause state updated", map[string]interface{}{"global_paused": paused})
	return nil
}

const workerStatusColumns = `id, worker_instance, is_running, is_paused,
	last_heartbeat, last_run_start, last_run_finish, last_run_error,
	reminders_sent_total, updated_at`

func scanWorkerStatus(row interface{ Scan(...interface{}) error }) (*models.WorkerStatus, error) {
	var status models.WorkerStatus
	err := row.Scan(
		&status.ID, &status.WorkerInstance, &status.IsRunning, &status.IsPaused,
		&status.LastHeartbeat, &status.LastRunStart, &status.LastRunFinish,
		&status.LastRunError, &status.RemindersSentTotal, &status.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// UpdateWorkerStatus upserts the status row for a worker instance
func (s *WorkerService) UpdateWorkerStatus(ctx context.Context, instance string, status *models.WorkerStatus) (err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "update_worker_status",
		attribute.String("worker.instance", instance),
		attribute.Bool("worker.is_running", status.IsRunning),
		attribute.Bool("worker.is_paused", status.IsPaused),
	)
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO worker_status (
			worker_instance, is_running, is_paused,
			last_heartbeat, last_run_start, last_run_finish, last_run_error,
			reminders_sent_total, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (worker_instance) DO UPDATE SET
			is_running = EXCLUDED.is_running,
			is_paused = EXCLUDED.is_paused,
			last_heartbeat = EXCLUDED.last_heartbeat,
			last_run_start = EXCLUDED.last_run_start,
			last_run_finish = EXCLUDED.last_run_finish,
			last_run_error = EXCLUDED.last_run_error,
			reminders_sent_total = EXCLUDED.reminders_sent_total,
			updated_at = EXCLUDED.updated_at
	`, instance, status.IsRunning, status.IsPaused,
		status.LastHeartbeat, status.LastRunStart, status.LastRunFinish,
		status.LastRunError, status.RemindersSentTotal)
	if err != nil {
		s.logger.Error(ctx, "Failed to update worker status", err, map[string]interface{}{"worker_instance": instance})
		return contextutils.WrapErrorf(err, "failed to update worker status for instance %s", instance)
	}

	return nil
}

// GetWorkerStatus retrieves worker status by instance
func (s *WorkerService) GetWorkerStatus(ctx context.Context, instance string) (result0 *models.WorkerStatus, err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "get_worker_status", attribute.String("worker.instance", instance))
	defer observability.FinishSpan(span, &err)

	status, err := scanWorkerStatus(s.db.QueryRowContext(ctx,
		`SELECT `+workerStatusColumns+` FROM worker_status WHERE worker_instance = $1`, instance))
	if err == sql.ErrNoRows {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "worker status not found for instance %s", instance)
	}
	if err != nil {
		s.logger.Error(ctx, "Failed to get worker status", err, map[string]interface{}{"worker_instance": instance})
		return nil, contextutils.WrapErrorf(err, "failed to get worker status for instance %s", instance)
	}

	return status, nil
}

// GetAllWorkerStatuses retrieves all worker statuses
func (s *WorkerService) GetAllWorkerStatuses(ctx context.Context) (result0 []models.WorkerStatus, err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "get_all_worker_statuses")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+workerStatusColumns+` FROM worker_status ORDER BY worker_instance`)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get all worker statuses")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error(ctx, "Failed to close rows", closeErr, map[string]interface{}{})
		}
	}()

	var statuses []models.WorkerStatus
	for rows.Next() {
		status, scanErr := scanWorkerStatus(rows)
		if scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan worker status row")
		}
		statuses = append(statuses, *status)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "error iterating worker status rows")
	}

	return statuses, nil
}

// UpdateHeartbeat updates the heartbeat for a worker instance
func (s *WorkerService) UpdateHeartbeat(ctx context.Context, instance string) (err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "update_heartbeat", attribute.String("worker.instance", instance))
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO worker_status (worker_instance, last_heartbeat, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (worker_instance) DO UPDATE SET
			last_heartbeat = EXCLUDED.last_heartbeat,
			updated_at = EXCLUDED.updated_at
	`, instance)
	if err != nil {
		s.logger.Error(ctx, "Failed to update heartbeat", err, map[string]interface{}{"worker_instance": instance})
		return contextutils.WrapErrorf(err, "failed to update heartbeat for instance %s", instance)
	}

	return nil
}

// IsWorkerHealthy reports whether the instance has a heartbeat within the
// health window. Unknown instances and instances without a heartbeat are
// unhealthy, not errors.
func (s *WorkerService) IsWorkerHealthy(ctx context.Context, instance string) (result0 bool, err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "is_worker_healthy", attribute.String("worker.instance", instance))
	defer observability.FinishSpan(span, &err)

	var lastHeartbeat sql.NullTime
	err = s.db.QueryRowContext(ctx,
		`SELECT last_heartbeat FROM worker_status WHERE worker_instance = $1`, instance).Scan(&lastHeartbeat)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		s.logger.Error(ctx, "Failed to check worker health", err, map[string]interface{}{"worker_instance": instance})
		return false, contextutils.WrapErrorf(err, "failed to check worker health for instance %s", instance)
	}

	if !lastHeartbeat.Valid {
		return false, nil
	}
	return time.Since(lastHeartbeat.Time) < heartbeatHealthWindow, nil
}

func (s *WorkerService) setInstancePause(ctx context.Context, instance string, paused bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE worker_status SET is_paused = $2, updated_at = NOW()
		WHERE worker_instance = $1
	`, instance, paused)
	return err
}

// PauseWorker pauses a specific worker instance
func (s *WorkerService) PauseWorker(ctx context.Context, instance string) (err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "pause_worker", attribute.String("worker.instance", instance))
	defer observability.FinishSpan(span, &err)

	if err = s.setInstancePause(ctx, instance, true); err != nil {
		s.logger.Error(ctx, "Failed to pause worker", err, map[string]interface{}{"worker_instance": instance})
		return contextutils.WrapErrorf(err, "failed to pause worker instance %s", instance)
	}

	s.logger.Info(ctx, "Worker paused", map[string]interface{}{"worker_instance": instance})
	return nil
}

// ResumeWorker resumes a specific worker instance
func (s *WorkerService) ResumeWorker(ctx context.Context, instance string) (err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "resume_worker", attribute.String("worker.instance", instance))
	defer observability.FinishSpan(span, &err)

	if err = s.setInstancePause(ctx, instance, false); err != nil {
		s.logger.Error(ctx, "Failed to resume worker", err, map[string]interface{}{"worker_instance": instance})
		return contextutils.WrapErrorf(err, "failed to resume worker instance %s", instance)
	}

	s.logger.Info(ctx, "Worker resumed", map[string]interface{}{"worker_instance": instance})
	return nil
}

// GetWorkerHealth returns a summary of all worker instances and the global pause state
func (s *WorkerService) GetWorkerHealth(ctx context.Context) (result0 map[string]interface{}, err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "get_worker_health")
	defer observability.FinishSpan(span, &err)

	statuses, err := s.GetAllWorkerStatuses(ctx)
	if err != nil {
		return nil, err
	}

	globalPaused, pauseErr := s.IsGlobalPaused(ctx)
	if pauseErr != nil {
		// degrade to unpaused rather than failing the whole rollup
		s.logger.Error(ctx, "Failed to get global pause state", pauseErr, map[string]interface{}{})
		globalPaused = false
	}

	workerInstances := make([]map[string]interface{}, 0)
	healthyCount := 0

	for _, status := range statuses {
		healthy, healthErr := s.IsWorkerHealthy(ctx, status.WorkerInstance)
		if healthErr != nil {
			s.logger.Error(ctx, "Failed to check health for worker", healthErr, map[string]interface{}{"worker_instance": status.WorkerInstance})
			continue
		}
		if healthy {
			healthyCount++
		}

		var lastRunError string
		if status.LastRunError.Valid {
			lastRunError = status.LastRunError.String
		}

		workerInstances = append(workerInstances, map[string]interface{}{
			"worker_instance":      status.WorkerInstance,
			"healthy":              healthy,
			"is_running":           status.IsRunning,
			"is_paused":            status.IsPaused,
			"last_heartbeat":       status.LastHeartbeat,
			"last_run_error":       lastRunError,
			"reminders_sent_total": status.RemindersSentTotal,
		})
	}

	return map[string]interface{}{
		"global_paused":    globalPaused,
		"worker_instances": workerInstances,
		"total_count":      len(statuses),
		"healthy_count":    healthyCount,
	}, nil
}

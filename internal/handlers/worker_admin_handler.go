package handlers

import (
	"net/http"

	"evolveedu/internal/config"
	"evolveedu/internal/observability"
	"evolveedu/internal/services"
	"evolveedu/internal/worker"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// WorkerAdminHandler exposes the reminder worker's controls and status over
// HTTP. It is mounted by the worker binary, not the API server.
type WorkerAdminHandler struct {
	config        *config.Config
	worker        *worker.Worker
	workerService services.WorkerServiceInterface
	logger        *observability.Logger
}

// NewWorkerAdminHandler creates a new WorkerAdminHandler
func NewWorkerAdminHandler(cfg *config.Config, w *worker.Worker, workerService services.WorkerServiceInterface, logger *observability.Logger) *WorkerAdminHandler {
	return &WorkerAdminHandler{
		config:        cfg,
		worker:        w,
		workerService: workerService,
		logger:        logger,
	}
}

// GetWorkerDetails returns the local worker's status, run history and the
// global pause flag in one payload
func (h *WorkerAdminHandler) GetWorkerDetails(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_worker_details")
	defer observability.FinishSpan(span, nil)

	status := h.worker.GetStatus()
	history := h.worker.GetHistory()

	globalPaused, err := h.workerService.IsGlobalPaused(ctx)
	if err != nil {
		h.logger.Warn(ctx, "Failed to get global pause status", map[string]interface{}{"error": err.Error()})
		globalPaused = false
	}

	span.SetAttributes(
		attribute.String("worker.instance", h.worker.GetInstance()),
		attribute.Bool("worker.global_paused", globalPaused),
	)

	c.JSON(http.StatusOK, gin.H{
		"instance":             h.worker.GetInstance(),
		"status":               status,
		"history":              history,
		"global_paused":        globalPaused,
		"reminders_sent_total": h.worker.TotalRemindersSent(),
	})
}

// GetWorkerStatus returns the local worker's current status
func (h *WorkerAdminHandler) GetWorkerStatus(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_worker_status")
	defer observability.FinishSpan(span, nil)

	c.JSON(http.StatusOK, gin.H{
		"instance": h.worker.GetInstance(),
		"status":   h.worker.GetStatus(),
	})
}

// GetActivityLogs returns the worker's recent activity log entries
func (h *WorkerAdminHandler) GetActivityLogs(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_worker_activity_logs")
	defer observability.FinishSpan(span, nil)

	logs := h.worker.GetActivityLogs()
	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

// PauseWorker pauses the local worker instance
func (h *WorkerAdminHandler) PauseWorker(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "pause_worker",
		attribute.String("worker.instance", h.worker.GetInstance()),
	)
	defer observability.FinishSpan(span, nil)

	h.worker.Pause(ctx)
	c.JSON(http.StatusOK, gin.H{
		"instance": h.worker.GetInstance(),
		"paused":   true,
	})
}

// ResumeWorker resumes the local worker instance
func (h *WorkerAdminHandler) ResumeWorker(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "resume_worker",
		attribute.String("worker.instance", h.worker.GetInstance()),
	)
	defer observability.FinishSpan(span, nil)

	h.worker.Resume(ctx)
	c.JSON(http.StatusOK, gin.H{
		"instance": h.worker.GetInstance(),
		"paused":   false,
	})
}

// TriggerWorkerRun triggers an immediate reminder run
func (h *WorkerAdminHandler) TriggerWorkerRun(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "trigger_worker_run",
		attribute.String("worker.instance", h.worker.GetInstance()),
	)
	defer observability.FinishSpan(span, nil)

	h.worker.TriggerManualRun()
	c.JSON(http.StatusAccepted, gin.H{
		"instance":  h.worker.GetInstance(),
		"triggered": true,
	})
}

// GetWorkerHealth reports heartbeat health across all worker instances
func (h *WorkerAdminHandler) GetWorkerHealth(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_worker_health")
	defer observability.FinishSpan(span, nil)

	health, err := h.workerService.GetWorkerHealth(ctx)
	if err != nil {
		h.logger.Error(ctx, "Failed to get worker health", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get worker health"})
		return
	}

	c.JSON(http.StatusOK, health)
}

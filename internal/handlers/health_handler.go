package handlers

import (
	"database/sql"
	"net/http"

	"evolveedu/internal/inference"
	"evolveedu/internal/observability"
	"evolveedu/internal/version"

	"github.com/gin-gonic/gin"
)

// ConcurrencyStatsProvider exposes the inference client's gate snapshot.
type ConcurrencyStatsProvider interface {
	GetConcurrencyStats() inference.ConcurrencyStats
}

// HealthHandler reports service liveness and dependency health
type HealthHandler struct {
	db     *sql.DB
	stats  ConcurrencyStatsProvider
	logger *observability.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *sql.DB, stats ConcurrencyStatsProvider, logger *observability.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		stats:  stats,
		logger: logger,
	}
}

// Health returns service status, build info, database reachability, and the
// inference concurrency snapshot
func (h *HealthHandler) Health(c *gin.Context) {
	response := gin.H{
		"status":  "ok",
		"service": "evolveedu-backend",
		"version": gin.H{
			"version":    version.Version,
			"commit":     version.Commit,
			"build_time": version.BuildTime,
		},
	}

	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			h.logger.Error(c.Request.Context(), "Health check database ping failed", err)
			response["status"] = "degraded"
			response["database"] = "unreachable"
		} else {
			response["database"] = "ok"
		}
	}

	if h.stats != nil {
		response["inference"] = h.stats.GetConcurrencyStats()
	}

	status := http.StatusOK
	if response["status"] != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}

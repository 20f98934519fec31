// Package main provides the entry point for the evolveedu reminder worker.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evolveedu/internal/config"
	"evolveedu/internal/database"
	"evolveedu/internal/handlers"
	"evolveedu/internal/observability"
	"evolveedu/internal/services"
	"evolveedu/internal/version"
	"evolveedu/internal/worker"

	"github.com/gin-gonic/gin"
)

// fatalIfErr logs the error with context and panics with a consistent message
func fatalIfErr(ctx context.Context, logger *observability.Logger, msg string, err error, fields map[string]interface{}) {
	logger.Error(ctx, msg, err, fields)
	panic(msg + ": " + err.Error())
}

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Setup observability (tracing/metrics/logging)
	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "evolveedu-worker")
	if err != nil {
		panic("Failed to initialize observability: " + err.Error())
	}
	defer func() {
		if shutdownTP, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
			if err := shutdownTP.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
			}
		}
		if mp != nil {
			if err := mp.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
	}()

	logger.Info(ctx, "Starting evolveedu reminder worker", map[string]interface{}{
		"port":     cfg.Server.WorkerPort,
		"logLevel": cfg.Server.LogLevel,
		"debug":    cfg.Server.Debug,
	})

	// Initialize database connection without running migrations (migrations are managed elsewhere)
	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to initialize database", err, map[string]interface{}{"db_url": cfg.Database.URL})
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database", map[string]interface{}{"error": err.Error(), "db_url": cfg.Database.URL})
		}
	}()

	// Initialize services
	workerService := services.NewWorkerServiceWithLogger(db, logger)
	reminderService := services.NewReminderService(db, logger)
	emailService := services.CreateEmailService(cfg, logger)

	// Start the reminder worker
	instance := os.Getenv("WORKER_INSTANCE")
	workerInstance := worker.NewWorker(workerService, reminderService, emailService, instance, cfg, logger)

	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	go workerInstance.Start(workerCtx)

	// Admin handler for worker control endpoints
	adminHandler := handlers.NewWorkerAdminHandler(cfg, workerInstance, workerService, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// HTTP request logging through the observability logger
	router.Use(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= 400:
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	// OpenTelemetry middleware for HTTP tracing with automatic error attributes
	router.Use(observability.GinMiddlewareWithErrorHandling("evolveedu-worker"))

	v1 := router.Group("/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"service":   "worker",
				"version":   version.Version,
				"commit":    version.Commit,
				"buildTime": version.BuildTime,
			})
		})

		adminWorker := v1.Group("/admin/worker")
		{
			adminWorker.GET("/details", adminHandler.GetWorkerDetails)
			adminWorker.GET("/status", adminHandler.GetWorkerStatus)
			adminWorker.GET("/logs", adminHandler.GetActivityLogs)
			adminWorker.GET("/health", adminHandler.GetWorkerHealth)
			adminWorker.POST("/pause", adminHandler.PauseWorker)
			adminWorker.POST("/resume", adminHandler.ResumeWorker)
			adminWorker.POST("/trigger", adminHandler.TriggerWorkerRun)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.WorkerPort,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info(ctx, "Worker server starting", map[string]interface{}{"port": cfg.Server.WorkerPort})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatalIfErr(ctx, logger, "Failed to start worker server", err, map[string]interface{}{"port": cfg.Server.WorkerPort})
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "Worker server shutting down", map[string]interface{}{"service": "worker"})

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, config.WorkerShutdownTimeout)
	defer shutdownCancel()

	// Shutdown the worker first so no reminder run is cut off mid-send
	if err := workerInstance.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "Warning: failed to shutdown worker", map[string]interface{}{"error": err.Error(), "service": "worker"})
	}

	// Then shutdown the server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fatalIfErr(ctx, logger, "Worker server forced to shutdown", err, map[string]interface{}{"service": "worker"})
	}

	logger.Info(ctx, "Worker server exited", map[string]interface{}{"service": "worker"})
}

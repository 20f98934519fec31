// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"evolveedu/internal/config"
	"evolveedu/internal/database"
	"evolveedu/internal/inference"
	"evolveedu/internal/observability"
	"evolveedu/internal/services"
	"evolveedu/internal/services/mailer"
	contextutils "evolveedu/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetNotesService() (services.NotesServiceInterface, error)
	GetQuizService() (services.QuizServiceInterface, error)
	GetRoadmapService() (services.RoadmapServiceInterface, error)
	GetTutorService() (services.TutorServiceInterface, error)
	GetWorkerService() (services.WorkerServiceInterface, error)
	GetReminderService() (services.ReminderServiceInterface, error)
	GetEmailService() (mailer.Mailer, error)
	GetInferenceClient() (*inference.Client, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	// Initialize database
	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	// Initialize core services
	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to initialize services")
	}

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetNotesService returns the study notes service
func (sc *ServiceContainer) GetNotesService() (services.NotesServiceInterface, error) {
	return GetServiceAs[services.NotesServiceInterface](sc, "notes")
}

// GetQuizService returns the quiz service
func (sc *ServiceContainer) GetQuizService() (services.QuizServiceInterface, error) {
	return GetServiceAs[services.QuizServiceInterface](sc, "quiz")
}

// GetRoadmapService returns the roadmap service
func (sc *ServiceContainer) GetRoadmapService() (services.RoadmapServiceInterface, error) {
	return GetServiceAs[services.RoadmapServiceInterface](sc, "roadmap")
}

// GetTutorService returns the tutor service
func (sc *ServiceContainer) GetTutorService() (services.TutorServiceInterface, error) {
	return GetServiceAs[services.TutorServiceInterface](sc, "tutor")
}

// GetWorkerService returns the worker service
func (sc *ServiceContainer) GetWorkerService() (services.WorkerServiceInterface, error) {
	return GetServiceAs[services.WorkerServiceInterface](sc, "worker")
}

// GetReminderService returns the milestone reminder service
func (sc *ServiceContainer) GetReminderService() (services.ReminderServiceInterface, error) {
	return GetServiceAs[services.ReminderServiceInterface](sc, "reminder")
}

// GetEmailService returns the email service
func (sc *ServiceContainer) GetEmailService() (mailer.Mailer, error) {
	return GetServiceAs[mailer.Mailer](sc, "email")
}

// GetInferenceClient returns the shared inference client
func (sc *ServiceContainer) GetInferenceClient() (*inference.Client, error) {
	return GetServiceAs[*inference.Client](sc, "inference")
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup handles shutdown of all services
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error

	// Shutdown lifecycle services first
	for name := range sc.services {
		if lifecycleService, ok := sc.services[name].(interface{ Shutdown(context.Context) error }); ok {
			sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
			if err := lifecycleService.Shutdown(ctx); err != nil {
				sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
				errors = append(errors, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
			} else {
				sc.logger.Info(ctx, "Service shutdown successfully", map[string]interface{}{"service": name})
			}
		}
	}

	// Shutdown remaining resources in reverse order of initialization
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(_ context.Context) error {
	// Shared inference client, gated by the configured concurrency limit
	inferenceClient := inference.NewClient(sc.cfg.Inference, sc.logger)
	sc.services["inference"] = inferenceClient

	// Prompt templates are embedded; parse failures are a build defect
	promptManager, err := services.NewPromptManager()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to load prompt templates")
	}

	// Generation services share the client and prompt manager
	notesService := services.NewNotesService(sc.db, sc.cfg, inferenceClient, promptManager, sc.logger)
	sc.services["notes"] = notesService

	quizService := services.NewQuizService(sc.db, sc.cfg, inferenceClient, promptManager, sc.logger)
	sc.services["quiz"] = quizService

	roadmapService := services.NewRoadmapService(sc.db, sc.cfg, inferenceClient, promptManager, sc.logger)
	sc.services["roadmap"] = roadmapService

	tutorService := services.NewTutorService(sc.db, sc.cfg, inferenceClient, promptManager, sc.logger)
	sc.services["tutor"] = tutorService

	// Worker support services
	workerService := services.NewWorkerServiceWithLogger(sc.db, sc.logger)
	sc.services["worker"] = workerService

	reminderService := services.NewReminderService(sc.db, sc.logger)
	sc.services["reminder"] = reminderService

	// Email service (SMTP when configured, log-only otherwise)
	emailService := services.CreateEmailService(sc.cfg, sc.logger)
	sc.services["email"] = emailService

	return nil
}

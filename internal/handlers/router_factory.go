package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"evolveedu/internal/config"
	"evolveedu/internal/middleware"
	"evolveedu/internal/observability"
	"evolveedu/internal/services"
)

// NewRouter creates the API router with all middleware and routes wired up
func NewRouter(
	cfg *config.Config,
	db *sql.DB,
	notesService services.NotesServiceInterface,
	quizService services.QuizServiceInterface,
	roadmapService services.RoadmapServiceInterface,
	tutorService services.TutorServiceInterface,
	statsProvider ConcurrencyStatsProvider,
	logger *observability.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLoggingMiddleware(logger))

	// Health check endpoint (defined before any middleware)
	healthHandler := NewHealthHandler(db, statsProvider, logger)
	router.GET("/health", healthHandler.Health)

	// OpenTelemetry middleware for HTTP tracing and context propagation
	router.Use(observability.GinMiddlewareWithErrorHandling("evolveedu-backend"))

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With", middleware.LearnerIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = true
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	router.Use(middleware.LearnerIdentity())
	router.Use(middleware.RequestValidationMiddleware(logger))
	router.Use(middleware.ErrorRecoveryMiddleware(logger, nil))

	notesHandler := NewNotesHandler(notesService, cfg, logger)
	quizHandler := NewQuizHandler(quizService, cfg, logger)
	roadmapHandler := NewRoadmapHandler(roadmapService, cfg, logger)
	tutorHandler := NewTutorHandler(tutorService, cfg, logger)

	v1 := router.Group("/v1")
	{
		notes := v1.Group("/notes")
		{
			notes.POST("", notesHandler.CreateNote)
			notes.GET("", notesHandler.ListNotes)
			notes.GET("/:id", notesHandler.GetNote)
			notes.POST("/:id/enhance", notesHandler.EnhanceNote)
			notes.DELETE("/:id", notesHandler.DeleteNote)
		}

		quizzes := v1.Group("/quizzes")
		{
			quizzes.POST("", quizHandler.CreateQuiz)
			quizzes.GET("", quizHandler.ListQuizzes)
			quizzes.GET("/:id", quizHandler.GetQuiz)
			quizzes.POST("/:id/attempts", quizHandler.SubmitAttempt)
			quizzes.GET("/:id/attempts", quizHandler.ListAttempts)
		}

		roadmaps := v1.Group("/roadmaps")
		{
			roadmaps.POST("", roadmapHandler.CreateRoadmap)
			roadmaps.GET("", roadmapHandler.ListRoadmaps)
			roadmaps.POST("/gap-analysis", roadmapHandler.AnalyzeSkillGap)
			roadmaps.GET("/:id", roadmapHandler.GetRoadmap)
			roadmaps.PUT("/:id/milestones/:mid", roadmapHandler.UpdateMilestone)
			roadmaps.GET("/:id/insights", roadmapHandler.GetInsights)
			roadmaps.POST("/:id/resources", roadmapHandler.RecommendResources)
		}

		tutor := v1.Group("/tutor")
		{
			tutor.POST("/sessions", tutorHandler.StartSession)
			tutor.GET("/sessions/:id", tutorHandler.GetSession)
			tutor.POST("/sessions/:id/messages", tutorHandler.SendMessage)
			tutor.POST("/solve", tutorHandler.SolveProblem)
			tutor.POST("/explain", tutorHandler.ExplainConcept)
			tutor.POST("/study-plans", tutorHandler.CreateStudyPlan)
			tutor.GET("/insights", tutorHandler.GetInsights)
		}
	}

	return router
}

// requestLoggingMiddleware logs each HTTP request through the observability
// logger with latency and status fields
func requestLoggingMiddleware(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
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
	}
}

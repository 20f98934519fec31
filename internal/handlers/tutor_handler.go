package handlers

import (
	"net/http"

	"evolveedu/internal/config"
	"evolveedu/internal/middleware"
	"evolveedu/internal/models"
	"evolveedu/internal/observability"
	"evolveedu/internal/services"
	contextutils "evolveedu/internal/utils"

	"github.com/gin-gonic/gin"
)

// TutorHandler handles tutoring session and study-support HTTP requests
type TutorHandler struct {
	tutorService services.TutorServiceInterface
	cfg          *config.Config
	logger       *observability.Logger
}

// NewTutorHandler creates a new TutorHandler
func NewTutorHandler(tutorService services.TutorServiceInterface, cfg *config.Config, logger *observability.Logger) *TutorHandler {
	return &TutorHandler{
		tutorService: tutorService,
		cfg:          cfg,
		logger:       logger,
	}
}

// StartSession opens a new tutoring session
func (h *TutorHandler) StartSession(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "start_tutor_session")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	span.SetAttributes(observability.AttributeLearnerID(learnerID))

	var req models.StartTutorSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, err.Error()))
		return
	}

	session, err := h.tutorService.StartSession(ctx, learnerID, &req)
	if err != nil {
		h.logger.Error(ctx, "Failed to start tutor session", err, map[string]interface{}{
			"learner_id":   learnerID,
			"session_type": req.SessionType,
		})
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetSession returns a session with its message history
func (h *TutorHandler) GetSession(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_tutor_session")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeLearnerID(learnerID), observability.AttributeSessionID(sessionID))

	session, err := h.tutorService.GetSession(ctx, learnerID, sessionID)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// SendMessage sends a student message and returns the tutor's reply
func (h *TutorHandler) SendMessage(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "send_tutor_message")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeLearnerID(learnerID), observability.AttributeSessionID(sessionID))

	var req models.TutorMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, err.Error()))
		return
	}

	reply, err := h.tutorService.SendMessage(ctx, learnerID, sessionID, &req)
	if err != nil {
		h.logger.Error(ctx, "Failed to send tutor message", err, map[string]interface{}{
			"learner_id": learnerID,
			"session_id": sessionID,
		})
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, reply)
}

// SolveProblem returns a structured step-by-step solution
func (h *TutorHandler) SolveProblem(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "solve_problem")
	defer observability.FinishSpan(span, nil)

	var req models.SolveProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, err.Error()))
		return
	}

	solution, err := h.tutorService.SolveProblem(ctx, &req)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, solution)
}

// ExplainConcept returns a structured concept explanation
func (h *TutorHandler) ExplainConcept(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "explain_concept")
	defer observability.FinishSpan(span, nil)

	var req models.ExplainConceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, err.Error()))
		return
	}

	explanation, err := h.tutorService.ExplainConcept(ctx, &req)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, explanation)
}

// CreateStudyPlan builds a day-by-day study plan
func (h *TutorHandler) CreateStudyPlan(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "create_study_plan")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	span.SetAttributes(observability.AttributeLearnerID(learnerID))

	var req models.StudyPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, err.Error()))
		return
	}

	plan, err := h.tutorService.CreateStudyPlan(ctx, learnerID, &req)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// GetInsights analyzes the learner's session history for learning patterns
func (h *TutorHandler) GetInsights(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "tutor_insights")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	span.SetAttributes(observability.AttributeLearnerID(learnerID))

	insights, err := h.tutorService.LearningInsights(ctx, learnerID)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"insights": insights, "count": len(insights)})
}

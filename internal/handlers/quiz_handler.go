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

// QuizHandler handles quiz generation and attempt evaluation requests
type QuizHandler struct {
	quizService services.QuizServiceInterface
	cfg         *config.Config
	logger      *observability.Logger
}

// NewQuizHandler creates a new QuizHandler
func NewQuizHandler(quizService services.QuizServiceInterface, cfg *config.Config, logger *observability.Logger) *QuizHandler {
	return &QuizHandler{
		quizService: quizService,
		cfg:         cfg,
		logger:      logger,
	}
}

// CreateQuiz generates a quiz for a topic
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "create_quiz")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	span.SetAttributes(observability.AttributeLearnerID(learnerID))

	var req models.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, err.Error()))
		return
	}

	quiz, err := h.quizService.GenerateQuiz(ctx, learnerID, &req)
	if err != nil {
		h.logger.Error(ctx, "Failed to generate quiz", err, map[string]interface{}{
			"learner_id": learnerID,
			"topic":      req.Topic,
		})
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, quiz)
}

// GetQuiz returns a single quiz with its questions
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_quiz")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	quizID, ok := pathID(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeLearnerID(learnerID), observability.AttributeQuizID(quizID))

	quiz, err := h.quizService.GetQuiz(ctx, learnerID, quizID)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, quiz)
}

// ListQuizzes returns all of the learner's quizzes
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_quizzes")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	span.SetAttributes(observability.AttributeLearnerID(learnerID))

	quizzes, err := h.quizService.ListQuizzes(ctx, learnerID)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quizzes": quizzes, "count": len(quizzes)})
}

// SubmitAttempt grades a set of answers against a quiz
func (h *QuizHandler) SubmitAttempt(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_attempt")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	quizID, ok := pathID(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeLearnerID(learnerID), observability.AttributeQuizID(quizID))

	var req models.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, err.Error()))
		return
	}

	attempt, err := h.quizService.EvaluateAttempt(ctx, learnerID, quizID, &req)
	if err != nil {
		h.logger.Error(ctx, "Failed to evaluate quiz attempt", err, map[string]interface{}{
			"learner_id": learnerID,
			"quiz_id":    quizID,
		})
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// ListAttempts returns the learner's attempts for a quiz, newest first
func (h *QuizHandler) ListAttempts(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_attempts")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	quizID, ok := pathID(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeLearnerID(learnerID), observability.AttributeQuizID(quizID))

	attempts, err := h.quizService.ListAttempts(ctx, learnerID, quizID)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": attempts, "count": len(attempts)})
}

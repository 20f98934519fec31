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

// RoadmapHandler handles learning roadmap HTTP requests
type RoadmapHandler struct {
	roadmapService services.RoadmapServiceInterface
	cfg            *config.Config
	logger         *observability.Logger
}

// NewRoadmapHandler creates a new RoadmapHandler
func NewRoadmapHandler(roadmapService services.RoadmapServiceInterface, cfg *config.Config, logger *observability.Logger) *RoadmapHandler {
	return &RoadmapHandler{
		roadmapService: roadmapService,
		cfg:            cfg,
		logger:         logger,
	}
}

// CreateRoadmap generates a personalized learning roadmap
func (h *RoadmapHandler) CreateRoadmap(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "create_roadmap")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	span.SetAttributes(observability.AttributeLearnerID(learnerID))

	var req models.CreateRoadmapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, err.Error()))
		return
	}

	roadmap, err := h.roadmapService.GenerateRoadmap(ctx, learnerID, &req)
	if err != nil {
		h.logger.Error(ctx, "Failed to generate roadmap", err, map[string]interface{}{
			"learner_id": learnerID,
			"subject":    req.Subject,
		})
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, roadmap)
}

// GetRoadmap returns a roadmap with its milestones
func (h *RoadmapHandler) GetRoadmap(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_roadmap")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	roadmapID, ok := pathID(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeLearnerID(learnerID), observability.AttributeRoadmapID(roadmapID))

	roadmap, err := h.roadmapService.GetRoadmap(ctx, learnerID, roadmapID)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, roadmap)
}

// ListRoadmaps returns all of the learner's roadmaps
func (h *RoadmapHandler) ListRoadmaps(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_roadmaps")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	span.SetAttributes(observability.AttributeLearnerID(learnerID))

	roadmaps, err := h.roadmapService.ListRoadmaps(ctx, learnerID)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"roadmaps": roadmaps, "count": len(roadmaps)})
}

// AnalyzeSkillGap scores current skills against a target subject
func (h *RoadmapHandler) AnalyzeSkillGap(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "analyze_skill_gap")
	defer observability.FinishSpan(span, nil)

	var req models.GapAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, err.Error()))
		return
	}
	span.SetAttributes(observability.AttributeSubject(req.Subject))

	analysis, err := h.roadmapService.AnalyzeSkillGap(ctx, &req)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// UpdateMilestone updates a milestone's status and recomputes roadmap progress
func (h *RoadmapHandler) UpdateMilestone(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_milestone")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	roadmapID, ok := pathID(c, "id")
	if !ok {
		return
	}
	milestoneID, ok := pathID(c, "mid")
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeLearnerID(learnerID), observability.AttributeRoadmapID(roadmapID))

	var req models.UpdateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, err.Error()))
		return
	}

	roadmap, err := h.roadmapService.UpdateMilestone(ctx, learnerID, roadmapID, milestoneID, &req)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, roadmap)
}

// GetInsights returns progress insights for a roadmap
func (h *RoadmapHandler) GetInsights(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "roadmap_insights")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	roadmapID, ok := pathID(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeLearnerID(learnerID), observability.AttributeRoadmapID(roadmapID))

	insights, err := h.roadmapService.ProgressInsights(ctx, learnerID, roadmapID)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, insights)
}

// RecommendResources suggests learning resources for a set of topics
func (h *RoadmapHandler) RecommendResources(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "recommend_resources")
	defer observability.FinishSpan(span, nil)

	// The roadmap ID scopes the route; recommendations themselves are derived
	// from the requested topics.
	if _, ok := pathID(c, "id"); !ok {
		return
	}

	var req models.ResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, err.Error()))
		return
	}

	recommendations, err := h.roadmapService.RecommendResources(ctx, &req)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, recommendations)
}

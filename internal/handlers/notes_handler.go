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

// NotesHandler handles study-note HTTP requests
type NotesHandler struct {
	notesService services.NotesServiceInterface
	cfg          *config.Config
	logger       *observability.Logger
}

// NewNotesHandler creates a new NotesHandler
func NewNotesHandler(notesService services.NotesServiceInterface, cfg *config.Config, logger *observability.Logger) *NotesHandler {
	return &NotesHandler{
		notesService: notesService,
		cfg:          cfg,
		logger:       logger,
	}
}

// CreateNote generates structured study notes from source material
func (h *NotesHandler) CreateNote(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "create_note")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	span.SetAttributes(observability.AttributeLearnerID(learnerID))

	var req models.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, err.Error()))
		return
	}

	note, err := h.notesService.GenerateStudyNotes(ctx, learnerID, &req)
	if err != nil {
		h.logger.Error(ctx, "Failed to generate study notes", err, map[string]interface{}{
			"learner_id": learnerID,
			"title":      req.Title,
		})
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, note)
}

// EnhanceNote runs the second-pass enrichment over an existing note
func (h *NotesHandler) EnhanceNote(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "enhance_note")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	noteID, ok := pathID(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeLearnerID(learnerID), observability.AttributeNoteID(noteID))

	note, err := h.notesService.EnhanceNotes(ctx, learnerID, noteID)
	if err != nil {
		h.logger.Error(ctx, "Failed to enhance note", err, map[string]interface{}{
			"learner_id": learnerID,
			"note_id":    noteID,
		})
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, note)
}

// GetNote returns a single note owned by the calling learner
func (h *NotesHandler) GetNote(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_note")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	noteID, ok := pathID(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeLearnerID(learnerID), observability.AttributeNoteID(noteID))

	note, err := h.notesService.GetNote(ctx, learnerID, noteID)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, note)
}

// ListNotes returns all of the learner's notes, newest first
func (h *NotesHandler) ListNotes(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_notes")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	span.SetAttributes(observability.AttributeLearnerID(learnerID))

	notes, err := h.notesService.ListNotes(ctx, learnerID)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notes": notes, "count": len(notes)})
}

// DeleteNote removes a note owned by the calling learner
func (h *NotesHandler) DeleteNote(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_note")
	defer observability.FinishSpan(span, nil)

	learnerID := middleware.LearnerID(c)
	noteID, ok := pathID(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeLearnerID(learnerID), observability.AttributeNoteID(noteID))

	if err := h.notesService.DeleteNote(ctx, learnerID, noteID); err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

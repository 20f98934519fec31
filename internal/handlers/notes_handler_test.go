package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"evolveedu/internal/models"
	contextutils "evolveedu/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNote(t *testing.T) {
	notes := &stubNotesService{
		generateFn: func(_ context.Context, learnerID string, req *models.CreateNoteRequest) (*models.Note, error) {
			assert.Equal(t, "learner-1", learnerID)
			assert.Equal(t, "Photosynthesis", req.Title)
			return &models.Note{ID: 7, LearnerID: learnerID, Title: req.Title, SourceType: req.SourceType}, nil
		},
	}
	router := testRouter(t, notes, nil, nil, nil)

	w := doRequest(router, http.MethodPost, "/v1/notes",
		`{"title": "Photosynthesis", "source_type": "text", "source_text": "Plants convert light into energy."}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var note models.Note
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &note))
	assert.Equal(t, 7, note.ID)
	assert.Equal(t, "Photosynthesis", note.Title)
}

func TestCreateNote_InvalidBody(t *testing.T) {
	router := testRouter(t, &stubNotesService{}, nil, nil, nil)

	// source_type outside the enum is rejected before the service is reached
	w := doRequest(router, http.MethodPost, "/v1/notes",
		`{"title": "Photosynthesis", "source_type": "telegram"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "CreateNoteRequest")
}

func TestGetNote_NotFound(t *testing.T) {
	notes := &stubNotesService{
		getFn: func(_ context.Context, _ string, _ int) (*models.Note, error) {
			return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "note not found")
		},
	}
	router := testRouter(t, notes, nil, nil, nil)

	w := doRequest(router, http.MethodGet, "/v1/notes/42", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetNote_InvalidID(t *testing.T) {
	router := testRouter(t, &stubNotesService{}, nil, nil, nil)

	w := doRequest(router, http.MethodGet, "/v1/notes/abc", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListNotes(t *testing.T) {
	notes := &stubNotesService{
		listFn: func(_ context.Context, learnerID string) ([]models.Note, error) {
			return []models.Note{{ID: 1, LearnerID: learnerID}, {ID: 2, LearnerID: learnerID}}, nil
		},
	}
	router := testRouter(t, notes, nil, nil, nil)

	w := doRequest(router, http.MethodGet, "/v1/notes", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Notes []models.Note `json:"notes"`
		Count int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Notes, 2)
}

func TestDeleteNote(t *testing.T) {
	deleted := 0
	notes := &stubNotesService{
		deleteFn: func(_ context.Context, _ string, noteID int) error {
			deleted = noteID
			return nil
		},
	}
	router := testRouter(t, notes, nil, nil, nil)

	w := doRequest(router, http.MethodDelete, "/v1/notes/9", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 9, deleted)
}

func TestEnhanceNote(t *testing.T) {
	notes := &stubNotesService{
		enhanceFn: func(_ context.Context, _ string, noteID int) (*models.Note, error) {
			return &models.Note{
				ID: noteID,
				Enhancements: &models.NoteEnhancement{
					Insights: []string{"Light reactions depend on chlorophyll"},
				},
			}, nil
		},
	}
	router := testRouter(t, notes, nil, nil, nil)

	w := doRequest(router, http.MethodPost, "/v1/notes/3/enhance", "")

	require.Equal(t, http.StatusOK, w.Code)
	var note models.Note
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &note))
	require.NotNil(t, note.Enhancements)
	assert.NotEmpty(t, note.Enhancements.Insights)
}

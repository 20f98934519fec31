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

func TestCreateQuiz(t *testing.T) {
	quiz := &stubQuizService{
		generateFn: func(_ context.Context, learnerID string, req *models.CreateQuizRequest) (*models.Quiz, error) {
			assert.Equal(t, "Cell Biology", req.Topic)
			assert.Equal(t, 5, req.QuestionCount)
			return &models.Quiz{ID: 11, LearnerID: learnerID, Topic: req.Topic, QuestionCount: req.QuestionCount}, nil
		},
	}
	router := testRouter(t, nil, quiz, nil, nil)

	w := doRequest(router, http.MethodPost, "/v1/quizzes",
		`{"topic": "Cell Biology", "question_count": 5}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Quiz
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 11, created.ID)
}

func TestCreateQuiz_QuestionCountOutOfRange(t *testing.T) {
	router := testRouter(t, nil, &stubQuizService{}, nil, nil)

	w := doRequest(router, http.MethodPost, "/v1/quizzes",
		`{"topic": "Cell Biology", "question_count": 50}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitAttempt(t *testing.T) {
	quiz := &stubQuizService{
		evaluateFn: func(_ context.Context, _ string, quizID int, req *models.SubmitAttemptRequest) (*models.QuizAttempt, error) {
			assert.Equal(t, 11, quizID)
			assert.Equal(t, "Mitochondria", req.Answers["1"])
			return &models.QuizAttempt{ID: 3, QuizID: quizID, ScorePercent: 100, Passed: true}, nil
		},
	}
	router := testRouter(t, nil, quiz, nil, nil)

	w := doRequest(router, http.MethodPost, "/v1/quizzes/11/attempts",
		`{"answers": {"1": "Mitochondria"}}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var attempt models.QuizAttempt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &attempt))
	assert.True(t, attempt.Passed)
	assert.InDelta(t, 100.0, attempt.ScorePercent, 0.001)
}

func TestSubmitAttempt_QuizNotFound(t *testing.T) {
	quiz := &stubQuizService{
		evaluateFn: func(_ context.Context, _ string, _ int, _ *models.SubmitAttemptRequest) (*models.QuizAttempt, error) {
			return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "quiz not found")
		},
	}
	router := testRouter(t, nil, quiz, nil, nil)

	w := doRequest(router, http.MethodPost, "/v1/quizzes/999/attempts",
		`{"answers": {"1": "A"}}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAttempts(t *testing.T) {
	quiz := &stubQuizService{
		listAttemptsFn: func(_ context.Context, _ string, quizID int) ([]models.QuizAttempt, error) {
			return []models.QuizAttempt{{ID: 1, QuizID: quizID}}, nil
		},
	}
	router := testRouter(t, nil, quiz, nil, nil)

	w := doRequest(router, http.MethodGet, "/v1/quizzes/11/attempts", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Attempts []models.QuizAttempt `json:"attempts"`
		Count    int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestGetQuiz(t *testing.T) {
	quiz := &stubQuizService{
		getFn: func(_ context.Context, _ string, quizID int) (*models.Quiz, error) {
			return &models.Quiz{
				ID: quizID,
				Questions: []models.QuizQuestion{
					{ID: 1, Text: "What organelle produces ATP?", Type: models.MultipleChoice},
				},
			}, nil
		},
	}
	router := testRouter(t, nil, quiz, nil, nil)

	w := doRequest(router, http.MethodGet, "/v1/quizzes/11", "")

	require.Equal(t, http.StatusOK, w.Code)
	var fetched models.Quiz
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	require.Len(t, fetched.Questions, 1)
	assert.Equal(t, models.MultipleChoice, fetched.Questions[0].Type)
}

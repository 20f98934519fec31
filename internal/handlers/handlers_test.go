package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"evolveedu/internal/config"
	"evolveedu/internal/inference"
	"evolveedu/internal/models"
	"evolveedu/internal/observability"

	"github.com/gin-gonic/gin"
)

// Function-field stubs let each test pin down exactly the service behavior it
// needs without a mocking framework.

type stubNotesService struct {
	generateFn func(ctx context.Context, learnerID string, req *models.CreateNoteRequest) (*models.Note, error)
	enhanceFn  func(ctx context.Context, learnerID string, noteID int) (*models.Note, error)
	getFn      func(ctx context.Context, learnerID string, noteID int) (*models.Note, error)
	listFn     func(ctx context.Context, learnerID string) ([]models.Note, error)
	deleteFn   func(ctx context.Context, learnerID string, noteID int) error
}

func (s *stubNotesService) GenerateStudyNotes(ctx context.Context, learnerID string, req *models.CreateNoteRequest) (*models.Note, error) {
	return s.generateFn(ctx, learnerID, req)
}

func (s *stubNotesService) EnhanceNotes(ctx context.Context, learnerID string, noteID int) (*models.Note, error) {
	return s.enhanceFn(ctx, learnerID, noteID)
}

func (s *stubNotesService) GetNote(ctx context.Context, learnerID string, noteID int) (*models.Note, error) {
	return s.getFn(ctx, learnerID, noteID)
}

func (s *stubNotesService) ListNotes(ctx context.Context, learnerID string) ([]models.Note, error) {
	return s.listFn(ctx, learnerID)
}

func (s *stubNotesService) DeleteNote(ctx context.Context, learnerID string, noteID int) error {
	return s.deleteFn(ctx, learnerID, noteID)
}

type stubQuizService struct {
	generateFn     func(ctx context.Context, learnerID string, req *models.CreateQuizRequest) (*models.Quiz, error)
	getFn          func(ctx context.Context, learnerID string, quizID int) (*models.Quiz, error)
	listFn         func(ctx context.Context, learnerID string) ([]models.Quiz, error)
	evaluateFn     func(ctx context.Context, learnerID string, quizID int, req *models.SubmitAttemptRequest) (*models.QuizAttempt, error)
	listAttemptsFn func(ctx context.Context, learnerID string, quizID int) ([]models.QuizAttempt, error)
}

func (s *stubQuizService) GenerateQuiz(ctx context.Context, learnerID string, req *models.CreateQuizRequest) (*models.Quiz, error) {
	return s.generateFn(ctx, learnerID, req)
}

func (s *stubQuizService) GetQuiz(ctx context.Context, learnerID string, quizID int) (*models.Quiz, error) {
	return s.getFn(ctx, learnerID, quizID)
}

func (s *stubQuizService) ListQuizzes(ctx context.Context, learnerID string) ([]models.Quiz, error) {
	return s.listFn(ctx, learnerID)
}

func (s *stubQuizService) EvaluateAttempt(ctx context.Context, learnerID string, quizID int, req *models.SubmitAttemptRequest) (*models.QuizAttempt, error) {
	return s.evaluateFn(ctx, learnerID, quizID, req)
}

func (s *stubQuizService) ListAttempts(ctx context.Context, learnerID string, quizID int) ([]models.QuizAttempt, error) {
	return s.listAttemptsFn(ctx, learnerID, quizID)
}

type stubRoadmapService struct {
	generateFn   func(ctx context.Context, learnerID string, req *models.CreateRoadmapRequest) (*models.Roadmap, error)
	getFn        func(ctx context.Context, learnerID string, roadmapID int) (*models.Roadmap, error)
	listFn       func(ctx context.Context, learnerID string) ([]models.Roadmap, error)
	gapFn        func(ctx context.Context, req *models.GapAnalysisRequest) (*models.GapAnalysis, error)
	milestoneFn  func(ctx context.Context, learnerID string, roadmapID, milestoneID int, req *models.UpdateMilestoneRequest) (*models.Roadmap, error)
	insightsFn   func(ctx context.Context, learnerID string, roadmapID int) (*models.ProgressInsights, error)
	resourcesFn  func(ctx context.Context, req *models.ResourceRequest) (*models.ResourceRecommendations, error)
}

func (s *stubRoadmapService) GenerateRoadmap(ctx context.Context, learnerID string, req *models.CreateRoadmapRequest) (*models.Roadmap, error) {
	return s.generateFn(ctx, learnerID, req)
}

func (s *stubRoadmapService) GetRoadmap(ctx context.Context, learnerID string, roadmapID int) (*models.Roadmap, error) {
	return s.getFn(ctx, learnerID, roadmapID)
}

func (s *stubRoadmapService) ListRoadmaps(ctx context.Context, learnerID string) ([]models.Roadmap, error) {
	return s.listFn(ctx, learnerID)
}

func (s *stubRoadmapService) AnalyzeSkillGap(ctx context.Context, req *models.GapAnalysisRequest) (*models.GapAnalysis, error) {
	return s.gapFn(ctx, req)
}

func (s *stubRoadmapService) UpdateMilestone(ctx context.Context, learnerID string, roadmapID, milestoneID int, req *models.UpdateMilestoneRequest) (*models.Roadmap, error) {
	return s.milestoneFn(ctx, learnerID, roadmapID, milestoneID, req)
}

func (s *stubRoadmapService) ProgressInsights(ctx context.Context, learnerID string, roadmapID int) (*models.ProgressInsights, error) {
	return s.insightsFn(ctx, learnerID, roadmapID)
}

func (s *stubRoadmapService) RecommendResources(ctx context.Context, req *models.ResourceRequest) (*models.ResourceRecommendations, error) {
	return s.resourcesFn(ctx, req)
}

type stubTutorService struct {
	startFn     func(ctx context.Context, learnerID string, req *models.StartTutorSessionRequest) (*models.TutorSession, error)
	getFn       func(ctx context.Context, learnerID string, sessionID int) (*models.TutorSession, error)
	messageFn   func(ctx context.Context, learnerID string, sessionID int, req *models.TutorMessageRequest) (*models.TutorReply, error)
	solveFn     func(ctx context.Context, req *models.SolveProblemRequest) (*models.ProblemSolution, error)
	explainFn   func(ctx context.Context, req *models.ExplainConceptRequest) (*models.ConceptExplanation, error)
	studyPlanFn func(ctx context.Context, learnerID string, req *models.StudyPlanRequest) (*models.StudyPlan, error)
	insightsFn  func(ctx context.Context, learnerID string) ([]models.LearningInsight, error)
}

func (s *stubTutorService) StartSession(ctx context.Context, learnerID string, req *models.StartTutorSessionRequest) (*models.TutorSession, error) {
	return s.startFn(ctx, learnerID, req)
}

func (s *stubTutorService) GetSession(ctx context.Context, learnerID string, sessionID int) (*models.TutorSession, error) {
	return s.getFn(ctx, learnerID, sessionID)
}

func (s *stubTutorService) SendMessage(ctx context.Context, learnerID string, sessionID int, req *models.TutorMessageRequest) (*models.TutorReply, error) {
	return s.messageFn(ctx, learnerID, sessionID, req)
}

func (s *stubTutorService) SolveProblem(ctx context.Context, req *models.SolveProblemRequest) (*models.ProblemSolution, error) {
	return s.solveFn(ctx, req)
}

func (s *stubTutorService) ExplainConcept(ctx context.Context, req *models.ExplainConceptRequest) (*models.ConceptExplanation, error) {
	return s.explainFn(ctx, req)
}

func (s *stubTutorService) CreateStudyPlan(ctx context.Context, learnerID string, req *models.StudyPlanRequest) (*models.StudyPlan, error) {
	return s.studyPlanFn(ctx, learnerID, req)
}

func (s *stubTutorService) LearningInsights(ctx context.Context, learnerID string) ([]models.LearningInsight, error) {
	return s.insightsFn(ctx, learnerID)
}

type stubStatsProvider struct {
	stats inference.ConcurrencyStats
}

func (s *stubStatsProvider) GetConcurrencyStats() inference.ConcurrencyStats {
	return s.stats
}

func handlerTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			SessionSecret: "test-secret",
			CORSOrigins:   []string{"http://localhost:3000"},
		},
	}
}

func handlerTestLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

// testRouter wires a full router against the provided stubs. Nil stubs are
// fine for endpoints a test does not touch.
func testRouter(t *testing.T, notes *stubNotesService, quiz *stubQuizService, roadmap *stubRoadmapService, tutor *stubTutorService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(handlerTestConfig(), nil, notes, quiz, roadmap, tutor,
		&stubStatsProvider{stats: inference.ConcurrencyStats{MaxConcurrent: 5}}, handlerTestLogger())
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-Learner-ID", "learner-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

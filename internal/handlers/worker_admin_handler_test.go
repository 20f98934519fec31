package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"evolveedu/internal/config"
	"evolveedu/internal/models"
	"evolveedu/internal/services"
	contextutils "evolveedu/internal/utils"
	"evolveedu/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminStubWorkerService struct {
	globalPaused bool
	paused       map[string]bool
}

func newAdminStubWorkerService() *adminStubWorkerService {
	return &adminStubWorkerService{paused: make(map[string]bool)}
}

func (s *adminStubWorkerService) GetSetting(_ context.Context, _ string) (string, error) {
	return "", services.ErrSettingNotFound
}

func (s *adminStubWorkerService) SetSetting(_ context.Context, _, _ string) error { return nil }

func (s *adminStubWorkerService) IsGlobalPaused(_ context.Context) (bool, error) {
	return s.globalPaused, nil
}

func (s *adminStubWorkerService) SetGlobalPause(_ context.Context, paused bool) error {
	s.globalPaused = paused
	return nil
}

func (s *adminStubWorkerService) UpdateWorkerStatus(_ context.Context, _ string, _ *models.WorkerStatus) error {
	return nil
}

func (s *adminStubWorkerService) GetWorkerStatus(_ context.Context, instance string) (*models.WorkerStatus, error) {
	if _, ok := s.paused[instance]; !ok {
		return nil, contextutils.WrapError(contextutils.ErrRecordNotFound, "worker status not found")
	}
	return &models.WorkerStatus{WorkerInstance: instance, IsPaused: s.paused[instance]}, nil
}

func (s *adminStubWorkerService) GetAllWorkerStatuses(_ context.Context) ([]models.WorkerStatus, error) {
	return nil, nil
}

func (s *adminStubWorkerService) UpdateHeartbeat(_ context.Context, _ string) error { return nil }

func (s *adminStubWorkerService) IsWorkerHealthy(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (s *adminStubWorkerService) PauseWorker(_ context.Context, instance string) error {
	s.paused[instance] = true
	return nil
}

func (s *adminStubWorkerService) ResumeWorker(_ context.Context, instance string) error {
	s.paused[instance] = false
	return nil
}

func (s *adminStubWorkerService) GetWorkerHealth(_ context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"global_paused": s.globalPaused,
		"total_count":   1,
		"healthy_count": 1,
	}, nil
}

func workerAdminTestRouter(t *testing.T) (*gin.Engine, *adminStubWorkerService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	workerService := newAdminStubWorkerService()
	w := worker.NewWorker(workerService, nil, nil, "admin-test", &config.Config{}, handlerTestLogger())
	handler := NewWorkerAdminHandler(&config.Config{}, w, workerService, handlerTestLogger())

	router := gin.New()
	admin := router.Group("/v1/admin/worker")
	{
		admin.GET("/details", handler.GetWorkerDetails)
		admin.GET("/status", handler.GetWorkerStatus)
		admin.GET("/logs", handler.GetActivityLogs)
		admin.POST("/pause", handler.PauseWorker)
		admin.POST("/resume", handler.ResumeWorker)
		admin.POST("/trigger", handler.TriggerWorkerRun)
		admin.GET("/health", handler.GetWorkerHealth)
	}
	return router, workerService
}

func doAdminRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWorkerAdmin_Details(t *testing.T) {
	router, _ := workerAdminTestRouter(t)

	rec := doAdminRequest(router, http.MethodGet, "/v1/admin/worker/details")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "admin-test", resp["instance"])
	assert.Equal(t, false, resp["global_paused"])
	assert.Contains(t, resp, "status")
	assert.Contains(t, resp, "reminders_sent_total")
}

func TestWorkerAdmin_PauseResume(t *testing.T) {
	router, workerService := workerAdminTestRouter(t)

	rec := doAdminRequest(router, http.MethodPost, "/v1/admin/worker/pause")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, workerService.paused["admin-test"])

	rec = doAdminRequest(router, http.MethodPost, "/v1/admin/worker/resume")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, workerService.paused["admin-test"])
}

func TestWorkerAdmin_Trigger(t *testing.T) {
	router, _ := workerAdminTestRouter(t)

	rec := doAdminRequest(router, http.MethodPost, "/v1/admin/worker/trigger")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["triggered"])
}

func TestWorkerAdmin_Health(t *testing.T) {
	router, _ := workerAdminTestRouter(t)

	rec := doAdminRequest(router, http.MethodGet, "/v1/admin/worker/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "global_paused")
	assert.Contains(t, resp, "total_count")
}

func TestWorkerAdmin_StatusAndLogs(t *testing.T) {
	router, _ := workerAdminTestRouter(t)

	rec := doAdminRequest(router, http.MethodGet, "/v1/admin/worker/status")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doAdminRequest(router, http.MethodGet, "/v1/admin/worker/logs")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "logs")
	assert.Contains(t, resp, "count")
}

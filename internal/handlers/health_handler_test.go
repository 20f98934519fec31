package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"evolveedu/internal/inference"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHealthHandler(nil, &stubStatsProvider{
		stats: inference.ConcurrencyStats{ActiveRequests: 1, MaxConcurrent: 5, TotalRequests: 42},
	}, handlerTestLogger())
	router.GET("/health", handler.Health)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "evolveedu-backend", body["service"])

	version, ok := body["version"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, version["version"])

	stats, ok := body["inference"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 5, stats["max_concurrent"], 0.001)
	assert.InDelta(t, 42, stats["total_requests"], 0.001)

	// No database wired, so no database key in the response
	_, hasDB := body["database"]
	assert.False(t, hasDB)
}

func TestHealth_ThroughRouter(t *testing.T) {
	router := testRouter(t, nil, nil, nil, nil)

	w := doRequest(router, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

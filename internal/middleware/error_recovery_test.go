package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"evolveedu/internal/config"
	"evolveedu/internal/observability"
	contextutils "evolveedu/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func middlewareTestLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func TestDefaultErrorRecoveryConfig(t *testing.T) {
	config := DefaultErrorRecoveryConfig()

	assert.False(t, config.EnableCircuitBreaker)
	assert.Equal(t, 5, config.CircuitBreakerThreshold)
	assert.Equal(t, 30*time.Second, config.CircuitBreakerTimeout)
}

func TestErrorRecoveryMiddleware_PanicRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorRecoveryMiddleware(middlewareTestLogger(), nil))

	router.GET("/panic", func(_ *gin.Context) {
		panic("test panic")
	})

	req, _ := http.NewRequest("GET", "/panic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestErrorRecoveryMiddleware_NormalRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorRecoveryMiddleware(middlewareTestLogger(), nil))

	router.GET("/normal", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	req, _ := http.NewRequest("GET", "/normal", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCircuitBreaker_CanExecute(t *testing.T) {
	config := &ErrorRecoveryConfig{
		CircuitBreakerThreshold: 2,
		CircuitBreakerTimeout:   50 * time.Millisecond,
	}
	cb := newCircuitBreaker(config)

	assert.True(t, cb.canExecute())

	cb.recordFailure()
	assert.True(t, cb.canExecute())

	// Second failure hits the threshold and opens the circuit.
	cb.recordFailure()
	assert.Equal(t, circuitOpen, cb.state)
	assert.False(t, cb.canExecute())

	// After the timeout the circuit half-opens and allows a probe.
	time.Sleep(60 * time.Millisecond)
	assert.True(t, cb.canExecute())
	assert.Equal(t, circuitHalfOpen, cb.state)

	cb.recordSuccess()
	assert.Equal(t, circuitClosed, cb.state)
	assert.Zero(t, cb.failures)
}

func TestErrorRecoveryMiddleware_CircuitBreakerShedsLoad(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorRecoveryMiddleware(middlewareTestLogger(), &ErrorRecoveryConfig{
		EnableCircuitBreaker:    true,
		CircuitBreakerThreshold: 2,
		CircuitBreakerTimeout:   time.Minute,
	}))

	router.GET("/failing", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest("GET", "/failing", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	}

	// Circuit is open now; the next request is shed with 503.
	req, _ := http.NewRequest("GET", "/failing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleAppError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name: "not found",
			err: contextutils.NewAppError(contextutils.ErrorCodeRecordNotFound,
				contextutils.SeverityWarn, "Roadmap not found", ""),
			wantStatus: http.StatusNotFound,
		},
		{
			name: "invalid input",
			err: contextutils.NewAppError(contextutils.ErrorCodeInvalidInput,
				contextutils.SeverityWarn, "Bad request", ""),
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "inference unavailable",
			err: contextutils.NewAppError(contextutils.ErrorCodeInferenceUnavailable,
				contextutils.SeverityError, "Model endpoint unreachable", ""),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "inference at capacity",
			err: contextutils.NewAppError(contextutils.ErrorCodeInferenceAtCapacity,
				contextutils.SeverityWarn, "Too many concurrent generations", ""),
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "plain error falls back to 500",
			err:        assert.AnError,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request, _ = http.NewRequest("GET", "/", nil)

			HandleAppError(c, tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

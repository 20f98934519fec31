package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"evolveedu/internal/config"
	"evolveedu/internal/observability"
	contextutils "evolveedu/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func testConfig(baseURL string) config.InferenceConfig {
	return config.InferenceConfig{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		RequestTimeout: 2 * time.Second,
		MaxConcurrent:  2,
	}
}

func TestGenerate_SuccessListResponse(t *testing.T) {
	var gotAuth string
	var gotBody generationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"generated_text": "Cell structure is the basic unit of life."}]`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), testLogger())
	text, err := client.Generate(context.Background(), "google/flan-t5-large", "Explain cell structure", DefaultParams(1000))

	require.NoError(t, err)
	assert.Equal(t, "Cell structure is the basic unit of life.", text)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "Explain cell structure", gotBody.Inputs)
	assert.Equal(t, float64(1000), gotBody.Parameters["max_new_tokens"])
	assert.InDelta(t, 0.7, gotBody.Parameters["temperature"], 0.0001)
	assert.InDelta(t, 0.9, gotBody.Parameters["top_p"], 0.0001)
	assert.Equal(t, true, gotBody.Parameters["do_sample"])
	assert.Equal(t, false, gotBody.Parameters["return_full_text"])
}

func TestGenerate_SuccessObjectResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"generated_text": "object shaped reply"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), testLogger())
	text, err := client.Generate(context.Background(), "some/model", "prompt", DefaultParams(500))

	require.NoError(t, err)
	assert.Equal(t, "object shaped reply", text)
}

func TestGenerate_ExtraParametersMerged(t *testing.T) {
	var gotBody generationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"generated_text": "hi"}]`))
	}))
	defer server.Close()

	params := DefaultParams(500)
	params.Extra = map[string]interface{}{"pad_token_id": config.DialoGPTPadTokenID}

	client := NewClient(testConfig(server.URL), testLogger())
	_, err := client.Generate(context.Background(), "microsoft/DialoGPT-large", "hello", params)

	require.NoError(t, err)
	assert.Equal(t, float64(config.DialoGPTPadTokenID), gotBody.Parameters["pad_token_id"])
}

func TestGenerate_ModelLoadingRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"generated_text": "finally loaded"}]`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), testLogger())
	text, err := client.Generate(context.Background(), "some/model", "prompt", DefaultParams(500))

	require.NoError(t, err)
	assert.Equal(t, "finally loaded", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerate_ModelLoadingExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), testLogger())
	_, err := client.Generate(context.Background(), "some/model", "prompt", DefaultParams(500))

	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInferenceUnavailable))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerate_RejectionFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RetryDelay = time.Second // a retry would be visible as latency

	client := NewClient(cfg, testLogger())
	start := time.Now()
	_, err := client.Generate(context.Background(), "some/model", "prompt", DefaultParams(500))

	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInferenceUnavailable))
	assert.Equal(t, int32(1), calls.Load(), "non-503 rejection must not be retried")
	assert.Less(t, time.Since(start), 500*time.Millisecond, "rejection must not sleep")
}

func TestGenerate_TransportFailureCollapsesToSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // every attempt now fails at the transport layer

	client := NewClient(testConfig(server.URL), testLogger())
	_, err := client.Generate(context.Background(), "some/model", "prompt", DefaultParams(500))

	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInferenceUnavailable),
		"transport faults must never surface past the client boundary")
}

func TestGenerate_EmptyResponseBodyIsSentinel(t *testing.T) {
	for name, body := range map[string]string{
		"empty_array":  `[]`,
		"empty_object": `{}`,
		"not_json":     `<html>oops</html>`,
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			client := NewClient(testConfig(server.URL), testLogger())
			_, err := client.Generate(context.Background(), "some/model", "prompt", DefaultParams(500))

			require.Error(t, err)
			assert.True(t, errors.Is(err, contextutils.ErrInferenceUnavailable))
		})
	}
}

func TestGenerate_EmptyPromptAndModelRejected(t *testing.T) {
	client := NewClient(testConfig("http://localhost:0"), testLogger())

	_, err := client.Generate(context.Background(), "", "prompt", DefaultParams(500))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInferenceConfigInvalid))

	_, err = client.Generate(context.Background(), "some/model", "", DefaultParams(500))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInferenceConfigInvalid))
}

func TestGenerate_AtCapacityFailsAfterBoundedWait(t *testing.T) {
	cfg := testConfig("http://localhost:0")
	cfg.MaxConcurrent = 1

	client := NewClient(cfg, testLogger())
	client.semaphore <- struct{}{} // saturate the gate

	start := time.Now()
	_, err := client.Generate(context.Background(), "some/model", "prompt", DefaultParams(500))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInferenceAtCapacity))
	assert.GreaterOrEqual(t, time.Since(start), slotAcquireWait,
		"a saturated gate grants the bounded wait before failing")
}

func TestGenerate_AtCapacitySlotFreedDuringWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"generated_text": "made it through"}]`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxConcurrent = 1

	client := NewClient(cfg, testLogger())
	client.semaphore <- struct{}{} // saturate the gate

	go func() {
		time.Sleep(10 * time.Millisecond)
		<-client.semaphore // an in-flight request finishes
	}()

	text, err := client.Generate(context.Background(), "some/model", "prompt", DefaultParams(500))
	require.NoError(t, err)
	assert.Equal(t, "made it through", text)
}

func TestGenerate_AtCapacityCancelledDuringWait(t *testing.T) {
	cfg := testConfig("http://localhost:0")
	cfg.MaxConcurrent = 1

	client := NewClient(cfg, testLogger())
	client.semaphore <- struct{}{} // saturate the gate

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.Generate(ctx, "some/model", "prompt", DefaultParams(500))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInferenceUnavailable))
	assert.False(t, errors.Is(err, contextutils.ErrInferenceAtCapacity),
		"cancellation is reported as unavailable, not at-capacity")
}

func TestGenerate_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RetryDelay = 10 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	client := NewClient(cfg, testLogger())
	start := time.Now()
	_, err := client.Generate(ctx, "some/model", "prompt", DefaultParams(500))

	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInferenceUnavailable))
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must interrupt the backoff sleep")
}

func TestExtractGeneratedText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"list", `[{"generated_text": "alpha"}, {"generated_text": "beta"}]`, "alpha"},
		{"object", `{"generated_text": "gamma"}`, "gamma"},
		{"empty_list", `[]`, ""},
		{"missing_field", `{"other": 1}`, ""},
		{"garbage", `not json`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractGeneratedText([]byte(tt.raw)))
		})
	}
}

func TestGetConcurrencyStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"generated_text": "ok"}]`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), testLogger())
	_, err := client.Generate(context.Background(), "some/model", "prompt", DefaultParams(500))
	require.NoError(t, err)

	stats := client.GetConcurrencyStats()
	assert.Equal(t, 0, stats.ActiveRequests)
	assert.Equal(t, 2, stats.MaxConcurrent)
	assert.Equal(t, int64(1), stats.TotalRequests)
}

func TestShutdown_DrainsAndCompletes(t *testing.T) {
	client := NewClient(testConfig("http://localhost:0"), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, client.Shutdown(ctx))

	_, err := client.Generate(context.Background(), "some/model", "prompt", DefaultParams(500))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInferenceUnavailable))
}

func TestShutdown_RejectsNewRequestsDuringDrain(t *testing.T) {
	client := NewClient(testConfig("http://localhost:0"), testLogger())

	// Hold a slot open so the drain loop keeps waiting.
	require.NoError(t, client.acquireSlot(context.Background()))

	done := make(chan error, 1)
	go func() { done <- client.Shutdown(context.Background()) }()

	require.Eventually(t, client.isShutdown, time.Second, 5*time.Millisecond,
		"shutdown must be observable before the drain completes")

	_, err := client.Generate(context.Background(), "some/model", "prompt", DefaultParams(500))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contextutils.ErrInferenceUnavailable))

	client.releaseSlot(context.Background())
	require.NoError(t, <-done)
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams(800)
	assert.Equal(t, 800, p.MaxNewTokens)
	assert.InDelta(t, 0.7, p.Temperature, 0.0001)
	assert.InDelta(t, 0.9, p.TopP, 0.0001)
	assert.True(t, p.DoSample)
	assert.Nil(t, p.Extra)
}

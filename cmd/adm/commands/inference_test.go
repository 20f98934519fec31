package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"evolveedu/internal/config"
	"evolveedu/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferencePing(t *testing.T) {
	var gotBody struct {
		Inputs     string                 `json:"inputs"`
		Parameters map[string]interface{} `json:"parameters"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"generated_text": "pong"}]`))
	}))
	defer server.Close()

	cfg := &config.Config{
		Inference: config.InferenceConfig{
			BaseURL:        server.URL,
			APIKey:         "test-key", // set so the command does not prompt
			MaxRetries:     3,
			RetryDelay:     time.Millisecond,
			RequestTimeout: 2 * time.Second,
			MaxConcurrent:  2,
		},
	}
	cfg.Domains.Notes.Model = "test/notes-model"
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	cmd := InferenceCommands(cfg, logger)
	cmd.SetArgs([]string{"ping"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "Reply with the word pong.", gotBody.Inputs)
	assert.Equal(t, float64(8), gotBody.Parameters["max_new_tokens"],
		"the probe keeps its token budget minimal")
}

// Package inference provides the generic client for the hosted text-generation
// endpoint shared by every domain module. One call sends a prompt to a model
// and returns raw generated text; every upstream failure mode collapses into
// the contextutils.ErrInferenceUnavailable sentinel so the caller's fallback
// generator uniformly takes over.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"evolveedu/internal/config"
	"evolveedu/internal/observability"
	contextutils "evolveedu/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GenerationParams are the per-request sampling parameters sent to the endpoint.
type GenerationParams struct {
	MaxNewTokens int
	Temperature  float64
	TopP         float64
	DoSample     bool
	// Extra holds model-specific parameters merged into the request
	// (e.g. pad_token_id for the conversational tutor model).
	Extra map[string]interface{}
}

// DefaultParams returns the sampling parameters shared by every domain with
// the given token budget.
func DefaultParams(maxNewTokens int) GenerationParams {
	return GenerationParams{
		MaxNewTokens: maxNewTokens,
		Temperature:  config.DefaultTemperature,
		TopP:         config.DefaultTopP,
		DoSample:     true,
	}
}

// ConcurrencyStats is a snapshot of the client's concurrency gate for the
// health endpoint.
type ConcurrencyStats struct {
	ActiveRequests int   `json:"active_requests"`
	MaxConcurrent  int   `json:"max_concurrent"`
	TotalRequests  int64 `json:"total_requests"`
}

// Generator is the behavior domain services depend on; tests substitute stubs.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, params GenerationParams) (string, error)
}

// Client posts prompts to a hosted text-generation endpoint with bounded
// retry on transient unavailability.
type Client struct {
	httpClient *http.Client
	cfg        config.InferenceConfig
	logger     *observability.Logger

	// Concurrency control
	semaphore chan struct{}

	// Metrics
	totalRequests  int64
	activeRequests int
	statsMu        sync.RWMutex

	// Shutdown control
	shutdownCtx context.Context
	shutdownMu  sync.RWMutex
}

// NewClient creates a new inference client. The configuration is passed
// explicitly; nothing is read from ambient process state.
func NewClient(cfg config.InferenceConfig, logger *observability.Logger) *Client {
	httpClient := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
		),
	}

	logger.Debug(context.Background(), "Inference client created", map[string]interface{}{
		"base_url":       cfg.BaseURL,
		"api_key":        contextutils.MaskAPIKey(cfg.APIKey),
		"max_concurrent": cfg.MaxConcurrent,
	})

	return &Client{
		httpClient:  httpClient,
		cfg:         cfg,
		logger:      logger,
		semaphore:   make(chan struct{}, cfg.MaxConcurrent),
		shutdownCtx: context.Background(),
	}
}

// generationRequest is the wire shape the endpoint expects.
type generationRequest struct {
	Inputs     string                 `json:"inputs"`
	Parameters map[string]interface{} `json:"parameters"`
}

// generationChunk is one element of the endpoint's response. The body is
// either a non-empty array of these or a single such object.
type generationChunk struct {
	GeneratedText string `json:"generated_text"`
}

// Generate sends the prompt to the given model and returns the raw generated
// text. On any unrecoverable upstream failure it returns an AppError with
// code INFERENCE_UNAVAILABLE; callers test with errors.Is against
// contextutils.ErrInferenceUnavailable and never see transport faults.
//
// Retry policy: HTTP 503 sleeps delay*attempt (1-based) and retries up to
// MaxRetries attempts; transport errors sleep delay and retry; any other
// non-200 status aborts immediately with no sleep.
func (c *Client) Generate(ctx context.Context, model, prompt string, params GenerationParams) (result0 string, err error) {
	ctx, span := observability.TraceInferenceFunction(ctx, "generate",
		observability.AttributeModel(model),
		attribute.Int("prompt.length", len(prompt)),
		attribute.Int("params.max_new_tokens", params.MaxNewTokens),
	)
	defer func() {
		if err != nil {
			span.RecordError(err, trace.WithStackTrace(true))
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if model == "" {
		span.SetAttributes(attribute.String("call.result", "empty_model"))
		return "", contextutils.WrapError(contextutils.ErrInferenceConfigInvalid, "model is required")
	}
	if prompt == "" {
		span.SetAttributes(attribute.String("call.result", "empty_prompt"))
		return "", contextutils.WrapError(contextutils.ErrInferenceConfigInvalid, "prompt cannot be empty")
	}

	if c.isShutdown() {
		span.SetAttributes(attribute.String("call.result", "shutting_down"))
		return "", contextutils.WrapError(contextutils.ErrInferenceUnavailable, "inference client is shutting down")
	}

	if err := c.acquireSlot(ctx); err != nil {
		span.SetAttributes(attribute.String("call.result", "at_capacity"))
		return "", err
	}
	defer c.releaseSlot(ctx)

	body, err := json.Marshal(c.buildRequest(prompt, params))
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "marshal_failed"))
		return "", contextutils.WrapErrorf(err, "failed to marshal generation request")
	}

	url := c.cfg.BaseURL + "/" + model

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		span.SetAttributes(observability.AttributeAttempt(attempt))

		text, status, callErr := c.doRequest(ctx, url, body)

		switch {
		case callErr != nil:
			// Transport fault: sleep the flat delay and retry. The final
			// attempt's fault never propagates past the client boundary.
			c.logger.Warn(ctx, "Inference request failed", map[string]interface{}{
				"model":   model,
				"attempt": attempt,
				"error":   callErr.Error(),
			})
			if attempt == c.cfg.MaxRetries {
				span.SetAttributes(attribute.String("call.result", "transport_failed"))
				return "", contextutils.NewAppErrorWithCause(
					contextutils.ErrorCodeInferenceUnavailable,
					contextutils.SeverityWarn,
					"Inference endpoint unavailable",
					fmt.Sprintf("transport failure after %d attempts", attempt),
					callErr,
				)
			}
			if err := c.sleep(ctx, c.cfg.RetryDelay); err != nil {
				span.SetAttributes(attribute.String("call.result", "cancelled"))
				return "", contextutils.WrapErrorf(contextutils.ErrInferenceUnavailable, "generation cancelled: %w", err)
			}

		case status == http.StatusServiceUnavailable:
			// Model is loading: back off delay*attempt and retry.
			c.logger.Info(ctx, "Inference model loading, retrying", map[string]interface{}{
				"model":   model,
				"attempt": attempt,
			})
			if attempt == c.cfg.MaxRetries {
				span.SetAttributes(attribute.String("call.result", "retry_budget_exhausted"))
				return "", contextutils.WrapErrorf(contextutils.ErrInferenceUnavailable, "model still loading after %d attempts", attempt)
			}
			if err := c.sleep(ctx, c.cfg.RetryDelay*time.Duration(attempt)); err != nil {
				span.SetAttributes(attribute.String("call.result", "cancelled"))
				return "", contextutils.WrapErrorf(contextutils.ErrInferenceUnavailable, "generation cancelled: %w", err)
			}

		case status != http.StatusOK:
			// Upstream rejection: abort immediately, no sleep, no retry.
			c.logger.Warn(ctx, "Inference endpoint rejected request", map[string]interface{}{
				"model":       model,
				"status_code": status,
			})
			span.SetAttributes(attribute.String("call.result", "rejected"), attribute.Int("status_code", status))
			return "", contextutils.WrapErrorf(contextutils.ErrInferenceUnavailable, "endpoint rejected request with status %d", status)

		default:
			if text == "" {
				span.SetAttributes(attribute.String("call.result", "empty_text"))
				return "", contextutils.NewAppErrorWithCause(
					contextutils.ErrorCodeInferenceUnavailable,
					contextutils.SeverityWarn,
					"Inference endpoint unavailable",
					"response contained no generated text",
					contextutils.ErrInferenceResponseInvalid,
				)
			}
			span.SetAttributes(attribute.String("call.result", "success"), attribute.Int("text.length", len(text)))
			return text, nil
		}
	}

	span.SetAttributes(attribute.String("call.result", "retry_budget_exhausted"))
	return "", contextutils.WrapErrorf(contextutils.ErrInferenceUnavailable, "retry budget of %d attempts exhausted", c.cfg.MaxRetries)
}

// buildRequest assembles the wire body for one generation call.
func (c *Client) buildRequest(prompt string, params GenerationParams) generationRequest {
	parameters := map[string]interface{}{
		"max_new_tokens":   params.MaxNewTokens,
		"temperature":      params.Temperature,
		"top_p":            params.TopP,
		"do_sample":        params.DoSample,
		"return_full_text": false,
	}
	for k, v := range params.Extra {
		parameters[k] = v
	}
	return generationRequest{Inputs: prompt, Parameters: parameters}
}

// doRequest performs a single POST attempt. It returns the extracted text on
// HTTP 200, the status code otherwise, or a transport error.
func (c *Client) doRequest(ctx context.Context, url string, body []byte) (text string, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	// An empty key still sends an empty bearer; the endpoint's rejection
	// follows the generic non-200 path.
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	c.incrementTotalRequests()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn(ctx, "Failed to close response body", map[string]interface{}{"error": cerr.Error()})
		}
	}()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", resp.StatusCode, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}

	return extractGeneratedText(raw), http.StatusOK, nil
}

// extractGeneratedText handles the endpoint's list-or-object response shape:
// a non-empty JSON array of {"generated_text": ...} (take the first element)
// or a single such object. Anything else yields "".
func extractGeneratedText(raw []byte) string {
	var list []generationChunk
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return ""
		}
		return list[0].GeneratedText
	}

	var single generationChunk
	if err := json.Unmarshal(raw, &single); err == nil {
		return single.GeneratedText
	}

	return ""
}

// sleep blocks for d or until the context is cancelled.
func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// slotAcquireWait bounds how long a caller on a saturated gate waits for an
// in-flight request to release a slot before failing with at-capacity.
const slotAcquireWait = 100 * time.Millisecond

// acquireSlot acquires a concurrency slot. A saturated gate grants callers a
// short context-bounded wait rather than queueing them behind a slow upstream.
func (c *Client) acquireSlot(ctx context.Context) error {
	claim := func() {
		c.statsMu.Lock()
		c.activeRequests++
		c.statsMu.Unlock()
	}

	select {
	case c.semaphore <- struct{}{}:
		claim()
		return nil
	default:
	}

	waitCtx, cancel := context.WithTimeout(ctx, slotAcquireWait)
	defer cancel()

	select {
	case c.semaphore <- struct{}{}:
		claim()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return contextutils.WrapErrorf(contextutils.ErrInferenceUnavailable, "cancelled while waiting for inference slot: %w", ctx.Err())
		}
		return contextutils.WrapErrorf(contextutils.ErrInferenceAtCapacity, "inference client at capacity (%d concurrent requests)", c.cfg.MaxConcurrent)
	}
}

// releaseSlot releases a concurrency slot.
func (c *Client) releaseSlot(ctx context.Context) {
	select {
	case <-c.semaphore:
		c.statsMu.Lock()
		if c.activeRequests > 0 {
			c.activeRequests--
		}
		c.statsMu.Unlock()
	default:
		c.logger.Warn(ctx, "Attempted to release inference slot but none were acquired", nil)
	}
}

// incrementTotalRequests increments the total request counter.
func (c *Client) incrementTotalRequests() {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.totalRequests++
}

// GetConcurrencyStats returns a snapshot of the concurrency gate.
func (c *Client) GetConcurrencyStats() ConcurrencyStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return ConcurrencyStats{
		ActiveRequests: c.activeRequests,
		MaxConcurrent:  c.cfg.MaxConcurrent,
		TotalRequests:  c.totalRequests,
	}
}

// Shutdown waits for in-flight requests to drain and closes idle connections.
// New Generate calls are rejected as soon as shutdown begins, not after the
// drain completes.
func (c *Client) Shutdown(ctx context.Context) error {
	c.shutdownMu.Lock()
	shutdownCtx, cancel := context.WithCancel(context.Background())
	c.shutdownCtx = shutdownCtx
	c.shutdownMu.Unlock()

	// flag first so the drain is not prolonged by newly admitted calls
	cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		c.statsMu.RLock()
		active := c.activeRequests
		c.statsMu.RUnlock()

		if active == 0 {
			break
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.httpClient.CloseIdleConnections()
	c.logger.Info(ctx, "Inference client shutdown completed")
	return nil
}

// isShutdown checks if the client is shutting down.
func (c *Client) isShutdown() bool {
	c.shutdownMu.RLock()
	defer c.shutdownMu.RUnlock()
	select {
	case <-c.shutdownCtx.Done():
		return true
	default:
		return false
	}
}

package observability

import (
	"errors"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	contextutils "evolveedu/internal/utils"
)

// GinMiddleware creates OpenTelemetry middleware for Gin HTTP requests
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// GinMiddlewareWithErrorHandling wraps otelgin and, for 4xx/5xx responses,
// records the failure on the request span with error code, severity, and
// learner attributes.
func GinMiddlewareWithErrorHandling(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		otelgin.Middleware(serviceName)(c)
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if span == nil || c.Writer.Status() < 400 {
			return
		}
		annotateFailedRequest(span, c)
	}
}

func annotateFailedRequest(span trace.Span, c *gin.Context) {
	statusCode := c.Writer.Status()
	severity := determineErrorSeverity(statusCode, c.Errors)

	errorMsg := "client error"
	if statusCode >= 500 {
		errorMsg = "server error"
	}

	var appErr *contextutils.AppError
	for _, err := range c.Errors {
		if ae, ok := err.Err.(*contextutils.AppError); ok {
			appErr = ae
			errorMsg = ae.Message
			severity = string(ae.Severity)
			break
		}
		errorMsg = err.Error()
	}

	span.RecordError(errors.New(errorMsg), trace.WithStackTrace(true))
	span.SetStatus(codes.Error, errorMsg)
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.path", c.Request.URL.Path),
		attribute.String("error.handler", c.HandlerName()),
		attribute.String("error.severity", severity),
	)

	if appErr != nil {
		span.SetAttributes(
			attribute.String("error.code", string(appErr.Code)),
			attribute.Bool("error.retryable", contextutils.IsRetryable(appErr)),
		)
	}

	session := sessions.Default(c)
	if learnerID, ok := session.Get("learner_id").(string); ok {
		span.SetAttributes(attribute.String("error.learner_id", learnerID))
	}

	if c.Request.ContentLength > 0 {
		span.SetAttributes(attribute.Int64("error.request_size", c.Request.ContentLength))
	}

	if statusCode >= 500 {
		span.SetAttributes(attribute.Bool("error.server_error", true))
	}
}

func determineErrorSeverity(statusCode int, errors []*gin.Error) string {
	for _, err := range errors {
		if appErr, ok := err.Err.(*contextutils.AppError); ok {
			return string(appErr.Severity)
		}
	}

	switch {
	case statusCode >= 500:
		return string(contextutils.SeverityError)
	case statusCode >= 400:
		return string(contextutils.SeverityWarn)
	default:
		return string(contextutils.SeverityInfo)
	}
}

package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"evolveedu/internal/observability"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// RequestValidationMiddleware validates JSON request bodies against the
// embedded schemas before the handler runs. Endpoints without a bound schema
// pass through untouched.
func RequestValidationMiddleware(logger *observability.Logger) gin.HandlerFunc {
	schemaLoader, err := LoadSchemas()
	if err != nil {
		// A broken embedded schema file is a programming error; fail loudly
		// at startup instead of silently skipping validation.
		panic(err)
	}

	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
			c.Next()
			return
		}

		schemaName := schemaLoader.SchemaForRequest(c.Request.URL.Path, method)
		if schemaName == "" {
			c.Next()
			return
		}

		ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "request_validation",
			attribute.String("http.method", method),
			attribute.String("http.path", c.Request.URL.Path),
			attribute.String("validation.schema", schemaName),
		)
		defer span.End()

		body, err := c.GetRawData()
		if err != nil {
			c.Next()
			return
		}
		// Restore the body so the handler can bind it.
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		var requestData interface{}
		if err := json.Unmarshal(body, &requestData); err != nil {
			span.SetAttributes(attribute.String("validation.result", "json_parse_failed"))
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"message": "Request body is not valid JSON",
			})
			c.Abort()
			return
		}

		if err := schemaLoader.ValidateData(requestData, schemaName); err != nil {
			span.SetAttributes(attribute.String("validation.result", "failed"))
			logger.Warn(ctx, "Request validation failed", map[string]interface{}{
				"method": method,
				"path":   c.Request.URL.Path,
				"schema": schemaName,
				"error":  err.Error(),
			})
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request data",
				"message": "Request data does not match the API specification",
				"schema":  schemaName,
				"details": err.Error(),
			})
			c.Abort()
			return
		}

		span.SetAttributes(attribute.String("validation.result", "passed"))
		c.Next()
	}
}

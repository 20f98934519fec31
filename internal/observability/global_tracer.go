package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var globalTracer trace.Tracer

// InitGlobalTracer initializes the global tracer for the application.
func InitGlobalTracer() {
	globalTracer = otel.Tracer("evolveedu")
}

// GetGlobalTracer returns the global tracer instance for the application.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		// Fallback to default tracer if not initialized
		globalTracer = otel.Tracer("evolveedu")
	}
	return globalTracer
}

// TraceFunction starts a new span with a descriptive name for the given service and function.
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := GetGlobalTracer()
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// TraceFunctionWithErrorHandling starts a new span and automatically adds error attributes if the function panics or returns an error.
func TraceFunctionWithErrorHandling(ctx context.Context, serviceName, functionName string, fn func() error, attributes ...attribute.KeyValue) error {
	_, span := TraceFunction(ctx, serviceName, functionName, attributes...)
	defer func() {
		if err := recover(); err != nil {
			span.SetAttributes(
				attribute.Bool("error", true),
				attribute.String("error.type", "panic"),
				attribute.String("error.message", fmt.Sprintf("%v", err)),
			)
			span.End()
			panic(err) // re-panic
		}
	}()

	err := fn()
	if err != nil {
		span.SetAttributes(
			attribute.Bool("error", true),
			attribute.String("error.message", err.Error()),
		)
	}
	span.End()
	return err
}

// TraceInferenceFunction starts a new span for an inference client function.
func TraceInferenceFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "inference", functionName, attributes...)
}

// TraceNotesFunction starts a new span for a notes service function.
func TraceNotesFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "notes", functionName, attributes...)
}

// TraceQuizFunction starts a new span for a quiz service function.
func TraceQuizFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "quiz", functionName, attributes...)
}

// TraceRoadmapFunction starts a new span for a roadmap service function.
func TraceRoadmapFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "roadmap", functionName, attributes...)
}

// TraceTutorFunction starts a new span for a tutor service function.
func TraceTutorFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "tutor", functionName, attributes...)
}

// TraceWorkerFunction starts a new span for a worker function.
func TraceWorkerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "worker", functionName, attributes...)
}

// TraceEmailFunction starts a new span for an email service function.
func TraceEmailFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "email", functionName, attributes...)
}

// TraceHandlerFunction starts a new span for a handler function.
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// TraceDatabaseFunction starts a new span for a database function.
func TraceDatabaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "database", functionName, attributes...)
}

// AttributeLearnerID returns a tracing attribute for a learner ID.
func AttributeLearnerID(id string) attribute.KeyValue {
	return attribute.String("learner.id", id)
}

// AttributeModel returns a tracing attribute for an inference model ID.
func AttributeModel(model string) attribute.KeyValue {
	return attribute.String("inference.model", model)
}

// AttributeAttempt returns a tracing attribute for a retry attempt number.
func AttributeAttempt(attempt int) attribute.KeyValue {
	return attribute.Int("inference.attempt", attempt)
}

// AttributeNoteID returns a tracing attribute for a note ID.
func AttributeNoteID(id int) attribute.KeyValue {
	return attribute.Int("note.id", id)
}

// AttributeQuizID returns a tracing attribute for a quiz ID.
func AttributeQuizID(id int) attribute.KeyValue {
	return attribute.Int("quiz.id", id)
}

// AttributeRoadmapID returns a tracing attribute for a roadmap ID.
func AttributeRoadmapID(id int) attribute.KeyValue {
	return attribute.Int("roadmap.id", id)
}

// AttributeSessionID returns a tracing attribute for a tutor session ID.
func AttributeSessionID(id int) attribute.KeyValue {
	return attribute.Int("session.id", id)
}

// AttributeSubject returns a tracing attribute for a subject.
func AttributeSubject(subject string) attribute.KeyValue {
	return attribute.String("subject", subject)
}

// AttributeDifficulty returns a tracing attribute for a difficulty level.
func AttributeDifficulty(level string) attribute.KeyValue {
	return attribute.String("difficulty", level)
}

// AttributeLimit returns a tracing attribute for a limit value.
func AttributeLimit(limit int) attribute.KeyValue {
	return attribute.Int("limit", limit)
}

// AttributePage returns a tracing attribute for a page value.
func AttributePage(page int) attribute.KeyValue {
	return attribute.Int("page", page)
}

// AttributePageSize returns a tracing attribute for a page size value.
func AttributePageSize(size int) attribute.KeyValue {
	return attribute.Int("page_size", size)
}

package handler

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	chatotel "github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/otel"
)

var tracer = chatotel.Tracer("github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/handler")

const (
	// DefaultTimeout bounds one handler execution.
	DefaultTimeout = 30 * time.Second
	// DefaultConfidence substitutes an absent or non-positive native
	// confidence so downstream consumers can always trust the range.
	DefaultConfidence = 0.8
)

// Invoker calls a handler's execute capability with a single bounded
// attempt and normalizes the result. Retries, if any, belong to the
// orchestrator.
type Invoker struct {
	timeout time.Duration
}

// NewInvoker creates an invoker. timeout <= 0 selects DefaultTimeout.
func NewInvoker(timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Invoker{timeout: timeout}
}

// Execute runs the handler once under the invoker timeout. Every failure
// mode — returned error, panic, context deadline — comes back as an
// *ExecutionError; a success always carries a confidence in (0, 1].
func (inv *Invoker) Execute(ctx context.Context, h Handler, message string, userContext map[string]interface{}) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "handler.execute",
		trace.WithAttributes(
			attribute.String("handler.kind", string(h.Kind())),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = &ExecutionError{
				Kind:    h.Kind(),
				Message: fmt.Sprintf("panic: %v", r),
				Err:     fmt.Errorf("handler panic: %v", r),
			}
			span.RecordError(err)
			res = nil
		}
	}()

	raw, execErr := h.Execute(ctx, message, userContext)
	if execErr != nil {
		wrapped := &ExecutionError{Kind: h.Kind(), Message: execErr.Error(), Err: execErr}
		span.RecordError(wrapped)
		return nil, wrapped
	}
	if raw == nil {
		wrapped := &ExecutionError{Kind: h.Kind(), Message: "handler returned no result", Err: nil}
		span.RecordError(wrapped)
		return nil, wrapped
	}

	normalized := *raw
	if normalized.Confidence <= 0 {
		normalized.Confidence = DefaultConfidence
	}
	if normalized.Confidence > 1 {
		normalized.Confidence = 1
	}
	if normalized.Metadata == nil {
		normalized.Metadata = map[string]interface{}{}
	}

	span.SetAttributes(attribute.Float64("handler.confidence", normalized.Confidence))
	return &normalized, nil
}

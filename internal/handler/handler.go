// Package handler defines the specialist handler contract and the invoker
// that normalizes handler output into the uniform response shape.
//
// A handler is an opaque natural-language capability for one domain
// (marketing, order status, ...). The pipeline never depends on what a
// handler does internally, only on the Execute contract; the shipped
// implementations are an OpenAI-backed handler and a canned static handler
// for offline use and tests.
package handler

import (
	"context"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/route"
)

// Result is the normalized handler output. Confidence is always in (0, 1]
// after invoker normalization.
type Result struct {
	Text       string                 `json:"text"`
	Confidence float64                `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Handler is a specialist conversational capability for one kind.
type Handler interface {
	// Kind returns the handler kind this instance serves.
	Kind() route.Kind
	// Execute turns a sanitized message into a domain response. userContext
	// is a read-only snapshot (user id, preferences); handlers must not
	// mutate it.
	Execute(ctx context.Context, message string, userContext map[string]interface{}) (*Result, error)
	// Healthy reports whether the instance is still minimally callable.
	// Used by the cache's periodic health probe.
	Healthy(ctx context.Context) error
}

// Factory constructs a handler instance for a kind. Called by the cache on
// first acquire; a returned error is surfaced as ErrUnavailable and nothing
// is cached.
type Factory func(kind route.Kind) (Handler, error)

package handler

import (
	"context"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/route"
)

// staticResponses are the canned per-kind answers served when no LLM
// backend is configured (offline CLI, tests, demos).
var staticResponses = map[route.Kind]string{
	route.KindMarketing:      "Jelenleg 10% kedvezményt adunk az első rendelésre a WELCOME10 kuponnal.",
	route.KindOrderStatus:    "A rendelésed állapotát a fiókodban, a Rendeléseim menüpontban követheted.",
	route.KindRecommendation: "Szívesen ajánlok terméket — írd meg, mire keresel megoldást!",
	route.KindProductInfo:    "A termék részletes adatait és a készletinformációt a termékoldalon találod.",
	route.KindGeneral:        "Köszönjük a megkeresést! Miben segíthetek?",
}

// StaticHandler serves canned responses for one kind. It is always healthy
// and never fails, which makes it the deterministic fixture for pipeline
// tests and the offline default for the turn CLI.
type StaticHandler struct {
	kind       route.Kind
	confidence float64
}

// NewStaticHandler creates a static handler for the kind. confidence <= 0
// leaves normalization to the invoker.
func NewStaticHandler(kind route.Kind, confidence float64) *StaticHandler {
	return &StaticHandler{kind: kind, confidence: confidence}
}

// StaticFactory returns a Factory producing static handlers with the given
// confidence for every kind.
func StaticFactory(confidence float64) Factory {
	return func(kind route.Kind) (Handler, error) {
		return NewStaticHandler(kind, confidence), nil
	}
}

// Kind implements Handler.
func (h *StaticHandler) Kind() route.Kind { return h.kind }

// Execute implements Handler with a canned response.
func (h *StaticHandler) Execute(_ context.Context, _ string, _ map[string]interface{}) (*Result, error) {
	return &Result{
		Text:       staticResponses[h.kind],
		Confidence: h.confidence,
		Metadata:   map[string]interface{}{"source": "static"},
	}, nil
}

// Healthy implements Handler; a static handler cannot degrade.
func (h *StaticHandler) Healthy(context.Context) error { return nil }

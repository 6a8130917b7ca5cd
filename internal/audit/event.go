// Package audit records structured events for every decision point of a
// conversational turn.
//
// Events never carry raw message text or secrets: message content enters the
// trail only as a sha256 hash. The Sink interface is the external
// collaborator contract; the SQLite Store is the shipped implementation and
// the Recorder makes writes fire-and-forget while preserving per-turn order.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Stage identifies the pipeline decision point an event belongs to.
type Stage string

const (
	StageGuard   Stage = "guard"
	StageConsent Stage = "consent"
	StageRoute   Stage = "route"
	StageExecute Stage = "execute"
	StageTurn    Stage = "turn" // terminal per-turn summary
)

// Event is one audit record.
type Event struct {
	ID          string                 `json:"id"`
	TurnID      string                 `json:"turn_id"`
	SessionID   string                 `json:"session_id"`
	UserID      string                 `json:"user_id,omitempty"`
	Stage       Stage                  `json:"stage"`
	Decision    string                 `json:"decision"`
	Reason      string                 `json:"reason,omitempty"`
	HandlerKind string                 `json:"handler_kind,omitempty"`
	Score       float64                `json:"score,omitempty"`
	RiskLevel   string                 `json:"risk_level,omitempty"`
	MessageHash string                 `json:"message_hash,omitempty"`
	DurationMS  int64                  `json:"duration_ms,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent creates an event with a fresh ID and timestamp.
func NewEvent(turnID, sessionID string, stage Stage) *Event {
	return &Event{
		ID:        "evt_" + uuid.New().String()[:8],
		TurnID:    turnID,
		SessionID: sessionID,
		Stage:     stage,
		Timestamp: time.Now(),
	}
}

// HashContent returns the sha256 digest used to reference message content
// in the trail without storing it verbatim.
func HashContent(s string) string {
	h := sha256.Sum256([]byte(s))
	return "sha256:" + hex.EncodeToString(h[:])
}

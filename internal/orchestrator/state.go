package orchestrator

import (
	"fmt"
	"time"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/consent"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/guard"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/handler"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/route"
)

// Step is the workflow position of one turn.
type Step string

const (
	StepStart     Step = "start"
	StepGuarded   Step = "guarded"
	StepConsented Step = "consented"
	StepRouted    Step = "routed"
	StepExecuted  Step = "executed"
	StepCompleted Step = "completed"
	StepFailed    Step = "failed"
)

// stepRank orders the forward path. Failed is terminal and reachable from
// anywhere; it has no rank.
var stepRank = map[Step]int{
	StepStart:     0,
	StepGuarded:   1,
	StepConsented: 2,
	StepRouted:    3,
	StepExecuted:  4,
	StepCompleted: 5,
}

// TrailEntry is one recorded failure along the turn.
type TrailEntry struct {
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// State is the conversation state for one turn. It is owned exclusively by
// one ProcessTurn invocation and never shared across turns.
type State struct {
	TurnID           string
	SessionID        string
	RawMessage       string
	SanitizedMessage string
	UserContext      map[string]interface{}

	Threat  guard.Signal
	Consent consent.Decision
	Routing route.Decision
	Result  *handler.Result

	ErrorTrail []TrailEntry
	Attempt    int
	Step       Step

	StartedAt   time.Time
	CompletedAt time.Time
}

func newState(turnID, sessionID, raw string, userContext map[string]interface{}) *State {
	return &State{
		TurnID:      turnID,
		SessionID:   sessionID,
		RawMessage:  raw,
		UserContext: userContext,
		Attempt:     1,
		Step:        StepStart,
		StartedAt:   time.Now(),
	}
}

// Advance moves the turn forward. Backward transitions are rejected; the
// only sanctioned reset is ResetForRetry. Failing is always allowed.
func (s *State) Advance(to Step) error {
	if to == StepFailed {
		s.Step = StepFailed
		return nil
	}
	fromRank, ok := stepRank[s.Step]
	if !ok {
		return fmt.Errorf("cannot advance from terminal step %s", s.Step)
	}
	toRank, ok := stepRank[to]
	if !ok {
		return fmt.Errorf("unknown step %s", to)
	}
	if toRank <= fromRank {
		return fmt.Errorf("backward transition %s -> %s", s.Step, to)
	}
	s.Step = to
	return nil
}

// ResetForRetry is the explicit retry path: back to routed, attempt
// incremented. Only an executed-stage failure may take it.
func (s *State) ResetForRetry() {
	s.Step = StepRouted
	s.Attempt++
}

// Fail marks the turn failed and appends to the error trail.
func (s *State) Fail(stage, message string) {
	s.ErrorTrail = append(s.ErrorTrail, TrailEntry{Stage: stage, Message: message, At: time.Now()})
	s.Step = StepFailed
}

// Terminal reports whether the turn reached completed or failed.
func (s *State) Terminal() bool {
	return s.Step == StepCompleted || s.Step == StepFailed
}

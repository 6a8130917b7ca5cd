package handler

import (
	"errors"
	"fmt"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/route"
)

// ErrUnavailable marks a handler kind whose construction failed.
var ErrUnavailable = errors.New("handler unavailable")

// ExecutionError wraps any runtime failure (error, panic, timeout) from a
// handler's Execute call. It never escapes the orchestrator: the turn is
// resolved into a failed state with an apology response instead.
type ExecutionError struct {
	Kind    route.Kind
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("handler %s execution: %s", e.Kind, e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

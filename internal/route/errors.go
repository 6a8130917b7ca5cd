package route

import (
	"errors"
	"fmt"
)

var (
	errEmptyKeywordSet = errors.New("keyword set has no phrases")
	errNegativeWeight  = errors.New("keyword set weight is negative")
)

// ConfigError reports a malformed routing table entry. Fatal at startup.
type ConfigError struct {
	Kind string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("routing table kind %q: %v", e.Kind, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

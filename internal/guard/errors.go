package guard

import (
	"errors"
	"fmt"
)

var errUnknownRuleKind = errors.New("unknown rule kind")

// ConfigError reports a malformed threat rule. It is fatal at startup:
// a guard with a partial rule battery must not screen traffic.
type ConfigError struct {
	Rule string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("threat rule %q: %v", e.Rule, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

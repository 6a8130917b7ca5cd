// Package consent gates optional processing behind per-purpose user consent.
//
// The gate wraps an external consent collaborator. When that collaborator is
// unreachable, the gate fails open for the necessary purpose and fails
// closed for everything else: core functionality must not be blockable by
// an outage, but marketing-adjacent purposes default to "no consent
// assumed". Every decision carries a reason code for the audit trail.
package consent

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Reason codes attributed to every gate decision.
const (
	ReasonGranted      = "granted"
	ReasonDenied       = "denied"
	ReasonFailOpen     = "fail_open"
	ReasonFailClosed   = "fail_closed"
	ReasonPolicyDenied = "policy_denied"
)

// Service is the external consent collaborator.
type Service interface {
	// Check reports whether the user has granted consent for the purpose
	// and data category. An error means the collaborator is unavailable,
	// not that consent is denied.
	Check(ctx context.Context, userID, purpose, dataCategory string) (bool, error)
}

// Decision is the gate's verdict for one turn.
type Decision struct {
	Granted      bool   `json:"granted"`
	Purpose      string `json:"purpose"`
	DataCategory string `json:"data_category"`
	Reason       string `json:"reason"`
}

// Gate checks consent decisions against the purpose policy and the
// external collaborator.
type Gate struct {
	svc    Service
	policy *PurposePolicy
}

// NewGate creates a consent gate. policy may be nil, which skips the
// purpose/category pair validation layer.
func NewGate(svc Service, policy *PurposePolicy) *Gate {
	return &Gate{svc: svc, policy: policy}
}

// Check resolves the consent decision for a user/purpose/category triple.
// It never returns an error: collaborator failures are folded into the
// fail-open/fail-closed asymmetry and surfaced through the reason code.
func (g *Gate) Check(ctx context.Context, userID, purpose, dataCategory string) Decision {
	dec := Decision{Purpose: purpose, DataCategory: dataCategory}

	if g.policy != nil {
		allowed, err := g.policy.Allows(ctx, purpose, dataCategory)
		if err != nil {
			log.Warn().Err(err).Str("purpose", purpose).Msg("purpose_policy_eval_failed")
			allowed = false
		}
		if !allowed {
			dec.Reason = ReasonPolicyDenied
			return dec
		}
	}

	granted, err := g.svc.Check(ctx, userID, purpose, dataCategory)
	if err != nil {
		if g.failsOpen(ctx, purpose) {
			log.Warn().Err(err).
				Str("user_id", userID).
				Str("purpose", purpose).
				Msg("consent_service_unavailable_fail_open")
			dec.Granted = true
			dec.Reason = ReasonFailOpen
			return dec
		}
		log.Warn().Err(err).
			Str("user_id", userID).
			Str("purpose", purpose).
			Msg("consent_service_unavailable_fail_closed")
		dec.Reason = ReasonFailClosed
		return dec
	}

	dec.Granted = granted
	if granted {
		dec.Reason = ReasonGranted
	} else {
		dec.Reason = ReasonDenied
	}
	return dec
}

// failsOpen consults the purpose policy when present, falling back to the
// hardcoded necessary-only rule when it is not.
func (g *Gate) failsOpen(ctx context.Context, purpose string) bool {
	if g.policy == nil {
		return purpose == "necessary"
	}
	open, err := g.policy.FailsOpen(ctx, purpose)
	if err != nil {
		return false
	}
	return open
}

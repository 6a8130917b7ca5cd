// Package route classifies a sanitized message to exactly one specialist
// handler kind using weighted keyword tables.
//
// Routing is deterministic: identical input and identical table always yield
// the identical decision. No randomness, no I/O, no external calls.
package route

import "fmt"

// Kind identifies which specialist handles a turn.
type Kind string

const (
	KindMarketing      Kind = "marketing"
	KindOrderStatus    Kind = "order_status"
	KindRecommendation Kind = "recommendation"
	KindProductInfo    Kind = "product_info"
	// KindGeneral is the fallback: zero-score messages, threat overrides and
	// anything no specialist claims.
	KindGeneral Kind = "general"
)

// priorityOrder breaks score ties: the first listed kind wins. General is
// last so a specialist always beats the fallback on equal score.
var priorityOrder = []Kind{
	KindMarketing,
	KindOrderStatus,
	KindRecommendation,
	KindProductInfo,
	KindGeneral,
}

// AllKinds returns every routable kind in tie-break priority order.
func AllKinds() []Kind {
	kinds := make([]Kind, len(priorityOrder))
	copy(kinds, priorityOrder)
	return kinds
}

// ParseKind validates a kind string from config or an API request.
func ParseKind(s string) (Kind, error) {
	for _, k := range priorityOrder {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown handler kind %q", s)
}

// Consent purposes implied by a routing decision. Order-status and
// product-info are core shop functionality and ride on the necessary
// purpose; recommendation and marketing are optional processing.
const (
	PurposeNecessary       = "necessary"
	PurposePersonalization = "personalization"
	PurposeMarketing       = "marketing"
)

// PurposeFor maps a realized routing decision to the consent purpose and
// data category the handler will process.
func PurposeFor(kind Kind) (purpose, dataCategory string) {
	switch kind {
	case KindMarketing:
		return PurposeMarketing, "contact_preferences"
	case KindRecommendation:
		return PurposePersonalization, "browsing_history"
	case KindOrderStatus:
		return PurposeNecessary, "order_history"
	case KindProductInfo:
		return PurposeNecessary, "catalog"
	default:
		return PurposeNecessary, "none"
	}
}

package route

import (
	"strings"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/guard"
)

// Tie-break markers recorded on every decision for the audit trail.
const (
	TieBreakThreatOverride = "threat_override"
	TieBreakHighestScore   = "highest_score"
	TieBreakPriorityOrder  = "priority_order"
	TieBreakNoMatch        = "no_match"
)

// Decision is the routing outcome for one message.
type Decision struct {
	Kind     Kind             `json:"kind"`
	Score    float64          `json:"score"`
	TieBreak string           `json:"tie_break"`
	Scores   map[Kind]float64 `json:"scores,omitempty"`
}

type compiledSet struct {
	kind     Kind
	weight   float64
	keywords []string // lowercased
}

// Router scores messages against the configured keyword sets.
type Router struct {
	sets []compiledSet
}

// New builds a Router from keyword sets. Unknown kinds and empty phrase
// lists are fatal configuration errors.
func New(sets []KeywordSet) (*Router, error) {
	r := &Router{}
	for _, ks := range sets {
		kind, err := ParseKind(ks.Kind)
		if err != nil {
			return nil, &ConfigError{Kind: ks.Kind, Err: err}
		}
		if len(ks.Keywords) == 0 {
			return nil, &ConfigError{Kind: ks.Kind, Err: errEmptyKeywordSet}
		}
		weight := ks.Weight
		if weight == 0 {
			weight = 1.0
		}
		if weight < 0 {
			return nil, &ConfigError{Kind: ks.Kind, Err: errNegativeWeight}
		}
		lowered := make([]string, len(ks.Keywords))
		for i, kw := range ks.Keywords {
			lowered[i] = strings.ToLower(kw)
		}
		r.sets = append(r.sets, compiledSet{kind: kind, weight: weight, keywords: lowered})
	}
	return r, nil
}

// NewDefault builds a Router from the embedded default table merged with an
// optional override file (empty path skips the override layer).
func NewDefault(overridePath string) (*Router, error) {
	defaults, err := DefaultTable()
	if err != nil {
		return nil, err
	}
	layers := [][]KeywordSet{defaults}
	if overridePath != "" {
		tf, err := LoadTableFile(overridePath)
		if err != nil {
			return nil, err
		}
		if tf != nil {
			layers = append(layers, tf.Kinds)
		}
	}
	return New(MergeTables(layers...))
}

// Route picks the handler kind for a sanitized message.
//
// High-risk messages short-circuit to the fallback kind before any scoring.
// Otherwise each kind scores distinct-phrase hits times its weight; the
// strictly highest score wins, ties resolve by declared priority order, and
// an all-zero board routes to general.
func (r *Router) Route(sanitized string, threat guard.Signal) Decision {
	if threat.RiskLevel == guard.RiskHigh {
		return Decision{Kind: KindGeneral, Score: 0, TieBreak: TieBreakThreatOverride}
	}

	lowered := strings.ToLower(sanitized)
	scores := make(map[Kind]float64, len(r.sets))
	for _, cs := range r.sets {
		hits := 0
		for _, kw := range cs.keywords {
			if strings.Contains(lowered, kw) {
				hits++
			}
		}
		if hits > 0 {
			scores[cs.kind] = float64(hits) * cs.weight
		}
	}

	if len(scores) == 0 {
		return Decision{Kind: KindGeneral, Score: 0, TieBreak: TieBreakNoMatch, Scores: scores}
	}

	// Walk kinds in priority order so equal scores resolve to the first
	// declared kind without a separate tie-break pass.
	best := KindGeneral
	bestScore := 0.0
	tied := false
	for _, kind := range priorityOrder {
		score, ok := scores[kind]
		if !ok {
			continue
		}
		if score > bestScore {
			best = kind
			bestScore = score
			tied = false
		} else if score == bestScore && bestScore > 0 {
			tied = true
		}
	}

	tieBreak := TieBreakHighestScore
	if tied {
		tieBreak = TieBreakPriorityOrder
	}
	return Decision{Kind: best, Score: bestScore, TieBreak: tieBreak, Scores: scores}
}

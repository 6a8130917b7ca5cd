// Package guard sanitizes raw user input and screens it for abuse and
// injection risk before anything else touches the message.
//
// Both operations are pure functions over text: they never error and never
// call out. A message that defeats parsing degrades to low risk rather than
// failing the turn (the orchestrator logs the empty signal as a warning).
package guard

import (
	"regexp"
	"strings"
	"unicode"
)

// RiskLevel classifies the threat screening outcome.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Sanitize length bounds. Callers may override the default up to the hard
// ceiling; anything beyond it is truncated regardless.
const (
	DefaultMaxLen = 1000
	HardMaxLen    = 4000
)

// Definitive rules carry severity >= this; a single match is high risk.
const definitiveSeverity = 3

// More than this many distinct dangerous-keyword hits raises risk to medium.
const keywordTolerance = 2

// Signal is the result of threat screening.
type Signal struct {
	RiskLevel   RiskLevel `json:"risk_level"`
	Reasons     []string  `json:"reasons,omitempty"`
	ThreatCount int       `json:"threat_count"`
}

type compiledRule struct {
	name   string
	reason string
	re     *regexp.Regexp
}

type keywordRule struct {
	name     string
	reason   string
	keywords []string // lowercased
}

// Guard holds the compiled threat rule battery.
type Guard struct {
	definitive []compiledRule
	advisory   []compiledRule
	keywords   []keywordRule
}

// New compiles the given rules into a Guard. A malformed regex is a fatal
// configuration error; the caller must not serve traffic with a partial
// battery.
func New(rules []RuleConfig) (*Guard, error) {
	g := &Guard{}
	for i := range rules {
		rc := &rules[i]
		if !rc.isEnabled() {
			continue
		}
		switch rc.Kind {
		case "regex":
			re, err := regexp.Compile(rc.Regex)
			if err != nil {
				return nil, &ConfigError{Rule: rc.Name, Err: err}
			}
			cr := compiledRule{name: rc.Name, reason: rc.Reason, re: re}
			if rc.Severity >= definitiveSeverity {
				g.definitive = append(g.definitive, cr)
			} else {
				g.advisory = append(g.advisory, cr)
			}
		case "keywords":
			lowered := make([]string, len(rc.Keywords))
			for j, kw := range rc.Keywords {
				lowered[j] = strings.ToLower(kw)
			}
			g.keywords = append(g.keywords, keywordRule{name: rc.Name, reason: rc.Reason, keywords: lowered})
		default:
			return nil, &ConfigError{Rule: rc.Name, Err: errUnknownRuleKind}
		}
	}
	return g, nil
}

// NewDefault builds a Guard from the embedded default rules merged with an
// optional override file (empty path skips the override layer).
func NewDefault(overridePath string) (*Guard, error) {
	defaults, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	layers := [][]RuleConfig{defaults}
	if overridePath != "" {
		rf, err := LoadRuleFile(overridePath)
		if err != nil {
			return nil, err
		}
		if rf != nil {
			layers = append(layers, rf.Rules)
		}
	}
	return New(MergeRules(layers...))
}

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<\s*script[^>]*>.*?<\s*/\s*script\s*>`)
	markupTagRe   = regexp.MustCompile(`(?s)<[^>]*>`)
)

// Sanitize strips script blocks, remaining markup tags and control
// characters from raw text, then truncates to maxLen runes. maxLen <= 0
// selects DefaultMaxLen; values above HardMaxLen are clamped to it.
func (g *Guard) Sanitize(raw string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	if maxLen > HardMaxLen {
		maxLen = HardMaxLen
	}

	s := scriptBlockRe.ReplaceAllString(raw, " ")
	s = markupTagRe.ReplaceAllString(s, " ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(' ')
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	s = strings.Join(strings.Fields(b.String()), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		s = string(runes[:maxLen])
	}
	return s
}

// DetectThreat runs the full rule battery over text. Any definitive rule
// match yields high risk; more than keywordTolerance distinct dangerous
// keywords yield medium; otherwise low with no reasons.
func (g *Guard) DetectThreat(text string) Signal {
	sig := Signal{RiskLevel: RiskLow}
	lowered := strings.ToLower(text)

	for _, cr := range g.definitive {
		if cr.re.MatchString(text) {
			sig.RiskLevel = RiskHigh
			sig.Reasons = appendUnique(sig.Reasons, cr.reason)
			sig.ThreatCount++
		}
	}

	for _, cr := range g.advisory {
		if cr.re.MatchString(text) {
			sig.ThreatCount++
			sig.Reasons = appendUnique(sig.Reasons, cr.reason)
		}
	}

	keywordHits := 0
	for _, kr := range g.keywords {
		hits := 0
		for _, kw := range kr.keywords {
			if strings.Contains(lowered, kw) {
				hits++
			}
		}
		if hits > 0 {
			keywordHits += hits
			sig.ThreatCount += hits
			sig.Reasons = appendUnique(sig.Reasons, kr.reason)
		}
	}

	if sig.RiskLevel != RiskHigh && keywordHits > keywordTolerance {
		sig.RiskLevel = RiskMedium
	}
	if sig.RiskLevel == RiskLow {
		// Keyword hits at or below tolerance are noise, not signal.
		sig.Reasons = nil
	}
	return sig
}

// ShouldBlock reports whether the text is high risk and the turn must be
// refused outright.
func (g *Guard) ShouldBlock(text string) bool {
	return g.DetectThreat(text).RiskLevel == RiskHigh
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

package guard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/patterns"
)

// RuleFile is the top-level YAML structure for a threat rule config file.
type RuleFile struct {
	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig is one threat detection rule. Kind "regex" rules carry a Regex;
// kind "keywords" rules carry a Keywords list counted as dangerous-keyword
// hits. Severity 3 marks a definitive rule: one match is enough to classify
// the message as high risk.
type RuleConfig struct {
	Name     string   `yaml:"name" json:"name"`
	Kind     string   `yaml:"kind" json:"kind"`
	Regex    string   `yaml:"regex,omitempty" json:"regex,omitempty"`
	Severity int      `yaml:"severity" json:"severity"`
	Reason   string   `yaml:"reason" json:"reason"`
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Enabled  *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// isEnabled returns true if the rule is enabled (defaults to true when nil).
func (r *RuleConfig) isEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// ParseRuleFile parses threat rule YAML bytes into a RuleFile.
func ParseRuleFile(data []byte) (*RuleFile, error) {
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing threat rule YAML: %w", err)
	}
	return &rf, nil
}

// LoadRuleFile reads and parses a threat rule YAML file from disk.
// Returns nil (not an error) if the file does not exist, so callers can
// treat a missing override file as a no-op.
func LoadRuleFile(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading threat rule file %s: %w", path, err)
	}
	return ParseRuleFile(data)
}

// DefaultRules returns the built-in threat rules parsed from the embedded
// threat.yaml file. This is the first layer in the merge chain.
func DefaultRules() ([]RuleConfig, error) {
	rf, err := ParseRuleFile(patterns.ThreatYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded threat rules: %w", err)
	}
	return rf.Rules, nil
}

// MergeRules merges rule layers: embedded defaults first, then operator
// overrides. Later layers override earlier ones by matching on the rule
// Name field; new rules are appended.
func MergeRules(layers ...[]RuleConfig) []RuleConfig {
	index := make(map[string]int)
	var merged []RuleConfig

	for _, layer := range layers {
		for _, rc := range layer {
			if idx, exists := index[rc.Name]; exists {
				merged[idx] = rc
			} else {
				index[rc.Name] = len(merged)
				merged = append(merged, rc)
			}
		}
	}

	return merged
}

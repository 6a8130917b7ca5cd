package route

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/patterns"
)

// TableFile is the top-level YAML structure for a routing keyword table.
type TableFile struct {
	Kinds []KeywordSet `yaml:"kinds"`
}

// KeywordSet is the weighted phrase list for one handler kind. Weight
// expresses specificity: marketing phrases are rarer than product phrases,
// so a marketing hit counts for more. Weight 0 means 1.0.
type KeywordSet struct {
	Kind     string   `yaml:"kind" json:"kind"`
	Weight   float64  `yaml:"weight,omitempty" json:"weight,omitempty"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// ParseTableFile parses routing table YAML bytes.
func ParseTableFile(data []byte) (*TableFile, error) {
	var tf TableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing routing table YAML: %w", err)
	}
	return &tf, nil
}

// LoadTableFile reads and parses a routing table YAML file from disk.
// Returns nil (not an error) if the file does not exist.
func LoadTableFile(path string) (*TableFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading routing table file %s: %w", path, err)
	}
	return ParseTableFile(data)
}

// DefaultTable returns the built-in keyword sets parsed from the embedded
// routing.yaml file.
func DefaultTable() ([]KeywordSet, error) {
	tf, err := ParseTableFile(patterns.RoutingYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded routing table: %w", err)
	}
	return tf.Kinds, nil
}

// MergeTables merges keyword set layers by kind; a later layer replaces the
// whole set for that kind rather than appending phrases, so operators can
// trim defaults as well as extend them.
func MergeTables(layers ...[]KeywordSet) []KeywordSet {
	index := make(map[string]int)
	var merged []KeywordSet

	for _, layer := range layers {
		for _, ks := range layer {
			if idx, exists := index[ks.Kind]; exists {
				merged[idx] = ks
			} else {
				index[ks.Kind] = len(merged)
				merged = append(merged, ks)
			}
		}
	}

	return merged
}

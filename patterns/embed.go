// Package patterns provides embedded default threat and routing keyword
// tables. YAML files in this directory are the first layer in the config
// merge chain; operators override individual rules or keyword sets by name
// via the files referenced in chatbuddy.config.yaml.
package patterns

import _ "embed"

//go:embed threat.yaml
var threatYAML []byte

//go:embed routing.yaml
var routingYAML []byte

// ThreatYAML returns the embedded default threat detection rules.
func ThreatYAML() []byte { return threatYAML }

// RoutingYAML returns the embedded default per-kind routing keyword sets.
func RoutingYAML() []byte { return routingYAML }

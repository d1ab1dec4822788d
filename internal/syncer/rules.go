// Package syncer runs the registry synchronization pipeline: fetch
// listings, qualify candidates, persist new grants, mirror deadlines to
// the calendar and notify matching subscribers.
package syncer

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	_ "embed"
)

//go:embed config/rules.yaml
var rulesYAML []byte

// Rules are the qualification heuristics applied to fetched calls.
type Rules struct {
	Keywords        []string `yaml:"keywords"`
	RegionFragments []string `yaml:"region_fragments"`
}

// LoadRules parses the embedded default rule set.
func LoadRules() (*Rules, error) {
	return ParseRules(rulesYAML)
}

// ParseRules decodes a rule set and lowercases its terms so matching
// can be case-insensitive.
func ParseRules(raw []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parsing filter rules: %w", err)
	}
	if len(r.Keywords) == 0 {
		return nil, fmt.Errorf("filter rules define no keywords")
	}
	for i, k := range r.Keywords {
		r.Keywords[i] = strings.ToLower(strings.TrimSpace(k))
	}
	for i, f := range r.RegionFragments {
		r.RegionFragments[i] = strings.ToLower(strings.TrimSpace(f))
	}
	return &r, nil
}

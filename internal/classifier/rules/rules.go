// Package rules holds the static, startup-loaded regex classification
// rules (cascade step 4, spec §4.8), grounded on the teacher's pattern of
// loading static JSON configuration once at startup (common.Config's
// LoadFromFile) but scoped to a single document of name-pattern rules.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/ternarybob/cookiescan/internal/models"
)

// Rule pairs a compiled case-insensitive regex with its classification.
type Rule struct {
	Regex *regexp.Regexp
	models.ClassificationRule
}

// Set is the ordered list of rules; first match wins (spec §4.8 step 4).
type Set struct {
	rules []Rule
}

// Load reads a JSON array of models.ClassificationRule from path and
// compiles each Pattern as a case-insensitive regex.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classification rules: %w", err)
	}
	var raw []models.ClassificationRule
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse classification rules: %w", err)
	}
	return FromRules(raw)
}

// FromRules compiles an in-memory rule list, useful for tests and for
// embedding defaults without a file on disk.
func FromRules(raw []models.ClassificationRule) (*Set, error) {
	rules := make([]Rule, 0, len(raw))
	for _, r := range raw {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule pattern %q: %w", r.Pattern, err)
		}
		rules = append(rules, Rule{Regex: re, ClassificationRule: r})
	}
	return &Set{rules: rules}, nil
}

// Match returns the first rule whose pattern matches cookieName, in
// declaration order.
func (s *Set) Match(cookieName string) (Rule, bool) {
	for _, r := range s.rules {
		if r.Regex.MatchString(cookieName) {
			return r, true
		}
	}
	return Rule{}, false
}

// MatchesWithIABID returns every rule matching cookieName that also
// declares an iab_id, used by cascade step 3 to resolve GVL vendors.
func (s *Set) MatchesWithIABID(cookieName string) []Rule {
	var out []Rule
	for _, r := range s.rules {
		if r.IABID != 0 && r.Regex.MatchString(cookieName) {
			out = append(out, r)
		}
	}
	return out
}

package config

import (
	"fmt"
	"strings"
)

// MatchRule describes a string predicate in configuration, e.g.
//
//	path_exclusions:
//	  - type: suffix
//	    value: .md
type MatchRule struct {
	Type  string `yaml:"type" mapstructure:"type"` // prefix, suffix, contains, equals, blank
	Value string `yaml:"value" mapstructure:"value"`
}

// Predicate compiles the rule
func (r MatchRule) Predicate() (func(string) bool, error) {
	value := r.Value
	switch strings.ToLower(strings.TrimSpace(r.Type)) {
	case "prefix":
		return func(s string) bool { return strings.HasPrefix(s, value) }, nil
	case "suffix":
		return func(s string) bool { return strings.HasSuffix(s, value) }, nil
	case "contains":
		return func(s string) bool { return strings.Contains(s, value) }, nil
	case "equals":
		return func(s string) bool { return s == value }, nil
	case "blank":
		return func(s string) bool { return strings.TrimSpace(s) == "" }, nil
	}
	return nil, fmt.Errorf("unknown match rule type %q", r.Type)
}

func (r MatchRule) String() string {
	if r.Type == "blank" {
		return "blank"
	}
	return fmt.Sprintf("%s %q", r.Type, r.Value)
}

func compileRules(rules []MatchRule) ([]func(string) bool, error) {
	preds := make([]func(string) bool, 0, len(rules))
	for _, rule := range rules {
		p, err := rule.Predicate()
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

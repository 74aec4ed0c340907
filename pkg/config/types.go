// Package config provides configuration loading and validation for journalhealth.
package config

import (
	"fmt"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	// Categories is the ordered classification rule set. First match wins.
	Categories CategoryRules `yaml:"categories"`

	// Weights maps a category to its health-score weight.
	Weights Weights `yaml:"weights"`

	// FallbackCategory is assigned when no rule matches.
	FallbackCategory string `yaml:"fallback_category,omitempty"`

	// BootMarker is the substring identifying boot-marker lines.
	BootMarker string `yaml:"boot_marker,omitempty"`

	// DefaultTZ is the offset used when a line's own offset is unusable.
	DefaultTZ string `yaml:"default_tz,omitempty"`

	// TopK limits the top-message ranking. 0 keeps every message group.
	TopK int `yaml:"top_k,omitempty"`

	// WindowDays is the length of the summary window, ending at the latest date.
	WindowDays int `yaml:"window_days,omitempty"`

	Health HealthConfig `yaml:"health,omitempty"`

	// SummaryMetrics are the named counts reported over the window.
	SummaryMetrics []SummaryMetricConfig `yaml:"summary_metrics,omitempty"`

	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// CategoryRule is one category tag and its ordered patterns.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`

	// compiled holds the case-insensitive patterns (populated during validation).
	compiled []*regexp.Regexp
}

// Compile compiles the rule's patterns as case-insensitive regular expressions.
func (r *CategoryRule) Compile() ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(r.Patterns))
	for i, p := range r.Patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("pattern[%d] %q: %w", i, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// CompiledPatterns returns the patterns compiled by Validate, or nil.
func (r *CategoryRule) CompiledPatterns() []*regexp.Regexp {
	return r.compiled
}

// CategoryRules is the ordered rule set. In YAML it is written as a mapping
// from tag to pattern list and the document order is kept.
type CategoryRules []CategoryRule

// UnmarshalYAML decodes a mapping (tag -> patterns) in document order.
// A sequence of {name, patterns} entries is accepted too.
func (c *CategoryRules) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		rules := make(CategoryRules, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			var patterns []string
			if val.Kind == yaml.ScalarNode {
				patterns = []string{val.Value}
			} else if err := val.Decode(&patterns); err != nil {
				return fmt.Errorf("category %q (line %d): %w", key.Value, key.Line, err)
			}
			rules = append(rules, CategoryRule{Name: key.Value, Patterns: patterns})
		}
		*c = rules
		return nil
	case yaml.SequenceNode:
		var rules []CategoryRule
		if err := node.Decode(&rules); err != nil {
			return err
		}
		*c = rules
		return nil
	default:
		return fmt.Errorf("line %d: categories must be a mapping of tag to patterns", node.Line)
	}
}

// Names returns the category tags in rule order.
func (c CategoryRules) Names() []string {
	names := make([]string, len(c))
	for i, r := range c {
		names[i] = r.Name
	}
	return names
}

// Weights maps a category tag to a non-negative weight.
type Weights map[string]float64

// UnmarshalYAML replaces the whole table instead of merging into defaults.
func (w *Weights) UnmarshalYAML(node *yaml.Node) error {
	m := make(map[string]float64)
	if err := node.Decode(&m); err != nil {
		return err
	}
	*w = m
	return nil
}

// HealthConfig controls health alerting.
type HealthConfig struct {
	// AlertBelow marks a run as having issues when any day scores below it.
	AlertBelow float64 `yaml:"alert_below,omitempty"`
}

// SummaryMetricConfig defines one named count in the window summary.
// A record counts when it has the category (if set) and its message
// contains the substring (if set).
type SummaryMetricConfig struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category,omitempty"`
	Contains string `yaml:"contains,omitempty"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnIssues fires only when a day scores below the alert threshold (default).
	WebhookTriggerOnIssues WebhookTrigger = "on_issues"
	// WebhookTriggerAlways fires after every run.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending run reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_issues" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

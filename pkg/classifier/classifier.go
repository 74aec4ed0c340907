// Package classifier assigns a category tag to a journal message using an
// ordered rule set.
package classifier

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/ccollicutt/journalhealth/pkg/config"
)

type compiledRule struct {
	name     string
	patterns []*regexp.Regexp
}

// Classifier maps messages to category tags. Categories are tried in order,
// patterns within a category in order, and the first match wins.
type Classifier struct {
	rules    []compiledRule
	fallback string
}

// New builds a classifier from an ordered rule set. Patterns already compiled
// by config.Validate are reused. An empty fallback selects "OTHER".
func New(rules config.CategoryRules, fallback string) (*Classifier, error) {
	if len(rules) == 0 {
		return nil, config.ErrNoCategories
	}
	if fallback == "" {
		fallback = config.DefaultFallbackCategory
	}

	c := &Classifier{
		rules:    make([]compiledRule, 0, len(rules)),
		fallback: fallback,
	}
	for i := range rules {
		rule := &rules[i]
		if rule.Name == "" {
			return nil, errors.New("category name is required")
		}
		patterns := rule.CompiledPatterns()
		if patterns == nil {
			var err error
			if patterns, err = rule.Compile(); err != nil {
				return nil, fmt.Errorf("category %s: %w", rule.Name, err)
			}
		}
		c.rules = append(c.rules, compiledRule{name: rule.Name, patterns: patterns})
	}
	return c, nil
}

// Classify returns the category of msg, or the fallback tag.
func (c *Classifier) Classify(msg string) string {
	category, _ := c.Match(msg)
	return category
}

// Match returns the category of msg and the pattern that selected it.
// The pattern is empty when the fallback tag was used.
func (c *Classifier) Match(msg string) (category, pattern string) {
	for _, r := range c.rules {
		for _, re := range r.patterns {
			if re.MatchString(msg) {
				return r.name, re.String()
			}
		}
	}
	return c.fallback, ""
}

// Fallback returns the tag used when no rule matches.
func (c *Classifier) Fallback() string {
	return c.fallback
}

// Categories returns the category tags in rule order.
func (c *Classifier) Categories() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.name
	}
	return names
}

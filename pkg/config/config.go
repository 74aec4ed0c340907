package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoCategories is returned when the rule set is empty.
var ErrNoCategories = errors.New("categories: at least one category is required")

var tzPattern = regexp.MustCompile(`^[+-]\d{4}$`)

// Load reads and validates a configuration file.
// Sections missing from the file keep their built-in defaults.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, falling back to the built-in configuration when
// the file does not exist. defaulted reports whether the fallback was used.
// Any other read or validation error is returned.
func LoadOrDefault(ctx context.Context, path string) (cfg *Config, defaulted bool, err error) {
	cfg, err = Load(ctx, path)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	cfg = DefaultConfig()
	cfg.applyEnvironmentOverrides()
	if err := Validate(cfg); err != nil {
		return nil, true, fmt.Errorf("validating default config: %w", err)
	}
	return cfg, true, nil
}

// Validate checks a configuration for errors and compiles category patterns.
func Validate(cfg *Config) error {
	if len(cfg.Categories) == 0 {
		return ErrNoCategories
	}

	seen := make(map[string]bool, len(cfg.Categories))
	for i := range cfg.Categories {
		rule := &cfg.Categories[i]
		if err := validateCategory(rule); err != nil {
			return fmt.Errorf("categories[%d] (%s): %w", i, rule.Name, err)
		}
		if seen[rule.Name] {
			return fmt.Errorf("categories[%d]: duplicate category %q", i, rule.Name)
		}
		seen[rule.Name] = true
	}

	for name, w := range cfg.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("weights.%s: must be a non-negative number, got %v", name, w)
		}
	}

	if cfg.FallbackCategory == "" {
		cfg.FallbackCategory = DefaultFallbackCategory
	}

	if cfg.BootMarker == "" {
		return errors.New("boot_marker: must not be empty")
	}

	if cfg.DefaultTZ != "" && !tzPattern.MatchString(cfg.DefaultTZ) {
		return fmt.Errorf("default_tz: %q is not a signed HHMM offset", cfg.DefaultTZ)
	}

	if cfg.TopK < 0 {
		return fmt.Errorf("top_k: must be >= 0, got %d", cfg.TopK)
	}

	if cfg.WindowDays < 1 {
		return fmt.Errorf("window_days: must be >= 1, got %d", cfg.WindowDays)
	}

	if cfg.Health.AlertBelow < 0 || cfg.Health.AlertBelow > 100 {
		return fmt.Errorf("health.alert_below: must be within [0, 100], got %v", cfg.Health.AlertBelow)
	}

	for i, m := range cfg.SummaryMetrics {
		if m.Name == "" {
			return fmt.Errorf("summary_metrics[%d]: name is required", i)
		}
		if m.Category == "" && m.Contains == "" {
			return fmt.Errorf("summary_metrics[%d] (%s): category or contains is required", i, m.Name)
		}
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateCategory(rule *CategoryRule) error {
	if rule.Name == "" {
		return errors.New("name is required")
	}

	if len(rule.Patterns) == 0 {
		return errors.New("at least one pattern is required")
	}

	compiled, err := rule.Compile()
	if err != nil {
		return err
	}
	rule.compiled = compiled

	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	wh.Token = expandEnvVar(wh.Token)

	trigger, err := ParseWebhookTrigger(string(wh.Trigger))
	if err != nil {
		return err
	}
	wh.Trigger = trigger

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// ParseWebhookTrigger checks a trigger name. Empty means on_issues.
func ParseWebhookTrigger(s string) (WebhookTrigger, error) {
	switch t := WebhookTrigger(s); t {
	case "":
		return WebhookTriggerOnIssues, nil
	case WebhookTriggerOnIssues, WebhookTriggerAlways, WebhookTriggerNever:
		return t, nil
	default:
		return "", fmt.Errorf("invalid trigger %q (must be on_issues, always, or never)", s)
	}
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}

	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}

	return s
}

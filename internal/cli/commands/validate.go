package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/journalhealth/pkg/classifier"
	"github.com/ccollicutt/journalhealth/pkg/config"
)

// ValidateOptions holds command-line options for the validate command.
type ValidateOptions struct {
	Messages []string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate [rules-file]",
		Short: "Validate a rules file",
		Long: `Validate a journalhealth rules file without reading any logs.

Checks:
  - YAML syntax
  - At least one category
  - Regex pattern validity
  - Non-negative weights
  - Window, top-k and webhook settings

Lists categories in match order. With --message, shows which category and
pattern each sample message matches. Defaults to ` + DefaultRulesFile + `.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Messages, "message", "m", nil, "Classify a sample message (can be repeated)")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string, opts *ValidateOptions) error {
	path := DefaultRulesFile
	if len(args) == 1 {
		path = args[0]
	}
	ctx := contextOf(cmd)
	w := stdout(cmd)

	fmt.Fprintf(w, "Validating %s...\n", path)

	cfg, err := config.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	c, err := classifier.New(cfg.Categories, cfg.FallbackCategory)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Categories:      %d\n", len(cfg.Categories))
	fmt.Fprintf(w, "  Weights:         %d\n", len(cfg.Weights))
	fmt.Fprintf(w, "  Summary metrics: %d\n", len(cfg.SummaryMetrics))
	fmt.Fprintf(w, "  Webhooks:        %d\n", len(cfg.Webhooks))

	fmt.Fprintf(w, "\nCategories (first match wins):\n")
	for i, name := range c.Categories() {
		if weight, ok := cfg.Weights[name]; ok {
			fmt.Fprintf(w, "  %d. %s (weight %g)\n", i+1, name, weight)
		} else {
			fmt.Fprintf(w, "  %d. %s\n", i+1, name)
		}
		fmt.Fprintf(w, "     %s\n", strings.Join(cfg.Categories[i].Patterns, " | "))
	}
	fmt.Fprintf(w, "\nFallback: %s\n", c.Fallback())

	known := make(map[string]bool)
	for _, name := range cfg.Categories.Names() {
		known[name] = true
	}
	known[c.Fallback()] = true

	names := make([]string, 0, len(cfg.Weights))
	for name := range cfg.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !known[name] {
			fmt.Fprintf(w, "\nWarning: weight for unknown category %s\n", name)
		}
	}

	if len(opts.Messages) > 0 {
		fmt.Fprintf(w, "\nSample messages:\n")
		for _, msg := range opts.Messages {
			category, pattern := c.Match(msg)
			if pattern == "" {
				pattern = "no pattern matched, fallback"
			}
			fmt.Fprintf(w, "  %q\n     -> %s (%s)\n", msg, category, pattern)
		}
	}

	return nil
}

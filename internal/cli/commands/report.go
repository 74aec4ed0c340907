package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/ccollicutt/journalhealth/pkg/config"
	"github.com/ccollicutt/journalhealth/pkg/output"
	"github.com/ccollicutt/journalhealth/pkg/webhook"
)

// ReportOptions holds the flags that control the report and notifications.
type ReportOptions struct {
	Output  string
	Lang    string
	Verbose bool
	Quiet   bool

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

func addReportFlags(cmd *cobra.Command, opts *ReportOptions) {
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().StringVar(&opts.Lang, "lang", "en", "Language for number formatting in text output (BCP 47 tag)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show all top messages and ingestion statistics")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", string(config.WebhookTriggerOnIssues), "When to fire webhook (on_issues|always|never)")
}

// validate rejects bad report flags before any input is read.
func (o *ReportOptions) validate() error {
	if _, err := config.ParseWebhookTrigger(o.WebhookTrigger); err != nil {
		return fmt.Errorf("--webhook-trigger: %w", err)
	}
	return nil
}

func createFormatter(opts *ReportOptions) (output.Formatter, error) {
	tag, err := language.Parse(opts.Lang)
	if err != nil {
		return nil, fmt.Errorf("invalid --lang %q: %w", opts.Lang, err)
	}
	return output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose:  opts.Verbose,
		Quiet:    opts.Quiet,
		Language: tag,
	})
}

// emitReport renders the report, sends webhooks and sets the exit code.
func emitReport(ctx context.Context, cmd *cobra.Command, state *runState, formatter output.Formatter, opts *ReportOptions) error {
	report := state.report()

	if err := formatter.Format(ctx, report, stdout(cmd)); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	// Delivery failures are logged, never fatal.
	hooks, err := collectWebhooks(state.cfg, opts)
	if err != nil {
		return err
	}
	if len(hooks) > 0 {
		webhook.NewClient().Notify(ctx, report, hooks, state.log())
	}

	setExitCode(report)
	return nil
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *ReportOptions) ([]config.WebhookConfig, error) {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger, err := config.ParseWebhookTrigger(opts.WebhookTrigger)
		if err != nil {
			return nil, fmt.Errorf("--webhook-trigger: %w", err)
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks, nil
}

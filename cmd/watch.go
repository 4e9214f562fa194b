package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/config"
	"github.com/JakeFAU/pagewatch/internal/recorder/xlsx"
	"github.com/JakeFAU/pagewatch/internal/server"
)

type watchOptions struct {
	url    string
	output string
}

// newWatchCmd creates the 'watch' subcommand, which runs the monitor loop.
func newWatchCmd() *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a page until interrupted",
		Long: `Polls the page every monitor.interval, waiting monitor.backoff after a
failed fetch. Changes are appended to the workbook and emailed to
notify.recipient. Missing URL and output name are asked for interactively.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "page to watch (overrides target.url)")
	cmd.Flags().StringVar(&opts.output, "output", "", "workbook name (overrides target.output)")
	return cmd
}

func runWatch(cmd *cobra.Command, opts *watchOptions) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	cfg := rt.cfg
	if err := cfg.ValidateWatch(); err != nil {
		return err
	}
	if err := resolveTarget(&cfg, opts, newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, successStyle.Render("Monitoring started"))
	fmt.Fprintln(out, renderField("URL", cfg.Target.URL))
	fmt.Fprintln(out, renderField("Workbook", cfg.Target.Output))
	fmt.Fprintln(out, renderField("Recipient", cfg.Notify.Recipient))
	fmt.Fprintln(out, renderField("Interval", cfg.Monitor.Interval.String()))

	app, err := server.NewApp(cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	if err := app.Run(cmd.Context()); err != nil {
		return err
	}
	status := app.Monitor().Status()
	rt.logger.Info("watch finished",
		zap.String("output", cfg.Target.Output),
		zap.Int64("polls", status.Polls),
		zap.Int64("changes", status.Changes),
	)
	fmt.Fprintln(out, renderField("Polls", strconv.FormatInt(status.Polls, 10)))
	fmt.Fprintln(out, renderField("Changes", strconv.FormatInt(status.Changes, 10)))
	return nil
}

// resolveTarget fills in URL and output from flags, then config, then prompts.
func resolveTarget(cfg *config.Config, opts *watchOptions, p *prompter) error {
	if opts.url != "" {
		cfg.Target.URL = opts.url
	}
	if opts.output != "" {
		cfg.Target.Output = opts.output
	}

	if cfg.Target.URL != "" {
		u, err := config.NormalizeURL(cfg.Target.URL)
		if err != nil {
			return fmt.Errorf("target.url %q: %w", cfg.Target.URL, err)
		}
		cfg.Target.URL = u
	} else {
		u, err := p.URL()
		if err != nil {
			return err
		}
		cfg.Target.URL = u
	}

	if cfg.Target.Output != "" {
		cfg.Target.Output = xlsx.WithExtension(cfg.Target.Output)
		return nil
	}
	output, err := p.Output()
	if err != nil {
		return err
	}
	cfg.Target.Output = output
	return nil
}

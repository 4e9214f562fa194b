package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/pagewatch/internal/logging"
	"github.com/JakeFAU/pagewatch/internal/monitor"
	"github.com/JakeFAU/pagewatch/internal/recorder/xlsx"
)

const diffColumnWidth = 60

// newHistoryCmd creates the 'history' subcommand, which prints recorded changes.
func newHistoryCmd() *cobra.Command {
	var (
		output string
		full   bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the changes recorded in a workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if output == "" {
				output = rt.cfg.Target.Output
			}
			if output == "" {
				return fmt.Errorf("no workbook given; pass --output or set target.output")
			}
			loc, err := rt.cfg.Location()
			if err != nil {
				return err
			}
			rec, err := xlsx.New(output, loc, logging.Component(rt.logger, "recorder"))
			if err != nil {
				return err
			}
			records, err := rec.ReadAll(cmd.Context())
			if err != nil {
				return err
			}
			renderHistory(cmd, records, full)
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "workbook to read (defaults to target.output)")
	cmd.Flags().BoolVar(&full, "full", false, "print complete diffs instead of a summary")
	return cmd
}

func renderHistory(cmd *cobra.Command, records []monitor.ChangeRecord, full bool) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"#", "Timestamp", "URL", "HTML Changes", "CSS Changes"})
	for i, r := range records {
		t.AppendRow(table.Row{
			i + 1,
			r.Timestamp.Format(monitor.TimestampLayout),
			r.URL,
			summarizeDiff(r.HTMLDiff, full),
			summarizeDiff(r.CSSDiff, full),
		})
	}
	if !full {
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 4, WidthMax: diffColumnWidth, WidthMaxEnforcer: text.WrapSoft},
			{Number: 5, WidthMax: diffColumnWidth, WidthMaxEnforcer: text.WrapSoft},
		})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(records)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// summarizeDiff counts added and removed lines unless full output is wanted.
func summarizeDiff(d string, full bool) string {
	if d == "" {
		return "-"
	}
	if full {
		return d
	}
	var added, removed int
	for _, line := range strings.Split(d, "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return fmt.Sprintf("+%d -%d", added, removed)
}

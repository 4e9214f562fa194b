package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/pagewatch/internal/config"
	collyfetcher "github.com/JakeFAU/pagewatch/internal/fetcher/colly"
	"github.com/JakeFAU/pagewatch/internal/hash/sha256"
	"github.com/JakeFAU/pagewatch/internal/logging"
	"github.com/JakeFAU/pagewatch/internal/monitor"
	"github.com/JakeFAU/pagewatch/internal/normalize"
)

// newCheckCmd creates the 'check' subcommand: one fetch and normalize pass
// that reports what the monitor would use as its baseline.
func newCheckCmd() *cobra.Command {
	var rawURL string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch the page once and summarize its snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if rawURL == "" {
				rawURL = rt.cfg.Target.URL
			}
			if rawURL == "" {
				return fmt.Errorf("no URL given; pass --url or set target.url")
			}
			u, err := config.NormalizeURL(rawURL)
			if err != nil {
				return err
			}

			fetcher := collyfetcher.New(collyfetcher.Config{
				UserAgent:     rt.cfg.HTTP.UserAgent,
				RespectRobots: rt.cfg.HTTP.RespectRobots,
				Timeout:       rt.cfg.HTTP.Timeout,
			}, logging.Component(rt.logger, "fetcher"))
			result := fetcher.Fetch(cmd.Context(), u)
			return printCheck(cmd, result)
		},
	}
	cmd.Flags().StringVar(&rawURL, "url", "", "page to check (defaults to target.url)")
	return cmd
}

func printCheck(cmd *cobra.Command, result monitor.FetchResult) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderField("URL", result.URL))
	if !result.Available() {
		fmt.Fprintln(out, renderField("Status", errorStyle.Render("unavailable")))
		fmt.Fprintln(out, renderField("Reason", result.Unavailable.Error()))
		return nil
	}

	snapshot := normalize.Normalize(result.Body)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(result.Body))
	if err != nil {
		return fmt.Errorf("parse page: %w", err)
	}
	digest, err := sha256.New().Hash([]byte(snapshot.HTML + "\x00" + snapshot.CSS))
	if err != nil {
		return fmt.Errorf("digest snapshot: %w", err)
	}

	fmt.Fprintln(out, renderField("Status", successStyle.Render(strconv.Itoa(result.StatusCode))))
	fmt.Fprintln(out, renderField("Fetch time", result.Duration.String()))
	fmt.Fprintln(out, renderField("Title", strings.TrimSpace(doc.Find("title").First().Text())))
	fmt.Fprintln(out, renderField("HTML lines", strconv.Itoa(strings.Count(snapshot.HTML, "\n"))))
	fmt.Fprintln(out, renderField("Style blocks", strconv.Itoa(normalize.StyleBlockCount(doc))))
	fmt.Fprintln(out, renderField("CSS bytes", strconv.Itoa(len(snapshot.CSS))))
	fmt.Fprintln(out, renderField("Digest", sha256.Short(digest)))
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/internal/analytics"
	"github.com/domwxyz/marxist-search/internal/retrieval"
)

var analyticsLimitFlag int

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Report search usage: volume, top terms per category, top author filters, synonym effectiveness",
	RunE:  runAnalytics,
}

func init() {
	analyticsCmd.Flags().IntVar(&analyticsLimitFlag, "limit", 10, "rows per top-N section")
	rootCmd.AddCommand(analyticsCmd)
}

// runAnalytics reads the analytics file directly rather than opening the
// full search service; reporting must work while the server holds the
// stores.
func runAnalytics(cmd *cobra.Command, args []string) error {
	path := cfg.AnalyticsPath()
	if _, err := os.Stat(path); err != nil {
		out.Warningf("no analytics recorded yet at %s", path)
		return nil
	}

	vocab := retrieval.DefaultVocabulary()
	tracker, err := analytics.New(path, cfg.Analytics.FlushEvery, vocab.CategoryOf)
	if err != nil {
		return fmt.Errorf("open analytics: %w", err)
	}

	if jsonFlag {
		report := map[string]any{
			"stats":       tracker.Stats(),
			"top_authors": tracker.TopAuthors(analyticsLimitFlag),
		}
		terms := map[string][]analytics.Count{}
		for _, category := range vocab.Categories() {
			if top := tracker.TopTerms(category, analyticsLimitFlag); len(top) > 0 {
				terms[category] = top
			}
		}
		report["top_terms"] = terms
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	stats := tracker.Stats()
	out.Statusf("", "searches tracked:    %d", stats.TotalSearches)
	out.Statusf("", "avg results/search:  %.1f", stats.AvgResultsPerSearch)
	out.Statusf("", "no-result queries:   %d", stats.NoResultCount)
	out.Statusf("", "synonym expansions:  %d", stats.TotalSynonymMatches)
	if !stats.LastUpdated.IsZero() {
		out.Statusf("", "last updated:        %s", stats.LastUpdated.Format("2006-01-02 15:04"))
	}

	if authors := tracker.TopAuthors(analyticsLimitFlag); len(authors) > 0 {
		out.Status("", "")
		out.Status("", "top author filters:")
		for _, a := range authors {
			out.Statusf("", "  %-30s %d", a.Name, a.Count)
		}
	}

	for _, category := range vocab.Categories() {
		top := tracker.TopTerms(category, analyticsLimitFlag)
		if len(top) == 0 {
			continue
		}
		out.Status("", "")
		out.Statusf("", "top %s terms:", category)
		for _, term := range top {
			out.Statusf("", "  %-30s %d", term.Name, term.Count)
		}
	}
	return nil
}

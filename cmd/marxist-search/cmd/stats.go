package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/pkg/search"
)

var topAuthorsMinFlag int
var topAuthorsLimitFlag int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print corpus-wide counts, date range, and vector store size",
	RunE:  runStats,
}

var topAuthorsCmd = &cobra.Command{
	Use:   "top-authors",
	Short: "List authors with at least --min-articles indexed articles",
	RunE:  runTopAuthors,
}

func init() {
	topAuthorsCmd.Flags().IntVar(&topAuthorsMinFlag, "min-articles", 1, "minimum indexed article count")
	topAuthorsCmd.Flags().IntVar(&topAuthorsLimitFlag, "limit", 20, "maximum authors returned")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(topAuthorsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, err := search.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open search service: %w", err)
	}
	defer svc.Close()

	stats, err := svc.Engine.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	out.Statusf("", "articles:  %d", stats.ArticleCount)
	out.Statusf("", "chunks:    %d", stats.ChunkCount)
	out.Statusf("", "sources:   %d", stats.SourceCount)
	out.Statusf("", "authors:   %d", stats.AuthorCount)
	out.Statusf("", "vectors:   %d", stats.VectorCount)
	out.Statusf("", "range:     %s to %s",
		stats.EarliestArticle.Format("2006-01-02"), stats.LatestArticle.Format("2006-01-02"))
	return nil
}

func runTopAuthors(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, err := search.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open search service: %w", err)
	}
	defer svc.Close()

	authors, err := svc.Engine.TopAuthors(ctx, topAuthorsMinFlag, topAuthorsLimitFlag)
	if err != nil {
		return fmt.Errorf("list top authors: %w", err)
	}

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(authors)
	}

	for _, a := range authors {
		out.Statusf("", "%-30s %6d articles", a.Name, a.ArticleCount)
	}
	return nil
}

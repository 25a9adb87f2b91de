package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/internal/retrieval"
	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/domwxyz/marxist-search/pkg/search"
)

var (
	searchLimitFlag  int
	searchOffsetFlag int
	searchSourceFlag string
	searchAuthorFlag string
	searchExplain    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run one search against the retrieval core and print results",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimitFlag, "limit", 10, "page size")
	searchCmd.Flags().IntVar(&searchOffsetFlag, "offset", 0, "page offset")
	searchCmd.Flags().StringVar(&searchSourceFlag, "source", "", "filter: exact source match")
	searchCmd.Flags().StringVar(&searchAuthorFlag, "author", "", "filter: author tokens")
	searchCmd.Flags().BoolVar(&searchExplain, "explain", false, "include per-signal score breakdown")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, err := search.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open search service: %w", err)
	}
	defer svc.Close()

	query := strings.Join(args, " ")
	resp, err := svc.Engine.Search(ctx, retrieval.Request{
		Query:  query,
		Limit:  searchLimitFlag,
		Offset: searchOffsetFlag,
		Filter: store.SearchFilter{
			Source: searchSourceFlag,
			Author: searchAuthorFlag,
		},
		Explain: searchExplain,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if resp.Error != "" {
		out.Errorf("query error: %s", resp.Error)
		return nil
	}

	out.Statusf("", "%d results (of %d), %dms", len(resp.Results), resp.Total, resp.QueryTimeMS)
	for i, r := range resp.Results {
		out.Statusf("", "%d. [%.4f] %s by %s (%s)", searchOffsetFlag+i+1, r.Score, r.Title, r.Author, r.Source)
		if r.Excerpt != "" {
			out.Statusf("", "   %s", r.Excerpt)
		}
		out.Statusf("", "   %s", r.URL)
	}
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/pkg/search"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List indexed sources with article counts and date ranges",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, err := search.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open search service: %w", err)
	}
	defer svc.Close()

	sources, err := svc.Engine.Sources(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sources)
	}

	for _, s := range sources {
		out.Statusf("", "%-30s %6d articles  %s to %s",
			s.Name, s.ArticleCount,
			s.Earliest.Format("2006-01-02"), s.Latest.Format("2006-01-02"))
	}
	return nil
}

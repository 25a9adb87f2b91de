package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/pkg/search"
)

var reloadIndexCmd = &cobra.Command{
	Use:   "reload-index",
	Short: "Atomically reload the vector store from disk",
	RunE:  runReloadIndex,
}

func init() {
	rootCmd.AddCommand(reloadIndexCmd)
}

func runReloadIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, err := search.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open search service: %w", err)
	}
	defer svc.Close()

	before, err := svc.Engine.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats before reload: %w", err)
	}

	if err := svc.Engine.ReloadIndex(ctx); err != nil {
		return fmt.Errorf("reload index: %w", err)
	}

	after, err := svc.Engine.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats after reload: %w", err)
	}

	out.Successf("reloaded: %d -> %d vectors (documents_added=%d)",
		before.VectorCount, after.VectorCount, after.VectorCount-before.VectorCount)
	return nil
}

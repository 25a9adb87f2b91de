package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/internal/embed"
	"github.com/domwxyz/marxist-search/internal/store"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Vector index inspection commands",
}

var indexInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Report the persisted index's dimensions/prefix vs. the configured embedder",
	RunE:  runIndexInfo,
}

func init() {
	indexCmd.AddCommand(indexInfoCmd)
	rootCmd.AddCommand(indexCmd)
}

// runIndexInfo surfaces index/embedder drift: a persisted index built with
// one embedding model will silently return garbage nearest-neighbors if
// queried with a differently-shaped embedder, so the mismatch is reported
// before serving traffic.
func runIndexInfo(cmd *cobra.Command, args []string) error {
	indexPath := cfg.IndexPath()

	dims, prefix, err := store.ReadIndexMeta(indexPath)
	if err != nil {
		out.Warningf("no index metadata at %s.meta: %v", indexPath, err)
		return nil
	}

	out.Statusf("", "persisted index: %s", indexPath)
	out.Statusf("", "  dimensions: %d", dims)
	out.Statusf("", "  query prefix: %q", prefix)

	provider := embed.ParseProvider(cfg.Embeddings.Provider)
	embedder, err := embed.NewEmbedder(cmd.Context(), provider, cfg.Embeddings.Model)
	if err != nil {
		out.Warningf("could not construct configured embedder: %v", err)
		return nil
	}

	configured := embedder.Dimensions()
	out.Statusf("", "configured embedder: provider=%s model=%s dimensions=%d",
		cfg.Embeddings.Provider, cfg.Embeddings.Model, configured)

	if configured != dims {
		out.Errorf("dimension mismatch: index=%d configured=%d, re-ingest required", dims, configured)
		return fmt.Errorf("index/embedder dimension mismatch")
	}

	out.Success("index and configured embedder agree on dimensions")
	return nil
}

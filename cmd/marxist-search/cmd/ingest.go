package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/internal/chunk"
	"github.com/domwxyz/marxist-search/internal/embed"
	"github.com/domwxyz/marxist-search/internal/ingest"
	"github.com/domwxyz/marxist-search/internal/retrieval"
	"github.com/domwxyz/marxist-search/internal/store"
)

var ingestFeedsFlag []string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Pull configured RSS feeds, extract/chunk/embed new articles, and persist the vector index",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestFeedsFlag, "feed", nil, "feed URL (repeatable); defaults to config's ingest.feed_urls")
	rootCmd.AddCommand(ingestCmd)
}

// runIngest wires internal/ingest.Pipeline directly against the on-disk
// stores rather than through pkg/search.Open: the pipeline is a writer, and
// search.Open assumes the vector index already exists and loads it
// read-only via store.Handle.Reload.
func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	feeds := ingestFeedsFlag
	if len(feeds) == 0 {
		feeds = cfg.Ingest.FeedURLs
	}
	if len(feeds) == 0 {
		return fmt.Errorf("no feed URLs configured (set ingest.feed_urls or pass --feed)")
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	metadata, err := store.NewSQLiteMetadataStore(cfg.MetadataPath())
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer metadata.Close()

	contentDir := filepath.Join(cfg.Paths.DataDir, "content-index")
	contentIndex, err := store.OpenBleveContentIndex(contentDir)
	if err != nil {
		return fmt.Errorf("open content index: %w", err)
	}
	metadata.SetContentIndex(contentIndex)

	embedder, err := embed.NewEmbedder(ctx, embed.ParseProvider(cfg.Embeddings.Provider), cfg.Embeddings.Model)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}

	indexPath := cfg.IndexPath()
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	vectorIndex := store.NewHNSWIndex(embedder, "search_query: ")
	if _, err := os.Stat(indexPath); err == nil {
		if err := vectorIndex.Load(indexPath); err != nil {
			return fmt.Errorf("load existing vector index: %w", err)
		}
	}

	vocab := retrieval.DefaultVocabulary()

	pipelineCfg := ingest.Config{
		MaxPagesPerFeed: cfg.Ingest.MaxPagesPerFeed,
		RequestTimeout:  time.Duration(cfg.Ingest.RequestTimeoutSeconds * float64(time.Second)),
		ChunkOptions: chunk.Options{
			Threshold:    cfg.Ingest.ChunkThreshold,
			TargetSize:   cfg.Ingest.ChunkTargetSize,
			OverlapRatio: cfg.Ingest.ChunkOverlapRatio,
		},
		TitleRepeat: cfg.Retrieval.TitleWeightMultiplier,
	}

	pipeline := ingest.NewPipeline(pipelineCfg, embedder, metadata, vectorIndex, vocab, slog.Default())

	out.Statusf("", "ingesting %d feed(s)", len(feeds))
	stats, err := pipeline.Run(ctx, feeds)
	if err != nil {
		return fmt.Errorf("ingest run: %w", err)
	}

	if err := vectorIndex.Save(indexPath); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}

	out.Successf("feeds processed: %d, items seen: %d, ingested: %d, skipped: %d, failed: %d",
		stats.FeedsProcessed, stats.ItemsSeen, stats.ArticlesIngested, stats.ArticlesSkipped, stats.ArticlesFailed)
	return nil
}

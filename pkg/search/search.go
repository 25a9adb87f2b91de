// Package search is the embeddable facade over the retrieval core: it wires
// a Config into a constructed internal/retrieval.Engine, so every
// cmd/marxist-search subcommand (including serve, which hands the Engine to
// internal/httpapi) shares one assembly path instead of each duplicating
// store construction.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/domwxyz/marxist-search/internal/analytics"
	"github.com/domwxyz/marxist-search/internal/config"
	"github.com/domwxyz/marxist-search/internal/embed"
	"github.com/domwxyz/marxist-search/internal/retrieval"
	"github.com/domwxyz/marxist-search/internal/store"
)

// Service wraps the process-wide retrieval Engine plus whatever state its
// construction needs to keep around for Close.
type Service struct {
	Engine  *retrieval.Engine
	Tracker *analytics.Tracker // nil when analytics is disabled

	handle   *store.Handle
	metadata *store.SQLiteMetadataStore
	content  *store.BleveContentIndex
}

// Open constructs every layer from cfg: the SQLite metadata
// store, the optional bleve content index, a query-side embedder, the HNSW
// vector handle, and the Engine itself. The vector index is loaded
// synchronously before Open returns, so a freshly opened Service is
// immediately queryable.
func Open(ctx context.Context, cfg *config.Config) (*Service, error) {
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	metadata, err := store.NewSQLiteMetadataStore(cfg.MetadataPath())
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	contentDir := filepath.Join(cfg.Paths.DataDir, "content-index")
	contentIndex, err := store.OpenBleveContentIndex(contentDir)
	if err != nil {
		metadata.Close()
		return nil, fmt.Errorf("open content index: %w", err)
	}
	metadata.SetContentIndex(contentIndex)

	embedder, err := embed.NewEmbedder(ctx, embed.ParseProvider(cfg.Embeddings.Provider), cfg.Embeddings.Model)
	if err != nil {
		metadata.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	indexPath := cfg.IndexPath()
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		metadata.Close()
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	handle := store.NewHandle(indexPath, func() *store.HNSWIndex {
		return store.NewHNSWIndex(embedder, "search_query: ")
	})
	if err := handle.Reload(ctx); err != nil {
		metadata.Close()
		return nil, fmt.Errorf("load vector index: %w", err)
	}

	vocab := retrieval.DefaultVocabulary()
	engine := retrieval.NewEngine(metadata, handle, vocab, cfg.ToEngineConfig())

	var tracker *analytics.Tracker
	if cfg.Analytics.Enabled {
		tracker, err = analytics.New(cfg.AnalyticsPath(), cfg.Analytics.FlushEvery, vocab.CategoryOf)
		if err != nil {
			// A corrupt analytics file must not take search down.
			slog.Warn("analytics_unavailable", slog.String("path", cfg.AnalyticsPath()), slog.Any("error", err))
		} else {
			engine.SetTracker(tracker)
		}
	}

	return &Service{
		Engine:   engine,
		Tracker:  tracker,
		handle:   handle,
		metadata: metadata,
		content:  contentIndex,
	}, nil
}

// Close flushes the analytics tracker and releases every store the Service
// owns. The Engine itself delegates to the same stores, so closing it would
// double-close; Close here is the single point of teardown.
func (s *Service) Close() error {
	if s.Tracker != nil {
		if err := s.Tracker.Close(); err != nil {
			slog.Warn("analytics_flush_failed", slog.Any("error", err))
		}
	}
	return s.Engine.Close()
}

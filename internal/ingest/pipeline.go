package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/domwxyz/marxist-search/internal/chunk"
	"github.com/domwxyz/marxist-search/internal/embed"
	"github.com/domwxyz/marxist-search/internal/ids"
	"github.com/domwxyz/marxist-search/internal/retrieval"
	"github.com/domwxyz/marxist-search/internal/store"
)

// Pipeline orchestrates one ingestion run: pull every configured feed,
// extract and chunk each new article, embed it, and write both the metadata
// and vector stores.
type Pipeline struct {
	feeds    *FeedFetcher
	articles *ArticleHTMLFetcher
	chunker  *chunk.Chunker
	embedder embed.Embedder
	metadata *store.SQLiteMetadataStore
	vector   *store.HNSWIndex
	vocab    *retrieval.Vocabulary
	source   func(feedURL string) string

	titleRepeat int
	log         *slog.Logger
}

// Config configures a Pipeline.
type Config struct {
	MaxPagesPerFeed int
	RequestTimeout  time.Duration
	ChunkOptions    chunk.Options
	TitleRepeat     int // how many times the title is prepended before embedding, mirrors retrieval.Config.TitleWeightMultiplier
}

// NewPipeline builds a Pipeline around already-open stores.
func NewPipeline(cfg Config, embedder embed.Embedder, metadata *store.SQLiteMetadataStore, vector *store.HNSWIndex, vocab *retrieval.Vocabulary, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	titleRepeat := cfg.TitleRepeat
	if titleRepeat <= 0 {
		titleRepeat = 5
	}
	return &Pipeline{
		feeds:       NewFeedFetcher(cfg.MaxPagesPerFeed, cfg.RequestTimeout),
		articles:    NewArticleHTMLFetcher(cfg.RequestTimeout),
		chunker:     chunk.NewChunker(cfg.ChunkOptions),
		embedder:    embedder,
		metadata:    metadata,
		vector:      vector,
		vocab:       vocab,
		titleRepeat: titleRepeat,
		log:         log,
		source:      sourceNameFromURL,
	}
}

// Stats summarizes one Run.
type Stats struct {
	FeedsProcessed   int
	ItemsSeen        int
	ArticlesIngested int
	ArticlesSkipped  int
	ArticlesFailed   int
}

// Run pulls every feed in feedURLs and ingests each new or changed article.
func (p *Pipeline) Run(ctx context.Context, feedURLs []string) (Stats, error) {
	var stats Stats

	for _, feedURL := range feedURLs {
		items, err := p.feeds.FetchAll(ctx, feedURL)
		if err != nil {
			p.log.Error("feed_fetch_failed", slog.String("feed", feedURL), slog.Any("error", err))
			continue
		}
		stats.FeedsProcessed++
		stats.ItemsSeen += len(items)

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			err := p.ingestItem(ctx, feedURL, item)
			switch {
			case err == errAlreadyIngested:
				stats.ArticlesSkipped++
			case err != nil:
				stats.ArticlesFailed++
				p.log.Warn("article_ingest_failed",
					slog.String("url", item.Link),
					slog.Any("error", err))
			default:
				stats.ArticlesIngested++
			}
		}
	}

	return stats, nil
}

// errAlreadyIngested marks a feed item whose URL is already indexed with an
// unchanged published date; re-fetching it would be a no-op upsert.
var errAlreadyIngested = fmt.Errorf("article already ingested")

func (p *Pipeline) ingestItem(ctx context.Context, feedURL string, item Item) error {
	if _, published, indexed, ok, err := p.metadata.ArticleByURL(ctx, item.Link); err == nil && ok && indexed {
		if !item.Published.IsZero() && published.Equal(item.Published.UTC()) {
			return errAlreadyIngested
		}
	}

	body, err := p.articles.FetchAndExtract(ctx, item.Link)
	if err != nil {
		return fmt.Errorf("extract article body: %w", err)
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("empty extracted body for %s", item.Link)
	}

	wordCount := len(strings.Fields(body))
	terms := p.extractTerms(body)

	article := store.Article{
		URL:           item.Link,
		Title:         item.Title,
		Body:          body,
		Source:        p.source(feedURL),
		PublishedAt:   item.Published,
		WordCount:     wordCount,
		ExtractedTerm: terms,
	}

	articleID, err := p.metadata.UpsertArticle(ctx, article)
	if err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}

	if err := p.embedAndIndex(ctx, articleID, article.Title, body, wordCount); err != nil {
		return fmt.Errorf("embed and index article %d: %w", articleID, err)
	}

	return p.metadata.MarkIndexed(ctx, articleID, true)
}

// embedAndIndex applies the chunking contract: articles over the
// configured threshold are split and each chunk is embedded independently;
// everything else is embedded whole with the title prepended titleRepeat
// times to bias the embedding toward title matches.
func (p *Pipeline) embedAndIndex(ctx context.Context, articleID int, title, body string, wordCount int) error {
	if !p.chunker.ShouldChunk(wordCount) {
		chunks := []store.Chunk{}
		if err := p.metadata.ReplaceChunks(ctx, articleID, chunks); err != nil {
			return fmt.Errorf("clear chunk rows: %w", err)
		}

		weighted := chunk.PrependTitle(title, body, p.titleRepeat)
		vec, err := p.embedder.Embed(ctx, "search_document: "+weighted)
		if err != nil {
			return fmt.Errorf("embed article: %w", err)
		}
		id := ids.MakeArticleID(articleID)
		return p.vector.Add(ctx, []string{id.String()}, [][]float32{vec})
	}

	chunks := p.chunker.Chunk(articleID, body)
	if err := p.metadata.ReplaceChunks(ctx, articleID, chunks); err != nil {
		return fmt.Errorf("write chunk rows: %w", err)
	}

	texts := make([]string, len(chunks))
	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		text := c.Body
		if i == 0 {
			text = chunk.PrependTitle(title, c.Body, p.titleRepeat)
		}
		texts[i] = "search_document: " + text
		chunkIDs[i] = ids.MakeChunkID(articleID, c.ChunkIndex).String()
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	return p.vector.Add(ctx, chunkIDs, vectors)
}

func (p *Pipeline) extractTerms(body string) []string {
	if p.vocab == nil {
		return nil
	}
	return ExtractTerms(body, p.vocab.CanonicalTerms(), p.vocab.Pattern)
}

func sourceNameFromURL(feedURL string) string {
	name := strings.TrimPrefix(feedURL, "https://")
	name = strings.TrimPrefix(name, "http://")
	if idx := strings.Index(name, "/"); idx >= 0 {
		name = name[:idx]
	}
	return strings.TrimPrefix(name, "www.")
}

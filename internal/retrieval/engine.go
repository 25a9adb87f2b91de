package retrieval

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	apperrors "github.com/domwxyz/marxist-search/internal/errors"
	"github.com/domwxyz/marxist-search/internal/query"
	"github.com/domwxyz/marxist-search/internal/store"
)

// Reloader is implemented by vector stores that support atomic reload, such
// as store.Handle. ReloadIndex type-asserts the configured store against it
// rather than widening the VectorStore contract for every caller.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Tracker receives per-query usage signals: the executed search with its
// final results, vocabulary-term mentions in the query, and synonym
// expansions that fired. Implementations must be safe for concurrent use;
// the engine calls them inline on the query path, so they must also be
// cheap and never fail the search.
type Tracker interface {
	TrackSearch(query string, filter store.SearchFilter, results []Result, total int)
	TrackTermMention(term, category string)
	TrackSynonymMatch(base, variant string)
}

// Engine is the process-wide retrieval core: constructed once at
// startup and held for the process lifetime, immutable except for whatever
// swap-only reload its vector store handle supports. It holds read-only
// references to the metadata and vector stores; it never writes to either.
type Engine struct {
	metadata store.MetadataStore
	vector   store.VectorStore
	vocab    *Vocabulary
	config   Config
	tracker  Tracker // optional; nil disables usage tracking

	admission *semaphore.Weighted // bounds total in-flight queries
	workers   *semaphore.Weighted // bounds concurrent CPU-bound pipeline stages
}

// NewEngine constructs the retrieval core. vocab may be nil, in which case
// expansion is a no-op regardless of config.ExpansionEnabled.
func NewEngine(metadata store.MetadataStore, vector store.VectorStore, vocab *Vocabulary, cfg Config) *Engine {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 1
	}
	return &Engine{
		metadata:  metadata,
		vector:    vector,
		vocab:     vocab,
		config:    cfg,
		admission: semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		workers:   semaphore.NewWeighted(int64(cfg.WorkerPoolSize)),
	}
}

// SetTracker attaches a usage tracker. Must be called during startup,
// before the engine serves traffic; the engine is otherwise immutable
// after construction.
func (e *Engine) SetTracker(t Tracker) {
	e.tracker = t
}

// Close releases the vector and metadata stores; the engine is the
// top-level holder of both.
func (e *Engine) Close() error {
	verr := e.vector.Close()
	merr := e.metadata.Close()
	if verr != nil {
		return verr
	}
	return merr
}

// ReloadIndex atomically reloads the vector store, if it supports reload.
func (e *Engine) ReloadIndex(ctx context.Context) error {
	r, ok := e.vector.(Reloader)
	if !ok {
		return fmt.Errorf("configured vector store does not support reload")
	}
	return r.Reload(ctx)
}

// Sources returns the per-source aggregate used by the "sources" façade.
func (e *Engine) Sources(ctx context.Context) ([]store.SourceAggregate, error) {
	return e.metadata.AggregateSources(ctx)
}

// TopAuthors returns authors with at least minArticles indexed articles.
func (e *Engine) TopAuthors(ctx context.Context, minArticles, limit int) ([]store.AuthorAggregate, error) {
	return e.metadata.AggregateTopAuthors(ctx, minArticles, limit)
}

// Stats returns corpus-wide counts plus the live vector store size.
func (e *Engine) Stats(ctx context.Context) (store.Stats, error) {
	stats, err := e.metadata.AggregateStats(ctx)
	if err != nil {
		return store.Stats{}, err
	}
	stats.VectorCount = e.vector.Count()
	return stats, nil
}

func acquire(ctx context.Context, sem *semaphore.Weighted) error {
	return sem.Acquire(ctx, 1)
}

func release(sem *semaphore.Weighted) { sem.Release(1) }

// Search runs the full pipeline: dispatch, expansion, recall, light
// hydration, semantic cutoff, attribute filters, phrase filters, dedup,
// reranking, pagination, heavy hydration, and excerpting. All stages within
// one call are sequential; Search itself is safe to call concurrently from
// many goroutines, gated by the engine's admission semaphore.
func (e *Engine) Search(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	parsed, err := query.Parse(req.Query)
	if err != nil {
		return Response{
			Query:  req.Query,
			Limit:  req.Limit,
			Offset: req.Offset,
			Error:  err.Error(),
		}, nil
	}

	filter := req.Filter
	if parsed.AuthorFilter != "" {
		filter.Author = parsed.AuthorFilter
	}

	limit := req.Limit
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	if limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	base := Response{
		Query:  req.Query,
		Parsed: parsed,
		Filter: filter,
		Limit:  limit,
		Offset: offset,
	}

	if !parsed.HasContent() && isEmptyFilter(filter) {
		base.QueryTimeMS = time.Since(start).Milliseconds()
		return base, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.SearchTimeout)
	defer cancel()

	if err := acquire(ctx, e.admission); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Response{}, apperrors.New(apperrors.ErrCodeTimeout, "search deadline exceeded while queued", err)
		}
		return Response{}, apperrors.New(apperrors.ErrCodeInternal, "search admission failed", err)
	}
	defer release(e.admission)

	now := time.Now()

	var cands []*candidate
	if len(parsed.SemanticTerms) == 0 {
		cands, err = e.dbPathCandidates(ctx, parsed, filter)
	} else {
		cands, err = e.vectorPathCandidates(ctx, parsed)
	}
	if err != nil {
		return Response{}, err
	}

	cands = applyAttributeFilters(cands, filter, now)

	cands, err = applyPhraseFilters(ctx, cands, parsed.ExactPhrases, parsed.TitlePhrases, e.metadata)
	if err != nil {
		return Response{}, apperrors.Wrap(apperrors.ErrCodeSearchFailed, err)
	}

	cands = dedupe(cands)

	if err := acquire(ctx, e.workers); err != nil {
		return Response{}, apperrors.New(apperrors.ErrCodeTimeout, "rerank worker pool timeout", err)
	}
	cands, err = rerank(ctx, cands, parsed.SemanticTerms, e.config, e.metadata, now)
	release(e.workers)
	if err != nil {
		return Response{}, apperrors.Wrap(apperrors.ErrCodeSearchFailed, err)
	}

	total := len(cands)
	sortByScoreDesc(cands)

	page := pageSlice(cands, offset, limit)

	if err := ensureContent(ctx, page, e.metadata); err != nil {
		return Response{}, apperrors.Wrap(apperrors.ErrCodeSearchFailed, err)
	}

	results := make([]Result, 0, len(page))
	for _, c := range page {
		excerpt, matchedPhrase := BuildExcerpt(c.content, c.row.Title, parsed.ExactPhrases, e.config.TitleWeightMultiplier)
		sections := c.matchedSections
		if sections < 1 {
			sections = 1
		}
		r := Result{
			ID:              c.row.ID,
			ArticleID:       c.row.ArticleID,
			Title:           c.row.Title,
			URL:             c.row.URL,
			Source:          c.row.Source,
			Author:          c.row.NormalizedAuthor(),
			PublishedDate:   c.row.PublishedDate,
			Excerpt:         excerpt,
			MatchedPhrase:   matchedPhrase,
			Score:           round4(c.score),
			MatchedSections: sections,
			WordCount:       c.row.WordCount,
			Tags:            c.row.Tags,
			Terms:           c.row.Terms,
		}
		if req.Explain {
			explain := c.explain
			r.Explain = &explain
		}
		results = append(results, r)
	}

	base.Results = results
	base.Total = total
	base.Page = Page(offset, limit)
	base.QueryTimeMS = time.Since(start).Milliseconds()

	if e.tracker != nil {
		e.trackQuery(req.Query, filter, parsed.SemanticTerms, results, total)
	}
	return base, nil
}

// trackQuery reports one executed search to the attached tracker: the query
// with its final result page, vocabulary-term mentions among the semantic
// terms, and any synonym expansions that fired.
func (e *Engine) trackQuery(query string, filter store.SearchFilter, terms []string, results []Result, total int) {
	e.tracker.TrackSearch(query, filter, results, total)

	if e.vocab == nil {
		return
	}
	for _, term := range terms {
		if category, ok := e.vocab.CategoryOf(term); ok {
			e.tracker.TrackTermMention(strings.ToLower(term), category)
		}
		if !e.config.ExpansionEnabled {
			continue
		}
		syn := e.vocab.SynonymsFor(term)
		for _, variant := range syn {
			if variant != strings.ToLower(term) {
				e.tracker.TrackSynonymMatch(strings.ToLower(term), variant)
			}
		}
	}
}

// dbPathCandidates implements the S=∅ branch of dispatch: a direct
// attribute + substring query against the metadata store, with every row
// treated as a uniform-score candidate.
func (e *Engine) dbPathCandidates(ctx context.Context, parsed query.Parsed, filter store.SearchFilter) ([]*candidate, error) {
	rows, err := e.metadata.SearchByContent(ctx, store.ContentQuery{
		ExactPhrases: parsed.ExactPhrases,
		TitlePhrases: parsed.TitlePhrases,
		Filter:       filter,
		Limit:        e.config.RecallLimit,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeSearchFailed, err)
	}
	cands := make([]*candidate, len(rows))
	for i, r := range rows {
		cands[i] = &candidate{row: r, score: 1.0}
	}
	return cands, nil
}

// vectorPathCandidates implements the S≠∅ branch: expansion, dense-vector
// recall, light hydration (dropping orphan ids), and the adaptive semantic
// cutoff.
func (e *Engine) vectorPathCandidates(ctx context.Context, parsed query.Parsed) ([]*candidate, error) {
	queryText := strings.Join(parsed.SemanticTerms, " ")
	if e.config.ExpansionEnabled && e.vocab != nil {
		queryText = Expand(queryText, e.vocab, e.config.MaxExpansionVariants)
	}

	raw, err := e.vector.Search(ctx, queryText, e.config.RecallLimit)
	if err != nil {
		if _, ok := err.(store.ErrIndexNotLoaded); ok {
			return nil, apperrors.New(apperrors.ErrCodeIndexNotLoaded, "vector index not loaded", err)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeVectorStoreUnavailable, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	scoreByID := make(map[string]float64, len(raw))
	ids := make([]string, len(raw))
	for i, c := range raw {
		ids[i] = c.ID
		scoreByID[c.ID] = float64(c.Score)
	}

	rows, err := e.metadata.LookupByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeSearchFailed, err)
	}

	cands := make([]*candidate, 0, len(rows))
	for _, r := range rows {
		score, ok := scoreByID[r.ID]
		if !ok {
			continue // orphan id: no matching article, drop and keep going
		}
		cands = append(cands, &candidate{row: r, score: score})
	}

	if err := acquire(ctx, e.workers); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeTimeout, "cutoff worker pool timeout", err)
	}
	cands = applySemanticCutoff(ctx, cands, parsed.SemanticTerms, e.config.SemanticFilter, e.metadata)
	release(e.workers)

	return cands, nil
}

func pageSlice(cands []*candidate, offset, limit int) []*candidate {
	if offset >= len(cands) {
		return nil
	}
	end := offset + limit
	if end > len(cands) {
		end = len(cands)
	}
	return cands[offset:end]
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

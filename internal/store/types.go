// Package store implements the two persistence layers the retrieval core
// depends on: a relational metadata/content store (SQLite + bleve full-text)
// and an opaque dense-vector index (HNSW). The retrieval core holds
// read-only handles to both; ingestion is the only writer.
package store

import (
	"context"
	"time"
)

// Article is the canonical record for one ingested piece of long-form text.
type Article struct {
	ID            int
	URL           string
	Title         string
	Body          string
	Source        string
	Author        string
	PublishedAt   time.Time
	WordCount     int
	Chunked       bool
	Indexed       bool
	Tags          []string
	ExtractedTerm []string
}

// Chunk is one length-bounded segment of a chunked article's body.
type Chunk struct {
	ArticleID  int
	ChunkIndex int
	Body       string
	WordCount  int
	StartOffset int
}

// FilterRow is the body-less "filter projection" fetched for every recalled
// candidate: everything the pipeline needs to filter and rank, nothing it
// needs to re-fetch body text for.
type FilterRow struct {
	ID              string // IdString
	ArticleID       int
	Title           string
	URL             string
	Source          string
	Author          string
	PublishedDate   time.Time
	PublishedYear   int
	PublishedMonth  int
	WordCount       int
	IsChunk         bool
	ChunkIndex      int
	Tags            []string
	Terms           []string
}

// NormalizedAuthor defaults an empty author to "Unknown", per the typed
// row-accessor contract in the design notes.
func (r FilterRow) NormalizedAuthor() string {
	if r.Author == "" {
		return "Unknown"
	}
	return r.Author
}

// Candidate is a single (IdString, score) pair out of vector recall.
type Candidate struct {
	ID    string
	Score float32
}

// SearchFilter materializes the attribute predicates of the HTTP
// filter JSON. All fields are optional; zero value means "not set".
type SearchFilter struct {
	Source          string     `json:"source,omitempty"`
	Author          string     `json:"author,omitempty"`
	PublishedYear   int        `json:"published_year,omitempty"`
	MinWordCount    int        `json:"min_word_count,omitempty"`
	DateRangePreset string     `json:"date_range,omitempty"` // past_week, past_month, past_3months, past_year, 2020s, 2010s, 2000s, 1990s
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`

	// InvalidDateRange marks a filter whose start_date/end_date failed ISO
	// parsing at the façade (the date predicate is treated
	// as false rather than erroring the whole request, so every row is
	// excluded instead of the range being silently ignored).
	InvalidDateRange bool `json:"invalid_date_range,omitempty"`
}

// ContentQuery is the parameter object for searchByContent: the DB path of
// dispatch, used whenever the query carries no free semantic terms.
type ContentQuery struct {
	ExactPhrases []string
	TitlePhrases []string
	Filter       SearchFilter
	Limit        int
}

// MetadataStore is the single-writer, multi-reader relational store owning
// every article and chunk row.
type MetadataStore interface {
	// LookupByIDs returns the filter projection for a mixed set of article
	// and chunk IdStrings. Unknown ids are silently dropped (orphans).
	LookupByIDs(ctx context.Context, rawIDs []string) ([]FilterRow, error)

	// FetchContent returns body text keyed by IdString for the given
	// candidate or result ids.
	FetchContent(ctx context.Context, rawIDs []string) (map[string]string, error)

	// SearchByContent is the DB path: attribute + substring query, used when
	// the parsed query has no semantic terms.
	SearchByContent(ctx context.Context, q ContentQuery) ([]FilterRow, error)

	AggregateSources(ctx context.Context) ([]SourceAggregate, error)
	AggregateTopAuthors(ctx context.Context, minArticles, limit int) ([]AuthorAggregate, error)
	AggregateStats(ctx context.Context) (Stats, error)

	Close() error
}

// SourceAggregate is one row of getSources().
type SourceAggregate struct {
	Name         string    `json:"name"`
	ArticleCount int       `json:"article_count"`
	Earliest     time.Time `json:"earliest"`
	Latest       time.Time `json:"latest"`
}

// AuthorAggregate is one row of getTopAuthors().
type AuthorAggregate struct {
	Name         string `json:"name"`
	ArticleCount int    `json:"article_count"`
}

// Stats is the response of getStats(): counts, date range, vector store size.
type Stats struct {
	ArticleCount    int       `json:"article_count"`
	ChunkCount      int       `json:"chunk_count"`
	SourceCount     int       `json:"source_count"`
	AuthorCount     int       `json:"author_count"`
	EarliestArticle time.Time `json:"earliest_article"`
	LatestArticle   time.Time `json:"latest_article"`
	VectorCount     int       `json:"vector_count"`
}

// VectorStore is the opaque dense-vector index. Search takes query text, not
// a pre-embedded vector: the store owns the embedder and is responsible for
// any task-prefixing the embedding model requires.
type VectorStore interface {
	Search(ctx context.Context, queryText string, limit int) ([]Candidate, error)
	Count() int
	Close() error
}

// ErrIndexNotLoaded is returned by a VectorStore handle that has not
// completed its first Load.
type ErrIndexNotLoaded struct{}

func (ErrIndexNotLoaded) Error() string { return "vector index not loaded" }

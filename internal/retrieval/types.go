package retrieval

import (
	"time"

	"github.com/domwxyz/marxist-search/internal/query"
	"github.com/domwxyz/marxist-search/internal/store"
)

// Request is one search invocation: the raw query string plus pagination and
// attribute filters. Filters mirror the HTTP filter JSON.
type Request struct {
	Query  string
	Filter store.SearchFilter
	Limit  int
	Offset int

	// Explain attaches per-signal boost components to every result for
	// debugging, at the cost of a larger response payload.
	Explain bool
}

// ExplainData carries the individual reranking signal contributions for one
// result, present only when Request.Explain is set.
type ExplainData struct {
	BaseSemanticScore float64 `json:"base_semantic_score"`
	TitleBoost        float64 `json:"title_boost"`
	PhraseBoost       float64 `json:"phrase_boost"`
	KeywordBoost      float64 `json:"keyword_boost"`
	DiscoveryBoost    float64 `json:"discovery_boost"`
	RecencyBoost      float64 `json:"recency_boost"`
	QueryLengthM      float64 `json:"query_length_m"`
}

// Result is one hydrated, ranked, excerpted search hit. It carries
// roughly 15 fields plus an optional debug payload, by explicit design:
// no grab-bag maps, typed accessors only.
type Result struct {
	ID              string    `json:"id"`
	ArticleID       int       `json:"article_id"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	Source          string    `json:"source"`
	Author          string    `json:"author"`
	PublishedDate   time.Time `json:"published_date"`
	Excerpt         string    `json:"excerpt"`
	MatchedPhrase   string    `json:"matched_phrase"`
	Score           float64   `json:"score"`
	MatchedSections int       `json:"matched_sections"`
	WordCount       int       `json:"word_count"`
	Tags            []string  `json:"tags"`
	Terms           []string  `json:"terms"`

	Explain *ExplainData `json:"explain,omitempty"`
}

// Response is the full payload returned by Engine.Search.
type Response struct {
	Results     []Result          `json:"results"`
	Total       int               `json:"total"`
	Page        int               `json:"page"`
	Limit       int               `json:"limit"`
	Offset      int               `json:"offset"`
	QueryTimeMS int64             `json:"query_time_ms"`
	Query       string            `json:"query"`
	Parsed      query.Parsed      `json:"parsed_query"`
	Filter      store.SearchFilter `json:"filters"`
	Error       string            `json:"error,omitempty"`
}

// Page computes the 1-based page number implied by offset/limit: a result
// set of exactly limit rows is page offset/limit + 1, with no overflow.
func Page(offset, limit int) int {
	if limit <= 0 {
		return 1
	}
	return offset/limit + 1
}

// candidate is an internal working record threaded through the pipeline
// stages: a recalled vector candidate joined with its filter projection and
// whatever scoring state has accumulated so far. It is never exposed outside
// this package; Result is the public shape.
type candidate struct {
	row   store.FilterRow
	score float64

	content        string // populated lazily once any stage needs body text
	contentFetched bool

	matchedPhrase   string
	matchedSections int

	explain ExplainData
}

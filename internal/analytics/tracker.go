// Package analytics tracks search usage: term frequency by vocabulary
// category, term hit rates in results, author-filter popularity, tag
// distribution, result-less queries, and synonym-expansion effectiveness.
// State persists as one JSON file under the data directory and is flushed
// every flushEvery searches rather than on every query.
package analytics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/domwxyz/marxist-search/internal/retrieval"
	"github.com/domwxyz/marxist-search/internal/store"
)

// defaultFlushEvery is how many tracked searches accumulate in memory
// before the file is rewritten.
const defaultFlushEvery = 100

// maxNoResultQueries bounds the retained ring of result-less queries.
const maxNoResultQueries = 100

// NoResultQuery records one search that returned nothing, kept so the
// vocabulary and corpus gaps it exposes can be reviewed later.
type NoResultQuery struct {
	Query     string    `json:"query"`
	Author    string    `json:"author,omitempty"`
	Source    string    `json:"source,omitempty"`
	DateRange string    `json:"date_range,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SynonymStats aggregates synonym-expansion effectiveness.
type SynonymStats struct {
	Total  int                       `json:"total_synonym_matches"`
	ByTerm map[string]map[string]int `json:"matches_by_term"`
}

// Tracking is the accumulating body of the analytics file.
type Tracking struct {
	MostSearchedTerms   map[string]map[string]int `json:"most_searched_terms"` // category -> term -> count
	MostSearchedAuthors map[string]int            `json:"most_searched_authors"`
	SearchVolumeByDate  map[string]int            `json:"search_volume_by_date"`
	TagDistribution     map[string]int            `json:"tag_distribution_in_results"`
	TermHitRates        map[string]map[string]int `json:"term_hit_rates"` // category -> term -> hits
	AvgResultsPerSearch float64                   `json:"avg_results_per_search"`
	NoResultQueries     []NoResultQuery           `json:"searches_with_no_results"`
	SynonymMatches      SynonymStats              `json:"synonym_matching_stats"`
}

// Metadata carries bookkeeping about the tracking run itself.
type Metadata struct {
	LastUpdated   time.Time `json:"last_updated"`
	TotalSearches int       `json:"total_searches_tracked"`
	TrackingSince string    `json:"tracking_start_date"`
}

// Data is the full persisted shape.
type Data struct {
	Tracking Tracking `json:"tracking"`
	Metadata Metadata `json:"metadata"`
}

// Tracker implements retrieval.Tracker over a JSON file. All methods are
// safe for concurrent use and never return an error to the query path;
// persistence failures are reported only from Save and Close.
type Tracker struct {
	mu         sync.Mutex
	path       string
	flushEvery int
	pending    int
	categoryOf func(term string) (string, bool)
	data       Data
}

// New opens (or initializes) the analytics file at path. categoryOf maps a
// result term to its vocabulary category for hit-rate bucketing; nil
// disables term bucketing but keeps every other signal.
func New(path string, flushEvery int, categoryOf func(term string) (string, bool)) (*Tracker, error) {
	if flushEvery <= 0 {
		flushEvery = defaultFlushEvery
	}
	t := &Tracker{
		path:       path,
		flushEvery: flushEvery,
		categoryOf: categoryOf,
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &t.data); err != nil {
			return nil, fmt.Errorf("parse analytics file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		t.data = emptyData()
	default:
		return nil, fmt.Errorf("read analytics file %s: %w", path, err)
	}

	ensureMaps(&t.data)
	return t, nil
}

func emptyData() Data {
	now := time.Now().UTC()
	return Data{
		Metadata: Metadata{
			LastUpdated:   now,
			TrackingSince: now.Format("2006-01-02"),
		},
	}
}

// ensureMaps initializes any nil maps so a file written by an older layout
// (or a fresh empty Data) never panics on increment.
func ensureMaps(d *Data) {
	tr := &d.Tracking
	if tr.MostSearchedTerms == nil {
		tr.MostSearchedTerms = map[string]map[string]int{}
	}
	if tr.MostSearchedAuthors == nil {
		tr.MostSearchedAuthors = map[string]int{}
	}
	if tr.SearchVolumeByDate == nil {
		tr.SearchVolumeByDate = map[string]int{}
	}
	if tr.TagDistribution == nil {
		tr.TagDistribution = map[string]int{}
	}
	if tr.TermHitRates == nil {
		tr.TermHitRates = map[string]map[string]int{}
	}
	if tr.SynonymMatches.ByTerm == nil {
		tr.SynonymMatches.ByTerm = map[string]map[string]int{}
	}
}

// TrackSearch records one executed search and its final result page.
func (t *Tracker) TrackSearch(query string, filter store.SearchFilter, results []retrieval.Result, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Metadata.TotalSearches++
	n := t.data.Metadata.TotalSearches

	if filter.Author != "" {
		t.data.Tracking.MostSearchedAuthors[filter.Author]++
	}

	// Rolling mean over every tracked search.
	avg := t.data.Tracking.AvgResultsPerSearch
	t.data.Tracking.AvgResultsPerSearch = (avg*float64(n-1) + float64(total)) / float64(n)

	if total == 0 {
		ring := t.data.Tracking.NoResultQueries
		if len(ring) >= maxNoResultQueries {
			ring = ring[1:]
		}
		t.data.Tracking.NoResultQueries = append(ring, NoResultQuery{
			Query:     query,
			Author:    filter.Author,
			Source:    filter.Source,
			DateRange: filter.DateRangePreset,
			Timestamp: time.Now().UTC(),
		})
	}

	for _, r := range results {
		t.trackTermHits(r.Terms)
		for _, tag := range r.Tags {
			t.data.Tracking.TagDistribution[tag]++
		}
	}

	today := time.Now().UTC().Format("2006-01-02")
	t.data.Tracking.SearchVolumeByDate[today]++

	t.pending++
	if t.pending >= t.flushEvery {
		if err := t.saveLocked(); err == nil {
			t.pending = 0
		}
	}
}

// trackTermHits buckets each distinct result term under its vocabulary
// category. Terms outside the vocabulary (or with no categoryOf configured)
// are skipped; caller holds the lock.
func (t *Tracker) trackTermHits(terms []string) {
	if t.categoryOf == nil {
		return
	}
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		category, ok := t.categoryOf(term)
		if !ok {
			continue
		}
		hits := t.data.Tracking.TermHitRates[category]
		if hits == nil {
			hits = map[string]int{}
			t.data.Tracking.TermHitRates[category] = hits
		}
		hits[term]++
	}
}

// TrackTermMention records a vocabulary term appearing in a query.
func (t *Tracker) TrackTermMention(term, category string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	terms := t.data.Tracking.MostSearchedTerms[category]
	if terms == nil {
		terms = map[string]int{}
		t.data.Tracking.MostSearchedTerms[category] = terms
	}
	terms[term]++
}

// TrackSynonymMatch records one synonym expansion firing for a base term.
func (t *Tracker) TrackSynonymMatch(base, variant string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Tracking.SynonymMatches.Total++
	matches := t.data.Tracking.SynonymMatches.ByTerm[base]
	if matches == nil {
		matches = map[string]int{}
		t.data.Tracking.SynonymMatches.ByTerm[base] = matches
	}
	matches[variant]++
}

// Count is one ranked (name, count) row of a top-N report.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TopTerms returns the most-searched terms in a category, count descending.
func (t *Tracker) TopTerms(category string, limit int) []Count {
	t.mu.Lock()
	defer t.mu.Unlock()
	return topN(t.data.Tracking.MostSearchedTerms[category], limit)
}

// TopAuthors returns the most-used author filters, count descending.
func (t *Tracker) TopAuthors(limit int) []Count {
	t.mu.Lock()
	defer t.mu.Unlock()
	return topN(t.data.Tracking.MostSearchedAuthors, limit)
}

func topN(counts map[string]int, limit int) []Count {
	out := make([]Count, 0, len(counts))
	for name, count := range counts {
		out = append(out, Count{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Summary is the headline analytics report.
type Summary struct {
	TotalSearches       int       `json:"total_searches"`
	AvgResultsPerSearch float64   `json:"avg_results_per_search"`
	NoResultCount       int       `json:"no_results_count"`
	TotalSynonymMatches int       `json:"total_synonym_matches"`
	LastUpdated         time.Time `json:"last_updated"`
}

// Stats returns the headline numbers.
func (t *Tracker) Stats() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Summary{
		TotalSearches:       t.data.Metadata.TotalSearches,
		AvgResultsPerSearch: t.data.Tracking.AvgResultsPerSearch,
		NoResultCount:       len(t.data.Tracking.NoResultQueries),
		TotalSynonymMatches: t.data.Tracking.SynonymMatches.Total,
		LastUpdated:         t.data.Metadata.LastUpdated,
	}
}

// Save writes the analytics file, using the temp-file-then-rename pattern so
// a crash mid-write never truncates previously-saved data.
func (t *Tracker) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.saveLocked(); err != nil {
		return err
	}
	t.pending = 0
	return nil
}

func (t *Tracker) saveLocked() error {
	t.data.Metadata.LastUpdated = time.Now().UTC()

	raw, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal analytics: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create analytics dir: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write analytics file: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace analytics file: %w", err)
	}
	return nil
}

// Close flushes any pending updates.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == 0 {
		return nil
	}
	if err := t.saveLocked(); err != nil {
		return err
	}
	t.pending = 0
	return nil
}

var _ retrieval.Tracker = (*Tracker)(nil)

package analytics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domwxyz/marxist-search/internal/retrieval"
	"github.com/domwxyz/marxist-search/internal/store"
)

func testCategoryOf(term string) (string, bool) {
	switch term {
	case "permanent revolution", "dialectics":
		return "concepts", true
	case "paris commune":
		return "history", true
	}
	return "", false
}

func newTestTracker(t *testing.T) (*Tracker, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analytics.json")
	tr, err := New(path, 1000, testCategoryOf)
	require.NoError(t, err)
	return tr, path
}

func result(terms, tags []string) retrieval.Result {
	return retrieval.Result{Terms: terms, Tags: tags}
}

func TestTrackSearchCountsAndAverages(t *testing.T) {
	tr, _ := newTestTracker(t)

	tr.TrackSearch("imperialism", store.SearchFilter{}, []retrieval.Result{result(nil, nil)}, 10)
	tr.TrackSearch("dialectics", store.SearchFilter{}, nil, 0)

	stats := tr.Stats()
	assert.Equal(t, 2, stats.TotalSearches)
	assert.InDelta(t, 5.0, stats.AvgResultsPerSearch, 1e-9)
	assert.Equal(t, 1, stats.NoResultCount)
}

func TestTrackSearchRecordsAuthorPopularity(t *testing.T) {
	tr, _ := newTestTracker(t)

	tr.TrackSearch("x", store.SearchFilter{Author: "Alan Woods"}, nil, 3)
	tr.TrackSearch("y", store.SearchFilter{Author: "Alan Woods"}, nil, 1)
	tr.TrackSearch("z", store.SearchFilter{Author: "Ted Grant"}, nil, 2)

	top := tr.TopAuthors(10)
	require.Len(t, top, 2)
	assert.Equal(t, Count{Name: "Alan Woods", Count: 2}, top[0])
	assert.Equal(t, Count{Name: "Ted Grant", Count: 1}, top[1])
}

func TestTrackSearchBucketsTermHitsByCategory(t *testing.T) {
	tr, _ := newTestTracker(t)

	results := []retrieval.Result{
		result([]string{"permanent revolution", "paris commune"}, []string{"theory"}),
		result([]string{"permanent revolution", "unknown term"}, []string{"theory", "history"}),
	}
	tr.TrackSearch("q", store.SearchFilter{}, results, 2)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, 2, tr.data.Tracking.TermHitRates["concepts"]["permanent revolution"])
	assert.Equal(t, 1, tr.data.Tracking.TermHitRates["history"]["paris commune"])
	assert.Empty(t, tr.data.Tracking.TermHitRates[""], "uncategorized terms are skipped")
	assert.Equal(t, 2, tr.data.Tracking.TagDistribution["theory"])
	assert.Equal(t, 1, tr.data.Tracking.TagDistribution["history"])
}

func TestNoResultRingIsBounded(t *testing.T) {
	tr, _ := newTestTracker(t)

	for i := 0; i < maxNoResultQueries+20; i++ {
		tr.TrackSearch(fmt.Sprintf("query %d", i), store.SearchFilter{}, nil, 0)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Len(t, tr.data.Tracking.NoResultQueries, maxNoResultQueries)
	// Oldest entries were evicted.
	assert.Equal(t, "query 20", tr.data.Tracking.NoResultQueries[0].Query)
}

func TestTermMentionAndSynonymTracking(t *testing.T) {
	tr, _ := newTestTracker(t)

	tr.TrackTermMention("dialectics", "concepts")
	tr.TrackTermMention("dialectics", "concepts")
	tr.TrackSynonymMatch("capitalism", "capital")
	tr.TrackSynonymMatch("capitalism", "capitalist system")
	tr.TrackSynonymMatch("capitalism", "capital")

	top := tr.TopTerms("concepts", 5)
	require.Len(t, top, 1)
	assert.Equal(t, Count{Name: "dialectics", Count: 2}, top[0])

	assert.Equal(t, 3, tr.Stats().TotalSynonymMatches)
	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, 2, tr.data.Tracking.SynonymMatches.ByTerm["capitalism"]["capital"])
}

func TestSaveAndReloadRoundTrips(t *testing.T) {
	tr, path := newTestTracker(t)
	tr.TrackSearch("imperialism", store.SearchFilter{Author: "Lenin"}, nil, 4)
	tr.TrackSynonymMatch("crisis", "slump")
	require.NoError(t, tr.Save())

	reloaded, err := New(path, 1000, testCategoryOf)
	require.NoError(t, err)

	stats := reloaded.Stats()
	assert.Equal(t, 1, stats.TotalSearches)
	assert.Equal(t, 1, stats.TotalSynonymMatches)
	assert.Equal(t, []Count{{Name: "Lenin", Count: 1}}, reloaded.TopAuthors(5))
}

func TestFlushEveryWritesPeriodically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics.json")
	tr, err := New(path, 2, nil)
	require.NoError(t, err)

	tr.TrackSearch("one", store.SearchFilter{}, nil, 1)
	assert.NoFileExists(t, path)

	tr.TrackSearch("two", store.SearchFilter{}, nil, 1)
	assert.FileExists(t, path)

	var data Data
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, 2, data.Metadata.TotalSearches)
}

func TestCloseFlushesPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics.json")
	tr, err := New(path, 1000, nil)
	require.NoError(t, err)

	tr.TrackSearch("pending", store.SearchFilter{}, nil, 1)
	require.NoError(t, tr.Close())
	assert.FileExists(t, path)

	// A second Close with nothing pending is a no-op.
	require.NoError(t, tr.Close())
}

func TestNewRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := New(path, 0, nil)
	assert.Error(t, err)
}

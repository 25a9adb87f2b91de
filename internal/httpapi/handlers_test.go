package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domwxyz/marxist-search/internal/retrieval"
	"github.com/domwxyz/marxist-search/internal/store"
)

// stubVectorStore returns nothing; handler tests exercise the DB path.
type stubVectorStore struct{}

func (stubVectorStore) Search(ctx context.Context, queryText string, limit int) ([]store.Candidate, error) {
	return nil, nil
}
func (stubVectorStore) Count() int   { return 0 }
func (stubVectorStore) Close() error { return nil }

func newTestServer(t *testing.T) (*Server, *store.SQLiteMetadataStore) {
	t.Helper()
	meta, err := store.NewSQLiteMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	engine := retrieval.NewEngine(meta, stubVectorStore{}, nil, retrieval.DefaultConfig())
	return New(engine, Options{Addr: "127.0.0.1:0"}), meta
}

func (s *Server) serveHTTP(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := s.serveHTTP(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestSearchPhraseQueryOverDBPath(t *testing.T) {
	s, meta := newTestServer(t)
	_, err := meta.UpsertArticle(context.Background(), store.Article{
		URL:         "https://example.org/pr",
		Title:       "On Permanent Revolution",
		Body:        "The theory of permanent revolution was developed by Trotsky.",
		Source:      "example.org",
		PublishedAt: time.Now().AddDate(0, 0, -3),
		WordCount:   10,
	})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]any{"query": `"permanent revolution"`, "limit": 10})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	rec := s.serveHTTP(req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp retrieval.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "On Permanent Revolution", resp.Results[0].Title)
	assert.Equal(t, 1, resp.Total)
}

func TestSearchRejectsOversizedQuery(t *testing.T) {
	s, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"query": strings.Repeat("q", 600)})
	rec := s.serveHTTP(httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "500")
}

func TestSearchRejectsMalformedJSON(t *testing.T) {
	s, _ := newTestServer(t)

	rec := s.serveHTTP(httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchInvalidDateYieldsEmptyResults(t *testing.T) {
	s, meta := newTestServer(t)
	_, err := meta.UpsertArticle(context.Background(), store.Article{
		URL:         "https://example.org/a",
		Title:       "Any Article",
		Body:        "crisis of capitalism",
		Source:      "example.org",
		PublishedAt: time.Now(),
		WordCount:   3,
	})
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]any{
		"query":   `"crisis"`,
		"filters": map[string]any{"start_date": "not-a-date"},
	})
	rec := s.serveHTTP(httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp retrieval.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Results)
}

func TestStatsEndpointIncludesVectorCount(t *testing.T) {
	s, _ := newTestServer(t)

	rec := s.serveHTTP(httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats store.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.VectorCount)
}

func TestReloadIndexWithoutReloadableStoreIs500(t *testing.T) {
	s, _ := newTestServer(t)

	rec := s.serveHTTP(httptest.NewRequest(http.MethodPost, "/api/v1/reload-index", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTopAuthorsEndpointParsesQueryParams(t *testing.T) {
	s, meta := newTestServer(t)
	for i, author := range []string{"Alan Woods", "Alan Woods", "Ted Grant"} {
		_, err := meta.UpsertArticle(context.Background(), store.Article{
			URL:         "https://example.org/" + string(rune('a'+i)),
			Title:       "Article",
			Body:        "body",
			Author:      author,
			Source:      "example.org",
			PublishedAt: time.Now(),
			WordCount:   1,
		})
		require.NoError(t, err)
	}

	rec := s.serveHTTP(httptest.NewRequest(http.MethodGet, "/api/v1/top-authors?min_articles=2&limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Authors []store.AuthorAggregate `json:"authors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Authors, 1)
	assert.Equal(t, "Alan Woods", resp.Authors[0].Name)
}

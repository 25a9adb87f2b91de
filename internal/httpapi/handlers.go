package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/domwxyz/marxist-search/internal/errors"
	"github.com/domwxyz/marxist-search/internal/retrieval"
	"github.com/domwxyz/marxist-search/internal/store"
)

// searchRequestBody is the JSON body of POST /api/v1/search.
type searchRequestBody struct {
	Query   string     `json:"query"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
	Explain bool       `json:"explain"`
	Filter  filterBody `json:"filters"`
}

// maxHTTPQueryLength is the façade's own cap, tighter than the parser's
// 1000-character limit.
const maxHTTPQueryLength = 500

// filterBody is the filter JSON: {source?, author?, date_range?,
// start_date?, end_date?, published_year?, min_word_count?}. Dates are
// YYYY-MM-DD; a non-ISO date is not a request error, it makes the date
// predicate always-false, carried through as SearchFilter.InvalidDateRange.
type filterBody struct {
	Source        string `json:"source"`
	Author        string `json:"author"`
	PublishedYear int    `json:"published_year"`
	MinWordCount  int    `json:"min_word_count"`
	DateRange     string `json:"date_range"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
}

const filterDateLayout = "2006-01-02"

func (f filterBody) toStoreFilter() store.SearchFilter {
	sf := store.SearchFilter{
		Source:          f.Source,
		Author:          f.Author,
		PublishedYear:   f.PublishedYear,
		MinWordCount:    f.MinWordCount,
		DateRangePreset: f.DateRange,
	}

	if f.StartDate != "" {
		if t, err := time.Parse(filterDateLayout, f.StartDate); err == nil {
			sf.StartDate = &t
		} else {
			sf.InvalidDateRange = true
		}
	}
	if f.EndDate != "" {
		if t, err := time.Parse(filterDateLayout, f.EndDate); err == nil {
			// Inclusive end-of-day, matching the preset ranges' semantics.
			t = t.Add(24*time.Hour - time.Nanosecond)
			sf.EndDate = &t
		} else {
			sf.InvalidDateRange = true
		}
	}
	return sf
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "malformed JSON request body")
		return
	}
	if len([]rune(body.Query)) > maxHTTPQueryLength {
		writeError(w, http.StatusBadRequest, apperrors.ErrCodeQueryTooLong,
			"query exceeds 500 characters")
		return
	}

	resp, err := s.engine.Search(r.Context(), retrieval.Request{
		Query:   body.Query,
		Filter:  body.Filter.toStoreFilter(),
		Limit:   body.Limit,
		Offset:  body.Offset,
		Explain: body.Explain,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.engine.Sources(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (s *Server) handleTopAuthors(w http.ResponseWriter, r *http.Request) {
	minArticles := 1
	if v := r.URL.Query().Get("min_articles"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			minArticles = n
		}
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	authors, err := s.engine.TopAuthors(r.Context(), minArticles, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authors": authors})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleReloadIndex triggers an atomic vector-index reload. It is
// synchronous: the response is not sent until the swap completes or fails,
// so a client can rely on a 200 meaning queries now see the new index.
func (s *Server) handleReloadIndex(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	if err := s.engine.ReloadIndex(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, apperrors.ErrCodeIndexFailed, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

// writeEngineError maps a retrieval error to an HTTP status via its
// structured code and category, rather than collapsing everything to 500:
// timeouts surface as 504, an unloaded or unreachable vector index as 503,
// validation problems as 400.
func writeEngineError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	default:
		switch apperrors.GetCategory(err) {
		case apperrors.CategoryValidation:
			status = http.StatusBadRequest
		case apperrors.CategoryIO, apperrors.CategoryNetwork:
			status = http.StatusServiceUnavailable
		}
	}
	if code == "" {
		code = apperrors.ErrCodeInternal
	}
	writeError(w, status, code, err.Error())
}

package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/domwxyz/marxist-search/internal/store"
)

// resolveDateRange turns a date_range preset or explicit start/end into a
// concrete inclusive [start, end] window, anchored to now. It
// mirrors the SQL-side preset table in the metadata store's DB path, since
// both paths must agree on what "past_week" means.
func resolveDateRange(filter store.SearchFilter, now time.Time) (start, end time.Time, ok bool) {
	if filter.StartDate != nil || filter.EndDate != nil {
		s := time.Time{}
		e := now
		if filter.StartDate != nil {
			s = *filter.StartDate
		}
		if filter.EndDate != nil {
			e = *filter.EndDate
		}
		return s, e, true
	}

	switch filter.DateRangePreset {
	case "past_week":
		return now.AddDate(0, 0, -7), now, true
	case "past_month":
		return now.AddDate(0, 0, -30), now, true
	case "past_3months":
		return now.AddDate(0, 0, -90), now, true
	case "past_year":
		return now.AddDate(0, 0, -365), now, true
	case "2020s":
		s, e := yearBounds(2020, 2029)
		return s, e, true
	case "2010s":
		s, e := yearBounds(2010, 2019)
		return s, e, true
	case "2000s":
		s, e := yearBounds(2000, 2009)
		return s, e, true
	case "1990s":
		s, e := yearBounds(1990, 1999)
		return s, e, true
	default:
		return time.Time{}, time.Time{}, false
	}
}

func yearBounds(startYear, endYear int) (time.Time, time.Time) {
	start := time.Date(startYear, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(endYear, 12, 31, 23, 59, 59, 0, time.UTC)
	return start, end
}

// applyAttributeFilters applies the attribute predicates in application code
// against the already-hydrated filter projection, rather than re-querying
// SQL: source exact match, author whole-word-token match, published_year
// exact match, min_word_count inclusive floor, and date_range.
func applyAttributeFilters(cands []*candidate, filter store.SearchFilter, now time.Time) []*candidate {
	if isEmptyFilter(filter) {
		return cands
	}
	if filter.InvalidDateRange {
		return nil // an unparseable date makes the predicate always false
	}

	var rangeStart, rangeEnd time.Time
	var hasRange bool
	if filter.DateRangePreset != "" || filter.StartDate != nil || filter.EndDate != nil {
		rangeStart, rangeEnd, hasRange = resolveDateRange(filter, now)
	}

	var authorTokens []string
	if filter.Author != "" {
		authorTokens = strings.Fields(strings.ToLower(filter.Author))
	}

	out := cands[:0:0]
	for _, c := range cands {
		if filter.Source != "" && c.row.Source != filter.Source {
			continue
		}
		if filter.PublishedYear != 0 && c.row.PublishedYear != filter.PublishedYear {
			continue
		}
		if filter.MinWordCount != 0 && c.row.WordCount < filter.MinWordCount {
			continue
		}
		if len(authorTokens) > 0 && !authorContainsAllTokens(c.row.NormalizedAuthor(), authorTokens) {
			continue
		}
		if hasRange {
			if c.row.PublishedDate.Before(rangeStart) || c.row.PublishedDate.After(rangeEnd) {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func isEmptyFilter(f store.SearchFilter) bool {
	return f.Source == "" && f.Author == "" && f.PublishedYear == 0 &&
		f.MinWordCount == 0 && f.DateRangePreset == "" && f.StartDate == nil && f.EndDate == nil &&
		!f.InvalidDateRange
}

// authorContainsAllTokens requires every token to appear as a whole word in
// the author string, case-insensitively (`author:"Alan Woods"`
// matches an author field containing both "alan" and "woods").
func authorContainsAllTokens(author string, tokens []string) bool {
	lower := strings.ToLower(author)
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		pattern := `\b` + regexp.QuoteMeta(tok) + `\b`
		matched, err := regexp.MatchString(pattern, lower)
		if err != nil || !matched {
			return false
		}
	}
	return true
}

// applyPhraseFilters enforces quoted phrases: every exact phrase must match as a
// whole-word sequence against title+body (substring matches rejected); every
// title phrase must match as a substring of the title alone. Both filters
// are conjunctive across phrases. Content already fetched during the
// semantic-cutoff bypass is reused; only the remainder is batch-fetched.
func applyPhraseFilters(ctx context.Context, cands []*candidate, exactPhrases, titlePhrases []string, metadata store.MetadataStore) ([]*candidate, error) {
	for _, p := range titlePhrases {
		lowerPhrase := strings.ToLower(p)
		filtered := cands[:0:0]
		for _, c := range cands {
			if strings.Contains(strings.ToLower(c.row.Title), lowerPhrase) {
				filtered = append(filtered, c)
			}
		}
		cands = filtered
	}

	if len(exactPhrases) == 0 || len(cands) == 0 {
		return cands, nil
	}

	var toFetch []string
	for _, c := range cands {
		if !c.contentFetched {
			toFetch = append(toFetch, c.row.ID)
		}
	}
	if len(toFetch) > 0 {
		content, err := metadata.FetchContent(ctx, toFetch)
		if err != nil {
			return nil, fmt.Errorf("fetch content for phrase filter: %w", err)
		}
		for _, c := range cands {
			if c.contentFetched {
				continue
			}
			if body, ok := content[c.row.ID]; ok {
				c.content = body
				c.contentFetched = true
			}
		}
	}

	patterns := make([]*regexp.Regexp, len(exactPhrases))
	for i, p := range exactPhrases {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p) + `\b`)
	}

	out := cands[:0:0]
	for _, c := range cands {
		haystack := c.row.Title + " " + c.content
		matchesAll := true
		for _, p := range patterns {
			if !p.MatchString(haystack) {
				matchesAll = false
				break
			}
		}
		if matchesAll {
			out = append(out, c)
		}
	}
	return out, nil
}

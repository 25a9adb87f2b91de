package retrieval

import (
	"testing"
	"time"

	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/stretchr/testify/require"
)

func TestDedupeKeepsHighestScoringUnitPerArticle(t *testing.T) {
	cands := []*candidate{
		{row: store.FilterRow{ID: "a_1", ArticleID: 1}, score: 0.5},
		{row: store.FilterRow{ID: "c_1_0", ArticleID: 1}, score: 0.9},
		{row: store.FilterRow{ID: "c_1_1", ArticleID: 1}, score: 0.2},
		{row: store.FilterRow{ID: "a_2", ArticleID: 2}, score: 0.3},
	}

	out := dedupe(cands)
	require.Len(t, out, 2)

	byArticle := make(map[int]*candidate)
	for _, c := range out {
		byArticle[c.row.ArticleID] = c
	}
	require.Equal(t, 0.9, byArticle[1].score)
	require.Equal(t, 3, byArticle[1].matchedSections)
	require.Equal(t, 0.3, byArticle[2].score)
	require.Equal(t, 1, byArticle[2].matchedSections)
}

func TestComputeScoreStats(t *testing.T) {
	stats := computeScoreStats([]float64{0.2, 0.4, 0.6, 0.8})
	require.InDelta(t, 0.5, stats.mean, 1e-9)
	require.InDelta(t, 0.5, stats.median, 1e-9)
	require.Greater(t, stats.std, 0.0)
}

func TestHybridThresholdRespectsFloor(t *testing.T) {
	cfg := SemanticFilterConfig{Center: CenterMean, MinAbsoluteThreshold: 0.35}
	stats := scoreStats{mean: 0.30, median: 0.30, std: 0.20}
	require.Equal(t, 0.35, hybridThreshold(stats, cfg))
}

func TestHybridThresholdTightClusterIsStricter(t *testing.T) {
	cfg := SemanticFilterConfig{Center: CenterMean, MinAbsoluteThreshold: 0.0}
	tight := scoreStats{mean: 0.5, median: 0.5, std: 0.02}
	wide := scoreStats{mean: 0.5, median: 0.5, std: 0.15}
	require.Greater(t, hybridThreshold(tight, cfg), hybridThreshold(wide, cfg))
}

func TestRecencyBoostTiers(t *testing.T) {
	cfg := DefaultConfig().RecencyBoost
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)

	require.Equal(t, cfg.Under7Days, recencyBoost(now.AddDate(0, 0, -1), now, cfg))
	require.Equal(t, cfg.Under30Days, recencyBoost(now.AddDate(0, 0, -15), now, cfg))
	require.Equal(t, cfg.Under90Days, recencyBoost(now.AddDate(0, 0, -60), now, cfg))
	require.Equal(t, cfg.UnderYear, recencyBoost(now.AddDate(0, -6, 0), now, cfg))
	require.Equal(t, cfg.Under3Years, recencyBoost(now.AddDate(-2, 0, 0), now, cfg))
	require.Equal(t, 0.0, recencyBoost(now.AddDate(-5, 0, 0), now, cfg))
	require.Equal(t, 0.0, recencyBoost(time.Time{}, now, cfg))
}

func TestApplyAttributeFiltersAuthorRequiresAllTokens(t *testing.T) {
	cands := []*candidate{
		{row: store.FilterRow{ID: "a_1", ArticleID: 1, Author: "Alan Woods"}},
		{row: store.FilterRow{ID: "a_2", ArticleID: 2, Author: "Alan Smith"}},
	}
	out := applyAttributeFilters(cands, store.SearchFilter{Author: "Alan Woods"}, time.Now())
	require.Len(t, out, 1)
	require.Equal(t, 1, out[0].row.ArticleID)
}

func TestApplyAttributeFiltersDateRangePastWeek(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	cands := []*candidate{
		{row: store.FilterRow{ID: "a_1", ArticleID: 1, PublishedDate: now.AddDate(0, 0, -2)}},
		{row: store.FilterRow{ID: "a_2", ArticleID: 2, PublishedDate: now.AddDate(0, 0, -20)}},
	}
	out := applyAttributeFilters(cands, store.SearchFilter{DateRangePreset: "past_week"}, now)
	require.Len(t, out, 1)
	require.Equal(t, 1, out[0].row.ArticleID)
}

package retrieval

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/domwxyz/marxist-search/internal/store"
)

var wordPattern = regexp.MustCompile(`[A-Za-z0-9']+`)

func tokenizeWords(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

func wordCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, w := range tokenizeWords(text) {
		counts[w]++
	}
	return counts
}

// rerank applies the multi-signal boosts in a fixed order (title terms,
// phrase presence, keyword density, semantic discovery, recency), recording
// each component on c.explain as it goes. Content needed for the
// body-dependent signals is fetched in one batch for the top candidates;
// anything fetched earlier (semantic-cutoff bypass, phrase filtering) is
// reused.
func rerank(ctx context.Context, cands []*candidate, terms []string, cfg Config, metadata store.MetadataStore, now time.Time) ([]*candidate, error) {
	qLen := len(terms)
	m := cfg.QueryLengthScaling.Multiplier(qLen)

	lowerTerms := make([]string, qLen)
	for i, t := range terms {
		lowerTerms[i] = strings.ToLower(t)
	}
	queryPhrase := strings.ToLower(strings.Join(terms, " "))
	var phrasePattern *regexp.Regexp
	if queryPhrase != "" {
		phrasePattern = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(queryPhrase) + `\b`)
	}

	for _, c := range cands {
		c.explain.BaseSemanticScore = c.score
		c.explain.QueryLengthM = m
	}

	// Title-term boost and the title-only tier of phrase-presence both need
	// a per-candidate word set of the title; compute once.
	titleWords := make([]map[string]int, len(cands))
	for i, c := range cands {
		titleWords[i] = wordCounts(c.row.Title)
	}

	if qLen > 0 {
		for i, c := range cands {
			hit := 0
			for _, t := range lowerTerms {
				if titleWords[i][t] > 0 {
					hit++
				}
			}
			boost := cfg.TitleBoostMax * (float64(hit) / float64(qLen)) * m
			c.explain.TitleBoost = boost
			c.score += boost
		}
	}

	// Body-dependent signals (the phrase-presence body tier and keyword
	// density) only look at the top candidates by current score; fetching
	// body text for the whole recall set would defeat the light/heavy
	// hydration split. Content already fetched by the cutoff bypass or the
	// phrase filter is reused for free.
	ranked := append([]*candidate(nil), cands...)
	sortByScoreDesc(ranked)
	topN := cfg.KeywordRerankTopN
	if topN > len(ranked) {
		topN = len(ranked)
	}
	if err := ensureContent(ctx, ranked[:topN], metadata); err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	for i, c := range cands {
		var boost float64
		switch {
		case phrasePattern != nil && phrasePattern.MatchString(c.row.Title):
			boost = cfg.PhraseBoostTitle * m
		case phrasePattern != nil && c.contentFetched && phrasePattern.MatchString(c.content):
			boost = cfg.PhraseBoostBody * m
		case qLen > 0 && allTermsPresent(titleWords[i], lowerTerms):
			boost = cfg.PhraseBoostAllTermsTitle * m
		}
		c.explain.PhraseBoost = boost
		c.score += boost
	}

	if qLen > 0 && qLen <= cfg.KeywordBoostMaxQueryLen {
		applyKeywordDensityBoost(ranked[:topN], lowerTerms, cfg, m)
	}

	if qLen > 0 {
		for i, c := range cands {
			titleHits := 0
			for _, t := range lowerTerms {
				if titleWords[i][t] > 0 {
					titleHits++
				}
			}
			if c.explain.BaseSemanticScore >= 0.70 && c.explain.KeywordBoost <= 0.01 && titleHits <= 1 {
				c.explain.DiscoveryBoost = cfg.SemanticDiscoveryBoost * m
				c.score += c.explain.DiscoveryBoost
			}
		}
	}

	for _, c := range cands {
		boost := recencyBoost(c.row.PublishedDate, now, cfg.RecencyBoost)
		c.explain.RecencyBoost = boost
		c.score += boost
	}

	return cands, nil
}

func allTermsPresent(words map[string]int, terms []string) bool {
	for _, t := range terms {
		if words[t] == 0 {
			return false
		}
	}
	return true
}

// applyKeywordDensityBoost rewards short, focused documents over long ones
// with scattered mentions. The caller passes only the top candidates by
// current score, bounding the cost of per-term body counting.
func applyKeywordDensityBoost(cands []*candidate, lowerTerms []string, cfg Config, m float64) {
	for _, c := range cands {
		if c.row.WordCount <= 0 {
			c.explain.KeywordBoost = 0
			continue
		}
		bodyWords := wordCounts(c.content)

		var sumTF float64
		for _, t := range lowerTerms {
			f := float64(bodyWords[t])
			var density float64
			if cfg.KeywordLengthNormalization == DensityLog {
				density = f / math.Log(float64(c.row.WordCount)+100)
			} else {
				density = (f / float64(c.row.WordCount)) * cfg.DensityScale
			}
			sumTF += 1 + math.Log(1+density)
		}
		avgTF := sumTF / float64(len(lowerTerms))
		boost := avgTF * cfg.KeywordBoostScale
		max := cfg.KeywordBoostMax * m
		if boost > max {
			boost = max
		}
		c.explain.KeywordBoost = boost
		c.score += boost
	}
}

// recencyBoost returns the additive per-tier bump for how old published is
// relative to now. Never scaled by the query-length multiplier.
func recencyBoost(published, now time.Time, cfg RecencyBoostConfig) float64 {
	if published.IsZero() {
		return 0
	}
	age := now.Sub(published)
	switch {
	case age < 7*24*time.Hour:
		return cfg.Under7Days
	case age < 30*24*time.Hour:
		return cfg.Under30Days
	case age < 90*24*time.Hour:
		return cfg.Under90Days
	case age < 365*24*time.Hour:
		return cfg.UnderYear
	case age < 3*365*24*time.Hour:
		return cfg.Under3Years
	default:
		return 0
	}
}

// ensureContent batch-fetches body text for every candidate that doesn't
// already have it cached from an earlier pipeline stage.
func ensureContent(ctx context.Context, cands []*candidate, metadata store.MetadataStore) error {
	var toFetch []string
	for _, c := range cands {
		if !c.contentFetched {
			toFetch = append(toFetch, c.row.ID)
		}
	}
	if len(toFetch) == 0 {
		return nil
	}
	content, err := metadata.FetchContent(ctx, toFetch)
	if err != nil {
		return err
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
	return nil
}

func sortByScoreDesc(cands []*candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].row.ArticleID < cands[j].row.ArticleID
	})
}

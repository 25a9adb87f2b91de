package retrieval

import (
	"context"
	"math"
	"regexp"
	"sort"

	"github.com/domwxyz/marxist-search/internal/store"
)

// scoreStats holds the mean/median/std of a candidate score set, computed
// once per query ahead of the semantic cutoff.
type scoreStats struct {
	mean   float64
	median float64
	std    float64
}

func computeScoreStats(scores []float64) scoreStats {
	n := len(scores)
	if n == 0 {
		return scoreStats{}
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(n)

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	var variance float64
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(n)

	return scoreStats{mean: mean, median: median, std: math.Sqrt(variance)}
}

// hybridThreshold is the default cutoff strategy: stricter when the
// score distribution is a tight cluster (semantic isn't discriminating),
// more lenient when it's a wide spread (the ranking can be trusted).
func hybridThreshold(stats scoreStats, cfg SemanticFilterConfig) float64 {
	var stdMul float64
	switch {
	case stats.std < 0.05:
		stdMul = 1.0
	case stats.std > 0.12:
		stdMul = 2.5
	default:
		stdMul = 2.0
	}

	center := stats.mean
	if cfg.Center == CenterMedian {
		center = stats.median
	}

	threshold := center - stdMul*stats.std
	if threshold < cfg.MinAbsoluteThreshold {
		threshold = cfg.MinAbsoluteThreshold
	}
	return threshold
}

// cutoffThreshold dispatches on the configured strategy. statistical drops
// the floor entirely; percentile keeps only the top fraction by score;
// fixed uses a single absolute threshold. hybrid is the default and the one
// the pipeline must implement faithfully; the others exist for ablation.
func cutoffThreshold(scores []float64, stats scoreStats, cfg SemanticFilterConfig) float64 {
	switch cfg.Strategy {
	case CutoffStatistical:
		stdMul := 2.0
		if stats.std < 0.05 {
			stdMul = 1.0
		} else if stats.std > 0.12 {
			stdMul = 2.5
		}
		center := stats.mean
		if cfg.Center == CenterMedian {
			center = stats.median
		}
		return center - stdMul*stats.std
	case CutoffPercentile:
		if len(scores) == 0 {
			return cfg.MinAbsoluteThreshold
		}
		sorted := append([]float64(nil), scores...)
		sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
		keep := int(math.Ceil(cfg.PercentileKeep * float64(len(sorted))))
		if keep < 1 {
			keep = 1
		}
		if keep > len(sorted) {
			keep = len(sorted)
		}
		return sorted[keep-1]
	case CutoffFixed:
		return cfg.FixedThreshold
	default:
		return hybridThreshold(stats, cfg)
	}
}

// meaningfulTerms filters semantic terms to those at least 3 characters
// long, the bar the keyword-aware bypass uses to decide what counts as a
// term worth checking for.
func meaningfulTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if len([]rune(t)) >= 3 {
			out = append(out, t)
		}
	}
	return out
}

// applySemanticCutoff drops candidates scoring below the computed threshold,
// except those rescued by the keyword-aware bypass: a candidate in
// [keywordThreshold, threshold) survives if a meaningful query term appears
// as a whole word in its title or, failing that, in its body, checked via
// a single batched content fetch rather than per-candidate queries.
func applySemanticCutoff(ctx context.Context, cands []*candidate, terms []string, cfg SemanticFilterConfig, metadata store.MetadataStore) []*candidate {
	if len(cands) == 0 {
		return cands
	}

	scores := make([]float64, len(cands))
	for i, c := range cands {
		scores[i] = c.score
	}
	stats := computeScoreStats(scores)
	threshold := cutoffThreshold(scores, stats, cfg)

	meaningful := meaningfulTerms(terms)
	patterns := make([]*regexp.Regexp, len(meaningful))
	for i, t := range meaningful {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(t) + `\b`)
	}

	kept := make([]*candidate, 0, len(cands))
	var bypassCandidates []*candidate

	for _, c := range cands {
		if c.score >= threshold {
			kept = append(kept, c)
			continue
		}
		if c.score < cfg.KeywordThreshold {
			continue
		}

		titleHit := false
		for _, p := range patterns {
			if p.MatchString(c.row.Title) {
				titleHit = true
				break
			}
		}
		if titleHit {
			kept = append(kept, c)
			continue
		}

		bypassCandidates = append(bypassCandidates, c)
	}

	if len(bypassCandidates) > 0 && len(patterns) > 0 {
		ids := make([]string, len(bypassCandidates))
		for i, c := range bypassCandidates {
			ids[i] = c.row.ID
		}
		content, err := metadata.FetchContent(ctx, ids)
		if err == nil {
			for _, c := range bypassCandidates {
				body, ok := content[c.row.ID]
				if !ok {
					continue
				}
				c.content = body
				c.contentFetched = true
				for _, p := range patterns {
					if p.MatchString(body) {
						kept = append(kept, c)
						break
					}
				}
			}
		}
	}

	return kept
}

// Package retrieval implements the central search engine: dispatch,
// expansion, vector recall, semantic cutoff, attribute
// and phrase filtering, deduplication, multi-signal reranking, pagination,
// heavy hydration, and excerpting. Everything here is read-only against the
// metadata and vector stores; ingestion is the only writer.
package retrieval

import "time"

// CutoffStrategy selects how the semantic score cutoff is computed.
type CutoffStrategy string

const (
	CutoffHybrid      CutoffStrategy = "hybrid"
	CutoffStatistical CutoffStrategy = "statistical"
	CutoffPercentile  CutoffStrategy = "percentile"
	CutoffFixed       CutoffStrategy = "fixed"
)

// DensityNormalization selects the denominator used by the keyword density
// boost.
type DensityNormalization string

const (
	DensityLinear DensityNormalization = "linear"
	DensityLog    DensityNormalization = "log"
)

// CutoffCenter selects which statistic the hybrid strategy centers on.
type CutoffCenter string

const (
	CenterMean   CutoffCenter = "mean"
	CenterMedian CutoffCenter = "median"
)

// SemanticFilterConfig configures the adaptive semantic cutoff.
type SemanticFilterConfig struct {
	Strategy             CutoffStrategy
	Center               CutoffCenter
	MinAbsoluteThreshold float64 // floor for the hybrid strategy, default ~0.35
	KeywordThreshold     float64 // lower edge of the keyword-aware bypass band, default ~0.40
	PercentileKeep       float64 // fraction kept by the percentile strategy, e.g. 0.25
	FixedThreshold       float64 // absolute cutoff for the fixed strategy
}

// QueryLengthScaling holds the query-length multiplier `m` tiers.
type QueryLengthScaling struct {
	ShortMultiplier  float64 // q_len <= 2, default 1.00
	MediumMultiplier float64 // q_len == 3, default 0.50
	LongMultiplier   float64 // q_len >= 4, default 0.25
}

// Multiplier returns `m` for a semantic-term count.
func (s QueryLengthScaling) Multiplier(qLen int) float64 {
	switch {
	case qLen <= 2:
		return s.ShortMultiplier
	case qLen == 3:
		return s.MediumMultiplier
	default:
		return s.LongMultiplier
	}
}

// RecencyBoostConfig holds the additive per-tier recency bumps.
// These are never scaled by `m` (an explicit open-question decision, see
// DESIGN.md).
type RecencyBoostConfig struct {
	Under7Days  float64
	Under30Days float64
	Under90Days float64
	UnderYear   float64
	Under3Years float64
}

// Config is the one immutable typed record carrying every retrieval
// tunable. A single value is built at startup and never mutated.
type Config struct {
	SemanticFilter SemanticFilterConfig

	RecallLimit                int                  // default 8000
	KeywordRerankTopN          int                  // default 150-200
	KeywordLengthNormalization DensityNormalization // default linear, per the open-question decision
	DensityScale               float64              // ~1000
	KeywordBoostScale          float64              // ~0.02

	QueryLengthScaling QueryLengthScaling
	RecencyBoost       RecencyBoostConfig

	TitleBoostMax            float64 // 0.08
	PhraseBoostTitle         float64 // 0.08
	PhraseBoostBody          float64 // 0.06
	PhraseBoostAllTermsTitle float64 // 0.04
	KeywordBoostMax          float64 // 0.06
	KeywordBoostMaxQueryLen  int     // keyword density boost only applies when q_len <= this, default 5
	SemanticDiscoveryBoost   float64 // 0.025

	// TitleWeightMultiplier is how many times ingestion prepends the title
	// to content before embedding. The retrieval core never writes an
	// embedding itself, but it needs this value to recognize a
	// title-weighted prefix when locating a second phrase occurrence in the
	// excerpt builder.
	TitleWeightMultiplier int

	ExpansionEnabled     bool
	MaxExpansionVariants int

	DefaultLimit  int
	MaxLimit      int
	SearchTimeout time.Duration

	WorkerPoolSize int // fixed-size worker pool for CPU-bound reranking, default 4
	MaxInFlight    int // admission semaphore, default 24
}

// DefaultConfig returns every tunable at its default.
func DefaultConfig() Config {
	return Config{
		SemanticFilter: SemanticFilterConfig{
			Strategy: CutoffHybrid,
			Center: CenterMean,
			MinAbsoluteThreshold: 0.35,
			KeywordThreshold: 0.40,
			PercentileKeep: 0.25,
			FixedThreshold: 0.45,
		},
		RecallLimit: 8000,
		KeywordRerankTopN: 200,
		KeywordLengthNormalization: DensityLinear,
		DensityScale: 1000,
		KeywordBoostScale: 0.02,

		QueryLengthScaling: QueryLengthScaling{
			ShortMultiplier: 1.00,
			MediumMultiplier: 0.50,
			LongMultiplier: 0.25,
		},
		RecencyBoost: RecencyBoostConfig{
			Under7Days: 0.07,
			Under30Days: 0.05,
			Under90Days: 0.03,
			UnderYear: 0.02,
			Under3Years: 0.01,
		},

		TitleBoostMax: 0.08,
		PhraseBoostTitle: 0.08,
		PhraseBoostBody: 0.06,
		PhraseBoostAllTermsTitle: 0.04,
		KeywordBoostMax: 0.06,
		KeywordBoostMaxQueryLen: 5,
		SemanticDiscoveryBoost: 0.025,

		TitleWeightMultiplier: 5,

		ExpansionEnabled: true,
		MaxExpansionVariants: 5,

		DefaultLimit: 20,
		MaxLimit: 100,
		SearchTimeout: 5 * time.Second,

		WorkerPoolSize: 4,
		MaxInFlight: 24,
	}
}

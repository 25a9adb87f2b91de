package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domwxyz/marxist-search/internal/retrieval"
)

// isolateUserConfig points the XDG config dir at an empty temp dir so the
// developer's real ~/.config/marxist-search never leaks into tests.
func isolateUserConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func TestNewConfigCarriesDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "hybrid", cfg.Retrieval.SemanticFilterStrategy)
	assert.Equal(t, "mean", cfg.Retrieval.SemanticFilterCenter)
	assert.InDelta(t, 0.35, cfg.Retrieval.MinAbsoluteThreshold, 1e-9)
	assert.InDelta(t, 0.40, cfg.Retrieval.KeywordThreshold, 1e-9)
	assert.Equal(t, 8000, cfg.Retrieval.RecallLimit)
	assert.Equal(t, 200, cfg.Retrieval.KeywordRerankTopN)
	assert.Equal(t, "linear", cfg.Retrieval.KeywordLengthNormalization)

	assert.InDelta(t, 1.00, cfg.Retrieval.ShortQueryMultiplier, 1e-9)
	assert.InDelta(t, 0.50, cfg.Retrieval.MediumQueryMultiplier, 1e-9)
	assert.InDelta(t, 0.25, cfg.Retrieval.LongQueryMultiplier, 1e-9)

	assert.InDelta(t, 0.07, cfg.Retrieval.RecencyUnder7Days, 1e-9)
	assert.InDelta(t, 0.01, cfg.Retrieval.RecencyUnder3Years, 1e-9)

	assert.Equal(t, 5, cfg.Retrieval.TitleWeightMultiplier)
	assert.True(t, cfg.Retrieval.ExpansionEnabled)
	assert.Equal(t, 5, cfg.Retrieval.MaxExpansionVariants)

	assert.Equal(t, 20, cfg.Retrieval.DefaultLimit)
	assert.Equal(t, 100, cfg.Retrieval.MaxLimit)
	assert.Equal(t, 4, cfg.Retrieval.WorkerPoolSize)
	assert.Equal(t, 24, cfg.Retrieval.MaxInFlight)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 4500, cfg.Ingest.ChunkThreshold)

	assert.True(t, cfg.Analytics.Enabled)
	assert.Equal(t, 100, cfg.Analytics.FlushEvery)
}

func TestAnalyticsPathAndEnvKillSwitch(t *testing.T) {
	isolateUserConfig(t)
	dataDir := t.TempDir()
	t.Setenv("MXS_ANALYTICS", "false")

	cfg, err := Load(dataDir)
	require.NoError(t, err)

	assert.False(t, cfg.Analytics.Enabled)
	assert.Equal(t, filepath.Join(dataDir, "analytics.json"), cfg.AnalyticsPath())
}

func TestLoadAppliesProjectConfigOverDefaults(t *testing.T) {
	isolateUserConfig(t)
	dataDir := t.TempDir()

	project := `
server:
  port: 9999
retrieval:
  recall_limit: 500
  semantic_filter_strategy: percentile
`
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.yaml"), []byte(project), 0o644))

	cfg, err := Load(dataDir)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Retrieval.RecallLimit)
	assert.Equal(t, "percentile", cfg.Retrieval.SemanticFilterStrategy)
	// Untouched keys keep their defaults.
	assert.Equal(t, 20, cfg.Retrieval.DefaultLimit)
	assert.Equal(t, dataDir, cfg.Paths.DataDir)
}

func TestLoadUserConfigAppliesBelowProjectConfig(t *testing.T) {
	xdg := isolateUserConfig(t)
	dataDir := t.TempDir()

	userPath := filepath.Join(xdg, "marxist-search", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte("server:\n  port: 7000\nembeddings:\n  provider: static\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.yaml"), []byte("server:\n  port: 7100\n"), 0o644))

	cfg, err := Load(dataDir)
	require.NoError(t, err)

	// Project wins on conflict; user config fills the rest.
	assert.Equal(t, 7100, cfg.Server.Port)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
}

func TestLoadEnvOverridesBeatEveryFile(t *testing.T) {
	isolateUserConfig(t)
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.yaml"), []byte("server:\n  port: 7100\n"), 0o644))

	t.Setenv("MXS_SERVER_PORT", "8888")
	t.Setenv("MXS_RECALL_LIMIT", "1234")
	t.Setenv("MXS_SEMANTIC_FILTER_STRATEGY", "fixed")

	cfg, err := Load(dataDir)
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.Port)
	assert.Equal(t, 1234, cfg.Retrieval.RecallLimit)
	assert.Equal(t, "fixed", cfg.Retrieval.SemanticFilterStrategy)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	isolateUserConfig(t)
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.yaml"), []byte("server: [not a map"), 0o644))

	_, err := Load(dataDir)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown strategy", func(c *Config) { c.Retrieval.SemanticFilterStrategy = "vibes" }},
		{"unknown center", func(c *Config) { c.Retrieval.SemanticFilterCenter = "mode" }},
		{"unknown normalization", func(c *Config) { c.Retrieval.KeywordLengthNormalization = "sqrt" }},
		{"default limit above max", func(c *Config) { c.Retrieval.DefaultLimit = 120 }},
		{"max limit above 100", func(c *Config) { c.Retrieval.MaxLimit = 500 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad provider", func(c *Config) { c.Embeddings.Provider = "openai" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, NewConfig().Validate())
}

func TestToEngineConfigRoundTripsTunables(t *testing.T) {
	cfg := NewConfig()
	cfg.Retrieval.SemanticFilterStrategy = "percentile"
	cfg.Retrieval.KeywordLengthNormalization = "log"
	cfg.Retrieval.RecallLimit = 4321
	cfg.Retrieval.SearchTimeoutSeconds = 2.5

	ec := cfg.ToEngineConfig()

	assert.Equal(t, retrieval.CutoffPercentile, ec.SemanticFilter.Strategy)
	assert.Equal(t, retrieval.DensityLog, ec.KeywordLengthNormalization)
	assert.Equal(t, 4321, ec.RecallLimit)
	assert.Equal(t, 2500*time.Millisecond, ec.SearchTimeout)
	assert.InDelta(t, 0.25, ec.QueryLengthScaling.LongMultiplier, 1e-9)
	assert.InDelta(t, 0.07, ec.RecencyBoost.Under7Days, 1e-9)
}

func TestPathHelpers(t *testing.T) {
	cfg := NewConfig()
	cfg.Paths.DataDir = "/srv/search"
	cfg.Paths.IndexDir = "index"

	assert.Equal(t, filepath.Join("/srv/search", "articles.db"), cfg.MetadataPath())
	assert.Equal(t, filepath.Join("/srv/search", "index"), cfg.IndexPath())
}

func TestWriteYAMLThenLoadRoundTrips(t *testing.T) {
	isolateUserConfig(t)
	dataDir := t.TempDir()

	cfg := NewConfig()
	cfg.Paths.DataDir = dataDir
	cfg.Server.Port = 9123
	cfg.Retrieval.RecallLimit = 777
	require.NoError(t, cfg.WriteYAML(filepath.Join(dataDir, "config.yaml")))

	loaded, err := Load(dataDir)
	require.NoError(t, err)
	assert.Equal(t, 9123, loaded.Server.Port)
	assert.Equal(t, 777, loaded.Retrieval.RecallLimit)
}

func TestLoadWithNoFilesUsesDefaults(t *testing.T) {
	isolateUserConfig(t)
	dataDir := t.TempDir()

	cfg, err := Load(dataDir)
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.Paths.DataDir)
	assert.Equal(t, 8080, cfg.Server.Port)
}

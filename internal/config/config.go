// Package config loads the single immutable configuration value the rest of
// the process is built from: data directory layout, HTTP server settings,
// embedding provider selection, and every retrieval tunable.
// Precedence, low to high: hardcoded defaults, user config
// (~/.config/marxist-search/config.yaml), project config
// (<data_dir>/config.yaml), MXS_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/domwxyz/marxist-search/internal/retrieval"
)

// Config is the complete, validated configuration for one marxist-search
// process: CLI, server, or ingestion.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
	Analytics  AnalyticsConfig  `yaml:"analytics" json:"analytics"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig locates the on-disk state: articles.db and the vector index.
type PathsConfig struct {
	// DataDir is the root directory containing articles.db and the vector
	// index file. Default: ~/.marxist-search
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// IndexDir names the vector index file under DataDir; its .meta and
	// .lock sidecars sit beside it.
	IndexDir string `yaml:"index_dir" json:"index_dir"`
}

// ServerConfig configures the HTTP façade.
type ServerConfig struct {
	Host           string        `yaml:"host" json:"host"`
	Port           int           `yaml:"port" json:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	LogLevel       string        `yaml:"log_level" json:"log_level"`
	WatchForReload bool          `yaml:"watch_for_reload" json:"watch_for_reload"`
}

// RetrievalConfig carries the retrieval engine's tunables in YAML-friendly
// form; ToEngineConfig converts it to retrieval.Config.
type RetrievalConfig struct {
	SemanticFilterStrategy     string  `yaml:"semantic_filter_strategy" json:"semantic_filter_strategy"`
	SemanticFilterCenter       string  `yaml:"semantic_filter_center" json:"semantic_filter_center"`
	MinAbsoluteThreshold       float64 `yaml:"min_absolute_threshold" json:"min_absolute_threshold"`
	KeywordThreshold           float64 `yaml:"keyword_threshold" json:"keyword_threshold"`
	PercentileKeep             float64 `yaml:"percentile_keep" json:"percentile_keep"`
	FixedThreshold             float64 `yaml:"fixed_threshold" json:"fixed_threshold"`
	RecallLimit                int     `yaml:"recall_limit" json:"recall_limit"`
	KeywordRerankTopN          int     `yaml:"keyword_rerank_top_n" json:"keyword_rerank_top_n"`
	KeywordLengthNormalization string  `yaml:"keyword_length_normalization" json:"keyword_length_normalization"`
	DensityScale               float64 `yaml:"density_scale" json:"density_scale"`
	KeywordBoostScale          float64 `yaml:"keyword_boost_scale" json:"keyword_boost_scale"`
	ShortQueryMultiplier       float64 `yaml:"short_query_multiplier" json:"short_query_multiplier"`
	MediumQueryMultiplier      float64 `yaml:"medium_query_multiplier" json:"medium_query_multiplier"`
	LongQueryMultiplier        float64 `yaml:"long_query_multiplier" json:"long_query_multiplier"`
	RecencyUnder7Days          float64 `yaml:"recency_under_7_days" json:"recency_under_7_days"`
	RecencyUnder30Days         float64 `yaml:"recency_under_30_days" json:"recency_under_30_days"`
	RecencyUnder90Days         float64 `yaml:"recency_under_90_days" json:"recency_under_90_days"`
	RecencyUnderYear           float64 `yaml:"recency_under_year" json:"recency_under_year"`
	RecencyUnder3Years         float64 `yaml:"recency_under_3_years" json:"recency_under_3_years"`
	TitleBoostMax              float64 `yaml:"title_boost_max" json:"title_boost_max"`
	PhraseBoostTitle           float64 `yaml:"phrase_boost_title" json:"phrase_boost_title"`
	PhraseBoostBody            float64 `yaml:"phrase_boost_body" json:"phrase_boost_body"`
	PhraseBoostAllTermsTitle   float64 `yaml:"phrase_boost_all_terms_title" json:"phrase_boost_all_terms_title"`
	KeywordBoostMax            float64 `yaml:"keyword_boost_max" json:"keyword_boost_max"`
	KeywordBoostMaxQueryLen    int     `yaml:"keyword_boost_max_query_len" json:"keyword_boost_max_query_len"`
	SemanticDiscoveryBoost     float64 `yaml:"semantic_discovery_boost" json:"semantic_discovery_boost"`
	TitleWeightMultiplier      int     `yaml:"title_weight_multiplier" json:"title_weight_multiplier"`
	ExpansionEnabled           bool    `yaml:"query_expansion" json:"query_expansion"`
	MaxExpansionVariants       int     `yaml:"max_expansion_variants" json:"max_expansion_variants"`
	DefaultLimit               int     `yaml:"default_limit" json:"default_limit"`
	MaxLimit                   int     `yaml:"max_limit" json:"max_limit"`
	SearchTimeoutSeconds       float64 `yaml:"search_timeout_seconds" json:"search_timeout_seconds"`
	WorkerPoolSize             int     `yaml:"worker_pool_size" json:"worker_pool_size"`
	MaxInFlight                int     `yaml:"max_in_flight" json:"max_in_flight"`
}

// EmbeddingsConfig configures the embedding provider shared by ingestion and
// the vector store's query-side embedder.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
}

// IngestConfig configures the RSS ingestion subsystem.
type IngestConfig struct {
	FeedURLs              []string `yaml:"feed_urls" json:"feed_urls"`
	ChunkThreshold        int      `yaml:"chunk_threshold" json:"chunk_threshold"`
	ChunkTargetSize       int      `yaml:"chunk_target_size" json:"chunk_target_size"`
	ChunkOverlapRatio     float64  `yaml:"chunk_overlap_ratio" json:"chunk_overlap_ratio"`
	MaxPagesPerFeed       int      `yaml:"max_pages_per_feed" json:"max_pages_per_feed"`
	RequestTimeoutSeconds float64  `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
}

// AnalyticsConfig configures search usage tracking.
type AnalyticsConfig struct {
	// Enabled turns per-query usage tracking on; the analytics file lives at
	// <data_dir>/analytics.json.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// FlushEvery is how many tracked searches accumulate before the file is
	// rewritten.
	FlushEvery int `yaml:"flush_every" json:"flush_every"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level         string `yaml:"level" json:"level"`
	FilePath      string `yaml:"file_path" json:"file_path"`
	WriteToStderr bool   `yaml:"write_to_stderr" json:"write_to_stderr"`
}

// NewConfig returns the built-in default configuration.
func NewConfig() *Config {
	rc := retrieval.DefaultConfig()
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: DefaultDataDir(),
			IndexDir: "index",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
			RequestTimeout: 5 * time.Second,
			LogLevel: "info",
			WatchForReload: false,
		},
		Retrieval: RetrievalConfig{
			SemanticFilterStrategy: string(rc.SemanticFilter.Strategy),
			SemanticFilterCenter: string(rc.SemanticFilter.Center),
			MinAbsoluteThreshold: rc.SemanticFilter.MinAbsoluteThreshold,
			KeywordThreshold: rc.SemanticFilter.KeywordThreshold,
			PercentileKeep: rc.SemanticFilter.PercentileKeep,
			FixedThreshold: rc.SemanticFilter.FixedThreshold,
			RecallLimit: rc.RecallLimit,
			KeywordRerankTopN: rc.KeywordRerankTopN,
			KeywordLengthNormalization: string(rc.KeywordLengthNormalization),
			DensityScale: rc.DensityScale,
			KeywordBoostScale: rc.KeywordBoostScale,
			ShortQueryMultiplier: rc.QueryLengthScaling.ShortMultiplier,
			MediumQueryMultiplier: rc.QueryLengthScaling.MediumMultiplier,
			LongQueryMultiplier: rc.QueryLengthScaling.LongMultiplier,
			RecencyUnder7Days: rc.RecencyBoost.Under7Days,
			RecencyUnder30Days: rc.RecencyBoost.Under30Days,
			RecencyUnder90Days: rc.RecencyBoost.Under90Days,
			RecencyUnderYear: rc.RecencyBoost.UnderYear,
			RecencyUnder3Years: rc.RecencyBoost.Under3Years,
			TitleBoostMax: rc.TitleBoostMax,
			PhraseBoostTitle: rc.PhraseBoostTitle,
			PhraseBoostBody: rc.PhraseBoostBody,
			PhraseBoostAllTermsTitle: rc.PhraseBoostAllTermsTitle,
			KeywordBoostMax: rc.KeywordBoostMax,
			KeywordBoostMaxQueryLen: rc.KeywordBoostMaxQueryLen,
			SemanticDiscoveryBoost: rc.SemanticDiscoveryBoost,
			TitleWeightMultiplier: rc.TitleWeightMultiplier,
			ExpansionEnabled: rc.ExpansionEnabled,
			MaxExpansionVariants: rc.MaxExpansionVariants,
			DefaultLimit: rc.DefaultLimit,
			MaxLimit: rc.MaxLimit,
			SearchTimeoutSeconds: rc.SearchTimeout.Seconds(),
			WorkerPoolSize: rc.WorkerPoolSize,
			MaxInFlight: rc.MaxInFlight,
		},
		Embeddings: EmbeddingsConfig{
			Provider: "",
			Model: "",
			Dimensions: 0,
			OllamaHost: "",
			BatchSize: 32,
		},
		Ingest: IngestConfig{
			FeedURLs: nil,
			ChunkThreshold: 4500,
			ChunkTargetSize: 1500,
			ChunkOverlapRatio: 0.175,
			MaxPagesPerFeed: 200,
			RequestTimeoutSeconds: 30,
		},
		Analytics: AnalyticsConfig{
			Enabled: true,
			FlushEvery: 100,
		},
		Logging: LoggingConfig{
			Level: "info",
			FilePath: DefaultLogPath(),
			WriteToStderr: true,
		},
	}
}

// ToEngineConfig converts the YAML-friendly RetrievalConfig into the typed
// retrieval.Config the engine is constructed with.
func (c *Config) ToEngineConfig() retrieval.Config {
	r := c.Retrieval
	return retrieval.Config{
		SemanticFilter: retrieval.SemanticFilterConfig{
			Strategy: retrieval.CutoffStrategy(r.SemanticFilterStrategy),
			Center: retrieval.CutoffCenter(r.SemanticFilterCenter),
			MinAbsoluteThreshold: r.MinAbsoluteThreshold,
			KeywordThreshold: r.KeywordThreshold,
			PercentileKeep: r.PercentileKeep,
			FixedThreshold: r.FixedThreshold,
		},
		RecallLimit: r.RecallLimit,
		KeywordRerankTopN: r.KeywordRerankTopN,
		KeywordLengthNormalization: retrieval.DensityNormalization(r.KeywordLengthNormalization),
		DensityScale: r.DensityScale,
		KeywordBoostScale: r.KeywordBoostScale,
		QueryLengthScaling: retrieval.QueryLengthScaling{
			ShortMultiplier: r.ShortQueryMultiplier,
			MediumMultiplier: r.MediumQueryMultiplier,
			LongMultiplier: r.LongQueryMultiplier,
		},
		RecencyBoost: retrieval.RecencyBoostConfig{
			Under7Days: r.RecencyUnder7Days,
			Under30Days: r.RecencyUnder30Days,
			Under90Days: r.RecencyUnder90Days,
			UnderYear: r.RecencyUnderYear,
			Under3Years: r.RecencyUnder3Years,
		},
		TitleBoostMax: r.TitleBoostMax,
		PhraseBoostTitle: r.PhraseBoostTitle,
		PhraseBoostBody: r.PhraseBoostBody,
		PhraseBoostAllTermsTitle: r.PhraseBoostAllTermsTitle,
		KeywordBoostMax: r.KeywordBoostMax,
		KeywordBoostMaxQueryLen: r.KeywordBoostMaxQueryLen,
		SemanticDiscoveryBoost: r.SemanticDiscoveryBoost,
		TitleWeightMultiplier: r.TitleWeightMultiplier,
		ExpansionEnabled: r.ExpansionEnabled,
		MaxExpansionVariants: r.MaxExpansionVariants,
		DefaultLimit: r.DefaultLimit,
		MaxLimit: r.MaxLimit,
		SearchTimeout: time.Duration(r.SearchTimeoutSeconds * float64(time.Second)),
		WorkerPoolSize: r.WorkerPoolSize,
		MaxInFlight: r.MaxInFlight,
	}
}

// DefaultDataDir returns ~/.marxist-search, falling back to a temp directory
// if the home directory can't be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".marxist-search")
	}
	return filepath.Join(home, ".marxist-search")
}

// DefaultLogPath returns the default rotating log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultDataDir(), "logs", "marxist-search.log")
}

// IndexPath returns the absolute path of the vector index file.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Paths.DataDir, c.Paths.IndexDir)
}

// MetadataPath returns the absolute path of articles.db.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.Paths.DataDir, "articles.db")
}

// AnalyticsPath returns the absolute path of the analytics file.
func (c *Config) AnalyticsPath() string {
	return filepath.Join(c.Paths.DataDir, "analytics.json")
}

// GetUserConfigPath follows XDG Base Directory convention:
// $XDG_CONFIG_HOME/marxist-search/config.yaml, or ~/.config/marxist-search/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "marxist-search", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "marxist-search", "config.yaml")
	}
	return filepath.Join(home, ".config", "marxist-search", "config.yaml")
}

// UserConfigExists reports whether the user/global config file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load loads configuration for the data directory dataDir, applying (in
// increasing precedence): hardcoded defaults, the user/global config file,
// <dataDir>/config.yaml, and MXS_* environment variable overrides.
func Load(dataDir string) (*Config, error) {
	cfg := NewConfig()
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
	}

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		wantDataDir := cfg.Paths.DataDir
		cfg.mergeWith(userCfg)
		if dataDir != "" {
			cfg.Paths.DataDir = wantDataDir // caller-supplied data dir always wins
		}
	}

	projectPath := filepath.Join(cfg.Paths.DataDir, "config.yaml")
	if fileExists(projectPath) {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.IndexDir != "" {
		c.Paths.IndexDir = other.Paths.IndexDir
	}

	if other.Server.Host != "" {
		c.Server.Host = other.Server.Host
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.RequestTimeout != 0 {
		c.Server.RequestTimeout = other.Server.RequestTimeout
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.WatchForReload {
		c.Server.WatchForReload = other.Server.WatchForReload
	}

	mergeRetrieval(&c.Retrieval, other.Retrieval)

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}

	if len(other.Ingest.FeedURLs) > 0 {
		c.Ingest.FeedURLs = other.Ingest.FeedURLs
	}
	if other.Ingest.ChunkThreshold != 0 {
		c.Ingest.ChunkThreshold = other.Ingest.ChunkThreshold
	}
	if other.Ingest.ChunkTargetSize != 0 {
		c.Ingest.ChunkTargetSize = other.Ingest.ChunkTargetSize
	}
	if other.Ingest.ChunkOverlapRatio != 0 {
		c.Ingest.ChunkOverlapRatio = other.Ingest.ChunkOverlapRatio
	}
	if other.Ingest.MaxPagesPerFeed != 0 {
		c.Ingest.MaxPagesPerFeed = other.Ingest.MaxPagesPerFeed
	}
	if other.Ingest.RequestTimeoutSeconds != 0 {
		c.Ingest.RequestTimeoutSeconds = other.Ingest.RequestTimeoutSeconds
	}

	if other.Analytics.Enabled {
		c.Analytics.Enabled = other.Analytics.Enabled
	}
	if other.Analytics.FlushEvery != 0 {
		c.Analytics.FlushEvery = other.Analytics.FlushEvery
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.WriteToStderr {
		c.Logging.WriteToStderr = other.Logging.WriteToStderr
	}
}

func mergeRetrieval(c *RetrievalConfig, other RetrievalConfig) {
	if other.SemanticFilterStrategy != "" {
		c.SemanticFilterStrategy = other.SemanticFilterStrategy
	}
	if other.SemanticFilterCenter != "" {
		c.SemanticFilterCenter = other.SemanticFilterCenter
	}
	if other.MinAbsoluteThreshold != 0 {
		c.MinAbsoluteThreshold = other.MinAbsoluteThreshold
	}
	if other.KeywordThreshold != 0 {
		c.KeywordThreshold = other.KeywordThreshold
	}
	if other.PercentileKeep != 0 {
		c.PercentileKeep = other.PercentileKeep
	}
	if other.FixedThreshold != 0 {
		c.FixedThreshold = other.FixedThreshold
	}
	if other.RecallLimit != 0 {
		c.RecallLimit = other.RecallLimit
	}
	if other.KeywordRerankTopN != 0 {
		c.KeywordRerankTopN = other.KeywordRerankTopN
	}
	if other.KeywordLengthNormalization != "" {
		c.KeywordLengthNormalization = other.KeywordLengthNormalization
	}
	if other.DensityScale != 0 {
		c.DensityScale = other.DensityScale
	}
	if other.KeywordBoostScale != 0 {
		c.KeywordBoostScale = other.KeywordBoostScale
	}
	if other.ShortQueryMultiplier != 0 {
		c.ShortQueryMultiplier = other.ShortQueryMultiplier
	}
	if other.MediumQueryMultiplier != 0 {
		c.MediumQueryMultiplier = other.MediumQueryMultiplier
	}
	if other.LongQueryMultiplier != 0 {
		c.LongQueryMultiplier = other.LongQueryMultiplier
	}
	if other.RecencyUnder7Days != 0 {
		c.RecencyUnder7Days = other.RecencyUnder7Days
	}
	if other.RecencyUnder30Days != 0 {
		c.RecencyUnder30Days = other.RecencyUnder30Days
	}
	if other.RecencyUnder90Days != 0 {
		c.RecencyUnder90Days = other.RecencyUnder90Days
	}
	if other.RecencyUnderYear != 0 {
		c.RecencyUnderYear = other.RecencyUnderYear
	}
	if other.RecencyUnder3Years != 0 {
		c.RecencyUnder3Years = other.RecencyUnder3Years
	}
	if other.TitleBoostMax != 0 {
		c.TitleBoostMax = other.TitleBoostMax
	}
	if other.PhraseBoostTitle != 0 {
		c.PhraseBoostTitle = other.PhraseBoostTitle
	}
	if other.PhraseBoostBody != 0 {
		c.PhraseBoostBody = other.PhraseBoostBody
	}
	if other.PhraseBoostAllTermsTitle != 0 {
		c.PhraseBoostAllTermsTitle = other.PhraseBoostAllTermsTitle
	}
	if other.KeywordBoostMax != 0 {
		c.KeywordBoostMax = other.KeywordBoostMax
	}
	if other.KeywordBoostMaxQueryLen != 0 {
		c.KeywordBoostMaxQueryLen = other.KeywordBoostMaxQueryLen
	}
	if other.SemanticDiscoveryBoost != 0 {
		c.SemanticDiscoveryBoost = other.SemanticDiscoveryBoost
	}
	if other.TitleWeightMultiplier != 0 {
		c.TitleWeightMultiplier = other.TitleWeightMultiplier
	}
	if other.ExpansionEnabled {
		c.ExpansionEnabled = other.ExpansionEnabled
	}
	if other.MaxExpansionVariants != 0 {
		c.MaxExpansionVariants = other.MaxExpansionVariants
	}
	if other.DefaultLimit != 0 {
		c.DefaultLimit = other.DefaultLimit
	}
	if other.MaxLimit != 0 {
		c.MaxLimit = other.MaxLimit
	}
	if other.SearchTimeoutSeconds != 0 {
		c.SearchTimeoutSeconds = other.SearchTimeoutSeconds
	}
	if other.WorkerPoolSize != 0 {
		c.WorkerPoolSize = other.WorkerPoolSize
	}
	if other.MaxInFlight != 0 {
		c.MaxInFlight = other.MaxInFlight
	}
}

// applyEnvOverrides applies MXS_* environment variable overrides, the
// highest-precedence configuration layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MXS_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("MXS_SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("MXS_SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("MXS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
		c.Server.LogLevel = v
	}
	if v := os.Getenv("MXS_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("MXS_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("MXS_RECALL_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.RecallLimit = n
		}
	}
	if v := os.Getenv("MXS_QUERY_EXPANSION"); v != "" {
		c.Retrieval.ExpansionEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("MXS_ANALYTICS"); v != "" {
		c.Analytics.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("MXS_SEMANTIC_FILTER_STRATEGY"); v != "" {
		c.Retrieval.SemanticFilterStrategy = v
	}
}

// Validate checks the final, merged configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	validStrategies := map[string]bool{"hybrid": true, "statistical": true, "percentile": true, "fixed": true}
	if !validStrategies[strings.ToLower(c.Retrieval.SemanticFilterStrategy)] {
		return fmt.Errorf("retrieval.semantic_filter_strategy must be hybrid/statistical/percentile/fixed, got %s", c.Retrieval.SemanticFilterStrategy)
	}
	validCenters := map[string]bool{"mean": true, "median": true}
	if !validCenters[strings.ToLower(c.Retrieval.SemanticFilterCenter)] {
		return fmt.Errorf("retrieval.semantic_filter_center must be mean/median, got %s", c.Retrieval.SemanticFilterCenter)
	}
	validNorm := map[string]bool{"linear": true, "log": true}
	if !validNorm[strings.ToLower(c.Retrieval.KeywordLengthNormalization)] {
		return fmt.Errorf("retrieval.keyword_length_normalization must be linear/log, got %s", c.Retrieval.KeywordLengthNormalization)
	}
	if c.Retrieval.DefaultLimit <= 0 || c.Retrieval.DefaultLimit > c.Retrieval.MaxLimit {
		return fmt.Errorf("retrieval.default_limit must be positive and <= max_limit")
	}
	if c.Retrieval.MaxLimit <= 0 || c.Retrieval.MaxLimit > 100 {
		return fmt.Errorf("retrieval.max_limit must be between 1 and 100, got %d", c.Retrieval.MaxLimit)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %s", c.Logging.Level)
	}
	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be ollama/static/empty, got %s", c.Embeddings.Provider)
		}
	}
	return nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user/global configuration file, if any.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

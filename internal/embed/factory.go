package embed

import (
	"context"
	"os"
	"strings"
)

// ProviderType selects an embedding backend.
type ProviderType string

const (
	// ProviderOllama is the default: a local Ollama daemon.
	ProviderOllama ProviderType = "ollama"
	// ProviderStatic is the deterministic hash embedder, for tests and
	// offline use.
	ProviderStatic ProviderType = "static"
)

// ParseProvider maps a config string onto a ProviderType, defaulting to
// Ollama for anything unrecognized (including "").
func ParseProvider(s string) ProviderType {
	if strings.EqualFold(strings.TrimSpace(s), string(ProviderStatic)) {
		return ProviderStatic
	}
	return ProviderOllama
}

// NewEmbedder builds the configured embedder, wrapped in a query cache
// unless MXS_EMBED_CACHE disables it. Environment overrides, applied before
// construction:
//
//	MXS_EMBEDDER      provider override (ollama|static)
//	MXS_OLLAMA_HOST   daemon address
//	MXS_OLLAMA_MODEL  model override
//
// model is the configured model name; empty keeps the provider default.
func NewEmbedder(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	if env := os.Getenv("MXS_EMBEDDER"); env != "" {
		provider = ParseProvider(env)
	}

	var (
		inner Embedder
		err   error
	)
	switch provider {
	case ProviderStatic:
		inner = NewStaticEmbedder()
	default:
		cfg := DefaultOllamaConfig()
		if model != "" {
			cfg.Model = model
		}
		if host := os.Getenv("MXS_OLLAMA_HOST"); host != "" {
			cfg.Host = host
		}
		if m := os.Getenv("MXS_OLLAMA_MODEL"); m != "" {
			cfg.Model = m
		}
		inner, err = NewOllamaEmbedder(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}

	if cacheDisabled() {
		return inner, nil
	}
	return NewCachedEmbedder(inner, 0)
}

func cacheDisabled() bool {
	switch strings.ToLower(os.Getenv("MXS_EMBED_CACHE")) {
	case "false", "0", "off":
		return true
	}
	return false
}

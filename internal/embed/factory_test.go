package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	assert.Equal(t, ProviderStatic, ParseProvider("static"))
	assert.Equal(t, ProviderStatic, ParseProvider("  STATIC "))
	assert.Equal(t, ProviderOllama, ParseProvider("ollama"))
	assert.Equal(t, ProviderOllama, ParseProvider(""))
	assert.Equal(t, ProviderOllama, ParseProvider("something-else"))
}

func TestNewEmbedderStaticIsCachedByDefault(t *testing.T) {
	e, err := NewEmbedder(context.Background(), ProviderStatic, "")
	require.NoError(t, err)

	_, ok := e.(*CachedEmbedder)
	assert.True(t, ok, "expected the query cache wrapper, got %T", e)
	assert.Equal(t, DefaultDimensions, e.Dimensions())
}

func TestNewEmbedderEnvProviderOverridesArgument(t *testing.T) {
	t.Setenv("MXS_EMBEDDER", "static")

	// Asks for ollama, gets static: no daemon needed.
	e, err := NewEmbedder(context.Background(), ProviderOllama, "")
	require.NoError(t, err)
	assert.Equal(t, "static-hash", e.ModelName())
}

func TestNewEmbedderCacheDisabledByEnv(t *testing.T) {
	t.Setenv("MXS_EMBED_CACHE", "false")

	e, err := NewEmbedder(context.Background(), ProviderStatic, "")
	require.NoError(t, err)

	_, ok := e.(*StaticEmbedder)
	assert.True(t, ok, "expected the bare embedder, got %T", e)
}

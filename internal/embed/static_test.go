package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedderIsDeterministic(t *testing.T) {
	e := NewStaticEmbedder()

	a, err := e.Embed(context.Background(), "the permanent revolution")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "the permanent revolution")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, DefaultDimensions)
}

func TestStaticEmbedderVectorsAreUnitLength(t *testing.T) {
	e := NewStaticEmbedder()
	vec, err := e.Embed(context.Background(), "imperialism and world economy")
	require.NoError(t, err)

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestStaticEmbedderSharedVocabularyScoresHigher(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	query, _ := e.Embed(ctx, "class struggle in britain")
	related, _ := e.Embed(ctx, "the class struggle sharpens across britain today")
	unrelated, _ := e.Embed(ctx, "quarterly earnings for the software sector")

	assert.Greater(t, dot(query, related), dot(query, unrelated))
}

func TestStaticEmbedderEmptyTextIsZeroSafe(t *testing.T) {
	e := NewStaticEmbedder()
	vec, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, vec, DefaultDimensions)
}

func TestStaticEmbedBatchOrderMatchesInput(t *testing.T) {
	e := NewStaticEmbedder()
	texts := []string{"alpha", "beta", "gamma"}

	batch, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, _ := e.Embed(context.Background(), text)
		assert.Equal(t, single, batch[i], "batch[%d] should equal Embed(%q)", i, text)
	}
}

func TestStaticEmbedderIsAlwaysAvailable(t *testing.T) {
	e := NewStaticEmbedder()
	assert.True(t, e.Available(context.Background()))
	assert.Equal(t, "static-hash", e.ModelName())
	assert.NoError(t, e.Close())
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

package chunk_test

import (
	"strings"
	"testing"

	"github.com/domwxyz/marxist-search/internal/chunk"
	"github.com/stretchr/testify/require"
)

func paragraphOfWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "word"
	}
	return strings.Join(words, " ")
}

func TestShouldChunkRespectsThreshold(t *testing.T) {
	c := chunk.NewChunker(chunk.Options{Threshold: 100})
	require.False(t, c.ShouldChunk(100))
	require.True(t, c.ShouldChunk(101))
}

func TestChunkProducesContiguousIndices(t *testing.T) {
	c := chunk.NewChunker(chunk.Options{Threshold: 10, TargetSize: 50, OverlapRatio: 0.2})

	var paragraphs []string
	for i := 0; i < 10; i++ {
		paragraphs = append(paragraphs, paragraphOfWords(20))
	}
	body := strings.Join(paragraphs, "\n\n")

	chunks := c.Chunk(42, body)
	require.NotEmpty(t, chunks)

	for i, ch := range chunks {
		require.Equal(t, 42, ch.ArticleID)
		require.Equal(t, i, ch.ChunkIndex)
		require.Greater(t, ch.WordCount, 0)
	}
}

func TestChunkOverlapCarriesTrailingContext(t *testing.T) {
	c := chunk.NewChunker(chunk.Options{Threshold: 10, TargetSize: 40, OverlapRatio: 0.25})

	paragraphs := []string{
		"alpha " + paragraphOfWords(20),
		"bravo " + paragraphOfWords(20),
		"charlie " + paragraphOfWords(20),
		"delta " + paragraphOfWords(20),
	}
	body := strings.Join(paragraphs, "\n\n")

	chunks := c.Chunk(1, body)
	require.GreaterOrEqual(t, len(chunks), 2)

	// The second chunk should open with some trailing content shared with
	// the end of the first, not a hard cut.
	firstParagraphs := strings.Split(chunks[0].Body, "\n\n")
	require.Contains(t, chunks[1].Body, firstParagraphs[len(firstParagraphs)-1])
}

func TestChunkOnEmptyBody(t *testing.T) {
	c := chunk.NewChunker(chunk.DefaultOptions())
	require.Empty(t, c.Chunk(1, ""))
	require.Empty(t, c.Chunk(1, "   \n\n  "))
}

func TestPrependTitleRepeatsAndSkipsWhenDisabled(t *testing.T) {
	out := chunk.PrependTitle("On The State", "body text", 3)
	require.Equal(t, 3, strings.Count(out, "On The State"))
	require.True(t, strings.HasSuffix(out, "body text"))

	require.Equal(t, "body text", chunk.PrependTitle("On The State", "body text", 0))
	require.Equal(t, "body text", chunk.PrependTitle("", "body text", 5))
}

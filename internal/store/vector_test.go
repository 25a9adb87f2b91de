package store_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/domwxyz/marxist-search/internal/store"
	"github.com/stretchr/testify/require"
)

// hashEmbedder is a tiny deterministic embedder for tests: it hashes
// whitespace-separated tokens into a fixed-size vector so that texts sharing
// words end up closer together under cosine distance, without pulling in a
// real model.
type hashEmbedder struct {
	dims int
}

func (h hashEmbedder) Dimensions() int { return h.dims }

func (h hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		var hash uint32 = 2166136261
		for i := 0; i < len(tok); i++ {
			hash ^= uint32(tok[i])
			hash *= 16777619
		}
		vec[int(hash)%h.dims] += 1
	}
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return vec, nil
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}

func TestHNSWIndexAddAndSearch(t *testing.T) {
	emb := hashEmbedder{dims: 32}
	idx := store.NewHNSWIndex(emb, "search_query: ")
	ctx := context.Background()

	docs := map[string]string{
		"a_1": "dialectical materialism and historical change",
		"a_2": "the state and revolution lenin",
		"a_3": "permanent revolution trotsky theory",
	}
	ids := make([]string, 0, len(docs))
	vecs := make([][]float32, 0, len(docs))
	for id, text := range docs {
		v, err := emb.Embed(ctx, "search_document: "+text)
		require.NoError(t, err)
		ids = append(ids, id)
		vecs = append(vecs, v)
	}
	require.NoError(t, idx.Add(ctx, ids, vecs))
	require.Equal(t, 3, idx.Count())

	results, err := idx.Search(ctx, "permanent revolution", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "a_3", results[0].ID)
}

func TestHNSWIndexDimensionMismatch(t *testing.T) {
	emb := hashEmbedder{dims: 16}
	idx := store.NewHNSWIndex(emb, "")
	err := idx.Add(context.Background(), []string{"a_1"}, [][]float32{make([]float32, 8)})
	require.Error(t, err)
}

func TestHNSWIndexSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")
	emb := hashEmbedder{dims: 16}

	idx := store.NewHNSWIndex(emb, "")
	ctx := context.Background()
	v1, _ := emb.Embed(ctx, "alienation and labor")
	v2, _ := emb.Embed(ctx, "surplus value and capital")
	require.NoError(t, idx.Add(ctx, []string{"a_1", "a_2"}, [][]float32{v1, v2}))
	require.NoError(t, idx.Save(path))
	require.FileExists(t, path)
	require.FileExists(t, path+".meta")

	loaded := store.NewHNSWIndex(emb, "")
	require.NoError(t, loaded.Load(path))
	require.Equal(t, 2, loaded.Count())
}

func TestReadIndexMeta_ReturnsDimensionsAndPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")
	emb := hashEmbedder{dims: 24}

	idx := store.NewHNSWIndex(emb, "search_query: ")
	require.NoError(t, idx.Save(path))

	dims, prefix, err := store.ReadIndexMeta(path)
	require.NoError(t, err)
	require.Equal(t, 24, dims)
	require.Equal(t, "search_query: ", prefix)
}

func TestReadIndexMeta_MissingFile_Errors(t *testing.T) {
	_, _, err := store.ReadIndexMeta(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
}

func TestHandleReloadKeepsOldOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")
	emb := hashEmbedder{dims: 16}

	seed := store.NewHNSWIndex(emb, "")
	ctx := context.Background()
	v1, _ := emb.Embed(ctx, "base and superstructure")
	require.NoError(t, seed.Add(ctx, []string{"a_1"}, [][]float32{v1}))
	require.NoError(t, seed.Save(path))

	newIndex := func() *store.HNSWIndex { return store.NewHNSWIndex(emb, "") }
	h := store.NewHandle(path, newIndex)
	require.NoError(t, h.Reload(ctx))
	require.Equal(t, 1, h.Count())

	require.NoError(t, os.Remove(path))
	err := h.Reload(ctx)
	require.Error(t, err)
	require.Equal(t, 1, h.Count())
}

func TestHandleSearchBeforeLoadIsIndexNotLoaded(t *testing.T) {
	emb := hashEmbedder{dims: 16}
	h := store.NewHandle("/nonexistent/path.bin", func() *store.HNSWIndex {
		return store.NewHNSWIndex(emb, "")
	})
	_, err := h.Search(context.Background(), "anything", 10)
	require.Error(t, err)
	var notLoaded store.ErrIndexNotLoaded
	require.ErrorAs(t, err, &notLoaded)
}

package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// Embedder is the narrow slice of internal/embed.Embedder the vector store
// needs: turn query text into a vector. The store is what applies the
// search-side task prefix (e.g. "search_query: "); document-side prefixing
// is ingestion's concern.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// HNSWIndex implements VectorStore using coder/hnsw's pure-Go HNSW graph,
// keyed directly by IdString rather than a synthetic integer handle.
type HNSWIndex struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[string]
	embedder Embedder
	prefix   string // prepended to query text before embedding, e.g. "search_query: "
	dims     int
	closed   bool
}

// hnswMeta is the gob-persisted sidecar alongside the exported graph.
type hnswMeta struct {
	Dimensions int
	Prefix     string
}

// NewHNSWIndex creates an empty HNSW index over cosine distance.
func NewHNSWIndex(embedder Embedder, queryPrefix string) *HNSWIndex {
	graph := hnsw.NewGraph[string]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 32
	graph.EfSearch = 64
	graph.Ml = 0.25

	return &HNSWIndex{
		graph:    graph,
		embedder: embedder,
		prefix:   queryPrefix,
		dims:     embedder.Dimensions(),
	}
}

// Add inserts or replaces vectors for the given IdStrings. Existing keys are
// orphaned rather than deleted in place: coder/hnsw's Delete corrupts the
// graph when removing the last-inserted node, so re-indexed ids are simply
// re-added under the same key and the old node goes unreachable.
func (idx *HNSWIndex) Add(ctx context.Context, rawIDs []string, vectors [][]float32) error {
	if len(rawIDs) != len(vectors) {
		return fmt.Errorf("ids/vectors length mismatch: %d vs %d", len(rawIDs), len(vectors))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("vector index is closed")
	}

	for i, id := range rawIDs {
		v := vectors[i]
		if len(v) != idx.dims {
			return fmt.Errorf("dimension mismatch for %s: expected %d, got %d", id, idx.dims, len(v))
		}
		vec := make([]float32, len(v))
		copy(vec, v)
		normalizeInPlace(vec)
		idx.graph.Add(hnsw.MakeNode(id, vec))
	}
	return nil
}

// Search embeds the query text (with the store's search-side prefix applied)
// and returns the k nearest indexed units by cosine similarity.
func (idx *HNSWIndex) Search(ctx context.Context, queryText string, k int) ([]Candidate, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, fmt.Errorf("vector index is closed")
	}
	if idx.graph.Len() == 0 {
		return []Candidate{}, nil
	}

	vec, err := idx.embedder.Embed(ctx, idx.prefix+queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	normalizeInPlace(vec)

	nodes := idx.graph.Search(vec, k)
	results := make([]Candidate, 0, len(nodes))
	for _, node := range nodes {
		distance := idx.graph.Distance(vec, node.Value)
		results = append(results, Candidate{
			ID:    node.Key,
			Score: cosineDistanceToScore(distance),
		})
	}
	return results, nil
}

// Count returns the number of live vectors tracked by the index.
func (idx *HNSWIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return 0
	}
	return idx.graph.Len()
}

// Save persists the graph to <path> and its metadata to <path>.meta, using
// the temp-file-then-rename pattern so a crash mid-write cannot corrupt the
// previously-saved index.
func (idx *HNSWIndex) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	if err := idx.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename index file: %w", err)
	}

	return idx.saveMeta(path + ".meta")
}

// ReadIndexMeta reads the sidecar metadata written by Save (the dimensions
// and query prefix the persisted index was built with) without loading the
// graph itself. Used by "index info" to detect dimension drift against the
// embedder the server is about to start with.
func ReadIndexMeta(indexPath string) (dimensions int, prefix string, err error) {
	f, err := os.Open(indexPath + ".meta")
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	var meta hnswMeta
	if err := gob.NewDecoder(f).Decode(&meta); err != nil {
		return 0, "", fmt.Errorf("decode index meta: %w", err)
	}
	return meta.Dimensions, meta.Prefix, nil
}

func (idx *HNSWIndex) saveMeta(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(hnswMeta{Dimensions: idx.dims, Prefix: idx.prefix}); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load replaces this index's graph in place by importing <path>. Callers
// that need atomic reload-without-disrupting-readers should build a fresh
// *HNSWIndex and swap it in via a Handle rather than calling Load on a live
// index that's serving traffic.
func (idx *HNSWIndex) Load(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return fmt.Errorf("vector index is closed")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	graph := hnsw.NewGraph[string]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 32
	graph.EfSearch = 64
	graph.Ml = 0.25

	if err := graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	idx.graph = graph
	return nil
}

// Close releases the index. It is idempotent.
func (idx *HNSWIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	idx.graph = nil
	return nil
}

var _ VectorStore = (*HNSWIndex)(nil)

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// cosineDistanceToScore maps coder/hnsw's [0,2] cosine distance onto the
// roughly-[0,1] similarity scores the ranking signals expect.
func cosineDistanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}

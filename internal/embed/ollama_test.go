package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/domwxyz/marxist-search/internal/errors"
)

// fakeOllama serves /api/embed with fixed-width vectors.
func fakeOllama(t *testing.T, dims int, fail *atomic.Bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if fail != nil && fail.Load() {
			http.Error(w, `{"error":"model crashed"}`, http.StatusInternalServerError)
			return
		}

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		vecs := make([][]float32, len(req.Input))
		for i := range vecs {
			v := make([]float32, dims)
			v[i%dims] = 1
			vecs[i] = v
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: vecs})
	}))
}

func testOllamaConfig(host string) OllamaConfig {
	cfg := DefaultOllamaConfig()
	cfg.Host = host
	cfg.Timeout = 2 * time.Second
	cfg.Backoff = apperrors.Backoff{Attempts: 2, Initial: time.Millisecond, Factor: 2}
	return cfg
}

func TestOllamaEmbedderProbesDimensionsOnConstruction(t *testing.T) {
	srv := fakeOllama(t, 768, nil)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), testOllamaConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, 768, e.Dimensions())
}

func TestOllamaEmbedderRejectsDimensionMismatch(t *testing.T) {
	srv := fakeOllama(t, 256, nil)
	defer srv.Close()

	cfg := testOllamaConfig(srv.URL)
	cfg.Dimensions = 768

	_, err := NewOllamaEmbedder(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDimensionMismatch, apperrors.GetCode(err))
}

func TestOllamaEmbedderUnreachableHostFailsConstruction(t *testing.T) {
	_, err := NewOllamaEmbedder(context.Background(), testOllamaConfig("http://127.0.0.1:1"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeEmbedderUnavailable, apperrors.GetCode(err))
}

func TestOllamaEmbedBatchSplitsIntoBackendBatches(t *testing.T) {
	srv := fakeOllama(t, 8, nil)
	defer srv.Close()

	cfg := testOllamaConfig(srv.URL)
	cfg.BatchSize = 2

	e, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	for _, v := range vecs {
		assert.Len(t, v, 8)
	}
}

func TestOllamaEmbedBatchSurfacesBackendFailure(t *testing.T) {
	var fail atomic.Bool
	srv := fakeOllama(t, 8, &fail)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), testOllamaConfig(srv.URL))
	require.NoError(t, err)

	fail.Store(true)
	_, err = e.EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeEmbeddingFailed, apperrors.GetCode(err))
}

func TestOllamaAvailableReflectsServerState(t *testing.T) {
	srv := fakeOllama(t, 8, nil)

	e, err := NewOllamaEmbedder(context.Background(), testOllamaConfig(srv.URL))
	require.NoError(t, err)
	assert.True(t, e.Available(context.Background()))

	srv.Close()
	assert.False(t, e.Available(context.Background()))
}

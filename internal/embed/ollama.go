package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/domwxyz/marxist-search/internal/errors"
)

// OllamaConfig configures the Ollama embedding client.
type OllamaConfig struct {
	Host       string // e.g. http://localhost:11434
	Model      string // e.g. nomic-embed-text
	Dimensions int    // 0 means probe the model on construction
	BatchSize  int
	Timeout    time.Duration
	Backoff    apperrors.Backoff
}

// DefaultOllamaConfig returns the client configuration for a local daemon.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:      "http://localhost:11434",
		Model:     "nomic-embed-text",
		BatchSize: DefaultBatchSize,
		Timeout:   DefaultRequestTimeout,
		Backoff:   apperrors.DefaultBackoff(),
	}
}

// OllamaEmbedder calls a local Ollama daemon's /api/embed endpoint. Requests
// retry on transient failures and a circuit breaker fails fast during a
// sustained outage so an ingestion run degrades quickly instead of timing
// out article by article.
type OllamaEmbedder struct {
	cfg     OllamaConfig
	client  *http.Client
	breaker *apperrors.Breaker
	dims    int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// NewOllamaEmbedder constructs the client and probes the model once to learn
// (or verify) its dimensionality. The probe doubles as a reachability check:
// a daemon that isn't running fails construction immediately.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.Backoff.Attempts == 0 {
		cfg.Backoff = apperrors.DefaultBackoff()
	}

	e := &OllamaEmbedder{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: apperrors.NewBreaker("ollama", 5, 30*time.Second),
		dims:    cfg.Dimensions,
	}

	probe, err := e.embedOnce(ctx, []string{"dimension probe"})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeEmbedderUnavailable,
			fmt.Sprintf("ollama not reachable at %s (model %s)", cfg.Host, cfg.Model), err)
	}
	got := len(probe[0])
	if e.dims != 0 && e.dims != got {
		return nil, apperrors.New(apperrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("model %s produces %d dimensions, config says %d", cfg.Model, got, e.dims), nil)
	}
	e.dims = got
	return e, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		var vecs [][]float32
		err := apperrors.Retry(ctx, e.cfg.Backoff, func(ctx context.Context) error {
			return e.breaker.Do(func() error {
				var batchErr error
				vecs, batchErr = e.embedOnce(ctx, texts[start:end])
				return batchErr
			})
		})
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeEmbeddingFailed, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// embedOnce performs one /api/embed round-trip without retries.
func (e *OllamaEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Host+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeNetworkTimeout, "embed request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New(apperrors.ErrCodeEmbedderUnavailable,
			fmt.Sprintf("ollama returned %d: %s", resp.StatusCode, truncate(string(body), 200)), nil)
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if parsed.Error != "" {
		return nil, apperrors.New(apperrors.ErrCodeEmbeddingFailed, parsed.Error, nil)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("asked for %d embeddings, got %d", len(texts), len(parsed.Embeddings))
	}

	for i := range parsed.Embeddings {
		parsed.Embeddings[i] = normalize(parsed.Embeddings[i])
	}
	return parsed.Embeddings, nil
}

func (e *OllamaEmbedder) Dimensions() int   { return e.dims }
func (e *OllamaEmbedder) ModelName() string { return e.cfg.Model }

// Available pings the daemon's root endpoint with a short deadline.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.Host+"/", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (e *OllamaEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

var _ Embedder = (*OllamaEmbedder)(nil)

package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// StaticEmbedder produces deterministic, backend-free embeddings by hashing
// word n-grams into a fixed-width vector. The vectors carry no semantics
// beyond lexical overlap, but they are stable across runs and platforms,
// which makes them usable for tests, offline development, and environments
// without a local model daemon. An index built statically must also be
// queried statically.
type StaticEmbedder struct {
	dims int
}

// NewStaticEmbedder returns a static embedder producing DefaultDimensions-
// wide vectors, matching the shape of the real models so an index can be
// swapped between providers without rebuilding metadata.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{dims: DefaultDimensions}
}

func (s *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.hashText(text), nil
}

func (s *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = s.hashText(t)
	}
	return out, nil
}

// hashText folds each token and each adjacent-token bigram into buckets of a
// fixed-width vector. Bigrams let short phrases ("class struggle") land near
// documents using the same phrase rather than just the same words.
func (s *StaticEmbedder) hashText(text string) []float32 {
	vec := make([]float32, s.dims)
	tokens := tokenize(text)

	for i, tok := range tokens {
		bucket, sign := hashToken(tok)
		vec[bucket%uint32(s.dims)] += sign

		if i+1 < len(tokens) {
			bucket, sign = hashToken(tok + " " + tokens[i+1])
			vec[bucket%uint32(s.dims)] += sign * 0.5
		}
	}
	return normalize(vec)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// hashToken maps a token to a bucket plus a ±1 sign bit, so unrelated tokens
// sharing a bucket tend to cancel instead of compounding.
func hashToken(tok string) (uint32, float32) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tok))
	v := h.Sum32()
	sign := float32(1)
	if v&1 == 1 {
		sign = -1
	}
	return v >> 1, sign
}

func (s *StaticEmbedder) Dimensions() int                    { return s.dims }
func (s *StaticEmbedder) ModelName() string                  { return "static-hash" }
func (s *StaticEmbedder) Available(ctx context.Context) bool { return true }
func (s *StaticEmbedder) Close() error                       { return nil }

var _ Embedder = (*StaticEmbedder)(nil)

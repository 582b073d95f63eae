package embed

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/hsearch/hsearch/internal/hserr"
	"github.com/hsearch/hsearch/internal/tokenize"
)

// FallbackEmbedder is the deterministic fallback: a hash-seeded
// pseudo-random unit vector, deterministic per input, built from the
// same hash-and-ngram construction at an arbitrary dimension. It is a
// distinct, explicitly-selected code path — never substituted silently
// for a failed model load.
type FallbackEmbedder struct {
	dim    int
	closed bool
}

const (
	fallbackTokenWeight = 0.7
	fallbackNgramWeight = 0.3
	fallbackNgramSize   = 3
)

// NewFallbackEmbedder constructs the deterministic fallback at the
// given output dimension. Callers must gate construction behind an
// explicit allow_deterministic_fallback configuration flag; this type
// performs no such gating itself.
func NewFallbackEmbedder(dim int) *FallbackEmbedder {
	return &FallbackEmbedder{dim: dim}
}

func (e *FallbackEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.closed {
		return nil, hserr.New(hserr.Resource, "embed: embedder not ready")
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dim), nil
	}
	return normalizeVector(e.generateVector(trimmed)), nil
}

func (e *FallbackEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, e.dim)

	for _, tok := range tokenize.Tokenize(text, tokenize.DefaultStopWords) {
		vector[hashToIndex(tok, e.dim)] += fallbackTokenWeight
	}

	normalized := normalizeForNgrams(text)
	for _, ngram := range extractNgrams(normalized, fallbackNgramSize) {
		vector[hashToIndex(ngram, e.dim)] += fallbackNgramWeight
	}

	return vector
}

func normalizeForNgrams(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return nil
	}
	out := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		out = append(out, text[i:i+n])
	}
	return out
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func (e *FallbackEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *FallbackEmbedder) Dimensions() int   { return e.dim }
func (e *FallbackEmbedder) ModelName() string { return "deterministic-fallback" }
func (e *FallbackEmbedder) State() State {
	if e.closed {
		return StateFailed
	}
	return StateReady
}
func (e *FallbackEmbedder) Close() error {
	e.closed = true
	return nil
}

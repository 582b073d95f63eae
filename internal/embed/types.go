// Package embed implements a bounded text embedder: a
// fixed-dimension unit-vector embedder backed by a memory-mapped
// quantized model file, with a hard resident-memory bound independent
// of model size.
package embed

import (
	"context"
	"math"
)

// Dimensions this package's embedders commonly produce. A concrete
// Embedder reports its own Dimensions(); these are defaults used when
// no model is open yet.
const (
	DefaultDimensions = 768

	// MaxEmbedderResidentBytes is MAX_EMBEDDER_RESIDENT: the compile-time
	// bound on process resident memory attributable to the embedder,
	// independent of on-disk model size.
	MaxEmbedderResidentBytes = 64 * 1024 * 1024

	// MaxSingleAllocBytes is MAX_SINGLE_ALLOC: no embedder allocation may
	// exceed this in one call.
	MaxSingleAllocBytes = 1 * 1024 * 1024

	// yieldIntervalMillis bounds how long an embedding call may run between
	// context-cancellation checks: yield at least every 50ms.
	yieldIntervalMillis = 50
)

// Embedder generates fixed-dimension unit-length vector embeddings for
// text. Calls in any state other than Ready return an error.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	State() State
	Close() error
}

// normalizeVector L2-normalizes v in place conceptually, returning a
// new slice; the zero vector is returned unchanged (callers treat a
// near-zero norm as the empty-content failure, not as a silent
// zero-vector substitution).
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / norm)
	}
	return out
}

func l2Norm(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

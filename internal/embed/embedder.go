package embed

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hsearch/hsearch/internal/hashutil"
	"github.com/hsearch/hsearch/internal/hserr"
	"github.com/hsearch/hsearch/internal/tokenize"
)

// ModelEmbedder is the mmap+seek-and-stream Embedder: it maps text to
// a fixed-dimension unit vector from an on-disk quantized model,
// bounding resident memory independent of model size via the
// lookup-first side table, a capped streaming cache, and fixed scratch
// buffers reused across calls.
type ModelEmbedder struct {
	path  string
	state stateBox

	mu    sync.RWMutex // guards mf during Open/Close/Reset
	mf    *modelFile

	streamCache *lru.Cache[uint64, []float32]

	scratch sync.Pool // *[]byte, one superblock's worth at a time
}

// streamCacheCapacity bounds the streaming path's per-token vector
// cache so that, combined with the mmap'd (non-resident-until-touched)
// side table, total attributable resident memory stays within
// MaxEmbedderResidentBytes at steady state.
func streamCacheCapacity(dim int) int {
	perEntry := dim*4 + 64 // vector bytes + map/LRU bookkeeping overhead
	cap := MaxEmbedderResidentBytes / 4 / perEntry
	if cap < 64 {
		cap = 64
	}
	return cap
}

// NewModelEmbedder constructs an embedder in the Uninitialized state
// for the model file at path. Call Open before embedding.
func NewModelEmbedder(path string) *ModelEmbedder {
	return &ModelEmbedder{path: path}
}

// Open maps the model file and transitions Uninitialized -> Opening ->
// Ready, or -> Failed on any structural problem.
func (e *ModelEmbedder) Open() error {
	e.state.set(StateOpening)

	mf, err := openModelFile(e.path)
	if err != nil {
		kind, _ := hserr.KindOf(err)
		e.state.fail(string(kind) + ": " + err.Error())
		return err
	}

	cache, err := lru.New[uint64, []float32](streamCacheCapacity(int(mf.hdr.Dim)))
	if err != nil {
		mf.close()
		e.state.fail(err.Error())
		return hserr.Wrap(hserr.Resource, "embed: allocate stream cache", err)
	}

	e.mu.Lock()
	e.mf = mf
	e.streamCache = cache
	e.mu.Unlock()

	e.state.set(StateReady)
	return nil
}

// Reset transitions a Failed embedder back to Uninitialized explicitly.
// Every other state transition is one-way. It is a no-op unless
// currently Failed.
func (e *ModelEmbedder) Reset() {
	if e.state.get() != StateFailed {
		return
	}
	e.mu.Lock()
	if e.mf != nil {
		e.mf.close()
		e.mf = nil
	}
	e.streamCache = nil
	e.mu.Unlock()
	e.state.reset()
}

func (e *ModelEmbedder) State() State { return e.state.get() }

func (e *ModelEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.mf == nil {
		return DefaultDimensions
	}
	return int(e.mf.hdr.Dim)
}

func (e *ModelEmbedder) ModelName() string { return e.path }

// Embed tokenizes text, resolves each token via the lookup-first path
// or the streaming dequantization path, accumulates, and
// L2-normalizes the result.
func (e *ModelEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.State() != StateReady {
		return nil, hserr.New(hserr.Resource, "embed: embedder not ready")
	}

	e.mu.RLock()
	mf := e.mf
	cache := e.streamCache
	e.mu.RUnlock()
	if mf == nil {
		return nil, hserr.New(hserr.Resource, "embed: embedder not ready")
	}

	dim := int(mf.hdr.Dim)
	acc := make([]float32, dim)

	tokens := tokenize.Tokenize(text, tokenize.DefaultStopWords)
	lastYield := time.Now()

	for _, tok := range tokens {
		if time.Since(lastYield) > yieldIntervalMillis*time.Millisecond {
			if err := ctx.Err(); err != nil {
				return nil, hserr.Wrap(hserr.Cancelled, "embed: cancelled", err)
			}
			lastYield = time.Now()
		}

		hash := hashutil.ContentHash([]byte(tok))

		if mf.side != nil {
			if v, ok := mf.side.lookup(hash); ok {
				addInto(acc, v)
				continue
			}
		}

		if v, ok := cache.Get(hash); ok {
			addInto(acc, v)
			continue
		}

		row, ok := mf.rowForHash(hash)
		if !ok {
			continue // out-of-vocabulary token: no contribution
		}

		v, err := e.streamRow(mf, row)
		if err != nil {
			return nil, err
		}
		cache.Add(hash, v)
		addInto(acc, v)
	}

	if l2Norm(acc) < 1e-9 {
		return nil, hserr.New(hserr.Parse, "embed: no tokens resolved to a vector")
	}
	return normalizeVector(acc), nil
}

// streamRow reads and dequantizes one vocabulary row from the tensor
// data blob, using a pooled fixed-size scratch buffer (never exceeding
// MaxSingleAllocBytes) rather than allocating per call.
func (e *ModelEmbedder) streamRow(mf *modelFile, row uint32) ([]float32, error) {
	rowLen := mf.rowByteLength()
	if rowLen > MaxSingleAllocBytes {
		return nil, hserr.New(hserr.Resource, "embed: row exceeds max single allocation")
	}

	bufPtr, _ := e.scratch.Get().(*[]byte)
	if bufPtr == nil || len(*bufPtr) < rowLen {
		b := make([]byte, rowLen)
		bufPtr = &b
	}
	defer e.scratch.Put(bufPtr)
	buf := (*bufPtr)[:rowLen]

	if _, err := mf.f.ReadAt(buf, mf.rowByteOffset(row)); err != nil {
		return nil, hserr.Wrap(hserr.Io, "embed: read tensor row", err)
	}

	dim := int(mf.hdr.Dim)
	out := make([]float32, dim)
	remaining := dim
	for sb := 0; remaining > 0; sb++ {
		n := remaining
		if n > superblockWeights {
			n = superblockWeights
		}
		block := buf[sb*superblockBytes : (sb+1)*superblockBytes]
		if err := dequantSuperblock(block, n, out[sb*superblockWeights:sb*superblockWeights+n]); err != nil {
			return nil, err
		}
		remaining -= n
	}
	return normalizeVector(out), nil
}

func addInto(acc, v []float32) {
	for i := range acc {
		if i < len(v) {
			acc[i] += v[i]
		}
	}
}

// EmbedBatch embeds each text independently with no batched
// tensor-read optimization — a straightforward sequential loop sharing
// the embedder's caches and scratch pool across calls.
func (e *ModelEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

func (e *ModelEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mf != nil {
		err := e.mf.close()
		e.mf = nil
		return err
	}
	return nil
}

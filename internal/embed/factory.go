package embed

import (
	"os"
	"path/filepath"

	"github.com/hsearch/hsearch/internal/hserr"
)

// Options selects which Embedder implementation Open constructs, from
// this package's two implementations (mmap model, deterministic
// fallback).
type Options struct {
	ModelPath                 string
	AllowDeterministicFallback bool
	Dimensions                int // used only by the fallback path
}

// Open selects and opens the configured Embedder: the mmap-backed
// ModelEmbedder if ModelPath exists, or — only when the caller
// explicitly set AllowDeterministicFallback — the FallbackEmbedder.
// A missing model with fallback disabled is a fatal Config error,
// since the caller asked for real embeddings and got none available.
func Open(opts Options) (Embedder, error) {
	if opts.ModelPath != "" {
		if _, err := os.Stat(opts.ModelPath); err == nil {
			// Guard against another process replacing or re-opening the
			// same model file mid-open; best-effort, never fatal if the
			// lock can't be taken (e.g. read-only lock directory).
			lock := NewFileLock(filepath.Dir(opts.ModelPath))
			if acquired, lockErr := lock.TryLock(); lockErr == nil && acquired {
				defer lock.Unlock()
			}

			me := NewModelEmbedder(opts.ModelPath)
			if err := me.Open(); err != nil {
				return me, err
			}
			return me, nil
		}
	}

	if !opts.AllowDeterministicFallback {
		return nil, hserr.New(hserr.Config, "embed: no model at configured path and deterministic fallback is disabled").WithPath(opts.ModelPath)
	}

	dim := opts.Dimensions
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return NewFallbackEmbedder(dim), nil
}

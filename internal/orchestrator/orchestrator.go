// Package orchestrator implements the query orchestrator: it fans a
// query out to the text, vector, and symbol backends, fuses the
// results, expands context around each hit, and returns a single
// ranked, truncated list.
package orchestrator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hsearch/hsearch/internal/bm25"
	"github.com/hsearch/hsearch/internal/embed"
	"github.com/hsearch/hsearch/internal/expand"
	"github.com/hsearch/hsearch/internal/fusion"
	"github.com/hsearch/hsearch/internal/store"
	"github.com/hsearch/hsearch/internal/tokenize"
	"github.com/hsearch/hsearch/internal/vectorstore"
)

// DefaultPerBackendTimeout is the default individual-task timeout
// (400ms).
const DefaultPerBackendTimeout = 400 * time.Millisecond

// DefaultFetchMultiplier over-fetches each backend before fusion so
// truncation happens after ranking, not before.
const DefaultFetchMultiplier = 3

// DefaultLimit is the number of hits returned when the caller doesn't
// specify one.
const DefaultLimit = 10

// MatchType identifies which backend(s) contributed a Hit, surfaced to
// the host as the SearchResult.match_type field.
type MatchType string

const (
	MatchText   MatchType = "text"
	MatchVector MatchType = "vector"
	MatchSymbol MatchType = "symbol"
	MatchHybrid MatchType = "hybrid"
)

// Hit is one expanded, fused search result.
type Hit struct {
	ChunkID   string
	Chunk     *store.Chunk
	Score     float64
	Window    *expand.Window
	MatchType MatchType
}

// Response is the orchestrator's top-level result, carrying the
// degraded flag set when vector search was skipped (no vector store, or
// no embedder in the Ready state). A backend that fails or times out
// contributes no hits but does not set the flag.
type Response struct {
	Hits     []Hit
	Degraded bool
}

// Orchestrator wires the three search backends plus fusion and
// expansion together behind an errgroup fan-out: a failing or
// timed-out backend contributes an empty list instead of aborting the
// whole query.
type Orchestrator struct {
	text     *store.TextIndex
	vector   *vectorstore.Store
	symbol   *store.SymbolIndex
	metadata *store.MetadataStore
	embedder embed.Embedder
	expander *expand.Expander
	rootDir  string

	PerBackendTimeout time.Duration
	FetchMultiplier   int
	Weights           fusion.Weights
	fuser             *fusion.Fuser
}

// New constructs an Orchestrator over already-open backends. embedder
// may be nil (or never opened) — vector search is simply skipped and
// the response is marked degraded. rootDir is the project root
// file.Path entries are relative to, used to read current file
// content for staleness detection during context expansion.
func New(text *store.TextIndex, vector *vectorstore.Store, symbol *store.SymbolIndex, metadata *store.MetadataStore, embedder embed.Embedder, rootDir string) *Orchestrator {
	return &Orchestrator{
		text:              text,
		vector:            vector,
		symbol:            symbol,
		metadata:          metadata,
		embedder:          embedder,
		expander:          expand.New(metadata),
		rootDir:           rootDir,
		PerBackendTimeout: DefaultPerBackendTimeout,
		FetchMultiplier:   DefaultFetchMultiplier,
		Weights:           fusion.DefaultWeights,
		fuser:             fusion.New(),
	}
}

// Search fans a query out to all three backends, fuses the results,
// and expands context around each surviving hit.
func (o *Orchestrator) Search(ctx context.Context, query string, limit int) (*Response, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	fetchK := limit * o.fetchMultiplier()

	terms := tokenize.TokenizeQuery(query, tokenize.DefaultStopWords)

	textHits, vecHits, symHits, degraded := o.fanOut(ctx, query, terms, fetchK)

	chunks := o.loadCandidateChunks(ctx, textHits, vecHits, symHits)
	texts := make(map[string]string, len(chunks))
	for id, c := range chunks {
		texts[id] = c.Content
	}

	fused := o.fuser.Fuse(textHits, vecHits, symHits, o.Weights, query, texts)
	fused = fusion.TopN(fused, limit)

	hits := make([]Hit, 0, len(fused))
	for _, f := range fused {
		chunk, ok := chunks[f.ChunkID]
		if !ok {
			slog.Warn("orchestrator: fused chunk missing from metadata store", slog.String("chunk_id", f.ChunkID))
			continue
		}
		var window *expand.Window
		if file, err := o.metadata.GetFileByID(ctx, chunk.FileID); err == nil && file != nil {
			current, err := os.ReadFile(filepath.Join(o.rootDir, file.Path))
			if err != nil {
				current = nil
			}
			if w, err := o.expander.Expand(ctx, file, chunk.StartLine, chunk.EndLine, current); err == nil {
				window = w
			}
		}
		hits = append(hits, Hit{ChunkID: f.ChunkID, Chunk: chunk, Score: f.RRFScore, Window: window, MatchType: matchType(f)})
	}

	return &Response{Hits: hits, Degraded: degraded}, nil
}

// loadCandidateChunks fetches every chunk referenced by any backend's
// result list, once each, so fusion can apply the exact-phrase boost
// and Hit construction never re-queries the same chunk twice.
func (o *Orchestrator) loadCandidateChunks(ctx context.Context, textHits []bm25.Result, vecHits []vectorstore.Result, symHits []store.SymbolEntry) map[string]*store.Chunk {
	ids := make(map[string]struct{}, len(textHits)+len(vecHits)+len(symHits))
	for _, h := range textHits {
		ids[h.ChunkID] = struct{}{}
	}
	for _, h := range vecHits {
		ids[h.ChunkID] = struct{}{}
	}
	for _, h := range symHits {
		ids[h.ChunkID] = struct{}{}
	}

	chunks := make(map[string]*store.Chunk, len(ids))
	for id := range ids {
		chunk, err := o.metadata.GetChunk(ctx, id)
		if err != nil || chunk == nil {
			continue
		}
		chunks[id] = chunk
	}
	return chunks
}

// fanOut launches up to three concurrent backend tasks, each bounded by
// PerBackendTimeout; a failing or timed-out task logs a warning and
// contributes an empty list rather than aborting the query.
func (o *Orchestrator) fanOut(ctx context.Context, query string, terms []string, k int) ([]bm25.Result, []vectorstore.Result, []store.SymbolEntry, bool) {
	var textHits []bm25.Result
	var vecHits []vectorstore.Result
	var symHits []store.SymbolEntry
	degraded := false

	g, gctx := errgroup.WithContext(ctx)

	if o.text != nil {
		g.Go(func() error {
			taskCtx, cancel := context.WithTimeout(gctx, o.timeout())
			defer cancel()
			hits, err := o.text.Query(taskCtx, terms, k)
			if err != nil {
				slog.Warn("orchestrator: text search failed", slog.String("error", err.Error()))
				return nil
			}
			textHits = hits
			return nil
		})
	}

	embedderReady := o.embedder != nil && o.embedder.State() == embed.StateReady
	if o.vector != nil && embedderReady {
		g.Go(func() error {
			taskCtx, cancel := context.WithTimeout(gctx, o.timeout())
			defer cancel()
			embedding, err := o.embedder.Embed(taskCtx, query)
			if err != nil {
				slog.Warn("orchestrator: query embedding failed", slog.String("error", err.Error()))
				return nil
			}
			hits, err := o.vector.Search(taskCtx, embedding, k)
			if err != nil {
				slog.Warn("orchestrator: vector search failed", slog.String("error", err.Error()))
				return nil
			}
			vecHits = hits
			return nil
		})
	} else {
		degraded = true
	}

	if o.symbol != nil {
		g.Go(func() error {
			taskCtx, cancel := context.WithTimeout(gctx, o.timeout())
			defer cancel()
			hits, err := o.symbol.Query(taskCtx, query, k)
			if err != nil {
				slog.Warn("orchestrator: symbol search failed", slog.String("error", err.Error()))
				return nil
			}
			symHits = hits
			return nil
		})
	}

	// Every g.Go closure swallows its own error, so Wait only ever
	// reports upstream context cancellation.
	_ = g.Wait()

	return textHits, vecHits, symHits, degraded
}

func (o *Orchestrator) timeout() time.Duration {
	if o.PerBackendTimeout <= 0 {
		return DefaultPerBackendTimeout
	}
	return o.PerBackendTimeout
}

// matchType derives a Hit's MatchType from which backend lists
// contributed to its fused score: a hit corroborated by more than one
// backend is reported hybrid.
func matchType(f *fusion.Result) MatchType {
	n := 0
	var single MatchType
	if f.InTextList {
		n++
		single = MatchText
	}
	if f.InVectorList {
		n++
		single = MatchVector
	}
	if f.InSymbolList {
		n++
		single = MatchSymbol
	}
	if n > 1 {
		return MatchHybrid
	}
	if n == 1 {
		return single
	}
	return MatchHybrid
}

func (o *Orchestrator) fetchMultiplier() int {
	if o.FetchMultiplier <= 0 {
		return DefaultFetchMultiplier
	}
	return o.FetchMultiplier
}

package daemon

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/hsearch/hsearch/internal/config"
	"github.com/hsearch/hsearch/internal/corecontext"
	"github.com/hsearch/hsearch/internal/hserr"
	"github.com/hsearch/hsearch/internal/orchestrator"
)

// Service implements RequestHandler over one or more
// corecontext.CoreContext instances, opened lazily and kept alive for
// the lifetime of the process so the embedder and on-disk indices stay
// warm across requests: rather than a separate always-running daemon a
// CLI dials into over a Unix socket, "stay warm" simply means not
// closing CoreContext between JSON-RPC requests in this one process's
// lifetime.
type Service struct {
	cfg         config.Config
	defaultRoot string

	mu       sync.Mutex
	contexts map[string]*corecontext.CoreContext
}

// NewService builds a Service. defaultRoot is used whenever a request
// omits its path/project_path parameter.
func NewService(cfg config.Config, defaultRoot string) *Service {
	return &Service{
		cfg:         cfg,
		defaultRoot: defaultRoot,
		contexts:    make(map[string]*corecontext.CoreContext),
	}
}

// Close closes every opened CoreContext, joining their close errors.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, cc := range s.contexts {
		if err := cc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resolve returns the already-open CoreContext for root, opening one on
// first use.
func (s *Service) resolve(ctx context.Context, root string) (*corecontext.CoreContext, error) {
	if root == "" {
		root = s.defaultRoot
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, hserr.Wrap(hserr.Config, "daemon: resolve project root", err).WithPath(root)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cc, ok := s.contexts[abs]; ok {
		return cc, nil
	}

	cc, err := corecontext.Open(ctx, abs, s.cfg)
	if err != nil {
		return nil, err
	}
	s.contexts[abs] = cc
	return cc, nil
}

// Index implements the index method: open-or-reuse the project's
// CoreContext and run a full indexing pass over it.
func (s *Service) Index(ctx context.Context, params IndexParams) (IndexResult, error) {
	cc, err := s.resolve(ctx, params.Path)
	if err != nil {
		return IndexResult{}, err
	}

	res, err := cc.Indexer.Run(ctx)
	if err != nil {
		return IndexResult{}, err
	}

	symbols, _ := cc.Symbol.Count(ctx)
	errs := make([]IndexError, 0, len(res.PartialFiles))
	for _, path := range res.PartialFiles {
		errs = append(errs, IndexError{Path: path, Reason: "partially indexed: symbol extraction or embedding failed"})
	}

	return IndexResult{
		FilesScanned: res.FilesIndexed + res.FilesSkipped,
		FilesIndexed: res.FilesIndexed,
		FilesSkipped: res.FilesSkipped,
		Chunks:       res.ChunksIndexed,
		Symbols:      symbols,
		Vectors:      cc.Vector.Count(),
		Errors:       errs,
	}, nil
}

// Search implements the search method.
func (s *Service) Search(ctx context.Context, params SearchParams) (SearchResponse, error) {
	cc, err := s.resolve(ctx, params.ProjectPath)
	if err != nil {
		return SearchResponse{}, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = s.cfg.Search.LimitDefault
	}

	start := time.Now()
	resp, err := cc.Orchestrator.Search(ctx, params.Query, limit)
	if err != nil {
		return SearchResponse{}, err
	}
	elapsed := time.Since(start)

	results := make([]SearchResult, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, toSearchResult(hit))
	}

	return SearchResponse{
		Results:      results,
		TotalFound:   len(results),
		SearchTimeMs: elapsed.Milliseconds(),
		Degraded:     resp.Degraded,
	}, nil
}

// Clear implements the clear method: wipe every on-disk artifact for
// the resolved project and reset its CoreContext to fresh, empty
// backends in place (CoreContext.Clear already reopens its own DB and
// vector store; Service keeps the same cached instance rather than
// discarding it unclosed).
func (s *Service) Clear(ctx context.Context) (ClearResult, error) {
	cc, err := s.resolve(ctx, "")
	if err != nil {
		return ClearResult{}, err
	}
	if err := cc.Clear(ctx); err != nil {
		return ClearResult{}, err
	}
	return ClearResult{OK: true}, nil
}

// Status implements the status method.
func (s *Service) Status(ctx context.Context) (StatusResult, error) {
	cc, err := s.resolve(ctx, "")
	if err != nil {
		return StatusResult{}, err
	}

	project, err := cc.Metadata.GetProject(ctx, cc.ProjectID)
	indexedFiles, chunks := 0, 0
	if err == nil && project != nil {
		indexedFiles = project.FileCount
		chunks = project.ChunkCount
	}
	symbols, _ := cc.Symbol.Count(ctx)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return StatusResult{
		IndexedFiles:     indexedFiles,
		Chunks:           chunks,
		VectorRows:       cc.Vector.Count(),
		SymbolRows:       symbols,
		EmbedderState:    cc.Embedder.State().String(),
		MemoryUsageBytes: mem.Alloc,
	}, nil
}

// RunStdio builds a Service for root and serves it over the
// line-delimited JSON-RPC protocol on in/out until ctx is cancelled or
// in reaches EOF, then closes the Service. Shared by cmd/hsearchd's
// dedicated process and cmd/hsearch's "serve" subcommand so both
// expose identical stdio behavior without duplicating the wiring.
func RunStdio(ctx context.Context, cfg config.Config, root string, in io.Reader, out io.Writer) error {
	service := NewService(cfg, root)
	defer func() { _ = service.Close() }()

	server := NewServer(in, out, service)
	return server.Serve(ctx)
}

// toSearchResult maps an orchestrator.Hit onto the wire
// SearchResult wire shape, flattening its expand.Window into the
// above/target/below span triple.
func toSearchResult(hit orchestrator.Hit) SearchResult {
	r := SearchResult{
		Path:      hit.Chunk.FilePath,
		Score:     hit.Score,
		MatchType: MatchType(hit.MatchType),
	}
	if hit.Window != nil {
		if hit.Window.Above != nil {
			r.Above = &Span{StartLine: hit.Window.Above.StartLine, EndLine: hit.Window.Above.EndLine, Content: hit.Window.Above.Content}
		}
		if hit.Window.Target != nil {
			r.Target = Span{StartLine: hit.Window.Target.StartLine, EndLine: hit.Window.Target.EndLine, Content: hit.Window.Target.Content}
		}
		if hit.Window.Below != nil {
			r.Below = &Span{StartLine: hit.Window.Below.StartLine, EndLine: hit.Window.Below.EndLine, Content: hit.Window.Below.Content}
		}
		r.Stale = hit.Window.Stale
	} else {
		r.Target = Span{StartLine: hit.Chunk.StartLine, EndLine: hit.Chunk.EndLine, Content: hit.Chunk.Content}
	}
	return r
}

// Package indexer walks a project tree, skips files whose content
// hasn't changed, deletes stale rows for changed paths, and rebuilds
// the text, vector, and symbol indices for everything else. The
// pipeline (scan -> chunk -> embed -> index) runs per-file through a
// bounded worker pool rather than as whole-project batch stages, so one
// file's embedding or symbol-extraction failure doesn't roll back
// indexing progress already made on the rest of the tree.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/hsearch/hsearch/internal/chunk"
	"github.com/hsearch/hsearch/internal/embed"
	"github.com/hsearch/hsearch/internal/expand"
	"github.com/hsearch/hsearch/internal/hashutil"
	"github.com/hsearch/hsearch/internal/hserr"
	"github.com/hsearch/hsearch/internal/scanner"
	"github.com/hsearch/hsearch/internal/store"
	"github.com/hsearch/hsearch/internal/symbol"
	"github.com/hsearch/hsearch/internal/tokenize"
	"github.com/hsearch/hsearch/internal/vectorstore"
)

// Options configures one indexing run.
type Options struct {
	RootDir          string
	ProjectID        string
	DataDir          string
	MaxFileSizeBytes int64
	MaxChunkLines    int
	Workers          int
}

// Result summarizes one Run.
type Result struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesRemoved  int
	ChunksIndexed int
	// PartialFiles lists paths whose text index was updated but whose
	// symbol extraction or embedding step failed; a later successful
	// reindex replaces all rows.
	PartialFiles []string
	Duration     time.Duration
}

// Indexer wires the scanner, chunker, symbol extractor, embedder, and
// the three backend indices into a single driver.
type Indexer struct {
	text      *store.TextIndex
	vector    *vectorstore.Store
	symbol    *store.SymbolIndex
	metadata  *store.MetadataStore
	embedder  embed.Embedder
	extractor *symbol.Extractor
	scan      *scanner.Scanner

	opts Options
}

// New constructs an Indexer over already-open backends. embedder may be
// nil — chunks are still text- and symbol-indexed, just never embedded.
func New(text *store.TextIndex, vector *vectorstore.Store, symbolIndex *store.SymbolIndex, metadata *store.MetadataStore, embedder embed.Embedder, opts Options) (*Indexer, error) {
	s, err := scanner.New()
	if err != nil {
		return nil, hserr.Wrap(hserr.Io, "constructing scanner", err)
	}
	return &Indexer{
		text:      text,
		vector:    vector,
		symbol:    symbolIndex,
		metadata:  metadata,
		embedder:  embedder,
		extractor: symbol.NewExtractor(),
		scan:      s,
		opts:      opts,
	}, nil
}

func (ix *Indexer) workers() int {
	w := ix.opts.Workers
	if w <= 0 {
		w = 4
	}
	if cpu := runtime.NumCPU(); w > cpu {
		w = cpu
	}
	if w <= 0 {
		w = 1
	}
	return w
}

// Run walks RootDir and reconciles the index against the current
// filesystem state: changed/new files are (re)indexed, removed files
// are dropped from all three backends, unchanged files are skipped.
func (ix *Indexer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	lockPath := filepath.Join(ix.opts.DataDir, "index.lock")
	if err := os.MkdirAll(ix.opts.DataDir, 0o755); err != nil {
		return nil, hserr.Wrap(hserr.Io, "creating data directory", err).WithPath(ix.opts.DataDir)
	}
	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, hserr.Wrap(hserr.Io, "acquiring index lock", err).WithPath(lockPath)
	}
	if !locked {
		return nil, hserr.New(hserr.Resource, "another index run holds the lock").WithPath(lockPath)
	}
	defer fl.Unlock()

	now := time.Now()
	project := &store.Project{
		ID:        ix.opts.ProjectID,
		Name:      filepath.Base(ix.opts.RootDir),
		RootPath:  ix.opts.RootDir,
		IndexedAt: now,
		Version:   fmt.Sprintf("%d", store.CurrentSchemaVersion),
	}
	if err := ix.metadata.SaveProject(ctx, project); err != nil {
		return nil, hserr.Wrap(hserr.Io, "saving project metadata", err)
	}

	existing, err := ix.metadata.GetFilesForReconciliation(ctx, ix.opts.ProjectID)
	if err != nil {
		return nil, hserr.Wrap(hserr.Io, "loading existing files for reconciliation", err)
	}

	results, err := ix.scan.Scan(ctx, &scanner.ScanOptions{
		RootDir:          ix.opts.RootDir,
		ExcludePatterns:  []string{"**/" + filepath.Base(ix.opts.DataDir) + "/**"},
		RespectGitignore: true,
		Workers:          ix.workers(),
		MaxFileSize:      ix.opts.MaxFileSizeBytes,
	})
	if err != nil {
		return nil, hserr.Wrap(hserr.Io, "starting scan", err).WithPath(ix.opts.RootDir)
	}

	res := &Result{}
	seen := make(map[string]struct{}, len(existing))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers())
	resultsMu := newResultsSink(res)

	for r := range results {
		if r.Error != nil {
			slog.Warn("indexer: scan error", slog.String("error", r.Error.Error()))
			continue
		}
		file := r.File
		seen[file.Path] = struct{}{}
		prior := existing[file.Path]

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, err := ix.indexFile(gctx, file, prior, now)
			if err != nil {
				slog.Warn("indexer: indexing file failed", slog.String("path", file.Path), slog.String("error", err.Error()))
				return nil
			}
			resultsMu.apply(outcome)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, hserr.Wrap(hserr.Cancelled, "indexing run cancelled", err)
	}

	for path, file := range existing {
		if _, ok := seen[path]; ok {
			continue
		}
		if err := ix.removeFile(ctx, file); err != nil {
			slog.Warn("indexer: removing deleted file failed", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		res.FilesRemoved++
	}

	if err := ix.metadata.UpdateProjectStats(ctx, ix.opts.ProjectID, len(seen), res.ChunksIndexed); err != nil {
		slog.Warn("indexer: updating project stats failed", slog.String("error", err.Error()))
	}

	res.Duration = time.Since(start)
	return res, nil
}

// resultsSink aggregates per-file outcomes into a shared Result under a
// mutex, since Run's worker pool calls indexFile from up to workers()
// goroutines concurrently.
type resultsSink struct {
	mu  sync.Mutex
	res *Result
}

func newResultsSink(res *Result) *resultsSink {
	return &resultsSink{res: res}
}

func (s *resultsSink) apply(o fileOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.skipped {
		s.res.FilesSkipped++
		return
	}
	if o.indexed {
		s.res.FilesIndexed++
		s.res.ChunksIndexed += o.chunks
	}
	if o.partial != "" {
		s.res.PartialFiles = append(s.res.PartialFiles, o.partial)
	}
}

// fileOutcome is what a single indexFile call contributes to Result,
// reported back to Run under resultsSink's mutex.
type fileOutcome struct {
	indexed bool
	skipped bool
	chunks  int
	partial string // non-empty path if this file was only partially indexed
}

// indexFile runs the per-file pipeline: hash, skip if
// unchanged, delete stale rows if the path previously indexed under a
// different hash, then chunk/extract/tokenize/embed/insert in the
// delete-old -> insert-text -> insert-symbols -> upsert-vectors order.
func (ix *Indexer) indexFile(ctx context.Context, file *scanner.FileInfo, prior *store.File, now time.Time) (fileOutcome, error) {
	content, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return fileOutcome{}, hserr.Wrap(hserr.Io, "reading file", err).WithPath(file.Path)
	}

	contentHash := hashutil.ContentHash(content)
	hashStr := expand.FormatContentHash(contentHash)

	if prior != nil && prior.ContentHash == hashStr {
		return fileOutcome{skipped: true}, nil
	}

	fileID := hashutil.ChunkID(file.Path, 0, 0, contentHash)
	if prior != nil {
		if err := ix.deleteRowsForPath(ctx, file.Path); err != nil {
			return fileOutcome{}, err
		}
	}

	chunks := chunk.Chunk(file.Path, content, contentHash, ix.opts.MaxChunkLines)
	if len(chunks) == 0 {
		storeFile := &store.File{
			ID:          fileID,
			ProjectID:   ix.opts.ProjectID,
			Path:        file.Path,
			Size:        file.Size,
			ModTime:     file.ModTime,
			ContentHash: hashStr,
			Language:    file.Language,
			ContentType: string(file.ContentType),
			IndexedAt:   now,
		}
		if err := ix.metadata.SaveFiles(ctx, []*store.File{storeFile}); err != nil {
			return fileOutcome{}, hserr.Wrap(hserr.Io, "saving file metadata", err).WithPath(file.Path)
		}
		return fileOutcome{indexed: true}, nil
	}

	storeFile := &store.File{
		ID:          fileID,
		ProjectID:   ix.opts.ProjectID,
		Path:        file.Path,
		Size:        file.Size,
		ModTime:     file.ModTime,
		ContentHash: hashStr,
		Language:    file.Language,
		ContentType: string(file.ContentType),
		IndexedAt:   now,
	}
	if err := ix.metadata.SaveFiles(ctx, []*store.File{storeFile}); err != nil {
		return fileOutcome{}, hserr.Wrap(hserr.Io, "saving file metadata", err).WithPath(file.Path)
	}

	storeChunks := make([]*store.Chunk, len(chunks))
	textDocs := make([]store.TextIndexDocument, len(chunks))
	for i, c := range chunks {
		storeChunks[i] = &store.Chunk{
			ID:          c.ChunkID,
			FileID:      fileID,
			FilePath:    file.Path,
			Content:     c.Text,
			RawContent:  c.Text,
			ContentType: store.ContentType(file.ContentType),
			Language:    file.Language,
			StartLine:   c.StartLine,
			EndLine:     c.EndLine,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		textDocs[i] = store.TextIndexDocument{
			ChunkID: c.ChunkID,
			Path:    file.Path,
			Terms:   tokenize.Tokenize(c.Text, tokenize.DefaultStopWords),
		}
	}
	if err := ix.metadata.SaveChunks(ctx, storeChunks); err != nil {
		return fileOutcome{}, hserr.Wrap(hserr.Io, "saving chunks", err).WithPath(file.Path)
	}
	if err := ix.text.AddBatch(ctx, textDocs); err != nil {
		return fileOutcome{}, hserr.Wrap(hserr.Io, "indexing text documents", err).WithPath(file.Path)
	}

	partial := ""

	ext := filepath.Ext(file.Path)
	symbols, symErr := ix.extractor.Extract(ctx, file.Path, content, ext)
	if symErr != nil {
		slog.Warn("indexer: symbol extraction failed, file remains text-indexed only", slog.String("path", file.Path), slog.String("error", symErr.Error()))
		partial = file.Path
	} else if len(symbols) > 0 {
		if err := ix.insertSymbols(ctx, storeChunks, symbols); err != nil {
			slog.Warn("indexer: symbol insert failed, file remains text-indexed only", slog.String("path", file.Path), slog.String("error", err.Error()))
			partial = file.Path
		}
	}

	if ix.vector != nil && ix.embedder != nil && ix.embedder.State() == embed.StateReady {
		if err := ix.embedAndUpsert(ctx, storeChunks); err != nil {
			slog.Warn("indexer: embedding failed, file remains text/symbol-indexed only", slog.String("path", file.Path), slog.String("error", err.Error()))
			partial = file.Path
		}
	}

	return fileOutcome{indexed: true, chunks: len(chunks), partial: partial}, nil
}

// insertSymbols maps each extracted symbol to the chunk whose line
// range contains it and inserts them via the Symbol Index's
// kind-priority-aware upsert.
func (ix *Indexer) insertSymbols(ctx context.Context, chunks []*store.Chunk, symbols []symbol.Symbol) error {
	byChunk := make(map[string][]store.SymbolEntry)
	for _, sym := range symbols {
		for _, c := range chunks {
			if sym.Line >= c.StartLine && sym.Line <= c.EndLine {
				byChunk[c.ID] = append(byChunk[c.ID], store.SymbolEntry{
					Name:      sym.Name,
					Kind:      store.SymbolType(sym.Kind),
					StartLine: sym.Line,
					EndLine:   sym.EndLine,
					Signature: sym.Signature,
				})
				break
			}
		}
	}
	for chunkID, entries := range byChunk {
		if err := ix.symbol.AddChunkSymbols(ctx, chunkID, chunks[0].FilePath, entries); err != nil {
			return err
		}
	}
	return nil
}

// embedAndUpsert embeds every chunk's content and upserts the vectors,
// batching one Embed call per chunk through the mmap'd model: the
// per-text streaming contract has no batch shortcut for the quantized
// format, unlike the fallback embedder.
func (ix *Indexer) embedAndUpsert(ctx context.Context, chunks []*store.Chunk) error {
	rows := make([]vectorstore.Row, 0, len(chunks))
	for _, c := range chunks {
		vec, err := ix.embedder.Embed(ctx, c.Content)
		if err != nil {
			return err
		}
		rows = append(rows, vectorstore.Row{ChunkID: c.ID, Path: c.FilePath, Vector: vec})
	}
	return ix.vector.Upsert(ctx, rows)
}

// deleteRowsForPath handles reindexing a changed file: a path that
// previously indexed under a different content hash has all its rows deleted from
// the three indices before being rebuilt.
func (ix *Indexer) deleteRowsForPath(ctx context.Context, path string) error {
	if err := ix.text.DeleteByPath(ctx, path); err != nil {
		return hserr.Wrap(hserr.Io, "deleting stale text rows", err).WithPath(path)
	}
	if err := ix.symbol.DeleteByPath(ctx, path); err != nil {
		return hserr.Wrap(hserr.Io, "deleting stale symbol rows", err).WithPath(path)
	}
	if ix.vector != nil {
		if err := ix.vector.DeleteByPath(ctx, path); err != nil {
			return hserr.Wrap(hserr.Io, "deleting stale vector rows", err).WithPath(path)
		}
	}
	return nil
}

// removeFile deletes every row for a file no longer present on disk.
func (ix *Indexer) removeFile(ctx context.Context, file *store.File) error {
	if err := ix.deleteRowsForPath(ctx, file.Path); err != nil {
		return err
	}
	return ix.metadata.DeleteFile(ctx, file.ID)
}

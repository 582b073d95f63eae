// Package corecontext wires every opened backend (store, vector index,
// embedder) plus the two composite components that sit on top of them
// (Orchestrator, Indexer) into a single explicitly-constructed value:
// metadata, text index, vector store, and embedder are opened in turn
// and passed into the Orchestrator/Indexer's dependencies, with no
// package-level config or logger singletons. Every caller — the CLI,
// the daemon's stdio loop, tests — builds its own CoreContext and
// closes it; nothing here is package-level state.
package corecontext

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hsearch/hsearch/internal/config"
	"github.com/hsearch/hsearch/internal/embed"
	"github.com/hsearch/hsearch/internal/expand"
	"github.com/hsearch/hsearch/internal/hashutil"
	"github.com/hsearch/hsearch/internal/hserr"
	"github.com/hsearch/hsearch/internal/indexer"
	"github.com/hsearch/hsearch/internal/logging"
	"github.com/hsearch/hsearch/internal/orchestrator"
	"github.com/hsearch/hsearch/internal/store"
	"github.com/hsearch/hsearch/internal/vectorstore"
)

// indexFileName and vectorsFileName name the on-disk artifacts under
// Config.DataDir. meta.json records the {schema_version,
// model_fingerprint, created_at} triple; a mismatched
// model_fingerprint between meta.json and the embedder actually opened
// forces a full reindex, since every stored vector was produced by a
// different model.
const (
	indexFileName   = "index.db"
	vectorsFileName = "vectors.bin"
	metaFileName    = "meta.json"
)

// meta is the on-disk meta.json shape.
type meta struct {
	SchemaVersion   int       `json:"schema_version"`
	ModelFingerprint string   `json:"model_fingerprint"`
	CreatedAt       time.Time `json:"created_at"`
}

// CoreContext bundles every opened component a single project root
// needs: the three backend indices, the embedder, and the Orchestrator
// and Indexer built on top of them.
type CoreContext struct {
	Config    config.Config
	Logger    *slog.Logger
	RootDir   string
	ProjectID string

	DB       *store.DB
	Text     *store.TextIndex
	Symbol   *store.SymbolIndex
	Metadata *store.MetadataStore
	Vector   *vectorstore.Store
	Embedder embed.Embedder

	Orchestrator *orchestrator.Orchestrator
	Indexer      *indexer.Indexer

	dataDir     string
	vectorsPath string
}

// ProjectID derives a stable project identifier from a root path, so
// the same project always lands on the same row in the metadata store's
// projects table regardless of working directory at invocation time.
func ProjectID(rootDir string) string {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		abs = rootDir
	}
	return expand.FormatContentHash(hashutil.ContentHash([]byte(abs)))
}

// Open loads cfg's on-disk artifacts for rootDir, opening the embedder
// (falling back to the deterministic embedder only if cfg allows it),
// reconciling meta.json against the embedder actually opened, and
// wiring the Orchestrator and Indexer on top. The caller must Close the
// returned CoreContext.
func Open(ctx context.Context, rootDir string, cfg config.Config) (*CoreContext, error) {
	dataDir := cfg.DataDir
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(rootDir, dataDir)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, hserr.Wrap(hserr.Io, "corecontext: create data directory", err).WithPath(dataDir)
	}

	logger := logging.New(cfg.LogLevel(), os.Stderr)

	embedder, err := embed.Open(embed.Options{
		ModelPath:                  cfg.Embedder.ModelPath,
		AllowDeterministicFallback: cfg.Embedder.AllowDeterministicFallback,
	})
	if err != nil {
		return nil, err
	}

	fingerprint := modelFingerprint(embedder)
	metaPath := filepath.Join(dataDir, metaFileName)
	if stale, err := reconcileMeta(metaPath, fingerprint); err != nil {
		logging.Degraded(ctx, logger, "corecontext", metaPath, "io", err)
	} else if stale {
		logger.Warn("model fingerprint or schema version changed since last index, discarding on-disk index for a full reindex",
			slog.String("data_dir", dataDir))
		_ = os.Remove(filepath.Join(dataDir, indexFileName))
		_ = os.Remove(filepath.Join(dataDir, vectorsFileName))
	}

	db, err := store.Open(filepath.Join(dataDir, indexFileName))
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	text := store.NewTextIndex(db)
	symbolIdx := store.NewSymbolIndex(db)
	metadata := store.NewMetadataStore(db)

	vectorsPath := filepath.Join(dataDir, vectorsFileName)
	vector := vectorstore.New(embedder.Dimensions())
	if dim, err := vectorstore.ReadDimensions(vectorsPath); err == nil && dim == embedder.Dimensions() {
		if err := vector.Load(vectorsPath); err != nil {
			logger.Warn("vector store snapshot unreadable, starting empty", slog.String("error", err.Error()))
			vector = vectorstore.New(embedder.Dimensions())
		}
	}

	projectID := ProjectID(rootDir)

	ix, err := indexer.New(text, vector, symbolIdx, metadata, embedder, indexer.Options{
		RootDir:          rootDir,
		ProjectID:        projectID,
		DataDir:          dataDir,
		MaxFileSizeBytes: cfg.MaxFileSizeBytes,
		MaxChunkLines:    cfg.MaxChunkLines,
		Workers:          cfg.Workers,
	})
	if err != nil {
		_ = db.Close()
		_ = embedder.Close()
		return nil, err
	}

	orch := orchestrator.New(text, vector, symbolIdx, metadata, embedder, rootDir)
	orch.Weights.Text = cfg.Fusion.Weights.Text
	orch.Weights.Vector = cfg.Fusion.Weights.Vector
	orch.Weights.Symbol = cfg.Fusion.Weights.Symbol
	if cfg.Search.PerBackendTimeoutMs > 0 {
		orch.PerBackendTimeout = time.Duration(cfg.Search.PerBackendTimeoutMs) * time.Millisecond
	}

	return &CoreContext{
		Config:       cfg,
		Logger:       logger,
		RootDir:      rootDir,
		ProjectID:    projectID,
		DB:           db,
		Text:         text,
		Symbol:       symbolIdx,
		Metadata:     metadata,
		Vector:       vector,
		Embedder:     embedder,
		Orchestrator: orch,
		Indexer:      ix,
		dataDir:      dataDir,
		vectorsPath:  vectorsPath,
	}, nil
}

// modelFingerprint identifies the embedder actually opened: its model
// name (path, or "deterministic-fallback") plus its vector dimension,
// since either changing would invalidate every stored vector.
func modelFingerprint(e embed.Embedder) string {
	return fmt.Sprintf("%s:%d", e.ModelName(), e.Dimensions())
}

// reconcileMeta compares fingerprint against meta.json's recorded
// model_fingerprint, writing a fresh meta.json when none exists or the
// recorded fingerprint or schema version differs. Returns true when a
// previous fingerprint was recorded and either of the two differed
// (on-disk index rows and vectors are now stale).
func reconcileMeta(path, fingerprint string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return false, hserr.Wrap(hserr.Io, "corecontext: read meta.json", err).WithPath(path)
		}
		return false, writeMeta(path, fingerprint)
	}

	var m meta
	if err := json.Unmarshal(data, &m); err != nil {
		return false, hserr.Wrap(hserr.Corruption, "corecontext: parse meta.json", err).WithPath(path)
	}

	if m.ModelFingerprint == fingerprint && m.SchemaVersion == store.CurrentSchemaVersion {
		return false, nil
	}
	return m.ModelFingerprint != "", writeMeta(path, fingerprint)
}

func writeMeta(path, fingerprint string) error {
	m := meta{
		SchemaVersion:    store.CurrentSchemaVersion,
		ModelFingerprint: fingerprint,
		CreatedAt:        time.Now(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return hserr.Wrap(hserr.Io, "corecontext: encode meta.json", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return hserr.Wrap(hserr.Io, "corecontext: write meta.json", err).WithPath(path)
	}
	return nil
}

// Close saves the vector store snapshot and closes every opened
// backend, joining any close errors.
func (c *CoreContext) Close() error {
	var errs []error
	if err := c.Vector.Save(c.vectorsPath); err != nil {
		errs = append(errs, err)
	}
	if err := c.Vector.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.DB.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Clear implements the clear RPC operation: it discards index.db and
// vectors.bin entirely and reopens fresh, empty backends in place, so
// a caller can reindex from scratch. The embedder is left open — only
// the content indices are wiped.
func (c *CoreContext) Clear(ctx context.Context) error {
	dataDir := c.dataDir

	if err := c.Vector.Close(); err != nil {
		return err
	}
	if err := c.DB.Close(); err != nil {
		return err
	}

	dbPath := filepath.Join(dataDir, indexFileName)
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return hserr.Wrap(hserr.Io, "corecontext: remove index.db", err).WithPath(dbPath)
	}
	if err := os.Remove(c.vectorsPath); err != nil && !os.IsNotExist(err) {
		return hserr.Wrap(hserr.Io, "corecontext: remove vectors.bin", err).WithPath(c.vectorsPath)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	c.DB = db
	c.Text = store.NewTextIndex(db)
	c.Symbol = store.NewSymbolIndex(db)
	c.Metadata = store.NewMetadataStore(db)
	c.Vector = vectorstore.New(c.Embedder.Dimensions())

	ix, err := indexer.New(c.Text, c.Vector, c.Symbol, c.Metadata, c.Embedder, indexer.Options{
		RootDir:          c.RootDir,
		ProjectID:        c.ProjectID,
		DataDir:          dataDir,
		MaxFileSizeBytes: c.Config.MaxFileSizeBytes,
		MaxChunkLines:    c.Config.MaxChunkLines,
		Workers:          c.Config.Workers,
	})
	if err != nil {
		return err
	}
	c.Indexer = ix

	orch := orchestrator.New(c.Text, c.Vector, c.Symbol, c.Metadata, c.Embedder, c.RootDir)
	orch.Weights = c.Orchestrator.Weights
	orch.PerBackendTimeout = c.Orchestrator.PerBackendTimeout
	c.Orchestrator = orch

	_ = ctx
	return nil
}

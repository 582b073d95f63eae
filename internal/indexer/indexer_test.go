package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsearch/hsearch/internal/store"
	"github.com/hsearch/hsearch/internal/tokenize"
	"github.com/hsearch/hsearch/internal/vectorstore"
)

func newTestIndexer(t *testing.T, rootDir string) (*Indexer, *store.DB, *store.TextIndex, *store.SymbolIndex, *store.MetadataStore) {
	t.Helper()
	db, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	text := store.NewTextIndex(db)
	symbolIdx := store.NewSymbolIndex(db)
	meta := store.NewMetadataStore(db)
	vec := vectorstore.New(8)

	ix, err := New(text, vec, symbolIdx, meta, nil, Options{
		RootDir:          rootDir,
		ProjectID:        "p1",
		DataDir:          filepath.Join(rootDir, ".hsearch"),
		MaxFileSizeBytes: 1024 * 1024,
		MaxChunkLines:    150,
		Workers:          2,
	})
	require.NoError(t, err)
	return ix, db, text, symbolIdx, meta
}

func TestRunIndexesNewFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc run() {\n\tprintln(\"hi\")\n}\n"), 0o644))

	ix, _, text, _, meta := newTestIndexer(t, dir)
	ctx := context.Background()

	res, err := ix.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesIndexed)
	assert.Greater(t, res.ChunksIndexed, 0)

	terms := tokenize.TokenizeQuery("run", tokenize.DefaultStopWords)
	hits, err := text.Query(ctx, terms, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)

	files, err := meta.GetFilesForReconciliation(ctx, "p1")
	require.NoError(t, err)
	assert.Contains(t, files, "main.go")
}

func TestRunSkipsUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc run() {}\n"), 0o644))

	ix, _, _, _, _ := newTestIndexer(t, dir)
	ctx := context.Background()

	_, err := ix.Run(ctx)
	require.NoError(t, err)

	res2, err := ix.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res2.FilesSkipped)
	assert.Equal(t, 0, res2.FilesIndexed)
}

func TestRunReindexesChangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc run() {}\n"), 0o644))

	ix, _, text, _, _ := newTestIndexer(t, dir)
	ctx := context.Background()

	_, err := ix.Run(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc authenticate() {}\n"), 0o644))

	res2, err := ix.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res2.FilesIndexed)

	terms := tokenize.TokenizeQuery("authenticate", tokenize.DefaultStopWords)
	hits, err := text.Query(ctx, terms, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)

	staleTerms := tokenize.TokenizeQuery("run", tokenize.DefaultStopWords)
	staleHits, err := text.Query(ctx, staleTerms, 10)
	require.NoError(t, err)
	assert.Empty(t, staleHits, "stale terms from the old file content must not still match")
}

func TestRunRemovesDeletedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc run() {}\n"), 0o644))

	ix, _, text, _, meta := newTestIndexer(t, dir)
	ctx := context.Background()

	_, err := ix.Run(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	res2, err := ix.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res2.FilesRemoved)

	files, err := meta.GetFilesForReconciliation(ctx, "p1")
	require.NoError(t, err)
	assert.NotContains(t, files, "main.go")

	terms := tokenize.TokenizeQuery("run", tokenize.DefaultStopWords)
	hits, err := text.Query(ctx, terms, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRunExtractsSymbols(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc Authenticate() bool {\n\treturn true\n}\n"), 0o644))

	ix, _, _, symbolIdx, _ := newTestIndexer(t, dir)
	ctx := context.Background()

	_, err := ix.Run(ctx)
	require.NoError(t, err)

	entries, err := symbolIdx.Query(ctx, "Authenticate", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestRunSkipsEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	ix, _, _, _, _ := newTestIndexer(t, dir)

	res, err := ix.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.FilesIndexed)
}

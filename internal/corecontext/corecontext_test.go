package corecontext

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsearch/hsearch/internal/config"
)

func testConfig(dataDir string) config.Config {
	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.Embedder.AllowDeterministicFallback = true
	return cfg
}

func TestOpenWiresAllBackends(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc run() {}\n"), 0o644))

	cc, err := Open(context.Background(), root, testConfig(filepath.Join(root, ".hsearch")))
	require.NoError(t, err)
	defer cc.Close()

	assert.NotNil(t, cc.Text)
	assert.NotNil(t, cc.Symbol)
	assert.NotNil(t, cc.Metadata)
	assert.NotNil(t, cc.Vector)
	assert.NotNil(t, cc.Embedder)
	assert.NotNil(t, cc.Orchestrator)
	assert.NotNil(t, cc.Indexer)
	assert.NotEmpty(t, cc.ProjectID)

	_, err = os.Stat(filepath.Join(root, ".hsearch", "meta.json"))
	assert.NoError(t, err)
}

func TestOpenIndexAndSearchRoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc authenticate() bool {\n\treturn true\n}\n"), 0o644))

	cc, err := Open(context.Background(), root, testConfig(filepath.Join(root, ".hsearch")))
	require.NoError(t, err)
	defer cc.Close()

	ctx := context.Background()
	res, err := cc.Indexer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesIndexed)

	resp, err := cc.Orchestrator.Search(ctx, "authenticate", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Hits)
}

func TestProjectIDStableAcrossOpens(t *testing.T) {
	root := t.TempDir()

	id1 := ProjectID(root)
	id2 := ProjectID(root)
	assert.Equal(t, id1, id2)
}

func TestReconcileMetaDetectsFingerprintChange(t *testing.T) {
	dir := t.TempDir()
	metaPath := filepath.Join(dir, "meta.json")

	stale, err := reconcileMeta(metaPath, "model-a:768")
	require.NoError(t, err)
	assert.False(t, stale, "no prior meta.json means nothing is stale yet")

	stale, err = reconcileMeta(metaPath, "model-b:768")
	require.NoError(t, err)
	assert.True(t, stale, "a changed fingerprint against an existing meta.json must be reported stale")

	stale, err = reconcileMeta(metaPath, "model-b:768")
	require.NoError(t, err)
	assert.False(t, stale, "an unchanged fingerprint is not stale")
}

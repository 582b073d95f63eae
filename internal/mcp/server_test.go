package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsearch/hsearch/internal/config"
	"github.com/hsearch/hsearch/internal/daemon"
)

func testConfig(dataDir string) config.Config {
	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.Embedder.AllowDeterministicFallback = true
	return cfg
}

func TestHandleIndexSearchStatusRoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"),
		[]byte("package main\n\nfunc authenticate() bool {\n\treturn true\n}\n"), 0o644))

	svc := daemon.NewService(testConfig(filepath.Join(root, ".hsearch")), root)
	defer svc.Close()
	s := NewServer(svc, nil)

	ctx := context.Background()

	_, idxOut, err := s.handleIndex(ctx, nil, IndexInput{Path: root})
	require.NoError(t, err)
	assert.Equal(t, 1, idxOut.FilesIndexed)

	_, searchOut, err := s.handleSearch(ctx, nil, SearchInput{Query: "authenticate"})
	require.NoError(t, err)
	assert.NotEmpty(t, searchOut.Results)

	_, statusOut, err := s.handleStatus(ctx, nil, StatusInput{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, statusOut.IndexedFiles, 1)
}

func TestHandleIndexRejectsEmptyPath(t *testing.T) {
	svc := daemon.NewService(testConfig(t.TempDir()), t.TempDir())
	defer svc.Close()
	s := NewServer(svc, nil)

	_, _, err := s.handleIndex(context.Background(), nil, IndexInput{})
	require.Error(t, err)
}

func TestHandleSearchRejectsEmptyQuery(t *testing.T) {
	svc := daemon.NewService(testConfig(t.TempDir()), t.TempDir())
	defer svc.Close()
	s := NewServer(svc, nil)

	_, _, err := s.handleSearch(context.Background(), nil, SearchInput{})
	require.Error(t, err)
}

func TestHandleClearResetsIndex(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc run() {}\n"), 0o644))

	svc := daemon.NewService(testConfig(filepath.Join(root, ".hsearch")), root)
	defer svc.Close()
	s := NewServer(svc, nil)

	ctx := context.Background()
	_, _, err := s.handleIndex(ctx, nil, IndexInput{Path: root})
	require.NoError(t, err)

	_, clearOut, err := s.handleClear(ctx, nil, ClearInput{})
	require.NoError(t, err)
	assert.True(t, clearOut.OK)

	_, statusOut, err := s.handleStatus(ctx, nil, StatusInput{})
	require.NoError(t, err)
	assert.Equal(t, 0, statusOut.IndexedFiles)
}

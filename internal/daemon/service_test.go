package daemon

import (
	"bytes"
	"context"
	"encoding/json"
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

func TestServiceIndexSearchStatusRoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"),
		[]byte("package main\n\nfunc authenticate() bool {\n\treturn true\n}\n"), 0o644))

	svc := NewService(testConfig(filepath.Join(root, ".hsearch")), root)
	defer svc.Close()

	ctx := context.Background()

	idxResult, err := svc.Index(ctx, IndexParams{Path: root})
	require.NoError(t, err)
	assert.Equal(t, 1, idxResult.FilesIndexed)

	searchResp, err := svc.Search(ctx, SearchParams{Query: "authenticate"})
	require.NoError(t, err)
	assert.NotEmpty(t, searchResp.Results)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, status.IndexedFiles, 1)
}

func TestServiceClearResetsIndex(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc run() {}\n"), 0o644))

	svc := NewService(testConfig(filepath.Join(root, ".hsearch")), root)
	defer svc.Close()

	ctx := context.Background()
	_, err := svc.Index(ctx, IndexParams{Path: root})
	require.NoError(t, err)

	clearResult, err := svc.Clear(ctx)
	require.NoError(t, err)
	assert.True(t, clearResult.OK)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.IndexedFiles)
}

func TestRunStdioServesOneRequest(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc run() {}\n"), 0o644))

	reqLine := `{"jsonrpc":"2.0","method":"index","id":"1","params":{"path":"` + root + `"}}` + "\n"
	in := bytes.NewBufferString(reqLine)
	var out bytes.Buffer

	require.NoError(t, RunStdio(context.Background(), testConfig(filepath.Join(root, ".hsearch")), root, in, &out))

	var resp Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	assert.Nil(t, resp.Error)
}

func TestServiceSearchUsesDefaultRootWhenProjectPathOmitted(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc run() {}\n"), 0o644))

	svc := NewService(testConfig(filepath.Join(root, ".hsearch")), root)
	defer svc.Close()

	ctx := context.Background()
	_, err := svc.Index(ctx, IndexParams{Path: root})
	require.NoError(t, err)

	_, err = svc.Search(ctx, SearchParams{Query: "run"})
	require.NoError(t, err)
}

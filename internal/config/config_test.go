package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsearch/hsearch/internal/hserr"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hsearch.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTemp(t, `
data_dir = "/tmp/data"
max_chunk_lines = 200
workers = 8

[embedder]
model_path = "/models/x.gguf"
allow_deterministic_fallback = true

[search]
limit_default = 25

[fusion.weights]
text = 0.3
vector = 0.4
symbol = 0.3

[logging]
level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/data", cfg.DataDir)
	assert.Equal(t, 200, cfg.MaxChunkLines)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.Embedder.AllowDeterministicFallback)
	assert.Equal(t, 25, cfg.Search.LimitDefault)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeTemp(t, `
data_dir = "/tmp/data"
typo_key = "oops"
`)

	_, err := Load(path)
	require.Error(t, err)
	kind, ok := hserr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, hserr.Config, kind)
	assert.Contains(t, err.Error(), "typo_key")
}

func TestLoadRejectsUnknownNestedKey(t *testing.T) {
	path := writeTemp(t, `
[embedder]
model_path = "/x"
bogus_field = 1
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedder.bogus_field")
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	path := writeTemp(t, `
[logging]
level = "verbose"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestFindProjectRootFindsConfigFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte(""), 0o644))

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestFindProjectRootFindsGitDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))

	found, err := FindProjectRoot(root)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestFindProjectRootFallsBackToStartDir(t *testing.T) {
	root := t.TempDir()
	found, err := FindProjectRoot(root)
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(found)
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, want, resolved)
}

func TestLoadFromRootReturnsDefaultWhenMissing(t *testing.T) {
	root := t.TempDir()
	cfg, err := LoadFromRoot(root)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromRootLoadsPresentFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte(`workers = 8`), 0o644))

	cfg, err := LoadFromRoot(root)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
}

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelWarn, &buf)

	logger.Info("should be filtered")
	assert.Empty(t, buf.String())

	logger.Warn("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestDegradedLogsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelDebug, &buf)

	Degraded(context.Background(), logger, "orchestrator", "main.go", "timeout", errors.New("deadline exceeded"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "orchestrator", entry["component"])
	assert.Equal(t, "main.go", entry["path"])
	assert.Equal(t, "timeout", entry["kind"])
	assert.Equal(t, "deadline exceeded", entry["error"])
}

func TestRotatingWriterRotatesOnSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	w, err := NewRotatingWriter(path, 0, 2) // maxSize 0 forces rotation on every write
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	_, statErr := os.Stat(path + ".1")
	assert.NoError(t, statErr)
}

func TestDefaultLogPathUnderDefaultLogDir(t *testing.T) {
	assert.True(t, filepath.Dir(DefaultLogPath()) == DefaultLogDir())
}

package expand

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsearch/hsearch/internal/hashutil"
	"github.com/hsearch/hsearch/internal/store"
)

func newTestFixture(t *testing.T) (*store.MetadataStore, *store.File) {
	t.Helper()
	db, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := store.NewMetadataStore(db)
	ctx := context.Background()
	now := time.Now()

	content := []byte("package main\n")
	file := &store.File{
		ID: "f1", ProjectID: "p1", Path: "main.go",
		ContentHash: FormatContentHash(hashutil.ContentHash(content)), Language: "go", IndexedAt: now,
	}
	require.NoError(t, m.SaveFiles(ctx, []*store.File{file}))

	chunks := []*store.Chunk{
		{ID: "c1", FileID: "f1", FilePath: "main.go", Content: "import \"fmt\"", StartLine: 1, EndLine: 5, CreatedAt: now, UpdatedAt: now},
		{ID: "c2", FileID: "f1", FilePath: "main.go", Content: "func main() {}", StartLine: 6, EndLine: 15, CreatedAt: now, UpdatedAt: now},
		{ID: "c3", FileID: "f1", FilePath: "main.go", Content: "func helper() {}", StartLine: 16, EndLine: 20, CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, m.SaveChunks(ctx, chunks))

	return m, file
}

func TestExpandReturnsAboveTargetBelow(t *testing.T) {
	m, file := newTestFixture(t)
	e := New(m)

	w, err := e.Expand(context.Background(), file, 6, 15, nil)
	require.NoError(t, err)

	require.NotNil(t, w.Above)
	require.NotNil(t, w.Target)
	require.NotNil(t, w.Below)
	assert.Equal(t, "c1", w.Above.ID)
	assert.Equal(t, "c2", w.Target.ID)
	assert.Equal(t, "c3", w.Below.ID)
	assert.False(t, w.Stale)
}

func TestExpandFirstChunkHasNoAbove(t *testing.T) {
	m, file := newTestFixture(t)
	e := New(m)

	w, err := e.Expand(context.Background(), file, 1, 5, nil)
	require.NoError(t, err)

	assert.Nil(t, w.Above)
	assert.Equal(t, "c1", w.Target.ID)
	require.NotNil(t, w.Below)
	assert.Equal(t, "c2", w.Below.ID)
}

func TestExpandLastChunkHasNoBelow(t *testing.T) {
	m, file := newTestFixture(t)
	e := New(m)

	w, err := e.Expand(context.Background(), file, 16, 20, nil)
	require.NoError(t, err)

	require.NotNil(t, w.Above)
	assert.Equal(t, "c2", w.Above.ID)
	assert.Equal(t, "c3", w.Target.ID)
	assert.Nil(t, w.Below)
}

func TestExpandFlagsStaleOnContentHashMismatch(t *testing.T) {
	m, file := newTestFixture(t)
	e := New(m)

	changed := []byte("package main\n\n\n\n\n\nfunc main() {\n\tprintln(\"changed\")\n}\n")
	w, err := e.Expand(context.Background(), file, 6, 15, changed)
	require.NoError(t, err)

	assert.True(t, w.Stale)
	assert.Contains(t, w.Target.Content, "changed")
}

func TestExpandNotStaleWhenContentUnchanged(t *testing.T) {
	m, file := newTestFixture(t)
	e := New(m)

	w, err := e.Expand(context.Background(), file, 6, 15, []byte("package main\n"))
	require.NoError(t, err)

	assert.False(t, w.Stale)
	assert.Equal(t, "func main() {}", w.Target.Content)
}

func TestExpandErrorsWhenFileHasNoChunks(t *testing.T) {
	db, err := store.Open("")
	require.NoError(t, err)
	defer db.Close()
	m := store.NewMetadataStore(db)
	file := &store.File{ID: "empty", Path: "empty.go"}

	e := New(m)
	_, err = e.Expand(context.Background(), file, 1, 5, nil)
	assert.Error(t, err)
}

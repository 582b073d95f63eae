package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHashDeterministic(t *testing.T) {
	a := ContentHash([]byte("package main\n"))
	b := ContentHash([]byte("package main\n"))
	c := ContentHash([]byte("package other\n"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestChunkIDDistinguishesRanges(t *testing.T) {
	h := ContentHash([]byte("same content"))

	id1 := ChunkID("a.go", 1, 10, h)
	id2 := ChunkID("a.go", 1, 20, h)
	id3 := ChunkID("b.go", 1, 10, h)
	id1Again := ChunkID("a.go", 1, 10, h)

	assert.NotEqual(t, id1, id2)
	assert.NotEqual(t, id1, id3)
	assert.Equal(t, id1, id1Again)
	assert.Len(t, id1, 16)
}

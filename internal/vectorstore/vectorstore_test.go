package vectorstore

import (
	"context"
	"path/filepath"
	"testing"
)

func unit(dim, i int) []float32 {
	v := make([]float32, dim)
	v[i] = 1
	return v
}

func TestUpsertAndSearchRanksByCosine(t *testing.T) {
	s := New(4)
	ctx := context.Background()
	err := s.Upsert(ctx, []Row{
		{ChunkID: "a", Path: "f.go", Vector: unit(4, 0)},
		{ChunkID: "b", Path: "f.go", Vector: []float32{0.9, 0.1, 0, 0}},
		{ChunkID: "c", Path: "g.go", Vector: unit(4, 2)},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := s.Search(ctx, unit(4, 0), 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected results")
	}
	if results[0].ChunkID != "a" {
		t.Fatalf("expected exact match 'a' ranked first, got %s", results[0].ChunkID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not sorted descending by score")
		}
	}
	for _, r := range results {
		if r.Score < -1 || r.Score > 1 {
			t.Fatalf("score %v out of [-1,1]", r.Score)
		}
	}
}

func TestUpsertReplacesExistingChunkID(t *testing.T) {
	s := New(4)
	ctx := context.Background()
	_ = s.Upsert(ctx, []Row{{ChunkID: "a", Path: "f.go", Vector: unit(4, 0)}})
	_ = s.Upsert(ctx, []Row{{ChunkID: "a", Path: "f.go", Vector: unit(4, 1)}})

	if s.Count() != 1 {
		t.Fatalf("expected 1 live vector after replace, got %d", s.Count())
	}
	results, err := s.Search(ctx, unit(4, 1), 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "a" {
		t.Fatalf("expected replaced vector to be searchable, got %+v", results)
	}
}

func TestDeleteByPathRemovesAllItsChunks(t *testing.T) {
	s := New(4)
	ctx := context.Background()
	_ = s.Upsert(ctx, []Row{
		{ChunkID: "a", Path: "f.go", Vector: unit(4, 0)},
		{ChunkID: "b", Path: "f.go", Vector: unit(4, 1)},
		{ChunkID: "c", Path: "g.go", Vector: unit(4, 2)},
	})
	if err := s.DeleteByPath(ctx, "f.go"); err != nil {
		t.Fatalf("DeleteByPath: %v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("expected 1 live vector after deleting f.go, got %d", s.Count())
	}
	results, _ := s.Search(ctx, unit(4, 2), 10)
	if len(results) != 1 || results[0].ChunkID != "c" {
		t.Fatalf("expected only 'c' to remain, got %+v", results)
	}
}

func TestDimensionMismatchRejected(t *testing.T) {
	s := New(4)
	ctx := context.Background()
	err := s.Upsert(ctx, []Row{{ChunkID: "a", Path: "f.go", Vector: []float32{1, 2, 3}}})
	if err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	s := New(4)
	ctx := context.Background()
	_ = s.Upsert(ctx, []Row{
		{ChunkID: "a", Path: "f.go", Vector: unit(4, 0)},
		{ChunkID: "b", Path: "g.go", Vector: unit(4, 1)},
	})
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := New(4)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Count() != 2 {
		t.Fatalf("expected 2 vectors after load, got %d", loaded.Count())
	}
	results, err := loaded.Search(ctx, unit(4, 0), 1)
	if err != nil {
		t.Fatalf("Search after load: %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "a" {
		t.Fatalf("expected 'a' after load, got %+v", results)
	}

	dim, err := ReadDimensions(path)
	if err != nil {
		t.Fatalf("ReadDimensions: %v", err)
	}
	if dim != 4 {
		t.Fatalf("expected dim 4, got %d", dim)
	}
}

func TestReadDimensionsMissingFileReturnsZero(t *testing.T) {
	dim, err := ReadDimensions(filepath.Join(t.TempDir(), "absent.hnsw"))
	if err != nil {
		t.Fatalf("ReadDimensions: %v", err)
	}
	if dim != 0 {
		t.Fatalf("expected 0 for missing metadata, got %d", dim)
	}
}

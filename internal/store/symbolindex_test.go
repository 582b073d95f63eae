package store

import (
	"context"
	"testing"
)

func TestSymbolIndexExactMatchBeforeSubstring(t *testing.T) {
	db := openTestDB(t)
	idx := NewSymbolIndex(db)
	ctx := context.Background()

	_ = idx.AddChunkSymbols(ctx, "c1", "a.go", []SymbolEntry{
		{ChunkID: "c1", Path: "a.go", Name: "AuthenticateUser", Kind: SymbolTypeFunction},
	})
	_ = idx.AddChunkSymbols(ctx, "c2", "b.go", []SymbolEntry{
		{ChunkID: "c2", Path: "b.go", Name: "Authenticate", Kind: SymbolTypeFunction},
	})

	results, err := idx.Query(ctx, "Authenticate", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	if results[0].Name != "Authenticate" {
		t.Fatalf("expected exact match first, got %s", results[0].Name)
	}
}

func TestSymbolIndexOrdersByKindPriorityThenNameLengthThenPath(t *testing.T) {
	db := openTestDB(t)
	idx := NewSymbolIndex(db)
	ctx := context.Background()

	_ = idx.AddChunkSymbols(ctx, "c1", "z.go", []SymbolEntry{{ChunkID: "c1", Path: "z.go", Name: "widgetType", Kind: SymbolTypeType}})
	_ = idx.AddChunkSymbols(ctx, "c2", "a.go", []SymbolEntry{{ChunkID: "c2", Path: "a.go", Name: "widgetFunc", Kind: SymbolTypeFunction}})
	_ = idx.AddChunkSymbols(ctx, "c3", "m.go", []SymbolEntry{{ChunkID: "c3", Path: "m.go", Name: "widgetMethod", Kind: SymbolTypeMethod}})

	results, err := idx.Query(ctx, "widget", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(results))
	}
	if results[0].Kind != SymbolTypeFunction {
		t.Fatalf("expected function ranked first, got %s", results[0].Kind)
	}
	if results[1].Kind != SymbolTypeMethod {
		t.Fatalf("expected method ranked second, got %s", results[1].Kind)
	}
	if results[2].Kind != SymbolTypeType {
		t.Fatalf("expected type ranked last, got %s", results[2].Kind)
	}
}

func TestSymbolIndexCaseInsensitiveQuery(t *testing.T) {
	db := openTestDB(t)
	idx := NewSymbolIndex(db)
	ctx := context.Background()
	_ = idx.AddChunkSymbols(ctx, "c1", "a.go", []SymbolEntry{{ChunkID: "c1", Path: "a.go", Name: "ParseConfig", Kind: SymbolTypeFunction}})

	results, err := idx.Query(ctx, "parseconfig", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected case-insensitive match, got %d", len(results))
	}
}

func TestSymbolIndexDeleteByPathRemovesSymbols(t *testing.T) {
	db := openTestDB(t)
	idx := NewSymbolIndex(db)
	ctx := context.Background()
	_ = idx.AddChunkSymbols(ctx, "c1", "a.go", []SymbolEntry{{ChunkID: "c1", Path: "a.go", Name: "Foo", Kind: SymbolTypeFunction}})

	if err := idx.DeleteByPath(ctx, "a.go"); err != nil {
		t.Fatalf("DeleteByPath: %v", err)
	}
	results, err := idx.Query(ctx, "Foo", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no symbols after delete, got %+v", results)
	}
}

func TestSymbolIndexReplacesSymbolsOnReAdd(t *testing.T) {
	db := openTestDB(t)
	idx := NewSymbolIndex(db)
	ctx := context.Background()
	_ = idx.AddChunkSymbols(ctx, "c1", "a.go", []SymbolEntry{{ChunkID: "c1", Path: "a.go", Name: "Old", Kind: SymbolTypeFunction}})
	_ = idx.AddChunkSymbols(ctx, "c1", "a.go", []SymbolEntry{{ChunkID: "c1", Path: "a.go", Name: "New", Kind: SymbolTypeFunction}})

	if results, _ := idx.Query(ctx, "Old", 10); len(results) != 0 {
		t.Fatalf("expected 'Old' symbol gone after replace, got %+v", results)
	}
	if results, _ := idx.Query(ctx, "New", 10); len(results) != 1 {
		t.Fatalf("expected 'New' symbol present, got %+v", results)
	}
}

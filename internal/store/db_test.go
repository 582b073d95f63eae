package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenInMemoryCreatesSchema(t *testing.T) {
	db, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	var version int
	if err := db.conn.QueryRow("SELECT version FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("expected schema_version row: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Fatalf("expected version %d, got %d", CurrentSchemaVersion, version)
	}
}

func TestOpenClearsCorruptedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	if err := os.WriteFile(path, []byte("not a valid sqlite file at all, garbage bytes here"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	db, err := Open(path)
	if err != nil {
		t.Fatalf("expected Open to recover from corruption, got: %v", err)
	}
	defer db.Close()

	var version int
	if err := db.conn.QueryRow("SELECT version FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("expected fresh schema after recovery: %v", err)
	}
}

func TestOpenPersistsAcrossReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	m := NewMetadataStore(db)
	if err := m.SetState(context.Background(), "k", "v"); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	m2 := NewMetadataStore(db2)
	v, err := m2.GetState(context.Background(), "k")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if v != "v" {
		t.Fatalf("expected persisted state across reopen, got %q", v)
	}
}

package embed

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenModelFileRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.hsqm")
	if err := os.WriteFile(path, make([]byte, headerFixedSize+4), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := openModelFile(path); err == nil {
		t.Fatalf("expected ModelFormat error for zeroed header")
	}
}

func TestOpenModelFileRejectsTooSmall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.hsqm")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := openModelFile(path); err == nil {
		t.Fatalf("expected error for undersized file")
	}
}

func TestOpenModelFileParsesValidVocab(t *testing.T) {
	dir := t.TempDir()
	vocab := map[string][]float32{
		"alpha": makeUnitVec(256, 0),
		"beta":  makeUnitVec(256, 1),
	}
	path := buildTestModel(t, dir, 256, vocab)

	mf, err := openModelFile(path)
	if err != nil {
		t.Fatalf("openModelFile: %v", err)
	}
	defer mf.close()

	if mf.hdr.Dim != 256 {
		t.Fatalf("dim: want 256 got %d", mf.hdr.Dim)
	}
	if len(mf.vocab) != 2 {
		t.Fatalf("vocab size: want 2 got %d", len(mf.vocab))
	}
	if _, ok := mf.rowForHash(testTokenHash("alpha")); !ok {
		t.Fatalf("expected alpha's hash to resolve to a row")
	}
	if _, ok := mf.rowForHash(testTokenHash("nonexistent-token-xyz")); ok {
		t.Fatalf("unrelated hash should not resolve")
	}
}

func makeUnitVec(dim, index int) []float32 {
	v := make([]float32, dim)
	v[index] = 1
	return v
}

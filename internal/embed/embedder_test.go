package embed

import (
	"context"
	"testing"

	"github.com/hsearch/hsearch/internal/tokenize"
)

func TestModelEmbedderEmbedIsDeterministicAndUnitLength(t *testing.T) {
	dir := t.TempDir()
	vocab := map[string][]float32{
		"alpha": makeUnitVec(256, 0),
		"beta":  makeUnitVec(256, 1),
	}
	path := buildTestModel(t, dir, 256, vocab)

	e := NewModelEmbedder(path)
	if err := e.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	if e.State() != StateReady {
		t.Fatalf("expected Ready, got %s", e.State())
	}

	text := "alpha"
	toks := tokenize.Tokenize(text, tokenize.DefaultStopWords)
	if len(toks) == 0 || toks[0] != "alpha" {
		t.Skipf("tokenizer normalized %q to %v; adjust fixture", text, toks)
	}

	v1, err := e.Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	v2, err := e.Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("Embed (2nd): %v", err)
	}
	if len(v1) != 256 {
		t.Fatalf("dim: want 256 got %d", len(v1))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("Embed not deterministic at index %d: %v vs %v", i, v1[i], v2[i])
		}
	}
	norm := l2Norm(v1)
	if norm < 0.99 || norm > 1.01 {
		t.Fatalf("expected unit-length vector, got norm %v", norm)
	}
}

func TestModelEmbedderRejectsCallsWhenNotReady(t *testing.T) {
	e := NewModelEmbedder("/nonexistent/path.hsqm")
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error embedding before Open")
	}
}

func TestModelEmbedderOpenFailureTransitionsToFailed(t *testing.T) {
	dir := t.TempDir()
	badPath := dir + "/missing.hsqm"
	e := NewModelEmbedder(badPath)
	if err := e.Open(); err == nil {
		t.Fatalf("expected Open to fail for missing file")
	}
	if e.State() != StateFailed {
		t.Fatalf("expected Failed state, got %s", e.State())
	}
}

func TestModelEmbedderResetReturnsToUninitialized(t *testing.T) {
	e := NewModelEmbedder("/nonexistent/path.hsqm")
	_ = e.Open()
	if e.State() != StateFailed {
		t.Fatalf("precondition: expected Failed")
	}
	e.Reset()
	if e.State() != StateUninitialized {
		t.Fatalf("expected Uninitialized after Reset, got %s", e.State())
	}
}

func TestModelEmbedderEmptyContentFails(t *testing.T) {
	dir := t.TempDir()
	vocab := map[string][]float32{"alpha": makeUnitVec(256, 0)}
	path := buildTestModel(t, dir, 256, vocab)

	e := NewModelEmbedder(path)
	if err := e.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	// A query consisting entirely of out-of-vocabulary tokens
	// accumulates nothing and must fail rather than return a zero
	// vector silently.
	if _, err := e.Embed(context.Background(), "zzzznotinvocabzzz qqqqqtotallyunknownqqqq"); err == nil {
		t.Fatalf("expected empty-content error for fully out-of-vocabulary text")
	}
}

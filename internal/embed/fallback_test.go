package embed

import (
	"context"
	"testing"
)

func TestFallbackEmbedderDeterministicPerInput(t *testing.T) {
	e := NewFallbackEmbedder(128)
	v1, err := e.Embed(context.Background(), "func Authenticate(user string) bool")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	v2, _ := e.Embed(context.Background(), "func Authenticate(user string) bool")
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("fallback embedder not deterministic at %d", i)
		}
	}
}

func TestFallbackEmbedderDistinctInputsDiffer(t *testing.T) {
	e := NewFallbackEmbedder(128)
	v1, _ := e.Embed(context.Background(), "alpha beta gamma")
	v2, _ := e.Embed(context.Background(), "totally different content here")
	same := true
	for i := range v1 {
		if v1[i] != v2[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("expected distinct inputs to produce distinct vectors")
	}
}

func TestFallbackEmbedderEmptyTextReturnsZeroVector(t *testing.T) {
	e := NewFallbackEmbedder(64)
	v, err := e.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector for blank input")
		}
	}
}

func TestOpenSelectsFallbackWhenModelMissingAndAllowed(t *testing.T) {
	e, err := Open(Options{ModelPath: "/does/not/exist.hsqm", AllowDeterministicFallback: true, Dimensions: 64})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if e.ModelName() != "deterministic-fallback" {
		t.Fatalf("expected fallback embedder selected")
	}
}

func TestOpenRejectsMissingModelWithoutFallback(t *testing.T) {
	if _, err := Open(Options{ModelPath: "/does/not/exist.hsqm", AllowDeterministicFallback: false}); err == nil {
		t.Fatalf("expected Config error when model missing and fallback disabled")
	}
}

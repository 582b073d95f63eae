package embed

import "testing"

func TestStateBoxTransitionsAndReset(t *testing.T) {
	var b stateBox
	if b.get() != StateUninitialized {
		t.Fatalf("zero value should be Uninitialized")
	}
	b.set(StateOpening)
	if b.get() != StateOpening {
		t.Fatalf("expected Opening")
	}
	b.set(StateReady)
	if b.get() != StateReady {
		t.Fatalf("expected Ready")
	}
	b.fail("boom")
	if b.get() != StateFailed {
		t.Fatalf("expected Failed")
	}
	if b.failureReason() != "boom" {
		t.Fatalf("expected failure reason recorded")
	}
	b.reset()
	if b.get() != StateUninitialized {
		t.Fatalf("expected Uninitialized after reset")
	}
	if b.failureReason() != "" {
		t.Fatalf("expected failure reason cleared after reset")
	}
}

func TestStateBoxResetIsNoOpExceptFromFailed(t *testing.T) {
	var b stateBox
	b.set(StateReady)
	b.reset()
	if b.get() != StateReady {
		t.Fatalf("reset should be a no-op from Ready, got %s", b.get())
	}
}

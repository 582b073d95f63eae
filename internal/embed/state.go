package embed

import "sync/atomic"

// State is the embedder's one-way (except for explicit reset) lifecycle:
// Uninitialized -> Opening -> Ready -> Failed(reason).
type State int32

const (
	StateUninitialized State = iota
	StateOpening
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateOpening:
		return "opening"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// stateBox holds the embedder's current state and failure reason
// behind atomic writes — state is read from many indexing worker
// goroutines concurrently with a single writer driving Open/Reset.
type stateBox struct {
	v      atomic.Int32
	reason atomic.Value // string
}

func (b *stateBox) get() State {
	return State(b.v.Load())
}

func (b *stateBox) failureReason() string {
	if v := b.reason.Load(); v != nil {
		return v.(string)
	}
	return ""
}

func (b *stateBox) set(s State) {
	b.v.Store(int32(s))
}

func (b *stateBox) fail(reason string) {
	b.reason.Store(reason)
	b.v.Store(int32(StateFailed))
}

// reset transitions Failed back to Uninitialized explicitly; it is a
// no-op from any other state.
func (b *stateBox) reset() {
	if State(b.v.Load()) == StateFailed {
		b.reason.Store("")
		b.v.Store(int32(StateUninitialized))
	}
}

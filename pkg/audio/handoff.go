package audio

import (
	"sync"
	"sync/atomic"
)

// Handoff is the bounded channel between the audio callback goroutine and the
// control loop. Offer never blocks: when the queue is full the OLDEST queued
// frame is evicted to make room, so a stalled consumer loses history, not
// recency, and the device callback always returns promptly. Receives observe
// the surviving frames in capture order.
type Handoff struct {
	ch      chan Frame
	dropped atomic.Uint64

	mu     sync.Mutex
	closed bool
}

// NewHandoff creates a hand-off holding at most capacity frames. capacity
// must be at least 1.
func NewHandoff(capacity int) *Handoff {
	if capacity < 1 {
		capacity = 1
	}
	return &Handoff{ch: make(chan Frame, capacity)}
}

// Offer enqueues f without blocking. When the queue is full, the oldest frame
// is evicted first and the dropped counter is incremented. Offer after Close
// discards f.
func (h *Handoff) Offer(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case h.ch <- f:
		return
	default:
	}
	// Full: evict the oldest, then retry. The consumer may have raced us and
	// drained a slot, in which case the eviction select falls through.
	select {
	case <-h.ch:
		h.dropped.Add(1)
	default:
	}
	select {
	case h.ch <- f:
	default:
		h.dropped.Add(1)
	}
}

// Frames returns the receive side. The channel closes after Close.
func (h *Handoff) Frames() <-chan Frame {
	return h.ch
}

// Dropped reports how many frames have been evicted so far.
func (h *Handoff) Dropped() uint64 {
	return h.dropped.Load()
}

// Close closes the receive channel. Safe to call more than once.
func (h *Handoff) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.ch)
}

package segment

import "github.com/auriclehq/auricle/pkg/audio"

type ringEntry struct {
	frame  audio.Frame
	speech bool
}

// Ring is a fixed-capacity FIFO over audio frames that keeps the most recent
// pre-roll window while the gate is idle. Pushing onto a full ring evicts the
// oldest frame. Ring is not goroutine-safe; it belongs to a single gate.
type Ring struct {
	entries []ringEntry
	head    int // index of the oldest entry
	size    int
	speech  int // buffered frames flagged as speech
}

// NewRing constructs a ring holding up to capacity frames. A capacity below
// one is raised to one.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{entries: make([]ringEntry, capacity)}
}

// Push appends a frame and its speech verdict, evicting the oldest frame when
// the ring is full. The capacity never grows.
func (r *Ring) Push(f audio.Frame, speech bool) {
	if r.size == len(r.entries) {
		if r.entries[r.head].speech {
			r.speech--
		}
		r.entries[r.head] = ringEntry{frame: f, speech: speech}
		r.head = (r.head + 1) % len(r.entries)
	} else {
		r.entries[(r.head+r.size)%len(r.entries)] = ringEntry{frame: f, speech: speech}
		r.size++
	}
	if speech {
		r.speech++
	}
}

// Frames returns a copy of the buffered frames, oldest first.
func (r *Ring) Frames() []audio.Frame {
	out := make([]audio.Frame, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.entries[(r.head+i)%len(r.entries)].frame)
	}
	return out
}

// Len returns the number of buffered frames.
func (r *Ring) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring) Cap() int { return len(r.entries) }

// Full reports whether the ring holds Cap() frames.
func (r *Ring) Full() bool { return r.size == len(r.entries) }

// SpeechRatio returns the fraction of speech-flagged frames measured against
// the full capacity, not the current occupancy. A ring of capacity 10 holding
// 9 speech frames yields 0.9 whether or not the tenth slot is filled.
func (r *Ring) SpeechRatio() float64 {
	return float64(r.speech) / float64(len(r.entries))
}

// Reset empties the ring.
func (r *Ring) Reset() {
	r.head, r.size, r.speech = 0, 0, 0
}

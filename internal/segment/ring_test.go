package segment_test

import (
	"testing"

	"github.com/auriclehq/auricle/internal/segment"
	"github.com/auriclehq/auricle/pkg/audio"
)

// testFrame builds a tiny frame whose payload identifies it by id.
func testFrame(id byte) audio.Frame {
	return audio.Frame{Data: []byte{id, id}, SampleRate: 16000}
}

func frameIDs(frames []audio.Frame) []byte {
	ids := make([]byte, 0, len(frames))
	for _, f := range frames {
		ids = append(ids, f.Data[0])
	}
	return ids
}

func TestRing_PushEvictsOldest(t *testing.T) {
	t.Parallel()

	r := segment.NewRing(3)
	for id := byte(1); id <= 5; id++ {
		r.Push(testFrame(id), false)
	}

	if r.Len() != 3 || !r.Full() {
		t.Fatalf("expected full ring of 3, got len %d", r.Len())
	}
	got := frameIDs(r.Frames())
	want := []byte{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frames after eviction = %v, want %v", got, want)
		}
	}
}

func TestRing_FramesOldestFirstBeforeFull(t *testing.T) {
	t.Parallel()

	r := segment.NewRing(5)
	r.Push(testFrame(7), true)
	r.Push(testFrame(8), false)

	got := frameIDs(r.Frames())
	if len(got) != 2 || got[0] != 7 || got[1] != 8 {
		t.Errorf("frames = %v, want [7 8]", got)
	}
	if r.Full() {
		t.Error("ring should not be full at 2 of 5")
	}
}

func TestRing_SpeechRatioUsesFullCapacity(t *testing.T) {
	t.Parallel()

	r := segment.NewRing(10)
	for i := 0; i < 9; i++ {
		r.Push(testFrame(byte(i)), true)
	}
	// Nine speech frames of capacity ten: 0.9 even though a slot is empty.
	if got := r.SpeechRatio(); got != 0.9 {
		t.Fatalf("ratio at 9 speech of cap 10 = %v, want 0.9", got)
	}

	r.Push(testFrame(9), false)
	if got := r.SpeechRatio(); got != 0.9 {
		t.Fatalf("ratio at 9 speech + 1 silence = %v, want 0.9", got)
	}

	// Eviction of a speech frame by a silence frame lowers the count.
	r.Push(testFrame(10), false)
	if got := r.SpeechRatio(); got != 0.8 {
		t.Fatalf("ratio after evicting one speech frame = %v, want 0.8", got)
	}
}

func TestRing_Reset(t *testing.T) {
	t.Parallel()

	r := segment.NewRing(4)
	for i := 0; i < 6; i++ {
		r.Push(testFrame(byte(i)), true)
	}
	r.Reset()

	if r.Len() != 0 || r.SpeechRatio() != 0 || len(r.Frames()) != 0 {
		t.Fatalf("reset ring not empty: len=%d ratio=%v", r.Len(), r.SpeechRatio())
	}

	r.Push(testFrame(42), true)
	if got := frameIDs(r.Frames()); len(got) != 1 || got[0] != 42 {
		t.Errorf("push after reset = %v, want [42]", got)
	}
}

func TestRing_MinimumCapacity(t *testing.T) {
	t.Parallel()

	if got := segment.NewRing(0).Cap(); got != 1 {
		t.Errorf("NewRing(0).Cap() = %d, want 1", got)
	}
}

package segment

import (
	"time"

	"github.com/auriclehq/auricle/pkg/audio"
)

// Utterance is one completed stretch of captured speech, pre-roll included.
type Utterance struct {
	// PCM is the contiguous audio of the utterance, 16-bit little-endian mono.
	PCM []byte

	// Frames is the number of frames that make up PCM.
	Frames int

	// Duration is the total audio duration.
	Duration time.Duration

	// SampleRate is the sampling rate of PCM in Hz.
	SampleRate int

	// ForcedEnd is true when the capture was cut off at the maximum utterance
	// length instead of ending on silence.
	ForcedEnd bool
}

// Recorder accumulates the frames of the utterance currently being captured.
// It is not goroutine-safe; it belongs to a single gate.
type Recorder struct {
	minFrames  int
	frameDur   time.Duration
	pcm        []byte
	frames     int
	sampleRate int
}

// NewRecorder constructs a recorder that discards utterances shorter than
// minFrames on Finalize. frameDuration is the nominal duration of one frame.
func NewRecorder(minFrames int, frameDuration time.Duration) *Recorder {
	return &Recorder{minFrames: minFrames, frameDur: frameDuration}
}

// Append adds a frame to the utterance in arrival order.
func (r *Recorder) Append(f audio.Frame) {
	r.pcm = append(r.pcm, f.Data...)
	r.frames++
	if r.sampleRate == 0 {
		r.sampleRate = f.SampleRate
	}
}

// Len returns the number of frames recorded so far.
func (r *Recorder) Len() int { return r.frames }

// Duration returns the recorded audio duration so far.
func (r *Recorder) Duration() time.Duration {
	return time.Duration(r.frames) * r.frameDur
}

// Finalize returns the completed utterance and resets the recorder. It
// returns nil, without error, when fewer than the minimum number of frames
// were recorded; too-short captures are dropped rather than reported.
func (r *Recorder) Finalize(forced bool) *Utterance {
	u := (*Utterance)(nil)
	if r.frames >= r.minFrames && r.frames > 0 {
		u = &Utterance{
			PCM:        r.pcm,
			Frames:     r.frames,
			Duration:   r.Duration(),
			SampleRate: r.sampleRate,
			ForcedEnd:  forced,
		}
	}
	r.pcm = nil
	r.frames = 0
	r.sampleRate = 0
	return u
}

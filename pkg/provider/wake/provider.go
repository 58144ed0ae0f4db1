// Package wake defines the Detector interface for wake word backends.
//
// A wake detector consumes fixed-length mono PCM frames and reports which
// configured keyword, if any, was spoken. Detection is synchronous: Process
// returns immediately, making it suitable for the always-on listening loop
// that gates the rest of the pipeline.
//
// The detector dictates its own frame length and sample rate; the audio path
// re-buffers the capture stream to comply. A Detector maintains internal
// state across frames and must not be shared between goroutines.
package wake

import "errors"

// Sentinel errors for configuration problems. Both are fatal at startup,
// before any audio device is opened.
var (
	// ErrNoCredential indicates the backend's access key is missing.
	ErrNoCredential = errors.New("wake: access credential not configured")

	// ErrNoKeyword indicates no keyword was configured for detection.
	ErrNoKeyword = errors.New("wake: no keywords configured")
)

// Detector analyses an audio stream frame by frame for wake keywords.
type Detector interface {
	// Process analyses a single frame of exactly FrameLength() samples at
	// SampleRate() Hz. It returns the zero-based index of the detected
	// keyword, or -1 when the frame completes no keyword. Any result >= 0
	// is a detection.
	Process(pcm []int16) (int, error)

	// FrameLength returns the exact number of samples Process expects.
	FrameLength() int

	// SampleRate returns the sample rate in Hz the detector operates at.
	SampleRate() int

	// Keywords returns the configured keywords in index order, for logging
	// and for resolving a Process result to a name.
	Keywords() []string

	// Close releases the detector's resources. Calling Close more than once
	// is safe.
	Close() error
}

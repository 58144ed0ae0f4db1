// Package vad defines the Engine interface for voice activity detection
// backends.
//
// A VAD engine classifies fixed-duration PCM frames as speech or non-speech.
// Classification is synchronous by design: IsSpeech returns immediately,
// making it suitable for the low-latency gate that segments utterances.
//
// Engines are factories and must be safe for concurrent use; a Classifier
// carries per-stream state and must not be shared across goroutines unless
// the implementation explicitly documents otherwise.
package vad

import (
	"errors"
	"fmt"
)

// Config holds the parameters for a classifier. The same values drive every
// backend; each engine maps Aggressiveness onto its native threshold scale.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must be one of 8000, 16000,
	// 32000, or 48000. Individual engines may support only a subset and
	// reject the rest at construction.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds. Must
	// be 10, 20, or 30. IsSpeech expects frames of exactly this duration at
	// SampleRate.
	FrameSizeMs int

	// Aggressiveness selects how aggressively non-speech is filtered, from 0
	// (most permissive) to 3 (most aggressive).
	Aggressiveness int
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error
	switch c.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		errs = append(errs, fmt.Errorf("sample rate must be 8000, 16000, 32000, or 48000, got %d", c.SampleRate))
	}
	switch c.FrameSizeMs {
	case 10, 20, 30:
	default:
		errs = append(errs, fmt.Errorf("frame size must be 10, 20, or 30 ms, got %d", c.FrameSizeMs))
	}
	if c.Aggressiveness < 0 || c.Aggressiveness > 3 {
		errs = append(errs, fmt.Errorf("aggressiveness must be between 0 and 3, got %d", c.Aggressiveness))
	}
	return errors.Join(errs...)
}

// FrameBytes returns the expected byte length of one 16-bit mono frame.
func (c Config) FrameBytes() int {
	return c.SampleRate * c.FrameSizeMs / 1000 * 2
}

// Classifier labels audio frames for a single stream. It maintains internal
// smoothing state; Reset clears this state without closing the classifier.
//
// A Classifier should not be shared between goroutines.
type Classifier interface {
	// IsSpeech classifies a single frame of raw little-endian 16-bit mono
	// PCM at the configured sample rate and frame size. It must not block.
	IsSpeech(frame []byte) (bool, error)

	// Reset clears accumulated state without closing the classifier. Use it
	// when the stream is interrupted so stale state does not affect
	// subsequent frames.
	Reset() error

	// Close releases the classifier's resources. Calling Close more than
	// once is safe.
	Close() error
}

// Engine is the factory for classifiers. It is the top-level interface
// implemented by each VAD backend.
type Engine interface {
	// NewClassifier creates a classifier for one audio stream. It returns an
	// error if the configuration is invalid or unsupported by the backend.
	NewClassifier(cfg Config) (Classifier, error)
}

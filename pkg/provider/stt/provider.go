// Package stt defines the Transcriber interface for speech-to-text backends.
//
// Transcription here is utterance-at-a-time: the segmentation gate hands over
// one complete utterance of PCM audio and expects text back within a bounded
// time. There is no streaming surface — partial results have no consumer in a
// turn-based dialogue, and batch inference keeps local backends simple.
//
// Implementations must be safe for concurrent use unless documented
// otherwise.
package stt

import (
	"context"
	"errors"
)

// ErrTimeout marks a transcription that exceeded its deadline. Callers match
// it with errors.Is; implementations also surface it for deadlines they hit
// internally. A timed-out utterance yields an empty transcript, never a
// fatal error.
var ErrTimeout = errors.New("stt: transcription deadline exceeded")

// Transcriber converts one complete utterance to text.
type Transcriber interface {
	// Transcribe converts pcm — contiguous little-endian 16-bit mono samples
	// at the pipeline sample rate — to text. An utterance with no
	// recognizable speech yields "" with a nil error.
	//
	// Implementations honour ctx: when the deadline expires before inference
	// completes, Transcribe returns an error matching [ErrTimeout].
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

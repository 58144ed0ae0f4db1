// Package audio defines the frame type and stream plumbing shared by every
// capture backend: the bounded hand-off between the device callback and the
// control loop, the assembler that re-buffers raw callback data into
// fixed-size frames, and the PCM conversions the detectors need.
package audio

import (
	"context"
	"errors"
)

// ErrDevice is the root cause wrapped by every capture-device failure: open
// failures, device disappearance mid-stream, backend shutdown. Callers treat
// it as fatal to the capture loop.
var ErrDevice = errors.New("audio device failure")

// Source is a stream of fixed-size audio frames from a capture backend.
//
// Start opens the device and returns the frame channel. The channel is closed
// when ctx is cancelled, Close is called, or the device fails; after the
// channel closes, Err reports the device failure if there was one. Frames
// arrive in capture order.
type Source interface {
	// Start begins capture. It may be called once; a second call returns an
	// error. The returned channel delivers frames of the configured size.
	Start(ctx context.Context) (<-chan Frame, error)

	// Err reports the device failure that terminated the stream, or nil
	// after a clean stop. Valid once the frame channel has closed.
	Err() error

	// Dropped reports how many frames were evicted because the consumer
	// fell behind.
	Dropped() uint64

	// Close stops capture and releases the device. Safe to call more than
	// once and safe to call without Start.
	Close() error
}

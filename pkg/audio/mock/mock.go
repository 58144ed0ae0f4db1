// Package mock provides a scripted in-memory implementation of
// [audio.Source] for use in unit tests.
//
// The mock records every method call so that tests can assert on call counts,
// and exposes exported fields that the test can set to control behavior.
//
// Typical usage:
//
//	src := &mock.Source{Frames: frames}
//	ch, _ := src.Start(ctx)
//	for f := range ch { ... }
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/auriclehq/auricle/pkg/audio"
)

// Source is a mock implementation of [audio.Source].
// Set the exported fields before use; inspect the CallCount* fields after.
type Source struct {
	mu sync.Mutex

	// Frames are delivered in order after Start.
	Frames []audio.Frame

	// StartErr, if non-nil, is returned from Start.
	StartErr error

	// StreamErr, if non-nil, is reported by Err once the stream has ended.
	// Use it to simulate a device failure mid-stream.
	StreamErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// HoldOpen keeps the frame channel open after the script is exhausted
	// until Close or context cancellation, mimicking a quiet device.
	HoldOpen bool

	// DroppedCount is what Dropped reports.
	DroppedCount uint64

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	started   bool
	done      chan struct{}
	closeOnce sync.Once
}

// Start implements [audio.Source]. It delivers the scripted frames on the
// returned channel from a background goroutine.
func (s *Source) Start(ctx context.Context) (<-chan audio.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStart++
	if s.StartErr != nil {
		return nil, s.StartErr
	}
	if s.started {
		return nil, errors.New("mock source: already started")
	}
	s.started = true
	s.done = make(chan struct{})

	frames := make([]audio.Frame, len(s.Frames))
	copy(frames, s.Frames)
	hold := s.HoldOpen
	done := s.done

	ch := make(chan audio.Frame)
	go func() {
		defer close(ch)
		for _, f := range frames {
			select {
			case ch <- f:
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
		if hold {
			select {
			case <-ctx.Done():
			case <-done:
			}
		}
	}()
	return ch, nil
}

// Err implements [audio.Source]. Returns StreamErr.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.StreamErr
}

// Dropped implements [audio.Source]. Returns DroppedCount.
func (s *Source) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.DroppedCount
}

// Close implements [audio.Source]. It stops delivery and returns CloseErr.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	s.closeOnce.Do(func() {
		if s.done != nil {
			close(s.done)
		}
	})
	return s.CloseErr
}

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)

// Package mock provides a test double for the wake package interfaces.
//
// Use Detector to script detections at specific frame ordinals and inspect
// the frames that were submitted for processing.
//
// Example:
//
//	det := &mock.Detector{DetectAtCalls: map[int]int{3: 0}}
//	idx, _ := det.Process(frame) // returns 0 on the third call
package mock

import (
	"sync"

	"github.com/auriclehq/auricle/pkg/provider/wake"
)

// ProcessCall records a single invocation of Detector.Process.
type ProcessCall struct {
	// PCM is a copy of the samples passed to Process.
	PCM []int16
}

// Detector is a mock implementation of wake.Detector.
type Detector struct {
	mu sync.Mutex

	// DetectAtCalls maps a 1-based Process call ordinal to the keyword index
	// to report on that call. Calls without an entry report -1.
	DetectAtCalls map[int]int

	// ProcessErr, if non-nil, is returned by every Process call.
	ProcessErr error

	// FrameLengthResult is returned by FrameLength. Defaults to 512.
	FrameLengthResult int

	// SampleRateResult is returned by SampleRate. Defaults to 16000.
	SampleRateResult int

	// KeywordsResult is returned by Keywords. Defaults to ["jarvis"].
	KeywordsResult []string

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// ProcessCalls records every call to Process in order.
	ProcessCalls []ProcessCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Process records the call and returns the scripted index for this ordinal,
// or -1.
func (d *Detector) Process(pcm []int16) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]int16, len(pcm))
	copy(cp, pcm)
	d.ProcessCalls = append(d.ProcessCalls, ProcessCall{PCM: cp})
	if d.ProcessErr != nil {
		return -1, d.ProcessErr
	}
	if idx, ok := d.DetectAtCalls[len(d.ProcessCalls)]; ok {
		return idx, nil
	}
	return -1, nil
}

// FrameLength returns FrameLengthResult, defaulting to 512.
func (d *Detector) FrameLength() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FrameLengthResult == 0 {
		return 512
	}
	return d.FrameLengthResult
}

// SampleRate returns SampleRateResult, defaulting to 16000.
func (d *Detector) SampleRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.SampleRateResult == 0 {
		return 16000
	}
	return d.SampleRateResult
}

// Keywords returns KeywordsResult, defaulting to ["jarvis"].
func (d *Detector) Keywords() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.KeywordsResult == nil {
		return []string{"jarvis"}
	}
	return d.KeywordsResult
}

// Close records the call and returns CloseErr.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCallCount++
	return d.CloseErr
}

// ResetCalls clears all recorded call history. Thread-safe.
func (d *Detector) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ProcessCalls = nil
	d.CloseCallCount = 0
}

// Ensure Detector implements wake.Detector at compile time.
var _ wake.Detector = (*Detector)(nil)

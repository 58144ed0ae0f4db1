// Package mock provides a test double for the stt package interfaces.
//
// Use Transcriber to script per-utterance transcripts and inspect the PCM
// that was submitted.
//
// Example:
//
//	tr := &mock.Transcriber{Results: []mock.Result{{Text: "hello"}}}
//	text, _ := tr.Transcribe(ctx, pcm)
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/auriclehq/auricle/pkg/provider/stt"
)

// Result scripts the outcome of one Transcribe call.
type Result struct {
	// Text is the transcript to return.
	Text string

	// Err, if non-nil, is returned instead of Text.
	Err error
}

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// PCMLen is the byte length of the submitted utterance.
	PCMLen int
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Results are consumed in order by successive Transcribe calls. Calls
	// beyond the scripted results return "" with a nil error.
	Results []Result

	// Delay is injected into every Transcribe call before the result is
	// produced, bounded by ctx. Use it to provoke deadline handling.
	Delay time.Duration

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the next scripted result. When
// Delay is set and ctx expires first, it returns an error matching
// stt.ErrTimeout.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	t.mu.Lock()
	t.TranscribeCalls = append(t.TranscribeCalls, TranscribeCall{PCMLen: len(pcm)})
	i := len(t.TranscribeCalls) - 1
	var r Result
	if i < len(t.Results) {
		r = t.Results[i]
	}
	delay := t.Delay
	t.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", stt.ErrTimeout, ctx.Err())
		}
	}
	return r.Text, r.Err
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.TranscribeCalls)
}

// ResetCalls clears all recorded call history. Thread-safe.
func (t *Transcriber) ResetCalls() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TranscribeCalls = nil
}

// Ensure Transcriber implements stt.Transcriber at compile time.
var _ stt.Transcriber = (*Transcriber)(nil)

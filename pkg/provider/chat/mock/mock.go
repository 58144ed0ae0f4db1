// Package mock provides a test double for the chat package interfaces.
//
// Use Responder to script per-utterance replies and inspect the text and
// history that were submitted.
//
// Example:
//
//	r := &mock.Responder{Replies: []mock.Reply{{Text: "你好！"}}}
//	reply, _ := r.Respond(ctx, "你好", nil)
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/auriclehq/auricle/pkg/provider/chat"
	"github.com/auriclehq/auricle/pkg/types"
)

// Reply scripts the outcome of one Respond call.
type Reply struct {
	// Text is the assistant reply to return.
	Text string

	// Err, if non-nil, is returned instead of Text.
	Err error
}

// RespondCall records a single invocation of Responder.Respond.
type RespondCall struct {
	// Text is the user utterance that was submitted.
	Text string

	// History is a copy of the dialogue history passed alongside the text.
	History []types.Turn
}

// Responder is a mock implementation of chat.Responder.
type Responder struct {
	mu sync.Mutex

	// Replies are consumed in order by successive Respond calls. Calls beyond
	// the scripted replies return "" with a nil error.
	Replies []Reply

	// Delay is injected into every Respond call before the reply is produced,
	// bounded by ctx. Use it to provoke cancellation handling.
	Delay time.Duration

	// RespondCalls records every call to Respond in order.
	RespondCalls []RespondCall
}

// Respond records the call and returns the next scripted reply. When Delay is
// set and ctx expires first, it returns the context error.
func (r *Responder) Respond(ctx context.Context, text string, history []types.Turn) (string, error) {
	r.mu.Lock()
	r.RespondCalls = append(r.RespondCalls, RespondCall{
		Text:    text,
		History: slices.Clone(history),
	})
	i := len(r.RespondCalls) - 1
	var reply Reply
	if i < len(r.Replies) {
		reply = r.Replies[i]
	}
	delay := r.Delay
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("mock: respond: %w", ctx.Err())
		}
	}
	return reply.Text, reply.Err
}

// CallCount returns the number of Respond calls. Thread-safe.
func (r *Responder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.RespondCalls)
}

// ResetCalls clears all recorded call history. Thread-safe.
func (r *Responder) ResetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RespondCalls = nil
}

// Ensure Responder implements chat.Responder at compile time.
var _ chat.Responder = (*Responder)(nil)

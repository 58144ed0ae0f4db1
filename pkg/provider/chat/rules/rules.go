// Package rules provides a deterministic offline chat Responder.
//
// It answers from a small fixed rule table instead of calling a model, which
// makes it useful for demos, air-gapped machines, and end-to-end tests of the
// voice pipeline where the reply content does not matter. Replies are in
// Chinese to match the default wake-word and exit-phrase vocabulary.
package rules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/auriclehq/auricle/pkg/types"
)

// Responder implements chat.Responder with a fixed rule table.
type Responder struct {
	now func() time.Time
}

// Option is a functional option for Responder.
type Option func(*Responder)

// WithClock replaces the wall clock used for time-of-day replies.
func WithClock(now func() time.Time) Option {
	return func(r *Responder) {
		r.now = now
	}
}

// New constructs an offline rule-table Responder.
func New(opts ...Option) *Responder {
	r := &Responder{now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Respond implements chat.Responder. History is ignored: every rule depends
// only on the current utterance.
func (r *Responder) Respond(ctx context.Context, text string, _ []types.Turn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("rules: %w", err)
	}

	switch {
	case strings.Contains(text, "你好"):
		return "你好！很高兴为你服务。", nil
	case strings.Contains(text, "几点"), strings.Contains(text, "时间"):
		return fmt.Sprintf("现在是 %s。", r.now().Format("15:04")), nil
	default:
		return fmt.Sprintf("我听到了：%s，但我还不知道怎么回答。", text), nil
	}
}

// Package stub implements an offline stand-in transcriber.
//
// It lets the full pipeline run without a model file or credentials:
// utterances shorter than a minimum byte length transcribe to "" (treated
// upstream as an invalid input), anything longer returns a fixed phrase.
// Useful for demos and for exercising the dialogue loop end to end.
package stub

import (
	"context"

	"github.com/auriclehq/auricle/pkg/provider/stt"
)

const (
	// defaultMinBytes is one second of 16 kHz mono 16-bit audio. Shorter
	// utterances are reported as unrecognizable.
	defaultMinBytes = 32000

	defaultPhrase = "你好 Jarvis，这是一个测试对话。"
)

// Transcriber returns a canned phrase for any sufficiently long utterance.
// It implements [stt.Transcriber]. Safe for concurrent use.
type Transcriber struct {
	minBytes int
	phrase   string
}

var _ stt.Transcriber = (*Transcriber)(nil)

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithMinBytes sets the PCM byte length below which the transcript is empty.
func WithMinBytes(n int) Option {
	return func(t *Transcriber) { t.minBytes = n }
}

// WithPhrase sets the canned transcript returned for long-enough utterances.
func WithPhrase(phrase string) Option {
	return func(t *Transcriber) { t.phrase = phrase }
}

// New creates a stub transcriber.
func New(opts ...Option) *Transcriber {
	t := &Transcriber{
		minBytes: defaultMinBytes,
		phrase:   defaultPhrase,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Transcribe returns the canned phrase, or "" when the utterance is shorter
// than the configured minimum.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(pcm) < t.minBytes {
		return "", nil
	}
	return t.phrase, nil
}

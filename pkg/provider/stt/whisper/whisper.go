// Package whisper implements speech-to-text with the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The model is loaded once and shared; each Transcribe call creates a fresh
// whisper context, so concurrent transcriptions do not interfere. Input must
// be 16 kHz mono PCM — whisper.cpp operates natively at 16 kHz.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/auriclehq/auricle/pkg/audio"
	"github.com/auriclehq/auricle/pkg/provider/stt"
)

const defaultLanguage = "auto"

// Transcriber runs local whisper.cpp inference. It implements
// [stt.Transcriber].
type Transcriber struct {
	model    whisperlib.Model
	language string
}

var _ stt.Transcriber = (*Transcriber)(nil)

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithLanguage sets the transcription language code (e.g. "en", "zh", "de").
// Defaults to "auto", which lets the model detect the spoken language.
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// New loads the whisper model from modelPath. The caller must call Close
// when the transcriber is no longer needed.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	t := &Transcriber{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Transcribe runs inference on pcm and returns the concatenated segment
// text. Inference itself is not interruptible; when ctx expires first,
// Transcribe returns [stt.ErrTimeout] immediately and the worker goroutine
// discards its result on completion.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", stt.ErrTimeout, err)
	}

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := t.infer(pcm)
		ch <- result{text: text, err: err}
	}()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", stt.ErrTimeout, ctx.Err())
	}
}

// infer converts the PCM audio to float32, runs whisper.cpp inference using
// a fresh context, and returns the concatenated text.
func (t *Transcriber) infer(pcm []byte) (string, error) {
	samples := audio.Float32Samples(pcm)

	// A whisper context is NOT thread-safe, but the model can be shared
	// across goroutines.
	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	// English-only models reject language selection entirely; transcription
	// still works, so keep going.
	if err := wctx.SetLanguage(t.language); err != nil {
		slog.Warn("whisper: failed to set language, using model default", "language", t.language, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// Close releases the whisper model.
func (t *Transcriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// Package silero implements voice activity detection with the Silero VAD
// neural model via ONNX runtime.
//
// Silero consumes fixed windows of 512 samples at 16 kHz (256 at 8 kHz)
// regardless of the pipeline frame size, so the classifier re-buffers
// incoming frames internally and reports the detector's current speaking
// state after each frame. Aggressiveness maps onto the model's detection
// threshold: 0 → 0.30, 1 → 0.40, 2 → 0.50, 3 → 0.60.
package silero

import (
	"fmt"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/auriclehq/auricle/pkg/audio"
	"github.com/auriclehq/auricle/pkg/provider/vad"
)

// thresholds maps Config.Aggressiveness to the Silero speech probability
// threshold.
var thresholds = [4]float32{0.30, 0.40, 0.50, 0.60}

// windowSamples returns the Silero window size for a sample rate, or 0 for
// unsupported rates.
func windowSamples(sampleRate int) int {
	switch sampleRate {
	case 16000:
		return 512
	case 8000:
		return 256
	default:
		return 0
	}
}

// Engine creates Silero classifiers. It implements [vad.Engine].
type Engine struct {
	// ModelPath locates the silero_vad.onnx model file.
	ModelPath string
}

var _ vad.Engine = (*Engine)(nil)

// NewClassifier validates cfg and loads a detector for one stream.
func (e *Engine) NewClassifier(cfg vad.Config) (vad.Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("silero: %w", err)
	}
	window := windowSamples(cfg.SampleRate)
	if window == 0 {
		return nil, fmt.Errorf("silero: sample rate %d not supported (use 8000 or 16000)", cfg.SampleRate)
	}
	if e.ModelPath == "" {
		return nil, fmt.Errorf("silero: model path not configured")
	}

	sd, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:  e.ModelPath,
		SampleRate: cfg.SampleRate,
		Threshold:  thresholds[cfg.Aggressiveness],
	})
	if err != nil {
		return nil, fmt.Errorf("silero: load detector: %w", err)
	}

	return &classifier{
		detector:   sd,
		window:     window,
		frameBytes: cfg.FrameBytes(),
	}, nil
}

// classifier adapts the windowed Silero detector to the per-frame contract.
type classifier struct {
	detector   *speech.Detector
	window     int
	frameBytes int

	buf      []float32
	speaking bool

	closeOnce sync.Once
	closeErr  error
}

// IsSpeech folds the frame into the window buffer, advances the detector
// over every complete window, and returns the current speaking state.
func (c *classifier) IsSpeech(frame []byte) (bool, error) {
	if len(frame) != c.frameBytes {
		return false, fmt.Errorf("silero: frame is %d bytes, expected %d", len(frame), c.frameBytes)
	}
	c.buf = append(c.buf, audio.Float32Samples(frame)...)

	for len(c.buf) >= c.window {
		chunk := c.buf[:c.window]
		event, err := c.detector.DetectStreamFrame(chunk)
		c.buf = c.buf[:copy(c.buf, c.buf[c.window:])]
		if err != nil {
			// The detector occasionally loses track of a segment boundary;
			// clear its state and keep classifying rather than fail the
			// stream.
			if err.Error() == "unexpected speech end" {
				c.speaking = false
				if rerr := c.detector.Reset(); rerr != nil {
					return false, fmt.Errorf("silero: reset after boundary loss: %w", rerr)
				}
				continue
			}
			return c.speaking, fmt.Errorf("silero: detect frame: %w", err)
		}
		if event != nil {
			if event.IsStart {
				c.speaking = true
			}
			if event.IsEnd {
				c.speaking = false
			}
		}
	}
	return c.speaking, nil
}

// Reset clears the window buffer and the detector state.
func (c *classifier) Reset() error {
	c.buf = c.buf[:0]
	c.speaking = false
	if err := c.detector.Reset(); err != nil {
		return fmt.Errorf("silero: reset detector: %w", err)
	}
	return nil
}

// Close destroys the underlying detector. Safe to call more than once.
func (c *classifier) Close() error {
	c.closeOnce.Do(func() {
		if err := c.detector.Destroy(); err != nil {
			c.closeErr = fmt.Errorf("silero: destroy detector: %w", err)
		}
	})
	return c.closeErr
}

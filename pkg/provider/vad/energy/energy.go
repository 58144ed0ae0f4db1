// Package energy implements voice activity detection by RMS amplitude.
//
// It needs no model file and works at any supported sample rate, which makes
// it the fallback engine for environments without ONNX runtime. Each frame
// is classified independently against an amplitude threshold selected by
// Aggressiveness; the segmentation gate supplies the temporal smoothing.
package energy

import (
	"fmt"

	"github.com/auriclehq/auricle/pkg/audio"
	"github.com/auriclehq/auricle/pkg/provider/vad"
)

// thresholds maps Config.Aggressiveness to a normalized RMS amplitude in
// [0, 1]. Values calibrated against typical close-microphone speech.
var thresholds = [4]float64{0.006, 0.010, 0.015, 0.025}

// Engine creates RMS classifiers. It implements [vad.Engine].
type Engine struct{}

var _ vad.Engine = (*Engine)(nil)

// NewClassifier validates cfg and returns a stateless RMS classifier.
func (e *Engine) NewClassifier(cfg vad.Config) (vad.Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("energy: %w", err)
	}
	return &classifier{
		threshold:  thresholds[cfg.Aggressiveness],
		frameBytes: cfg.FrameBytes(),
	}, nil
}

type classifier struct {
	threshold  float64
	frameBytes int
}

// IsSpeech reports whether the frame's RMS amplitude reaches the threshold.
func (c *classifier) IsSpeech(frame []byte) (bool, error) {
	if len(frame) != c.frameBytes {
		return false, fmt.Errorf("energy: frame is %d bytes, expected %d", len(frame), c.frameBytes)
	}
	return audio.RMS(frame) >= c.threshold, nil
}

// Reset is a no-op; the classifier holds no state between frames.
func (c *classifier) Reset() error {
	return nil
}

// Close is a no-op.
func (c *classifier) Close() error {
	return nil
}

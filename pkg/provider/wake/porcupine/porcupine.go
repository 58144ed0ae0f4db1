// Package porcupine implements wake word detection with the Picovoice
// Porcupine engine.
//
// Porcupine runs fully on-device. It requires an access key from the
// Picovoice console and detects either built-in keywords (by name) or custom
// keyword files (.ppn paths). The engine fixes both the frame length and the
// sample rate; callers re-buffer audio to match.
package porcupine

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	porcupinelib "github.com/Picovoice/porcupine/binding/go/v3"

	"github.com/auriclehq/auricle/pkg/provider/wake"
)

// Config holds the Porcupine engine settings.
type Config struct {
	// AccessKey is the Picovoice access key. Required.
	AccessKey string

	// Keywords names built-in keywords to detect (e.g. "jarvis", "computer").
	// Case-insensitive. Mutually exclusive with KeywordPaths.
	Keywords []string

	// KeywordPaths lists custom .ppn keyword files. Detected keyword indexes
	// follow slice order.
	KeywordPaths []string

	// ModelPath optionally selects a non-default Porcupine model file, e.g.
	// for a non-English keyword language.
	ModelPath string

	// Sensitivities, one per keyword in [0, 1], trade false alarms against
	// missed detections. Defaults to 0.5 for every keyword.
	Sensitivities []float32
}

// Detector wraps a Porcupine engine instance. It implements [wake.Detector].
// Not safe for concurrent use; one detector serves one audio stream.
type Detector struct {
	engine   porcupinelib.Porcupine
	keywords []string

	closeOnce sync.Once
	closeErr  error
}

var _ wake.Detector = (*Detector)(nil)

// New validates cfg and initializes the engine. A missing access key returns
// [wake.ErrNoCredential]; an empty keyword set returns [wake.ErrNoKeyword].
func New(cfg Config) (*Detector, error) {
	if strings.TrimSpace(cfg.AccessKey) == "" {
		return nil, wake.ErrNoCredential
	}
	if len(cfg.Keywords) == 0 && len(cfg.KeywordPaths) == 0 {
		return nil, wake.ErrNoKeyword
	}
	if len(cfg.Keywords) > 0 && len(cfg.KeywordPaths) > 0 {
		return nil, fmt.Errorf("porcupine: configure built-in keywords or keyword paths, not both")
	}

	total := len(cfg.Keywords) + len(cfg.KeywordPaths)
	sensitivities := cfg.Sensitivities
	if len(sensitivities) == 0 {
		sensitivities = make([]float32, total)
		for i := range sensitivities {
			sensitivities[i] = 0.5
		}
	}
	if len(sensitivities) != total {
		return nil, fmt.Errorf("porcupine: %d sensitivities for %d keywords", len(sensitivities), total)
	}

	builtins := make([]porcupinelib.BuiltInKeyword, 0, len(cfg.Keywords))
	names := make([]string, 0, total)
	for _, kw := range cfg.Keywords {
		name := strings.ToLower(strings.TrimSpace(kw))
		builtins = append(builtins, porcupinelib.BuiltInKeyword(name))
		names = append(names, name)
	}
	for _, p := range cfg.KeywordPaths {
		names = append(names, strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)))
	}

	engine := porcupinelib.Porcupine{
		AccessKey:       cfg.AccessKey,
		BuiltInKeywords: builtins,
		KeywordPaths:    cfg.KeywordPaths,
		ModelPath:       cfg.ModelPath,
		Sensitivities:   sensitivities,
	}
	if err := engine.Init(); err != nil {
		return nil, fmt.Errorf("porcupine: init engine: %w", err)
	}

	return &Detector{engine: engine, keywords: names}, nil
}

// Process analyses one frame and returns the detected keyword index, or -1.
func (d *Detector) Process(pcm []int16) (int, error) {
	idx, err := d.engine.Process(pcm)
	if err != nil {
		return -1, fmt.Errorf("porcupine: process frame: %w", err)
	}
	return idx, nil
}

// FrameLength returns the engine's fixed frame length in samples.
func (d *Detector) FrameLength() int {
	return porcupinelib.FrameLength
}

// SampleRate returns the engine's fixed sample rate in Hz.
func (d *Detector) SampleRate() int {
	return porcupinelib.SampleRate
}

// Keywords returns the configured keyword names in index order.
func (d *Detector) Keywords() []string {
	out := make([]string, len(d.keywords))
	copy(out, d.keywords)
	return out
}

// Close releases the engine. Safe to call more than once.
func (d *Detector) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.engine.Delete()
	})
	return d.closeErr
}

// Package segment turns the continuous microphone frame stream into discrete
// utterances.
//
// The central type is the Gate. While idle it keeps a short pre-roll ring of
// recent frames and watches the per-frame speech verdicts of a
// vad.Classifier; when enough of the ring is speech, capture begins and the
// ring contents become the head of the utterance, so the onset that preceded
// the trigger is not lost. While capturing, every frame is appended until a
// long enough run of silence releases the utterance, or the maximum length
// cuts it off.
package segment

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/auriclehq/auricle/pkg/audio"
	"github.com/auriclehq/auricle/pkg/provider/vad"
)

// Config controls utterance segmentation.
type Config struct {
	// FrameDuration is the nominal duration of one frame.
	FrameDuration time.Duration

	// PaddingDuration is the length of the pre-roll window kept while idle.
	PaddingDuration time.Duration

	// TriggerRatio is the fraction of the pre-roll ring, measured against its
	// full capacity, that must be speech for capture to begin.
	TriggerRatio float64

	// ReleaseSilence is the run of consecutive silence that ends a capture.
	// The run must strictly exceed this duration, so with 30ms frames and
	// 800ms release the 27th consecutive silent frame ends the utterance.
	ReleaseSilence time.Duration

	// MaxUtterance force-ends any capture that reaches this duration.
	MaxUtterance time.Duration

	// MinFramesToKeep discards finalized utterances shorter than this many
	// frames.
	MinFramesToKeep int
}

// DefaultConfig returns the segmentation defaults: 30ms frames, 300ms
// pre-roll, 0.9 trigger ratio, 800ms release silence, 15s maximum utterance,
// 10 frames minimum.
func DefaultConfig() Config {
	return Config{
		FrameDuration:   30 * time.Millisecond,
		PaddingDuration: 300 * time.Millisecond,
		TriggerRatio:    0.9,
		ReleaseSilence:  800 * time.Millisecond,
		MaxUtterance:    15 * time.Second,
		MinFramesToKeep: 10,
	}
}

// Validate checks the configuration and returns all problems found.
func (c Config) Validate() error {
	var errs []error
	if c.FrameDuration <= 0 {
		errs = append(errs, fmt.Errorf("frame duration must be positive, got %v", c.FrameDuration))
	}
	if c.PaddingDuration < c.FrameDuration {
		errs = append(errs, fmt.Errorf("padding duration %v must hold at least one frame of %v", c.PaddingDuration, c.FrameDuration))
	}
	if c.TriggerRatio <= 0 || c.TriggerRatio > 1 {
		errs = append(errs, fmt.Errorf("trigger ratio must be in (0, 1], got %v", c.TriggerRatio))
	}
	if c.ReleaseSilence < c.FrameDuration {
		errs = append(errs, fmt.Errorf("release silence %v must hold at least one frame of %v", c.ReleaseSilence, c.FrameDuration))
	}
	if c.MaxUtterance <= c.PaddingDuration || c.MaxUtterance <= c.ReleaseSilence {
		errs = append(errs, fmt.Errorf("max utterance %v must exceed both the padding %v and the release silence %v", c.MaxUtterance, c.PaddingDuration, c.ReleaseSilence))
	}
	if c.MinFramesToKeep < 0 {
		errs = append(errs, fmt.Errorf("min frames to keep must not be negative, got %d", c.MinFramesToKeep))
	}
	return errors.Join(errs...)
}

// RingCapacity returns the pre-roll ring size in frames, at least one.
func (c Config) RingCapacity() int {
	n := int(c.PaddingDuration / c.FrameDuration)
	if n < 1 {
		n = 1
	}
	return n
}

// Event reports what a single frame did to the gate.
type Event struct {
	// Began is true when this frame triggered the start of a capture.
	Began bool

	// Utterance is set when a capture completed on this frame.
	Utterance *Utterance

	// Discarded is true when a capture ended below the keep threshold and was
	// dropped.
	Discarded bool
}

// Gate segments a frame stream into utterances. It is not goroutine-safe;
// one gate serves one stream.
type Gate struct {
	cfg     Config
	cls     vad.Classifier
	log     *slog.Logger
	persist Persister

	ring      *Ring
	rec       *Recorder
	capturing bool
	silence   time.Duration
}

// Option is a functional option for Gate.
type Option func(*Gate)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(g *Gate) {
		g.log = log
	}
}

// WithPersister enables best-effort persistence of finalized utterances.
// Persist failures are logged and never affect segmentation.
func WithPersister(p Persister) Option {
	return func(g *Gate) {
		g.persist = p
	}
}

// NewGate constructs a gate over the given classifier. The classifier is
// owned by the caller; the gate never closes it.
func NewGate(cfg Config, cls vad.Classifier, opts ...Option) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("segment: invalid gate config: %w", err)
	}
	if cls == nil {
		return nil, fmt.Errorf("segment: classifier must not be nil")
	}

	g := &Gate{
		cfg:  cfg,
		cls:  cls,
		log:  slog.Default(),
		ring: NewRing(cfg.RingCapacity()),
		rec:  NewRecorder(cfg.MinFramesToKeep, cfg.FrameDuration),
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Capturing reports whether an utterance is currently being captured.
func (g *Gate) Capturing() bool { return g.capturing }

// Feed advances the gate by one frame and reports what happened. Classifier
// errors are logged and the frame is treated as silence; the stream carries
// on.
func (g *Gate) Feed(f audio.Frame) Event {
	speech, err := g.cls.IsSpeech(f.Data)
	if err != nil {
		g.log.Warn("voice activity check failed, treating frame as silence", "error", err)
		speech = false
	}

	if !g.capturing {
		g.ring.Push(f, speech)
		if g.ring.SpeechRatio() < g.cfg.TriggerRatio {
			return Event{}
		}
		for _, pre := range g.ring.Frames() {
			g.rec.Append(pre)
		}
		g.ring.Reset()
		g.capturing = true
		g.silence = 0
		g.log.Info("utterance capture started", "preroll_frames", g.rec.Len())
		return Event{Began: true}
	}

	g.rec.Append(f)
	if speech {
		g.silence = 0
	} else {
		g.silence += g.cfg.FrameDuration
		if g.silence > g.cfg.ReleaseSilence {
			return g.finish(false)
		}
	}
	// The recorder duration counts pre-roll frames too, so the cap bounds
	// the total emitted utterance length, not just the post-trigger tail.
	if g.rec.Duration() >= g.cfg.MaxUtterance {
		return g.finish(true)
	}
	return Event{}
}

// Reset returns the gate to idle, dropping any partial capture and clearing
// the pre-roll and the classifier state. Nothing is persisted.
func (g *Gate) Reset() {
	g.ring.Reset()
	g.rec.Finalize(false)
	g.capturing = false
	g.silence = 0
	if err := g.cls.Reset(); err != nil {
		g.log.Warn("classifier reset failed", "error", err)
	}
}

func (g *Gate) finish(forced bool) Event {
	frames := g.rec.Len()
	dur := g.rec.Duration()
	u := g.rec.Finalize(forced)
	g.capturing = false
	g.silence = 0

	if u == nil {
		g.log.Debug("utterance below keep threshold, discarded",
			"frames", frames, "min_frames", g.cfg.MinFramesToKeep)
		return Event{Discarded: true}
	}
	if forced {
		g.log.Warn("utterance force-ended at max length", "duration", dur, "frames", frames)
	} else {
		g.log.Info("utterance captured", "duration", dur, "frames", frames)
	}
	g.persistUtterance(u)
	return Event{Utterance: u}
}

func (g *Gate) persistUtterance(u *Utterance) {
	if g.persist == nil {
		return
	}
	path, err := g.persist.Persist(u)
	if err != nil {
		g.log.Error("utterance persistence failed", "error", err)
		return
	}
	g.log.Debug("utterance persisted", "path", path)
}

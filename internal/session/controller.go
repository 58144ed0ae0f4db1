// Package session runs the top-level dialogue lifecycle of the assistant.
//
// The Controller owns a single pass over the microphone frame stream and
// sequences it through four states: Sleeping (watching for the wake word),
// Listening (awake, waiting for speech), Capturing (recording and
// transcribing one utterance), and Responding (waiting for the answer).
// A dialogue ends on an exit phrase, on an idle timeout, or after too many
// invalid inputs; the controller then resumes the wake watch. Run returns
// the conversation history accumulated across all dialogues when the stream
// ends, a device failure occurs, or the context is cancelled.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/auriclehq/auricle/internal/observe"
	"github.com/auriclehq/auricle/internal/segment"
	"github.com/auriclehq/auricle/pkg/audio"
	"github.com/auriclehq/auricle/pkg/provider/chat"
	"github.com/auriclehq/auricle/pkg/provider/stt"
	"github.com/auriclehq/auricle/pkg/provider/wake"
	"github.com/auriclehq/auricle/pkg/types"
)

// Defaults for the dialogue configuration.
const (
	DefaultIdleTimeout       = 20 * time.Second
	DefaultMaxInvalidInputs  = 3
	DefaultTranscribeTimeout = 30 * time.Second
	DefaultRespondTimeout    = 60 * time.Second
)

// archiveWriteTimeout bounds one best-effort turn archive write so a stalled
// database cannot stall the dialogue.
const archiveWriteTimeout = 5 * time.Second

// errStreamEnded marks the frame channel closing. Whether that is a clean
// stop or a device failure is decided by the source's Err.
var errStreamEnded = errors.New("session: frame stream ended")

// Config controls the dialogue rules of the controller.
type Config struct {
	// ExitPhrases end the dialogue when one occurs in a transcript.
	// Empty falls back to DefaultExitPhrases.
	ExitPhrases []string

	// FuzzyExitThreshold enables Jaro-Winkler matching of transcript tokens
	// against the exit phrases when in (0, 1]. Zero disables the stage.
	FuzzyExitThreshold float64

	// IdleTimeout ends the dialogue when no valid input arrives for this
	// long, measured from the wake or the last valid input.
	IdleTimeout time.Duration

	// MaxInvalidInputs ends the dialogue after this many consecutive empty
	// or discarded inputs.
	MaxInvalidInputs int

	// TranscribeTimeout bounds one transcription call.
	TranscribeTimeout time.Duration

	// RespondTimeout bounds one responder call.
	RespondTimeout time.Duration
}

// DefaultConfig returns the dialogue defaults: 20s idle timeout, 3 invalid
// inputs, 30s transcription and 60s responder deadlines, fuzzy exit
// matching disabled.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:       DefaultIdleTimeout,
		MaxInvalidInputs:  DefaultMaxInvalidInputs,
		TranscribeTimeout: DefaultTranscribeTimeout,
		RespondTimeout:    DefaultRespondTimeout,
	}
}

// Validate checks the configuration and returns all problems found.
func (c Config) Validate() error {
	var errs []error
	if c.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("idle timeout must be positive, got %v", c.IdleTimeout))
	}
	if c.MaxInvalidInputs < 1 {
		errs = append(errs, fmt.Errorf("max invalid inputs must be at least 1, got %d", c.MaxInvalidInputs))
	}
	if c.TranscribeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("transcribe timeout must be positive, got %v", c.TranscribeTimeout))
	}
	if c.RespondTimeout <= 0 {
		errs = append(errs, fmt.Errorf("respond timeout must be positive, got %v", c.RespondTimeout))
	}
	if c.FuzzyExitThreshold < 0 || c.FuzzyExitThreshold > 1 {
		errs = append(errs, fmt.Errorf("fuzzy exit threshold must be in [0, 1], got %v", c.FuzzyExitThreshold))
	}
	return errors.Join(errs...)
}

// Deps are the collaborators the controller sequences. All are required.
type Deps struct {
	// Source delivers the microphone frame stream.
	Source audio.Source

	// Wake spots the wake word while sleeping.
	Wake wake.Detector

	// Gate segments the stream into utterances while awake.
	Gate *segment.Gate

	// Transcriber converts one utterance to text.
	Transcriber stt.Transcriber

	// Responder answers one transcript.
	Responder chat.Responder
}

func (d Deps) validate() error {
	var errs []error
	if d.Source == nil {
		errs = append(errs, errors.New("audio source is required"))
	}
	if d.Wake == nil {
		errs = append(errs, errors.New("wake detector is required"))
	}
	if d.Gate == nil {
		errs = append(errs, errors.New("segmentation gate is required"))
	}
	if d.Transcriber == nil {
		errs = append(errs, errors.New("transcriber is required"))
	}
	if d.Responder == nil {
		errs = append(errs, errors.New("responder is required"))
	}
	return errors.Join(errs...)
}

// TurnSink receives every appended conversation turn for archival. Writes
// are best-effort: a failing sink is logged and counted, never surfaced.
type TurnSink interface {
	WriteTurn(ctx context.Context, sessionID uuid.UUID, seq int, turn types.Turn) error
}

// Controller is the session state machine. One controller serves one frame
// stream; Run may be called once.
type Controller struct {
	cfg  Config
	deps Deps
	exit *ExitMatcher

	log           *slog.Logger
	metrics       *observe.Metrics
	sink          TurnSink
	turnObserver  func(types.Turn)
	stateObserver func(Transition)

	sm      *stateMachine
	history []types.Turn // lifetime record returned by Run, never responder context
	started atomic.Bool
}

// Option is a functional option for the Controller.
type Option func(*Controller)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithMetrics enables metric recording for wake detections, utterances,
// transcriptions, responses, and invalid inputs.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithTurnSink forwards every appended turn to sink for archival.
func WithTurnSink(s TurnSink) Option {
	return func(c *Controller) { c.sink = s }
}

// WithTurnObserver invokes fn for every appended turn, user and assistant
// alike. This is how answers reach the user interface.
func WithTurnObserver(fn func(types.Turn)) Option {
	return func(c *Controller) { c.turnObserver = fn }
}

// WithStateObserver invokes fn for every state transition.
func WithStateObserver(fn func(Transition)) Option {
	return func(c *Controller) { c.stateObserver = fn }
}

// New constructs a controller. The dependencies are owned by the caller;
// the controller never closes them.
func New(cfg Config, deps Deps, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session: invalid config: %w", err)
	}
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("session: incomplete dependencies: %w", err)
	}

	c := &Controller{
		cfg:  cfg,
		deps: deps,
		exit: NewExitMatcher(cfg.ExitPhrases, cfg.FuzzyExitThreshold),
		log:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.sm = newStateMachine(c.stateObserver)
	return c, nil
}

// State returns the controller's current lifecycle state. Safe to call from
// any goroutine.
func (c *Controller) State() State {
	return c.sm.State()
}

// Run starts the capture stream and drives the lifecycle until the stream
// ends, the device fails, or ctx is cancelled. It returns the conversation
// history accumulated so far in every case; the error is nil only when the
// stream ended cleanly.
func (c *Controller) Run(ctx context.Context) ([]types.Turn, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, errors.New("session: controller already ran")
	}

	frames, err := c.deps.Source.Start(ctx)
	if err != nil {
		return c.historyCopy(), fmt.Errorf("session: start capture: %w", err)
	}
	defer c.deps.Source.Close()

	runErr := c.loop(ctx, frames)

	if c.sm.State() != StateSleeping {
		if err := c.sm.to(StateSleeping, "run ended"); err != nil {
			c.log.Error("terminal transition rejected", "error", err)
		}
	}
	if errors.Is(runErr, errStreamEnded) {
		if devErr := c.deps.Source.Err(); devErr != nil {
			runErr = fmt.Errorf("session: capture stream failed: %w", devErr)
		} else {
			runErr = nil
		}
	}
	dropped := c.deps.Source.Dropped()
	c.addDroppedFrames(ctx, int64(dropped))
	c.log.Info("session controller stopped",
		"turns", len(c.history), "dropped_frames", dropped)
	return c.historyCopy(), runErr
}

// loop alternates the wake watch and the dialogue until the stream ends.
func (c *Controller) loop(ctx context.Context, frames <-chan audio.Frame) error {
	for {
		keyword, err := c.watchWake(ctx, frames)
		if err != nil {
			return err
		}
		if err := c.sm.to(StateListening, "wake word detected"); err != nil {
			return err
		}
		c.recordWake(ctx, keyword)
		c.log.Info("wake word detected, dialogue started", "keyword", keyword)

		if err := c.dialogue(ctx, frames); err != nil {
			return err
		}
	}
}

// watchWake consumes frames until the detector spots a keyword. The stream
// is re-buffered to the detector's exact frame length.
func (c *Controller) watchWake(ctx context.Context, frames <-chan audio.Frame) (string, error) {
	need := c.deps.Wake.FrameLength()
	buf := make([]int16, 0, 2*need)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return "", errStreamEnded
			}
			buf = append(buf, audio.BytesToInt16(f.Data)...)
			for len(buf) >= need {
				idx, err := c.deps.Wake.Process(buf[:need])
				buf = buf[:copy(buf, buf[need:])]
				if err != nil {
					c.log.Warn("wake detection failed on frame", "error", err)
					continue
				}
				if idx >= 0 {
					return c.keywordName(idx), nil
				}
			}
		}
	}
}

// dialogue runs one wake cycle: capture utterances, transcribe, respond,
// until an exit condition puts the controller back to sleep. A nil return
// means the dialogue ended normally and the wake watch should resume.
func (c *Controller) dialogue(ctx context.Context, frames <-chan audio.Frame) error {
	ctx, span := observe.StartSpan(ctx, "session.dialogue")
	defer span.End()

	sessionID := uuid.New()
	log := observe.Logger(ctx, c.log).With("session_id", sessionID.String())

	// A previous cycle may have left pre-roll or classifier state behind.
	c.deps.Gate.Reset()
	c.addActiveSessions(ctx, 1)
	defer c.addActiveSessions(ctx, -1)

	st := dialogueState{
		sessionID: sessionID,
		log:       log,
		deadline:  time.Now().Add(c.cfg.IdleTimeout),
	}
	defer func() {
		log.Info("dialogue ended", "turns", st.seq, "invalid_inputs", st.invalid)
	}()

	idle := time.NewTimer(c.cfg.IdleTimeout)
	defer idle.Stop()
	st.armIdle = func(d time.Duration) {
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(d)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-idle.C:
			if c.deps.Gate.Capturing() {
				// Speech is in flight; the max-utterance cap bounds it and
				// the post-utterance deadline check catches the overrun.
				st.armIdle(c.cfg.IdleTimeout)
				continue
			}
			log.Info("idle timeout, going back to sleep", "idle_timeout", c.cfg.IdleTimeout)
			return c.sleep("idle timeout")

		case f, ok := <-frames:
			if !ok {
				return errStreamEnded
			}
			done, err := c.handleFrame(ctx, &st, f)
			if err != nil || done {
				return err
			}
		}
	}
}

// dialogueState is the per-wake-cycle bookkeeping threaded through
// handleFrame. turns holds only this cycle's exchanges; the responder never
// sees turns from an earlier wake.
type dialogueState struct {
	sessionID uuid.UUID
	log       *slog.Logger
	turns     []types.Turn
	invalid   int
	seq       int
	deadline  time.Time
	armIdle   func(time.Duration)
}

func (st *dialogueState) historyCopy() []types.Turn {
	out := make([]types.Turn, len(st.turns))
	copy(out, st.turns)
	return out
}

// handleFrame advances the gate by one frame and, when an utterance
// completes, runs the transcribe/exit/respond sequence. done reports that
// the dialogue ended (controller already transitioned to Sleeping).
func (c *Controller) handleFrame(ctx context.Context, st *dialogueState, f audio.Frame) (done bool, err error) {
	ev := c.deps.Gate.Feed(f)

	if ev.Began {
		if err := c.sm.to(StateCapturing, "speech onset"); err != nil {
			return false, err
		}
	}
	if ev.Discarded {
		if err := c.sm.to(StateListening, "utterance below keep threshold"); err != nil {
			return false, err
		}
		return c.invalidInput(ctx, st, "utterance too short")
	}
	if ev.Utterance == nil {
		return false, nil
	}

	u := ev.Utterance
	c.recordUtterance(ctx, u)

	text, err := c.transcribe(ctx, st.log, u)
	if err != nil {
		return false, err
	}
	if text == "" {
		if err := c.sm.to(StateListening, "empty transcript"); err != nil {
			return false, err
		}
		return c.invalidInput(ctx, st, "empty transcript")
	}

	// Valid input: the idle window and the invalid-input run start over.
	st.invalid = 0
	st.deadline = time.Now().Add(c.cfg.IdleTimeout)
	st.armIdle(c.cfg.IdleTimeout)
	st.log.Info("utterance transcribed", "text", text)

	if phrase, ok := c.exit.Match(text); ok {
		st.log.Info("exit phrase heard, ending dialogue", "phrase", phrase)
		return true, c.sleep("exit phrase")
	}

	if err := c.sm.to(StateResponding, "transcript accepted"); err != nil {
		return false, err
	}
	reply, err := c.respond(ctx, st, text)
	if ctx.Err() != nil {
		// Cancelled mid-response: the exchange never completed, so nothing
		// is appended.
		return false, ctx.Err()
	}

	c.append(ctx, st, types.UserTurn(text))
	if err != nil {
		st.log.Error("responder failed, keeping the dialogue open", "error", err)
		if err := c.sm.to(StateListening, "responder failed"); err != nil {
			return false, err
		}
		return false, nil
	}
	c.append(ctx, st, types.AssistantTurn(reply))
	return false, c.sm.to(StateListening, "answer delivered")
}

// invalidInput counts one empty or discarded input and decides whether the
// dialogue survives it.
func (c *Controller) invalidInput(ctx context.Context, st *dialogueState, cause string) (done bool, err error) {
	st.invalid++
	c.recordInvalidInput(ctx)
	st.log.Info("invalid input", "cause", cause,
		"count", st.invalid, "max", c.cfg.MaxInvalidInputs)

	if st.invalid >= c.cfg.MaxInvalidInputs {
		st.log.Info("too many invalid inputs, going back to sleep")
		return true, c.sleep("invalid input limit")
	}
	// The capture may have outlived the idle window; only valid input
	// pushes the deadline.
	if !time.Now().Before(st.deadline) {
		st.log.Info("idle timeout, going back to sleep", "idle_timeout", c.cfg.IdleTimeout)
		return true, c.sleep("idle timeout")
	}
	return false, nil
}

// transcribe converts the utterance to text under the configured deadline.
// Timeouts and failures are absorbed into an empty transcript; only
// cancellation of the run context propagates as an error.
func (c *Controller) transcribe(ctx context.Context, log *slog.Logger, u *segment.Utterance) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, c.cfg.TranscribeTimeout)
	defer cancel()

	start := time.Now()
	text, err := c.deps.Transcriber.Transcribe(tctx, u.PCM)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		c.recordTranscription(ctx, elapsed, "ok")
		return strings.TrimSpace(text), nil
	case ctx.Err() != nil:
		return "", ctx.Err()
	case errors.Is(err, stt.ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		c.recordTranscription(ctx, elapsed, "timeout")
		log.Warn("transcription timed out, treating as empty input",
			"timeout", c.cfg.TranscribeTimeout, "utterance", u.Duration)
		return "", nil
	default:
		c.recordTranscription(ctx, elapsed, "error")
		log.Error("transcription failed, treating as empty input", "error", err)
		return "", nil
	}
}

// respond obtains the answer for text under the configured deadline. The
// responder context is this wake cycle's turns only.
func (c *Controller) respond(ctx context.Context, st *dialogueState, text string) (string, error) {
	rctx, cancel := context.WithTimeout(ctx, c.cfg.RespondTimeout)
	defer cancel()

	start := time.Now()
	reply, err := c.deps.Responder.Respond(rctx, text, st.historyCopy())
	elapsed := time.Since(start)

	if err != nil {
		c.recordResponse(ctx, elapsed, "error")
		return "", fmt.Errorf("session: respond: %w", err)
	}
	c.recordResponse(ctx, elapsed, "ok")
	st.log.Info("response generated", "reply", reply, "elapsed", elapsed)
	return strings.TrimSpace(reply), nil
}

// append adds a turn to the cycle's context and the lifetime history,
// delivers it to the observer, and archives it best-effort.
func (c *Controller) append(ctx context.Context, st *dialogueState, turn types.Turn) {
	st.turns = append(st.turns, turn)
	c.history = append(c.history, turn)
	seq := st.seq
	st.seq++

	if c.turnObserver != nil {
		c.turnObserver(turn)
	}
	if c.sink == nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, archiveWriteTimeout)
	defer cancel()
	if err := c.sink.WriteTurn(wctx, st.sessionID, seq, turn); err != nil {
		c.recordArchiveFailure(ctx)
		st.log.Error("turn archive write failed", "seq", seq, "error", err)
	}
}

func (c *Controller) sleep(reason string) error {
	return c.sm.to(StateSleeping, reason)
}

func (c *Controller) keywordName(idx int) string {
	if kws := c.deps.Wake.Keywords(); idx < len(kws) {
		return kws[idx]
	}
	return fmt.Sprintf("keyword-%d", idx)
}

func (c *Controller) historyCopy() []types.Turn {
	out := make([]types.Turn, len(c.history))
	copy(out, c.history)
	return out
}

// Metric helpers; all are no-ops without WithMetrics.

func (c *Controller) recordWake(ctx context.Context, keyword string) {
	if c.metrics != nil {
		c.metrics.RecordWakeDetection(ctx, keyword)
	}
}

func (c *Controller) recordUtterance(ctx context.Context, u *segment.Utterance) {
	if c.metrics != nil {
		c.metrics.RecordUtterance(ctx, u.Duration, u.ForcedEnd)
	}
}

func (c *Controller) recordTranscription(ctx context.Context, d time.Duration, status string) {
	if c.metrics != nil {
		c.metrics.RecordTranscription(ctx, d, status)
	}
}

func (c *Controller) recordResponse(ctx context.Context, d time.Duration, status string) {
	if c.metrics != nil {
		c.metrics.RecordResponse(ctx, d, status)
	}
}

func (c *Controller) recordInvalidInput(ctx context.Context) {
	if c.metrics != nil {
		c.metrics.RecordInvalidInput(ctx)
	}
}

func (c *Controller) recordArchiveFailure(ctx context.Context) {
	if c.metrics != nil {
		c.metrics.RecordArchiveFailure(ctx)
	}
}

func (c *Controller) addActiveSessions(ctx context.Context, delta int64) {
	if c.metrics != nil {
		c.metrics.AddActiveSessions(ctx, delta)
	}
}

func (c *Controller) addDroppedFrames(ctx context.Context, n int64) {
	if c.metrics != nil && n > 0 {
		c.metrics.AddDroppedFrames(ctx, n)
	}
}

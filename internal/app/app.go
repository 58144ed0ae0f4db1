// Package app wires all auricle subsystems into a running assistant.
//
// The App struct owns the full lifecycle: New creates and connects the
// capture pipeline, Run executes the session controller alongside the
// operational HTTP server, and Shutdown tears everything down in
// reverse-init order.
//
// For testing, inject mock implementations via functional options
// (WithSource, WithWake, etc.). When an option is not provided, New builds
// the real implementation from the config through the provider registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/auriclehq/auricle/internal/archive"
	"github.com/auriclehq/auricle/internal/config"
	"github.com/auriclehq/auricle/internal/health"
	"github.com/auriclehq/auricle/internal/observe"
	"github.com/auriclehq/auricle/internal/segment"
	"github.com/auriclehq/auricle/internal/session"
	"github.com/auriclehq/auricle/pkg/audio"
	"github.com/auriclehq/auricle/pkg/audio/malgo"
	"github.com/auriclehq/auricle/pkg/audio/wav"
	"github.com/auriclehq/auricle/pkg/provider/chat"
	"github.com/auriclehq/auricle/pkg/provider/stt"
	"github.com/auriclehq/auricle/pkg/provider/vad"
	"github.com/auriclehq/auricle/pkg/provider/wake"
	"github.com/auriclehq/auricle/pkg/types"
)

// serverShutdownGrace bounds how long Run waits for in-flight HTTP requests
// once the session controller has stopped.
const serverShutdownGrace = 5 * time.Second

// App owns all subsystem lifetimes and orchestrates the wake-word pipeline.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *observe.Metrics

	// Pipeline stages — initialised in New, torn down in Shutdown.
	source      audio.Source
	detector    wake.Detector
	classifier  vad.Classifier
	gate        *segment.Gate
	transcriber stt.Transcriber
	responder   chat.Responder
	sink        session.TurnSink
	store       *archive.Store
	controller  *session.Controller
	server      *http.Server

	turnObserver func(types.Turn)

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once

	mu      sync.Mutex
	history []types.Turn
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSource injects a capture source instead of opening a microphone.
func WithSource(s audio.Source) Option {
	return func(a *App) { a.source = s }
}

// WithWake injects a wake detector instead of creating one from config.
func WithWake(d wake.Detector) Option {
	return func(a *App) { a.detector = d }
}

// WithVAD injects a speech classifier instead of creating one from config.
func WithVAD(c vad.Classifier) Option {
	return func(a *App) { a.classifier = c }
}

// WithSTT injects a transcriber instead of creating one from config.
func WithSTT(t stt.Transcriber) Option {
	return func(a *App) { a.transcriber = t }
}

// WithChat injects a chat responder instead of creating one from config.
func WithChat(r chat.Responder) Option {
	return func(a *App) { a.responder = r }
}

// WithArchive injects a turn sink instead of connecting to PostgreSQL.
func WithArchive(s session.TurnSink) Option {
	return func(a *App) { a.sink = s }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// WithMetrics sets the metrics instruments. Defaults to the process-wide set.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithTurnObserver registers a callback invoked for every appended turn, in
// order. This is how the answer reaches the user.
func WithTurnObserver(fn func(types.Turn)) Option {
	return func(a *App) { a.turnObserver = fn }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New builds the full pipeline from cfg: capture source, wake detector, VAD
// classifier, segmentation gate, transcriber, responder, archive, session
// controller, and the operational HTTP server. Providers not injected via
// options are constructed through reg.
//
// Construction is synchronous and fails fast: the first step that cannot be
// built aborts New with an error naming the step, and everything already
// built is closed.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}

	ok := false
	defer func() {
		if !ok {
			a.closeAll()
		}
	}()

	// ── 1. Metrics instruments ───────────────────────────────────────────
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 2. Capture source ────────────────────────────────────────────────
	if err := a.initSource(); err != nil {
		return nil, fmt.Errorf("app: init capture source: %w", err)
	}

	// ── 3. Wake detector ─────────────────────────────────────────────────
	if err := a.initWake(reg); err != nil {
		return nil, fmt.Errorf("app: init wake detector: %w", err)
	}

	// ── 4. VAD classifier ────────────────────────────────────────────────
	if err := a.initClassifier(reg); err != nil {
		return nil, fmt.Errorf("app: init vad classifier: %w", err)
	}

	// ── 5. Segmentation gate ─────────────────────────────────────────────
	if err := a.initGate(); err != nil {
		return nil, fmt.Errorf("app: init segmentation gate: %w", err)
	}

	// ── 6. Transcriber ───────────────────────────────────────────────────
	if err := a.initTranscriber(reg); err != nil {
		return nil, fmt.Errorf("app: init transcriber: %w", err)
	}

	// ── 7. Chat responder ────────────────────────────────────────────────
	if err := a.initResponder(reg); err != nil {
		return nil, fmt.Errorf("app: init chat responder: %w", err)
	}

	// ── 8. Conversation archive ──────────────────────────────────────────
	if err := a.initArchive(ctx); err != nil {
		return nil, fmt.Errorf("app: init archive: %w", err)
	}

	// ── 9. Session controller ────────────────────────────────────────────
	if err := a.initController(); err != nil {
		return nil, fmt.Errorf("app: init session controller: %w", err)
	}

	// ── 10. Operational HTTP server ──────────────────────────────────────
	a.initServer()

	ok = true
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initSource opens the configured capture device unless one was injected.
func (a *App) initSource() error {
	if a.source != nil {
		return nil
	}

	src, err := malgo.New(malgo.Config{
		DeviceName:    a.cfg.Audio.Device,
		SampleRate:    a.cfg.Audio.SampleRate,
		FrameSamples:  a.cfg.Audio.SampleRate * a.cfg.Audio.FrameDurationMs / 1000,
		QueueCapacity: a.cfg.Audio.HandoffCapacity,
		Logger:        a.log,
	})
	if err != nil {
		return err
	}
	a.source = src
	a.closers = append(a.closers, src.Close)
	return nil
}

// initWake builds the wake detector and checks it agrees with the capture
// sample rate. The detector dictates its own frame length; the controller
// re-buffers for it.
func (a *App) initWake(reg *config.Registry) error {
	if a.detector == nil {
		det, err := reg.CreateWake(a.cfg.Wake)
		if err != nil {
			return err
		}
		a.detector = det
		a.closers = append(a.closers, det.Close)
	}

	if got := a.detector.SampleRate(); got != a.cfg.Audio.SampleRate {
		return fmt.Errorf("wake detector expects %d Hz but capture runs at %d Hz", got, a.cfg.Audio.SampleRate)
	}
	return nil
}

// initClassifier builds one per-stream classifier from the configured VAD
// engine unless one was injected.
func (a *App) initClassifier(reg *config.Registry) error {
	if a.classifier != nil {
		return nil
	}

	eng, err := reg.CreateVAD(a.cfg.VAD)
	if err != nil {
		return err
	}
	cls, err := eng.NewClassifier(vad.Config{
		SampleRate:     a.cfg.Audio.SampleRate,
		FrameSizeMs:    a.cfg.Audio.FrameDurationMs,
		Aggressiveness: a.cfg.VAD.Aggressiveness,
	})
	if err != nil {
		return err
	}
	a.classifier = cls
	a.closers = append(a.closers, cls.Close)
	return nil
}

// initGate assembles the segmentation gate over the classifier, with a WAV
// persister when a debug directory is configured.
func (a *App) initGate() error {
	gateCfg := segment.Config{
		FrameDuration:   time.Duration(a.cfg.Audio.FrameDurationMs) * time.Millisecond,
		PaddingDuration: time.Duration(a.cfg.Segmenter.PaddingMs) * time.Millisecond,
		TriggerRatio:    a.cfg.Segmenter.TriggerRatio,
		ReleaseSilence:  time.Duration(a.cfg.Segmenter.ReleaseSilenceMs) * time.Millisecond,
		MaxUtterance:    time.Duration(a.cfg.Segmenter.MaxUtteranceMs) * time.Millisecond,
		MinFramesToKeep: a.cfg.Segmenter.MinFramesToKeep,
	}

	gateOpts := []segment.Option{segment.WithLogger(a.log)}
	if dir := a.cfg.Segmenter.DebugWavDir; dir != "" {
		w := wav.NewWriter(afero.NewOsFs(), dir)
		gateOpts = append(gateOpts, segment.WithPersister(segment.NewWAVPersister(w)))
		a.log.Info("utterance debug recording enabled", "dir", dir)
	}

	gate, err := segment.NewGate(gateCfg, a.classifier, gateOpts...)
	if err != nil {
		return err
	}
	a.gate = gate
	return nil
}

// initTranscriber builds the STT provider unless one was injected.
func (a *App) initTranscriber(reg *config.Registry) error {
	if a.transcriber != nil {
		return nil
	}

	tr, err := reg.CreateSTT(a.cfg.STT)
	if err != nil {
		return err
	}
	a.transcriber = tr
	if c, ok := tr.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
	return nil
}

// initResponder builds the chat provider unless one was injected.
func (a *App) initResponder(reg *config.Registry) error {
	if a.responder != nil {
		return nil
	}

	r, err := reg.CreateChat(a.cfg.Chat)
	if err != nil {
		return err
	}
	a.responder = r
	if c, ok := r.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
	return nil
}

// initArchive connects the PostgreSQL conversation archive when a DSN is
// configured. A missing DSN disables archiving; turns then live only in the
// controller's in-memory history.
func (a *App) initArchive(ctx context.Context) error {
	if a.sink != nil || a.cfg.Archive.DSN == "" {
		return nil
	}

	store, err := archive.New(ctx, a.cfg.Archive.DSN)
	if err != nil {
		return err
	}
	a.store = store
	a.sink = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// initController assembles the session controller over the pipeline stages.
func (a *App) initController() error {
	sc := session.DefaultConfig()
	sc.ExitPhrases = a.cfg.Session.ExitPhrases
	sc.FuzzyExitThreshold = a.cfg.Session.FuzzyExitThreshold
	if a.cfg.Session.IdleTimeoutMs > 0 {
		sc.IdleTimeout = time.Duration(a.cfg.Session.IdleTimeoutMs) * time.Millisecond
	}
	if a.cfg.Session.MaxInvalidInputs > 0 {
		sc.MaxInvalidInputs = a.cfg.Session.MaxInvalidInputs
	}
	if a.cfg.STT.TimeoutMs > 0 {
		sc.TranscribeTimeout = time.Duration(a.cfg.STT.TimeoutMs) * time.Millisecond
	}

	ctrlOpts := []session.Option{
		session.WithLogger(a.log),
		session.WithMetrics(a.metrics),
	}
	if a.sink != nil {
		ctrlOpts = append(ctrlOpts, session.WithTurnSink(a.sink))
	}
	if a.turnObserver != nil {
		ctrlOpts = append(ctrlOpts, session.WithTurnObserver(a.turnObserver))
	}

	ctrl, err := session.New(sc, session.Deps{
		Source:      a.source,
		Wake:        a.detector,
		Gate:        a.gate,
		Transcriber: a.transcriber,
		Responder:   a.responder,
	}, ctrlOpts...)
	if err != nil {
		return err
	}
	a.controller = ctrl
	return nil
}

// initServer prepares the metrics/health listener. An empty address disables
// the operational surface entirely.
func (a *App) initServer() {
	if a.cfg.Server.MetricsAddr == "" {
		return
	}

	checkers := []health.Checker{health.Static("providers", nil)}
	if a.store != nil {
		checkers = append(checkers, health.Ping("archive", a.store))
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:              a.cfg.Server.MetricsAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run executes the session controller loop and, when configured, the
// metrics/health HTTP server. The first error from either — or ctx
// cancellation — stops both, and the listener also stops when the controller
// finishes cleanly. Run returns the conversation history captured across all
// dialogues for the caller to report.
func (a *App) Run(ctx context.Context) ([]types.Turn, error) {
	g, gctx := errgroup.WithContext(ctx)
	sessionDone := make(chan struct{})

	g.Go(func() error {
		defer close(sessionDone)
		history, err := a.controller.Run(gctx)
		a.mu.Lock()
		a.history = history
		a.mu.Unlock()
		return err
	})

	if a.server != nil {
		g.Go(func() error {
			a.log.Info("operational listener started", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: operational listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-sessionDone:
			}
			sctx, cancel := context.WithTimeout(context.Background(), serverShutdownGrace)
			defer cancel()
			return a.server.Shutdown(sctx)
		})
	}

	err := g.Wait()

	a.mu.Lock()
	history := a.history
	a.mu.Unlock()
	return history, err
}

// History returns the conversation captured by the last Run.
func (a *App) History() []types.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history
}

// DroppedFrames reports how many capture frames were evicted because the
// pipeline fell behind.
func (a *App) DroppedFrames() uint64 {
	return a.source.Dropped()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order, joining any
// closer errors. It respects the context deadline: if ctx expires before all
// closers finish, the remaining closers are skipped and the context error is
// included in the result.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		var errs []error
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", i+1)
				errs = append(errs, ctx.Err())
				shutdownErr = errors.Join(errs...)
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}

		shutdownErr = errors.Join(errs...)
		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases everything built so far when New fails partway through.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("cleanup error during failed init", "error", err)
		}
	}
	a.closers = nil
}

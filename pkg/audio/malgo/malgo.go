// Package malgo captures microphone audio through the miniaudio backend.
//
// The device callback runs on an audio thread owned by miniaudio; it only
// copies samples into the assembler and offers complete frames to the
// bounded hand-off, so it never blocks regardless of consumer speed.
package malgo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	malgolib "github.com/gen2brain/malgo"

	"github.com/auriclehq/auricle/pkg/audio"
)

// Config describes the capture device to open.
type Config struct {
	// DeviceName selects a capture device by its backend-reported name.
	// Empty selects the system default device.
	DeviceName string

	// SampleRate in Hz. The backend resamples if the hardware differs.
	SampleRate int

	// FrameSamples is the fixed number of 16-bit samples per delivered frame.
	FrameSamples int

	// QueueCapacity bounds the hand-off between the device callback and the
	// consumer. Defaults to 64 frames.
	QueueCapacity int

	// Logger receives device lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Source captures mono 16-bit PCM from a microphone and delivers fixed-size
// frames. It implements [audio.Source].
type Source struct {
	cfg     Config
	log     *slog.Logger
	handoff *audio.Handoff

	mctx   *malgolib.AllocatedContext
	device *malgolib.Device

	mu      sync.Mutex
	started bool
	closing bool
	devErr  error

	closeOnce sync.Once
	done      chan struct{}
}

var _ audio.Source = (*Source)(nil)

// New initializes the audio backend and prepares a capture source. The
// device itself is not opened until Start.
func New(cfg Config) (*Source, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("malgo source: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.FrameSamples <= 0 {
		return nil, fmt.Errorf("malgo source: frame samples must be positive, got %d", cfg.FrameSamples)
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 64
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	mctx, err := malgolib.InitContext(nil, malgolib.ContextConfig{}, func(message string) {
		log.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: init audio backend: %v", audio.ErrDevice, err)
	}

	return &Source{
		cfg:     cfg,
		log:     log,
		handoff: audio.NewHandoff(cfg.QueueCapacity),
		mctx:    mctx,
		done:    make(chan struct{}),
	}, nil
}

// Start opens the capture device and begins delivering frames. The stream
// ends when ctx is cancelled, Close is called, or the device fails; Err
// reports which.
func (s *Source) Start(ctx context.Context) (<-chan audio.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, fmt.Errorf("malgo source: already started")
	}

	deviceConfig := malgolib.DefaultDeviceConfig(malgolib.Capture)
	deviceConfig.Capture.Format = malgolib.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if s.cfg.DeviceName != "" {
		id, err := s.findDevice(s.cfg.DeviceName)
		if err != nil {
			return nil, err
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	asm := audio.NewAssembler(s.cfg.FrameSamples, s.cfg.SampleRate)
	onFrames := func(_, pSample []byte, framecount uint32) {
		if framecount == 0 {
			return
		}
		for _, f := range asm.Push(pSample, time.Now()) {
			s.handoff.Offer(f)
		}
	}
	onStop := func() {
		s.mu.Lock()
		deliberate := s.closing
		if !deliberate && s.devErr == nil {
			s.devErr = fmt.Errorf("%w: capture device stopped unexpectedly", audio.ErrDevice)
		}
		s.mu.Unlock()
		if !deliberate {
			s.log.Error("capture device stopped outside of shutdown")
			s.handoff.Close()
		}
	}

	device, err := malgolib.InitDevice(s.mctx.Context, deviceConfig, malgolib.DeviceCallbacks{
		Data: onFrames,
		Stop: onStop,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open capture device: %v", audio.ErrDevice, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("%w: start capture device: %v", audio.ErrDevice, err)
	}
	s.device = device
	s.started = true
	s.log.Info("capture started",
		"device", deviceName(s.cfg.DeviceName),
		"sampleRate", s.cfg.SampleRate,
		"frameSamples", s.cfg.FrameSamples,
	)

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s.handoff.Frames(), nil
}

// Err reports the device failure that terminated the stream, or nil after a
// clean stop.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devErr
}

// Dropped reports how many frames the hand-off evicted because the consumer
// fell behind.
func (s *Source) Dropped() uint64 {
	return s.handoff.Dropped()
}

// Close stops the device, releases the backend, and closes the frame
// channel. Safe to call more than once.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		device := s.device
		s.mu.Unlock()

		close(s.done)
		if device != nil {
			device.Uninit()
		}
		if err := s.mctx.Uninit(); err != nil {
			s.log.Warn("audio backend uninit failed", "error", err)
		}
		s.mctx.Free()
		s.handoff.Close()
		if dropped := s.handoff.Dropped(); dropped > 0 {
			s.log.Warn("frames dropped during capture", "count", dropped)
		}
	})
	return nil
}

// findDevice resolves a device name to its backend id. The caller holds s.mu.
func (s *Source) findDevice(name string) (malgolib.DeviceID, error) {
	infos, err := s.mctx.Context.Devices(malgolib.Capture)
	if err != nil {
		return malgolib.DeviceID{}, fmt.Errorf("%w: enumerate capture devices: %v", audio.ErrDevice, err)
	}
	for _, info := range infos {
		if info.Name() == name {
			return info.ID, nil
		}
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return malgolib.DeviceID{}, fmt.Errorf("%w: capture device %q not found (available: %s)",
		audio.ErrDevice, name, strings.Join(names, ", "))
}

// ListCaptureDevices enumerates the capture devices the backend can open.
func ListCaptureDevices() ([]audio.DeviceInfo, error) {
	mctx, err := malgolib.InitContext(nil, malgolib.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: init audio backend: %v", audio.ErrDevice, err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Context.Devices(malgolib.Capture)
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate capture devices: %v", audio.ErrDevice, err)
	}
	devices := make([]audio.DeviceInfo, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, audio.DeviceInfo{
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return devices, nil
}

func deviceName(name string) string {
	if name == "" {
		return "default"
	}
	return name
}

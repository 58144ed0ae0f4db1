package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is the root cause wrapped by every validation failure. A config
// that fails validation aborts startup; soft issues are logged as warnings
// instead.
var ErrInvalid = errors.New("config: invalid configuration")

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"wake": {"porcupine", "mock"},
	"vad":  {"silero", "energy", "mock"},
	"stt":  {"whisper", "stub", "mock"},
	"chat": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "rules", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Decoding starts from [Default], so keys absent from the document keep
// their default values. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. Hard problems
// are aggregated into a single error wrapping [ErrInvalid]; soft problems
// (missing optional credentials, disabled subsystems) are logged as warnings.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	switch cfg.Audio.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		errs = append(errs, fmt.Errorf("audio.sample_rate must be 8000, 16000, 32000, or 48000, got %d", cfg.Audio.SampleRate))
	}
	switch cfg.Audio.FrameDurationMs {
	case 10, 20, 30:
	default:
		errs = append(errs, fmt.Errorf("audio.frame_duration_ms must be 10, 20, or 30, got %d", cfg.Audio.FrameDurationMs))
	}
	if cfg.Audio.HandoffCapacity < 0 {
		errs = append(errs, fmt.Errorf("audio.handoff_capacity must not be negative, got %d", cfg.Audio.HandoffCapacity))
	}

	// Wake
	validateProviderName("wake", cfg.Wake.Name)
	if cfg.Wake.Name == "" {
		errs = append(errs, errors.New("wake.name is required"))
	}
	if len(cfg.Wake.Keywords) > 0 && len(cfg.Wake.KeywordPaths) > 0 {
		errs = append(errs, errors.New("wake.keywords and wake.keyword_paths are mutually exclusive"))
	}
	if n := len(cfg.Wake.Sensitivities); n > 0 {
		if want := len(cfg.Wake.Keywords) + len(cfg.Wake.KeywordPaths); n != want {
			errs = append(errs, fmt.Errorf("wake.sensitivities has %d entries for %d keywords", n, want))
		}
	}
	for i, s := range cfg.Wake.Sensitivities {
		if s < 0 || s > 1 {
			errs = append(errs, fmt.Errorf("wake.sensitivities[%d] %.2f is out of range [0, 1]", i, s))
		}
	}
	if cfg.Wake.Name == "porcupine" && cfg.Wake.APIKey == "" {
		slog.Warn("wake.api_key is empty; the porcupine access key will be resolved from PV_ACCESS_KEY")
	}

	// VAD
	validateProviderName("vad", cfg.VAD.Name)
	if cfg.VAD.Name == "" {
		errs = append(errs, errors.New("vad.name is required"))
	}
	if cfg.VAD.Aggressiveness < 0 || cfg.VAD.Aggressiveness > 3 {
		errs = append(errs, fmt.Errorf("vad.aggressiveness %d is out of range [0, 3]", cfg.VAD.Aggressiveness))
	}
	if cfg.VAD.Name == "silero" && cfg.VAD.ModelPath == "" {
		errs = append(errs, errors.New("vad.model_path is required for the silero engine"))
	}

	// STT
	validateProviderName("stt", cfg.STT.Name)
	if cfg.STT.Name == "" {
		errs = append(errs, errors.New("stt.name is required"))
	}
	if cfg.STT.Name == "whisper" && cfg.STT.ModelPath == "" {
		errs = append(errs, errors.New("stt.model_path is required for the whisper provider"))
	}
	if cfg.STT.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("stt.timeout_ms must not be negative, got %d", cfg.STT.TimeoutMs))
	}

	// Chat
	validateProviderName("chat", cfg.Chat.Name)
	if cfg.Chat.Name == "" {
		errs = append(errs, errors.New("chat.name is required"))
	}
	if cfg.Chat.Name == "openai" && cfg.Chat.APIKey == "" {
		slog.Warn("chat.api_key is empty; the OpenAI key will be resolved from OPENAI_API_KEY")
	}

	// Segmenter
	if cfg.Segmenter.PaddingMs <= 0 {
		errs = append(errs, fmt.Errorf("segmenter.padding_ms must be positive, got %d", cfg.Segmenter.PaddingMs))
	}
	if cfg.Segmenter.TriggerRatio <= 0 || cfg.Segmenter.TriggerRatio > 1 {
		errs = append(errs, fmt.Errorf("segmenter.trigger_ratio %.2f is out of range (0, 1]", cfg.Segmenter.TriggerRatio))
	}
	if cfg.Segmenter.ReleaseSilenceMs < 0 {
		errs = append(errs, fmt.Errorf("segmenter.release_silence_ms must not be negative, got %d", cfg.Segmenter.ReleaseSilenceMs))
	}
	if cfg.Segmenter.MaxUtteranceMs <= 0 {
		errs = append(errs, fmt.Errorf("segmenter.max_utterance_ms must be positive, got %d", cfg.Segmenter.MaxUtteranceMs))
	}
	if cfg.Segmenter.MinFramesToKeep < 0 {
		errs = append(errs, fmt.Errorf("segmenter.min_frames_to_keep must not be negative, got %d", cfg.Segmenter.MinFramesToKeep))
	}

	// Session
	if cfg.Session.IdleTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("session.idle_timeout_ms must be positive, got %d", cfg.Session.IdleTimeoutMs))
	}
	if cfg.Session.MaxInvalidInputs <= 0 {
		errs = append(errs, fmt.Errorf("session.max_invalid_inputs must be positive, got %d", cfg.Session.MaxInvalidInputs))
	}
	if cfg.Session.FuzzyExitThreshold < 0 || cfg.Session.FuzzyExitThreshold > 1 {
		errs = append(errs, fmt.Errorf("session.fuzzy_exit_threshold %.2f is out of range [0, 1]", cfg.Session.FuzzyExitThreshold))
	}

	// Archive
	if cfg.Archive.DSN == "" {
		slog.Warn("archive.dsn is empty; conversation turns will not be persisted")
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

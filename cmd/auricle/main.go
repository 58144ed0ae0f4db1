// Command auricle is the wake-word voice assistant front-end.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/auriclehq/auricle/internal/app"
	"github.com/auriclehq/auricle/internal/config"
	"github.com/auriclehq/auricle/internal/observe"
	"github.com/auriclehq/auricle/pkg/audio/malgo"
	"github.com/auriclehq/auricle/pkg/provider/chat"
	chatanyllm "github.com/auriclehq/auricle/pkg/provider/chat/anyllm"
	chatopenai "github.com/auriclehq/auricle/pkg/provider/chat/openai"
	"github.com/auriclehq/auricle/pkg/provider/chat/rules"
	"github.com/auriclehq/auricle/pkg/provider/stt"
	"github.com/auriclehq/auricle/pkg/provider/stt/stub"
	"github.com/auriclehq/auricle/pkg/provider/stt/whisper"
	"github.com/auriclehq/auricle/pkg/provider/vad"
	"github.com/auriclehq/auricle/pkg/provider/vad/energy"
	"github.com/auriclehq/auricle/pkg/provider/vad/silero"
	"github.com/auriclehq/auricle/pkg/provider/wake"
	"github.com/auriclehq/auricle/pkg/provider/wake/porcupine"
	"github.com/auriclehq/auricle/pkg/types"
)

// version is overridden at release time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listDevices := flag.Bool("list-devices", false, "list capture devices and exit")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("auricle %s\n", version)
		return 0
	}

	// ── .env ──────────────────────────────────────────────────────────────────
	// Access keys may live in a .env file next to the binary; a missing file
	// is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "auricle: load .env: %v\n", err)
		return 1
	}

	if *listDevices {
		return printCaptureDevices()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "auricle: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "auricle: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("auricle starting",
		"version", version,
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName:    "auricle",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, reg,
		app.WithLogger(logger),
		app.WithTurnObserver(printTurn),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("assistant ready — say the wake word, press Ctrl+C to quit")

	history, err := application.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
	}
	runFailed := err != nil && !errors.Is(err, context.Canceled)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}

	slog.Info("session report",
		"turns", len(history),
		"dropped_frames", application.DroppedFrames(),
	)
	slog.Info("goodbye")
	if runFailed {
		return 1
	}
	return 0
}

// printTurn delivers each appended turn to the terminal. This is the user's
// view of the conversation; everything else goes to the structured log.
func printTurn(turn types.Turn) {
	switch turn.Role {
	case types.RoleUser:
		fmt.Printf("you: %s\n", turn.Content)
	case types.RoleAssistant:
		fmt.Printf("auricle: %s\n", turn.Content)
	}
}

// printCaptureDevices implements the -list-devices mode.
func printCaptureDevices() int {
	devices, err := malgo.ListCaptureDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "auricle: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("no capture devices found")
		return 0
	}
	fmt.Println("capture devices (* = system default):")
	for _, d := range devices {
		marker := "  "
		if d.IsDefault {
			marker = "* "
		}
		fmt.Printf("%s%s\n", marker, d.Name)
	}
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmBackends are the chat backends served by the any-llm adapter with an
// API key resolved from config or the backend's own environment variable.
var anyllmBackends = []string{
	"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory constructs the real provider from its kind-specific config
// section.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Wake ──────────────────────────────────────────────────────────────────

	reg.RegisterWake("porcupine", func(c config.WakeConfig) (wake.Detector, error) {
		return porcupine.New(porcupine.Config{
			AccessKey:     envOr(c.APIKey, "PV_ACCESS_KEY"),
			Keywords:      c.Keywords,
			KeywordPaths:  c.KeywordPaths,
			ModelPath:     c.ModelPath,
			Sensitivities: c.Sensitivities,
		})
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("silero", func(c config.VADConfig) (vad.Engine, error) {
		return &silero.Engine{ModelPath: c.ModelPath}, nil
	})

	reg.RegisterVAD("energy", func(c config.VADConfig) (vad.Engine, error) {
		return &energy.Engine{}, nil
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(c config.STTConfig) (stt.Transcriber, error) {
		var opts []whisper.Option
		if c.Language != "" {
			opts = append(opts, whisper.WithLanguage(c.Language))
		}
		return whisper.New(c.ModelPath, opts...)
	})

	reg.RegisterSTT("stub", func(c config.STTConfig) (stt.Transcriber, error) {
		var opts []stub.Option
		if n := optInt(c.Options, "min_bytes"); n > 0 {
			opts = append(opts, stub.WithMinBytes(n))
		}
		if phrase := optString(c.Options, "phrase"); phrase != "" {
			opts = append(opts, stub.WithPhrase(phrase))
		}
		return stub.New(opts...), nil
	})

	// ── Chat ──────────────────────────────────────────────────────────────────

	reg.RegisterChat("openai", func(entry config.ProviderEntry) (chat.Responder, error) {
		var opts []chatopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, chatopenai.WithBaseURL(entry.BaseURL))
		}
		if prompt := optString(entry.Options, "system_prompt"); prompt != "" {
			opts = append(opts, chatopenai.WithSystemPrompt(prompt))
		}
		if temp, ok := optFloat(entry.Options, "temperature"); ok {
			opts = append(opts, chatopenai.WithTemperature(temp))
		}
		if n := optInt(entry.Options, "max_tokens"); n > 0 {
			opts = append(opts, chatopenai.WithMaxTokens(n))
		}
		return chatopenai.New(envOr(entry.APIKey, "OPENAI_API_KEY"), entry.Model, opts...)
	})

	// anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile share
	// the any-llm pattern: optional APIKey + optional BaseURL.
	for _, backendName := range anyllmBackends {
		reg.RegisterChat(backendName, func(entry config.ProviderEntry) (chat.Responder, error) {
			var backend []anyllmlib.Option
			if entry.APIKey != "" {
				backend = append(backend, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				backend = append(backend, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return chatanyllm.New(backendName, entry.Model,
				append(anyllmChatOptions(entry), chatanyllm.WithBackendOptions(backend...))...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterChat("ollama", func(entry config.ProviderEntry) (chat.Responder, error) {
		var backend []anyllmlib.Option
		if entry.BaseURL != "" {
			backend = append(backend, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return chatanyllm.New("ollama", entry.Model,
			append(anyllmChatOptions(entry), chatanyllm.WithBackendOptions(backend...))...)
	})

	reg.RegisterChat("rules", func(entry config.ProviderEntry) (chat.Responder, error) {
		return rules.New(), nil
	})
}

// anyllmChatOptions maps the shared Options keys onto any-llm chat options.
func anyllmChatOptions(entry config.ProviderEntry) []chatanyllm.Option {
	var opts []chatanyllm.Option
	if prompt := optString(entry.Options, "system_prompt"); prompt != "" {
		opts = append(opts, chatanyllm.WithSystemPrompt(prompt))
	}
	if temp, ok := optFloat(entry.Options, "temperature"); ok {
		opts = append(opts, chatanyllm.WithTemperature(temp))
	}
	if n := optInt(entry.Options, "max_tokens"); n > 0 {
		opts = append(opts, chatanyllm.WithMaxTokens(n))
	}
	return opts
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          auricle — startup            ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Wake", wakeSummary(cfg.Wake))
	printRow("VAD", cfg.VAD.Name)
	printRow("STT", providerSummary(cfg.STT.Name, cfg.STT.ModelPath))
	printRow("Chat", providerSummary(cfg.Chat.Name, cfg.Chat.Model))
	printRow("Device", deviceSummary(cfg.Audio.Device))
	if cfg.Archive.DSN != "" {
		printRow("Archive", "postgres")
	} else {
		printRow("Archive", "(disabled)")
	}
	if cfg.Server.MetricsAddr != "" {
		printRow("Metrics", cfg.Server.MetricsAddr)
	} else {
		printRow("Metrics", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len([]rune(value)) > 26 {
		value = string([]rune(value)[:25]) + "…"
	}
	fmt.Printf("║  %-8s : %-26s ║\n", kind, value)
}

func wakeSummary(c config.WakeConfig) string {
	switch {
	case len(c.Keywords) > 0:
		return c.Name + " [" + strings.Join(c.Keywords, ", ") + "]"
	case len(c.KeywordPaths) > 0:
		return fmt.Sprintf("%s [%d custom]", c.Name, len(c.KeywordPaths))
	default:
		return c.Name
	}
}

func providerSummary(name, detail string) string {
	if detail == "" {
		return name
	}
	return name + " / " + detail
}

func deviceSummary(name string) string {
	if name == "" {
		return "default"
	}
	return name
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// envOr returns value when non-empty, otherwise the named environment
// variable. Credentials resolve config-first.
func envOr(value, envKey string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envKey)
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optInt extracts an int value from a provider Options map. YAML decodes
// whole numbers as int; anything else yields 0.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	v, ok := opts[key]
	if !ok {
		return 0
	}
	n, ok := v.(int)
	if !ok {
		return 0
	}
	return n
}

// optFloat extracts a float value from a provider Options map. YAML decodes
// decimals as float64 and whole numbers as int; both are accepted.
func optFloat(opts map[string]any, key string) (float64, bool) {
	if opts == nil {
		return 0, false
	}
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

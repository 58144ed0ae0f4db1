package config_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/auriclehq/auricle/internal/config"
)

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "auricle.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Wake.Name != "porcupine" {
		t.Errorf("wake.name: got %q, want porcupine", cfg.Wake.Name)
	}
	if cfg.Server.MetricsAddr != ":9090" {
		t.Errorf("server.metrics_addr: got %q", cfg.Server.MetricsAddr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected a not-exist error, got: %v", err)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("wake: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for malformed YAML, got nil")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error should name the file, got: %v", err)
	}
}

func TestValidate_SoftIssuesDoNotFail(t *testing.T) {
	t.Parallel()
	// Missing credentials and a disabled archive are warnings, not errors:
	// the porcupine key and the OpenAI key both resolve from the environment
	// at construction time.
	yaml := `
wake:
  api_key: ""
chat:
  api_key: ""
archive:
  dsn: ""
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_UnknownProviderNameIsSoft(t *testing.T) {
	t.Parallel()
	// A third-party chat provider name only warns; the registry decides at
	// build time whether it exists.
	yaml := `
chat:
  name: my-custom-llm
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	if !slices.Contains(config.ValidProviderNames["wake"], "porcupine") {
		t.Error(`ValidProviderNames["wake"] should contain "porcupine"`)
	}
	if !slices.Contains(config.ValidProviderNames["vad"], "energy") {
		t.Error(`ValidProviderNames["vad"] should contain "energy"`)
	}
	if !slices.Contains(config.ValidProviderNames["stt"], "whisper") {
		t.Error(`ValidProviderNames["stt"] should contain "whisper"`)
	}
	if !slices.Contains(config.ValidProviderNames["chat"], "openai") {
		t.Error(`ValidProviderNames["chat"] should contain "openai"`)
	}
}

package porcupine_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/auriclehq/auricle/pkg/provider/wake"
	"github.com/auriclehq/auricle/pkg/provider/wake/porcupine"
)

func TestNew_MissingAccessKey(t *testing.T) {
	t.Parallel()

	_, err := porcupine.New(porcupine.Config{Keywords: []string{"jarvis"}})
	if !errors.Is(err, wake.ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}

	_, err = porcupine.New(porcupine.Config{AccessKey: "   ", Keywords: []string{"jarvis"}})
	if !errors.Is(err, wake.ErrNoCredential) {
		t.Fatalf("whitespace key: expected ErrNoCredential, got %v", err)
	}
}

func TestNew_MissingKeywords(t *testing.T) {
	t.Parallel()

	_, err := porcupine.New(porcupine.Config{AccessKey: "key"})
	if !errors.Is(err, wake.ErrNoKeyword) {
		t.Fatalf("expected ErrNoKeyword, got %v", err)
	}
}

func TestNew_BuiltinAndPathsConflict(t *testing.T) {
	t.Parallel()

	_, err := porcupine.New(porcupine.Config{
		AccessKey:    "key",
		Keywords:     []string{"jarvis"},
		KeywordPaths: []string{"custom.ppn"},
	})
	if err == nil {
		t.Fatal("expected error for mixed keyword sources")
	}
	if !strings.Contains(err.Error(), "not both") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestNew_SensitivityCountMismatch(t *testing.T) {
	t.Parallel()

	_, err := porcupine.New(porcupine.Config{
		AccessKey:     "key",
		Keywords:      []string{"jarvis", "computer"},
		Sensitivities: []float32{0.5},
	})
	if err == nil {
		t.Fatal("expected error for sensitivity count mismatch")
	}
	if !strings.Contains(err.Error(), "sensitivities") {
		t.Errorf("unexpected error message: %v", err)
	}
}

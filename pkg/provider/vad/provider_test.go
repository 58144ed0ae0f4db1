package vad_test

import (
	"strings"
	"testing"

	"github.com/auriclehq/auricle/pkg/provider/vad"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := vad.Config{SampleRate: 16000, FrameSizeMs: 30, Aggressiveness: 3}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name    string
		cfg     vad.Config
		wantMsg string
	}{
		{
			name:    "bad sample rate",
			cfg:     vad.Config{SampleRate: 44100, FrameSizeMs: 30, Aggressiveness: 1},
			wantMsg: "sample rate",
		},
		{
			name:    "bad frame size",
			cfg:     vad.Config{SampleRate: 16000, FrameSizeMs: 25, Aggressiveness: 1},
			wantMsg: "frame size",
		},
		{
			name:    "aggressiveness too high",
			cfg:     vad.Config{SampleRate: 16000, FrameSizeMs: 30, Aggressiveness: 4},
			wantMsg: "aggressiveness",
		},
		{
			name:    "aggressiveness negative",
			cfg:     vad.Config{SampleRate: 16000, FrameSizeMs: 30, Aggressiveness: -1},
			wantMsg: "aggressiveness",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestConfig_ValidateAggregatesAllProblems(t *testing.T) {
	t.Parallel()

	cfg := vad.Config{SampleRate: 1, FrameSizeMs: 1, Aggressiveness: 9}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"sample rate", "frame size", "aggressiveness"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("aggregate error missing %q: %v", want, err)
		}
	}
}

func TestConfig_FrameBytes(t *testing.T) {
	t.Parallel()

	cfg := vad.Config{SampleRate: 16000, FrameSizeMs: 30}
	if got := cfg.FrameBytes(); got != 960 {
		t.Errorf("FrameBytes: got %d, want 960", got)
	}
	cfg = vad.Config{SampleRate: 8000, FrameSizeMs: 10}
	if got := cfg.FrameBytes(); got != 160 {
		t.Errorf("FrameBytes: got %d, want 160", got)
	}
}

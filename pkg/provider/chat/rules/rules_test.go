package rules_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/auriclehq/auricle/pkg/provider/chat/rules"
)

func TestRespond_RuleSelection(t *testing.T) {
	t.Parallel()

	fixed := func() time.Time {
		return time.Date(2025, 3, 14, 14, 5, 0, 0, time.Local)
	}
	r := rules.New(rules.WithClock(fixed))

	tests := []struct {
		name string
		text string
		want string
	}{
		{"greeting", "你好", "你好！很高兴为你服务。"},
		{"greeting embedded", "诶你好呀", "你好！很高兴为你服务。"},
		{"time of day", "现在几点了", "现在是 14:05。"},
		{"time keyword", "报一下时间", "现在是 14:05。"},
		{"greeting wins over time", "你好，几点了", "你好！很高兴为你服务。"},
		{"echo fallback", "明天天气怎么样", "我听到了：明天天气怎么样，但我还不知道怎么回答。"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Respond(context.Background(), tt.text, nil)
			if err != nil {
				t.Fatalf("Respond failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Respond(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestRespond_UsesWallClockByDefault(t *testing.T) {
	t.Parallel()

	got, err := rules.New().Respond(context.Background(), "几点", nil)
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if !strings.HasPrefix(got, "现在是 ") || !strings.HasSuffix(got, "。") {
		t.Errorf("unexpected time reply: %q", got)
	}
}

func TestRespond_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rules.New().Respond(ctx, "你好", nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

package session

import (
	"errors"
	"sync"
	"testing"
)

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateSleeping, "sleeping"},
		{StateListening, "listening"},
		{StateCapturing, "capturing"},
		{StateResponding, "responding"},
		{State(42), "state(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestStateMachine_Transitions(t *testing.T) {
	t.Parallel()

	t.Run("starts sleeping", func(t *testing.T) {
		m := newStateMachine(nil)
		if got := m.State(); got != StateSleeping {
			t.Fatalf("initial state = %v, want sleeping", got)
		}
	})

	t.Run("full dialogue cycle", func(t *testing.T) {
		m := newStateMachine(nil)
		steps := []State{
			StateListening,  // wake
			StateCapturing,  // speech onset
			StateResponding, // transcript accepted
			StateListening,  // answer delivered
			StateSleeping,   // exit
		}
		for _, next := range steps {
			if err := m.to(next, "test"); err != nil {
				t.Fatalf("transition to %v failed: %v", next, err)
			}
		}
		if got := m.State(); got != StateSleeping {
			t.Fatalf("final state = %v, want sleeping", got)
		}
	})

	t.Run("every state can fall back to sleeping", func(t *testing.T) {
		paths := [][]State{
			{StateListening, StateSleeping},
			{StateListening, StateCapturing, StateSleeping},
			{StateListening, StateCapturing, StateResponding, StateSleeping},
		}
		for _, path := range paths {
			m := newStateMachine(nil)
			for _, next := range path {
				if err := m.to(next, "test"); err != nil {
					t.Fatalf("path %v: transition to %v failed: %v", path, next, err)
				}
			}
		}
	})

	t.Run("sleeping cannot respond", func(t *testing.T) {
		m := newStateMachine(nil)
		err := m.to(StateResponding, "test")

		var ite *InvalidTransitionError
		if !errors.As(err, &ite) {
			t.Fatalf("error = %v, want InvalidTransitionError", err)
		}
		if ite.From != StateSleeping || ite.To != StateResponding {
			t.Errorf("error = %v, want sleeping -> responding", ite)
		}
		if got := m.State(); got != StateSleeping {
			t.Errorf("state after rejected transition = %v, want sleeping", got)
		}
	})

	t.Run("capture cannot begin while asleep", func(t *testing.T) {
		m := newStateMachine(nil)
		if err := m.to(StateCapturing, "test"); err == nil {
			t.Fatal("expected sleeping -> capturing to be rejected")
		}
	})
}

func TestStateMachine_ObserverSeesEveryTransition(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var seen []Transition
	m := newStateMachine(func(tr Transition) {
		mu.Lock()
		seen = append(seen, tr)
		mu.Unlock()
	})

	if err := m.to(StateListening, "wake word detected"); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if err := m.to(StateSleeping, "idle timeout"); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	// Rejected transitions are not observed.
	if err := m.to(StateResponding, "test"); err == nil {
		t.Fatal("expected rejected transition")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []Transition{
		{From: StateSleeping, To: StateListening, Reason: "wake word detected"},
		{From: StateListening, To: StateSleeping, Reason: "idle timeout"},
	}
	if len(seen) != len(want) {
		t.Fatalf("observed %d transitions, want %d: %v", len(seen), len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %+v, want %+v", i, seen[i], want[i])
		}
	}
}

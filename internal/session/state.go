package session

import (
	"fmt"
	"sync"
)

// State is the controller's position in the wake/dialogue lifecycle.
type State int

const (
	// StateSleeping means the controller is passively watching the frame
	// stream for the wake word.
	StateSleeping State = iota

	// StateListening means the controller is awake and waiting for the
	// gate to detect the next utterance.
	StateListening

	// StateCapturing means an utterance is being recorded; it covers the
	// transcription of the finished recording as well.
	StateCapturing

	// StateResponding means the controller is waiting for the responder's
	// answer to an accepted transcript.
	StateResponding
)

// String renders the lower-case state name.
func (s State) String() string {
	switch s {
	case StateSleeping:
		return "sleeping"
	case StateListening:
		return "listening"
	case StateCapturing:
		return "capturing"
	case StateResponding:
		return "responding"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// validTransitions lists the allowed moves through the lifecycle. Every
// state may fall back to Sleeping: exit phrase, idle timeout, the
// invalid-input limit, and cancellation all end the dialogue from wherever
// it is.
var validTransitions = map[State][]State{
	StateSleeping:   {StateListening},
	StateListening:  {StateCapturing, StateSleeping},
	StateCapturing:  {StateListening, StateResponding, StateSleeping},
	StateResponding: {StateListening, StateSleeping},
}

// InvalidTransitionError reports a state change the lifecycle does not
// allow. Seeing one means a controller bug, not a runtime condition.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("session: invalid transition from %s to %s", e.From, e.To)
}

// Transition records one observed state change.
type Transition struct {
	From   State
	To     State
	Reason string
}

// stateMachine validates and tracks lifecycle transitions. The controller
// goroutine is the sole writer; State may be read from any goroutine.
type stateMachine struct {
	mu       sync.RWMutex
	current  State
	observer func(Transition)
}

func newStateMachine(observer func(Transition)) *stateMachine {
	return &stateMachine{current: StateSleeping, observer: observer}
}

// State returns the current state.
func (m *stateMachine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// to moves the machine to next, rejecting moves outside validTransitions.
// The observer, when set, is invoked outside the lock.
func (m *stateMachine) to(next State, reason string) error {
	m.mu.Lock()
	from := m.current
	if !transitionAllowed(from, next) {
		m.mu.Unlock()
		return &InvalidTransitionError{From: from, To: next}
	}
	m.current = next
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer(Transition{From: from, To: next, Reason: reason})
	}
	return nil
}

func transitionAllowed(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

package strategy

import "sync"

type StateMachine struct {
	mu    sync.Mutex
	state State
}

func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateStopped}
}

func (s *StateMachine) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply moves to the next state and reports whether the state changed.
func (s *StateMachine) Apply(event Event) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := nextState(s.state, event)
	changed := next != s.state
	s.state = next
	return next, changed
}

func nextState(current State, event Event) State {
	switch current {
	case StateStopped:
		if event == EventStart {
			return StateRunning
		}
	case StateRunning:
		if event == EventStop {
			return StateStopped
		}
	}
	return current
}

// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     assistant
// Description: Conversation turn-taking state machine
// License:     MIT
// ============================================================================

package assistant

import (
	"sync"
	"time"
)

// State represents the current conversation state
type State int

const (
	// StateIdle - waiting for activation
	StateIdle State = iota

	// StateRecording - capturing user speech
	StateRecording

	// StateAwaitingResponse - capture finalized, waiting for the server
	StateAwaitingResponse

	// StateSpeaking - playing back the assistant's reply
	StateSpeaking
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateAwaitingResponse:
		return "awaiting response"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// StateMachine manages conversation state transitions
type StateMachine struct {
	mu            sync.RWMutex
	currentState  State
	previousState State
	stateTime     time.Time
	listeners     []StateChangeListener
}

// StateChangeListener is called when state changes
type StateChangeListener func(oldState, newState State)

// NewStateMachine creates a new state machine
func NewStateMachine() *StateMachine {
	return &StateMachine{
		currentState: StateIdle,
		stateTime:    time.Now(),
		listeners:    make([]StateChangeListener, 0),
	}
}

// Current returns the current state
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

// Previous returns the previous state
func (sm *StateMachine) Previous() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.previousState
}

// StateDuration returns how long the current state has been held
func (sm *StateMachine) StateDuration() time.Duration {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return time.Since(sm.stateTime)
}

// Transition changes to a new state. It returns false and leaves the
// state untouched when the transition is not valid, which is how the
// coordinator refuses to record over playback or vice versa.
func (sm *StateMachine) Transition(newState State) bool {
	sm.mu.Lock()
	oldState := sm.currentState

	if !sm.isValidTransition(oldState, newState) {
		sm.mu.Unlock()
		return false
	}

	sm.previousState = oldState
	sm.currentState = newState
	sm.stateTime = time.Now()
	listeners := sm.listeners
	sm.mu.Unlock()

	for _, listener := range listeners {
		listener(oldState, newState)
	}

	return true
}

// AddListener adds a state change listener
func (sm *StateMachine) AddListener(listener StateChangeListener) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, listener)
}

// isValidTransition checks if a state transition is valid
func (sm *StateMachine) isValidTransition(from, to State) bool {
	// Idle permits Speaking because a reply to a queued message can
	// arrive after the turn already settled back to idle
	validTransitions := map[State][]State{
		StateIdle:             {StateRecording, StateSpeaking},
		StateRecording:        {StateAwaitingResponse, StateIdle},
		StateAwaitingResponse: {StateSpeaking, StateIdle},
		StateSpeaking:         {StateIdle},
	}

	validTargets, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, valid := range validTargets {
		if valid == to {
			return true
		}
	}

	return false
}

// IsActive returns true while a conversation turn is in flight
func (sm *StateMachine) IsActive() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState != StateIdle
}

// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     assistant
// Description: Tests for the turn-taking state machine
// License:     MIT
// ============================================================================

package assistant

import "testing"

func TestStateMachine_ValidTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
		want bool
	}{
		{"full turn", []State{StateRecording, StateAwaitingResponse, StateSpeaking, StateIdle}, true},
		{"turn without audio reply", []State{StateRecording, StateAwaitingResponse, StateIdle}, true},
		{"cancelled recording", []State{StateRecording, StateIdle}, true},
		{"late reply playback", []State{StateSpeaking, StateIdle}, true},
		{"record while speaking", []State{StateSpeaking, StateRecording}, false},
		{"speak while recording", []State{StateRecording, StateSpeaking}, false},
		{"skip straight to awaiting", []State{StateAwaitingResponse}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine()
			ok := true
			for _, s := range tt.path {
				ok = sm.Transition(s)
				if !ok {
					break
				}
			}
			if ok != tt.want {
				t.Errorf("path %v allowed = %v, want %v", tt.path, ok, tt.want)
			}
		})
	}
}

func TestStateMachine_InvalidTransitionLeavesStateUntouched(t *testing.T) {
	sm := NewStateMachine()
	sm.Transition(StateRecording)

	if sm.Transition(StateSpeaking) {
		t.Fatal("recording to speaking must be refused")
	}
	if sm.Current() != StateRecording {
		t.Errorf("state = %v after refused transition, want recording", sm.Current())
	}
}

func TestStateMachine_ListenersNotified(t *testing.T) {
	sm := NewStateMachine()

	var got []State
	sm.AddListener(func(old, new State) {
		got = append(got, new)
	})

	sm.Transition(StateRecording)
	sm.Transition(StateAwaitingResponse)
	sm.Transition(StateIdle)

	want := []State{StateRecording, StateAwaitingResponse, StateIdle}
	if len(got) != len(want) {
		t.Fatalf("saw %d notifications, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStateMachine_IsActive(t *testing.T) {
	sm := NewStateMachine()
	if sm.IsActive() {
		t.Error("idle machine reported active")
	}
	sm.Transition(StateRecording)
	if !sm.IsActive() {
		t.Error("recording machine reported inactive")
	}
}

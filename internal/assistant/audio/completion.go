// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     audio
// Description: Single-resolution playback completion
// License:     MIT
// ============================================================================

package audio

import (
	"sync"
)

// PlayOutcome describes how a playback ended
type PlayOutcome int

const (
	// PlayFinished - the clip played to its end
	PlayFinished PlayOutcome = iota

	// PlayStopped - playback was cancelled (new playback or explicit stop)
	PlayStopped

	// PlayFailed - the output device reported an error
	PlayFailed
)

// String returns the string representation of the outcome
func (o PlayOutcome) String() string {
	switch o {
	case PlayFinished:
		return "finished"
	case PlayStopped:
		return "stopped"
	case PlayFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Completion resolves exactly once, whatever the outcome. The guard is
// structural: resolve is gated by sync.Once, so a playback path that
// both fails and is stopped still signals a single result.
type Completion struct {
	once sync.Once
	ch   chan PlayResult
}

// PlayResult carries the outcome and, for PlayFailed, the error
type PlayResult struct {
	Outcome PlayOutcome
	Err     error
}

// NewCompletion creates an unresolved completion
func NewCompletion() *Completion {
	return &Completion{ch: make(chan PlayResult, 1)}
}

// Resolve records the result. Second and later calls are ignored.
func (c *Completion) Resolve(outcome PlayOutcome, err error) {
	c.once.Do(func() {
		c.ch <- PlayResult{Outcome: outcome, Err: err}
		close(c.ch)
	})
}

// Done returns a channel that yields the single result and then closes
func (c *Completion) Done() <-chan PlayResult {
	return c.ch
}

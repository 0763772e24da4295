// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     stt
// Description: Speech-to-text capability interface
// License:     MIT
// ============================================================================

package stt

import (
	"context"
)

// Result is one recognizer hypothesis. Non-final results may be
// superseded; a final result is the recognizer's confirmed text for the
// session so far.
type Result struct {
	// Text is the transcribed text
	Text string

	// Final marks a confirmed hypothesis
	Final bool
}

// Recognizer is the interface for streaming speech-to-text engines.
// The engine feeds captured frames in and reads hypotheses out; the
// recognizer being unavailable is never fatal to capture.
type Recognizer interface {
	// Start begins a recognition session for audio at the given sample rate
	Start(ctx context.Context, sampleRate int) error

	// Feed submits captured samples. Safe to call from the capture loop;
	// must not block on network I/O.
	Feed(samples []float32)

	// Results streams partial and final hypotheses
	Results() <-chan Result

	// Close ends the session and releases resources
	Close() error
}

// Config holds recognizer configuration
type Config struct {
	// BaseURL is the recognizer service endpoint
	BaseURL string

	// Language is the target language (e.g., "en", "de", "auto")
	Language string

	// IntervalMs is how often buffered audio is (re)submitted while
	// capturing, in milliseconds
	IntervalMs int

	// TimeoutSeconds bounds a single transcription request
	TimeoutSeconds int
}

// DefaultConfig returns default recognizer configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:8000",
		Language:       "en",
		IntervalMs:     2000,
		TimeoutSeconds: 10,
	}
}

// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     vad
// Description: Voice activity detection interface and silence tracking
// License:     MIT
// ============================================================================

package vad

import (
	"sync"
	"time"
)

// Detector is the interface for voice activity detection
type Detector interface {
	// Process processes audio samples and returns whether speech is detected
	Process(samples []float32) (bool, error)

	// ProcessInt16 processes 16-bit integer samples
	ProcessInt16(samples []int16) (bool, error)

	// Close releases resources
	Close() error
}

// Config holds VAD configuration
type Config struct {
	// SampleRate is the audio sample rate (typically 8000, 16000, 32000, or 48000)
	SampleRate int

	// Mode/Aggressiveness (0-3 for WebRTC VAD, higher = more aggressive filtering)
	Mode int

	// EnergyThreshold is the RMS energy above which a frame counts as speech
	// (energy engine only)
	EnergyThreshold float64

	// SilenceDuration is how long continuous silence must last to end a recording
	SilenceDuration time.Duration

	// MinSpeechDuration is the minimum speech duration to be considered valid
	MinSpeechDuration time.Duration
}

// DefaultConfig returns default VAD configuration
func DefaultConfig() Config {
	return Config{
		SampleRate:        16000,
		Mode:              2,
		EnergyThreshold:   0.015,
		SilenceDuration:   2 * time.Second,
		MinSpeechDuration: 300 * time.Millisecond,
	}
}

// SpeechState is a snapshot of the tracker state
type SpeechState struct {
	// IsSpeaking indicates if speech is currently detected
	IsSpeaking bool

	// SpeechDuration is the accumulated speech duration
	SpeechDuration time.Duration

	// SilenceDuration is the length of the current continuous quiet stretch
	SilenceDuration time.Duration
}

// SilenceTracker turns per-frame speech decisions into a single
// end-of-utterance signal. The inactivity window starts at Reset and
// restarts on every speech frame, so a recording with no speech at all
// still finalizes once the window elapses. The signal latches: after it
// fires it stays quiet until the next Reset.
type SilenceTracker struct {
	mu     sync.Mutex
	config Config
	now    func() time.Time

	started     time.Time
	quietSince  time.Time
	speechStart time.Time
	speechDur   time.Duration
	speaking    bool
	fired       bool
}

// NewSilenceTracker creates a tracker for one recording session
func NewSilenceTracker(cfg Config) *SilenceTracker {
	t := &SilenceTracker{
		config: cfg,
		now:    time.Now,
	}
	t.Reset()
	return t
}

// SetNow injects a clock, for deterministic tests
func (t *SilenceTracker) SetNow(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Reset re-arms the tracker for a new recording session
func (t *SilenceTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.now()
	t.started = n
	t.quietSince = n
	t.speechStart = time.Time{}
	t.speechDur = 0
	t.speaking = false
	t.fired = false
}

// Update feeds one frame decision. It returns true exactly once per
// session, at the moment the continuous quiet stretch reaches the
// configured silence duration.
func (t *SilenceTracker) Update(isSpeech bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.now()

	if isSpeech {
		if !t.speaking {
			t.speaking = true
			t.speechStart = n
		}
		t.quietSince = n
		return false
	}

	if t.speaking {
		t.speaking = false
		t.speechDur += n.Sub(t.speechStart)
		t.quietSince = n
	}

	if t.fired {
		return false
	}
	if n.Sub(t.quietSince) >= t.config.SilenceDuration {
		t.fired = true
		return true
	}
	return false
}

// State returns a snapshot of the current tracker state
func (t *SilenceTracker) State() SpeechState {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.now()
	s := SpeechState{
		IsSpeaking:     t.speaking,
		SpeechDuration: t.speechDur,
	}
	if t.speaking {
		s.SpeechDuration += n.Sub(t.speechStart)
	} else {
		s.SilenceDuration = n.Sub(t.quietSince)
	}
	return s
}

// IsValidSpeech returns true if enough speech has been captured
func (t *SilenceTracker) IsValidSpeech() bool {
	return t.State().SpeechDuration >= t.config.MinSpeechDuration
}

// SetSilenceDuration updates the silence duration threshold
func (t *SilenceTracker) SetSilenceDuration(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.config.SilenceDuration = d
}

// SilenceDuration returns the current silence duration threshold
func (t *SilenceTracker) SilenceDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.config.SilenceDuration
}

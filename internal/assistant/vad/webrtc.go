// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     vad
// Description: WebRTC VAD engine
// License:     MIT
// ============================================================================

package vad

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// WebRTCVAD wraps the WebRTC voice activity detector. Selectable via
// the vad_engine setting for environments where the energy threshold is
// too crude (noisy rooms, far-field peripherals).
type WebRTCVAD struct {
	vad        *webrtcvad.VAD
	sampleRate int
	mode       int
}

// NewWebRTCVAD creates a new WebRTC VAD instance
func NewWebRTCVAD(cfg Config) (*WebRTCVAD, error) {
	switch cfg.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("invalid sample rate %d for WebRTC VAD", cfg.SampleRate)
	}

	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC VAD: %w", err)
	}

	mode := cfg.Mode
	if mode < 0 {
		mode = 0
	}
	if mode > 3 {
		mode = 3
	}
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set VAD mode: %w", err)
	}

	return &WebRTCVAD{
		vad:        v,
		sampleRate: cfg.SampleRate,
		mode:       mode,
	}, nil
}

// Process processes float32 audio samples and returns whether speech is detected
func (w *WebRTCVAD) Process(samples []float32) (bool, error) {
	ints := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		ints[i] = int16(s * 32767)
	}
	return w.ProcessInt16(ints)
}

// ProcessInt16 processes 16-bit integer samples. The detector requires
// 10/20/30ms frames; input is split into 10ms frames and the result is
// true if any frame contains speech.
func (w *WebRTCVAD) ProcessInt16(samples []int16) (bool, error) {
	frameSize := w.sampleRate / 100 // 10ms

	if len(samples) < frameSize {
		padded := make([]int16, frameSize)
		copy(padded, samples)
		samples = padded
	}

	for i := 0; i+frameSize <= len(samples); i += frameSize {
		frame := samples[i : i+frameSize]

		raw := make([]byte, len(frame)*2)
		for j, s := range frame {
			raw[j*2] = byte(s)
			raw[j*2+1] = byte(s >> 8)
		}

		active, err := w.vad.Process(w.sampleRate, raw)
		if err != nil {
			return false, fmt.Errorf("VAD processing failed: %w", err)
		}
		if active {
			return true, nil
		}
	}

	return false, nil
}

// Mode returns the current aggressiveness mode
func (w *WebRTCVAD) Mode() int {
	return w.mode
}

// Close releases resources
func (w *WebRTCVAD) Close() error {
	return nil
}

// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     vad
// Description: Energy-based voice activity detection
// License:     MIT
// ============================================================================

package vad

import (
	"fmt"
	"math"
	"sync"
)

// EnergyDetector detects speech by comparing a smoothed RMS energy
// estimate against a fixed threshold. It needs no model or cgo and is
// the default engine. Smoothing keeps a single loud click between quiet
// frames from registering as speech and a single dropped frame inside
// an utterance from registering as silence.
type EnergyDetector struct {
	mu        sync.Mutex
	threshold float64
	smoothing float64
	estimate  float64
	primed    bool
}

// NewEnergyDetector creates an energy detector with the given RMS threshold
func NewEnergyDetector(cfg Config) (*EnergyDetector, error) {
	if cfg.EnergyThreshold <= 0 {
		return nil, fmt.Errorf("energy threshold must be positive, got %f", cfg.EnergyThreshold)
	}
	return &EnergyDetector{
		threshold: cfg.EnergyThreshold,
		smoothing: 0.5,
	}, nil
}

// Process processes float32 audio samples and returns whether speech is detected
func (d *EnergyDetector) Process(samples []float32) (bool, error) {
	if len(samples) == 0 {
		return false, fmt.Errorf("empty frame")
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.primed {
		d.estimate = rms
		d.primed = true
	} else {
		d.estimate = d.smoothing*rms + (1-d.smoothing)*d.estimate
	}

	return d.estimate >= d.threshold, nil
}

// ProcessInt16 processes 16-bit integer samples
func (d *EnergyDetector) ProcessInt16(samples []int16) (bool, error) {
	floats := make([]float32, len(samples))
	for i, s := range samples {
		floats[i] = float32(s) / 32768.0
	}
	return d.Process(floats)
}

// Estimate returns the current smoothed energy estimate
func (d *EnergyDetector) Estimate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.estimate
}

// SetThreshold updates the energy threshold
func (d *EnergyDetector) SetThreshold(threshold float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = threshold
}

// Close releases resources
func (d *EnergyDetector) Close() error {
	return nil
}

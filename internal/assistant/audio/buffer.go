// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     audio
// Description: Capture accumulation buffer
// License:     MIT
// ============================================================================

package audio

import (
	"sync"
)

// Buffer accumulates capture samples for one recording session
type Buffer struct {
	mu      sync.RWMutex
	samples []float32
}

// NewBuffer creates a buffer pre-sized for roughly ten seconds at 16kHz
func NewBuffer() *Buffer {
	return &Buffer{
		samples: make([]float32, 0, 16000*10),
	}
}

// Append adds samples to the buffer
func (b *Buffer) Append(samples []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = append(b.samples, samples...)
}

// Snapshot returns a copy of all accumulated samples
func (b *Buffer) Snapshot() []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]float32, len(b.samples))
	copy(out, b.samples)
	return out
}

// Len returns the number of samples
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// DurationSeconds returns the buffered duration at the given sample rate
func (b *Buffer) DurationSeconds(sampleRate float64) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(b.samples)) / sampleRate
}

// Clear empties the buffer, keeping its capacity
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = b.samples[:0]
}

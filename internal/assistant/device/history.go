// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     device
// Description: Most-recently-used device history
// License:     MIT
// ============================================================================

package device

import (
	"sync"
)

// DefaultHistoryCap bounds the device history
const DefaultHistoryCap = 10

// History is a bounded most-recently-used set of devices, unique by id,
// most recent first. Entries enter on successful connect and leave only
// by eviction at capacity.
type History struct {
	mu      sync.RWMutex
	cap     int
	entries []Device
}

// NewHistory creates a history bounded to cap entries (DefaultHistoryCap
// when cap <= 0)
func NewHistory(cap int) *History {
	if cap <= 0 {
		cap = DefaultHistoryCap
	}
	return &History{cap: cap}
}

// Load replaces the contents from a persisted snapshot, enforcing the
// bound and uniqueness
func (h *History) Load(devices []Device) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = h.entries[:0]
	seen := make(map[string]bool, len(devices))
	for _, d := range devices {
		if seen[d.ID] || len(h.entries) >= h.cap {
			continue
		}
		seen[d.ID] = true
		h.entries = append(h.entries, d)
	}
}

// Touch moves or inserts the device at the front, evicting the oldest
// entry beyond capacity
func (h *History) Touch(d Device) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, existing := range h.entries {
		if existing.ID == d.ID {
			copy(h.entries[1:i+1], h.entries[:i])
			h.entries[0] = d
			return
		}
	}

	h.entries = append([]Device{d}, h.entries...)
	if len(h.entries) > h.cap {
		h.entries = h.entries[:h.cap]
	}
}

// Devices returns a copy of the history, most recent first
func (h *History) Devices() []Device {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Device, len(h.entries))
	copy(out, h.entries)
	return out
}

// Front returns the most recently connected device
func (h *History) Front() (Device, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return Device{}, false
	}
	return h.entries[0], true
}

// Len returns the number of entries
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     session
// Description: FIFO buffer for outbound messages that missed the link
// License:     MIT
// ============================================================================

package session

import (
	"sync"
	"time"
)

// PendingOutbound is one undeliverable outbound message. The payload is
// the fully encoded wire message so draining needs no re-assembly.
type PendingOutbound struct {
	Payload           []byte    `json:"payload"`
	OriginalMessageID string    `json:"original_message_id"`
	EnqueuedAt        time.Time `json:"enqueued_at"`
}

// OfflineQueue buffers outbound messages while the session is down.
// Draining hands out exactly one entry per call so a reconnect never
// floods the fresh link.
type OfflineQueue struct {
	mu      sync.Mutex
	entries []PendingOutbound
}

// NewOfflineQueue creates an empty queue
func NewOfflineQueue() *OfflineQueue {
	return &OfflineQueue{}
}

// Enqueue appends a pending message to the tail
func (q *OfflineQueue) Enqueue(p PendingOutbound) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, p)
}

// DrainOne removes and returns the head entry. A dequeued entry is
// never re-enqueued by the queue itself; a failed send is the caller's
// to report.
func (q *OfflineQueue) DrainOne() (PendingOutbound, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return PendingOutbound{}, false
	}
	head := q.entries[0]
	q.entries = q.entries[1:]
	return head, true
}

// Len returns the number of pending entries
func (q *OfflineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns a copy of the pending entries for persistence
func (q *OfflineQueue) Snapshot() []PendingOutbound {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingOutbound, len(q.entries))
	copy(out, q.entries)
	return out
}

// Load replaces the queue contents, preserving the given order
func (q *OfflineQueue) Load(entries []PendingOutbound) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = make([]PendingOutbound, len(entries))
	copy(q.entries, entries)
}

// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     assistant
// Description: Conversation log and message model
// License:     MIT
// ============================================================================

package assistant

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// DeliveryState tracks what happened to an outbound message
type DeliveryState string

const (
	DeliverySent      DeliveryState = "sent"
	DeliveryQueued    DeliveryState = "queued"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryFailed    DeliveryState = "failed"
)

// Message is one entry in the conversation log
type Message struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	Sender        Sender        `json:"sender"`
	CreatedAt     time.Time     `json:"created_at"`
	DeliveryState DeliveryState `json:"delivery_state,omitempty"`
}

// NewMessage creates a message with a fresh id
func NewMessage(sender Sender, text string) Message {
	return Message{
		ID:        uuid.New().String(),
		Text:      text,
		Sender:    sender,
		CreatedAt: time.Now(),
	}
}

// DefaultLogCap bounds the conversation log
const DefaultLogCap = 100

// ConversationLog is an insertion-ordered, bounded message log. The
// only in-place mutations are delivery-state updates and overwriting a
// user message's text with the server-confirmed transcript.
type ConversationLog struct {
	mu   sync.RWMutex
	cap  int
	msgs []Message
}

// NewConversationLog creates an empty log. A non-positive cap selects
// the default bound.
func NewConversationLog(cap int) *ConversationLog {
	if cap <= 0 {
		cap = DefaultLogCap
	}
	return &ConversationLog{cap: cap}
}

// Append adds a message to the tail, evicting the oldest beyond the cap
func (l *ConversationLog) Append(m Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, m)
	if len(l.msgs) > l.cap {
		l.msgs = l.msgs[len(l.msgs)-l.cap:]
	}
}

// Messages returns a copy of the log in insertion order
func (l *ConversationLog) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Len returns the number of messages
func (l *ConversationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

// SetDelivery updates the delivery state of the message with the given
// id. It reports whether the message was found.
func (l *ConversationLog) SetDelivery(id string, state DeliveryState) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.msgs {
		if l.msgs[i].ID == id {
			l.msgs[i].DeliveryState = state
			return true
		}
	}
	return false
}

// SetText overwrites the text of the message with the given id,
// preserving its position and identity. Used to replace a local
// transcript with the server-confirmed one.
func (l *ConversationLog) SetText(id, text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.msgs {
		if l.msgs[i].ID == id {
			l.msgs[i].Text = text
			return true
		}
	}
	return false
}

// Clear atomically replaces the log with empty
func (l *ConversationLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = nil
}

// Load replaces the log contents, trimming to the most recent entries
func (l *ConversationLog) Load(msgs []Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(msgs) > l.cap {
		msgs = msgs[len(msgs)-l.cap:]
	}
	l.msgs = make([]Message, len(msgs))
	copy(l.msgs, msgs)
}

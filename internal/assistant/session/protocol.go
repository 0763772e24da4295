// ============================================================================
// aura - Hands-free Conversational Voice Client
// ============================================================================
//
// Package:     session
// Description: JSON wire messages exchanged with the assistant server
// License:     MIT
// ============================================================================

package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire message types
const (
	TypeAudioMessage = "audioMessage"
	TypeTextMessage  = "textMessage"
	TypeAIResponse   = "aiResponse"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeError        = "error"
)

// AudioMessage carries a finalized voice clip to the server
type AudioMessage struct {
	Type          string `json:"type"`
	Audio         string `json:"audio"` // base64 clip
	Transcription string `json:"transcription"`
	UserID        string `json:"userId"`
	UserName      string `json:"userName"`
	Voice         string `json:"voice"`
	Timestamp     int64  `json:"timestamp"`
	MessageID     string `json:"messageId"`
}

// TextMessage carries a typed message to the server
type TextMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Voice     string `json:"voice"`
	Timestamp int64  `json:"timestamp"`
	MessageID string `json:"messageId"`
}

// AIResponse is the server's answer to an outbound message. MessageID
// refers back to the outbound message being answered.
type AIResponse struct {
	Type          string `json:"type"`
	Text          string `json:"text"`
	AudioBase64   string `json:"audioBase64,omitempty"`
	Transcription string `json:"transcription,omitempty"`
	MessageID     string `json:"messageId"`
}

// ServerError is an inbound error notification
type ServerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewAudioMessage builds an outbound audio message
func NewAudioMessage(id, audio, transcription, userID, userName, voice string) AudioMessage {
	return AudioMessage{
		Type:          TypeAudioMessage,
		Audio:         audio,
		Transcription: transcription,
		UserID:        userID,
		UserName:      userName,
		Voice:         voice,
		Timestamp:     time.Now().UnixMilli(),
		MessageID:     id,
	}
}

// NewTextMessage builds an outbound text message
func NewTextMessage(id, text, userID, userName, voice string) TextMessage {
	return TextMessage{
		Type:      TypeTextMessage,
		Text:      text,
		UserID:    userID,
		UserName:  userName,
		Voice:     voice,
		Timestamp: time.Now().UnixMilli(),
		MessageID: id,
	}
}

// pingMessage is the keepalive probe
type pingMessage struct {
	Type string `json:"type"`
}

// DecodeInbound parses a raw inbound frame. Pong frames decode to nil
// with no error since they carry no payload beyond proving liveness.
func DecodeInbound(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch envelope.Type {
	case TypeAIResponse:
		var resp AIResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("malformed aiResponse: %w", err)
		}
		return &resp, nil

	case TypeError:
		var serr ServerError
		if err := json.Unmarshal(data, &serr); err != nil {
			return nil, fmt.Errorf("malformed error frame: %w", err)
		}
		return &serr, nil

	case TypePong:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown message type %q", envelope.Type)
	}
}

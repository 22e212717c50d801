package models

import (
	"encoding/json"
	"time"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeBatch  MessageType = "batch"
	MessageTypeStatus MessageType = "status"
	MessageTypeAck    MessageType = "ack"
	MessageTypeError  MessageType = "error"
)

// Message is the envelope for all WebSocket communications with the
// collector's streaming ingest endpoint.
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the given type and payload
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadJSON,
		Timestamp: time.Now(),
	}, nil
}

// BatchMessage is the payload for MessageTypeBatch
type BatchMessage struct {
	Records []TelemetryRecord `json:"records"`
	Count   int               `json:"count"`
}

// StatusMessage is the payload for MessageTypeStatus
type StatusMessage struct {
	Record StatusRecord `json:"record"`
}

// AckMessage is the payload for MessageTypeAck. Code carries the
// HTTP-style result code for the batch that was just sent.
type AckMessage struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
}

// ErrorMessage is the payload for MessageTypeError
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnmarshalPayload unmarshals the message payload into the provided struct
func (m *Message) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

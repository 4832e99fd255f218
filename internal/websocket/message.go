package websocket

import (
	"time"

	"inkdown-client/internal/bus"

	"github.com/goccy/go-json"
)

type MessageType string

const (
	TypeEvent   MessageType = "event"
	TypeReload  MessageType = "reload"
	TypeAck     MessageType = "ack"
	TypePing    MessageType = "ping"
	TypePong    MessageType = "pong"
	TypeWelcome MessageType = "welcome"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventPayload is the wire form of a bus event.
type EventPayload struct {
	Kind   bus.Kind    `json:"kind"`
	NoteID string      `json:"note_id,omitempty"`
	Source string      `json:"source,omitempty"`
	At     time.Time   `json:"at"`
	Note   interface{} `json:"note,omitempty"`
}

type ReloadPayload struct {
	IncludeTrash bool `json:"include_trash"`
}

type AckPayload struct {
	Type    MessageType `json:"type"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
}

type WelcomePayload struct {
	ClientID string `json:"client_id"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func EventMessage(ev bus.Event) (*Message, error) {
	payload := EventPayload{
		Kind:   ev.Kind,
		NoteID: ev.NoteID,
		Source: ev.Source,
		At:     ev.At,
	}
	if ev.Note != nil {
		payload.Note = ev.Note
	}
	return NewMessage(TypeEvent, payload)
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

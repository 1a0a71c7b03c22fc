package domain

import (
	"encoding/json"
	"fmt"
)

// MessageType tags a page message.
type MessageType string

// Message types exchanged with connected pages.
const (
	// MessageDBReady tells a page the database is loaded.
	MessageDBReady MessageType = "DB_READY"
	// MessageDBError tells a page the database failed to load.
	MessageDBError MessageType = "DB_ERROR"
	// MessagePingDB asks the server for the current readiness.
	MessagePingDB MessageType = "PING_DB"
)

// Message is a tagged message between the server and a page.
type Message struct {
	Type  MessageType `json:"type" yaml:"type"`
	Error string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// ReadyMessage returns a DB_READY message.
func ReadyMessage() Message {
	return Message{Type: MessageDBReady}
}

// ErrorMessage returns a DB_ERROR message describing err.
func ErrorMessage(err error) Message {
	return Message{Type: MessageDBError, Error: Describe(err)}
}

// DecodeMessage decodes a raw page message.
// Anything that is not a JSON object with a known type fails with ErrProtocol.
func DecodeMessage(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, ErrProtocol.WithCause(err)
	}
	switch m.Type {
	case MessageDBReady, MessageDBError, MessagePingDB:
		return m, nil
	case "":
		return Message{}, ErrProtocol.WithDetails("missing type")
	default:
		return Message{}, ErrProtocol.WithDetails(fmt.Sprintf("unknown type %q", m.Type))
	}
}

// Package protocol defines the websocket wire format for realtime chat.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeMessage MessageType = "message"
	TypeTyping  MessageType = "typing"
	TypeError   MessageType = "error"
)

var ErrUnsupportedType = errors.New("unsupported message type")

// ErrEmptyContent is sent back verbatim when a client message carries no text.
var ErrEmptyContent = errors.New("Message content cannot be empty")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientMessage is an inbound chat turn or typing notification.
type ClientMessage struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content,omitempty"`
	Status  bool        `json:"status,omitempty"`
}

// MessageEvent carries an assistant answer to every subscriber of a
// conversation.
type MessageEvent struct {
	Type    MessageType     `json:"type"`
	Role    string          `json:"role"`
	Content string          `json:"content"`
	Sources json.RawMessage `json:"sources,omitempty"`
}

// TypingEvent signals that the assistant started or stopped composing.
type TypingEvent struct {
	Type   MessageType `json:"type"`
	Status bool        `json:"status"`
}

// ErrorEvent reports a failed turn.
type ErrorEvent struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

func NewMessageEvent(content string, sources json.RawMessage) MessageEvent {
	return MessageEvent{Type: TypeMessage, Role: "assistant", Content: content, Sources: sources}
}

func NewTypingEvent(status bool) TypingEvent {
	return TypingEvent{Type: TypeTyping, Status: status}
}

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message}
}

// ParseClientMessage decodes and validates one inbound frame. A "message"
// frame with blank content fails with ErrEmptyContent so the transport can
// echo the exact validation text back to the sender.
func ParseClientMessage(raw []byte) (ClientMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ClientMessage{}, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeMessage:
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return ClientMessage{}, err
		}
		if strings.TrimSpace(msg.Content) == "" {
			return ClientMessage{}, ErrEmptyContent
		}
		return msg, nil
	case TypeTyping:
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return ClientMessage{}, err
		}
		return msg, nil
	default:
		return ClientMessage{}, ErrUnsupportedType
	}
}

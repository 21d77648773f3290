package transport

import (
	"encoding/json"

	"github.com/tgolabs/chatkit/internal/domain"
)

// Status is the connection manager's externally visible state.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusInitializing  Status = "initializing"
	StatusReady         Status = "ready"
	StatusConnecting    Status = "connecting"
	StatusConnected     Status = "connected"
	StatusDisconnected  Status = "disconnected"
	StatusError         Status = "error"
)

// Custom event type markers for the AI stream lifecycle.
const (
	EventStreamStart   = "___TextMessageStart"
	EventStreamContent = "___TextMessageContent"
	EventStreamEnd     = "___TextMessageEnd"
)

// Message is an inbound real-time message from the backend.
type Message struct {
	MessageID   int64           `json:"message_id"`
	MessageSeq  int64           `json:"message_seq"`
	ClientMsgNo string          `json:"client_msg_no"`
	FromUID     string          `json:"from_uid"`
	ChannelID   string          `json:"channel_id"`
	ChannelType int             `json:"channel_type"`
	Timestamp   int64           `json:"timestamp"` // seconds
	Payload     json.RawMessage `json:"payload"`
}

// CustomEvent is an out-of-band event; streams use the ___TextMessage*
// markers with id carrying the stream's clientMsgNo.
type CustomEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Data string `json:"data"`
}

// SendResult is the transport's acknowledgement for one send.
type SendResult struct {
	ClientMsgNo string
	ReasonCode  domain.ReasonCode
}

// SendOptions carries per-send metadata.
type SendOptions struct {
	ClientMsgNo string
	Header      map[string]any
}

// frame is the JSON envelope exchanged over the websocket.
type frame struct {
	// client → server
	Cmd   string `json:"cmd,omitempty"`
	UID   string `json:"uid,omitempty"`
	Token string `json:"token,omitempty"`
	To    string `json:"to,omitempty"`

	// server → client
	Event string `json:"event,omitempty"`

	ChannelType int             `json:"channel_type,omitempty"`
	ClientMsgNo string          `json:"client_msg_no,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Header      map[string]any  `json:"header,omitempty"`

	MessageID  int64  `json:"message_id,omitempty"`
	MessageSeq int64  `json:"message_seq,omitempty"`
	FromUID    string `json:"from_uid,omitempty"`
	ChannelID  string `json:"channel_id,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
	ReasonCode int    `json:"reason_code,omitempty"`

	// custom events
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`
	Data string `json:"data,omitempty"`

	Message string `json:"message,omitempty"` // error detail
}

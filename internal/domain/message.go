package domain

import "time"

// Role identifies which side of the conversation authored a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// MessageStatus is a transient state for locally originated messages.
// The zero value means the message is settled.
type MessageStatus string

const (
	StatusNone      MessageStatus = ""
	StatusSending   MessageStatus = "sending"
	StatusUploading MessageStatus = "uploading"
)

// ReasonCode is the transport's delivery result for a sent message.
type ReasonCode int

const (
	ReasonUnknown ReasonCode = 0
	ReasonSuccess ReasonCode = 1
)

// Channel type values used by the platform.
const (
	ChannelTypePerson  = 1
	ChannelTypeGroup   = 2
	ChannelTypeService = 251
)

// ChatMessage is one entry in the canonical message list.
type ChatMessage struct {
	ID      string         `json:"id"`
	Role    Role           `json:"role"`
	Payload MessagePayload `json:"payload"`
	Time    time.Time      `json:"time"`

	// MessageSeq is present only for transport-assigned or historical
	// messages; monotonically increasing per channel. Zero means unset.
	MessageSeq int64 `json:"messageSeq,omitempty"`
	// ClientMsgNo correlates locally originated or streamed messages with
	// their authoritative transport echo.
	ClientMsgNo string `json:"clientMsgNo,omitempty"`

	FromUID     string `json:"fromUid,omitempty"`
	ChannelID   string `json:"channelId,omitempty"`
	ChannelType int    `json:"channelType,omitempty"`

	// StreamData buffers in-flight streamed text; cleared on finalize.
	StreamData string `json:"streamData,omitempty"`

	Status         MessageStatus `json:"status,omitempty"`
	UploadProgress int           `json:"uploadProgress,omitempty"`
	UploadError    string        `json:"uploadError,omitempty"`

	ReasonCode   ReasonCode `json:"reasonCode,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// HasSeq reports whether the message carries a transport-assigned sequence.
func (m ChatMessage) HasSeq() bool { return m.MessageSeq > 0 }

// StaffInfo is cached display info for a staff uid.
type StaffInfo struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

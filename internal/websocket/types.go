package websocket

import (
	"time"

	"github.com/hushwire/hushwire/internal/chat"
)

// Frame type tags on the chat wire protocol.
const (
	FrameTypePing    = "ping"
	FrameTypePong    = "pong"
	FrameTypeMessage = "message"
	FrameTypeState   = "state"
	FrameTypeError   = "error"
)

// InboundFrame is a client-to-server frame. Only ping and message frames
// exist; anything else is dropped.
type InboundFrame struct {
	Type               string     `json:"type"`
	Message            string     `json:"message,omitempty"`
	EncryptionType     string     `json:"encryption_type,omitempty"`
	IsBurnAfterReading bool       `json:"is_burn_after_reading,omitempty"`
	BurnAt             *time.Time `json:"burn_at,omitempty"`
}

// MessageFrame carries a full message projection to group members. The
// payload field is named "message" on this wire; the polling projection
// keeps "content".
type MessageFrame struct {
	Type               string      `json:"type"`
	ID                 int64       `json:"id"`
	SenderID           int64       `json:"sender_id"`
	SenderUsername     string      `json:"sender_username"`
	Message            *string     `json:"message"`
	Scheme             chat.Scheme `json:"encryption_type"`
	IsBurnAfterReading bool        `json:"is_burn_after_reading"`
	BurnAt             *time.Time  `json:"burn_at"`
	DestroyedAt        *time.Time  `json:"destroyed_at"`
	IsRead             bool        `json:"is_read"`
	ReadAt             *time.Time  `json:"read_at"`
	CreatedAt          time.Time   `json:"created_at"`
}

// newMessageFrame maps a message projection onto the realtime frame layout.
func newMessageFrame(msg chat.MessageView) MessageFrame {
	return MessageFrame{
		Type:               FrameTypeMessage,
		ID:                 msg.ID,
		SenderID:           msg.SenderID,
		SenderUsername:     msg.SenderUsername,
		Message:            msg.Content,
		Scheme:             msg.Scheme,
		IsBurnAfterReading: msg.IsBurnAfterReading,
		BurnAt:             msg.BurnAt,
		DestroyedAt:        msg.DestroyedAt,
		IsRead:             msg.IsRead,
		ReadAt:             msg.ReadAt,
		CreatedAt:          msg.CreatedAt,
	}
}

// StateFrame carries a read/destroy transition to group members.
type StateFrame struct {
	Type string `json:"type"`
	chat.StateChange
}

// ErrorFrame reports a processing failure without closing the connection.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PongFrame answers a keep-alive ping.
type PongFrame struct {
	Type string `json:"type"`
}

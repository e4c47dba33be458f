package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hushwire/hushwire/pkg/logger"
)

// sendQueueSize bounds the per-client outbound buffer. A slow consumer drops
// frames rather than blocking the publisher; recovery happens via cursor
// fetch.
const sendQueueSize = 64

// conn is the subset of *websocket.Conn the client needs; tests substitute a
// recording fake.
type conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one connected peer bound to a single session group. All writes
// go through a buffered channel drained by a single goroutine, which
// preserves publish order per session.
type Client struct {
	UserID    int64
	SessionID string

	conn      conn
	send      chan []byte
	closeOnce sync.Once
}

// NewClient wraps an established websocket connection.
func NewClient(c conn, userID int64, sessionID string) *Client {
	return &Client{
		UserID:    userID,
		SessionID: sessionID,
		conn:      c,
		send:      make(chan []byte, sendQueueSize),
	}
}

// WritePump drains the send queue onto the connection. Runs in its own
// goroutine; returns when the queue closes or a write fails.
func (c *Client) WritePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Debugf("[ws] write to user %d failed: %v", c.UserID, err)
			break
		}
	}
	c.conn.Close()
}

// Enqueue queues a frame for delivery. Best-effort: frames are dropped when
// the client's buffer is full.
func (c *Client) Enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		logger.Warnf("[ws] send queue full for user %d in session %s; dropping frame", c.UserID, c.SessionID)
	}
}

// Close shuts down the send queue. Safe to call multiple times.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.send) })
}

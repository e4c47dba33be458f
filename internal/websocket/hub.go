package websocket

import (
	"encoding/json"
	"sync"

	"github.com/hushwire/hushwire/internal/chat"
	"github.com/hushwire/hushwire/pkg/logger"
)

// Hub manages delivery groups: the runtime set of connected clients per
// session id. Membership changes on connect/disconnect; broadcasts are
// ephemeral and never replayed.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		groups: make(map[string]map[*Client]struct{}),
	}
}

// Join adds a client to a session's delivery group.
func (h *Hub) Join(sessionID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.groups[sessionID] == nil {
		h.groups[sessionID] = make(map[*Client]struct{})
	}
	h.groups[sessionID][c] = struct{}{}
}

// Leave removes a client from a session's delivery group.
func (h *Hub) Leave(sessionID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[sessionID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.groups, sessionID)
	}
}

// GroupSize returns the number of connected members for a session.
func (h *Hub) GroupSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[sessionID])
}

// Publish fans a frame out to every current member of the session's group,
// including the sender's own connections for local echo. At-most-once per
// member; disconnected peers recover via cursor fetch.
func (h *Hub) Publish(sessionID string, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		logger.Errorf("[ws] failed to marshal frame for session %s: %v", sessionID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	logger.Tracef("[ws] fan out %d bytes to %d members of session %s", len(data), len(h.groups[sessionID]), sessionID)
	for c := range h.groups[sessionID] {
		c.Enqueue(data)
	}
}

// PublishNewMessage implements chat.EventPublisher.
func (h *Hub) PublishNewMessage(sessionID string, msg chat.MessageView) {
	h.Publish(sessionID, newMessageFrame(msg))
}

// PublishStateChange implements chat.EventPublisher.
func (h *Hub) PublishStateChange(sessionID string, change chat.StateChange) {
	h.Publish(sessionID, StateFrame{Type: FrameTypeState, StateChange: change})
}

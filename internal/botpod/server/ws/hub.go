// Package ws pushes live updates to browser views over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	"github.com/autopeer-io/botpod/pkg/log"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MsgBots carries the current bot list to feed clients.
	MsgBots MessageType = "bots"
	// MsgNavigate tells a session view to go to Payload.target.
	MsgNavigate MessageType = "navigate"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NavigatePayload is the payload of MsgNavigate.
type NavigatePayload struct {
	Target string `json:"target"`
}

// Connection is one connected view. SessionID is empty for feed clients.
type Connection struct {
	SessionID string
	Send      chan []byte
}

// ProjectFunc turns a refreshed pod list into the payload of MsgBots.
type ProjectFunc func(pods []model.Pod) any

var _ core.Navigator = (*Hub)(nil)

// Hub tracks feed and session connections.
type Hub struct {
	pods    core.PodReader
	project ProjectFunc
	logger  log.Logger

	mu       sync.RWMutex
	feed     map[*Connection]struct{}
	sessions map[string]map[*Connection]struct{}
	latest   []byte
}

// NewHub creates a hub that broadcasts project(pods) on every cache refresh.
func NewHub(pods core.PodReader, project ProjectFunc) *Hub {
	return &Hub{
		pods:     pods,
		project:  project,
		logger:   log.WithName("ws"),
		feed:     make(map[*Connection]struct{}),
		sessions: make(map[string]map[*Connection]struct{}),
	}
}

// Start forwards cache refreshes to feed clients until ctx is done, then
// closes every connection.
func (h *Hub) Start(ctx context.Context) error {
	updates, cancel := h.pods.Subscribe()
	defer cancel()
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		case pods, ok := <-updates:
			if !ok {
				return nil
			}
			h.BroadcastBots(pods)
		}
	}
}

// Register adds a connection.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn.SessionID == "" {
		h.feed[conn] = struct{}{}
		if h.latest != nil {
			trySend(conn, h.latest)
		}
		h.logger.Debug("Feed client connected", "clients", len(h.feed))
		return
	}

	if h.sessions[conn.SessionID] == nil {
		h.sessions[conn.SessionID] = make(map[*Connection]struct{})
	}
	h.sessions[conn.SessionID][conn] = struct{}{}
	h.logger.Debug("Session view connected", "sessionID", conn.SessionID)
}

// Unregister removes a connection and closes its send channel.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn.SessionID == "" {
		if _, ok := h.feed[conn]; ok {
			delete(h.feed, conn)
			close(conn.Send)
		}
		return
	}

	conns := h.sessions[conn.SessionID]
	if _, ok := conns[conn]; ok {
		delete(conns, conn)
		close(conn.Send)
		if len(conns) == 0 {
			delete(h.sessions, conn.SessionID)
		}
	}
}

// BroadcastBots sends the projected pod list to every feed client.
func (h *Hub) BroadcastBots(pods []model.Pod) {
	data, err := encode(MsgBots, h.project(pods))
	if err != nil {
		h.logger.Error(err, "Failed to encode bot list")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = data
	for conn := range h.feed {
		trySend(conn, data)
	}
}

// Navigate sends the session's views to target.
func (h *Hub) Navigate(sessionID, target string) {
	data, err := encode(MsgNavigate, NavigatePayload{Target: target})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.sessions[sessionID]
	for conn := range conns {
		trySend(conn, data)
	}
	h.logger.Debug("Navigating session view", "sessionID", sessionID, "target", target, "views", len(conns))
}

// Clients returns the number of feed and session connections.
func (h *Hub) Clients() (feed, sessions int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conns := range h.sessions {
		sessions += len(conns)
	}
	return len(h.feed), sessions
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.feed {
		close(conn.Send)
	}
	for _, conns := range h.sessions {
		for conn := range conns {
			close(conn.Send)
		}
	}
	h.feed = make(map[*Connection]struct{})
	h.sessions = make(map[string]map[*Connection]struct{})
}

func encode(t MessageType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Message{Type: t, Payload: raw})
}

// trySend drops the message if the buffer is full.
func trySend(conn *Connection, data []byte) {
	select {
	case conn.Send <- data:
	default:
	}
}

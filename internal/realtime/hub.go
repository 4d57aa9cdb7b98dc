// Package realtime pushes bus events to connected clients over websockets.
// Count changes and refresh hints reach every open session of a user without
// the sessions sharing any state.
package realtime

import (
	"encoding/json"
	"sync"

	"groundz/internal/events"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const sendBuffer = 32

// Client is one websocket session. Writes go through the buffered Send
// channel; the connection's write pump drains it.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub tracks connected clients per user (multiple devices per user) and
// forwards bus events to the sessions that care about them.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[uuid.UUID]*Client

	logger  *zap.SugaredLogger
	cancels []func()
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]map[uuid.UUID]*Client),
		logger:  logger,
	}
}

// Run subscribes the hub to every topic the frontend listens for. Call once;
// Stop undoes the subscriptions.
func (h *Hub) Run(bus events.Bus) {
	topics := []string{
		events.TopicFollowerCount,
		events.TopicFollowingCount,
		events.TopicPostsRefresh,
		events.TopicTimelineRefresh,
	}
	for _, topic := range topics {
		ch, cancel := bus.Subscribe(topic)
		h.cancels = append(h.cancels, cancel)
		go h.forward(ch)
	}
}

func (h *Hub) Stop() {
	for _, cancel := range h.cancels {
		cancel()
	}
}

func (h *Hub) forward(ch <-chan events.Event) {
	for e := range ch {
		payload, err := json.Marshal(e)
		if err != nil {
			h.logger.Errorw("failed to encode event for websocket fanout", "error", err)
			continue
		}
		h.SendToUser(e.UserID, payload)
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[uuid.UUID]*Client)
	}
	h.clients[client.UserID][client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := sessions[client.ID]; !ok {
		return
	}
	delete(sessions, client.ID)
	if len(sessions) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.Send)
	if client.Conn != nil {
		_ = client.Conn.Close()
	}
}

// SendToUser queues the payload on every session of the user. A session
// whose buffer is full is dropped rather than allowed to stall the fanout.
// Sends stay under the read lock: Unregister closes Send under the write
// lock, so a session's channel cannot close mid-send.
func (h *Hub) SendToUser(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[userID] {
		select {
		case client.Send <- payload:
		default:
			h.logger.Warnw("websocket send buffer full, dropping client",
				"user", userID, "client", client.ID)
			go h.Unregister(client)
		}
	}
}

// ConnectedUsers is used by the ops endpoints.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WritePump drains the client's send channel onto the wire. Runs in its own
// goroutine per connection; exits when the channel closes.
func (h *Hub) WritePump(client *Client) {
	for payload := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.Unregister(client)
			return
		}
	}
}

// ReadPump discards inbound frames (the stream is server-to-client only) and
// unregisters on close or error.
func (h *Hub) ReadPump(client *Client) {
	defer h.Unregister(client)
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

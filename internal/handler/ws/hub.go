package ws

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// Hub tracks live connections and delivers encoded events to them. It
// implements the chat service's Dispatcher: sends never block, and a client
// whose buffer is full is dropped so the transport closes it.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     logrus.FieldLogger
}

// NewHub creates an empty hub.
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		clients: make(map[string]*Client),
		log:     logger.WithField("component", "ws-hub"),
	}
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{"conn": c.id, "clients": count}).Debug("client registered")
}

// Unregister removes a client and closes its send buffer.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.closeSend()
		h.log.WithFields(logrus.Fields{"conn": id, "clients": count}).Debug("client unregistered")
	}
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll sends event to every registered client.
func (h *Hub) BroadcastAll(event chat.Event) {
	payload, ok := h.encode(event)
	if !ok {
		return
	}

	var failed []string
	h.mu.RLock()
	for id, c := range h.clients {
		if !c.trySend(payload) {
			failed = append(failed, id)
		}
	}
	h.mu.RUnlock()

	h.dropClients(failed, event.Type)
}

// Unicast sends event to one client. Unknown ids are ignored.
func (h *Hub) Unicast(connID string, event chat.Event) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	payload, ok := h.encode(event)
	if !ok {
		return
	}
	if !c.trySend(payload) {
		h.dropClients([]string{connID}, event.Type)
	}
}

// Shutdown sends a close frame to every client and waits for their writers
// to finish or ctx to end.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for id, c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, id)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.closeSend()
	}
	for _, c := range clients {
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	h.log.WithField("clients", len(clients)).Info("websocket hub shut down")
	return nil
}

func (h *Hub) encode(event chat.Event) ([]byte, bool) {
	payload, err := event.Encode()
	if err != nil {
		h.log.WithError(err).WithField("event", event.Type).Error("failed to encode event")
		return nil, false
	}
	return payload, true
}

func (h *Hub) dropClients(ids []string, eventType chat.EventType) {
	for _, id := range ids {
		h.log.WithFields(logrus.Fields{"conn": id, "event": eventType}).Warn("client send buffer full; dropping connection")
		h.Unregister(id)
	}
}

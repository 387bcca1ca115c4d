package ws

import (
	"encoding/json"
	"sync"

	"support-chat/backend/pkg/logger"
)

// envelope is the wire format for every outbound event.
type envelope struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// Hub tracks live connections and named groups, and implements chat.Channel.
// Pushes to unknown connection ids are dropped silently; the relay relies on
// that for connections that disconnect mid-flight.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	groups  map[string]map[string]struct{}
	log     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]struct{}),
		log:     log,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.log.Debug("client registered", "conn_id", c.ID)
}

// Unregister removes a client from the hub and every group it joined, and
// closes its send queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		for _, members := range h.groups {
			delete(members, c.ID)
		}
		c.closeSend()
	}
	h.mu.Unlock()
	h.log.Debug("client unregistered", "conn_id", c.ID)
}

// AddToGroup makes connID a member of group. Unknown connection ids are
// ignored.
func (h *Hub) AddToGroup(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[connID]; !ok {
		return
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]struct{})
		h.groups[group] = members
	}
	members[connID] = struct{}{}
}

// PushTo delivers one event to one connection.
func (h *Hub) PushTo(connID, event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c := h.clients[connID]; c != nil {
		h.send(c, event, data)
	}
}

// PushToGroup delivers one event to every member of a group.
func (h *Hub) PushToGroup(group, event string, payload any) {
	h.pushGroup(group, "", event, payload)
}

// PushToGroupExcept delivers one event to every member of a group except one.
func (h *Hub) PushToGroupExcept(group, excludeConnID, event string, payload any) {
	h.pushGroup(group, excludeConnID, event, payload)
}

// PushToAll delivers one event to every live connection.
func (h *Hub) PushToAll(event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.send(c, event, data)
	}
}

func (h *Hub) pushGroup(group, excludeConnID, event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id := range h.groups[group] {
		if id == excludeConnID {
			continue
		}
		if c, live := h.clients[id]; live {
			h.send(c, event, data)
		}
	}
}

func (h *Hub) encode(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(envelope{Type: event, Content: payload})
	if err != nil {
		h.log.LogError(err, "failed to encode event", "event", event)
		return nil, false
	}
	return data, true
}

// send enqueues without blocking. Callers must hold h.mu at least for
// reading: Unregister closes the queue only under the write lock, so a queue
// reachable here cannot close mid-enqueue. A full queue means the peer
// stopped reading; the event is dropped and the write deadline will end the
// connection if it stays stuck.
func (h *Hub) send(c *Client, event string, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warn("send queue full, dropping event", "conn_id", c.ID, "event", event)
	}
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// JoinPolicy decides whether userID may receive events for familyID.
type JoinPolicy func(ctx context.Context, userID, familyID string) (bool, error)

type roomMessage struct {
	room string
	data []byte
}

// Hub tracks websocket clients and the family rooms they joined.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	broadcast chan roomMessage

	canJoin JoinPolicy
	logger  *zap.Logger
}

func NewHub(canJoin JoinPolicy, logger *zap.Logger) *Hub {
	if canJoin == nil {
		canJoin = func(context.Context, string, string) (bool, error) { return true, nil }
	}
	return &Hub{
		clients:   make(map[*Client]struct{}),
		rooms:     make(map[string]map[*Client]struct{}),
		broadcast: make(chan roomMessage, 1000),
		canJoin:   canJoin,
		logger:    logger,
	}
}

// Run delivers queued broadcasts until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Publish implements Emitter. It returns once the message is queued.
func (h *Hub) Publish(ctx context.Context, room string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	select {
	case h.broadcast <- roomMessage{room: room, data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("broadcast queue full, %s dropped", ev.Type)
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client registered", zap.String("userId", c.userID), zap.String("connectionId", c.id))
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		delete(h.rooms[room], c)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	close(c.send)
	h.logger.Debug("websocket client unregistered", zap.String("userId", c.userID), zap.String("connectionId", c.id))
}

func (h *Hub) deliver(msg roomMessage) {
	h.mu.RLock()
	targets := h.clients
	if msg.room != GlobalRoom {
		targets = h.rooms[msg.room]
	}
	var slow []*Client
	for c := range targets {
		select {
		case c.send <- msg.data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("closing slow websocket client", zap.String("userId", c.userID), zap.String("connectionId", c.id))
		h.remove(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.rooms = make(map[string]map[*Client]struct{})
}

// ConnectionCount reports the number of registered clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

package events

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Client is one websocket connection. Rooms are only touched under the hub lock.
type Client struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	rooms  map[string]struct{}
	logger *zap.Logger
}

type inbound struct {
	Type     string `json:"type"`
	FamilyID string `json:"familyId"`
}

type outbound struct {
	Type     string `json:"type"`
	FamilyID string `json:"familyId,omitempty"`
	Message  string `json:"message,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	id := uuid.NewString()
	c := &Client{
		id:     id,
		userID: userID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		rooms:  make(map[string]struct{}),
		logger: h.logger.With(zap.String("userId", userID), zap.String("connectionId", id)),
	}
	h.add(c)
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		c.handle(message)
	}
}

func (c *Client) handle(message []byte) {
	var msg inbound
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug("ignoring malformed websocket message", zap.Error(err))
		return
	}
	switch msg.Type {
	case "join-family":
		if msg.FamilyID == "" {
			c.reply(outbound{Type: "error", Message: "familyId is required"})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		ok, err := c.hub.canJoin(ctx, c.userID, msg.FamilyID)
		cancel()
		if err != nil {
			c.logger.Warn("join-family check failed", zap.String("familyId", msg.FamilyID), zap.Error(err))
			c.reply(outbound{Type: "error", Message: "Internal error"})
			return
		}
		if !ok {
			c.reply(outbound{Type: "error", Message: "Forbidden"})
			return
		}
		c.hub.join(c, FamilyRoom(msg.FamilyID))
		c.reply(outbound{Type: "joined-family", FamilyID: msg.FamilyID})
	case "ping":
		c.reply(outbound{Type: "pong"})
	}
}

// reply holds the hub read lock so the send channel cannot be closed
// underneath it.
func (c *Client) reply(msg outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("websocket send buffer full, reply dropped", zap.String("type", msg.Type))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

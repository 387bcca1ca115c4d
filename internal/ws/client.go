package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"support-chat/backend/internal/chat"
	"support-chat/backend/pkg/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
)

// Client is one live connection: the bridge between a websocket and the
// relay. Inbound events are handled inline in the read pump, which preserves
// per-connection ordering.
type Client struct {
	ID    string
	conn  *websocket.Conn
	send  chan []byte
	hub   *Hub
	relay *chat.Relay
	log   *logger.Logger

	maxMessageSize int64
	closeOnce      sync.Once
}

func newClient(id string, conn *websocket.Conn, hub *Hub, relay *chat.Relay, log *logger.Logger, sendBuffer int, maxMessageSize int64) *Client {
	return &Client{
		ID:             id,
		conn:           conn,
		send:           make(chan []byte, sendBuffer),
		hub:            hub,
		relay:          relay,
		log:            log.WithConnID(id),
		maxMessageSize: maxMessageSize,
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// ReadPump pumps inbound frames from the websocket into the relay.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.relay.HandleDisconnect(c.ID)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("unexpected close", "error", err.Error())
			}
			break
		}
		c.handleInbound(data)
	}
}

// WritePump pumps queued events to the websocket and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
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
				// The hub closed the queue.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Flush anything already queued, one frame each.
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

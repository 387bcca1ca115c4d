package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"support-chat/backend/internal/chat"
	"support-chat/backend/pkg/config"
	"support-chat/backend/pkg/logger"
)

// Inbound call names, invoked by connected clients.
const (
	callGuestMessage  = "guest_message"
	callRegisterAdmin = "register_admin"
	callAdminMessage  = "admin_message"
	callDeleteMessage = "delete_message"
	callClearChat     = "clear_chat"
	callPing          = "ping"
)

type inboundEnvelope struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

type guestMessageIn struct {
	Text string `json:"text"`
}

type adminMessageIn struct {
	Target string `json:"target"`
	Text   string `json:"text"`
}

type deleteMessageIn struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

type clearChatIn struct {
	ChatID string `json:"chatId"`
}

// Moderation calls get their result acked back to the caller, mirroring the
// boolean/count returns of the HTTP moderation surface.
type deleteResult struct {
	MessageID string `json:"messageId"`
	Deleted   bool   `json:"deleted"`
}

type clearResult struct {
	ChatID  string `json:"chatId"`
	Cleared int    `json:"cleared"`
}

// Handler upgrades HTTP requests into relay-attached websocket connections.
type Handler struct {
	hub      *Hub
	relay    *chat.Relay
	log      *logger.Logger
	cfg      *config.Config
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, relay *chat.Relay, log *logger.Logger, cfg *config.Config) *Handler {
	return &Handler{
		hub:   hub,
		relay: relay,
		log:   log,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin:      originChecker(cfg.Security.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

// ServeWs upgrades the connection, assigns it a connection id, and starts the
// pumps. Every connection begins life as a guest.
func (h *Handler) ServeWs(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.LogError(err, "websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	client := newClient(connID, conn, h.hub, h.relay, h.log, h.cfg.Chat.SendBuffer, h.cfg.Chat.MaxMessageSize)

	h.hub.Register(client)
	h.relay.HandleConnect(connID)

	go client.WritePump()
	go client.ReadPump()
}

// handleInbound dispatches one decoded frame to the relay. It runs on the
// read pump goroutine, so one connection's calls never reorder.
func (c *Client) handleInbound(data []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("dropping malformed frame", "error", err.Error())
		return
	}

	ctx := context.Background()

	switch env.Type {
	case callGuestMessage:
		var p guestMessageIn
		if err := json.Unmarshal(env.Content, &p); err != nil {
			c.log.Warn("bad guest_message payload", "error", err.Error())
			return
		}
		c.relay.SendFromGuest(ctx, c.ID, p.Text)

	case callRegisterAdmin:
		c.relay.RegisterAdmin(c.ID)

	case callAdminMessage:
		var p adminMessageIn
		if err := json.Unmarshal(env.Content, &p); err != nil {
			c.log.Warn("bad admin_message payload", "error", err.Error())
			return
		}
		c.relay.SendFromAdmin(ctx, c.ID, p.Target, p.Text)

	case callDeleteMessage:
		var p deleteMessageIn
		if err := json.Unmarshal(env.Content, &p); err != nil {
			c.log.Warn("bad delete_message payload", "error", err.Error())
			return
		}
		ok := c.relay.DeleteMessage(ctx, p.MessageID, p.ChatID)
		c.hub.PushTo(c.ID, "delete_result", deleteResult{MessageID: p.MessageID, Deleted: ok})

	case callClearChat:
		var p clearChatIn
		if err := json.Unmarshal(env.Content, &p); err != nil {
			c.log.Warn("bad clear_chat payload", "error", err.Error())
			return
		}
		n := c.relay.ClearChat(ctx, p.ChatID)
		c.hub.PushTo(c.ID, "clear_result", clearResult{ChatID: p.ChatID, Cleared: n})

	case callPing:
		c.hub.PushTo(c.ID, "pong", nil)

	default:
		c.log.Warn("unknown call", "type", env.Type)
	}
}

package ws

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-chat/backend/internal/chat"
	"support-chat/backend/internal/store"
	"support-chat/backend/pkg/logger"
)

func newTestRelay(h *Hub) *chat.Relay {
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	return chat.NewRelay(store.NewMemory(), chat.NewRegistry(), h, log, chat.NewMetrics(prometheus.NewRegistry()))
}

func connect(t *testing.T, h *Hub, relay *chat.Relay, id string) *Client {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	c := newClient(id, nil, h, relay, log, 32, 8<<10)
	h.Register(c)
	relay.HandleConnect(id)
	return c
}

func frame(t *testing.T, typ string, content any) []byte {
	t.Helper()
	raw, err := json.Marshal(content)
	require.NoError(t, err)
	data, err := json.Marshal(map[string]any{"type": typ, "content": json.RawMessage(raw)})
	require.NoError(t, err)
	return data
}

func findEvent(t *testing.T, c *Client, typ string) []envelope {
	t.Helper()
	var out []envelope
	for _, env := range drain(t, c) {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func TestInboundGuestMessage(t *testing.T) {
	h := testHub()
	relay := newTestRelay(h)
	admin := connect(t, h, relay, "conn-adm1")
	guest := connect(t, h, relay, "conn-1234")
	admin.handleInbound(frame(t, "register_admin", nil))
	drain(t, admin)
	drain(t, guest)

	guest.handleInbound(frame(t, "guest_message", map[string]string{"text": "hello"}))

	received := findEvent(t, admin, "receive_from_guest")
	require.Len(t, received, 1)
	content := received[0].Content.(map[string]any)
	assert.Equal(t, "conn-1234", content["id"])
	assert.Equal(t, "Guest-1234", content["label"])
	assert.Equal(t, "hello", content["text"])

	echo := findEvent(t, guest, "receive_to_guest")
	require.Len(t, echo, 1)
	assert.Equal(t, "You", echo[0].Content.(map[string]any)["label"])
}

func TestInboundRegisterAdmin(t *testing.T) {
	h := testHub()
	relay := newTestRelay(h)
	guest := connect(t, h, relay, "conn-1234")
	caller := connect(t, h, relay, "conn-adm1")
	drain(t, caller)

	caller.handleInbound(frame(t, "register_admin", nil))

	// Seeded with the live guest list and the admin headcount. drain (via
	// findEvent) consumes the queue, so split one pass over the caller's
	// events by type instead of calling findEvent twice.
	var joined, online []envelope
	for _, env := range drain(t, caller) {
		switch env.Type {
		case "guest_joined":
			joined = append(joined, env)
		case "admin_online":
			online = append(online, env)
		}
	}
	require.Len(t, joined, 1)
	assert.Equal(t, "conn-1234", joined[0].Content.(map[string]any)["id"])

	require.Len(t, online, 1)
	assert.Equal(t, float64(1), online[0].Content.(map[string]any)["count"])

	// The guest hears the headcount too.
	assert.Len(t, findEvent(t, guest, "admin_online"), 1)
}

func TestInboundAdminMessage(t *testing.T) {
	h := testHub()
	relay := newTestRelay(h)
	guest := connect(t, h, relay, "conn-1234")
	admin := connect(t, h, relay, "conn-adm1")
	admin.handleInbound(frame(t, "register_admin", nil))
	drain(t, admin)
	drain(t, guest)

	admin.handleInbound(frame(t, "admin_message", map[string]string{"target": "conn-1234", "text": "hi there"}))

	direct := findEvent(t, guest, "receive_to_guest")
	require.Len(t, direct, 1)
	assert.Equal(t, "Support", direct[0].Content.(map[string]any)["label"])

	selfView := findEvent(t, admin, "receive_from_guest")
	require.Len(t, selfView, 1)
	assert.Equal(t, "You", selfView[0].Content.(map[string]any)["label"])
}

func TestInboundModerationAcks(t *testing.T) {
	h := testHub()
	relay := newTestRelay(h)
	guest := connect(t, h, relay, "conn-1234")
	admin := connect(t, h, relay, "conn-adm1")
	admin.handleInbound(frame(t, "register_admin", nil))
	guest.handleInbound(frame(t, "guest_message", map[string]string{"text": "oops"}))

	received := findEvent(t, admin, "receive_from_guest")
	require.Len(t, received, 1)
	msgID := received[0].Content.(map[string]any)["msgId"].(string)
	drain(t, admin)
	drain(t, guest)

	admin.handleInbound(frame(t, "delete_message", map[string]string{"messageId": msgID, "chatId": "conn-1234"}))

	acks := findEvent(t, admin, "delete_result")
	require.Len(t, acks, 1)
	assert.Equal(t, true, acks[0].Content.(map[string]any)["deleted"])

	// The affected guest is told as well.
	assert.Len(t, findEvent(t, guest, "message_deleted"), 1)

	admin.handleInbound(frame(t, "clear_chat", map[string]string{"chatId": "conn-1234"}))

	clears := findEvent(t, admin, "clear_result")
	require.Len(t, clears, 1)
	assert.Equal(t, float64(0), clears[0].Content.(map[string]any)["cleared"])
	assert.Len(t, findEvent(t, guest, "chat_cleared"), 1)
}

func TestInboundMalformedFrameIgnored(t *testing.T) {
	h := testHub()
	relay := newTestRelay(h)
	guest := connect(t, h, relay, "conn-1234")

	guest.handleInbound([]byte("not json"))
	guest.handleInbound(frame(t, "no_such_call", nil))

	assert.Empty(t, drain(t, guest))
}

func TestInboundPing(t *testing.T) {
	h := testHub()
	relay := newTestRelay(h)
	guest := connect(t, h, relay, "conn-1234")
	drain(t, guest)

	guest.handleInbound(frame(t, "ping", nil))

	assert.Len(t, findEvent(t, guest, "pong"), 1)
}

func TestOriginChecker(t *testing.T) {
	wildcard := originChecker([]string{"*"})
	req, _ := http.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://anything.example")
	assert.True(t, wildcard(req))

	strict := originChecker([]string{"https://app.example"})
	assert.False(t, strict(req))
	req.Header.Set("Origin", "https://app.example")
	assert.True(t, strict(req))
}

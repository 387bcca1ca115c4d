package ws

import (
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-chat/backend/pkg/logger"
)

func testHub() *Hub {
	return NewHub(logger.New(logger.Config{Level: "error", Output: io.Discard}))
}

func addClient(t *testing.T, h *Hub, id string) *Client {
	t.Helper()
	c := newClient(id, nil, h, nil, logger.New(logger.Config{Level: "error", Output: io.Discard}), 16, 8<<10)
	h.Register(c)
	return c
}

func drain(t *testing.T, c *Client) []envelope {
	t.Helper()
	var out []envelope
	for {
		select {
		case data := <-c.send:
			var env envelope
			require.NoError(t, json.Unmarshal(data, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestPushToDeliversToOneClient(t *testing.T) {
	h := testHub()
	a := addClient(t, h, "conn-a")
	b := addClient(t, h, "conn-b")

	h.PushTo("conn-a", "hello", map[string]string{"k": "v"})

	got := drain(t, a)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Type)
	assert.Empty(t, drain(t, b))
}

func TestPushToUnknownConnectionDropped(t *testing.T) {
	h := testHub()
	// Must not panic or error.
	h.PushTo("conn-gone", "hello", nil)
}

func TestGroupFanOut(t *testing.T) {
	h := testHub()
	a := addClient(t, h, "conn-a")
	b := addClient(t, h, "conn-b")
	c := addClient(t, h, "conn-c")

	h.AddToGroup("conn-a", "admins")
	h.AddToGroup("conn-b", "admins")

	h.PushToGroup("admins", "notice", nil)

	assert.Len(t, drain(t, a), 1)
	assert.Len(t, drain(t, b), 1)
	assert.Empty(t, drain(t, c))
}

func TestGroupFanOutExcept(t *testing.T) {
	h := testHub()
	a := addClient(t, h, "conn-a")
	b := addClient(t, h, "conn-b")

	h.AddToGroup("conn-a", "admins")
	h.AddToGroup("conn-b", "admins")

	h.PushToGroupExcept("admins", "conn-a", "notice", nil)

	assert.Empty(t, drain(t, a))
	assert.Len(t, drain(t, b), 1)
}

func TestPushToAll(t *testing.T) {
	h := testHub()
	a := addClient(t, h, "conn-a")
	b := addClient(t, h, "conn-b")

	h.PushToAll("admin_online", map[string]int{"count": 1})

	assert.Len(t, drain(t, a), 1)
	assert.Len(t, drain(t, b), 1)
}

func TestAddToGroupUnknownConnectionIgnored(t *testing.T) {
	h := testHub()
	h.AddToGroup("conn-gone", "admins")

	// The group stays empty, so fan-out reaches nobody.
	h.PushToGroup("admins", "notice", nil)
}

func TestUnregisterLeavesGroups(t *testing.T) {
	h := testHub()
	a := addClient(t, h, "conn-a")
	b := addClient(t, h, "conn-b")
	h.AddToGroup("conn-a", "admins")
	h.AddToGroup("conn-b", "admins")

	h.Unregister(a)

	h.PushToGroup("admins", "notice", nil)
	assert.Len(t, drain(t, b), 1)

	// Pushing to the removed connection must not panic.
	h.PushTo("conn-a", "notice", nil)
}

func TestFullQueueDropsEvent(t *testing.T) {
	h := testHub()
	c := newClient("conn-slow", nil, h, nil, logger.New(logger.Config{Level: "error", Output: io.Discard}), 1, 8<<10)
	h.Register(c)

	h.PushTo("conn-slow", "one", nil)
	h.PushTo("conn-slow", "two", nil) // dropped, queue is full

	got := drain(t, c)
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].Type)
}

func TestPushRacingUnregister(t *testing.T) {
	h := testHub()
	c := addClient(t, h, "conn-a")
	h.AddToGroup("conn-a", "admins")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			h.PushTo("conn-a", "notice", nil)
			h.PushToGroup("admins", "notice", nil)
			h.PushToAll("notice", nil)
		}
	}()
	go func() {
		defer wg.Done()
		h.Unregister(c)
	}()
	wg.Wait()

	// The queue closed during the push storm without any send panicking.
	_, open := <-c.send
	for open {
		_, open = <-c.send
	}
}

func TestEnvelopeWireFormat(t *testing.T) {
	h := testHub()
	c := addClient(t, h, "conn-a")

	h.PushTo("conn-a", "receive_to_guest", map[string]string{"label": "You", "text": "hi"})

	data := <-c.send
	assert.JSONEq(t, `{"type":"receive_to_guest","content":{"label":"You","text":"hi"}}`, string(data))
}

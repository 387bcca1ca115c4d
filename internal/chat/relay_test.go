package chat

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-chat/backend/internal/store"
	"support-chat/backend/pkg/logger"
)

type push struct {
	kind    string // to, group, groupExcept, all
	target  string
	exclude string
	event   string
	payload any
}

// recordingChannel captures every outbound push so tests can assert on the
// exact fan-out the relay performed.
type recordingChannel struct {
	mu     sync.Mutex
	pushes []push
	groups map[string]map[string]bool
}

func newRecordingChannel() *recordingChannel {
	return &recordingChannel{groups: make(map[string]map[string]bool)}
}

func (c *recordingChannel) PushTo(connID, event string, payload any) {
	c.record(push{kind: "to", target: connID, event: event, payload: payload})
}

func (c *recordingChannel) PushToGroup(group, event string, payload any) {
	c.record(push{kind: "group", target: group, event: event, payload: payload})
}

func (c *recordingChannel) PushToGroupExcept(group, excludeConnID, event string, payload any) {
	c.record(push{kind: "groupExcept", target: group, exclude: excludeConnID, event: event, payload: payload})
}

func (c *recordingChannel) PushToAll(event string, payload any) {
	c.record(push{kind: "all", event: event, payload: payload})
}

func (c *recordingChannel) AddToGroup(connID, group string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.groups[group] == nil {
		c.groups[group] = make(map[string]bool)
	}
	c.groups[group][connID] = true
}

func (c *recordingChannel) record(p push) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushes = append(c.pushes, p)
}

func (c *recordingChannel) inGroup(group, connID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groups[group][connID]
}

func (c *recordingChannel) all() []push {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]push(nil), c.pushes...)
}

func (c *recordingChannel) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushes = nil
}

func (c *recordingChannel) find(event string) []push {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []push
	for _, p := range c.pushes {
		if p.event == event {
			out = append(out, p)
		}
	}
	return out
}

func newTestRelay(t *testing.T) (*Relay, *recordingChannel, store.Store) {
	t.Helper()
	ch := newRecordingChannel()
	st := store.NewMemory()
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	relay := NewRelay(st, NewRegistry(), ch, log, NewMetrics(prometheus.NewRegistry()))
	return relay, ch, st
}

func TestGuestConnectAnnouncedToAdmins(t *testing.T) {
	relay, ch, _ := newTestRelay(t)

	relay.HandleConnect("conn-1234")

	joined := ch.find(EventGuestJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, "group", joined[0].kind)
	assert.Equal(t, AdminGroup, joined[0].target)
	assert.Equal(t, GuestPresence{ID: "conn-1234", Label: "Guest-1234"}, joined[0].payload)
}

func TestGuestMessageLabeling(t *testing.T) {
	relay, ch, st := newTestRelay(t)
	relay.HandleConnect("conn-1234")
	ch.reset()

	relay.SendFromGuest(context.Background(), "conn-1234", "hello")

	toAdmins := ch.find(EventReceiveFromGuest)
	require.Len(t, toAdmins, 1)
	assert.Equal(t, AdminGroup, toAdmins[0].target)
	gm := toAdmins[0].payload.(GuestMessage)
	assert.Equal(t, "conn-1234", gm.ID)
	assert.Equal(t, "Guest-1234", gm.Label)
	assert.Equal(t, "hello", gm.Text)
	assert.NotEmpty(t, gm.MsgID)

	echo := ch.find(EventReceiveToGuest)
	require.Len(t, echo, 1)
	assert.Equal(t, "conn-1234", echo[0].target)
	dm := echo[0].payload.(DirectMessage)
	assert.Equal(t, SelfLabel, dm.Label)
	assert.Equal(t, gm.MsgID, dm.MsgID)

	msgs, err := st.GetChat(context.Background(), "conn-1234")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Guest-1234", msgs[0].From)
	assert.False(t, msgs[0].Deleted)
}

func TestGuestMessageUnknownSenderFallsBack(t *testing.T) {
	relay, ch, _ := newTestRelay(t)

	relay.SendFromGuest(context.Background(), "conn-gone", "still here")

	toAdmins := ch.find(EventReceiveFromGuest)
	require.Len(t, toAdmins, 1)
	assert.Equal(t, "Guest", toAdmins[0].payload.(GuestMessage).Label)
}

func TestRegisterAdminPromotesGuest(t *testing.T) {
	relay, ch, _ := newTestRelay(t)
	relay.HandleConnect("conn-aaaa")
	relay.HandleConnect("conn-bbbb")
	ch.reset()

	relay.RegisterAdmin("conn-aaaa")

	assert.True(t, ch.inGroup(AdminGroup, "conn-aaaa"))
	assert.True(t, relay.Registry().IsAdmin("conn-aaaa"))
	assert.False(t, relay.Registry().IsGuest("conn-aaaa"))

	// The guest identity is retired for everyone but the caller.
	left := ch.find(EventGuestLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "groupExcept", left[0].kind)
	assert.Equal(t, "conn-aaaa", left[0].exclude)
	assert.Equal(t, GuestPresence{ID: "conn-aaaa", Label: "Guest-AAAA"}, left[0].payload)

	// The caller is seeded with the remaining guests.
	joined := ch.find(EventGuestJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, "to", joined[0].kind)
	assert.Equal(t, "conn-aaaa", joined[0].target)
	assert.Equal(t, GuestPresence{ID: "conn-bbbb", Label: "Guest-BBBB"}, joined[0].payload)

	// Everyone hears the new headcount.
	online := ch.find(EventAdminOnline)
	require.Len(t, online, 1)
	assert.Equal(t, "all", online[0].kind)
	assert.Equal(t, AdminOnline{Count: 1}, online[0].payload)
}

func TestImmediatePromotionOrdersJoinedBeforeLeft(t *testing.T) {
	relay, ch, _ := newTestRelay(t)
	relay.RegisterAdmin("conn-adm1")
	ch.reset()

	// A connection that promotes itself right after connecting: other admins
	// must see its transient guest identity appear and then retire, in that
	// order.
	relay.HandleConnect("conn-fast")
	relay.RegisterAdmin("conn-fast")

	var joinedAt, leftAt = -1, -1
	for i, p := range ch.all() {
		presence, ok := p.payload.(GuestPresence)
		if !ok || presence.ID != "conn-fast" {
			continue
		}
		switch p.event {
		case EventGuestJoined:
			if p.kind == "group" {
				joinedAt = i
			}
		case EventGuestLeft:
			leftAt = i
		}
	}
	require.NotEqual(t, -1, joinedAt)
	require.NotEqual(t, -1, leftAt)
	assert.Less(t, joinedAt, leftAt)

	assert.True(t, relay.Registry().IsAdmin("conn-fast"))
	assert.False(t, relay.Registry().IsGuest("conn-fast"))
	assert.Empty(t, relay.Registry().AllGuests())
}

func TestRegisterAdminWithoutGuestEntry(t *testing.T) {
	relay, ch, _ := newTestRelay(t)

	relay.RegisterAdmin("conn-cold")

	assert.Empty(t, ch.find(EventGuestLeft))
	assert.True(t, relay.Registry().IsAdmin("conn-cold"))
}

func TestAdminMessageLabeling(t *testing.T) {
	relay, ch, st := newTestRelay(t)
	relay.HandleConnect("conn-gggg")
	relay.RegisterAdmin("conn-adm1")
	relay.RegisterAdmin("conn-adm2")
	ch.reset()

	relay.SendFromAdmin(context.Background(), "conn-adm1", "conn-gggg", "how can I help")

	// The guest sees Support.
	direct := ch.find(EventReceiveToGuest)
	require.Len(t, direct, 1)
	assert.Equal(t, "conn-gggg", direct[0].target)
	assert.Equal(t, SupportLabel, direct[0].payload.(DirectMessage).Label)

	// The sender sees You, other admins see Support, both filed under the
	// guest's conversation.
	fromGuest := ch.find(EventReceiveFromGuest)
	require.Len(t, fromGuest, 2)
	assert.Equal(t, "to", fromGuest[0].kind)
	assert.Equal(t, "conn-adm1", fromGuest[0].target)
	assert.Equal(t, SelfLabel, fromGuest[0].payload.(GuestMessage).Label)
	assert.Equal(t, "conn-gggg", fromGuest[0].payload.(GuestMessage).ID)

	assert.Equal(t, "groupExcept", fromGuest[1].kind)
	assert.Equal(t, "conn-adm1", fromGuest[1].exclude)
	assert.Equal(t, SupportLabel, fromGuest[1].payload.(GuestMessage).Label)

	msgs, err := st.GetChat(context.Background(), "conn-gggg")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, SupportLabel, msgs[0].From)
}

func TestDisconnectGuest(t *testing.T) {
	relay, ch, _ := newTestRelay(t)
	relay.HandleConnect("conn-1234")
	ch.reset()

	relay.HandleDisconnect("conn-1234")

	left := ch.find(EventGuestLeft)
	require.Len(t, left, 1)
	assert.Equal(t, AdminGroup, left[0].target)
	assert.Equal(t, GuestPresence{ID: "conn-1234", Label: "Guest-1234"}, left[0].payload)
	assert.Empty(t, ch.find(EventAdminOnline))
}

func TestDisconnectAdmin(t *testing.T) {
	relay, ch, _ := newTestRelay(t)
	relay.RegisterAdmin("conn-adm1")
	relay.RegisterAdmin("conn-adm2")
	ch.reset()

	relay.HandleDisconnect("conn-adm1")

	online := ch.find(EventAdminOnline)
	require.Len(t, online, 1)
	assert.Equal(t, AdminOnline{Count: 1}, online[0].payload)
	assert.Empty(t, ch.find(EventGuestLeft))
}

func TestDeleteMessage(t *testing.T) {
	relay, ch, _ := newTestRelay(t)
	relay.HandleConnect("conn-1234")
	relay.SendFromGuest(context.Background(), "conn-1234", "oops")
	msgID := ch.find(EventReceiveFromGuest)[0].payload.(GuestMessage).MsgID
	ch.reset()

	ok := relay.DeleteMessage(context.Background(), msgID, "conn-1234")
	assert.True(t, ok)

	deleted := ch.find(EventMessageDeleted)
	require.Len(t, deleted, 2)
	assert.Equal(t, "group", deleted[0].kind)
	assert.Equal(t, AdminGroup, deleted[0].target)
	assert.Equal(t, "to", deleted[1].kind)
	assert.Equal(t, "conn-1234", deleted[1].target)
	assert.Equal(t, Moderation{ChatID: "conn-1234", MessageID: msgID}, deleted[0].payload)

	// Deleting again still reports success for an existing id.
	ch.reset()
	assert.True(t, relay.DeleteMessage(context.Background(), msgID, "conn-1234"))
	assert.Len(t, ch.find(EventMessageDeleted), 2)

	// A nonexistent id finds nothing and stays silent.
	ch.reset()
	assert.False(t, relay.DeleteMessage(context.Background(), "no-such-id", "conn-1234"))
	assert.Empty(t, ch.all())
}

func TestClearChat(t *testing.T) {
	relay, ch, _ := newTestRelay(t)
	relay.HandleConnect("conn-1234")
	relay.SendFromGuest(context.Background(), "conn-1234", "one")
	relay.SendFromGuest(context.Background(), "conn-1234", "two")
	ch.reset()

	count := relay.ClearChat(context.Background(), "conn-1234")
	assert.Equal(t, 2, count)

	cleared := ch.find(EventChatCleared)
	require.Len(t, cleared, 2)
	assert.Equal(t, Moderation{ChatID: "conn-1234"}, cleared[0].payload)

	// Clearing an already-empty chat still notifies, with a zero count.
	ch.reset()
	assert.Equal(t, 0, relay.ClearChat(context.Background(), "conn-1234"))
	assert.Len(t, ch.find(EventChatCleared), 2)
}

func TestModerationHooksFire(t *testing.T) {
	relay, ch, _ := newTestRelay(t)
	relay.HandleConnect("conn-1234")
	relay.SendFromGuest(context.Background(), "conn-1234", "one")
	relay.SendFromGuest(context.Background(), "conn-1234", "two")
	msgID := ch.find(EventReceiveFromGuest)[0].payload.(GuestMessage).MsgID

	var notified []string
	relay.OnModeration(func(chatID string) { notified = append(notified, chatID) })

	relay.DeleteMessage(context.Background(), msgID, "conn-1234")
	assert.Equal(t, []string{"conn-1234"}, notified)

	// A miss changes nothing, so the hook stays quiet.
	relay.DeleteMessage(context.Background(), "no-such-id", "conn-1234")
	assert.Len(t, notified, 1)

	relay.ClearChat(context.Background(), "conn-1234")
	assert.Len(t, notified, 2)

	// Clearing an already-empty chat flips nothing.
	relay.ClearChat(context.Background(), "conn-1234")
	assert.Len(t, notified, 2)
}

func TestNewMessageID(t *testing.T) {
	id := NewMessageID()
	assert.Len(t, id, 32)
	assert.NotContains(t, id, "-")
	assert.NotEqual(t, id, NewMessageID())
}

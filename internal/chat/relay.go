package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"support-chat/backend/internal/models"
	"support-chat/backend/internal/store"
	"support-chat/backend/pkg/logger"
)

// Display labels attached to outbound messages.
const (
	// SupportLabel is what guests see on every admin message.
	SupportLabel = "Support"
	// SelfLabel replaces the sender's own label in their echo, so a UI can
	// render "my" messages distinctly.
	SelfLabel = "You"
	// fallbackLabel is used if a sending connection somehow has no guest
	// entry. It should not occur; the relay tolerates it anyway.
	fallbackLabel = "Guest"
)

// Relay is the connection-routing core: one method per inbound event. It owns
// the presence registry, persists through the store, and fans out pushes
// through the transport channel.
//
// Events from a single connection arrive in order (the transport guarantees
// per-connection FIFO); events from different connections run concurrently,
// which the registry and store are built to tolerate.
type Relay struct {
	store    store.Store
	registry *Registry
	channel  Channel
	log      *logger.Logger
	metrics  *Metrics

	moderationHooks []func(chatID string)
}

func NewRelay(st store.Store, registry *Registry, channel Channel, log *logger.Logger, metrics *Metrics) *Relay {
	return &Relay{
		store:    st,
		registry: registry,
		channel:  channel,
		log:      log,
		metrics:  metrics,
	}
}

// Registry exposes the presence registry, for health checks and tests.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// OnModeration registers fn to run whenever a moderation action changes the
// store, regardless of which surface (websocket call or HTTP endpoint)
// triggered it. Hooks must be registered during wiring, before the relay
// serves traffic.
func (r *Relay) OnModeration(fn func(chatID string)) {
	r.moderationHooks = append(r.moderationHooks, fn)
}

func (r *Relay) notifyModeration(chatID string) {
	for _, fn := range r.moderationHooks {
		fn(chatID)
	}
}

// HandleConnect classifies a new connection as a guest and announces it to
// the admin group. The connecting guest itself gets no response. This runs
// for every connection, including ones that promote to admin a moment later;
// RegisterAdmin compensates with a guest_left for the same id, and the
// joined-before-left order is part of the contract.
func (r *Relay) HandleConnect(connID string) {
	label := r.registry.RegisterGuest(connID)
	r.channel.PushToGroup(AdminGroup, EventGuestJoined, GuestPresence{ID: connID, Label: label})
	r.trackPresence()
	r.log.Debug("guest connected", "conn_id", connID, "label", label)
}

// HandleDisconnect retires a connection. Both the admin and the guest checks
// run unconditionally; a connection is never both, but the symmetry guards
// against a corrupted registry ever short-circuiting cleanup.
func (r *Relay) HandleDisconnect(connID string) {
	if r.registry.RemoveAdmin(connID) {
		r.broadcastAdminOnline()
		r.log.Debug("admin disconnected", "conn_id", connID)
	}
	if label, ok := r.registry.RemoveGuest(connID); ok {
		r.channel.PushToGroup(AdminGroup, EventGuestLeft, GuestPresence{ID: connID, Label: label})
		r.log.Debug("guest disconnected", "conn_id", connID, "label", label)
	}
	r.trackPresence()
}

// RegisterAdmin promotes a connection to admin. The transport group is joined
// before the registry marks the connection as admin, so a concurrent
// admin-addressed broadcast never skips a freshly promoted connection.
func (r *Relay) RegisterAdmin(connID string) {
	r.channel.AddToGroup(connID, AdminGroup)
	label, wasGuest := r.registry.Promote(connID)

	if wasGuest {
		// Other admins saw this connection flicker in as a guest on connect;
		// retire that identity for everyone but the caller.
		r.channel.PushToGroupExcept(AdminGroup, connID, EventGuestLeft, GuestPresence{ID: connID, Label: label})
	}

	// Seed the new admin's view with the live guest list.
	for _, g := range r.registry.AllGuests() {
		r.channel.PushTo(connID, EventGuestJoined, g)
	}

	r.broadcastAdminOnline()
	r.trackPresence()
	r.log.Info("admin registered", "conn_id", connID)
}

// SendFromGuest relays a guest message: persisted under the guest's own chat,
// shown to admins under the guest's label, echoed to the sender as "You".
func (r *Relay) SendFromGuest(ctx context.Context, connID, text string) {
	label, ok := r.registry.LabelFor(connID)
	if !ok {
		label = fallbackLabel
	}

	msg := models.ChatMessage{
		ID:     NewMessageID(),
		ChatID: connID,
		From:   label,
		Text:   text,
		Ts:     time.Now().UnixMilli(),
	}
	if err := r.store.Save(ctx, msg); err != nil {
		r.log.LogError(err, "failed to persist guest message", "conn_id", connID, "msg_id", msg.ID)
	}

	r.channel.PushToGroup(AdminGroup, EventReceiveFromGuest, GuestMessage{
		ID: connID, Label: label, Text: msg.Text, MsgID: msg.ID, Ts: msg.Ts,
	})
	r.channel.PushTo(connID, EventReceiveToGuest, DirectMessage{
		Label: SelfLabel, Text: msg.Text, MsgID: msg.ID, Ts: msg.Ts,
	})
	r.metrics.Messages.WithLabelValues("guest").Inc()
}

// SendFromAdmin relays an admin reply to one guest. The guest sees "Support",
// the sending admin sees "You", and every other admin sees "Support" filed
// under the guest's id, so all admins follow all conversations.
func (r *Relay) SendFromAdmin(ctx context.Context, senderConnID, targetConnID, text string) {
	msg := models.ChatMessage{
		ID:     NewMessageID(),
		ChatID: targetConnID,
		From:   SupportLabel,
		Text:   text,
		Ts:     time.Now().UnixMilli(),
	}
	if err := r.store.Save(ctx, msg); err != nil {
		r.log.LogError(err, "failed to persist admin message", "chat_id", targetConnID, "msg_id", msg.ID)
	}

	r.channel.PushTo(targetConnID, EventReceiveToGuest, DirectMessage{
		Label: SupportLabel, Text: msg.Text, MsgID: msg.ID, Ts: msg.Ts,
	})
	r.channel.PushTo(senderConnID, EventReceiveFromGuest, GuestMessage{
		ID: targetConnID, Label: SelfLabel, Text: msg.Text, MsgID: msg.ID, Ts: msg.Ts,
	})
	r.channel.PushToGroupExcept(AdminGroup, senderConnID, EventReceiveFromGuest, GuestMessage{
		ID: targetConnID, Label: SupportLabel, Text: msg.Text, MsgID: msg.ID, Ts: msg.Ts,
	})
	r.metrics.Messages.WithLabelValues("admin").Inc()
}

// DeleteMessage soft-deletes one message and, if it existed, tells the admin
// group and the affected guest. Returns whether the deletion occurred.
func (r *Relay) DeleteMessage(ctx context.Context, messageID, chatID string) bool {
	ok, err := r.store.SoftDelete(ctx, messageID)
	if err != nil {
		r.log.LogError(err, "failed to delete message", "msg_id", messageID, "chat_id", chatID)
		return false
	}
	if ok {
		ev := Moderation{ChatID: chatID, MessageID: messageID}
		r.channel.PushToGroup(AdminGroup, EventMessageDeleted, ev)
		r.channel.PushTo(chatID, EventMessageDeleted, ev)
		r.metrics.Moderation.WithLabelValues("delete").Inc()
		r.notifyModeration(chatID)
	}
	return ok
}

// ClearChat soft-deletes every remaining message of a chat and notifies the
// admin group and the guest. Returns the number of messages flipped.
func (r *Relay) ClearChat(ctx context.Context, chatID string) int {
	count, err := r.store.ClearChat(ctx, chatID)
	if err != nil {
		r.log.LogError(err, "failed to clear chat", "chat_id", chatID)
		return 0
	}

	ev := Moderation{ChatID: chatID}
	r.channel.PushToGroup(AdminGroup, EventChatCleared, ev)
	r.channel.PushTo(chatID, EventChatCleared, ev)
	r.metrics.Moderation.WithLabelValues("clear").Inc()
	if count > 0 {
		r.notifyModeration(chatID)
	}
	return count
}

// broadcastAdminOnline pushes the admin headcount to every live connection,
// guests included.
func (r *Relay) broadcastAdminOnline() {
	r.channel.PushToAll(EventAdminOnline, AdminOnline{Count: r.registry.AdminCount()})
}

func (r *Relay) trackPresence() {
	r.metrics.GuestsConnected.Set(float64(r.registry.GuestCount()))
	r.metrics.AdminsConnected.Set(float64(r.registry.AdminCount()))
}

// NewMessageID returns a fresh message id: a UUID without separators.
func NewMessageID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

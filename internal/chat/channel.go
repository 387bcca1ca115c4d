package chat

// AdminGroup is the transport-level group every promoted admin joins. All
// admin-addressed fan-out goes through this group.
const AdminGroup = "admins"

// Event names pushed to connected clients.
const (
	EventGuestJoined      = "guest_joined"
	EventGuestLeft        = "guest_left"
	EventReceiveFromGuest = "receive_from_guest"
	EventReceiveToGuest   = "receive_to_guest"
	EventAdminOnline      = "admin_online"
	EventMessageDeleted   = "message_deleted"
	EventChatCleared      = "chat_cleared"
)

// Channel is the transport seam the relay pushes outbound events through.
// Implementations must tolerate pushes to connection ids that are no longer
// live; the relay never observes a failed delivery.
type Channel interface {
	PushTo(connID, event string, payload any)
	PushToGroup(group, event string, payload any)
	// PushToGroupExcept pushes to every member of group except excludeConnID.
	PushToGroupExcept(group, excludeConnID, event string, payload any)
	PushToAll(event string, payload any)
	AddToGroup(connID, group string)
}

// GuestPresence announces a guest joining or leaving to admins.
type GuestPresence struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// GuestMessage is the admin-facing view of a message: it carries the guest
// connection id so an admin UI can file it under the right conversation.
type GuestMessage struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
	MsgID string `json:"msgId"`
	Ts    int64  `json:"ts"`
}

// DirectMessage is the guest-facing view of a message.
type DirectMessage struct {
	Label string `json:"label"`
	Text  string `json:"text"`
	MsgID string `json:"msgId"`
	Ts    int64  `json:"ts"`
}

// AdminOnline carries the current admin headcount to every connection.
type AdminOnline struct {
	Count int `json:"count"`
}

// Moderation announces a deleted message or a cleared chat.
type Moderation struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId,omitempty"`
}

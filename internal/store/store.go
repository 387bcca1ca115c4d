package store

import (
	"context"

	"support-chat/backend/internal/models"
)

// Store persists chat messages for the relay and the export API.
//
// Implementations must be safe for concurrent use. "Not found" is an ordinary
// outcome (false, 0), never an error; errors are reserved for backend
// failures. ClearChat must report exactly the number of messages the call
// itself flipped, even under concurrent writers on the same chat.
type Store interface {
	// Save inserts the message, or overwrites it if the id already exists.
	// An overwrite never resurrects a deleted message.
	Save(ctx context.Context, msg models.ChatMessage) error

	// SoftDelete marks the message deleted and reports whether the id
	// existed. Deleting an already-deleted message still reports true.
	SoftDelete(ctx context.Context, messageID string) (bool, error)

	// ClearChat marks every not-yet-deleted message of the chat as deleted
	// and returns the number of messages it transitioned.
	ClearChat(ctx context.Context, chatID string) (int, error)

	// GetChat returns a snapshot of all messages for the chat, deleted ones
	// included, ordered by ascending timestamp.
	GetChat(ctx context.Context, chatID string) ([]models.ChatMessage, error)
}

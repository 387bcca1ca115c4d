package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"support-chat/backend/internal/models"
)

// Postgres persists messages through GORM. It honors the same contract as the
// in-memory store; the relay never blocks on it beyond the driver call itself.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) (*Postgres, error) {
	if err := db.AutoMigrate(&models.ChatMessage{}); err != nil {
		return nil, fmt.Errorf("migrate chat_messages: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Save(ctx context.Context, msg models.ChatMessage) error {
	// On id conflict the immutable columns are rewritten but deleted is left
	// alone, so an overwrite can never resurrect a deleted message.
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"chat_id", "from_label", "text", "ts"}),
		}).
		Create(&msg).Error
}

func (p *Postgres) SoftDelete(ctx context.Context, messageID string) (bool, error) {
	res := p.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("id = ?", messageID).
		Update("deleted", true)
	return res.RowsAffected > 0, res.Error
}

func (p *Postgres) ClearChat(ctx context.Context, chatID string) (int, error) {
	// A single UPDATE makes check-then-mark atomic; RowsAffected is exactly
	// the number of messages this call flipped.
	res := p.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("chat_id = ? AND deleted = ?", chatID, false).
		Update("deleted", true)
	return int(res.RowsAffected), res.Error
}

func (p *Postgres) GetChat(ctx context.Context, chatID string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := p.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("ts ASC, seq ASC").
		Find(&msgs).Error
	return msgs, err
}

package store

import (
	"context"
	"sort"
	"sync"

	"support-chat/backend/internal/models"
)

// Memory is the reference in-memory store: a mutex-guarded map keyed by
// message id. Nothing survives a restart.
type Memory struct {
	mu   sync.Mutex
	msgs map[string]models.ChatMessage
	seq  int64
}

func NewMemory() *Memory {
	return &Memory{msgs: make(map[string]models.ChatMessage)}
}

func (m *Memory) Save(_ context.Context, msg models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.msgs[msg.ID]; ok {
		// Overwrite keeps the original insertion position and never
		// resurrects a deleted message.
		msg.Seq = old.Seq
		msg.Deleted = msg.Deleted || old.Deleted
	} else {
		m.seq++
		msg.Seq = m.seq
	}
	m.msgs[msg.ID] = msg
	return nil
}

func (m *Memory) SoftDelete(_ context.Context, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[messageID]
	if !ok {
		return false, nil
	}
	msg.Deleted = true
	m.msgs[messageID] = msg
	return true, nil
}

func (m *Memory) ClearChat(_ context.Context, chatID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, msg := range m.msgs {
		if msg.ChatID == chatID && !msg.Deleted {
			msg.Deleted = true
			m.msgs[id] = msg
			count++
		}
	}
	return count, nil
}

func (m *Memory) GetChat(_ context.Context, chatID string) ([]models.ChatMessage, error) {
	m.mu.Lock()
	out := make([]models.ChatMessage, 0, 8)
	for _, msg := range m.msgs {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Ts != out[j].Ts {
			return out[i].Ts < out[j].Ts
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

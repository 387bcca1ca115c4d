package store

import (
	"context"

	"support-chat/backend/internal/models"
	"support-chat/backend/pkg/resilience"
)

// Guarded wraps a durable backend with a circuit breaker. When the backend is
// down the relay keeps relaying: moderation degrades to not-found outcomes and
// history reads come back empty, with the error surfaced to the caller.
type Guarded struct {
	inner Store
	cb    *resilience.CircuitBreaker
}

func Guard(inner Store, cb *resilience.CircuitBreaker) *Guarded {
	return &Guarded{inner: inner, cb: cb}
}

func (g *Guarded) Save(ctx context.Context, msg models.ChatMessage) error {
	return g.cb.Execute(func() error {
		return g.inner.Save(ctx, msg)
	})
}

func (g *Guarded) SoftDelete(ctx context.Context, messageID string) (bool, error) {
	var ok bool
	err := g.cb.Execute(func() error {
		var innerErr error
		ok, innerErr = g.inner.SoftDelete(ctx, messageID)
		return innerErr
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (g *Guarded) ClearChat(ctx context.Context, chatID string) (int, error) {
	var count int
	err := g.cb.Execute(func() error {
		var innerErr error
		count, innerErr = g.inner.ClearChat(ctx, chatID)
		return innerErr
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (g *Guarded) GetChat(ctx context.Context, chatID string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := g.cb.Execute(func() error {
		var innerErr error
		msgs, innerErr = g.inner.GetChat(ctx, chatID)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

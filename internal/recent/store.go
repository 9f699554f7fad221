// Package recent keeps the summary of the last confirmed order so companion
// screens can show it. It is written at confirmation and cleared by the next
// successful checkout.
package recent

import (
	"context"
	"errors"
	"sync"

	"bookstore-pos/internal/domain"
)

var ErrNoRecentOrder = errors.New("no recent order")

type Store interface {
	Get(ctx context.Context) (*domain.RecentOrder, error)
	Set(ctx context.Context, order domain.RecentOrder) error
	Clear(ctx context.Context) error
}

// MemoryStore is used when no Redis address is configured.
type MemoryStore struct {
	mu    sync.Mutex
	order *domain.RecentOrder
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context) (*domain.RecentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.order == nil {
		return nil, ErrNoRecentOrder
	}
	o := *m.order
	return &o, nil
}

func (m *MemoryStore) Set(_ context.Context, order domain.RecentOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = &order
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = nil
	return nil
}

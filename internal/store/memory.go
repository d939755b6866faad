package store

import (
	"context"
	"sync"

	"github.com/utafrali/EcommerceGo/storefront/internal/domain"
)

// MemoryPersister keeps persisted collections in process memory.
type MemoryPersister struct {
	mu    sync.Mutex
	data  map[domain.Kind][]domain.LineItem
	saves int
}

// NewMemoryPersister creates an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{data: make(map[domain.Kind][]domain.LineItem)}
}

func (p *MemoryPersister) Load(_ context.Context, kind domain.Kind) ([]domain.LineItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneItems(p.data[kind]), nil
}

func (p *MemoryPersister) Save(_ context.Context, kind domain.Kind, items []domain.LineItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[kind] = cloneItems(items)
	p.saves++
	return nil
}

// Saves returns how many writes the persister has received.
func (p *MemoryPersister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

package contact

import (
	"context"
	"sync"

	"relay_chat/internal/model"
)

// MemoryBackend keeps copies of the saved contacts for the life of the
// process.
type MemoryBackend struct {
	mu       sync.Mutex
	contacts []*model.Contact
	saves    int
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend(contacts ...*model.Contact) *MemoryBackend {
	return &MemoryBackend{contacts: contacts}
}

func (b *MemoryBackend) Load(context.Context) ([]*model.Contact, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*model.Contact, len(b.contacts))
	for i, c := range b.contacts {
		out[i] = c.Clone()
	}
	return out, nil
}

func (b *MemoryBackend) Save(_ context.Context, contacts []*model.Contact) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contacts = make([]*model.Contact, len(contacts))
	for i, c := range contacts {
		b.contacts[i] = c.Clone()
	}
	b.saves++
	return nil
}

// Saves reports how many commits reached the backend.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

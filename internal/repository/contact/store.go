// Package contact is the client's contact store: the working set of
// contacts kept in memory and persisted through a Backend on commit.
package contact

import (
	"context"
	"fmt"
	"sync"

	"relay_chat/internal/model"
)

type (
	// Backend persists the whole contact list. Save must write each
	// contact atomically together with its components and messages.
	Backend interface {
		Load(ctx context.Context) ([]*model.Contact, error)
		Save(ctx context.Context, contacts []*model.Contact) error
	}

	Store struct {
		mu       sync.Mutex
		backend  Backend
		contacts []*model.Contact
	}

	// Tx scopes a set of in-memory mutations. Rollback puts every contact
	// back to its state at Begin and drops inserted contacts; it is a no-op
	// once Commit succeeded, so it can always be deferred.
	Tx struct {
		store    *Store
		snapshot map[*model.Contact]*model.Contact
		inserted []*model.Contact
		done     bool
	}
)

func NewStore(ctx context.Context, backend Backend) (*Store, error) {
	contacts, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	return &Store{backend: backend, contacts: contacts}, nil
}

// Contacts returns the contacts in insertion order.
func (s *Store) Contacts() []*model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Contact, len(s.contacts))
	copy(out, s.contacts)
	return out
}

func (s *Store) FindByAddress(address string) *model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contacts {
		if c.EqualAddress(address) {
			return c
		}
	}
	return nil
}

func (s *Store) FindByMyAlias(alias string) *model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contacts {
		if c.MyAlias != "" && c.MyAlias == alias {
			return c
		}
	}
	return nil
}

func (s *Store) Begin() *Tx {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[*model.Contact]*model.Contact, len(s.contacts))
	for _, c := range s.contacts {
		snapshot[c] = c.Clone()
	}
	return &Tx{store: s, snapshot: snapshot}
}

// Insert adds c to the store; it is visible immediately and removed again
// on rollback.
func (tx *Tx) Insert(c *model.Contact) {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = append(s.contacts, c)
	tx.inserted = append(tx.inserted, c)
}

func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return nil
	}
	if err := tx.store.backend.Save(ctx, tx.store.Contacts()); err != nil {
		return fmt.Errorf("save contacts: %w", err)
	}
	tx.done = true
	return nil
}

func (tx *Tx) Rollback() {
	if tx.done {
		return
	}
	tx.done = true

	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, saved := range tx.snapshot {
		*c = *saved
	}
	if len(tx.inserted) == 0 {
		return
	}
	drop := make(map[*model.Contact]bool, len(tx.inserted))
	for _, c := range tx.inserted {
		drop[c] = true
	}
	kept := s.contacts[:0]
	for _, c := range s.contacts {
		if !drop[c] {
			kept = append(kept, c)
		}
	}
	s.contacts = kept
}

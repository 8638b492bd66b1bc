package server

import (
	"context"
	"sort"
	"sync"

	"relay_chat/internal/errs"
	"relay_chat/internal/model"
)

type (
	// Storage holds the relay's alias registry and per-user inboxes.
	// Enqueue wakes the recipient's subscribers.
	Storage interface {
		CreateAlias(ctx context.Context, owner, alias string) error
		DeleteAlias(ctx context.Context, owner, alias string) error
		Aliases(ctx context.Context, owner string) ([]string, error)
		AliasOwner(ctx context.Context, alias string) (string, error)

		Enqueue(ctx context.Context, recipient string, typ model.MessageType, data []byte) (int64, error)
		Headers(ctx context.Context, recipient string) ([]model.MessageHeader, error)
		Message(ctx context.Context, recipient string, id int64) ([]byte, error)
		DeleteMessage(ctx context.Context, recipient string, id int64) error

		// Subscribe delivers a value per queued message until cancel is
		// called or ctx ends.
		Subscribe(ctx context.Context, recipient string) (ch <-chan struct{}, cancel func())
	}

	queued struct {
		typ  model.MessageType
		data []byte
	}

	// MemoryStorage keeps everything in process. It backs tests and
	// single-node development runs without Redis.
	MemoryStorage struct {
		mu          sync.Mutex
		nextID      int64
		aliases     map[string]string
		inboxes     map[string]map[int64]queued
		subscribers map[string]map[chan struct{}]struct{}
	}
)

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		aliases:     make(map[string]string),
		inboxes:     make(map[string]map[int64]queued),
		subscribers: make(map[string]map[chan struct{}]struct{}),
	}
}

func (s *MemoryStorage) CreateAlias(_ context.Context, owner, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.aliases[alias]; ok {
		return errs.ErrAliasExists
	}
	s.aliases[alias] = owner
	return nil
}

func (s *MemoryStorage) DeleteAlias(_ context.Context, owner, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aliases[alias] != owner {
		return errs.ErrAliasNotFound
	}
	delete(s.aliases, alias)
	return nil
}

func (s *MemoryStorage) Aliases(_ context.Context, owner string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for alias, o := range s.aliases {
		if o == owner {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStorage) AliasOwner(_ context.Context, alias string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.aliases[alias]
	if !ok {
		return "", errs.ErrAliasNotFound
	}
	return owner, nil
}

func (s *MemoryStorage) Enqueue(_ context.Context, recipient string, typ model.MessageType, data []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	inbox, ok := s.inboxes[recipient]
	if !ok {
		inbox = make(map[int64]queued)
		s.inboxes[recipient] = inbox
	}
	inbox[s.nextID] = queued{typ: typ, data: append([]byte(nil), data...)}
	for ch := range s.subscribers[recipient] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return s.nextID, nil
}

func (s *MemoryStorage) Headers(_ context.Context, recipient string) ([]model.MessageHeader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MessageHeader, 0, len(s.inboxes[recipient]))
	for id, q := range s.inboxes[recipient] {
		out = append(out, model.MessageHeader{ID: id, Size: int64(len(q.data)), Type: q.typ})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStorage) Message(_ context.Context, recipient string, id int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.inboxes[recipient][id]
	if !ok {
		return nil, errs.ErrMessageNotFound
	}
	return q.data, nil
}

func (s *MemoryStorage) DeleteMessage(_ context.Context, recipient string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inboxes[recipient][id]; !ok {
		return errs.ErrMessageNotFound
	}
	delete(s.inboxes[recipient], id)
	return nil
}

func (s *MemoryStorage) Subscribe(ctx context.Context, recipient string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	if s.subscribers[recipient] == nil {
		s.subscribers[recipient] = make(map[chan struct{}]struct{})
	}
	s.subscribers[recipient][ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers[recipient], ch)
			s.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel
}

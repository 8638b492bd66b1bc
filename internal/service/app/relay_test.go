package app_test

import (
	"context"
	"crypto/rsa"
	"sort"
	"sync"

	"relay_chat/internal/cryptographic/signature"
	"relay_chat/internal/errs"
	"relay_chat/internal/model"
	"relay_chat/internal/protocol/message"
	"relay_chat/internal/service/app"
)

type stored struct {
	header model.MessageHeader
	data   []byte
}

// fakeRelay is an in-memory relay shared by several clients.
type fakeRelay struct {
	mu       sync.Mutex
	nextID   int64
	aliases  map[string]string
	inbox    map[string][]stored
	reversed bool
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{aliases: map[string]string{}, inbox: map[string][]stored{}}
}

func (r *fakeRelay) push(user string, typ model.MessageType, data []byte) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.inbox[user] = append(r.inbox[user], stored{
		header: model.MessageHeader{ID: r.nextID, Size: int64(len(data)), Type: typ},
		data:   data,
	})
	return r.nextID
}

func (r *fakeRelay) pending(user string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inbox[user])
}

// fakeTransport is one client's view of the relay.
type fakeTransport struct {
	relay *fakeRelay
	user  string

	mu              sync.Mutex
	calls           int
	fetches         map[int64]int
	aliasCollisions int
	sendErr         error
	headersErr      error
	deleteErr       error
}

var _ app.Transport = (*fakeTransport)(nil)

func (t *fakeTransport) count() {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
}

func (t *fakeTransport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *fakeTransport) Fetches(id int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fetches[id]
}

func (t *fakeTransport) GetMessageHeaders(context.Context) ([]model.MessageHeader, error) {
	t.count()
	if t.headersErr != nil {
		return nil, t.headersErr
	}
	r := t.relay
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.MessageHeader
	for _, s := range r.inbox[t.user] {
		out = append(out, s.header)
	}
	if r.reversed {
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	}
	return out, nil
}

func (t *fakeTransport) GetMessage(_ context.Context, h model.MessageHeader) ([]byte, error) {
	t.count()
	t.mu.Lock()
	if t.fetches == nil {
		t.fetches = map[int64]int{}
	}
	t.fetches[h.ID]++
	t.mu.Unlock()

	r := t.relay
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.inbox[t.user] {
		if s.header.ID == h.ID {
			return s.data, nil
		}
	}
	return nil, errs.ErrMessageNotFound
}

func (t *fakeTransport) DeleteMessage(_ context.Context, h model.MessageHeader) error {
	t.count()
	if t.deleteErr != nil {
		return t.deleteErr
	}
	r := t.relay
	r.mu.Lock()
	defer r.mu.Unlock()
	box := r.inbox[t.user]
	for i, s := range box {
		if s.header.ID == h.ID {
			r.inbox[t.user] = append(box[:i:i], box[i+1:]...)
			return nil
		}
	}
	return errs.ErrMessageNotFound
}

func (t *fakeTransport) SendInvitation(_ context.Context, data []byte) error {
	t.count()
	if t.sendErr != nil {
		return t.sendErr
	}
	receiver, err := message.InvitationReceiver(data)
	if err != nil {
		return errs.ErrIncorrectAlias
	}
	t.relay.push(receiver, model.MessageTypeInvitation, data)
	return nil
}

func (t *fakeTransport) SendMessage(_ context.Context, data []byte) error {
	t.count()
	if t.sendErr != nil {
		return t.sendErr
	}
	alias, err := message.ChatReceiverAlias(data)
	if err != nil {
		return errs.ErrBadRequest
	}
	t.relay.mu.Lock()
	owner, ok := t.relay.aliases[alias]
	t.relay.mu.Unlock()
	if !ok {
		return errs.ErrBadRequest
	}
	t.relay.push(owner, model.MessageTypeChat, data)
	return nil
}

func (t *fakeTransport) CreateAlias(_ context.Context, alias string) error {
	t.count()
	t.mu.Lock()
	if t.aliasCollisions > 0 {
		t.aliasCollisions--
		t.mu.Unlock()
		return errs.ErrAliasExists
	}
	t.mu.Unlock()

	r := t.relay
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.aliases[alias]; ok {
		return errs.ErrAliasExists
	}
	r.aliases[alias] = t.user
	return nil
}

func (t *fakeTransport) DeleteAlias(_ context.Context, alias string) error {
	t.count()
	r := t.relay
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.aliases[alias] != t.user {
		return errs.ErrAliasNotFound
	}
	delete(r.aliases, alias)
	return nil
}

func (t *fakeTransport) GetAliases(context.Context) ([]string, error) {
	t.count()
	r := t.relay
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for alias, owner := range r.aliases {
		if owner == t.user {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memKeys struct {
	mu      sync.Mutex
	keys    map[string]*rsa.PrivateKey
	deleted []string
}

func (k *memKeys) GetOrCreateKeypair(alias string) (*rsa.PrivateKey, []byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.keys == nil {
		k.keys = map[string]*rsa.PrivateKey{}
	}
	priv, ok := k.keys[alias]
	if !ok {
		var err error
		if priv, err = signature.NewRSAKeypair(1024); err != nil {
			return nil, nil, err
		}
		k.keys[alias] = priv
	}
	pub, err := signature.MarshalPublicKey(&priv.PublicKey)
	return priv, pub, err
}

func (k *memKeys) Delete(alias string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, alias)
	k.deleted = append(k.deleted, alias)
	return nil
}

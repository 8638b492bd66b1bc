package contact_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay_chat/internal/model"
	"relay_chat/internal/repository/contact"
)

type failingBackend struct {
	*contact.MemoryBackend
}

func (failingBackend) Save(context.Context, []*model.Contact) error {
	return errors.New("disk full")
}

func newStore(t *testing.T, backend contact.Backend) *contact.Store {
	t.Helper()
	s, err := contact.NewStore(context.Background(), backend)
	require.NoError(t, err)
	return s
}

func TestCommitPersists(t *testing.T) {
	ctx := context.Background()
	backend := contact.NewMemoryBackend()
	s := newStore(t, backend)

	tx := s.Begin()
	defer tx.Rollback()
	bob, err := model.NewContact("bob@relay")
	require.NoError(t, err)
	tx.Insert(bob)
	_, err = bob.Invite("ALIAS")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	tx.Rollback()

	assert.Equal(t, 1, backend.Saves())
	assert.Same(t, bob, s.FindByAddress("BOB@relay"))
	assert.Same(t, bob, s.FindByMyAlias("ALIAS"))
	assert.Nil(t, s.FindByMyAlias(""))

	reloaded := newStore(t, backend)
	require.Len(t, reloaded.Contacts(), 1)
	got := reloaded.Contacts()[0]
	assert.Equal(t, model.StatusInvited, got.Status)
	assert.Len(t, got.MyComponents, 1)
}

func TestRollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	bob, err := model.NewContact("bob@relay")
	require.NoError(t, err)
	s := newStore(t, contact.NewMemoryBackend(bob))
	bob = s.Contacts()[0]

	func() {
		tx := s.Begin()
		defer tx.Rollback()
		carol, err := model.NewContact("carol@relay")
		require.NoError(t, err)
		tx.Insert(carol)
		_, err = bob.Invite("ALIAS")
		require.NoError(t, err)
		assert.Len(t, s.Contacts(), 2)
	}()

	assert.Len(t, s.Contacts(), 1)
	assert.Same(t, bob, s.Contacts()[0], "pointer identity survives rollback")
	assert.Equal(t, model.StatusKnown, bob.Status)
	assert.Empty(t, bob.MyAlias)
	assert.Empty(t, bob.MyComponents)

	tx := s.Begin()
	_, err = bob.Invite("ALIAS")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, model.StatusInvited, bob.Status)
}

func TestFailedCommitRollsBack(t *testing.T) {
	bob, err := model.NewContact("bob@relay")
	require.NoError(t, err)
	s := newStore(t, failingBackend{contact.NewMemoryBackend(bob)})
	bob = s.Contacts()[0]

	tx := s.Begin()
	_, err = bob.Invite("ALIAS")
	require.NoError(t, err)
	assert.Error(t, tx.Commit(context.Background()))
	tx.Rollback()
	assert.Equal(t, model.StatusKnown, bob.Status)
}

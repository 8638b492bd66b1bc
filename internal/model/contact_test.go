package model_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay_chat/internal/cryptographic/dh"
	"relay_chat/internal/errs"
	"relay_chat/internal/model"
)

func newContact(t *testing.T, address string) *model.Contact {
	t.Helper()
	c, err := model.NewContact(address)
	require.NoError(t, err)
	return c
}

func received(t *testing.T, serial int64) *model.ReceivedComponent {
	t.Helper()
	sent, err := model.NewSentComponent(serial)
	require.NoError(t, err)
	return model.NewReceivedComponent(serial, sent.Public)
}

func TestNewContact(t *testing.T) {
	c := newContact(t, "bob@relay")
	assert.Equal(t, model.StatusKnown, c.Status)
	assert.Equal(t, "bob", c.Username())

	_, err := model.NewContact("@relay")
	assert.ErrorIs(t, err, errs.ErrInvalidAddress)
	_, err = model.NewContact("bob")
	assert.ErrorIs(t, err, errs.ErrInvalidAddress)
}

func TestAddressHelpers(t *testing.T) {
	assert.Equal(t, "alice", model.ParseUsername("alice@relay.example"))
	assert.Equal(t, "relay.example", model.ParseServer("alice@relay.example"))
	assert.True(t, newContact(t, "Alice@Relay").EqualAddress("alice@relay"))
	assert.False(t, newContact(t, "alice@relay").EqualAddress("alice@other"))
}

func TestStatusTransitions(t *testing.T) {
	allowed := map[model.ContactStatus][]model.ContactStatus{
		model.StatusUnknown: {model.StatusKnown},
		model.StatusKnown:   {model.StatusInvited, model.StatusWannabe},
		model.StatusWannabe: {model.StatusFriend, model.StatusRejected},
		model.StatusInvited: {model.StatusFriend},
	}
	all := []model.ContactStatus{
		model.StatusUnknown, model.StatusKnown, model.StatusInvited, model.StatusWannabe,
		model.StatusFriend, model.StatusRejected, model.StatusUnfriendly,
	}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestInviteThenAcceptFails(t *testing.T) {
	c := newContact(t, "bob@relay")
	first, err := c.Invite("MYALIAS")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Serial)
	assert.Equal(t, model.StatusInvited, c.Status)

	_, err = c.AcceptInvitation("OTHER")
	assert.ErrorIs(t, err, errs.ErrIllegalTransition)
	assert.Equal(t, model.StatusInvited, c.Status)
	assert.Equal(t, "MYALIAS", c.MyAlias)
	assert.Len(t, c.MyComponents, 1)
}

func TestInvitationAccepted(t *testing.T) {
	c := newContact(t, "bob@relay")
	_, err := c.Invite("MINE")
	require.NoError(t, err)

	next, err := c.InvitationAccepted("THEIRS", []byte("key"), received(t, 1))
	require.NoError(t, err)
	assert.Equal(t, model.StatusFriend, c.Status)
	assert.Equal(t, "THEIRS", c.Alias)
	assert.Equal(t, []byte("key"), c.PublicKey)
	assert.Equal(t, int64(2), next.Serial)
	assert.Len(t, c.OtherComponents, 1)
}

func TestInvitationAcceptedNeedsInvite(t *testing.T) {
	c := newContact(t, "bob@relay")
	require.NoError(t, c.InvitationReceived("THEIRS", []byte("key"), received(t, 1)))

	_, err := c.InvitationAccepted("OTHER", []byte("other"), received(t, 2))
	assert.ErrorIs(t, err, errs.ErrIllegalTransition)
	assert.Equal(t, model.StatusWannabe, c.Status)
	assert.Equal(t, "THEIRS", c.Alias)
	assert.Empty(t, c.MyComponents)
	assert.Len(t, c.OtherComponents, 1)
}

func TestInvitationReceivedThenAccept(t *testing.T) {
	c := newContact(t, "alice@relay")
	require.NoError(t, c.InvitationReceived("ALICEALIAS", []byte("key"), received(t, 1)))
	assert.Equal(t, model.StatusWannabe, c.Status)
	assert.Empty(t, c.MyComponents)

	first, err := c.AcceptInvitation("BOBALIAS")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFriend, c.Status)
	assert.Equal(t, int64(1), first.Serial)
	assert.Equal(t, "BOBALIAS", c.MyAlias)
}

func TestTerminalStatusesRejectMutations(t *testing.T) {
	c := newContact(t, "alice@relay")
	require.NoError(t, c.InvitationReceived("A", nil, received(t, 1)))
	require.NoError(t, c.Reject())
	assert.Equal(t, model.StatusRejected, c.Status)

	assert.ErrorIs(t, c.InvitationReceived("B", nil, received(t, 2)), errs.ErrIllegalTransition)
	_, err := c.Invite("X")
	assert.ErrorIs(t, err, errs.ErrIllegalTransition)
	assert.Equal(t, "A", c.Alias)
}

func TestInviteClearsStaleComponents(t *testing.T) {
	c := &model.Contact{Address: "bob@relay", Status: model.StatusKnown}
	_, err := c.CreateComponent()
	require.NoError(t, err)
	_, err = c.CreateComponent()
	require.NoError(t, err)

	first, err := c.Invite("A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Serial)
	assert.Len(t, c.MyComponents, 1)
}

func TestCreateSecretSelection(t *testing.T) {
	c := newContact(t, "bob@relay")
	_, err := c.CreateSecret()
	assert.ErrorIs(t, err, errs.ErrNoSecret)

	_, err = c.Invite("A")
	require.NoError(t, err)
	_, err = c.CreateSecret()
	assert.ErrorIs(t, err, errs.ErrNoSecret)

	c.AddReceived(received(t, 1))
	s, err := c.CreateSecret()
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.My.Serial)
	assert.Equal(t, int64(1), s.Other.Serial)

	_, err = c.CreateComponent()
	require.NoError(t, err)
	_, err = c.CreateComponent()
	require.NoError(t, err)
	c.AddReceived(received(t, 2))
	s, err = c.CreateSecret()
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.My.Serial)
	assert.Equal(t, int64(2), s.Other.Serial)
}

func TestCreateSecretNeedsReceivedWithManySent(t *testing.T) {
	c := newContact(t, "bob@relay")
	_, err := c.Invite("A")
	require.NoError(t, err)
	_, err = c.CreateComponent()
	require.NoError(t, err)
	_, err = c.CreateSecret()
	assert.ErrorIs(t, err, errs.ErrNoSecret)
}

func TestSecretAgreement(t *testing.T) {
	a, err := model.NewSentComponent(1)
	require.NoError(t, err)
	b, err := model.NewSentComponent(1)
	require.NoError(t, err)

	sa := model.Secret{My: a, Other: model.NewReceivedComponent(1, b.Public)}
	sb := model.Secret{My: b, Other: model.NewReceivedComponent(1, a.Public)}
	assert.Equal(t, 0, sa.Value().Cmp(sb.Value()))
	assert.Equal(t, sa.Key(), sb.Key())
	assert.Len(t, sa.Key(), dh.KeySize)
}

func TestAddReceivedKeepsSerialsAscendingAndUnique(t *testing.T) {
	c := newContact(t, "bob@relay")
	assert.True(t, c.AddReceived(model.NewReceivedComponent(2, big.NewInt(5))))
	assert.True(t, c.AddReceived(model.NewReceivedComponent(1, big.NewInt(3))))
	assert.False(t, c.AddReceived(model.NewReceivedComponent(2, big.NewInt(7))))

	require.Len(t, c.OtherComponents, 2)
	assert.Equal(t, int64(1), c.OtherComponents[0].Serial)
	assert.Equal(t, int64(2), c.OtherComponents[1].Serial)
	assert.Equal(t, int64(5), c.FindReceived(2).Public.Int64())
}

func TestMessagesHistory(t *testing.T) {
	c := newContact(t, "bob@relay")
	now := time.Now()
	for i := 0; i < 4; i++ {
		m := model.NewReceivedMessage(c, []byte{byte(i)}, model.ContentTextPlain, model.NewReceivedComponent(1, big.NewInt(2)))
		m.Time = now.Add(time.Duration(i) * time.Minute)
		c.AddMessage(m)
	}
	c.AddMessage(&model.MessageData{Status: model.MessageSent, Time: now.Add(-time.Hour)})

	assert.Equal(t, 4, c.UnreadCount())
	recent := c.RecentMessages(2)
	require.Len(t, recent, 2)
	assert.Equal(t, []byte{3}, recent[0].Content)
	assert.Equal(t, []byte{2}, recent[1].Content)
	assert.Len(t, c.RecentMessages(0), 5)

	assert.True(t, recent[0].MarkRead())
	assert.False(t, recent[0].MarkRead())
	assert.Equal(t, 3, c.UnreadCount())
}

func TestCloneIsIndependent(t *testing.T) {
	c := newContact(t, "bob@relay")
	_, err := c.Invite("A")
	require.NoError(t, err)
	c.AddMessage(model.NewReceivedMessage(c, []byte("hi"), model.ContentTextPlain, received(t, 1)))

	cp := c.Clone()
	_, err = c.InvitationAccepted("B", []byte("k"), received(t, 1))
	require.NoError(t, err)
	c.Messages[0].MarkRead()

	assert.Equal(t, model.StatusInvited, cp.Status)
	assert.Len(t, cp.MyComponents, 1)
	assert.Empty(t, cp.OtherComponents)
	assert.Equal(t, model.MessageUnread, cp.Messages[0].Status)
}

// Package app is the client session: it sends invitations and messages,
// polls the relay and applies what it receives to the contact store.
//
// An App serves one local identity against one relay and is not safe for
// concurrent use.
package app

import (
	"context"

	"relay_chat/internal/model"
	"relay_chat/internal/protocol/message"
	"relay_chat/internal/repository/contact"
)

type (
	// Transport is the relay as seen by the client.
	Transport interface {
		GetMessageHeaders(ctx context.Context) ([]model.MessageHeader, error)
		GetMessage(ctx context.Context, header model.MessageHeader) ([]byte, error)
		DeleteMessage(ctx context.Context, header model.MessageHeader) error
		SendInvitation(ctx context.Context, invitation []byte) error
		SendMessage(ctx context.Context, msg []byte) error
		CreateAlias(ctx context.Context, alias string) error
		DeleteAlias(ctx context.Context, alias string) error
		GetAliases(ctx context.Context) ([]string, error)
	}

	// Events are optional callbacks. Unset callbacks are skipped.
	Events struct {
		MessageSent        func(c *model.Contact, m *model.MessageData)
		MessageReceived    func(c *model.Contact, m *model.MessageData)
		MessagesReceived   func(byContact map[*model.Contact][]*model.MessageData)
		InvitationSent     func(c *model.Contact)
		InvitationReceived func(c *model.Contact)
		InvitationAccepted func(c *model.Contact)
		// Error receives failures of single items while polling.
		Error func(err error)
	}

	App struct {
		transport Transport
		contacts  *contact.Store
		keys      message.KeyStore
		events    Events

		// ignored holds relay message ids that can never be decoded.
		ignored map[int64]struct{}
	}
)

func NewApp(transport Transport, contacts *contact.Store, keys message.KeyStore, events Events) *App {
	return &App{
		transport: transport,
		contacts:  contacts,
		keys:      keys,
		events:    events,
		ignored:   make(map[int64]struct{}),
	}
}

func (a *App) Contacts() []*model.Contact {
	return a.contacts.Contacts()
}

func (a *App) FindContact(address string) *model.Contact {
	return a.contacts.FindByAddress(address)
}

// Messages returns the n most recent messages exchanged with c without
// changing their status.
func (a *App) Messages(c *model.Contact, n int) []*model.MessageData {
	return c.RecentMessages(n)
}

// ReadMessages returns the n most recent messages and marks the unread ones
// among them as read.
func (a *App) ReadMessages(ctx context.Context, c *model.Contact, n int) ([]*model.MessageData, error) {
	msgs := c.RecentMessages(n)
	unread := false
	for _, m := range msgs {
		if m.Status == model.MessageUnread {
			unread = true
			break
		}
	}
	if !unread {
		return msgs, nil
	}

	tx := a.contacts.Begin()
	defer tx.Rollback()
	for _, m := range msgs {
		m.MarkRead()
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (a *App) UnreadCount(c *model.Contact) int {
	return c.UnreadCount()
}

// DeleteAllMessages drops everything waiting on the relay for us and
// returns how many messages were deleted.
func (a *App) DeleteAllMessages(ctx context.Context) (int, error) {
	headers, err := a.transport.GetMessageHeaders(ctx)
	if err != nil {
		return 0, err
	}
	for i, h := range headers {
		if err := a.transport.DeleteMessage(ctx, h); err != nil {
			return i, err
		}
	}
	return len(headers), nil
}

func (a *App) reportError(err error) {
	if a.events.Error != nil {
		a.events.Error(err)
	}
}

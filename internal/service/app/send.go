package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"relay_chat/internal/errs"
	"relay_chat/internal/model"
	"relay_chat/internal/protocol/message"
	"relay_chat/internal/utils/log"
)

// SendMessage seals content for a Friend contact and queues it on the relay.
// The message offers the contact's latest sent component.
func (a *App) SendMessage(ctx context.Context, c *model.Contact, content []byte, typ model.ContentType) (*model.MessageData, error) {
	if c.Status != model.StatusFriend {
		return nil, fmt.Errorf("%s is %s: %w", c.Username(), c.Status, errs.ErrNotFriend)
	}

	tx := a.contacts.Begin()
	defer tx.Rollback()

	secret, err := c.CreateSecret()
	if err != nil {
		return nil, err
	}
	data := model.NewSentMessage(c, content, typ, c.LastSent())
	payload, err := message.EncodeChat(a.keys, c, secret, data)
	if err != nil {
		return nil, err
	}
	c.AddMessage(data)
	if err := a.transport.SendMessage(ctx, payload); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Debug("message sent",
		zap.String("to", c.Address),
		zap.Int64("my_serial", secret.My.Serial),
		zap.Int64("their_serial", secret.Other.Serial),
		zap.Int("size", len(payload)))
	if a.events.MessageSent != nil {
		a.events.MessageSent(c, data)
	}
	return data, nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"relay_chat/internal/errs"
	"relay_chat/internal/model"
	"relay_chat/internal/protocol/message"
	"relay_chat/internal/utils/log"
)

// CheckMessages fetches everything waiting on the relay. Invitations are
// handled newest first, then chat messages oldest first so that components
// are applied in the order they were offered.
//
// A failing item does not stop the poll: it is passed to Events.Error and
// left on the relay for the next poll, unless it can never be decoded, in
// which case its id is ignored for the rest of the session. The returned
// count is the number of invitations and messages processed; the error is
// only set when the index itself could not be fetched.
func (a *App) CheckMessages(ctx context.Context) (int, error) {
	headers, err := a.transport.GetMessageHeaders(ctx)
	if err != nil {
		return 0, err
	}

	var invitations, chats []model.MessageHeader
	for _, h := range headers {
		if _, ok := a.ignored[h.ID]; ok {
			continue
		}
		switch h.Type {
		case model.MessageTypeInvitation:
			invitations = append(invitations, h)
		case model.MessageTypeChat:
			chats = append(chats, h)
		}
	}
	sort.Slice(invitations, func(i, j int) bool { return invitations[i].ID > invitations[j].ID })
	sort.Slice(chats, func(i, j int) bool { return chats[i].ID < chats[j].ID })

	nInvitations := 0
	for _, h := range invitations {
		if err := a.processInvitation(ctx, h); err != nil {
			a.handleItemError(h, err)
			continue
		}
		nInvitations++
	}

	received := make(map[*model.Contact][]*model.MessageData)
	var first *model.Contact
	nMessages := 0
	for _, h := range chats {
		chat, err := a.processMessage(ctx, h)
		if err != nil {
			a.handleItemError(h, err)
			if chat == nil {
				continue
			}
		}
		if first == nil {
			first = chat.Sender
		}
		received[chat.Sender] = append(received[chat.Sender], chat.Data)
		nMessages++
	}

	switch {
	case nMessages == 1:
		if a.events.MessageReceived != nil {
			a.events.MessageReceived(first, received[first][0])
		}
	case nMessages > 1:
		if a.events.MessagesReceived != nil {
			a.events.MessagesReceived(received)
		}
	}

	log.Info("messages checked",
		zap.Int("invitations", nInvitations),
		zap.Int("messages", nMessages),
		zap.Int("ignored", len(a.ignored)))
	return nInvitations + nMessages, nil
}

// handleItemError ignores items that can never be decoded and reports
// everything else.
func (a *App) handleItemError(h model.MessageHeader, err error) {
	if errors.Is(err, errs.ErrUnknownAlias) || errors.Is(err, errs.ErrInvalidMessageID) {
		a.ignored[h.ID] = struct{}{}
		log.Warn("ignoring message", zap.Int64("id", h.ID), zap.Stringer("type", h.Type), zap.Error(err))
		return
	}
	log.Error("process message failed", zap.Int64("id", h.ID), zap.Stringer("type", h.Type), zap.Error(err))
	a.reportError(fmt.Errorf("%s %d: %w", h.Type, h.ID, err))
}

func (a *App) processInvitation(ctx context.Context, h model.MessageHeader) error {
	data, err := a.transport.GetMessage(ctx, h)
	if err != nil {
		return err
	}
	inv, err := message.DecodeInvitation(data)
	if err != nil {
		return err
	}

	c := a.contacts.FindByAddress(inv.SenderAddress)
	tx := a.contacts.Begin()
	defer tx.Rollback()

	var (
		changed bool
		notify  func(*model.Contact)
	)
	switch {
	case c == nil || c.Status == model.StatusKnown:
		if c == nil {
			if c, err = model.NewContact(inv.SenderAddress); err != nil {
				return err
			}
			tx.Insert(c)
		}
		if err := c.InvitationReceived(inv.SenderAlias, inv.PublicKey, inv.Component); err != nil {
			return err
		}
		changed, notify = true, a.events.InvitationReceived
	case c.Status == model.StatusInvited:
		if _, err := c.InvitationAccepted(inv.SenderAlias, inv.PublicKey, inv.Component); err != nil {
			return err
		}
		changed, notify = true, a.events.InvitationAccepted
	default:
		log.Info("dropping invitation", zap.String("from", c.Address), zap.Stringer("status", c.Status))
	}

	if changed {
		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	if err := a.transport.DeleteMessage(ctx, h); err != nil {
		return err
	}
	if changed && notify != nil {
		notify(c)
	}
	return nil
}

// processMessage decodes one chat message and applies it. When the relay
// copy cannot be deleted after the local commit, the message is still
// returned and its id ignored so it is not applied twice.
func (a *App) processMessage(ctx context.Context, h model.MessageHeader) (*message.Chat, error) {
	data, err := a.transport.GetMessage(ctx, h)
	if err != nil {
		return nil, err
	}
	chat, err := message.DecodeChat(data, a.contacts)
	if err != nil {
		return nil, err
	}
	sender := chat.Sender

	tx := a.contacts.Begin()
	defer tx.Rollback()

	offered, ok := chat.Data.Component.(*model.ReceivedComponent)
	if !ok {
		return nil, fmt.Errorf("offered component is %T: %w", chat.Data.Component, errs.ErrUnknownComponent)
	}
	sender.AddReceived(offered)
	// The peer used our latest component, so it is confirmed: offer a new one.
	if last := sender.LastSent(); last != nil && last.Serial == chat.Secret.My.Serial {
		if _, err := sender.CreateComponent(); err != nil {
			return nil, err
		}
	}
	sender.AddMessage(chat.Data)
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Debug("message received",
		zap.Int64("id", h.ID),
		zap.String("from", sender.Address),
		zap.Int64("offered_serial", offered.Serial))

	if err := a.transport.DeleteMessage(ctx, h); err != nil {
		a.ignored[h.ID] = struct{}{}
		return chat, err
	}
	return chat, nil
}

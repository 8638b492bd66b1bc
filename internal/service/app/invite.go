package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"relay_chat/internal/errs"
	"relay_chat/internal/model"
	"relay_chat/internal/protocol/message"
	"relay_chat/internal/utils/log"
)

const (
	AliasLength     = 30
	aliasAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	aliasMaxRetries = 10
)

// SendInvitation invites peerAddress on behalf of selfAddress. New peers are
// added to the store as Known first; the invitation itself is committed only
// once the relay accepted it.
func (a *App) SendInvitation(ctx context.Context, selfAddress, peerAddress string) (*model.Contact, error) {
	if strings.EqualFold(selfAddress, peerAddress) {
		return nil, errs.ErrSelfInvitation
	}
	if !model.ValidateAddress(peerAddress) {
		return nil, fmt.Errorf("%q: %w", peerAddress, errs.ErrInvalidAddress)
	}

	receiver := a.contacts.FindByAddress(peerAddress)
	if receiver != nil {
		switch receiver.Status {
		case model.StatusKnown, model.StatusUnfriendly:
		case model.StatusInvited:
			return nil, fmt.Errorf("%s: %w", receiver.Username(), errs.ErrAlreadyInvited)
		default:
			return nil, fmt.Errorf("%s is %s: %w", receiver.Username(), receiver.Status, errs.ErrCannotInvite)
		}
		if !receiver.Status.CanTransition(model.StatusInvited) {
			return nil, fmt.Errorf("%s: %s -> %s: %w", receiver.Address, receiver.Status, model.StatusInvited, errs.ErrIllegalTransition)
		}
	} else {
		c, err := model.NewContact(peerAddress)
		if err != nil {
			return nil, err
		}
		tx := a.contacts.Begin()
		tx.Insert(c)
		if err := tx.Commit(ctx); err != nil {
			tx.Rollback()
			return nil, err
		}
		receiver = c
	}

	tx := a.contacts.Begin()
	defer tx.Rollback()

	alias, err := a.GenerateAlias(ctx)
	if err != nil {
		return nil, err
	}
	first, err := receiver.Invite(alias)
	if err != nil {
		return nil, err
	}
	data, err := message.EncodeInvitation(a.keys, selfAddress, first, receiver)
	if err != nil {
		return nil, err
	}
	if err := a.transport.SendInvitation(ctx, data); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Info("invitation sent", zap.String("to", receiver.Address))
	if a.events.InvitationSent != nil {
		a.events.InvitationSent(receiver)
	}
	return receiver, nil
}

// AcceptInvitation befriends a Wannabe contact and sends our own invitation
// back as the acceptance.
func (a *App) AcceptInvitation(ctx context.Context, c *model.Contact, selfAddress string) error {
	if c.Status != model.StatusWannabe {
		return fmt.Errorf("%s is %s: %w", c.Username(), c.Status, errs.ErrNoInvitation)
	}

	tx := a.contacts.Begin()
	defer tx.Rollback()

	alias, err := a.GenerateAlias(ctx)
	if err != nil {
		return err
	}
	first, err := c.AcceptInvitation(alias)
	if err != nil {
		return err
	}
	data, err := message.EncodeInvitation(a.keys, selfAddress, first, c)
	if err != nil {
		return err
	}
	if err := a.transport.SendInvitation(ctx, data); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Info("invitation accepted", zap.String("from", c.Address))
	if a.events.InvitationAccepted != nil {
		a.events.InvitationAccepted(c)
	}
	return nil
}

// RejectInvitation turns down a Wannabe contact. Nothing is sent.
func (a *App) RejectInvitation(ctx context.Context, c *model.Contact) error {
	if c.Status != model.StatusWannabe {
		return fmt.Errorf("%s is %s: %w", c.Username(), c.Status, errs.ErrNoInvitation)
	}
	tx := a.contacts.Begin()
	defer tx.Rollback()
	if err := c.Reject(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GenerateAlias registers a fresh random alias on the relay, retrying when
// the relay reports a collision.
func (a *App) GenerateAlias(ctx context.Context) (string, error) {
	for i := 0; i < aliasMaxRetries; i++ {
		alias, err := randomAlias()
		if err != nil {
			return "", err
		}
		err = a.transport.CreateAlias(ctx, alias)
		if errors.Is(err, errs.ErrAliasExists) {
			log.Debug("alias taken, retrying", zap.Int("attempt", i+1))
			continue
		}
		if err != nil {
			return "", err
		}
		return alias, nil
	}
	return "", errs.ErrAliasExhausted
}

func randomAlias() (string, error) {
	b := make([]byte, AliasLength)
	n := big.NewInt(int64(len(aliasAlphabet)))
	for i := range b {
		k, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		b[i] = aliasAlphabet[k.Int64()]
	}
	return string(b), nil
}

// PerformCleanup deletes relay aliases no contact refers to anymore, and
// their signing keys when the key store supports it. Individual deletions
// are best effort.
func (a *App) PerformCleanup(ctx context.Context) error {
	aliases, err := a.transport.GetAliases(ctx)
	if err != nil {
		return err
	}
	used := make(map[string]struct{})
	for _, c := range a.contacts.Contacts() {
		if c.MyAlias != "" {
			used[c.MyAlias] = struct{}{}
		}
	}

	remover, _ := a.keys.(interface{ Delete(alias string) error })
	deleted := 0
	for _, alias := range aliases {
		if _, ok := used[alias]; ok {
			continue
		}
		if err := a.transport.DeleteAlias(ctx, alias); err != nil {
			log.Debug("delete alias failed", zap.String("alias", alias), zap.Error(err))
			continue
		}
		deleted++
		if remover != nil {
			if err := remover.Delete(alias); err != nil {
				log.Debug("delete key failed", zap.String("alias", alias), zap.Error(err))
			}
		}
	}
	log.Info("cleanup done", zap.Int("aliases", len(aliases)), zap.Int("deleted", deleted))
	return nil
}

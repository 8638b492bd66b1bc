package model

import (
	"fmt"
	"sort"
	"strings"

	"relay_chat/internal/errs"
)

type (
	// Contact is the relationship with one peer, identified by Address
	// (username@relay-host).
	//
	// Alias is how the peer is addressed on the relay; MyAlias is how the peer
	// addresses us, and it also names the signing key used towards this peer.
	// MyComponents and OtherComponents are append-only and strictly ascending
	// by serial. The last entry of MyComponents has not yet been confirmed by
	// the peer.
	Contact struct {
		Address         string
		Alias           string
		MyAlias         string
		PublicKey       []byte
		Status          ContactStatus
		MyComponents    []*SentComponent
		OtherComponents []*ReceivedComponent
		Messages        []*MessageData
	}
)

// NewContact returns a Known contact for address.
func NewContact(address string) (*Contact, error) {
	if !ValidateAddress(address) {
		return nil, fmt.Errorf("%q: %w", address, errs.ErrInvalidAddress)
	}
	c := &Contact{Address: address}
	if err := c.setStatus(StatusKnown); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Contact) setStatus(to ContactStatus) error {
	if !c.Status.CanTransition(to) {
		return fmt.Errorf("%s: %s -> %s: %w", c.Address, c.Status, to, errs.ErrIllegalTransition)
	}
	c.Status = to
	return nil
}

func (c *Contact) Username() string {
	return ParseUsername(c.Address)
}

// Invite records that we invited the contact. Earlier offered components are
// discarded and the first component of the new exchange is returned.
func (c *Contact) Invite(myAlias string) (*SentComponent, error) {
	if err := c.setStatus(StatusInvited); err != nil {
		return nil, err
	}
	c.MyAlias = myAlias
	c.MyComponents = nil
	return c.CreateComponent()
}

// AcceptInvitation makes a Wannabe contact a Friend and returns the
// component to offer back.
func (c *Contact) AcceptInvitation(myAlias string) (*SentComponent, error) {
	if c.Status != StatusWannabe {
		return nil, fmt.Errorf("%s: accept while %s: %w", c.Address, c.Status, errs.ErrIllegalTransition)
	}
	if err := c.setStatus(StatusFriend); err != nil {
		return nil, err
	}
	c.MyAlias = myAlias
	return c.CreateComponent()
}

// InvitationAccepted records the peer's acceptance of our invitation and
// returns a fresh component to offer on the next message.
func (c *Contact) InvitationAccepted(alias string, publicKey []byte, offered *ReceivedComponent) (*SentComponent, error) {
	if c.Status != StatusInvited {
		return nil, fmt.Errorf("%s: acceptance while %s: %w", c.Address, c.Status, errs.ErrIllegalTransition)
	}
	if err := c.setStatus(StatusFriend); err != nil {
		return nil, err
	}
	c.Alias = alias
	c.PublicKey = publicKey
	c.AddReceived(offered)
	return c.CreateComponent()
}

// InvitationReceived records an invitation from the peer. No component is
// created until the invitation is accepted.
func (c *Contact) InvitationReceived(alias string, publicKey []byte, offered *ReceivedComponent) error {
	if err := c.setStatus(StatusWannabe); err != nil {
		return err
	}
	c.Alias = alias
	c.PublicKey = publicKey
	c.AddReceived(offered)
	return nil
}

// Reject turns down a pending invitation.
func (c *Contact) Reject() error {
	return c.setStatus(StatusRejected)
}

// CreateComponent appends a new SentComponent with the next serial.
func (c *Contact) CreateComponent() (*SentComponent, error) {
	comp, err := NewSentComponent(int64(len(c.MyComponents) + 1))
	if err != nil {
		return nil, err
	}
	c.MyComponents = append(c.MyComponents, comp)
	return comp, nil
}

// AddReceived appends comp unless a component with the same serial is
// already known. It reports whether comp was appended.
func (c *Contact) AddReceived(comp *ReceivedComponent) bool {
	if c.FindReceived(comp.Serial) != nil {
		return false
	}
	c.OtherComponents = append(c.OtherComponents, comp)
	sort.SliceStable(c.OtherComponents, func(i, j int) bool {
		return c.OtherComponents[i].Serial < c.OtherComponents[j].Serial
	})
	return true
}

// CreateSecret picks the pair used to seal the next outgoing message: the
// most recently confirmed sent component and the latest received one.
func (c *Contact) CreateSecret() (Secret, error) {
	mine, theirs := len(c.MyComponents), len(c.OtherComponents)
	switch {
	case mine > 1 && theirs > 0:
		return Secret{My: c.MyComponents[mine-2], Other: c.OtherComponents[theirs-1]}, nil
	case mine == 1 && theirs == 1:
		return Secret{My: c.MyComponents[0], Other: c.OtherComponents[0]}, nil
	default:
		return Secret{}, fmt.Errorf("%s: %d sent, %d received: %w", c.Address, mine, theirs, errs.ErrNoSecret)
	}
}

func (c *Contact) LastSent() *SentComponent {
	if len(c.MyComponents) == 0 {
		return nil
	}
	return c.MyComponents[len(c.MyComponents)-1]
}

func (c *Contact) FindSent(serial int64) *SentComponent {
	for _, comp := range c.MyComponents {
		if comp.Serial == serial {
			return comp
		}
	}
	return nil
}

func (c *Contact) FindReceived(serial int64) *ReceivedComponent {
	for _, comp := range c.OtherComponents {
		if comp.Serial == serial {
			return comp
		}
	}
	return nil
}

func (c *Contact) AddMessage(m *MessageData) {
	c.Messages = append(c.Messages, m)
}

// RecentMessages returns up to n messages, newest first. n <= 0 returns all.
func (c *Contact) RecentMessages(n int) []*MessageData {
	out := make([]*MessageData, len(c.Messages))
	copy(out, c.Messages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.After(out[j].Time)
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func (c *Contact) UnreadCount() int {
	n := 0
	for _, m := range c.Messages {
		if m.Status == MessageUnread {
			n++
		}
	}
	return n
}

func (c *Contact) EqualAddress(address string) bool {
	return strings.EqualFold(c.Address, address)
}

// Clone copies the contact and its logs. Components are immutable and
// shared; messages are copied.
func (c *Contact) Clone() *Contact {
	out := *c
	out.PublicKey = append([]byte(nil), c.PublicKey...)
	out.MyComponents = append([]*SentComponent(nil), c.MyComponents...)
	out.OtherComponents = append([]*ReceivedComponent(nil), c.OtherComponents...)
	out.Messages = make([]*MessageData, len(c.Messages))
	for i, m := range c.Messages {
		cp := *m
		out.Messages[i] = &cp
	}
	return &out
}

// ValidateAddress reports whether address has a non-empty username before
// its '@'.
func ValidateAddress(address string) bool {
	return strings.IndexByte(address, '@') > 0
}

func ParseUsername(address string) string {
	i := strings.IndexByte(address, '@')
	if i < 0 {
		return address
	}
	return address[:i]
}

// ParseServer returns the relay host part of address.
func ParseServer(address string) string {
	i := strings.IndexByte(address, '@')
	if i < 0 {
		return ""
	}
	return address[i+1:]
}

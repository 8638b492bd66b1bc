package model

import (
	"fmt"
	"time"

	"relay_chat/internal/errs"
)

type (
	ContentType   int
	MessageStatus int
	MessageType   int
)

const (
	ContentUndefined ContentType = iota
	ContentTextPlain
	ContentImageJPEG
	ContentImageGIF
	ContentImagePNG
)

const (
	MessageStatusUnknown MessageStatus = iota
	MessageSent
	MessageUnread
	MessageRead
)

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeInvitation
	MessageTypeChat
)

var contentTypeMIME = map[ContentType]string{
	ContentTextPlain: "text/plain",
	ContentImageJPEG: "image/jpeg",
	ContentImageGIF:  "image/gif",
	ContentImagePNG:  "image/png",
}

var messageTypeNames = map[MessageType]string{
	MessageTypeInvitation: "invitation",
	MessageTypeChat:       "message",
}

// MIME returns the wire name of the content type.
func (t ContentType) MIME() (string, error) {
	if s, ok := contentTypeMIME[t]; ok {
		return s, nil
	}
	return "", fmt.Errorf("content type %d: %w", int(t), errs.ErrUnknownContentType)
}

func (t ContentType) String() string {
	if s, ok := contentTypeMIME[t]; ok {
		return s
	}
	return "undefined"
}

func ParseContentType(s string) (ContentType, error) {
	for t, mime := range contentTypeMIME {
		if mime == s {
			return t, nil
		}
	}
	return ContentUndefined, fmt.Errorf("content type %q: %w", s, errs.ErrUnknownContentType)
}

func (s MessageStatus) String() string {
	switch s {
	case MessageSent:
		return "sent"
	case MessageUnread:
		return "unread"
	case MessageRead:
		return "read"
	default:
		return "unknown"
	}
}

// String is the name the relay uses in its message index.
func (t MessageType) String() string {
	if s, ok := messageTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

func ParseMessageType(s string) (MessageType, error) {
	for t, name := range messageTypeNames {
		if name == s {
			return t, nil
		}
	}
	return MessageTypeUnknown, fmt.Errorf("message type %q: %w", s, errs.ErrUnknownMessageType)
}

type (
	// MessageData is one entry of a contact's history. Only Status changes
	// after creation, and only from unread to read.
	MessageData struct {
		ContentType    ContentType
		Content        []byte
		Time           time.Time
		Status         MessageStatus
		Component      SecretComponent
		ContactAddress string
	}

	// MessageHeader describes a message waiting on the relay.
	MessageHeader struct {
		ID   int64
		Size int64
		Type MessageType
	}
)

// NewSentMessage records an outgoing message offering component.
func NewSentMessage(c *Contact, content []byte, typ ContentType, component *SentComponent) *MessageData {
	return &MessageData{
		ContentType:    typ,
		Content:        content,
		Time:           time.Now(),
		Status:         MessageSent,
		Component:      component,
		ContactAddress: c.Address,
	}
}

// NewReceivedMessage records an incoming message that carried component.
func NewReceivedMessage(c *Contact, content []byte, typ ContentType, component *ReceivedComponent) *MessageData {
	return &MessageData{
		ContentType:    typ,
		Content:        content,
		Time:           time.Now(),
		Status:         MessageUnread,
		Component:      component,
		ContactAddress: c.Address,
	}
}

func (m *MessageData) Incoming() bool {
	return m.Status == MessageUnread || m.Status == MessageRead
}

// MarkRead moves an unread message to read. Other statuses are left alone.
func (m *MessageData) MarkRead() bool {
	if m.Status != MessageUnread {
		return false
	}
	m.Status = MessageRead
	return true
}

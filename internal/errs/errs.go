// Package errs holds the error taxonomy shared by the client, the transport
// and the relay.
//
// Technical errors mean both ends disagree about the wire format or about
// identifiers; Functional errors are business-rule violations a user can act
// on. Every sentinel is an *Error so callers can match with errors.Is and
// recover the kind of a wrapped error with KindOf.
package errs

import "errors"

type Kind int

const (
	KindUnknown Kind = iota
	KindTechnical
	KindFunctional
)

func (k Kind) String() string {
	switch k {
	case KindTechnical:
		return "technical"
	case KindFunctional:
		return "functional"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func technical(msg string) *Error  { return &Error{Kind: KindTechnical, Msg: msg} }
func functional(msg string) *Error { return &Error{Kind: KindFunctional, Msg: msg} }

// Functional errors.
var (
	ErrNotAuthenticated = functional("unable to log in, verify username and password")
	ErrAccountExpired   = functional("relay account has expired")
	ErrDeviceLimit      = functional("maximum number of devices reached for this account")
	ErrMethodNotAllowed = functional("relay does not support this request, check relay version")
	ErrServerError      = functional("error on the relay, try again later")
	ErrNoConnection     = functional("cannot connect to the relay, check relay address and network")
	ErrSelfInvitation   = functional("you cannot invite yourself")
	ErrAlreadyInvited   = functional("contact already invited, wait for the invitation to be accepted")
	ErrCannotInvite     = functional("contact cannot be invited in its current status")
	ErrUnknownContact   = functional("unknown contact")
	ErrNotFriend        = functional("contact is not a friend")
	ErrNoInvitation     = functional("contact has no pending invitation")
	ErrAliasExhausted   = functional("unable to create a new alias, contact the relay operator")
)

// Technical errors.
var (
	ErrIncorrectAlias     = technical("incorrect alias")
	ErrAliasExists        = technical("alias already exists")
	ErrAliasNotFound      = technical("alias does not exist")
	ErrBadRequest         = technical("relay rejected an incorrect or incomplete request")
	ErrInvalidMessageID   = technical("invalid message id")
	ErrMessageNotFound    = technical("unknown message id")
	ErrUnexpectedResponse = technical("unexpected response from relay")
	ErrUnknownAlias       = technical("message addressed to an alias never handed out")
	ErrUnknownContentType = technical("unknown content type")
	ErrUnknownMessageType = technical("unknown message type")
	ErrUnsupportedVersion = technical("unsupported message format version")
	ErrUnknownComponent   = technical("message references an unknown secret component")
	ErrBadSignature       = technical("signature verification failed")
	ErrNoSecret           = technical("no confirmed sent component and received component to derive a secret from")
	ErrIllegalTransition  = technical("illegal contact status transition")
	ErrInvalidAddress     = technical("invalid address, expected username@relay-host")
	ErrShortRead          = technical("stream ended before the declared length was read")
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsTechnical(err error) bool  { return KindOf(err) == KindTechnical }
func IsFunctional(err error) bool { return KindOf(err) == KindFunctional }

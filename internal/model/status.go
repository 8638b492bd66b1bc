package model

import "fmt"

type ContactStatus int

const (
	StatusUnknown ContactStatus = iota
	StatusKnown
	StatusInvited
	StatusWannabe
	StatusFriend
	StatusRejected
	StatusUnfriendly
)

var contactStatusNames = map[ContactStatus]string{
	StatusUnknown:    "unknown",
	StatusKnown:      "known",
	StatusInvited:    "invited",
	StatusWannabe:    "wannabe",
	StatusFriend:     "friend",
	StatusRejected:   "rejected",
	StatusUnfriendly: "unfriendly",
}

func (s ContactStatus) String() string {
	if name, ok := contactStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// transitions lists every allowed status change. Friend, Rejected and
// Unfriendly have no outgoing edge.
var transitions = map[ContactStatus][]ContactStatus{
	StatusUnknown: {StatusKnown},
	StatusKnown:   {StatusInvited, StatusWannabe},
	StatusWannabe: {StatusFriend, StatusRejected},
	StatusInvited: {StatusFriend},
}

func (s ContactStatus) CanTransition(to ContactStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

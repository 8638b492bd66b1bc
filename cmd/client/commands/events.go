package commands

import (
	"fmt"
	"io"

	"relay_chat/internal/model"
	"relay_chat/internal/service/app"
)

// printer reports orchestrator events on out.
func printer(out io.Writer) app.Events {
	return app.Events{
		MessageReceived: func(c *model.Contact, m *model.MessageData) {
			printMessage(out, c, m)
		},
		MessagesReceived: func(byContact map[*model.Contact][]*model.MessageData) {
			for c, msgs := range byContact {
				for _, m := range msgs {
					printMessage(out, c, m)
				}
			}
		},
		InvitationReceived: func(c *model.Contact) {
			fmt.Fprintf(out, "invitation from %s, run: accept %s\n", c.Address, c.Address)
		},
		InvitationAccepted: func(c *model.Contact) {
			fmt.Fprintf(out, "%s and you are friends\n", c.Address)
		},
		Error: func(err error) {
			fmt.Fprintf(out, "warning: %v\n", err)
		},
	}
}

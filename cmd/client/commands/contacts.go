package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"relay_chat/internal/model"
)

func contactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ADDRESS\tSTATUS\tUNREAD")
			for _, c := range sess.app.Contacts() {
				fmt.Fprintf(w, "%s\t%s\t%d\n", c.Address, c.Status, sess.app.UnreadCount(c))
			}
			return w.Flush()
		},
	}
}

func historyCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history <address>",
		Short: "Show recent messages with a contact and mark them read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := findContact(args[0])
			if err != nil {
				return err
			}
			msgs, err := sess.app.ReadMessages(cmd.Context(), c, n)
			if err != nil {
				return err
			}
			// Oldest first on screen.
			for i := len(msgs) - 1; i >= 0; i-- {
				printMessage(cmd.OutOrStdout(), c, msgs[i])
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 20, "number of messages, 0 for all")
	return cmd
}

func printMessage(w io.Writer, c *model.Contact, m *model.MessageData) {
	who := "me"
	if m.Incoming() {
		who = c.Username()
	}
	body := string(m.Content)
	if m.ContentType != model.ContentTextPlain {
		body = fmt.Sprintf("[%s, %d bytes]", m.ContentType, len(m.Content))
	}
	fmt.Fprintf(w, "%s %s: %s\n", m.Time.Local().Format("2006-01-02 15:04"), who, body)
}

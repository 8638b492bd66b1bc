package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func inviteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invite <address>",
		Short: "Invite a peer (user@relay-host)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := sess.app.SendInvitation(cmd.Context(), sess.cfg.Address, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invited %s\n", c.Address)
			return nil
		},
	}
}

func acceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <address>",
		Short: "Accept the invitation of a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := findContact(args[0])
			if err != nil {
				return err
			}
			return sess.app.AcceptInvitation(cmd.Context(), c, sess.cfg.Address)
		},
	}
}

func rejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <address>",
		Short: "Reject the invitation of a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := findContact(args[0])
			if err != nil {
				return err
			}
			if err := sess.app.RejectInvitation(cmd.Context(), c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rejected %s\n", c.Address)
			return nil
		},
	}
}

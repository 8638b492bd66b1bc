package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"relay_chat/internal/utils/log"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fetch and process everything queued on the relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := sess.app.CheckMessages(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d processed\n", n)
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check continuously until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if interval <= 0 {
				interval = sess.cfg.Watch.Interval
			}
			notify, err := sess.transport.Notifications(ctx)
			if err != nil {
				log.Warn("relay notifications unavailable, polling only", zap.Error(err))
				notify = nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "watching as %s, ctrl-c to stop\n", sess.cfg.Address)
			return sess.app.Watch(ctx, interval, sess.cfg.Watch.MaxBackoff, notify)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default watch.interval)")
	return cmd
}

// Package commands defines the relaychat CLI.
//
// Commands
//
//   - invite     Invite a peer by address
//   - accept     Accept a pending invitation
//   - reject     Reject a pending invitation
//   - send       Send a text or image message to a friend
//   - check      Fetch and process everything queued on the relay
//   - watch      Keep checking, woken by relay notifications
//   - contacts   List contacts with their status and unread count
//   - history    Show and mark read the messages exchanged with a contact
//   - cleanup    Delete relay aliases no contact uses anymore
//   - purge      Drop everything queued on the relay without reading it
//
// The root command loads configuration and opens the contact store, key
// store and relay client before any subcommand runs.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"relay_chat/internal/config"
	"relay_chat/internal/errs"
	"relay_chat/internal/model"
	"relay_chat/internal/repository/contact"
	"relay_chat/internal/repository/credential"
	"relay_chat/internal/service/app"
	"relay_chat/internal/service/transport"
	"relay_chat/internal/utils/log"
)

type session struct {
	cfg       *config.Client
	app       *app.App
	transport *transport.HTTPClient
	mongo     *mongo.Client
}

var (
	cfgFile string
	sess    *session
)

func Execute() error {
	root := &cobra.Command{
		Use:           "relaychat",
		Short:         "End-to-end encrypted chat over a store-and-forward relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := log.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
				return err
			}
			sess, err = openSession(cmd.Context(), cfg, cmd.OutOrStdout())
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./relaychat.yaml or ~/.relaychat/relaychat.yaml)")
	pf.String("relay", "", "relay host or base URL")
	pf.String("user", "", "relay username")
	pf.String("password", "", "relay password")
	pf.Duration("timeout", 0, "relay request timeout")
	pf.String("address", "", "your address as peers know it (default user@relay-host)")
	pf.String("mongo-uri", "", "MongoDB URI of the contact store")
	pf.String("mongo-db", "", "MongoDB database of the contact store")
	pf.String("keys-dir", "", "directory of the sealed signing keys")
	pf.StringP("passphrase", "p", "", "passphrase protecting the signing keys")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.Bool("development", false, "human readable logs")

	root.AddCommand(
		inviteCmd(), acceptCmd(), rejectCmd(),
		sendCmd(), checkCmd(), watchCmd(),
		contactsCmd(), historyCmd(),
		cleanupCmd(), purgeCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := root.ExecuteContext(ctx)
	if sess != nil {
		sess.close()
	}
	log.Sync()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
	}
	return err
}

func openSession(ctx context.Context, cfg *config.Client, out io.Writer) (*session, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mc, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := mc.Ping(connectCtx, nil); err != nil {
		mc.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	backend := contact.NewMongoBackend(mc.Database(cfg.Mongo.Database), cfg.Address)
	if err := backend.EnsureIndexes(connectCtx); err != nil {
		mc.Disconnect(context.Background())
		return nil, err
	}
	store, err := contact.NewStore(connectCtx, backend)
	if err != nil {
		mc.Disconnect(context.Background())
		return nil, err
	}

	keys, err := credential.NewFileStore(cfg.Keys.Dir, cfg.Keys.Passphrase, credential.WithKeyBits(cfg.Keys.Bits))
	if err != nil {
		mc.Disconnect(context.Background())
		return nil, err
	}

	tr := transport.NewHTTPClient(cfg.Relay.Host, cfg.Relay.Username, cfg.Relay.Password, cfg.Relay.Timeout)
	log.Debug("session opened", zap.String("address", cfg.Address), zap.Int("contacts", len(store.Contacts())))
	return &session{
		cfg:       cfg,
		app:       app.NewApp(tr, store, keys, printer(out)),
		transport: tr,
		mongo:     mc,
	}, nil
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.mongo.Disconnect(ctx); err != nil {
		log.Warn("disconnect mongo", zap.Error(err))
	}
}

// findContact resolves an address argument to a stored contact.
func findContact(address string) (*model.Contact, error) {
	c := sess.app.FindContact(address)
	if c == nil {
		return nil, fmt.Errorf("%s: %w", address, errs.ErrUnknownContact)
	}
	return c, nil
}

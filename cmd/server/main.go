package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"relay_chat/internal/config"
	"relay_chat/internal/repository/user"
	redisSvc "relay_chat/internal/service/redis"
	"relay_chat/internal/service/server"
	"relay_chat/internal/utils/log"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:          "relay",
		Short:        "Store-and-forward relay for relaychat clients",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./relaychat.yaml or ~/.relaychat/relaychat.yaml)")
	pf.String("mongo-uri", "", "MongoDB URI of the account store")
	pf.String("mongo-db", "", "MongoDB database of the account store")
	pf.String("log-level", "", "debug, info, warn or error")

	root.AddCommand(serveCmd(), adduserCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func load(cmd *cobra.Command) (*config.Server, error) {
	cfg, err := config.LoadServer(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	return cfg, log.Init(cfg.Log.Level, false)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := load(cmd)
			if err != nil {
				return err
			}

			mongoClient, err := initMongo(ctx, cfg.Mongo.URI)
			if err != nil {
				return err
			}
			defer mongoClient.Disconnect(context.Background())
			users := user.NewUserRepo(mongoClient.Database(cfg.Mongo.Database))
			if err := users.EnsureIndexes(ctx); err != nil {
				return err
			}

			var storage server.Storage
			switch cfg.Storage {
			case "memory":
				storage = server.NewMemoryStorage()
			default:
				rdb := redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				defer rdb.Close()
				svc := redisSvc.NewRedis(rdb)
				if err := svc.Ping(ctx); err != nil {
					return fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
				}
				storage = server.NewRedisStorage(svc)
			}

			log.Info("relay starting", zap.String("storage", cfg.Storage), zap.String("listen", cfg.Listen))
			return server.NewHttpServer(users, storage).Run(ctx, cfg.Listen)
		},
	}
	cmd.Flags().String("listen", "", "listen address")
	cmd.Flags().String("storage", "", "redis or memory")
	cmd.Flags().String("redis", "", "Redis address")
	cmd.Flags().Int("redis-db", 0, "Redis database")
	return cmd
}

func adduserCmd() *cobra.Command {
	var (
		password string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "adduser <name>",
		Short: "Create a relay account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if password == "" {
				return errors.New("--password is required")
			}

			mongoClient, err := initMongo(ctx, cfg.Mongo.URI)
			if err != nil {
				return err
			}
			defer mongoClient.Disconnect(context.Background())
			users := user.NewUserRepo(mongoClient.Database(cfg.Mongo.Database))
			if err := users.EnsureIndexes(ctx); err != nil {
				return err
			}

			u, err := users.Register(ctx, args[0], password, ttl)
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("user %q already exists", args[0])
			}
			if err != nil {
				return err
			}
			log.Info("user created", zap.String("name", u.Name), zap.Time("expires_at", u.ExpiresAt))
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", u.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "account lifetime, 0 never expires")
	return cmd
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}

// Package config loads client and relay settings from, in increasing order
// of precedence, defaults, a YAML file, RELAYCHAT_* environment variables
// and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"relay_chat/internal/model"
)

const (
	EnvPrefix  = "RELAYCHAT"
	configName = "relaychat"
)

type (
	Relay struct {
		Host     string        `mapstructure:"host"`
		Username string        `mapstructure:"username"`
		Password string        `mapstructure:"password"`
		Timeout  time.Duration `mapstructure:"timeout"`
	}

	Mongo struct {
		URI      string `mapstructure:"uri"`
		Database string `mapstructure:"database"`
	}

	Keys struct {
		Dir        string `mapstructure:"dir"`
		Passphrase string `mapstructure:"passphrase"`
		Bits       int    `mapstructure:"bits"`
	}

	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	}

	Watch struct {
		Interval   time.Duration `mapstructure:"interval"`
		MaxBackoff time.Duration `mapstructure:"max_backoff"`
	}

	Client struct {
		// Address is how peers reach us, username@relay-host.
		Address string `mapstructure:"address"`
		Relay   Relay  `mapstructure:"relay"`
		Mongo   Mongo  `mapstructure:"mongo"`
		Keys    Keys   `mapstructure:"keys"`
		Log     Log    `mapstructure:"log"`
		Watch   Watch  `mapstructure:"watch"`
	}

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	}

	Server struct {
		Listen string `mapstructure:"listen"`
		// Storage is "redis" or "memory".
		Storage string `mapstructure:"storage"`
		Redis   Redis  `mapstructure:"redis"`
		Mongo   Mongo  `mapstructure:"mongo"`
		Log     Log    `mapstructure:"log"`
	}
)

// ClientFlags maps client flag names onto configuration keys.
var ClientFlags = map[string]string{
	"relay":       "relay.host",
	"user":        "relay.username",
	"password":    "relay.password",
	"timeout":     "relay.timeout",
	"address":     "address",
	"mongo-uri":   "mongo.uri",
	"mongo-db":    "mongo.database",
	"keys-dir":    "keys.dir",
	"passphrase":  "keys.passphrase",
	"log-level":   "log.level",
	"development": "log.development",
}

// ServerFlags maps relay flag names onto configuration keys.
var ServerFlags = map[string]string{
	"listen":    "listen",
	"storage":   "storage",
	"redis":     "redis.addr",
	"redis-db":  "redis.db",
	"mongo-uri": "mongo.uri",
	"mongo-db":  "mongo.database",
	"log-level": "log.level",
}

func newViper(file string, flags *pflag.FlagSet, keys map[string]string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.relaychat")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range keys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}
	return v, nil
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relaychat"
	}
	return filepath.Join(home, ".relaychat")
}

func LoadClient(file string, flags *pflag.FlagSet) (*Client, error) {
	v, err := newViper(file, flags, ClientFlags)
	if err != nil {
		return nil, err
	}
	v.SetDefault("relay.timeout", 30*time.Second)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "relaychat")
	v.SetDefault("keys.dir", filepath.Join(defaultHome(), "keys"))
	v.SetDefault("keys.bits", 2048)
	v.SetDefault("log.level", "info")
	v.SetDefault("watch.interval", time.Minute)
	v.SetDefault("watch.max_backoff", 10*time.Minute)
	// Keys without a default are only seen by Unmarshal when bound.
	for _, key := range []string{"relay.host", "relay.username", "relay.password", "address", "keys.passphrase", "log.development"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	var cfg Client
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Address == "" && cfg.Relay.Username != "" {
		cfg.Address = cfg.Relay.Username + "@" + hostOnly(cfg.Relay.Host)
	}
	return &cfg, cfg.validate()
}

func (c *Client) validate() error {
	switch {
	case c.Relay.Host == "":
		return errors.New("relay.host is required (--relay or RELAYCHAT_RELAY_HOST)")
	case c.Relay.Username == "":
		return errors.New("relay.username is required (--user or RELAYCHAT_RELAY_USERNAME)")
	case !model.ValidateAddress(c.Address):
		return fmt.Errorf("address %q must look like user@host", c.Address)
	case c.Keys.Passphrase == "":
		return errors.New("keys.passphrase is required (--passphrase or RELAYCHAT_KEYS_PASSPHRASE)")
	case c.Watch.Interval <= 0:
		return errors.New("watch.interval must be positive")
	}
	return nil
}

func LoadServer(file string, flags *pflag.FlagSet) (*Server, error) {
	v, err := newViper(file, flags, ServerFlags)
	if err != nil {
		return nil, err
	}
	v.SetDefault("listen", "localhost:9090")
	v.SetDefault("storage", "redis")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "relaychat")
	v.SetDefault("log.level", "info")
	if err := v.BindEnv("redis.password"); err != nil {
		return nil, err
	}

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Storage != "redis" && cfg.Storage != "memory" {
		return nil, fmt.Errorf("storage %q: want redis or memory", cfg.Storage)
	}
	return &cfg, nil
}

// hostOnly strips a scheme and path from a relay URL.
func hostOnly(host string) string {
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	return host
}

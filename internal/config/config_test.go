package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay_chat/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relaychat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadClientFromFile(t *testing.T) {
	path := writeFile(t, `
relay:
  host: http://relay.test:9090
  username: alice
  password: secret
  timeout: 5s
keys:
  passphrase: hunter2
watch:
  interval: 30s
`)
	cfg, err := config.LoadClient(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://relay.test:9090", cfg.Relay.Host)
	assert.Equal(t, "secret", cfg.Relay.Password)
	assert.Equal(t, 5*time.Second, cfg.Relay.Timeout)
	assert.Equal(t, "alice@relay.test:9090", cfg.Address)
	assert.Equal(t, 30*time.Second, cfg.Watch.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Watch.MaxBackoff)
	assert.Equal(t, "relaychat", cfg.Mongo.Database)
	assert.Equal(t, 2048, cfg.Keys.Bits)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, `
relay:
  host: relay.test
  username: alice
keys:
  passphrase: from-file
`)
	t.Setenv("RELAYCHAT_KEYS_PASSPHRASE", "from-env")
	t.Setenv("RELAYCHAT_ADDRESS", "alice@elsewhere")
	t.Setenv("RELAYCHAT_LOG_LEVEL", "debug")

	cfg, err := config.LoadClient(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Keys.Passphrase)
	assert.Equal(t, "alice@elsewhere", cfg.Address)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestFlagsOverrideEverything(t *testing.T) {
	path := writeFile(t, `
relay:
  host: relay.test
  username: alice
keys:
  passphrase: pw
`)
	t.Setenv("RELAYCHAT_RELAY_USERNAME", "env-user")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("user", "", "")
	flags.String("relay", "", "")
	require.NoError(t, flags.Parse([]string{"--user", "bob"}))

	cfg, err := config.LoadClient(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Relay.Username)
	assert.Equal(t, "relay.test", cfg.Relay.Host)
	assert.Equal(t, "bob@relay.test", cfg.Address)
}

func TestClientValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no host", "relay: {username: alice}\nkeys: {passphrase: pw}\n"},
		{"no user", "relay: {host: relay.test}\nkeys: {passphrase: pw}\n"},
		{"no passphrase", "relay: {host: relay.test, username: alice}\n"},
		{"bad address", "address: nobody\nrelay: {host: relay.test, username: alice}\nkeys: {passphrase: pw}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadClient(writeFile(t, tt.body), nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadServer(t *testing.T) {
	cfg, err := config.LoadServer(writeFile(t, "listen: :8080\nredis: {addr: cache:6379, db: 2}\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "redis", cfg.Storage)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)

	_, err = config.LoadServer(writeFile(t, "storage: etcd\n"), nil)
	assert.Error(t, err)
}

func TestMissingFileIsAnError(t *testing.T) {
	_, err := config.LoadServer(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

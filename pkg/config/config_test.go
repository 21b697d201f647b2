package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[gateway]
addr = ":9443"
idle_timeout = "90s"

[crypto]
salt_secret = "s3cret"
salt_window = "30m"

[layer]
current = 170

[rpc]
backend = "redis"
timeout = "5s"

[redis]
addr = "redis:6379"
db = 2
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9443", cfg.Gateway.Addr)
	assert.Equal(t, 90*time.Second, cfg.Gateway.IdleTimeout.D())
	assert.Equal(t, 30*time.Minute, cfg.Crypto.SaltWindow.D())
	assert.Equal(t, int32(170), cfg.Layer.Current)
	assert.Equal(t, BackendRedis, cfg.RPC.Backend)
	assert.Equal(t, 5*time.Second, cfg.RPC.Timeout.D())
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.True(t, cfg.UsesRedis())

	// untouched keys keep their defaults
	assert.Equal(t, Default().Gateway.WSAddr, cfg.Gateway.WSAddr)
	assert.Equal(t, BackendMemory, cfg.PubSub.Backend)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "config load failed")

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[gateway\naddr="), 0o600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "config parse failed")

	path = filepath.Join(t.TempDir(), "dur.toml")
	require.NoError(t, os.WriteFile(path, []byte("[rpc]\ntimeout = \"soon\"\n"), 0o600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "config parse failed")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"ZENTALK_SALT_SECRET":     "from-env",
		"ZENTALK_PUBSUB_BACKEND":  "redis",
		"ZENTALK_REDIS_DB":        "3",
		"ZENTALK_LOG_DEVELOPMENT": "true",
	}))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Crypto.SaltSecret)
	assert.Equal(t, BackendRedis, cfg.PubSub.Backend)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.True(t, cfg.Log.Development)

	assert.Error(t, cfg.ApplyEnv(env(map[string]string{"ZENTALK_RPC_WORKERS": "many"})))
	assert.Error(t, cfg.ApplyEnv(env(map[string]string{"ZENTALK_LOG_DEVELOPMENT": "perhaps"})))
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Crypto.SaltSecret = "secret"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.Crypto.SaltSecret = "" }, "salt_secret"},
		{"long secret", func(c *Config) { c.Crypto.SaltSecret = string(make([]byte, 65)) }, "salt_secret"},
		{"short salt window", func(c *Config) { c.Crypto.SaltWindow = Duration(time.Second) }, "salt_window"},
		{"layer above schema", func(c *Config) { c.Layer.Current = 999 }, "layer range"},
		{"min above current", func(c *Config) { c.Layer.Min = c.Layer.Current + 1 }, "layer range"},
		{"unknown rpc backend", func(c *Config) { c.RPC.Backend = "grpc" }, "rpc.backend"},
		{"unknown pubsub backend", func(c *Config) { c.PubSub.Backend = "nats" }, "pubsub.backend"},
		{"redis without addr", func(c *Config) { c.RPC.Backend = BackendRedis; c.Redis.Addr = "" }, "redis.addr"},
		{"no workers", func(c *Config) { c.RPC.Workers = 0 }, "rpc.workers"},
		{"no storage path", func(c *Config) { c.Storage.Path = " " }, "storage.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

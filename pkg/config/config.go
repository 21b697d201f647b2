// Package config loads gateway configuration from TOML with ZENTALK_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/layer"
	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration written as a string ("30s", "1h") in TOML.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

type Config struct {
	Gateway GatewayConfig `toml:"gateway"`
	Crypto  CryptoConfig  `toml:"crypto"`
	Layer   LayerConfig   `toml:"layer"`
	RPC     RPCConfig     `toml:"rpc"`
	PubSub  PubSubConfig  `toml:"pubsub"`
	Redis   RedisConfig   `toml:"redis"`
	Storage StorageConfig `toml:"storage"`
	API     APIConfig     `toml:"api"`
	Log     LogConfig     `toml:"log"`
}

type GatewayConfig struct {
	Addr          string   `toml:"addr"`
	WSAddr        string   `toml:"ws_addr"`
	IdleTimeout   Duration `toml:"idle_timeout"`
	MaxFrameSize  int      `toml:"max_frame_size"`
	GzipThreshold int      `toml:"gzip_threshold"`
}

type CryptoConfig struct {
	SaltSecret string   `toml:"salt_secret"`
	SaltWindow Duration `toml:"salt_window"`
}

type LayerConfig struct {
	Current int32 `toml:"current"`
	Min     int32 `toml:"min"`
}

type RPCConfig struct {
	Backend string   `toml:"backend"` // local | redis
	Workers int      `toml:"workers"`
	Timeout Duration `toml:"timeout"`
	Queue   string   `toml:"queue"`
}

type PubSubConfig struct {
	Backend       string   `toml:"backend"` // memory | redis
	Channel       string   `toml:"channel"`
	MembershipTTL Duration `toml:"membership_ttl"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type StorageConfig struct {
	Path      string   `toml:"path"`
	UpdateTTL Duration `toml:"update_ttl"`
}

type APIConfig struct {
	Addr      string `toml:"addr"`
	RateLimit int    `toml:"rate_limit"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Default returns a configuration that runs a single node with local
// workers and an in-process broker.
func Default() Config {
	return Config{
		Gateway: GatewayConfig{
			Addr:          ":8443",
			WSAddr:        ":8444",
			IdleTimeout:   Duration(5 * time.Minute),
			MaxFrameSize:  16 << 20,
			GzipThreshold: 1024,
		},
		Crypto: CryptoConfig{SaltWindow: Duration(time.Hour)},
		Layer:  LayerConfig{Current: tl.Layer, Min: layer.MinLayer},
		RPC: RPCConfig{
			Backend: BackendLocal,
			Workers: 64,
			Timeout: Duration(30 * time.Second),
			Queue:   "zentalk:rpc:queue",
		},
		PubSub: PubSubConfig{
			Backend:       BackendMemory,
			Channel:       "zentalk:updates",
			MembershipTTL: Duration(5 * time.Minute),
		},
		Redis:   RedisConfig{Addr: "localhost:6379"},
		Storage: StorageConfig{Path: "zentalk.db", UpdateTTL: Duration(7 * 24 * time.Hour)},
		API:     APIConfig{Addr: ":8080", RateLimit: 600},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from ZENTALK_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"ZENTALK_GATEWAY_ADDR":   &c.Gateway.Addr,
		"ZENTALK_WS_ADDR":        &c.Gateway.WSAddr,
		"ZENTALK_SALT_SECRET":    &c.Crypto.SaltSecret,
		"ZENTALK_RPC_BACKEND":    &c.RPC.Backend,
		"ZENTALK_PUBSUB_BACKEND": &c.PubSub.Backend,
		"ZENTALK_REDIS_ADDR":     &c.Redis.Addr,
		"ZENTALK_REDIS_PASSWORD": &c.Redis.Password,
		"ZENTALK_STORAGE_PATH":   &c.Storage.Path,
		"ZENTALK_API_ADDR":       &c.API.Addr,
		"ZENTALK_LOG_LEVEL":      &c.Log.Level,
	}
	for name, dst := range str {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"ZENTALK_REDIS_DB":    &c.Redis.DB,
		"ZENTALK_RPC_WORKERS": &c.RPC.Workers,
	}
	for name, dst := range ints {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
	}

	if v, ok := lookup("ZENTALK_LOG_DEVELOPMENT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ZENTALK_LOG_DEVELOPMENT: %w", err)
		}
		c.Log.Development = b
	}
	return nil
}

// Validate checks the configuration for values the gateway cannot run
// with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Gateway.Addr) == "" {
		errs = append(errs, errors.New("gateway.addr is required"))
	}
	if c.Gateway.MaxFrameSize <= 0 {
		errs = append(errs, errors.New("gateway.max_frame_size must be positive"))
	}
	if n := len(c.Crypto.SaltSecret); n == 0 || n > 64 {
		errs = append(errs, errors.New("crypto.salt_secret must be 1-64 bytes"))
	}
	if c.Crypto.SaltWindow.D() < time.Minute {
		errs = append(errs, errors.New("crypto.salt_window must be at least 1m"))
	}
	if c.Layer.Min < layer.MinLayer || c.Layer.Current > tl.Layer || c.Layer.Min > c.Layer.Current {
		errs = append(errs, fmt.Errorf("layer range [%d, %d] outside supported [%d, %d]",
			c.Layer.Min, c.Layer.Current, layer.MinLayer, tl.Layer))
	}
	switch c.RPC.Backend {
	case BackendLocal, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("rpc.backend %q: want local or redis", c.RPC.Backend))
	}
	if c.RPC.Workers <= 0 {
		errs = append(errs, errors.New("rpc.workers must be positive"))
	}
	if c.RPC.Timeout.D() <= 0 {
		errs = append(errs, errors.New("rpc.timeout must be positive"))
	}
	switch c.PubSub.Backend {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("pubsub.backend %q: want memory or redis", c.PubSub.Backend))
	}
	if c.UsesRedis() && strings.TrimSpace(c.Redis.Addr) == "" {
		errs = append(errs, errors.New("redis.addr is required by the redis backends"))
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// UsesRedis reports whether any backend needs a Redis connection.
func (c Config) UsesRedis() bool {
	return c.RPC.Backend == BackendRedis || c.PubSub.Backend == BackendRedis
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides, e.g. GEOGATE_DB_DSN -> db.dsn.
const EnvPrefix = "GEOGATE_"

type Config struct {
	ListenAddr string           `koanf:"listen_addr"`
	PolicyPath string           `koanf:"policy_path"`
	DB         DBConfig         `koanf:"db"`
	Cache      CacheConfig      `koanf:"cache"`
	SigningKey SigningKeyConfig `koanf:"signing_key"`
	Auth       AuthConfig       `koanf:"auth"`
	Notify     NotifyConfig     `koanf:"notify"`
	Log        LogConfig        `koanf:"log"`
}

// DBConfig selects the ledger backend: memory, sqlite or postgres.
type DBConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// CacheConfig selects the idempotency cache: memory or redis.
type CacheConfig struct {
	Driver   string        `koanf:"driver"`
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
}

type SigningKeyConfig struct {
	KeyID          string `koanf:"key_id"`
	PrivateKeyPath string `koanf:"private_key_path"`
}

type AuthConfig struct {
	Tokens []string `koanf:"tokens"`
}

type NotifyConfig struct {
	Enabled      bool          `koanf:"enabled"`
	WebhookURL   string        `koanf:"webhook_url"`
	Channel      string        `koanf:"channel"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.PolicyPath == "" {
		cfg.PolicyPath = "policies/geogate.yaml"
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = "memory"
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = "memory"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}
	if cfg.Notify.Channel == "" {
		cfg.Notify.Channel = "#geo-compliance"
	}
	if cfg.Notify.PollInterval == 0 {
		cfg.Notify.PollInterval = 2 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// sections are matched longest first so GEOGATE_SIGNING_KEY_KEY_ID maps to
// signing_key.key_id rather than signing.key_key_id.
var sections = []string{"signing_key", "notify", "cache", "auth", "log", "db"}

func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// Load reads the YAML file at path (when non-empty), overlays GEOGATE_
// environment overrides, fills defaults and validates the result. ${VAR}
// references in the file are expanded before parsing.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		// #nosec G304 -- path is operator-provided config path.
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		expanded := strings.ReplaceAll(os.ExpandEnv(string(raw)), "\r\n", "\n")
		if err := k.Load(rawbytes.Provider([]byte(expanded)), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.PolicyPath == "" {
		return fmt.Errorf("policy_path is required")
	}

	switch c.DB.Driver {
	case "", "memory":
	case "sqlite", "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required when db.driver=%s", c.DB.Driver)
		}
	default:
		return fmt.Errorf("unsupported db.driver: %s", c.DB.Driver)
	}

	switch c.Cache.Driver {
	case "", "memory":
	case "redis":
		if c.Cache.Addr == "" {
			return fmt.Errorf("cache.addr is required when cache.driver=redis")
		}
	default:
		return fmt.Errorf("unsupported cache.driver: %s", c.Cache.Driver)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}

	if c.Notify.Enabled && c.Notify.WebhookURL == "" {
		return fmt.Errorf("notify.webhook_url is required when notify.enabled=true")
	}

	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("unsupported log.format: %s", c.Log.Format)
	}

	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all back office configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	Mode           string   `yaml:"mode"` // release, debug, test
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type MongoConfig struct {
	URI          string `yaml:"uri"`
	Database     string `yaml:"database"`
	Timeout      string `yaml:"timeout"`
	Transactions bool   `yaml:"transactions"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	CacheTTL string `yaml:"cache_ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  string `yaml:"token_ttl"`
	// AdminUID is the owner whose customers are shared with every employee.
	AdminUID string `yaml:"admin_uid"`
}

type LedgerConfig struct {
	RequestOrderTTL string `yaml:"request_order_ttl"`
	SweepInterval   string `yaml:"sweep_interval"`
	ExpiryWindow    string `yaml:"expiry_window"`
	Timezone        string `yaml:"timezone"`
}

type MetricsConfig struct {
	AllowedIPs []string `yaml:"allowed_ips"`
}

type RateLimitConfig struct {
	Public string `yaml:"public"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // mongo, memory
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "1414",
			Mode:           "release",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Mongo: MongoConfig{
			URI:          "mongodb://localhost:27017",
			Database:     "backoffice",
			Timeout:      "10s",
			Transactions: true,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			CacheTTL: "1m",
		},
		Auth: AuthConfig{
			TokenTTL: "24h",
		},
		Ledger: LedgerConfig{
			RequestOrderTTL: "24h",
			SweepInterval:   "30s",
			ExpiryWindow:    "720h",
			Timezone:        "UTC",
		},
		Metrics: MetricsConfig{
			AllowedIPs: []string{"127.0.0.1", "::1"},
		},
		RateLimit: RateLimitConfig{
			Public: "10-M",
		},
		Store: StoreConfig{Backend: BackendMongo},
		Log:   LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an optional .env file and
// the process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Mode, "GIN_MODE")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	setString(&c.Mongo.URI, "MONGO_URI")
	setString(&c.Mongo.Database, "MONGO_DATABASE")
	setString(&c.Mongo.Timeout, "MONGO_TIMEOUT")
	setBool(&c.Mongo.Transactions, "MONGO_TRANSACTIONS")

	setBool(&c.Redis.Enabled, "REDIS_ENABLED")
	setString(&c.Redis.Host, "REDIS_HOST")
	setString(&c.Redis.Port, "REDIS_PORT")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}
	setString(&c.Redis.CacheTTL, "REDIS_CACHE_TTL")

	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.TokenTTL, "TOKEN_TTL")
	setString(&c.Auth.AdminUID, "ADMIN_UID")

	setString(&c.Ledger.RequestOrderTTL, "REQUEST_ORDER_TTL")
	setString(&c.Ledger.SweepInterval, "SWEEP_INTERVAL")
	setString(&c.Ledger.ExpiryWindow, "EXPIRY_WINDOW")
	setString(&c.Ledger.Timezone, "TIMEZONE")

	if v := os.Getenv("METRICS_ALLOWED_IPS"); v != "" {
		c.Metrics.AllowedIPs = splitList(v)
	}
	setString(&c.RateLimit.Public, "PUBLIC_RATE_LIMIT")
	setString(&c.Store.Backend, "STORE_BACKEND")
	setString(&c.Log.Level, "LOG_LEVEL")
	setBool(&c.Log.Development, "LOG_DEVELOPMENT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports the first setting the service cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMongo, BackendMemory:
	default:
		return fmt.Errorf("invalid store backend: %q (valid: mongo, memory)", c.Store.Backend)
	}
	if c.Auth.JWTSecret == "" && !c.Log.Development {
		return fmt.Errorf("JWT secret not configured (set JWT_SECRET)")
	}
	durations := map[string]string{
		"mongo.timeout":            c.Mongo.Timeout,
		"redis.cache_ttl":          c.Redis.CacheTTL,
		"auth.token_ttl":           c.Auth.TokenTTL,
		"ledger.request_order_ttl": c.Ledger.RequestOrderTTL,
		"ledger.sweep_interval":    c.Ledger.SweepInterval,
		"ledger.expiry_window":     c.Ledger.ExpiryWindow,
	}
	for name, raw := range durations {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, raw)
		}
	}
	if _, err := time.LoadLocation(c.Ledger.Timezone); err != nil {
		return fmt.Errorf("invalid ledger.timezone %q: %w", c.Ledger.Timezone, err)
	}
	return nil
}

func duration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (c *Config) MongoTimeout() time.Duration    { return duration(c.Mongo.Timeout, 10*time.Second) }
func (c *Config) CacheTTL() time.Duration        { return duration(c.Redis.CacheTTL, time.Minute) }
func (c *Config) TokenTTL() time.Duration        { return duration(c.Auth.TokenTTL, 24*time.Hour) }
func (c *Config) RequestOrderTTL() time.Duration { return duration(c.Ledger.RequestOrderTTL, 24*time.Hour) }
func (c *Config) SweepInterval() time.Duration   { return duration(c.Ledger.SweepInterval, 30*time.Second) }
func (c *Config) ExpiryWindow() time.Duration    { return duration(c.Ledger.ExpiryWindow, 30*24*time.Hour) }

// Location returns the ledger timezone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Package config loads application settings from environment variables and
// an optional .env / config.env file.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config groups all application settings.
type Config struct {
	App         AppConfig
	HTTP        HTTPConfig
	DB          DBConfig
	Ledger      LedgerConfig
	Auth        AuthConfig
	Idempotency IdempotencyConfig
	Outbox      OutboxConfig
}

// AppConfig holds general settings.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
	Storage  string // postgres or memory
}

// IsDevelopment reports whether the app runs in development mode.
func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Addr returns host:port.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DBConfig holds PostgreSQL settings.
// DatabaseURL, when set, wins over the individual parts.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int
	MinConns    int
}

// ConnectionString returns DATABASE_URL or a DSN built from the parts.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN builds a postgres URL with the password escaped.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// LedgerConfig controls write-side behaviour of the ledger.
type LedgerConfig struct {
	// MaxRetries is the number of attempts for a write that hits an
	// optimistic locking conflict.
	MaxRetries   int
	RetryBackoff time.Duration

	// EnforceAvailability rejects reservations larger than available stock.
	EnforceAvailability bool
}

// AuthConfig holds bearer token settings. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Required  bool

	// ApproverRole, when set, is required to approve or reject orders.
	ApproverRole string
}

// Enabled reports whether tokens are validated at all.
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

// IdempotencyConfig controls the X-Idempotency-Key middleware.
type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
}

// OutboxConfig controls the relay worker.
type OutboxConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	CleanupEvery   time.Duration
	RetentionHours int
}

// Load reads configuration. Environment variables take precedence over files.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "stockledger"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
			Storage:  getString(v, "STORAGE", StoragePostgres),
		},
		HTTP: HTTPConfig{
			Host:         getString(v, "HTTP_HOST", "0.0.0.0"),
			Port:         getInt(v, "HTTP_PORT", 8080),
			ReadTimeout:  getDuration(v, "HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration(v, "HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration(v, "HTTP_IDLE_TIMEOUT", 60*time.Second),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "stockledger"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
			MaxConns:    getInt(v, "DB_MAX_CONNS", 20),
			MinConns:    getInt(v, "DB_MIN_CONNS", 2),
		},
		Ledger: LedgerConfig{
			MaxRetries:          getInt(v, "LEDGER_MAX_RETRIES", 3),
			RetryBackoff:        getDuration(v, "LEDGER_RETRY_BACKOFF", 10*time.Millisecond),
			EnforceAvailability: getBool(v, "LEDGER_ENFORCE_AVAILABILITY", true),
		},
		Auth: AuthConfig{
			JWTSecret: getString(v, "JWT_SECRET", ""),
			Issuer:    getString(v, "JWT_ISSUER", "stockledger"),
			Required:  getBool(v, "AUTH_REQUIRED", false),

			ApproverRole: getString(v, "AUTH_APPROVER_ROLE", ""),
		},
		Idempotency: IdempotencyConfig{
			Enabled: getBool(v, "IDEMPOTENCY_ENABLED", false),
			TTL:     getDuration(v, "IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Outbox: OutboxConfig{
			PollInterval:   getDuration(v, "OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:      getInt(v, "OUTBOX_BATCH_SIZE", 100),
			CleanupEvery:   getDuration(v, "OUTBOX_CLEANUP_INTERVAL", time.Hour),
			RetentionHours: getInt(v, "OUTBOX_RETENTION_HOURS", 24*7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at runtime.
func (c *Config) Validate() error {
	switch c.App.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE %q", c.App.Storage)
	}
	if c.Ledger.MaxRetries < 1 {
		return fmt.Errorf("LEDGER_MAX_RETRIES must be at least 1, got %d", c.Ledger.MaxRetries)
	}
	if c.Auth.Required && !c.Auth.Enabled() {
		return fmt.Errorf("AUTH_REQUIRED needs JWT_SECRET")
	}
	if c.Auth.ApproverRole != "" && !c.Auth.Required {
		return fmt.Errorf("AUTH_APPROVER_ROLE needs AUTH_REQUIRED")
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return def
}

func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if v.IsSet(key) {
		if d := v.GetDuration(key); d > 0 {
			return d
		}
	}
	return def
}

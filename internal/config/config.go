package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds the environment driven configuration of the chat service.
type Config struct {
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"changanet-chat"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"3s"`

	StoreDriver     string        `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL     string        `env:"DB_URL"`
	DBMaxConns      int32         `env:"DB_MAX_CONNS" envDefault:"4"`
	DBConnLifetime  time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"60m"`
	DBConnIdleTime  time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	UsersTable      string        `env:"USERS_TABLE" envDefault:"public.users"`
	RunMigrations   bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
	StoreRetries    uint64        `env:"STORE_RETRIES" envDefault:"3"`
	StoreRetryDelay time.Duration `env:"STORE_RETRY_DELAY" envDefault:"50ms"`

	RedisURL         string `env:"REDIS_URL"`
	AsynqConcurrency int    `env:"ASYNQ_CONCURRENCY" envDefault:"10"`
	AsynqQueues      string `env:"ASYNQ_QUEUES" envDefault:"chat=6,default=1"`

	MessageMaxLength  int           `env:"MESSAGE_MAX_LENGTH" envDefault:"4000"`
	RateLimitMessages int           `env:"RATE_LIMIT_MESSAGES" envDefault:"20"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"10s"`
	TypingTTL         time.Duration `env:"TYPING_TTL" envDefault:"6s"`
	AllowedOrigins    []string      `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
	AuthJWTSecret     string        `env:"AUTH_JWT_SECRET"`
	DevAcceptAllUsers bool          `env:"DEV_ACCEPT_ALL_USERS" envDefault:"false"`
}

// Load parses environment variables into Config.
//
// Loading order (highest to lowest priority): process environment, .env
// files loaded by the caller, struct tag defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DB_URL is required when STORE_DRIVER is %q", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}
	if c.MessageMaxLength <= 0 {
		return fmt.Errorf("MESSAGE_MAX_LENGTH must be positive")
	}
	if c.RateLimitMessages <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_MESSAGES and RATE_LIMIT_WINDOW must be positive")
	}
	if c.TypingTTL <= 0 {
		return fmt.Errorf("TYPING_TTL must be positive")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

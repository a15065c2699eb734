// Package config loads application configuration from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration values.
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"dev"`
	Port     string `envconfig:"APP_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Storage selects the persistence backend: mysql or memory.
	Storage string `envconfig:"STORAGE" default:"mysql"`
	DBUser  string `envconfig:"DB_USER" default:"root"`
	DBPass  string `envconfig:"DB_PASS"`
	DBHost  string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort  string `envconfig:"DB_PORT" default:"3306"`
	DBName  string `envconfig:"DB_NAME" default:"addwise"`

	JWTSecret      string `envconfig:"JWT_SECRET" required:"true"`
	AccessTTLMin   int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"60"`
	RefreshTTLDays int    `envconfig:"REFRESH_TOKEN_TTL_DAYS" default:"7"`
	BcryptCost     int    `envconfig:"BCRYPT_COST" default:"10"`

	// RabbitMQURL enables event publishing when set.
	RabbitMQURL  string `envconfig:"RABBITMQ_URL"`
	EventLogPath string `envconfig:"EVENT_LOG_PATH" default:"logs/qr-events.log"`

	SuperAdminName     string `envconfig:"SUPERADMIN_NAME" default:"Super Admin"`
	SuperAdminEmail    string `envconfig:"SUPERADMIN_EMAIL"`
	SuperAdminPassword string `envconfig:"SUPERADMIN_PASSWORD"`

	MaxIssuePerUser int           `envconfig:"MAX_ISSUE_PER_USER" default:"1000"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"5s"`

	RateLimit RateLimitConfig
	Cache     CacheConfig
	Redis     RedisConfig
}

// RateLimitConfig configures the Redis token bucket middleware.
type RateLimitConfig struct {
	Enabled        bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	Capacity       int           `envconfig:"RATE_LIMIT_CAPACITY" default:"60"`
	RefillTokens   int           `envconfig:"RATE_LIMIT_REFILL_TOKENS" default:"1"`
	RefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1s"`
	TTL            time.Duration `envconfig:"RATE_LIMIT_TTL" default:"10m"`
	KeyStrategy    string        `envconfig:"RATE_LIMIT_KEY_STRATEGY" default:"ip_user_route"`
	Prefix         string        `envconfig:"RATE_LIMIT_PREFIX" default:"rl"`
	Debug          bool          `envconfig:"RATE_LIMIT_DEBUG" default:"false"`
}

// CacheConfig configures the Redis response cache used for the public
// QR lookup.
type CacheConfig struct {
	Enabled      bool          `envconfig:"CACHE_ENABLED" default:"true"`
	Methods      []string      `envconfig:"CACHE_METHODS" default:"GET"`
	TTL          time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	Prefix       string        `envconfig:"CACHE_PREFIX" default:"cache"`
	MaxBodyBytes int           `envconfig:"CACHE_MAX_BODY_BYTES" default:"1048576"`
}

// Load reads .env (if any) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	c.normalize()
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) normalize() {
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	if c.MaxIssuePerUser < 1 {
		c.MaxIssuePerUser = 1000
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}

	rl := &c.RateLimit
	if rl.Capacity < 1 {
		rl.Capacity = 1
	}
	if rl.RefillTokens < 1 {
		rl.RefillTokens = 1
	}
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = time.Second
	}
	if minTTL := 5 * rl.RefillInterval; rl.TTL < minTTL {
		rl.TTL = minTTL
	}

	for i, m := range c.Cache.Methods {
		c.Cache.Methods[i] = strings.ToUpper(strings.TrimSpace(m))
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 30 * time.Second
	}
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Storage {
	case "mysql", "memory":
	default:
		return fmt.Errorf("STORAGE must be mysql or memory, got %q", c.Storage)
	}
	if (c.SuperAdminEmail == "") != (c.SuperAdminPassword == "") {
		return fmt.Errorf("SUPERADMIN_EMAIL and SUPERADMIN_PASSWORD must be set together")
	}
	return nil
}

// CacheMethod reports whether responses to method may be cached.
func (c CacheConfig) CacheMethod(method string) bool {
	method = strings.ToUpper(method)
	for _, m := range c.Methods {
		if m == method {
			return true
		}
	}
	return false
}

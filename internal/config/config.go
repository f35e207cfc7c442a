// Package config provides environment configuration for the relay.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Env string `env:"ENV" envDefault:"production"`

	// Server settings
	ServerPort         string        `env:"PORT" envDefault:"8080"`
	ServerReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	ServerWriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10m"`
	TrustProxy         bool          `env:"TRUST_PROXY" envDefault:"false"`

	// Telegram settings
	APIID            int           `env:"API_ID"`
	APIHash          string        `env:"API_HASH"`
	Phone            string        `env:"PHONE"`
	TelegramPassword string        `env:"TELEGRAM_PASSWORD"`
	TargetBot        string        `env:"TARGET_BOT" envDefault:"@TrueCaller1Bot"`
	SessionName      string        `env:"SESSION_NAME" envDefault:"tc_user_session"`
	SessionString    string        `env:"SESSION_STRING"`
	PollInterval     time.Duration `env:"TELEGRAM_POLL_INTERVAL" envDefault:"500ms"`

	// Phone normalization plan
	PhoneCountryCode  string `env:"PHONE_COUNTRY_CODE" envDefault:"972"`
	PhoneMobilePrefix string `env:"PHONE_MOBILE_PREFIX" envDefault:"5"`

	// Access control
	APIKey          string        `env:"API_KEY"`
	JWTSecret       string        `env:"JWT_SECRET"`
	DevPassword     string        `env:"DEV_PASSWORD"`
	SecretKey       string        `env:"SECRET_KEY"`
	DevTokenTTL     time.Duration `env:"DEV_TOKEN_TTL" envDefault:"8h"`
	CookieSecure    bool          `env:"COOKIE_SECURE" envDefault:"true"`
	FrontendOrigin  string        `env:"FRONTEND_ORIGIN"`
	FrontendAPIBase string        `env:"FRONTEND_API_BASE"`

	// Rate limiting
	RateLimitRequests  int           `env:"RATE_LIMIT_REQUESTS" envDefault:"60"`
	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	DevAuthPerMinute   int           `env:"DEV_AUTH_PER_MINUTE" envDefault:"30"`
	RateLimitCacheSize int           `env:"RATE_LIMIT_CACHE_SIZE" envDefault:"10000"`
	RedisURL           string        `env:"REDIS_URL"`

	// Batch
	BatchMaxItems int `env:"BATCH_MAX_ITEMS" envDefault:"200"`

	// NATS settings
	NATSURL      string `env:"NATS_URL"`
	NATSCAFile   string `env:"NATS_CA_FILE"`
	NATSCertFile string `env:"NATS_CERT_FILE"`
	NATSKeyFile  string `env:"NATS_KEY_FILE"`
	NATSToken    string `env:"NATS_TOKEN"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Tracing
	TracingEndpoint string `env:"TRACING_ENDPOINT" envDefault:"localhost:4318"`
	TracingEnabled  bool   `env:"TRACING_ENABLED" envDefault:"false"`
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.APIID == 0 {
		errs = append(errs, errors.New("API_ID is required"))
	}
	if c.APIHash == "" {
		errs = append(errs, errors.New("API_HASH is required"))
	}
	if c.TargetBot == "" {
		errs = append(errs, errors.New("TARGET_BOT is required"))
	}
	if c.RateLimitRequests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// SessionFile returns the path of the file-backed Telegram session.
func (c *Config) SessionFile() string {
	return c.SessionName + ".json"
}

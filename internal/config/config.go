package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the portal process configuration
type Config struct {
	HTTPAddr string `env:"PORTAL_HTTP_ADDR" envDefault:":9000"`

	// Authorization server issuing challenges and codes
	AuthServerURL   string        `env:"PORTAL_AUTH_SERVER_URL,required"`
	AuthServerToken string        `env:"PORTAL_AUTH_SERVER_TOKEN"`
	HTTPTimeout     time.Duration `env:"PORTAL_HTTP_TIMEOUT" envDefault:"10s"`

	WalletKeyFile       string        `env:"PORTAL_WALLET_KEY_FILE"`
	WalletDetectTimeout time.Duration `env:"PORTAL_WALLET_DETECT_TIMEOUT" envDefault:"5s"`
	WalletPollInterval  time.Duration `env:"PORTAL_WALLET_POLL_INTERVAL" envDefault:"100ms"`

	// Empty RedisURL keeps the ledger and events in process
	RedisURL    string `env:"REDIS_URL"`
	EventsTopic string `env:"PORTAL_EVENTS_TOPIC" envDefault:"portal.handshake"`

	ErrorLogURL    string `env:"PORTAL_ERROR_LOG_URL"`
	APITokenSecret string `env:"PORTAL_API_TOKEN_SECRET"`

	SessionTTL   time.Duration `env:"PORTAL_SESSION_TTL" envDefault:"15m"`
	CookieSecure bool          `env:"PORTAL_COOKIE_SECURE" envDefault:"true"`

	LogLevel  string `env:"PORTAL_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PORTAL_LOG_FORMAT" envDefault:"json"`
}

// Load reads the configuration from the environment
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

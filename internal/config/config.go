// Package config loads Tech Safi server settings from the environment.
//
// Values come from a .env file (if present) and then the process environment.
// Command-line flags in main may override them afterwards.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mastermind-creat/tech.safi-sub001/internal/chatbot"
)

// Defaults applied by the envDefault tags on Config.
const (
	DefaultStateDir = "/var/lib/techsafi"
	DefaultAddr     = ":8080"
)

var (
	// ErrInvalidTemperature is returned for temperatures outside [0, 2].
	ErrInvalidTemperature = errors.New("OPENAI_TEMPERATURE must be between 0 and 2")
	// ErrPartialTwilio is returned when only some Twilio REST credentials are set.
	// TWILIO_AUTH_TOKEN alone is valid and enables webhook signature checks.
	ErrPartialTwilio = errors.New("TWILIO_ACCOUNT_SID and TWILIO_FROM_NUMBER must be set together, with TWILIO_AUTH_TOKEN")
)

// Config holds every setting read from the environment.
type Config struct {
	StateDir    string `env:"TECHSAFI_STATE_DIR" envDefault:"/var/lib/techsafi"`
	DatabaseURL string `env:"DATABASE_URL"`
	Addr        string `env:"API_ADDR" envDefault:":8080"`
	LogFormat   string `env:"TECHSAFI_LOG_FORMAT" envDefault:"text"`
	Debug       bool   `env:"TECHSAFI_DEBUG"`

	OpenAIKey         string  `env:"OPENAI_API_KEY"`
	OpenAIModel       string  `env:"OPENAI_MODEL"`
	OpenAIBaseURL     string  `env:"OPENAI_BASE_URL"`
	OpenAITemperature float64 `env:"OPENAI_TEMPERATURE" envDefault:"0.7"`
	OpenAIMaxTokens   int64   `env:"OPENAI_MAX_TOKENS" envDefault:"512"`
	OpenAIMaxRetries  int     `env:"OPENAI_MAX_RETRIES" envDefault:"1"`

	SystemPromptFile string        `env:"CHAT_SYSTEM_PROMPT_FILE"`
	AITimeout        time.Duration `env:"CHAT_AI_TIMEOUT" envDefault:"12s"`
	FallbackDelay    time.Duration `env:"CHAT_FALLBACK_DELAY" envDefault:"0s"`
	SessionTTL       time.Duration `env:"CHAT_SESSION_TTL" envDefault:"30m"`
	HistoryLimit     int           `env:"CHAT_HISTORY_LIMIT" envDefault:"20"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	BrandName  string `env:"BRAND_NAME"`
	BrandEmail string `env:"BRAND_EMAIL"`
	BrandPhone string `env:"BRAND_PHONE"`

	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `env:"TWILIO_FROM_NUMBER"`
	TwilioWebhookURL string `env:"TWILIO_WEBHOOK_URL"`
}

// Load reads .env (if present) and the environment into a validated Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("config.Load: no .env file loaded", "error", err)
	}
	return Parse()
}

// Parse reads the process environment without touching .env files.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and settings that must appear together.
func (c Config) Validate() error {
	if c.OpenAITemperature < 0 || c.OpenAITemperature > 2 {
		return ErrInvalidTemperature
	}
	if c.OpenAIMaxTokens <= 0 {
		return errors.New("OPENAI_MAX_TOKENS must be positive")
	}
	if c.OpenAIMaxRetries < 0 {
		return errors.New("OPENAI_MAX_RETRIES must not be negative")
	}
	if c.AITimeout < 0 || c.FallbackDelay < 0 || c.SessionTTL < 0 {
		return errors.New("durations must not be negative")
	}
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("API_ADDR must not be empty")
	}
	if (c.TwilioAccountSID != "" || c.TwilioFromNumber != "") && !c.TwilioEnabled() {
		return ErrPartialTwilio
	}
	return nil
}

// TwilioEnabled reports whether WhatsApp delivery through the REST API is configured.
func (c Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// TwilioSignatureEnabled reports whether inbound webhooks can be authenticated.
// It does not depend on REST delivery, so inline TwiML replies are checked too.
func (c Config) TwilioSignatureEnabled() bool {
	return c.TwilioAuthToken != "" && c.TwilioWebhookURL != ""
}

// Brand returns the business details used in canned replies, filling gaps from the defaults.
func (c Config) Brand() chatbot.Brand {
	brand := chatbot.DefaultBrand()
	if c.BrandName != "" {
		brand.Name = c.BrandName
	}
	if c.BrandEmail != "" {
		brand.Email = c.BrandEmail
	}
	if c.BrandPhone != "" {
		brand.Phone = c.BrandPhone
	}
	return brand
}

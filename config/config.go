package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Duration lets TOML files carry values such as "4s" or "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Environment string `toml:"environment"`
	LogLevel    string `toml:"log_level"`
	Locale      string `toml:"locale"`

	Server   ServerConfig   `toml:"server"`
	Gateway  GatewayConfig  `toml:"gateway"`
	Upstream UpstreamConfig `toml:"upstream"`
	Webhook  WebhookConfig  `toml:"webhook"`
	Store    StoreConfig    `toml:"store"`
	Poller   PollerConfig   `toml:"poller"`
	Payment  PaymentConfig  `toml:"payment"`
	Mail     MailConfig     `toml:"mail"`
	Admin    AdminConfig    `toml:"admin"`
	Sentry   SentryConfig   `toml:"sentry"`
}

type ServerConfig struct {
	Port          string   `toml:"port"`
	CORSOrigins   []string `toml:"cors_origins"`
	EnableMetrics bool     `toml:"enable_metrics"`
	EnableSwagger bool     `toml:"enable_swagger"`
}

// GatewayConfig points the checkout client at the payment backend.
type GatewayConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

// UpstreamConfig points the backend at the PIX provider.
type UpstreamConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout Duration `toml:"timeout"`
}

type WebhookConfig struct {
	Secret string `toml:"secret"`
}

type StoreConfig struct {
	Driver    string `toml:"driver"`
	DSN       string `toml:"dsn"`
	RedisAddr string `toml:"redis_addr"`
	RedisKey  string `toml:"redis_key"`
}

type PollerConfig struct {
	BaseInterval   Duration `toml:"base_interval"`
	MaxInterval    Duration `toml:"max_interval"`
	SuccessGrowth  float64  `toml:"success_growth"`
	FailureBackoff float64  `toml:"failure_backoff"`
	MaxFailures    int      `toml:"max_failures"`
	RequestTimeout Duration `toml:"request_timeout"`
}

type PaymentConfig struct {
	ExpirySeconds int    `toml:"expiry_seconds"`
	Description   string `toml:"description"`
}

type MailConfig struct {
	SendGridAPIKey string `toml:"sendgrid_api_key"`
	From           string `toml:"from"`
	FromName       string `toml:"from_name"`
	NotifyTo       string `toml:"notify_to"`
}

type AdminConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

type SentryConfig struct {
	DSN string `toml:"dsn"`
}

func defaults() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Locale:      "pt-BR",
		Server: ServerConfig{
			Port:          "8080",
			CORSOrigins:   []string{"http://localhost:3000", "http://localhost:8080"},
			EnableMetrics: true,
			EnableSwagger: true,
		},
		Gateway: GatewayConfig{
			BaseURL: "http://localhost:8080",
			Timeout: Duration{10 * time.Second},
		},
		Upstream: UpstreamConfig{
			BaseURL: "https://api.abacatepay.com",
			Timeout: Duration{10 * time.Second},
		},
		Store: StoreConfig{
			Driver:   "sqlite",
			DSN:      "weddingpix.db",
			RedisKey: "weddingpix:active-payment",
		},
		Poller: PollerConfig{
			BaseInterval:   Duration{4 * time.Second},
			MaxInterval:    Duration{30 * time.Second},
			SuccessGrowth:  1.1,
			FailureBackoff: 2,
			MaxFailures:    10,
			RequestTimeout: Duration{10 * time.Second},
		},
		Payment: PaymentConfig{
			ExpirySeconds: 3500,
		},
		Mail: MailConfig{
			From:     "noreply@casamento.example",
			FromName: "Lista de Presentes",
		},
	}
}

// New returns the configuration built from defaults and the environment only.
func New() *Config {
	c := defaults()
	c.applyEnv()
	return c
}

// Load reads an optional TOML file, then a .env file, then environment
// variables, each layer overriding the previous one.
func Load(path string) (*Config, error) {
	c := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, c); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// .env is optional outside development
	_ = godotenv.Load()

	c.applyEnv()
	return c, nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Locale = getEnv("LOCALE", c.Locale)

	c.Server.Port = getEnv("PORT", c.Server.Port)
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		c.Server.CORSOrigins = strings.Split(origins, ",")
	}
	c.Server.EnableMetrics = getEnvAsBool("ENABLE_METRICS", c.Server.EnableMetrics)
	c.Server.EnableSwagger = getEnvAsBool("ENABLE_SWAGGER", c.Server.EnableSwagger)

	c.Gateway.BaseURL = getEnv("PAYMENT_API_URL", c.Gateway.BaseURL)
	c.Gateway.Timeout.Duration = getEnvAsDuration("PAYMENT_API_TIMEOUT", c.Gateway.Timeout.Duration)

	c.Upstream.BaseURL = getEnv("ABACATEPAY_BASE_URL", c.Upstream.BaseURL)
	c.Upstream.APIKey = getEnv("ABACATE_PAY_API_KEY", c.Upstream.APIKey)
	c.Upstream.Timeout.Duration = getEnvAsDuration("ABACATEPAY_TIMEOUT", c.Upstream.Timeout.Duration)

	c.Webhook.Secret = getEnv("WEBHOOK_SECRET", c.Webhook.Secret)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnv("STORE_DSN", c.Store.DSN)
	c.Store.RedisAddr = getEnv("REDIS_URL", c.Store.RedisAddr)
	c.Store.RedisKey = getEnv("REDIS_KEY", c.Store.RedisKey)

	c.Poller.BaseInterval.Duration = getEnvAsDuration("POLL_BASE_INTERVAL", c.Poller.BaseInterval.Duration)
	c.Poller.MaxInterval.Duration = getEnvAsDuration("POLL_MAX_INTERVAL", c.Poller.MaxInterval.Duration)
	c.Poller.MaxFailures = getEnvAsInt("POLL_MAX_FAILURES", c.Poller.MaxFailures)

	c.Payment.ExpirySeconds = getEnvAsInt("PIX_EXPIRY_SECONDS", c.Payment.ExpirySeconds)
	c.Payment.Description = getEnv("PIX_DESCRIPTION", c.Payment.Description)

	c.Mail.SendGridAPIKey = getEnv("SENDGRID_API_KEY", c.Mail.SendGridAPIKey)
	c.Mail.From = getEnv("MAIL_FROM", c.Mail.From)
	c.Mail.NotifyTo = getEnv("MAIL_NOTIFY_TO", c.Mail.NotifyTo)

	c.Admin.JWTSecret = getEnv("JWT_SECRET", c.Admin.JWTSecret)
	c.Sentry.DSN = getEnv("SENTRY_DSN", c.Sentry.DSN)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return valueStr == "true" || valueStr == "1"
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

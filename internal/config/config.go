// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Gateway   GatewayConfig   `koanf:"gateway"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	Checkout  CheckoutConfig  `koanf:"checkout"`
	Notify    NotifyConfig    `koanf:"notify"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

// JWTConfig describes how access tokens issued by the identity provider
// are verified. The service never signs tokens itself.
type JWTConfig struct {
	PublicKeyPath string `koanf:"public_key_path"`
	Issuer        string `koanf:"issuer"`
	Audience      string `koanf:"audience"`
}

type RateLimitConfig struct {
	Requests     int           `koanf:"requests"`
	Window       time.Duration `koanf:"window"`
	Burst        int           `koanf:"burst"`
	PollRequests int           `koanf:"poll_requests"`
	PollBurst    int           `koanf:"poll_burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type GatewayConfig struct {
	Provider      string        `koanf:"provider"`
	BaseURL       string        `koanf:"base_url"`
	SecretKey     string        `koanf:"secret_key"`
	CallbackToken string        `koanf:"callback_token"`
	Currency      string        `koanf:"currency"`
	Timeout       time.Duration `koanf:"timeout"`
}

type WebhookConfig struct {
	EnforceToken bool          `koanf:"enforce_token"`
	DedupeTTL    time.Duration `koanf:"dedupe_ttl"`
	MaxBodyBytes int64         `koanf:"max_body_bytes"`
}

type CheckoutConfig struct {
	PollInterval        time.Duration `koanf:"poll_interval"`
	ClientWatchdog      time.Duration `koanf:"client_watchdog"`
	UnpaidTTL           time.Duration `koanf:"unpaid_ttl"`
	ExpiryGrace         time.Duration `koanf:"expiry_grace"`
	ExpirySweepInterval time.Duration `koanf:"expiry_sweep_interval"`
	ExpiryBatchSize     int           `koanf:"expiry_batch_size"`
	ManualVerifyEnabled *bool         `koanf:"manual_verify_enabled"`
}

type NotifyConfig struct {
	BrevoAPIKey string        `koanf:"brevo_api_key"`
	FromEmail   string        `koanf:"from_email"`
	FromName    string        `koanf:"from_name"`
	Timeout     time.Duration `koanf:"timeout"`
}

const (
	GatewayXendit  = "xendit"
	GatewaySandbox = "sandbox"
)

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Checkout Backend",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.issuer":          "identity",
		"jwt.audience":        "checkout-api",
		"jwt.public_key_path": "keys/public.pem",

		"rate_limit.requests":      100,
		"rate_limit.window":        "1m",
		"rate_limit.burst":         20,
		"rate_limit.poll_requests": 40,
		"rate_limit.poll_burst":    5,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "checkout-backend",

		"gateway.provider": GatewaySandbox,
		"gateway.base_url": "https://api.xendit.co",
		"gateway.currency": "IDR",
		"gateway.timeout":  "15s",

		"webhook.enforce_token":  false,
		"webhook.dedupe_ttl":     "24h",
		"webhook.max_body_bytes": 1 << 20,

		"checkout.poll_interval":         "3s",
		"checkout.client_watchdog":       "15m",
		"checkout.unpaid_ttl":            "24h",
		"checkout.expiry_grace":          "10m",
		"checkout.expiry_sweep_interval": "1m",
		"checkout.expiry_batch_size":     100,

		"notify.from_email": "no-reply@example.com",
		"notify.from_name":  "Preset Store",
		"notify.timeout":    "10s",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                   "database.url",
	"DATABASE_CONN_MAX_LIFETIME":     "database.conn_max_lifetime",
	"REDIS_URL":                      "redis.url",
	"ENVIRONMENT":                    "app.environment",
	"HOST":                           "server.host",
	"PORT":                           "server.port",
	"LOG_LEVEL":                      "log.level",
	"LOG_FORMAT":                     "log.format",
	"JWT_PUBLIC_KEY_PATH":            "jwt.public_key_path",
	"JWT_ISSUER":                     "jwt.issuer",
	"JWT_AUDIENCE":                   "jwt.audience",
	"RATE_LIMIT_REQUESTS":            "rate_limit.requests",
	"RATE_LIMIT_WINDOW":              "rate_limit.window",
	"RATE_LIMIT_BURST":               "rate_limit.burst",
	"OTEL_ENDPOINT":                  "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT":    "otel.endpoint",
	"OTEL_SERVICE_NAME":              "otel.service_name",
	"OTEL_ENABLED":                   "otel.enabled",
	"OTEL_INSECURE":                  "otel.insecure",
	"OTEL_SAMPLE_RATE":               "otel.sample_rate",
	"PAYMENT_GATEWAY":                "gateway.provider",
	"XENDIT_BASE_URL":                "gateway.base_url",
	"XENDIT_SECRET_KEY":              "gateway.secret_key",
	"XENDIT_CALLBACK_TOKEN":          "gateway.callback_token",
	"WEBHOOK_ENFORCE_TOKEN":          "webhook.enforce_token",
	"CHECKOUT_UNPAID_TTL":            "checkout.unpaid_ttl",
	"CHECKOUT_EXPIRY_GRACE":          "checkout.expiry_grace",
	"CHECKOUT_MANUAL_VERIFY_ENABLED": "checkout.manual_verify_enabled",
	"BREVO_API_KEY":                  "notify.brevo_api_key",
	"EMAIL_FROM":                     "notify.from_email",
	"EMAIL_FROM_NAME":                "notify.from_name",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	switch c.Gateway.Provider {
	case GatewayXendit:
		if c.Gateway.SecretKey == "" {
			return fmt.Errorf("XENDIT_SECRET_KEY is required for the xendit gateway")
		}
	case GatewaySandbox:
	default:
		return fmt.Errorf("unknown payment gateway %q", c.Gateway.Provider)
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
		if c.Gateway.CallbackToken == "" {
			return fmt.Errorf("XENDIT_CALLBACK_TOKEN is required in production")
		}
		if c.Gateway.Provider == GatewaySandbox {
			return fmt.Errorf("sandbox gateway cannot be used in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	if c.Checkout.PollInterval <= 0 || c.Checkout.ClientWatchdog <= 0 {
		return fmt.Errorf("checkout poll interval and watchdog must be positive")
	}

	if c.Checkout.PollInterval >= c.Checkout.ClientWatchdog {
		return fmt.Errorf("checkout.poll_interval must be shorter than checkout.client_watchdog")
	}

	if c.Checkout.UnpaidTTL <= 0 {
		return fmt.Errorf("checkout.unpaid_ttl must be positive")
	}

	if c.Checkout.ExpiryGrace < 0 {
		return fmt.Errorf("checkout.expiry_grace must not be negative")
	}

	if c.Database.ConnMaxLifetime < 0 {
		return fmt.Errorf("database.conn_max_lifetime must not be negative")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// ManualVerifyAllowed reports whether the "I've paid" fallback may force a
// reconcile. Unset means allowed everywhere except production.
func (c *Config) ManualVerifyAllowed() bool {
	if c.Checkout.ManualVerifyEnabled != nil {
		return *c.Checkout.ManualVerifyEnabled
	}
	return !c.IsProduction()
}

// EnforceCallbackToken reports whether a callback with a bad token is rejected.
func (c *Config) EnforceCallbackToken() bool {
	return c.IsProduction() || c.Webhook.EnforceToken
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

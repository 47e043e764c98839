package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/HibiKier/wuthering-waves/pkg/validator"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development" validate:"oneof=development production test"`
	Log         LogConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kuro        KuroConfig
	Credential  CredentialConfig
	Fetch       FetchConfig
	Refresh     RefreshConfig
	Login       LoginConfig
	Captcha     CaptchaConfig
	Notify      NotifyConfig
	Telemetry   TelemetryConfig
	Metrics     MetricsConfig
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	Pretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

type DatabaseConfig struct {
	Driver          string        `env:"DB_DRIVER" envDefault:"postgres" validate:"oneof=postgres sqlite"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"waves"`
	Password        string        `env:"DB_PASSWORD" envDefault:"waves"`
	DBName          string        `env:"DB_NAME" envDefault:"wavesdb"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	SQLitePath      string        `env:"DB_SQLITE_PATH" envDefault:"./data/waves.db"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25" validate:"gte=1"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5" validate:"gte=0"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	ConnectRetries  int           `env:"DB_CONNECT_RETRIES" envDefault:"5" validate:"gte=1"`
	RetryInterval   time.Duration `env:"DB_RETRY_INTERVAL" envDefault:"2s"`
}

// RedisConfig enables the shared caches when Enabled is set; otherwise the
// caches live in process memory.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type KuroConfig struct {
	BaseURL     string        `env:"KURO_BASE_URL" envDefault:"https://api.kurobbs.com" validate:"url"`
	Timeout     time.Duration `env:"KURO_TIMEOUT" envDefault:"15s"`
	MaxAttempts uint          `env:"KURO_MAX_ATTEMPTS" envDefault:"3" validate:"gte=1"`
	Platform    string        `env:"KURO_PLATFORM" envDefault:"ios" validate:"oneof=ios android h5"`
}

type CredentialConfig struct {
	PoolSize       int           `env:"CREDENTIAL_POOL_SIZE" envDefault:"100" validate:"gte=0"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`
	CacheMaxSize   int           `env:"ACCESS_TOKEN_CACHE_SIZE" envDefault:"100" validate:"gte=1"`
}

type FetchConfig struct {
	Concurrency int64 `env:"FETCH_CONCURRENCY" envDefault:"2" validate:"gte=1"`
}

type RefreshConfig struct {
	Cooldown     time.Duration `env:"REFRESH_COOLDOWN" envDefault:"60s"`
	SingleFlight bool          `env:"REFRESH_SINGLE_FLIGHT" envDefault:"true"`
	WritePolicy  string        `env:"REFRESH_WRITE_POLICY" envDefault:"always" validate:"oneof=always changed-only"`
	// Interval drives the scheduled refresh of every VALID player. Zero disables it.
	Interval time.Duration `env:"REFRESH_INTERVAL" envDefault:"0s"`
	// KeepAliveInterval renews the login of every VALID session. Zero disables it.
	KeepAliveInterval time.Duration `env:"KEEPALIVE_INTERVAL" envDefault:"0s"`
}

type LoginConfig struct {
	Timeout    time.Duration `env:"LOGIN_TIMEOUT" envDefault:"600s"`
	MaxPending int           `env:"LOGIN_MAX_PENDING" envDefault:"10" validate:"gte=1"`
}

type CaptchaConfig struct {
	Provider    string `env:"CAPTCHA_PROVIDER"`
	AppKey      string `env:"CAPTCHA_APPKEY"`
	Endpoint    string `env:"CAPTCHA_ENDPOINT"`
	MaxAttempts int    `env:"CAPTCHA_MAX_ATTEMPTS" envDefault:"3" validate:"gte=1"`
}

type NotifyConfig struct {
	WebhookURL   string        `env:"NOTIFY_WEBHOOK_URL"`
	Timeout      time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
	ResendAPIKey string        `env:"RESEND_API_KEY"`
	FromEmail    string        `env:"NOTIFY_FROM_EMAIL"`
	FromName     string        `env:"NOTIFY_FROM_NAME" envDefault:"Wuthering Waves"`
	To           []string      `env:"NOTIFY_TO" envSeparator:","`
}

type TelemetryConfig struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"true"`
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"wuthering-waves"`
}

type MetricsConfig struct {
	Addr string `env:"METRICS_ADDR"`
}

// Load reads an optional .env file, parses the environment and validates
// the result.
func Load() (*Config, error) {
	// .env is optional in production
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := validator.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

package config

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const defaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Port        string `env:"APP_PORT,default=8080"`
	Env         string `env:"APP_ENV,default=dev"`
	DatabaseDSN string `env:"DATABASE_DSN,default=host=localhost user=postgres password=postgres dbname=stackit port=5432 sslmode=disable TimeZone=UTC"`
	RedisURL    string `env:"REDIS_URL,default=redis://localhost:6379/0"`
	NATSURL     string `env:"NATS_URL"`

	JWTSecret      string        `env:"JWT_SECRET,default=dev-secret-change-me"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL,default=1h"`
	OTPTTL         time.Duration `env:"OTP_TTL,default=10m"`
	VerifiedTTL    time.Duration `env:"VERIFIED_TTL,default=10m"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASS"`
	MailFrom     string `env:"MAIL_FROM,default=no-reply@stackit.local"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	PublicURL          string `env:"PUBLIC_URL,default=http://localhost:8080"`
	FrontendURL        string `env:"FRONTEND_URL,default=http://localhost:5173"`
	CookieHashKey      string `env:"COOKIE_HASH_KEY"`
	CookieBlockKey     string `env:"COOKIE_BLOCK_KEY"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	OTLPEndpoint   string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load 从环境变量读取配置，缺省值见结构体标签。
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 拒绝无法启动或不安全的配置。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: APP_PORT is empty")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("config: DATABASE_DSN is empty")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is empty")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == defaultJWTSecret {
		return errors.New("config: JWT_SECRET must be changed outside dev")
	}
	if cfg.AccessTokenTTL <= 0 {
		return errors.New("config: ACCESS_TOKEN_TTL must be positive")
	}
	return nil
}

package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting read from the environment
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"restopos-backend"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"LOG_FILE"` // optional rotating file sink

	Database DatabaseConfig
	Auth     AuthConfig
	SMTP     SMTPConfig
	WhatsApp WhatsAppConfig
	Notify   NotifyConfig

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

// DatabaseConfig holds the postgres DSN and pool limits
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL" envDefault:"host=localhost user=postgres password=postgres dbname=restopos port=5432 sslmode=disable"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"50"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	LogSQL          bool          `env:"DB_LOG_SQL" envDefault:"false"`
}

type AuthConfig struct {
	JWTSecret          string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL           time.Duration `env:"TOKEN_TTL" envDefault:"12h"`
	ServiceTokenSecret string        `env:"SERVICE_TOKEN_SECRET,required,notEmpty"`
	CookieSecure       bool          `env:"COOKIE_SECURE" envDefault:"false"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"EMAIL_FROM_ADDRESS"`
	FromName string `env:"EMAIL_FROM_NAME" envDefault:"RestoPOS"`
}

type WhatsAppConfig struct {
	APIURL            string `env:"WHATSAPP_API_URL" envDefault:"https://graph.facebook.com/v22.0/me/messages"`
	APIToken          string `env:"WHATSAPP_API_TOKEN"`
	Language          string `env:"WHATSAPP_LANGUAGE" envDefault:"en_US"`
	CountryCode       string `env:"WHATSAPP_COUNTRY_CODE" envDefault:"+92"`
	TemplatePlaced    string `env:"WHATSAPP_TEMPLATE_PLACED" envDefault:"order_placed"`
	TemplateReady     string `env:"WHATSAPP_TEMPLATE_READY" envDefault:"order_ready"`
	TemplateCancelled string `env:"WHATSAPP_TEMPLATE_CANCELLED" envDefault:"order_cancelled"`
}

// NotifyConfig tunes the outbox dispatcher
type NotifyConfig struct {
	Interval    time.Duration `env:"NOTIFY_INTERVAL" envDefault:"5s"`
	SendTimeout time.Duration `env:"NOTIFY_SEND_TIMEOUT" envDefault:"10s"`
	MaxAttempts int           `env:"NOTIFY_MAX_ATTEMPTS" envDefault:"3"`
	BatchSize   int           `env:"NOTIFY_BATCH_SIZE" envDefault:"50"`
	Backoff     time.Duration `env:"NOTIFY_BACKOFF" envDefault:"30s"`
}

// Load reads .env (if present) and parses the environment into a Config
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == c.Auth.ServiceTokenSecret {
		return fmt.Errorf("SERVICE_TOKEN_SECRET must differ from JWT_SECRET")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.Notify.Interval <= 0 {
		return fmt.Errorf("NOTIFY_INTERVAL must be positive")
	}
	if c.Notify.SendTimeout <= 0 {
		return fmt.Errorf("NOTIFY_SEND_TIMEOUT must be positive")
	}
	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("NOTIFY_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// EmailEnabled reports whether SMTP delivery is configured
func (s SMTPConfig) EmailEnabled() bool {
	return s.Host != "" && s.From != ""
}

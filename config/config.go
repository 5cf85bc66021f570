package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	Port     string `env:"PORT" envDefault:"8080"`
	GinMode  string `env:"GIN_MODE" envDefault:"debug"`
	Timezone string `env:"TIMEZONE" envDefault:"Asia/Bangkok"`

	// Database
	DBDriver string `env:"DB_DRIVER" envDefault:"mysql"`
	DBDSN    string `env:"DB_DSN"`

	// Auth
	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	// Core timing
	CommitTimeout time.Duration `env:"COMMIT_TIMEOUT" envDefault:"10s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"30m"`

	// Redis (sweep lock). Empty address disables the lock.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Brokers. Empty values disable the publisher.
	RabbitMQURL   string   `env:"RABBITMQ_URL"`
	RabbitMQQueue string   `env:"RABBITMQ_QUEUE" envDefault:"booking.events"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic    string   `env:"KAFKA_TOPIC" envDefault:"booking-events"`

	// Payment: Midtrans
	MidtransServerKey  string `env:"MIDTRANS_SERVER_KEY"`
	MidtransClientKey  string `env:"MIDTRANS_CLIENT_KEY"`
	MidtransEnv        string `env:"MIDTRANS_ENV" envDefault:"sandbox"`
	MidtransWebhookURL string `env:"MIDTRANS_WEBHOOK_URL"`

	// Seed admin account, used by `migrate --seed`
	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@bar.local"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// HTTP
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`
	CORSOrigin     string  `env:"CORS_ORIGIN" envDefault:"http://127.0.0.1:5500"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.DBDriver) {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.CommitTimeout <= 0 {
		return fmt.Errorf("COMMIT_TIMEOUT must be positive")
	}
	return nil
}

// Location is the service-local zone booking times are interpreted in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) MidtransEnabled() bool {
	return c.MidtransServerKey != ""
}

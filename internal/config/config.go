package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	Database Database
	Redis    Redis
	Dolar    Dolar
	Telegram Telegram
}

type Database struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER,required"`
	Password        string        `env:"DB_PASSWORD,required"`
	Name            string        `env:"DB_NAME,required"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"2m"`
}

type Redis struct {
	Addr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"REDIS_TTL" envDefault:"1h"`
}

type Dolar struct {
	// dolarapi publishes the official quotation; venta is the side used
	// for customer-facing prices.
	BaseURL         string        `env:"DOLAR_API_URL" envDefault:"https://dolarapi.com"`
	Timeout         time.Duration `env:"DOLAR_API_TIMEOUT" envDefault:"10s"`
	RefreshInterval time.Duration `env:"DOLAR_REFRESH_INTERVAL" envDefault:"1h"`
	// FallbackRate is used until the first successful fetch.
	FallbackRate float64 `env:"DOLAR_FALLBACK_RATE" envDefault:"1250"`
}

type Telegram struct {
	// Empty token disables admin notifications.
	Token    string  `env:"TELEGRAM_TOKEN"`
	AdminIDs []int64 `env:"TELEGRAM_ADMIN_IDS" envSeparator:","`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

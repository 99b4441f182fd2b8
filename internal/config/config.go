package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DB_DSN"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"restaurant.db"`
	MenuFile    string `env:"MENU_FILE"`

	MessengerProvider     string `env:"MESSENGER_PROVIDER" envDefault:"log"`
	MessengerWebhookURL   string `env:"MESSENGER_WEBHOOK_URL"`
	MessengerWebhookToken string `env:"MESSENGER_WEBHOOK_TOKEN"`

	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"kitchen_fanout"`

	PixKey         string `env:"PIX_KEY" envDefault:"CNPJ: XX.XXX.XXX/0001-XX (Banco XPTO)"`
	RestaurantName string `env:"RESTAURANT_NAME" envDefault:"Pizzaria"`
	Timezone       string `env:"TIMEZONE" envDefault:"America/Sao_Paulo"`

	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	RateLimitBurst     int `env:"RATE_LIMIT_BURST" envDefault:"30"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DB_DSN is required for the %s store", DriverPostgres)
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location is the time zone report dates are read in.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

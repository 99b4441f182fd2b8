package config

import (
	"testing"

	"github.com/caarlos0/env/v11"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{"TIMEZONE": "UTC"}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Port != "8080" || cfg.StoreDriver != DriverMemory || cfg.AMQPExchange != "kitchen_fanout" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RateLimitPerMinute != 120 || cfg.RateLimitBurst != 30 || cfg.MessengerProvider != "log" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{
		"PORT":                        "9090",
		"STORE_DRIVER":                " Postgres ",
		"DB_DSN":                      "postgres://localhost/restaurant",
		"RESTAURANT_NAME":             "Pizzaria Julius",
		"RATE_LIMIT_PER_MIN":          "10",
		"OTEL_EXPORTER_OTLP_INSECURE": "true",
		"TIMEZONE":                    "UTC",
	}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Port != "9090" || cfg.StoreDriver != DriverPostgres || cfg.RestaurantName != "Pizzaria Julius" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.RateLimitPerMinute != 10 || !cfg.OTLPInsecure {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":  {"STORE_DRIVER": "mongo", "TIMEZONE": "UTC"},
		"postgres no dsn": {"STORE_DRIVER": "postgres", "TIMEZONE": "UTC"},
		"bad timezone":    {"TIMEZONE": "Mars/Olympus"},
		"bad rate limit":  {"RATE_LIMIT_PER_MIN": "many", "TIMEZONE": "UTC"},
	}
	for name, environment := range cases {
		if _, err := parse(env.Options{Environment: environment}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

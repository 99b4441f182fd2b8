package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/RubensDuarte2025/Julius-rmd/internal/catalog"
	"github.com/RubensDuarte2025/Julius-rmd/internal/config"
	"github.com/RubensDuarte2025/Julius-rmd/internal/events"
	"github.com/RubensDuarte2025/Julius-rmd/internal/httpapi"
	"github.com/RubensDuarte2025/Julius-rmd/internal/kitchen"
	"github.com/RubensDuarte2025/Julius-rmd/internal/ledger"
	"github.com/RubensDuarte2025/Julius-rmd/internal/messenger"
	"github.com/RubensDuarte2025/Julius-rmd/internal/reports"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store/memory"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store/postgres"
	"github.com/RubensDuarte2025/Julius-rmd/internal/store/sqlite"
	"github.com/RubensDuarte2025/Julius-rmd/internal/tables"
	"github.com/RubensDuarte2025/Julius-rmd/internal/telemetry"
	"github.com/RubensDuarte2025/Julius-rmd/internal/whatsapp"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "restaurant-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	location, err := cfg.Location()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	shutdownTelemetry := telemetry.Setup(context.Background(), telemetry.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	st, closeStore, err := openStore(context.Background(), cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	menu, err := catalog.Load(cfg.MenuFile)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}

	hub := events.NewHub()
	publisher := events.Fanout{hub}
	if cfg.AMQPURL != "" {
		broker, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("amqp: %v", err)
		}
		defer broker.Close()
		publisher = append(publisher, broker)
	}

	payments := ledger.New(st)
	sender := messenger.New(messenger.Options{
		Kind:       cfg.MessengerProvider,
		WebhookURL: cfg.MessengerWebhookURL,
		Token:      cfg.MessengerWebhookToken,
	})

	handler := httpapi.NewHandler(httpapi.Services{
		Tables:   tables.NewEngine(st, menu, payments, publisher),
		Payments: payments,
		Conversations: whatsapp.NewEngine(st, menu, payments, sender, publisher, whatsapp.Config{
			RestaurantName: cfg.RestaurantName,
			PixKey:         cfg.PixKey,
		}),
		Kitchen: kitchen.NewEngine(st, publisher),
		Reports: reports.New(st, payments, location),
	}, httpapi.Options{ReportLocation: location})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		PerMinute: cfg.RateLimitPerMinute,
		Burst:     cfg.RateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/kitchen/stream/", hub.Handler("/kitchen/stream"))
	mux.Handle("/", limiter.Middleware(handler.Routes()))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     otelhttp.NewHandler(httpapi.LoggingMiddleware(mux), serviceName),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("%s listening on %s store=%s", serviceName, server.Addr, cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewStore(pool), pool.Close, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	default:
		return memory.NewStore(), func() {}, nil
	}
}

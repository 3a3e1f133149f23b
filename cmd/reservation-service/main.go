package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/bathware-labs/stock-reservation-service/internal/admin"
	"github.com/bathware-labs/stock-reservation-service/internal/config"
	"github.com/bathware-labs/stock-reservation-service/internal/httpjson"
	productapp "github.com/bathware-labs/stock-reservation-service/internal/product/application"
	producthttp "github.com/bathware-labs/stock-reservation-service/internal/product/infrastructure/http"
	reservationapp "github.com/bathware-labs/stock-reservation-service/internal/reservation/application"
	reservationhttp "github.com/bathware-labs/stock-reservation-service/internal/reservation/infrastructure/http"
	"github.com/bathware-labs/stock-reservation-service/internal/storage/postgres"
	"github.com/bathware-labs/stock-reservation-service/internal/storage/sqlite"
	"github.com/bathware-labs/stock-reservation-service/pkg/idempotency"
	"github.com/bathware-labs/stock-reservation-service/pkg/logging"
	"github.com/bathware-labs/stock-reservation-service/pkg/outbox"
	"github.com/bathware-labs/stock-reservation-service/pkg/shutdown"
	"github.com/bathware-labs/stock-reservation-service/pkg/tracing"
)

// dataStore is everything a storage backend provides; both the sqlite and
// postgres stores satisfy it.
type dataStore interface {
	productapp.ProductStore
	reservationapp.Store
	admin.Database
	outbox.Store
	SeedIfEmpty(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "reservation-service", cfg.OTLPURL, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("store init failed", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	if err := store.SeedIfEmpty(ctx); err != nil {
		log.Error("seed failed", "err", err)
		os.Exit(1)
	}

	// Outbox relay, only when a broker is configured.
	if cfg.KafkaAddr != "" {
		writer := &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaAddr),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		}
		defer writer.Close()

		dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
		relayID := "reservation-relay-" + uuid.NewString()[:8]
		relay := outbox.NewRelay(log, store, dispatch, relayID)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("outbox relay stopped", "err", err)
			}
		}()
	} else {
		log.Info("no KAFKA_ADDR configured, outbox events stay pending")
	}

	coordinator := reservationapp.NewCoordinator(log, store)
	productSvc := productapp.NewService(log, store)
	issuer := admin.NewTokenIssuer(cfg.AdminPassword, cfg.AuthSecret)
	if cfg.AdminPassword == "" {
		log.Warn("ADMIN_PASSWORD not set, database endpoints are unreachable")
	}

	productHandler := producthttp.NewHandler(log, productSvc)
	reservationHandler := reservationhttp.NewHandler(log, coordinator)
	adminHandler := admin.NewHandler(log, store, issuer)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := store.Ping(req.Context()); err != nil {
			httpjson.Write(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "store unreachable"})
			return
		}
		httpjson.Write(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Mount("/api/auth", adminHandler.LoginRoutes())
	r.Mount("/api/database", adminHandler.DatabaseRoutes())
	r.Mount("/api/products", productHandler.Routes())
	r.Route("/api/reservations", func(r chi.Router) {
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			r.Use(idempotency.Middleware(log, idempotency.NewStore(rdb, cfg.IdempotencyTTL)))
		}
		r.Mount("/", reservationHandler.Routes())
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("reservation-service shutdown complete")
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (dataStore, error) {
	switch cfg.DBDriver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.PGURL)
		if err != nil {
			return nil, err
		}
		store := postgres.New(log, pool)
		if err := store.CreateSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return sqlite.Open(log, cfg.SQLitePath)
	}
}

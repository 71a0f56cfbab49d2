package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/millisami/flow-name-service/internal/authtoken"
	"github.com/millisami/flow-name-service/internal/events"
	namingHandler "github.com/millisami/flow-name-service/internal/naming/handler"
	namingmetrics "github.com/millisami/flow-name-service/internal/naming/metrics"
	"github.com/millisami/flow-name-service/internal/naming/service"
	"github.com/millisami/flow-name-service/internal/naming/store/accounts"
	"github.com/millisami/flow-name-service/internal/naming/store/cache"
	"github.com/millisami/flow-name-service/internal/platform/config"
	"github.com/millisami/flow-name-service/internal/platform/httpserver"
	"github.com/millisami/flow-name-service/internal/platform/kafka"
	"github.com/millisami/flow-name-service/internal/platform/logger"
	platformredis "github.com/millisami/flow-name-service/internal/platform/redis"
	"github.com/millisami/flow-name-service/pkg/platform/middleware/request"
	"github.com/millisami/flow-name-service/pkg/platform/middleware/requesttime"
)

const (
	eventBuffer   = 256
	tokenTTL      = 24 * time.Hour
	tokenIssuer   = "nameservice"
	tokenAudience = "nameservice"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal, cleanupJournal, err := buildJournal(ctx, cfg, log)
	if err != nil {
		log.Error("event journal setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanupJournal()

	sinks := []events.Sink{events.NewJournalSink(journal)}
	kafkaClient, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		log.Error("kafka setup failed", "error", err)
		os.Exit(1)
	}
	if kafkaClient != nil {
		defer kafkaClient.Close()
		sinks = append(sinks, events.NewKafkaSink(kafkaClient, cfg.Kafka.Topic))
		log.Info("kafka event sink enabled", "topic", cfg.Kafka.Topic)
	}
	worker := events.NewWorker(log, eventBuffer, sinks...)

	recordCache, cleanupCache, err := buildCache(cfg, log)
	if err != nil {
		log.Error("record cache setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanupCache()

	tokens := authtoken.NewJWTService(cfg.JWTSigningKey, tokenIssuer, tokenAudience, tokenTTL)
	svc := service.New(ctx, service.Config{
		MinRentDuration: cfg.MinRentDuration,
		MaxNameLength:   cfg.MaxNameLength,
		CacheTTL:        cfg.CacheTTL,
		Accounts:        accounts.NewInMemoryStore(),
		Cache:           recordCache,
		Events:          worker,
		Journal:         journal,
		Tokens:          tokens,
		Metrics:         namingmetrics.New(),
		Logger:          log,
		Tracer:          otel.Tracer("nameservice"),
	})

	router := chi.NewRouter()
	router.Use(request.Middleware)
	router.Use(requesttime.Middleware)
	namingHandler.New(svc, tokens, cfg.AdminToken, log).Register(router)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting name service", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// buildJournal picks the postgres-backed event journal when configured,
// falling back to the in-process store.
func buildJournal(ctx context.Context, cfg config.Server, log *slog.Logger) (events.Store, func(), error) {
	if cfg.Postgres.URL == "" {
		return events.NewInMemoryStore(), func() {}, nil
	}
	db, err := sql.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		return nil, nil, err
	}
	store := events.NewPostgres(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Info("postgres event journal enabled")
	return store, func() { _ = db.Close() }, nil
}

// buildCache picks the redis-backed record cache when configured, falling
// back to the in-process cache.
func buildCache(cfg config.Server, log *slog.Logger) (cache.RecordCache, func(), error) {
	client, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return cache.NewInMemoryCache(), func() {}, nil
	}
	log.Info("redis record cache enabled")
	return cache.NewRedisCache(client.Client), func() { _ = client.Close() }, nil
}

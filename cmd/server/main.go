// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
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

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"pollboard/internal/audit"
	"pollboard/internal/identity"
	"pollboard/internal/platform/config"
	"pollboard/internal/platform/httpserver"
	"pollboard/internal/platform/logger"
	platformredis "pollboard/internal/platform/redis"
	pollhandler "pollboard/internal/poll/handler"
	pollmetrics "pollboard/internal/poll/metrics"
	pollservice "pollboard/internal/poll/service"
	pollstore "pollboard/internal/poll/store"
	httptransport "pollboard/internal/transport/http"
	"pollboard/pkg/token"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var resolver identity.Resolver = identity.NewStaticResolver(nil)
	if redisClient != nil {
		resolver = identity.NewCachedResolver(resolver, redisClient.Client, cfg.Redis.ResolverTTL, log)
		log.Info("identity resolver cache enabled", "ttl", cfg.Redis.ResolverTTL)
	}

	auditor, closeAuditor, err := buildAuditor(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAuditor()

	tokens := token.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	svc := pollservice.New(store, resolver, auditor, pollmetrics.New(), log)
	handler := pollhandler.New(svc, log)
	router := httptransport.NewRouter(handler, tokens, log)

	srv := httpserver.New(cfg.Server.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting pollboard", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// buildStore selects Postgres when a DSN is configured and falls back to the
// in-memory store otherwise.
func buildStore(ctx context.Context, cfg config.Config, log *slog.Logger) (pollstore.Store, func(), error) {
	if cfg.DB.DSN == "" {
		log.Info("using in-memory poll store")
		return pollstore.NewInMemory(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DB.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	pg := pollstore.NewPostgres(db)
	if err := pg.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("using postgres poll store")
	return pg, func() { db.Close() }, nil
}

// buildAuditor selects the Kafka sink when brokers are configured and keeps
// an in-memory trail otherwise.
func buildAuditor(ctx context.Context, cfg config.Config, log *slog.Logger) (*audit.Publisher, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("using in-memory audit sink")
		auditor := audit.NewPublisher(audit.NewInMemorySink(), log, audit.WithAsyncBuffer(256))
		return auditor, auditor.Close, nil
	}

	sink, err := audit.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	log.Info("using kafka audit sink", "topic", cfg.Kafka.Topic)
	auditor := audit.NewPublisher(sink, log, audit.WithAsyncBuffer(256))
	return auditor, func() {
		auditor.Close()
		sink.Close()
	}, nil
}

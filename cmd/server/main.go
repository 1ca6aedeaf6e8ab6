package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"fecguard/internal/contribution/attestation"
	"fecguard/internal/contribution/handler"
	"fecguard/internal/contribution/metrics"
	"fecguard/internal/contribution/policy"
	"fecguard/internal/contribution/ports"
	"fecguard/internal/contribution/service/compliance"
	"fecguard/internal/contribution/service/limits"
	"fecguard/internal/contribution/service/projection"
	"fecguard/internal/contribution/settlement"
	"fecguard/internal/contribution/store/ledger"
	"fecguard/internal/platform/config"
	"fecguard/internal/platform/httpserver"
	"fecguard/internal/platform/logger"
	"fecguard/internal/platform/postgres"
	platformredis "fecguard/internal/platform/redis"
	audit "fecguard/pkg/platform/audit"
	auditkafka "fecguard/pkg/platform/audit/kafka"
	"fecguard/pkg/platform/audit/publisher"
	auditmemory "fecguard/pkg/platform/audit/store/memory"
)

// main wires stores, the settlement gateway, the audit pipeline, and the
// compliance services, then runs the HTTP server until a shutdown signal.
// Business rules live in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildLedgerStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	sink, closeSink, err := buildAuditSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSink()

	auditPublisher := publisher.NewPublisher(sink, publisher.WithLogger(log))
	defer auditPublisher.Close()

	pol := policy.Default(
		policy.WithCap(cfg.ContributionCap),
		policy.WithMinContribution(cfg.MinContribution),
		policy.WithPartialFinal(cfg.AllowPartialFinal),
	)

	checker, err := limits.New(store, pol, limits.WithLogger(log))
	if err != nil {
		return err
	}
	calculator, err := projection.New(pol, projection.WithLogger(log))
	if err != nil {
		return err
	}

	gateway, err := settlement.NewHTTPGateway(cfg.SettlementURL,
		settlement.WithLogger(log),
		settlement.WithTimeout(cfg.SettlementTimeout),
	)
	if err != nil {
		return err
	}

	svc, err := compliance.New(store, checker, calculator, pol, gateway,
		compliance.WithLogger(log),
		compliance.WithAuditPublisher(auditPublisher),
		compliance.WithMetrics(metrics.New()),
		compliance.WithAttestationVerifier(attestation.NewVerifier(cfg.AttestationKey, "kyc")),
	)
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	handler.New(svc, log).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting fecguard", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// buildLedgerStore selects the ledger backend: PostgreSQL when DATABASE_URL
// is set, Redis when REDIS_URL is set, in-memory otherwise.
func buildLedgerStore(ctx context.Context, cfg config.Server, log *slog.Logger) (ports.LedgerStore, func(), error) {
	noop := func() {}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if err := ledger.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, noop, err
		}
		log.Info("ledger store ready", "backend", "postgres")
		return ledger.NewPostgres(db), func() { db.Close() }, nil
	}

	if cfg.Redis.URL != "" {
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		log.Info("ledger store ready", "backend", "redis")
		return ledger.NewRedis(client.Client), func() { client.Close() }, nil
	}

	log.Warn("ledger store ready", "backend", "memory", "durability", "none")
	return ledger.NewInMemory(), noop, nil
}

// buildAuditSink selects the audit backend: Kafka when brokers are
// configured, in-memory otherwise.
func buildAuditSink(ctx context.Context, cfg config.Server, log *slog.Logger) (audit.Store, func(), error) {
	noop := func() {}

	if len(cfg.KafkaBrokers) > 0 {
		sink, err := auditkafka.NewSink(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return nil, noop, err
		}
		log.Info("audit sink ready", "backend", "kafka", "topic", cfg.AuditTopic)
		return sink, sink.Close, nil
	}

	log.Info("audit sink ready", "backend", "memory")
	return auditmemory.NewInMemoryStore(), noop, nil
}

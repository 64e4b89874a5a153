package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-hub/auth-service/internal/audit"
	"resume-hub/auth-service/internal/auth/gate"
	"resume-hub/auth-service/internal/auth/service"
	"resume-hub/auth-service/internal/clock"
	"resume-hub/auth-service/internal/config"
	"resume-hub/auth-service/internal/db"
	"resume-hub/auth-service/internal/security"
	"resume-hub/auth-service/internal/server"
	sessionrepo "resume-hub/auth-service/internal/session/repository"
	"resume-hub/auth-service/internal/telemetry"
	"resume-hub/auth-service/internal/telemetry/otel"
	"resume-hub/auth-service/internal/telemetry/producer"
	userrepo "resume-hub/auth-service/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	secret, err := security.LoadSecret(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("jwt secret: %v", err)
	}
	codec := security.NewTokenCodec(secret, cfg.JWTIssuer, cfg.JWTAudience)
	hasher := security.NewHasher(cfg.BcryptCost)
	clk := clock.System{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "resume-hub-auth", false)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	var (
		conn    *sql.DB
		users   userrepo.Directory
		store   sessionrepo.Store
		auditor audit.Recorder
		pinger  server.Pinger
	)
	if cfg.DatabaseURL != "" {
		conn, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer conn.Close()
		users = userrepo.NewPostgresDirectory(conn)
		store = sessionrepo.NewPostgresStore(conn)
		auditor = audit.NewLogger(audit.NewPostgresRepository(conn), nil)
		pinger = conn
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores (dev only)")
		users = userrepo.NewMemoryDirectory()
		store = sessionrepo.NewMemoryStore()
	}

	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	var events producer.Producer
	if kafkaProducer != nil {
		events = kafkaProducer
	}

	authSvc := service.NewAuthService(users, store, hasher, codec, clk, auditor, logger,
		cfg.AccessTTL(), cfg.RefreshTTL(), cfg.RememberMeTTL())
	authGate := gate.New(codec, store, users, clk)

	srv := server.New(cfg.HTTPAddr, server.Deps{
		Auth:     authSvc,
		Gate:     authGate,
		Sessions: store,
		Producer: events,
		Emitter:  otel.NewEventEmitter(providers.LoggerProvider),
		Pinger:   pinger,
		Logger:   logger,
		Meter:    providers.MeterProvider.Meter("resume-hub-auth"),
	})

	// Expired revocation entries are dead weight; sweep them periodically.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCtx, sweepCancel := context.WithTimeout(ctx, 30*time.Second)
				n, err := store.PurgeExpiredRevocations(sweepCtx, clk.Now())
				sweepCancel()
				if err != nil {
					logger.Warn("revocation sweep failed", "err", err)
				} else if n > 0 {
					logger.Info("revocation sweep", "purged", n)
				}
			}
		}
	}()

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	// Let in-flight async emits drain before providers go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaProducer != nil {
		_ = kafkaProducer.Close()
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Error("otel shutdown", "err", err)
	}
	logger.Info("stopped")
}

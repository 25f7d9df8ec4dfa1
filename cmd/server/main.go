package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agenthands/kindred/internal/auth"
	"github.com/agenthands/kindred/internal/config"
	"github.com/agenthands/kindred/internal/core"
	"github.com/agenthands/kindred/internal/core/idempotency"
	"github.com/agenthands/kindred/internal/core/kinship"
	"github.com/agenthands/kindred/internal/driver"
	"github.com/agenthands/kindred/internal/events"
	"github.com/agenthands/kindred/internal/logging"
	"github.com/agenthands/kindred/internal/metrics"
	"github.com/agenthands/kindred/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Environment, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := driver.NewNeo4jStore(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	if err := store.BuildIndices(ctx); err != nil {
		logger.Warn("schema bootstrap incomplete", zap.Error(err))
	}

	durable, closeDurable, err := openDurable(cfg, store)
	if err != nil {
		return err
	}
	defer closeDurable()

	idem := idempotency.NewStore(durable, idempotency.Options{
		TTL:        cfg.IdempotencyTTL(),
		LocalCache: cfg.Idempotency.LocalCache,
		Logger:     logger,
	})

	admin := auth.NewGraphFamilyAdmin(store)
	hub := events.NewHub(auth.MemberJoinPolicy(admin), logger)
	go hub.Run(ctx)

	var emitter events.Emitter = hub
	if cfg.NATS.URL != "" {
		nc, err := events.ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		emitter = events.Multi{hub, nc}
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("JWT_SECRET not set, using an ephemeral signing key")
	}
	tokens := auth.NewTokenService([]byte(secret), cfg.Auth.Issuer, cfg.TokenTTL())

	m := metrics.New()
	relations := core.NewRelations(core.Deps{
		Store:       store,
		Engine:      kinship.NewEngine(kinship.BcryptHasher{Cost: cfg.Auth.BcryptRounds}, logger),
		Idempotency: idem,
		Emitter:     emitter,
		Admin:       admin,
		Metrics:     m,
		Logger:      logger,
		RelationLog: cfg.Logging.RelationLog,
	})

	srv := server.NewServer(relations, hub, tokens, m, logger)
	httpSrv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.SetupRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port), zap.String("environment", cfg.Server.Environment))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func openDurable(cfg *config.Config, store *driver.Neo4jStore) (idempotency.Durable, func(), error) {
	if cfg.Idempotency.Backend != config.BackendSQLite {
		return idempotency.NewNeo4jDurable(store), func() {}, nil
	}

	if dir := filepath.Dir(cfg.Idempotency.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	d, err := idempotency.OpenSQLite(cfg.Idempotency.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return d, func() { d.Close() }, nil
}

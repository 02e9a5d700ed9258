// authserver es el authorization server: expone el token endpoint OAuth2
// sobre el Token Generation Index, con rate limiting por organización y
// auditoría obligatoria de cada token emitido.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"

	"github.com/pagopa/interop-token-platform/internal/app"
	"github.com/pagopa/interop-token-platform/internal/audit"
	"github.com/pagopa/interop-token-platform/internal/bus"
	"github.com/pagopa/interop-token-platform/internal/config"
	httpserver "github.com/pagopa/interop-token-platform/internal/http"
	"github.com/pagopa/interop-token-platform/internal/http/handlers"
	"github.com/pagopa/interop-token-platform/internal/kvstore"
	kvmemory "github.com/pagopa/interop-token-platform/internal/kvstore/memory"
	kvpg "github.com/pagopa/interop-token-platform/internal/kvstore/pg"
	"github.com/pagopa/interop-token-platform/internal/metrics"
	"github.com/pagopa/interop-token-platform/internal/objectstore"
	"github.com/pagopa/interop-token-platform/internal/observability/logger"
	"github.com/pagopa/interop-token-platform/internal/rate"
	"github.com/pagopa/interop-token-platform/internal/signer"
	"github.com/pagopa/interop-token-platform/internal/token"
	"github.com/pagopa/interop-token-platform/internal/tokengenstate"
)

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "authserver:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       os.Getenv("LOG_LEVEL"),
		ServiceName: "authserver",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("authserver")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─────────────── storage ───────────────
	var (
		kv    kvstore.Client
		ready func(context.Context) error
	)
	switch cfg.Storage.Driver {
	case "postgres":
		pgStore, err := kvpg.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pgStore.Close()
		if err := pgStore.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		kv = pgStore
		ready = pgStore.Ping
	default:
		kv = kvmemory.New()
	}
	states := tokengenstate.New(kv)

	// ─────────────── redis (rate + audit bus) ───────────────
	needsRedis := cfg.Rate.Backend == "redis"
	var redisClient *rdb.Client
	if needsRedis || cfg.Redis.Addr != "" {
		redisClient = rdb.NewClient(&rdb.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		defer func() { _ = redisClient.Close() }()
	}

	rateCfg := rate.Config{MaxRequests: cfg.Rate.MaxRequests, RateInterval: cfg.RateInterval()}
	var limiter rate.Limiter
	if cfg.Rate.Backend == "redis" {
		limiter = rate.NewRedisLimiter(redisClient, cfg.Redis.Prefix, rateCfg)
	} else {
		limiter = rate.NewMemoryLimiter(rateCfg)
	}

	// ─────────────── auditoría ───────────────
	publisher := bus.NewRedisPublisher(redisClient, cfg.Audit.Stream)
	fallback := objectstore.NewFSStore(cfg.Audit.FallbackDir)
	auditor := audit.NewWriter(publisher, fallback, logger.Named("audit"))

	// ─────────────── signer ───────────────
	sgn, err := loadSigner(cfg)
	if err != nil {
		return fmt.Errorf("signer: %w", err)
	}

	svc := token.NewService(states, limiter, auditor, sgn, token.Config{
		Issuer:            cfg.Token.Issuer,
		AcceptedAudiences: cfg.Token.AcceptedAudiences,
		APITokenAudience:  cfg.Token.APIAudience,
		APITokenDuration:  cfg.APITokenDuration(),
	}, logger.Named("token"))

	if err := metrics.Register(nil); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	c := &app.Container{TokenSvc: svc, Ready: ready}
	router := httpserver.NewRouter(httpserver.TokenRoutes{
		Token:   handlers.NewTokenHandler(c),
		Healthz: handlers.NewHealthzHandler(),
		Readyz:  handlers.NewReadyzHandler(c),
	})

	log.Info("listening",
		logger.String("addr", cfg.Server.Addr),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("rate_backend", cfg.Rate.Backend))

	return httpserver.Start(ctx, cfg.Server.Addr, router)
}

// loadSigner carga la clave de firma local, o genera una efímera en dev.
func loadSigner(cfg *config.Config) (signer.Signer, error) {
	if cfg.Signer.KeyPath != "" {
		return signer.LoadLocalSigner(cfg.Signer.KID, cfg.Signer.KeyPath)
	}
	if cfg.App.Env == "prod" {
		return nil, fmt.Errorf("signer.key_path es obligatorio en prod")
	}
	return signer.GenerateLocalSigner(cfg.Signer.KID)
}

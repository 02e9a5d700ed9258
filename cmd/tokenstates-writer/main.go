// tokenstates-writer consume los eventos de dominio (agreement, catalog,
// purpose) y mantiene el Platform State Store y el Token Generation Index.
// Cada dominio corre como subcomando; `all` levanta los tres en paralelo.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pagopa/interop-token-platform/internal/config"
	"github.com/pagopa/interop-token-platform/internal/consumer"
	"github.com/pagopa/interop-token-platform/internal/kvstore"
	kvmemory "github.com/pagopa/interop-token-platform/internal/kvstore/memory"
	kvpg "github.com/pagopa/interop-token-platform/internal/kvstore/pg"
	"github.com/pagopa/interop-token-platform/internal/observability/logger"
	"github.com/pagopa/interop-token-platform/internal/platformstate"
	"github.com/pagopa/interop-token-platform/internal/tokengenstate"
	"github.com/pagopa/interop-token-platform/internal/writers"
)

type deps struct {
	cfg      *config.Config
	redis    *rdb.Client
	platform *platformstate.Store
	tokens   *tokengenstate.Store
	close    func()
}

func main() {
	_ = godotenv.Load()

	var configPath string

	root := &cobra.Command{
		Use:          "tokenstates-writer",
		Short:        "Writer consumers del token generation index",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "ruta del config yaml")

	domains := map[string]struct {
		stream func(*config.Config) string
		build  func(d *deps) consumer.Handler
	}{
		"agreement": {
			stream: func(c *config.Config) string { return c.Consumer.AgreementStream },
			build: func(d *deps) consumer.Handler {
				return writers.NewAgreementWriter(d.platform, d.tokens, logger.Named("agreement-writer"))
			},
		},
		"catalog": {
			stream: func(c *config.Config) string { return c.Consumer.CatalogStream },
			build: func(d *deps) consumer.Handler {
				return writers.NewCatalogWriter(d.platform, d.tokens, logger.Named("catalog-writer"))
			},
		},
		"purpose": {
			stream: func(c *config.Config) string { return c.Consumer.PurposeStream },
			build: func(d *deps) consumer.Handler {
				return writers.NewPurposeWriter(d.platform, d.tokens, logger.Named("purpose-writer"))
			},
		},
	}

	for name, dom := range domains {
		root.AddCommand(&cobra.Command{
			Use:   name,
			Short: fmt.Sprintf("Consume el stream de eventos de %s", name),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDeps(configPath, func(ctx context.Context, d *deps) error {
					return runDomain(ctx, d, dom.stream(d.cfg), dom.build(d))
				})
			},
		})
	}

	root.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Consume los tres streams en paralelo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(configPath, func(ctx context.Context, d *deps) error {
				g, gctx := errgroup.WithContext(ctx)
				for _, dom := range domains {
					stream, build := dom.stream(d.cfg), dom.build
					g.Go(func() error { return runDomain(gctx, d, stream, build(d)) })
				}
				return g.Wait()
			})
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// withDeps arma el wiring común (config, logger, storage, redis) y ejecuta
// fn hasta SIGINT/SIGTERM.
func withDeps(configPath string, fn func(ctx context.Context, d *deps) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       os.Getenv("LOG_LEVEL"),
		ServiceName: "tokenstates-writer",
	})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var kv kvstore.Client
	var closeStorage func()
	switch cfg.Storage.Driver {
	case "postgres":
		pgStore, err := kvpg.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := pgStore.Migrate(ctx); err != nil {
			pgStore.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		kv = pgStore
		closeStorage = pgStore.Close
	default:
		kv = kvmemory.New()
	}

	redisClient := rdb.NewClient(&rdb.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})

	d := &deps{
		cfg:      cfg,
		redis:    redisClient,
		platform: platformstate.New(kv),
		tokens:   tokengenstate.New(kv),
		close: func() {
			_ = redisClient.Close()
			if closeStorage != nil {
				closeStorage()
			}
		},
	}
	defer d.close()

	err = fn(ctx, d)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runDomain(ctx context.Context, d *deps, stream string, handler consumer.Handler) error {
	hostname, _ := os.Hostname()
	consumerName := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	source, err := consumer.NewRedisSource(ctx, d.redis, stream, d.cfg.Consumer.Group, consumerName)
	if err != nil {
		return fmt.Errorf("source %s: %w", stream, err)
	}

	log := logger.Named("runner").With(logger.String("stream", stream))
	log.Info("consuming")

	runner := consumer.NewRunner(source, handler, d.cfg.Consumer.Workers, log)
	return runner.Run(ctx)
}

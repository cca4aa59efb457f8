package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"changanet/internal/app"
	"changanet/internal/config"
	cacheAdapter "changanet/internal/infrastructure/cache/adapter"
	"changanet/internal/infrastructure/database"
	"changanet/internal/infrastructure/logger"
	queueAdapter "changanet/internal/infrastructure/queue/adapter"
	"changanet/internal/pkg/chat/application/task"
	chatRepo "changanet/internal/pkg/chat/persistence/repository/adapter"
	userRepo "changanet/internal/repository/adapter"
)

// startupLogger reports failures that happen before the configured logger exists.
func startupLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

func main() {
	// Load .env file; a missing file is fine
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := startupLogger(os.Stderr)
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg)
	if envErr != nil {
		log.Debug().Err(envErr).Msg(".env file not loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("chat service stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	infra := app.Infra{Checks: map[string]func(context.Context) error{}}

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := database.Connect(connectCtx, database.Config{
			DSN:             cfg.DatabaseURL,
			MaxConns:        cfg.DBMaxConns,
			MaxConnLifetime: cfg.DBConnLifetime,
			MaxConnIdleTime: cfg.DBConnIdleTime,
		})
		cancel()
		if err != nil {
			return err
		}
		defer pool.Close()

		if cfg.RunMigrations {
			if err := database.Migrate(ctx, pool, log); err != nil {
				return err
			}
		}
		users, err := userRepo.NewPgUserRepository(pool, cfg.UsersTable)
		if err != nil {
			return err
		}
		infra.Repo = chatRepo.NewPgChatRepository(pool)
		infra.Users = users
		infra.Checks["postgres"] = pool.Ping
	default:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		users := userRepo.NewMemoryUserRepository()
		users.AcceptAll = cfg.DevAcceptAllUsers
		infra.Repo = chatRepo.NewMemoryChatRepository()
		infra.Users = users
	}

	var worker *queueAdapter.AsynqServer
	if cfg.RedisURL != "" {
		cache, err := cacheAdapter.NewRedisAdapter(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer cache.Close()
		infra.Cache = cache
		infra.Checks["redis"] = cache.Ping

		client, err := queueAdapter.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		infra.Queue = client

		worker, err = queueAdapter.NewAsynqServer(queueAdapter.ServerConfig{
			RedisURL:    cfg.RedisURL,
			Concurrency: cfg.AsynqConcurrency,
			Queues:      cfg.AsynqQueues,
		}, log)
		if err != nil {
			return err
		}
	} else {
		log.Info().Msg("REDIS_URL not set, using process-local rate limits and inline delivery marks")
		infra.Cache = cacheAdapter.NewMemoryCache()
	}

	service := app.New(cfg, infra, log)
	if worker != nil {
		task.RegisterMarkDeliveredTask(worker, service.MarkDelivered, log)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           service.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if worker != nil {
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		// websockets are hijacked, so Shutdown does not wait for them
		service.Close()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

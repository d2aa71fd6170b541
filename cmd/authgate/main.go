// Command authgate runs the authentication broker: the HTTP API, the
// Redis-backed session store, the Postgres application registry and the
// session expiry sweeper.
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

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/authgate/internal/httpapi"
	"github.com/dmitrymomot/authgate/internal/provider"
	"github.com/dmitrymomot/authgate/internal/store/pgstore"
	"github.com/dmitrymomot/authgate/internal/store/redisstore"
	"github.com/dmitrymomot/authgate/internal/sweeper"
	"github.com/dmitrymomot/authgate/pkg/db"
	"github.com/dmitrymomot/authgate/pkg/dispatch"
	"github.com/dmitrymomot/authgate/pkg/health"
	"github.com/dmitrymomot/authgate/pkg/logger"
	"github.com/dmitrymomot/authgate/pkg/redis"
)

type config struct {
	Addr            string        `env:"ADDR" envDefault:":7080"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	SweepSchedule   string        `env:"SWEEP_SCHEDULE" envDefault:"@every 30s"`

	Database  db.Config
	Redis     redis.Config
	HTTP      httpapi.Config
	Providers provider.Config
	Sentry    logger.SentryConfig
}

func main() {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		slog.Error("config parse failed", "error", err)
		os.Exit(1)
	}

	log := logger.NewWithSentry(cfg.Sentry, requestIDAttr)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("broker exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, log *slog.Logger) error {
	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Shutdown(pool)(context.Background())

	if err := pgstore.Migrate(ctx, pool, cfg.Database.MigrationsTable, log); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redis.Shutdown(redisClient)(context.Background())

	sessions := redisstore.New(redisClient)
	apps := pgstore.New(pool)
	registry := buildRegistry(cfg.Providers, log)

	api := httpapi.New(sessions, apps, registry, cfg.HTTP, log)
	endpoints := dispatch.New(
		dispatch.WithTimeout(cfg.RequestTimeout),
		dispatch.WithLogger(log),
	)
	api.Register(endpoints)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", health.LivenessHandler())
	router.Get("/readyz", health.ReadinessHandler(health.Checks{
		"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
		"redis":    redis.Healthcheck(redisClient),
	}))
	router.Handle("/*", endpoints)

	sweep := sweeper.New(sessions,
		sweeper.WithLogger(log),
		sweeper.WithSchedule(cfg.SweepSchedule),
	)
	if err := sweep.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(ctx, "broker listening",
			slog.String("addr", cfg.Addr),
			slog.Int("methods", len(registry.Methods())),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := sweep.Stop(shutdownCtx); err != nil && !errors.Is(err, sweeper.ErrNotStarted) {
			log.Warn("sweeper stop failed", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildRegistry assembles the login methods that have credentials set.
// Running with a partial set is normal in development, so missing
// credentials are logged and skipped rather than fatal.
func buildRegistry(cfg provider.Config, log *slog.Logger) *provider.Registry {
	var providers []provider.Provider

	add := func(name string, p provider.Provider, err error) {
		if err != nil {
			if errors.Is(err, provider.ErrMissingCredentials) {
				log.Warn("login method not configured", slog.String("method", name))
				return
			}
			log.Error("login method init failed", slog.String("method", name), "error", err)
			return
		}
		providers = append(providers, p)
	}

	discord, err := provider.NewDiscord(cfg.Discord)
	add("discord", discord, err)
	github, err := provider.NewGitHub(cfg.GitHub)
	add("github", github, err)
	members, err := provider.NewMembers(cfg.Members, cfg.MembersDomain)
	add("members", members, err)
	wilmaplus, err := provider.NewWilmaPlus(cfg.WilmaPlus)
	add("wilmaplus", wilmaplus, err)
	twitter, err := provider.NewTwitter(cfg.Twitter)
	add("twitter", twitter, err)

	return provider.NewRegistry(providers...)
}

// requestIDAttr surfaces the chi request id on every log line.
func requestIDAttr(ctx context.Context) (slog.Attr, bool) {
	if id := middleware.GetReqID(ctx); id != "" {
		return slog.String("request_id", id), true
	}
	return slog.Attr{}, false
}

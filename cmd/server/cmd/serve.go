package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Togather-Foundation/graphevents/internal/api"
	"github.com/Togather-Foundation/graphevents/internal/api/handlers"
	"github.com/Togather-Foundation/graphevents/internal/api/middleware"
	"github.com/Togather-Foundation/graphevents/internal/api/render"
	"github.com/Togather-Foundation/graphevents/internal/auth"
	"github.com/Togather-Foundation/graphevents/internal/cache"
	"github.com/Togather-Foundation/graphevents/internal/config"
	"github.com/Togather-Foundation/graphevents/internal/domain/events"
	"github.com/Togather-Foundation/graphevents/internal/jobs"
	"github.com/Togather-Foundation/graphevents/internal/metrics"
	"github.com/Togather-Foundation/graphevents/internal/storage/postgres"
	"github.com/Togather-Foundation/graphevents/internal/telemetry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	host    string
	port    int
	migrate bool
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and the retention sweep worker.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Serve the HTML listing, the JSON/JSONP data API and the write endpoints
- Schedule the periodic retention sweep when RETENTION_ENABLED is true
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Apply migrations before serving
  server serve --migrate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "server port (default: 8080)")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply database migrations before serving")
	return cmd
}

func runServer(ctx context.Context, global *globalOptions, opts *serveOptions) error {
	cfg, err := global.loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting graphevents")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	if opts.migrate {
		if err := postgres.MigrateUp(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			return err
		}
		logger.Info().Msg("database migrations applied")
	}

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	registerCollector(metrics.NewPoolCollector(pool), logger)

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}
	service := events.NewService(repo.Events(), logger, events.ListingConfig{
		PerPage:   cfg.Events.PerPage,
		PageLinks: cfg.Events.PageLinks,
	})

	health := handlers.NewHealthChecker(Version, GitCommit)
	health.Register("database", true, repo.Ping)

	var pageCache cache.Store
	redisStore, err := cache.NewRedisStore(ctx, cfg.Redis)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("page cache unavailable; serving listings uncached")
	case redisStore != nil:
		pageCache = redisStore
		health.Register("cache", false, redisStore.Health)
		defer func() { _ = redisStore.Close() }()
		logger.Info().Dur("ttl", cfg.Events.CacheTTL).Msg("page cache enabled")
	}

	var jwtManager *auth.JWTManager
	if cfg.Auth.JWTSecret != "" {
		jwtManager = auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	} else {
		logger.Warn().Msg("JWT_SECRET not set; write endpoints are open")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.ReadPerMinute, cfg.RateLimit.WritePerMinute)

	riverClient, err := newRiverClient(ctx, cfg, pool, service)
	if err != nil {
		return err
	}
	if riverClient != nil {
		health.Register("job_queue", false, func(ctx context.Context) error {
			_, err := riverClient.JobList(ctx, river.NewJobListParams().First(1))
			return err
		})
	}

	renderer, err := render.New()
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewRouter(api.Dependencies{
			Config:      cfg,
			Logger:      logger,
			Service:     service,
			Renderer:    renderer,
			Health:      health,
			PageCache:   pageCache,
			JWT:         jwtManager,
			RateLimiter: limiter,
			Build:       api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate},
		}),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		limiter.Run(groupCtx)
		return nil
	})

	if riverClient != nil {
		// River stops itself when its start context ends, so it gets one
		// that outlives the signal and is stopped explicitly below.
		riverCtx, riverCancel := context.WithCancel(context.WithoutCancel(ctx))
		defer riverCancel()
		if err := riverClient.Start(riverCtx); err != nil {
			return fmt.Errorf("river workers failed to start: %w", err)
		}
		logger.Info().Dur("interval", cfg.Retention.Interval).Int("keep_days", cfg.Retention.KeepDays).Msg("retention sweep scheduled")
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info().Msg("shutting down")

		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if riverClient != nil {
			if err := riverClient.Stop(stopCtx); err != nil {
				errs = append(errs, fmt.Errorf("river shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newRiverClient builds the job client running the retention sweep, or nil
// when retention is disabled.
func newRiverClient(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, service *events.Service) (*river.Client[pgx.Tx], error) {
	if !cfg.Retention.Enabled {
		return nil, nil
	}

	if err := jobs.MigrateRiver(ctx, pool); err != nil {
		return nil, err
	}

	slogger := config.NewSlogLogger(cfg.Logging)
	policy := jobs.NewRetryPolicy(cfg.Retention.MaxAttempts)

	workers, err := jobs.NewWorkers(jobs.RetentionSweepWorker{
		Sweeper:  service,
		KeepDays: cfg.Retention.KeepDays,
		Logger:   slogger,
	})
	if err != nil {
		return nil, fmt.Errorf("register workers: %w", err)
	}

	client, err := jobs.NewClient(pool, jobs.ClientOptions{
		Workers:      workers,
		Logger:       slogger,
		Hooks:        []rivertype.Hook{metrics.NewRiverMetricsHook()},
		PeriodicJobs: jobs.NewPeriodicJobs(cfg.Retention.Interval, policy),
		Retry:        policy,
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return client, nil
}

func registerCollector(collector prometheus.Collector, logger zerolog.Logger) {
	if err := metrics.Registry.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			logger.Warn().Err(err).Msg("metrics collector not registered")
		}
	}
}

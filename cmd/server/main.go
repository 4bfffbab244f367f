package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"courtmatch/internal/audit"
	"courtmatch/internal/auth"
	"courtmatch/internal/config"
	"courtmatch/internal/db"
	"courtmatch/internal/eventbus"
	"courtmatch/internal/handlers"
	"courtmatch/internal/logging"
	"courtmatch/internal/metrics"
	"courtmatch/internal/middleware"
	"courtmatch/internal/services"
	"courtmatch/internal/store"
	"courtmatch/internal/store/memstore"
)

func main() {
	// Load configuration
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("Failed to load config")
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Pretty)
	logger.Info().Str("env", cfg.Environment).Str("storage", cfg.Storage.Driver).Msg("Starting courtmatch server")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server exited with error")
	}
	logger.Info().Msg("Server stopped")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.New()
	hub := handlers.NewHub(logger)

	var (
		st         store.Store
		health     handlers.Pinger
		publishers services.Publishers
		bus        *eventbus.EventBus
	)

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn().Msg("Using in-memory storage; state is lost on restart")
		st = memstore.New()
		bus = eventbus.New(nil, hub.Deliver, logger)
		publishers = services.Publishers{bus}

	default:
		mongodb, err := db.NewMongoDB(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database, logger)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongodb.Close(closeCtx); err != nil {
				logger.Warn().Err(err).Msg("Failed to disconnect from MongoDB")
			}
		}()
		logger.Info().Str("database", cfg.MongoDB.Database).Msg("Connected to MongoDB")

		if err := mongodb.EnsureIndexes(ctx); err != nil {
			return err
		}

		auditLog := audit.NewLog(mongodb.AuditLog(), logger)
		defer auditLog.Flush()

		st = db.NewStore(mongodb)
		health = mongodb
		bus = eventbus.New(mongodb.MatchEvents(), hub.Deliver, logger)
		publishers = services.Publishers{bus, auditLog}
	}

	bus.Start()
	defer bus.Stop()

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithPublisher(publishers),
		services.WithMetrics(recorder),
	}
	coordinator := services.NewCoordinator(st, opts...)
	requests := services.NewRequestService(st, cfg.Requests.TTL.Duration, opts...)
	bookings := services.NewBookingGuard(st, opts...)

	if cfg.Sweeper.Enabled {
		sweeper := services.NewExpirySweeper(st, services.SweeperConfig{
			Interval:        cfg.Sweeper.Interval.Duration,
			LockTTL:         cfg.Sweeper.LockTTL.Duration,
			RetryMaxElapsed: cfg.Sweeper.RetryMaxElapsed.Duration,
		}, opts...)
		scheduler, err := sweeper.StartScheduler(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := scheduler.Stop(); err != nil {
				logger.Warn().Err(err).Msg("Expiry sweeper shutdown error")
			}
		}()
	}

	jwtService := auth.NewJWTService(cfg.JWT.AccessSecret, cfg.JWT.Issuer)
	router := handlers.NewRouter(handlers.RouterConfig{
		Coordinator:    coordinator,
		Requests:       requests,
		Bookings:       bookings,
		Hub:            hub,
		Auth:           middleware.NewAuthMiddleware(jwtService),
		RateLimiter:    middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute),
		Metrics:        recorder.Handler(),
		Health:         health,
		AllowedOrigins: []string{cfg.Frontend.URL},
	})

	// CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.Frontend.URL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      middleware.RequestLogger(logger)(middleware.SecurityHeaders(corsHandler.Handler(router))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

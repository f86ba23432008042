package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	httptransport "github.com/salafacil/salafacil/internal/http"
	"github.com/salafacil/salafacil/internal/metrics"
)

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	if cfg.HasNeonAPIKey() {
		logger.InfoContext(ctx, "neon api key configured")
	} else {
		logger.InfoContext(ctx, "neon api key not configured")
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	m := metrics.New()
	publisher, closeEvents := openEvents(ctx, cfg, logger)
	defer func() {
		if cerr := closeEvents(); cerr != nil {
			logger.Error("failed to close event publisher", "error", cerr)
		}
	}()

	services, err := buildServices(cfg, store, logger, serviceOptions{
		events:  countingPublisher{next: publisher, metrics: m},
		metrics: m,
	})
	if err != nil {
		return err
	}

	var limiter redis.Scripter
	if cfg.RateLimit.Enabled && cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if perr := rdb.Ping(pingCtx).Err(); perr != nil {
			logger.WarnContext(ctx, "redis unreachable; rate limiting fails open until it recovers", "addr", cfg.Redis.Addr, "error", perr)
		}
		cancel()
		limiter = rdb
	}

	expose := cfg.ExposeErrorDetails
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth: httptransport.NewAuthHandler(services.Auth, httptransport.AuthHandlerOptions{
			DemoFallback:  cfg.DemoFallback,
			ExposeDetails: expose,
		}, logger),
		Rooms:        httptransport.NewRoomHandler(services.Rooms, services.Reservations, expose, logger),
		Reservations: httptransport.NewReservationHandler(services.Reservations, expose, logger),
		Users:        httptransport.NewUserHandler(services.Users, expose, logger),
		Directory:    httptransport.NewDirectoryHandler(services.Departments, services.Locations, expose, logger),
		Admin:        httptransport.NewAdminHandler(services.Notifications, services.Stats, expose, logger),
		Validator:    services.Auth,
		Health:       store.health,
		Metrics:      m.Handler(),
		AuthMiddleware: []func(http.Handler) http.Handler{
			httptransport.RateLimit(httptransport.RateLimitConfig{
				Capacity:       cfg.RateLimit.Capacity,
				RefillTokens:   cfg.RateLimit.RefillTokens,
				RefillInterval: cfg.RateLimit.RefillInterval,
				TTL:            cfg.RateLimit.TTL,
				Prefix:         cfg.RateLimit.Prefix,
			}, limiter, m, logger),
		},
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Metrics(m),
			httptransport.CORS(cfg.CORSAllowedOrigin),
		},
		Logger: logger,
	})

	updaterCtx, stopUpdater := context.WithCancel(ctx)
	defer stopUpdater()
	go services.StatusUpdater.Run(updaterCtx, cfg.StatusSweep)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.InfoContext(ctx, "salafacil API listening", "addr", server.Addr, "driver", cfg.DatabaseDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("salafacil API stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/salafacil/salafacil/internal/application"
	"github.com/salafacil/salafacil/internal/bootstrap"
	"github.com/salafacil/salafacil/internal/config"
	"github.com/salafacil/salafacil/internal/events"
	"github.com/salafacil/salafacil/internal/googleauth"
	"github.com/salafacil/salafacil/internal/metrics"
	"github.com/salafacil/salafacil/internal/persistence"
	"github.com/salafacil/salafacil/internal/persistence/memory"
	"github.com/salafacil/salafacil/internal/persistence/sqlstore"
	"github.com/salafacil/salafacil/internal/scheduler"
)

// storage is an opened store plus its readiness probe.
type storage struct {
	persistence.Store
	health func(ctx context.Context) error
}

// openStorage opens and migrates the store selected by DATABASE_DRIVER.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.DatabaseDriver {
	case config.DriverMemory:
		logger.WarnContext(ctx, "using in-memory storage; data is lost on restart")
		return storage{Store: memory.New()}, nil
	case config.DriverPostgres, config.DriverSQLite:
		store, err := sqlstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return storage{}, err
		}
		if err := sqlstore.MigrateUp(ctx, store.DB(), store.Dialect(), logger); err != nil {
			_ = store.Close()
			return storage{}, err
		}
		return storage{Store: store, health: store.Ping}, nil
	default:
		return storage{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

// serviceOptions carries the optional collaborators of buildServices.
type serviceOptions struct {
	events  application.EventPublisher
	metrics *metrics.Metrics
}

func buildServices(cfg config.Config, store persistence.Store, logger *slog.Logger, opts serviceOptions) (*bootstrap.Services, error) {
	rule := scheduler.RuleInclusive
	if !cfg.TouchingConflicts {
		rule = scheduler.RuleHalfOpen
	}

	deps := bootstrap.Deps{
		Store:        store,
		IDGenerator:  uuid.NewString,
		Now:          time.Now,
		Logger:       logger,
		JWTSecret:    cfg.JWTSecret,
		AccessTTL:    cfg.AccessTokenTTL,
		RefreshTTL:   cfg.RefreshTokenTTL,
		LegacyTokens: cfg.AcceptLegacyTokens,
		Events:       opts.events,
		OverlapRule:  rule,
		StartWindow:  cfg.StatusStartWindow,
		// Without GOOGLE_CLIENT_ID the audience is not checked.
		Google:       googleauth.NewVerifier(&http.Client{Timeout: 10 * time.Second}, cfg.GoogleTokenInfoURL, cfg.GoogleClientID),
	}
	if opts.metrics != nil {
		deps.OnTransition = opts.metrics.ObserveTransition
	}
	return bootstrap.NewServices(deps)
}

// openEvents dials the broker when AMQP_URL is set and otherwise logs events.
// A broker that cannot be reached degrades to logging.
func openEvents(ctx context.Context, cfg config.Config, logger *slog.Logger) (application.EventPublisher, func() error) {
	noop := func() error { return nil }
	if cfg.AMQP.URL == "" {
		return events.NewLogPublisher(logger), noop
	}
	publisher, err := events.Dial(cfg.AMQP.URL, cfg.AMQP.Queue, logger)
	if err != nil {
		logger.WarnContext(ctx, "event broker unavailable; logging events instead", "error", err)
		return events.NewLogPublisher(logger), noop
	}
	logger.InfoContext(ctx, "publishing reservation events", "queue", cfg.AMQP.Queue)
	return publisher, publisher.Close
}

// countingPublisher counts failed deliveries.
type countingPublisher struct {
	next    application.EventPublisher
	metrics *metrics.Metrics
}

func (p countingPublisher) PublishReservationEvent(ctx context.Context, event application.ReservationEvent) error {
	err := p.next.PublishReservationEvent(ctx, event)
	if err != nil {
		p.metrics.ObservePublishFailure()
	}
	return err
}

// Package bootstrap assembles the application services on top of a persistence store.
package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/salafacil/salafacil/internal/application"
	"github.com/salafacil/salafacil/internal/persistence"
	"github.com/salafacil/salafacil/internal/scheduler"
)

// Deps lists everything NewServices needs. Optional fields may be left zero.
type Deps struct {
	Store          persistence.Store
	IDGenerator    func() string
	TokenGenerator func() string
	Now            func() time.Time
	Logger         *slog.Logger

	JWTSecret    string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	LegacyTokens bool
	Google       application.GoogleVerifier

	Events       application.EventPublisher
	OverlapRule  scheduler.OverlapRule
	StartWindow  time.Duration
	OnTransition application.TransitionHook
}

// Services groups the application services exposed to transports.
type Services struct {
	Auth          *application.AuthService
	Users         *application.UserService
	Departments   *application.DepartmentService
	Locations     *application.LocationService
	Rooms         *application.RoomService
	Reservations  *application.ReservationService
	Notifications *application.NotificationService
	Stats         *application.StatsService
	StatusUpdater *application.StatusUpdater
}

// NewServices wires every service to the store through the repository adapters.
func NewServices(deps Deps) (*Services, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("bootstrap: store is required")
	}
	if deps.IDGenerator == nil {
		return nil, fmt.Errorf("bootstrap: id generator is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	users := newUserRepositoryAdapter(deps.Store)
	audit := &auditAdapter{repo: deps.Store}
	reservations := &reservationRepositoryAdapter{repo: deps.Store}
	rooms := &roomRepositoryAdapter{repo: deps.Store}
	locations := &locationRepositoryAdapter{repo: deps.Store}

	tokens := application.NewTokenIssuer(deps.JWTSecret, deps.AccessTTL, now)
	auth := application.NewAuthServiceWithLogger(users, &sessionRepositoryAdapter{repo: deps.Store}, tokens, deps.IDGenerator, now, deps.RefreshTTL, logger).
		WithLegacyTokens(deps.LegacyTokens)
	if deps.Google != nil {
		auth = auth.WithGoogleVerifier(deps.Google)
	}
	if deps.TokenGenerator != nil {
		auth = auth.WithTokenGenerator(deps.TokenGenerator)
	}

	notifications := application.NewNotificationServiceWithLogger(&notificationRepositoryAdapter{repo: deps.Store}, users, audit, deps.IDGenerator, now, logger)
	// Owners hear about their reservations in-app whether or not a broker is set.
	events := application.FanOut(deps.Events, application.NewReservationNotifier(notifications, logger))

	reservationService := application.NewReservationServiceWithLogger(reservations, rooms, deps.IDGenerator, now, logger).
		WithOverlapRule(deps.OverlapRule).
		WithRoomCatalog(rooms)
	updater := application.NewStatusUpdater(reservations, deps.StartWindow, now, logger).
		WithEvents(events)
	reservationService = reservationService.WithEvents(events)
	if deps.OnTransition != nil {
		updater = updater.OnTransition(deps.OnTransition)
	}

	return &Services{
		Auth:          auth,
		Users:         application.NewUserServiceWithLogger(users, audit, deps.IDGenerator, now, logger),
		Departments:   application.NewDepartmentServiceWithLogger(&departmentRepositoryAdapter{repo: deps.Store}, deps.IDGenerator, now, logger),
		Locations:     application.NewLocationServiceWithLogger(locations, deps.IDGenerator, now, logger),
		Rooms:         application.NewRoomServiceWithLogger(rooms, locations, deps.IDGenerator, now, logger).WithNotifier(notifications),
		Reservations:  reservationService,
		Notifications: notifications,
		Stats:         application.NewStatsServiceWithLogger(&statsRepositoryAdapter{store: deps.Store}, audit, now, logger),
		StatusUpdater: updater,
	}, nil
}

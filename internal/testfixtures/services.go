package testfixtures

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/salafacil/salafacil/internal/application"
	"github.com/salafacil/salafacil/internal/bootstrap"
	"github.com/salafacil/salafacil/internal/persistence"
	"github.com/salafacil/salafacil/internal/persistence/memory"
	"github.com/salafacil/salafacil/internal/scheduler"
)

// TestSecret signs access tokens issued by Env services.
const TestSecret = "test-secret"

// Env bundles real services over a fresh store with deterministic time and ids.
type Env struct {
	*bootstrap.Services
	Store       persistence.Store
	Clock       *Clock
	IDGenerator *IDGenerator
}

// Option customises NewServices.
type Option func(*bootstrap.Deps)

// WithStore replaces the default in-memory store.
func WithStore(store persistence.Store) Option {
	return func(d *bootstrap.Deps) { d.Store = store }
}

// WithOverlapRule selects how touching bookings are treated.
func WithOverlapRule(rule scheduler.OverlapRule) Option {
	return func(d *bootstrap.Deps) { d.OverlapRule = rule }
}

// WithLegacyTokens toggles acceptance of opaque legacy tokens.
func WithLegacyTokens(accept bool) Option {
	return func(d *bootstrap.Deps) { d.LegacyTokens = accept }
}

// WithEvents attaches a reservation event publisher.
func WithEvents(events application.EventPublisher) Option {
	return func(d *bootstrap.Deps) { d.Events = events }
}

// WithGoogleVerifier attaches a Google credential verifier.
func WithGoogleVerifier(verifier application.GoogleVerifier) Option {
	return func(d *bootstrap.Deps) { d.Google = verifier }
}

// NewServices wires every service over an empty in-memory store.
func NewServices(tb testing.TB, opts ...Option) *Env {
	tb.Helper()

	clock := NewClock(time.Time{})
	ids := NewIDGenerator("id")
	tokens := NewIDGenerator("refresh")
	deps := bootstrap.Deps{
		Store:          memory.New(),
		IDGenerator:    ids.NextFunc(),
		TokenGenerator: tokens.NextFunc(),
		Now:            clock.NowFunc(),
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		JWTSecret:      TestSecret,
		AccessTTL:      24 * time.Hour,
		RefreshTTL:     7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	services, err := bootstrap.NewServices(deps)
	if err != nil {
		tb.Fatalf("failed to wire services: %v", err)
	}
	tb.Cleanup(func() { _ = deps.Store.Close() })

	return &Env{Services: services, Store: deps.Store, Clock: clock, IDGenerator: ids}
}

// SeedAdmin creates the bootstrap administrator and returns its principal.
func (e *Env) SeedAdmin(ctx context.Context) (application.User, application.Principal, error) {
	user, err := e.Users.BootstrapAdmin(ctx, AdminInput(), false)
	if err != nil {
		return application.User{}, application.Principal{}, fmt.Errorf("seed admin: %w", err)
	}
	return user, application.PrincipalFor(user), nil
}

// SeedUser registers the n-th fixture user.
func (e *Env) SeedUser(ctx context.Context, n int) (application.AuthResult, error) {
	result, err := e.Auth.Register(ctx, RegisterParams(n))
	if err != nil {
		return application.AuthResult{}, fmt.Errorf("seed user %d: %w", n, err)
	}
	return result, nil
}

// SeedRoom creates a room as admin.
func (e *Env) SeedRoom(ctx context.Context, admin application.Principal, name string, capacity int) (application.Room, error) {
	room, err := e.Rooms.CreateRoom(ctx, application.CreateRoomParams{Principal: admin, Input: RoomInput(name, capacity)})
	if err != nil {
		return application.Room{}, fmt.Errorf("seed room %q: %w", name, err)
	}
	return room, nil
}

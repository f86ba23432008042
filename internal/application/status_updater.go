package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/salafacil/salafacil/internal/persistence"
	"github.com/salafacil/salafacil/internal/scheduler"
)

// TransitionHook observes every status change applied by the updater.
type TransitionHook func(from, to scheduler.Status)

// SweepResult summarises one updater pass.
type SweepResult struct {
	Examined    int
	Transitions int
	Stale       int
}

// StatusUpdater moves reservations through their lifecycle based on the clock.
type StatusUpdater struct {
	reservations ReservationRepository
	events       EventPublisher
	onTransition TransitionHook
	window       time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewStatusUpdater constructs an updater. window defaults to scheduler.DefaultStartWindow.
func NewStatusUpdater(reservations ReservationRepository, window time.Duration, now func() time.Time, logger *slog.Logger) *StatusUpdater {
	if window <= 0 {
		window = scheduler.DefaultStartWindow
	}
	if now == nil {
		now = time.Now
	}
	return &StatusUpdater{
		reservations: reservations,
		window:       window,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// WithEvents attaches a publisher notified for each applied transition.
func (u *StatusUpdater) WithEvents(events EventPublisher) *StatusUpdater {
	u.events = events
	return u
}

// OnTransition registers a hook invoked for each applied transition.
func (u *StatusUpdater) OnTransition(hook TransitionHook) *StatusUpdater {
	u.onTransition = hook
	return u
}

// Sweep applies every due transition once. Transitions are compare-and-set,
// so a reservation modified concurrently is skipped and picked up next pass.
func (u *StatusUpdater) Sweep(ctx context.Context) (result SweepResult, err error) {
	if u == nil || u.reservations == nil {
		err = fmt.Errorf("status updater not configured")
		return
	}

	logger := serviceLogger(ctx, u.logger, "StatusUpdater", "Sweep")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "status sweep failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		if result.Transitions > 0 || result.Stale > 0 {
			logger.InfoContext(ctx, "status sweep applied",
				"examined", result.Examined,
				"transitions", result.Transitions,
				"stale", result.Stale,
			)
		}
	}()

	now := u.now()
	horizon := now.Add(u.window)

	var open []Reservation
	open, err = u.reservations.ListReservations(ctx, ReservationRepositoryFilter{
		Statuses:     []scheduler.Status{scheduler.StatusScheduled, scheduler.StatusInProgress},
		StartsBefore: &horizon,
	})
	if err != nil {
		return
	}
	result.Examined = len(open)

	for _, r := range open {
		if ctx.Err() != nil {
			err = ctx.Err()
			return
		}

		next, ok := scheduler.NextStatus(r.booking(), now, u.window)
		if !ok {
			continue
		}

		if terr := u.reservations.TransitionReservationStatus(ctx, r.ID, r.Status, next, now); terr != nil {
			if errors.Is(terr, persistence.ErrStaleStatus) || isNotFoundError(terr) {
				result.Stale++
				continue
			}
			err = fmt.Errorf("transition reservation %s: %w", r.ID, terr)
			return
		}

		result.Transitions++
		if u.onTransition != nil {
			u.onTransition(r.Status, next)
		}

		previous := r.Status
		r.Status = next
		r.UpdatedAt = now
		u.publish(ctx, ReservationEvent{
			Type:           ReservationStatusChanged,
			Reservation:    r,
			PreviousStatus: previous,
			OccurredAt:     now,
		})
	}

	return
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (u *StatusUpdater) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	logger := serviceLogger(ctx, u.logger, "StatusUpdater", "Run", "interval", interval.String())
	logger.InfoContext(ctx, "status updater started")

	_, _ = u.Sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(context.WithoutCancel(ctx), "status updater stopped")
			return
		case <-ticker.C:
			_, _ = u.Sweep(ctx)
		}
	}
}

func (u *StatusUpdater) publish(ctx context.Context, event ReservationEvent) {
	if u.events == nil {
		return
	}
	if err := u.events.PublishReservationEvent(ctx, event); err != nil {
		serviceLogger(ctx, u.logger, "StatusUpdater", "publish", "reservation_id", event.Reservation.ID).
			WarnContext(ctx, "failed to publish reservation event", "error", err)
	}
}

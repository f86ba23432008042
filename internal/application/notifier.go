package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/salafacil/salafacil/internal/scheduler"
)

const (
	notificationSystem  = "system"
	notificationWarning = "warning"
)

// Notifier delivers an in-app notification to a single user.
type Notifier interface {
	Deliver(ctx context.Context, userID, title, message, kind string) error
}

// ReservationNotifier turns reservation events into notifications for the
// reservation owner.
type ReservationNotifier struct {
	notifier Notifier
	logger   *slog.Logger
}

var _ EventPublisher = (*ReservationNotifier)(nil)

// NewReservationNotifier builds an event publisher backed by notifier.
func NewReservationNotifier(notifier Notifier, logger *slog.Logger) *ReservationNotifier {
	return &ReservationNotifier{notifier: notifier, logger: defaultLogger(logger)}
}

// PublishReservationEvent delivers the message matching event to the owner.
func (n *ReservationNotifier) PublishReservationEvent(ctx context.Context, event ReservationEvent) error {
	if n == nil || n.notifier == nil {
		return nil
	}
	title, message, kind, ok := reservationNotice(event)
	if !ok {
		return nil
	}
	if err := n.notifier.Deliver(ctx, event.Reservation.UserID, title, message, kind); err != nil {
		return fmt.Errorf("notify %s: %w", event.Type, err)
	}
	return nil
}

func reservationNotice(event ReservationEvent) (title, message, kind string, ok bool) {
	r := event.Reservation
	when := r.Start.UTC().Format("02/01/2006 15:04")
	switch event.Type {
	case ReservationCreated:
		return fmt.Sprintf("Agendamento '%s' confirmado", r.Title),
			fmt.Sprintf("Seu agendamento para %s (UTC) foi criado.", when), notificationSystem, true
	case ReservationUpdated:
		return fmt.Sprintf("Agendamento '%s' atualizado", r.Title),
			fmt.Sprintf("Seu agendamento agora começa em %s (UTC).", when), notificationSystem, true
	case ReservationCancelled:
		return fmt.Sprintf("Agendamento '%s' cancelado", r.Title),
			fmt.Sprintf("O agendamento de %s (UTC) foi cancelado.", when), notificationWarning, true
	case ReservationStatusChanged:
		switch r.Status {
		case scheduler.StatusInProgress:
			return fmt.Sprintf("Agendamento '%s' iniciado", r.Title),
				"Seu agendamento está em andamento.", notificationSystem, true
		case scheduler.StatusCompleted:
			return fmt.Sprintf("Agendamento '%s' concluído", r.Title),
				"Seu agendamento foi concluído.", notificationSystem, true
		}
	}
	return "", "", "", false
}

// FanOut returns a publisher that hands every event to each non-nil
// publisher in order. Every publisher runs; their errors are joined.
func FanOut(publishers ...EventPublisher) EventPublisher {
	out := make(fanOut, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

type fanOut []EventPublisher

func (f fanOut) PublishReservationEvent(ctx context.Context, event ReservationEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishReservationEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

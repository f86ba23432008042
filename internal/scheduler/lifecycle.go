package scheduler

import "time"

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusScheduled  Status = "agendada"
	StatusInProgress Status = "em_andamento"
	StatusCompleted  Status = "concluida"
	StatusCancelled  Status = "cancelada"
)

// DefaultStartWindow is how far before and after the start time a booking is
// considered to be starting.
const DefaultStartWindow = 5 * time.Minute

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether moving from one status to another is allowed.
// Staying in the same status is not a transition.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatus computes the automatic transition for b at now. The second
// return value is false when the booking should keep its current status.
//
// A booking past its end is completed. A scheduled booking within window of
// its start is in progress. A scheduled booking that missed the start window
// stays scheduled until it ends.
func NextStatus(b Booking, now time.Time, window time.Duration) (Status, bool) {
	if b.Status.Terminal() || !b.Status.Valid() {
		return b.Status, false
	}
	if window < 0 {
		window = 0
	}

	if now.After(b.End) {
		return StatusCompleted, true
	}

	if b.Status == StatusScheduled {
		opensAt := b.Start.Add(-window)
		closesAt := b.Start.Add(window)
		if !now.Before(opensAt) && !now.After(closesAt) {
			return StatusInProgress, true
		}
	}

	return b.Status, false
}

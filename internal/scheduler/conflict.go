package scheduler

import "time"

// Booking is the minimal view of a reservation needed to reason about room occupancy.
type Booking struct {
	ID     string
	RoomID string
	Start  time.Time
	End    time.Time
	Status Status
}

// OverlapRule selects how interval boundaries are compared.
type OverlapRule int

const (
	// RuleInclusive treats bookings that merely touch (one ends exactly when
	// the other starts) as conflicting.
	RuleInclusive OverlapRule = iota
	// RuleHalfOpen compares bookings as [start, end) intervals.
	RuleHalfOpen
)

// String returns a stable label for logging.
func (r OverlapRule) String() string {
	if r == RuleHalfOpen {
		return "half_open"
	}
	return "inclusive"
}

// Conflict details an existing booking that blocks the candidate.
type Conflict struct {
	WithBookingID string
	RoomID        string
	Start         time.Time
	End           time.Time
}

// Overlaps reports whether the two intervals collide under the rule.
func Overlaps(rule OverlapRule, start, end, otherStart, otherEnd time.Time) bool {
	if rule == RuleHalfOpen {
		return start.Before(otherEnd) && end.After(otherStart)
	}
	return !start.After(otherEnd) && !end.Before(otherStart)
}

// DetectConflicts identifies bookings in existing that collide with candidate.
// Cancelled bookings, bookings in other rooms and the candidate itself are ignored.
func DetectConflicts(rule OverlapRule, existing []Booking, candidate Booking) []Conflict {
	var conflicts []Conflict
	for _, other := range existing {
		if other.Status == StatusCancelled {
			continue
		}
		if other.RoomID != candidate.RoomID {
			continue
		}
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if !Overlaps(rule, candidate.Start, candidate.End, other.Start, other.End) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			WithBookingID: other.ID,
			RoomID:        other.RoomID,
			Start:         other.Start,
			End:           other.End,
		})
	}
	return conflicts
}

// IsAvailable reports whether the room is free for [start, end] given the existing bookings.
func IsAvailable(rule OverlapRule, existing []Booking, roomID string, start, end time.Time) bool {
	return len(DetectConflicts(rule, existing, Booking{RoomID: roomID, Start: start, End: end})) == 0
}

package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/salafacil/salafacil/internal/scheduler"
)

const dashboardUpcomingLimit = 5

// AvailableRooms returns the active rooms holding at least MinCapacity people
// that could take a booking for [Start, End) under the current overlap rule.
func (s *ReservationService) AvailableRooms(ctx context.Context, params AvailableRoomsParams) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.catalog == nil || s.reservations == nil {
		err = fmt.Errorf("%w: room catalog", ErrNotConfigured)
		return
	}

	logger := s.loggerWith(ctx, "AvailableRooms",
		"principal_id", params.Principal.UserID,
		"capacity_min", params.MinCapacity,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to search rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).DebugContext(ctx, "rooms searched")
	}()

	vErr := &ValidationError{}
	validateInterval(params.Start, params.End, vErr)
	if params.MinCapacity < 0 {
		vErr.add("capacidade_min", "minimum capacity cannot be negative")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var all []Room
	all, err = s.catalog.ListRooms(ctx)
	if err != nil {
		return
	}

	// The window filter is inclusive so touching bookings reach the overlap rule.
	start, end := params.Start, params.End
	var booked []Reservation
	booked, err = s.reservations.ListReservations(ctx, ReservationRepositoryFilter{
		Statuses:     nonCancelledStatuses(),
		StartsBefore: &end,
		EndsAfter:    &start,
	})
	if err != nil {
		return
	}
	byRoom := make(map[string][]Reservation)
	for _, r := range booked {
		byRoom[r.RoomID] = append(byRoom[r.RoomID], r)
	}

	candidate := Reservation{Start: params.Start, End: params.End}
	rooms = make([]Room, 0, len(all))
	for _, room := range all {
		if !room.Active || room.Capacity < params.MinCapacity {
			continue
		}
		candidate.RoomID = room.ID
		if len(s.findConflicts(byRoom[room.ID], candidate)) > 0 {
			continue
		}
		rooms = append(rooms, room)
	}
	sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return
}

// Dashboard summarises today's bookings of the principal, how many active
// rooms are in use right now and the principal's next scheduled bookings.
// Days are UTC calendar days.
func (s *ReservationService) Dashboard(ctx context.Context, principal Principal) (dashboard Dashboard, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.catalog == nil || s.reservations == nil {
		err = fmt.Errorf("%w: room catalog", ErrNotConfigured)
		return
	}

	logger := s.loggerWith(ctx, "Dashboard", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build dashboard", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "dashboard built")
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	live := []scheduler.Status{scheduler.StatusScheduled, scheduler.StatusInProgress}

	var mine []Reservation
	mine, err = s.reservations.ListReservations(ctx, ReservationRepositoryFilter{
		UserID:   principal.UserID,
		Statuses: live,
	})
	if err != nil {
		return
	}
	sortReservations(mine)
	dashboard.Upcoming = make([]Reservation, 0, dashboardUpcomingLimit)
	for _, r := range mine {
		if !r.Start.Before(dayStart) && r.Start.Before(dayEnd) {
			dashboard.MyReservationsToday++
		}
		if r.Status == scheduler.StatusScheduled && !r.Start.Before(now) && len(dashboard.Upcoming) < dashboardUpcomingLimit {
			dashboard.Upcoming = append(dashboard.Upcoming, r)
		}
	}

	var rooms []Room
	rooms, err = s.catalog.ListRooms(ctx)
	if err != nil {
		return
	}
	active := make(map[string]bool, len(rooms))
	for _, room := range rooms {
		if room.Active {
			active[room.ID] = true
		}
	}
	dashboard.TotalRooms = len(active)

	var current []Reservation
	current, err = s.reservations.ListReservations(ctx, ReservationRepositoryFilter{
		Statuses:     live,
		StartsBefore: &now,
		EndsAfter:    &now,
	})
	if err != nil {
		return
	}
	occupied := make(map[string]bool)
	for _, r := range current {
		if active[r.RoomID] && !r.Start.After(now) && now.Before(r.End) {
			occupied[r.RoomID] = true
		}
	}
	dashboard.RoomsOccupiedNow = len(occupied)
	dashboard.RoomsAvailableNow = dashboard.TotalRooms - dashboard.RoomsOccupiedNow
	return
}

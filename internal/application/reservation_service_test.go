package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/salafacil/salafacil/internal/persistence"
	"github.com/salafacil/salafacil/internal/scheduler"
)

type reservationRepoStub struct {
	mu           sync.Mutex
	reservations map[string]Reservation
	listErr      error
	transitions  []string
	// beforeUpdate runs under the lock ahead of UpdateReservation's checks.
	beforeUpdate func(reservations map[string]Reservation)
}

func newReservationRepoStub(existing ...Reservation) *reservationRepoStub {
	repo := &reservationRepoStub{reservations: make(map[string]Reservation)}
	for _, r := range existing {
		repo.reservations[r.ID] = r
	}
	return repo
}

func (r *reservationRepoStub) roomReservations(roomID string) []Reservation {
	var out []Reservation
	for _, existing := range r.reservations {
		if existing.RoomID == roomID && existing.Status != scheduler.StatusCancelled {
			out = append(out, existing)
		}
	}
	return out
}

func (r *reservationRepoStub) CreateReservation(ctx context.Context, reservation Reservation, guard ReservationGuard) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if guard != nil {
		if err := guard(r.roomReservations(reservation.RoomID)); err != nil {
			return Reservation{}, err
		}
	}
	r.reservations[reservation.ID] = reservation
	return reservation, nil
}

func (r *reservationRepoStub) UpdateReservation(ctx context.Context, reservation Reservation, expected scheduler.Status, guard ReservationGuard) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.beforeUpdate != nil {
		r.beforeUpdate(r.reservations)
	}
	current, ok := r.reservations[reservation.ID]
	if !ok {
		return Reservation{}, persistence.ErrNotFound
	}
	if current.Status != expected {
		return Reservation{}, persistence.ErrStaleStatus
	}
	if guard != nil {
		if err := guard(r.roomReservations(reservation.RoomID)); err != nil {
			return Reservation{}, err
		}
	}
	r.reservations[reservation.ID] = reservation
	return reservation, nil
}

func (r *reservationRepoStub) GetReservation(ctx context.Context, id string) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reservation, ok := r.reservations[id]
	if !ok {
		return Reservation{}, persistence.ErrNotFound
	}
	return reservation, nil
}

func (r *reservationRepoStub) ListReservations(ctx context.Context, filter ReservationRepositoryFilter) ([]Reservation, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Reservation
	for _, reservation := range r.reservations {
		if filter.RoomID != "" && reservation.RoomID != filter.RoomID {
			continue
		}
		if filter.UserID != "" && reservation.UserID != filter.UserID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, reservation.Status) {
			continue
		}
		if filter.StartsBefore != nil && reservation.Start.After(*filter.StartsBefore) {
			continue
		}
		if filter.EndsAfter != nil && reservation.End.Before(*filter.EndsAfter) {
			continue
		}
		out = append(out, reservation)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *reservationRepoStub) TransitionReservationStatus(ctx context.Context, id string, from, to scheduler.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reservation, ok := r.reservations[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if reservation.Status != from {
		return persistence.ErrStaleStatus
	}
	reservation.Status = to
	reservation.UpdatedAt = at
	if to == scheduler.StatusCancelled {
		reservation.CancelledAt = &at
	}
	r.reservations[id] = reservation
	r.transitions = append(r.transitions, id+":"+string(from)+"->"+string(to))
	return nil
}

func containsStatus(statuses []scheduler.Status, status scheduler.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type roomLookupStub map[string]Room

func (l roomLookupStub) GetRoom(ctx context.Context, id string) (Room, error) {
	room, ok := l[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (l roomLookupStub) ListRooms(ctx context.Context) ([]Room, error) {
	out := make([]Room, 0, len(l))
	for _, room := range l {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []ReservationEvent
	err    error
}

func (e *eventRecorder) PublishReservationEvent(ctx context.Context, event ReservationEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.err
}

func (e *eventRecorder) types() []ReservationEventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ReservationEventType, 0, len(e.events))
	for _, event := range e.events {
		out = append(out, event.Type)
	}
	return out
}

var bookingDay = time.Date(2024, time.July, 22, 0, 0, 0, 0, time.UTC)

func hm(hour, minute int) time.Time {
	return bookingDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + string(rune('0'+n))
	}
}

func defaultRooms() roomLookupStub {
	return roomLookupStub{
		"room-1":   {ID: "room-1", Name: "Sala 1", Capacity: 10, Active: true},
		"room-2":   {ID: "room-2", Name: "Sala 2", Capacity: 4, Active: true},
		"inactive": {ID: "inactive", Name: "Sala velha", Capacity: 10, Active: false},
	}
}

func newTestReservationService(repo *reservationRepoStub) *ReservationService {
	now := func() time.Time { return hm(8, 0) }
	return NewReservationService(repo, defaultRooms(), sequentialIDs("res-"), now)
}

func createParams(principal Principal, roomID string, start, end time.Time) CreateReservationParams {
	return CreateReservationParams{
		Principal: principal,
		Input: ReservationInput{
			Title:  "Reunião",
			RoomID: roomID,
			Start:  start,
			End:    end,
		},
	}
}

func TestReservationService_CreateReservation(t *testing.T) {
	t.Run("boundary scenario under the inclusive rule", func(t *testing.T) {
		repo := newReservationRepoStub()
		svc := newTestReservationService(repo)
		ctx := context.Background()

		a, err := svc.CreateReservation(ctx, createParams(userPrincipal, "room-1", hm(14, 0), hm(15, 0)))
		if err != nil {
			t.Fatalf("expected A to be accepted, got %v", err)
		}
		if a.Status != scheduler.StatusScheduled || a.UserID != userPrincipal.UserID {
			t.Fatalf("unexpected reservation %+v", a)
		}

		_, err = svc.CreateReservation(ctx, createParams(userPrincipal, "room-1", hm(14, 30), hm(15, 30)))
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected B to conflict, got %v", err)
		}
		if len(conflict.Conflicts) != 1 || conflict.Conflicts[0].ID != a.ID {
			t.Fatalf("expected conflict with A, got %+v", conflict.Conflicts)
		}

		_, err = svc.CreateReservation(ctx, createParams(userPrincipal, "room-1", hm(15, 0), hm(16, 0)))
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected touching C to conflict, got %v", err)
		}
	})

	t.Run("touching reservations are accepted under the half-open rule", func(t *testing.T) {
		repo := newReservationRepoStub()
		svc := newTestReservationService(repo).WithOverlapRule(scheduler.RuleHalfOpen)
		ctx := context.Background()

		if _, err := svc.CreateReservation(ctx, createParams(userPrincipal, "room-1", hm(14, 0), hm(15, 0))); err != nil {
			t.Fatalf("expected A to be accepted, got %v", err)
		}
		if _, err := svc.CreateReservation(ctx, createParams(userPrincipal, "room-1", hm(14, 30), hm(15, 30))); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected B to conflict, got %v", err)
		}
		if _, err := svc.CreateReservation(ctx, createParams(userPrincipal, "room-1", hm(15, 0), hm(16, 0))); err != nil {
			t.Fatalf("expected C to be accepted, got %v", err)
		}
	})

	t.Run("cancelled reservations and other rooms do not block", func(t *testing.T) {
		repo := newReservationRepoStub(
			Reservation{ID: "old", RoomID: "room-1", Start: hm(14, 0), End: hm(15, 0), Status: scheduler.StatusCancelled},
			Reservation{ID: "other", RoomID: "room-2", Start: hm(14, 0), End: hm(15, 0), Status: scheduler.StatusScheduled},
		)
		svc := newTestReservationService(repo)

		if _, err := svc.CreateReservation(context.Background(), createParams(userPrincipal, "room-1", hm(14, 0), hm(15, 0))); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	})

	t.Run("validates required fields", func(t *testing.T) {
		svc := newTestReservationService(newReservationRepoStub())

		_, err := svc.CreateReservation(context.Background(), CreateReservationParams{
			Principal: userPrincipal,
			Input:     ReservationInput{Start: hm(15, 0), End: hm(14, 0), Participants: -1},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"titulo", "sala_id", "data_fim", "participantes"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s validation error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("rejects bookings beyond room capacity", func(t *testing.T) {
		svc := newTestReservationService(newReservationRepoStub())
		params := createParams(userPrincipal, "room-2", hm(9, 0), hm(10, 0))
		params.Input.Participants = 5

		_, err := svc.CreateReservation(context.Background(), params)

		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["participantes"] == "" {
			t.Fatalf("expected participantes validation error, got %v", err)
		}
	})

	t.Run("rejects inactive and unknown rooms", func(t *testing.T) {
		svc := newTestReservationService(newReservationRepoStub())

		for _, roomID := range []string{"inactive", "missing"} {
			_, err := svc.CreateReservation(context.Background(), createParams(userPrincipal, roomID, hm(9, 0), hm(10, 0)))
			var vErr *ValidationError
			if !errors.As(err, &vErr) || vErr.FieldErrors["sala_id"] == "" {
				t.Fatalf("room %s: expected sala_id validation error, got %v", roomID, err)
			}
		}
	})

	t.Run("only administrators book on behalf of others", func(t *testing.T) {
		svc := newTestReservationService(newReservationRepoStub())
		params := createParams(userPrincipal, "room-1", hm(9, 0), hm(10, 0))
		params.Input.UserID = "someone-else"

		if _, err := svc.CreateReservation(context.Background(), params); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}

		params.Principal = adminPrincipal
		created, err := svc.CreateReservation(context.Background(), params)
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if created.UserID != "someone-else" {
			t.Fatalf("expected reservation owned by someone-else, got %q", created.UserID)
		}
	})

	t.Run("publishes an event and tolerates publisher failures", func(t *testing.T) {
		events := &eventRecorder{err: errors.New("broker down")}
		svc := newTestReservationService(newReservationRepoStub()).WithEvents(events)

		if _, err := svc.CreateReservation(context.Background(), createParams(userPrincipal, "room-1", hm(9, 0), hm(10, 0))); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if got := events.types(); len(got) != 1 || got[0] != ReservationCreated {
			t.Fatalf("expected one created event, got %v", got)
		}
	})

	t.Run("concurrent overlapping bookings persist at most one", func(t *testing.T) {
		repo := newReservationRepoStub()
		var (
			mu sync.Mutex
			n  int
		)
		svc := NewReservationService(repo, defaultRooms(), func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return "res-" + time.Duration(n).String()
		}, nil)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(offset int) {
				defer wg.Done()
				start := hm(14, offset)
				_, _ = svc.CreateReservation(context.Background(), createParams(userPrincipal, "room-1", start, start.Add(time.Hour)))
			}(i)
		}
		wg.Wait()

		if got := len(repo.roomReservations("room-1")); got != 1 {
			t.Fatalf("expected exactly one persisted reservation, got %d", got)
		}
	})
}

func TestReservationService_UpdateReservation(t *testing.T) {
	seed := func() *reservationRepoStub {
		return newReservationRepoStub(
			Reservation{ID: "a", Title: "A", RoomID: "room-1", UserID: "user-1", Start: hm(14, 0), End: hm(15, 0), Status: scheduler.StatusScheduled},
			Reservation{ID: "b", Title: "B", RoomID: "room-1", UserID: "user-2", Start: hm(16, 0), End: hm(17, 0), Status: scheduler.StatusScheduled},
			Reservation{ID: "done", Title: "Done", RoomID: "room-1", UserID: "user-1", Start: hm(7, 0), End: hm(8, 0), Status: scheduler.StatusCompleted},
		)
	}

	t.Run("owner may move a reservation to a free slot", func(t *testing.T) {
		repo := seed()
		svc := newTestReservationService(repo)

		updated, err := svc.UpdateReservation(context.Background(), UpdateReservationParams{
			Principal:     userPrincipal,
			ReservationID: "a",
			Input:         ReservationInput{Title: "A2", RoomID: "room-1", Start: hm(14, 30), End: hm(15, 30)},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if updated.Title != "A2" || !updated.Start.Equal(hm(14, 30)) {
			t.Fatalf("unexpected updated reservation %+v", updated)
		}
	})

	t.Run("editing does not conflict with itself but does with others", func(t *testing.T) {
		repo := seed()
		svc := newTestReservationService(repo)

		_, err := svc.UpdateReservation(context.Background(), UpdateReservationParams{
			Principal:     userPrincipal,
			ReservationID: "a",
			Input:         ReservationInput{Title: "A", RoomID: "room-1", Start: hm(15, 30), End: hm(16, 0)},
		})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict with b, got %v", err)
		}
	})

	t.Run("non owners are rejected", func(t *testing.T) {
		svc := newTestReservationService(seed())

		_, err := svc.UpdateReservation(context.Background(), UpdateReservationParams{
			Principal:     userPrincipal,
			ReservationID: "b",
			Input:         ReservationInput{Title: "B", RoomID: "room-1", Start: hm(16, 0), End: hm(17, 0)},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("closed reservations are immutable", func(t *testing.T) {
		svc := newTestReservationService(seed())

		_, err := svc.UpdateReservation(context.Background(), UpdateReservationParams{
			Principal:     adminPrincipal,
			ReservationID: "done",
			Input:         ReservationInput{Title: "Again", RoomID: "room-1", Start: hm(7, 0), End: hm(8, 0)},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["status"] == "" {
			t.Fatalf("expected status validation error, got %v", err)
		}
	})

	t.Run("missing reservations are not found", func(t *testing.T) {
		svc := newTestReservationService(seed())

		_, err := svc.UpdateReservation(context.Background(), UpdateReservationParams{
			Principal:     adminPrincipal,
			ReservationID: "nope",
			Input:         ReservationInput{Title: "X", RoomID: "room-1", Start: hm(7, 0), End: hm(8, 0)},
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestReservationService_PatchReservation(t *testing.T) {
	seed := func() *reservationRepoStub {
		return newReservationRepoStub(
			Reservation{ID: "a", Title: "A", RoomID: "room-1", UserID: "user-1", Start: hm(14, 0), End: hm(15, 0), Status: scheduler.StatusScheduled},
			Reservation{ID: "done", Title: "Done", RoomID: "room-1", UserID: "user-1", Start: hm(7, 0), End: hm(8, 0), Status: scheduler.StatusCompleted},
		)
	}

	t.Run("title only patch keeps the schedule", func(t *testing.T) {
		repo := seed()
		svc := newTestReservationService(repo)
		title := "Planejamento"

		patched, err := svc.PatchReservation(context.Background(), PatchReservationParams{
			Principal:     userPrincipal,
			ReservationID: "a",
			Patch:         ReservationPatch{Title: &title},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if patched.Title != title || !patched.Start.Equal(hm(14, 0)) || patched.Status != scheduler.StatusScheduled {
			t.Fatalf("unexpected patched reservation %+v", patched)
		}
	})

	t.Run("status follows the transition table", func(t *testing.T) {
		repo := seed()
		events := &eventRecorder{}
		svc := newTestReservationService(repo).WithEvents(events)
		inProgress := scheduler.StatusInProgress

		patched, err := svc.PatchReservation(context.Background(), PatchReservationParams{
			Principal:     userPrincipal,
			ReservationID: "a",
			Patch:         ReservationPatch{Status: &inProgress},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if patched.Status != scheduler.StatusInProgress {
			t.Fatalf("expected em_andamento, got %s", patched.Status)
		}
		if got := events.types(); len(got) != 1 || got[0] != ReservationStatusChanged {
			t.Fatalf("expected one status event, got %v", got)
		}

		scheduled := scheduler.StatusScheduled
		_, err = svc.PatchReservation(context.Background(), PatchReservationParams{
			Principal:     userPrincipal,
			ReservationID: "a",
			Patch:         ReservationPatch{Status: &scheduled},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["status"] == "" {
			t.Fatalf("expected backwards transition to be rejected, got %v", err)
		}
	})

	t.Run("completed reservations never return to scheduled", func(t *testing.T) {
		svc := newTestReservationService(seed())
		scheduled := scheduler.StatusScheduled

		_, err := svc.PatchReservation(context.Background(), PatchReservationParams{
			Principal:     adminPrincipal,
			ReservationID: "done",
			Patch:         ReservationPatch{Status: &scheduled},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("unknown status values are rejected", func(t *testing.T) {
		svc := newTestReservationService(seed())
		bogus := scheduler.Status("pausada")

		_, err := svc.PatchReservation(context.Background(), PatchReservationParams{
			Principal:     userPrincipal,
			ReservationID: "a",
			Patch:         ReservationPatch{Status: &bogus},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestReservationService_PatchStatusWithFields(t *testing.T) {
	seed := func() *reservationRepoStub {
		return newReservationRepoStub(
			Reservation{ID: "a", Title: "A", RoomID: "room-1", UserID: "user-1", Start: hm(14, 0), End: hm(15, 0), Status: scheduler.StatusScheduled},
			Reservation{ID: "b", Title: "B", RoomID: "room-1", UserID: "user-2", Start: hm(16, 0), End: hm(17, 0), Status: scheduler.StatusScheduled},
		)
	}
	onTopOfB := func(status scheduler.Status) ReservationPatch {
		start, end := hm(16, 0), hm(17, 0)
		return ReservationPatch{Start: &start, End: &end, Status: &status}
	}

	t.Run("cancel racing a status change leaves the row untouched", func(t *testing.T) {
		repo := seed()
		repo.beforeUpdate = func(reservations map[string]Reservation) {
			a := reservations["a"]
			a.Status = scheduler.StatusInProgress
			reservations["a"] = a
		}
		events := &eventRecorder{}
		svc := newTestReservationService(repo).WithEvents(events)

		_, err := svc.PatchReservation(context.Background(), PatchReservationParams{
			Principal:     userPrincipal,
			ReservationID: "a",
			Patch:         onTopOfB(scheduler.StatusCancelled),
		})
		if !errors.Is(err, ErrStaleReservation) {
			t.Fatalf("expected ErrStaleReservation, got %v", err)
		}
		if errors.Is(err, ErrConflict) {
			t.Fatalf("stale writes must not read as a room conflict: %v", err)
		}

		stored, _ := repo.GetReservation(context.Background(), "a")
		if stored.Status != scheduler.StatusInProgress || !stored.Start.Equal(hm(14, 0)) {
			t.Fatalf("expected live reservation to keep its slot, got %+v", stored)
		}
		if got := events.types(); len(got) != 0 {
			t.Fatalf("expected no events, got %v", got)
		}
	})

	t.Run("cancel with new times writes both at once", func(t *testing.T) {
		repo := seed()
		events := &eventRecorder{}
		svc := newTestReservationService(repo).WithEvents(events)

		patched, err := svc.PatchReservation(context.Background(), PatchReservationParams{
			Principal:     userPrincipal,
			ReservationID: "a",
			Patch:         onTopOfB(scheduler.StatusCancelled),
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if patched.Status != scheduler.StatusCancelled || patched.CancelledAt == nil || !patched.Start.Equal(hm(16, 0)) {
			t.Fatalf("unexpected reservation %+v", patched)
		}
		if len(repo.transitions) != 0 {
			t.Fatalf("expected a single update write, got transitions %v", repo.transitions)
		}
		if got := events.types(); len(got) != 2 || got[0] != ReservationUpdated || got[1] != ReservationCancelled {
			t.Fatalf("expected updated then cancelled events, got %v", got)
		}
	})

	t.Run("live status change with new times is still checked for overlap", func(t *testing.T) {
		repo := seed()
		svc := newTestReservationService(repo)

		_, err := svc.PatchReservation(context.Background(), PatchReservationParams{
			Principal:     userPrincipal,
			ReservationID: "a",
			Patch:         onTopOfB(scheduler.StatusInProgress),
		})
		var conflict *ConflictError
		if !errors.As(err, &conflict) || len(conflict.Conflicts) != 1 || conflict.Conflicts[0].ID != "b" {
			t.Fatalf("expected conflict with b, got %v", err)
		}

		stored, _ := repo.GetReservation(context.Background(), "a")
		if stored.Status != scheduler.StatusScheduled || !stored.Start.Equal(hm(14, 0)) {
			t.Fatalf("expected no partial write, got %+v", stored)
		}
	})
}

func TestReservationService_CancelReservation(t *testing.T) {
	t.Run("soft cancels and frees the slot", func(t *testing.T) {
		repo := newReservationRepoStub(
			Reservation{ID: "a", Title: "A", RoomID: "room-1", UserID: "user-1", Start: hm(14, 0), End: hm(15, 0), Status: scheduler.StatusScheduled},
		)
		events := &eventRecorder{}
		svc := newTestReservationService(repo).WithEvents(events)

		cancelled, err := svc.CancelReservation(context.Background(), userPrincipal, "a")
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if cancelled.Status != scheduler.StatusCancelled || cancelled.CancelledAt == nil {
			t.Fatalf("expected cancelled reservation with timestamp, got %+v", cancelled)
		}
		if _, err := repo.GetReservation(context.Background(), "a"); err != nil {
			t.Fatalf("expected reservation to be kept, got %v", err)
		}
		if got := events.types(); len(got) != 1 || got[0] != ReservationCancelled {
			t.Fatalf("expected cancelled event, got %v", got)
		}

		if _, err := svc.CreateReservation(context.Background(), createParams(userPrincipal, "room-1", hm(14, 0), hm(15, 0))); err != nil {
			t.Fatalf("expected slot to be free after cancel, got %v", err)
		}
	})

	t.Run("cancelling twice is rejected", func(t *testing.T) {
		repo := newReservationRepoStub(
			Reservation{ID: "a", RoomID: "room-1", UserID: "user-1", Start: hm(14, 0), End: hm(15, 0), Status: scheduler.StatusCancelled},
		)
		svc := newTestReservationService(repo)

		if _, err := svc.CancelReservation(context.Background(), userPrincipal, "a"); err == nil {
			t.Fatalf("expected error for cancelled reservation")
		}
	})

	t.Run("others cannot cancel", func(t *testing.T) {
		repo := newReservationRepoStub(
			Reservation{ID: "a", RoomID: "room-1", UserID: "user-2", Start: hm(14, 0), End: hm(15, 0), Status: scheduler.StatusInProgress},
		)
		svc := newTestReservationService(repo)

		if _, err := svc.CancelReservation(context.Background(), userPrincipal, "a"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if _, err := svc.CancelReservation(context.Background(), adminPrincipal, "a"); err != nil {
			t.Fatalf("expected admin cancel to succeed, got %v", err)
		}
	})
}

func TestReservationService_ListReservations(t *testing.T) {
	repo := newReservationRepoStub(
		Reservation{ID: "late", RoomID: "room-1", UserID: "user-1", Start: hm(16, 0), End: hm(17, 0), Status: scheduler.StatusScheduled},
		Reservation{ID: "early", RoomID: "room-1", UserID: "user-1", Start: hm(9, 0), End: hm(10, 0), Status: scheduler.StatusScheduled},
		Reservation{ID: "other", RoomID: "room-2", UserID: "user-2", Start: hm(12, 0), End: hm(13, 0), Status: scheduler.StatusCancelled},
	)
	svc := newTestReservationService(repo)

	t.Run("sorted by start", func(t *testing.T) {
		list, err := svc.ListReservations(context.Background(), ListReservationsParams{Principal: userPrincipal})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if len(list) != 3 || list[0].ID != "early" || list[1].ID != "other" || list[2].ID != "late" {
			t.Fatalf("unexpected order %+v", list)
		}
	})

	t.Run("filters by room, status and window", func(t *testing.T) {
		from, to := hm(15, 30), hm(18, 0)
		list, err := svc.ListReservations(context.Background(), ListReservationsParams{
			Principal: userPrincipal,
			RoomID:    "room-1",
			Status:    scheduler.StatusScheduled,
			From:      &from,
			To:        &to,
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if len(list) != 1 || list[0].ID != "late" {
			t.Fatalf("unexpected result %+v", list)
		}
	})

	t.Run("rejects unknown statuses", func(t *testing.T) {
		_, err := svc.ListReservations(context.Background(), ListReservationsParams{Principal: userPrincipal, Status: "x"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestReservationService_CheckAvailability(t *testing.T) {
	repo := newReservationRepoStub(
		Reservation{ID: "a", RoomID: "room-1", Start: hm(14, 0), End: hm(15, 0), Status: scheduler.StatusScheduled},
		Reservation{ID: "gone", RoomID: "room-1", Start: hm(10, 0), End: hm(11, 0), Status: scheduler.StatusCancelled},
	)
	svc := newTestReservationService(repo)
	ctx := context.Background()

	tests := []struct {
		name      string
		start     time.Time
		end       time.Time
		exclude   string
		available bool
	}{
		{"free morning", hm(9, 0), hm(9, 30), "", true},
		{"cancelled slot", hm(10, 0), hm(11, 0), "", true},
		{"overlap", hm(14, 30), hm(15, 30), "", false},
		{"touching end", hm(15, 0), hm(16, 0), "", false},
		{"excluding itself", hm(14, 0), hm(15, 0), "a", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := svc.CheckAvailability(ctx, AvailabilityParams{
				Principal: userPrincipal,
				RoomID:    "room-1",
				Start:     tc.start,
				End:       tc.end,
				ExcludeID: tc.exclude,
			})
			if err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if result.Available != tc.available {
				t.Fatalf("expected available=%v, got %+v", tc.available, result)
			}
		})
	}

	t.Run("unknown room", func(t *testing.T) {
		_, err := svc.CheckAvailability(ctx, AvailabilityParams{Principal: userPrincipal, RoomID: "missing", Start: hm(9, 0), End: hm(10, 0)})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("invalid interval", func(t *testing.T) {
		_, err := svc.CheckAvailability(ctx, AvailabilityParams{Principal: userPrincipal, RoomID: "room-1", Start: hm(10, 0), End: hm(10, 0)})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/salafacil/salafacil/internal/scheduler"
)

func TestStatusUpdater_Sweep(t *testing.T) {
	t.Run("applies due transitions", func(t *testing.T) {
		repo := newReservationRepoStub(
			Reservation{ID: "starting", RoomID: "room-1", Start: hm(14, 3), End: hm(15, 0), Status: scheduler.StatusScheduled},
			Reservation{ID: "finished", RoomID: "room-1", Start: hm(12, 0), End: hm(13, 0), Status: scheduler.StatusInProgress},
			Reservation{ID: "missed", RoomID: "room-2", Start: hm(10, 0), End: hm(11, 0), Status: scheduler.StatusScheduled},
			Reservation{ID: "later", RoomID: "room-2", Start: hm(16, 0), End: hm(17, 0), Status: scheduler.StatusScheduled},
			Reservation{ID: "cancelled", RoomID: "room-2", Start: hm(9, 0), End: hm(10, 0), Status: scheduler.StatusCancelled},
		)
		events := &eventRecorder{}
		var hooked []string
		updater := NewStatusUpdater(repo, 0, func() time.Time { return hm(14, 0) }, nil).
			WithEvents(events).
			OnTransition(func(from, to scheduler.Status) { hooked = append(hooked, string(from)+"->"+string(to)) })

		result, err := updater.Sweep(context.Background())
		if err != nil {
			t.Fatalf("Sweep: %v", err)
		}
		if result.Transitions != 3 {
			t.Fatalf("expected 3 transitions, got %+v", result)
		}

		want := map[string]scheduler.Status{
			"starting":  scheduler.StatusInProgress,
			"finished":  scheduler.StatusCompleted,
			"missed":    scheduler.StatusCompleted,
			"later":     scheduler.StatusScheduled,
			"cancelled": scheduler.StatusCancelled,
		}
		for id, status := range want {
			got, _ := repo.GetReservation(context.Background(), id)
			if got.Status != status {
				t.Fatalf("%s: expected %s, got %s", id, status, got.Status)
			}
		}
		if len(hooked) != 3 || len(events.types()) != 3 {
			t.Fatalf("expected hook and events per transition, got hooks=%v events=%v", hooked, events.types())
		}
	})

	t.Run("status never moves backwards across sweeps", func(t *testing.T) {
		repo := newReservationRepoStub(
			Reservation{ID: "a", RoomID: "room-1", Start: hm(14, 0), End: hm(15, 0), Status: scheduler.StatusScheduled},
		)
		clock := hm(13, 0)
		updater := NewStatusUpdater(repo, 5*time.Minute, func() time.Time { return clock }, nil)

		rank := map[scheduler.Status]int{
			scheduler.StatusScheduled:  0,
			scheduler.StatusInProgress: 1,
			scheduler.StatusCompleted:  2,
		}
		last := 0
		for ; clock.Before(hm(16, 0)); clock = clock.Add(time.Minute) {
			if _, err := updater.Sweep(context.Background()); err != nil {
				t.Fatalf("Sweep at %s: %v", clock.Format("15:04"), err)
			}
			got, _ := repo.GetReservation(context.Background(), "a")
			if rank[got.Status] < last {
				t.Fatalf("status moved backwards at %s: %s", clock.Format("15:04"), got.Status)
			}
			last = rank[got.Status]
		}
		if last != 2 {
			t.Fatalf("expected reservation to end completed")
		}
	})

	t.Run("propagates listing failures", func(t *testing.T) {
		repo := newReservationRepoStub()
		repo.listErr = errors.New("db down")
		updater := NewStatusUpdater(repo, 0, nil, nil)

		if _, err := updater.Sweep(context.Background()); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestStatusUpdater_RunStopsOnCancel(t *testing.T) {
	repo := newReservationRepoStub(
		Reservation{ID: "a", RoomID: "room-1", Start: hm(14, 0), End: hm(15, 0), Status: scheduler.StatusScheduled},
	)
	updater := NewStatusUpdater(repo, 0, func() time.Time { return hm(16, 0) }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		updater.Run(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		got, _ := repo.GetReservation(context.Background(), "a")
		if got.Status == scheduler.StatusCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected initial sweep to complete the reservation")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected Run to return after cancel")
	}
}

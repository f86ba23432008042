package scheduler

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusScheduled, StatusInProgress, true},
		{StatusScheduled, StatusCompleted, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusScheduled, false},
		{StatusCompleted, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusScheduled, StatusScheduled, false},
		{Status("unknown"), StatusCompleted, false},
	}

	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNextStatus(t *testing.T) {
	booking := Booking{ID: "a", RoomID: "1", Start: at(14, 0), End: at(15, 0), Status: StatusScheduled}

	t.Run("stays scheduled before the start window", func(t *testing.T) {
		if _, changed := NextStatus(booking, at(13, 54), DefaultStartWindow); changed {
			t.Fatalf("expected no change before the window opens")
		}
	})

	t.Run("starts within five minutes of the start", func(t *testing.T) {
		for _, now := range []time.Time{at(13, 55), at(14, 0), at(14, 5)} {
			next, changed := NextStatus(booking, now, DefaultStartWindow)
			if !changed || next != StatusInProgress {
				t.Fatalf("at %s expected em_andamento, got %s (changed=%v)", now.Format("15:04"), next, changed)
			}
		}
	})

	t.Run("missed start window keeps scheduled until the end", func(t *testing.T) {
		if _, changed := NextStatus(booking, at(14, 6), DefaultStartWindow); changed {
			t.Fatalf("expected no change after the start window closed")
		}
	})

	t.Run("completes after the end", func(t *testing.T) {
		for _, status := range []Status{StatusScheduled, StatusInProgress} {
			b := booking
			b.Status = status
			next, changed := NextStatus(b, at(15, 0).Add(time.Second), DefaultStartWindow)
			if !changed || next != StatusCompleted {
				t.Fatalf("from %s expected concluida, got %s", status, next)
			}
		}
	})

	t.Run("end instant itself is not past the end", func(t *testing.T) {
		b := booking
		b.Status = StatusInProgress
		if _, changed := NextStatus(b, at(15, 0), DefaultStartWindow); changed {
			t.Fatalf("expected no change exactly at the end")
		}
	})

	t.Run("terminal states never move", func(t *testing.T) {
		for _, status := range []Status{StatusCompleted, StatusCancelled} {
			b := booking
			b.Status = status
			for _, now := range []time.Time{at(13, 0), at(14, 0), at(16, 0)} {
				if next, changed := NextStatus(b, now, DefaultStartWindow); changed {
					t.Fatalf("%s moved to %s", status, next)
				}
			}
		}
	})

	t.Run("automatic transitions are monotonic", func(t *testing.T) {
		b := booking
		rank := map[Status]int{StatusScheduled: 0, StatusInProgress: 1, StatusCompleted: 2}
		for now := at(13, 0); now.Before(at(16, 0)); now = now.Add(time.Minute) {
			next, changed := NextStatus(b, now, DefaultStartWindow)
			if !changed {
				continue
			}
			if !CanTransition(b.Status, next) {
				t.Fatalf("illegal automatic transition %s -> %s", b.Status, next)
			}
			if rank[next] < rank[b.Status] {
				t.Fatalf("status moved backwards %s -> %s", b.Status, next)
			}
			b.Status = next
		}
		if b.Status != StatusCompleted {
			t.Fatalf("expected booking to end completed, got %s", b.Status)
		}
	})
}

package scheduler

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 7, 22, hour, minute, 0, 0, time.UTC)
}

func TestDetectConflicts(t *testing.T) {
	existing := []Booking{
		{ID: "a", RoomID: "1", Start: at(14, 0), End: at(15, 0), Status: StatusScheduled},
	}

	t.Run("partial overlap produces conflict", func(t *testing.T) {
		conflicts := DetectConflicts(RuleInclusive, existing, Booking{RoomID: "1", Start: at(14, 30), End: at(15, 30)})
		if len(conflicts) != 1 {
			t.Fatalf("expected 1 conflict, got %d", len(conflicts))
		}
		if conflicts[0].WithBookingID != "a" {
			t.Fatalf("expected conflict with a, got %q", conflicts[0].WithBookingID)
		}
	})

	t.Run("touching boundary conflicts under inclusive rule", func(t *testing.T) {
		conflicts := DetectConflicts(RuleInclusive, existing, Booking{RoomID: "1", Start: at(15, 0), End: at(16, 0)})
		if len(conflicts) != 1 {
			t.Fatalf("expected touching booking to conflict, got %d conflicts", len(conflicts))
		}
		conflicts = DetectConflicts(RuleInclusive, existing, Booking{RoomID: "1", Start: at(13, 0), End: at(14, 0)})
		if len(conflicts) != 1 {
			t.Fatalf("expected booking ending at start to conflict, got %d conflicts", len(conflicts))
		}
	})

	t.Run("touching boundary is free under half-open rule", func(t *testing.T) {
		conflicts := DetectConflicts(RuleHalfOpen, existing, Booking{RoomID: "1", Start: at(15, 0), End: at(16, 0)})
		if len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %v", conflicts)
		}
	})

	t.Run("containment conflicts under both rules", func(t *testing.T) {
		candidate := Booking{RoomID: "1", Start: at(14, 15), End: at(14, 45)}
		for _, rule := range []OverlapRule{RuleInclusive, RuleHalfOpen} {
			if got := DetectConflicts(rule, existing, candidate); len(got) != 1 {
				t.Fatalf("rule %s: expected 1 conflict, got %d", rule, len(got))
			}
		}
	})

	t.Run("cancelled bookings and other rooms are ignored", func(t *testing.T) {
		others := []Booking{
			{ID: "b", RoomID: "1", Start: at(9, 0), End: at(10, 0), Status: StatusCancelled},
			{ID: "c", RoomID: "2", Start: at(9, 0), End: at(10, 0), Status: StatusScheduled},
		}
		conflicts := DetectConflicts(RuleInclusive, others, Booking{RoomID: "1", Start: at(9, 0), End: at(10, 0)})
		if len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %v", conflicts)
		}
	})

	t.Run("candidate does not conflict with itself", func(t *testing.T) {
		conflicts := DetectConflicts(RuleInclusive, existing, Booking{ID: "a", RoomID: "1", Start: at(14, 0), End: at(15, 30)})
		if len(conflicts) != 0 {
			t.Fatalf("expected no conflicts when editing the same booking, got %v", conflicts)
		}
	})
}

func TestIsAvailable(t *testing.T) {
	existing := []Booking{
		{ID: "a", RoomID: "1", Start: at(14, 0), End: at(15, 0), Status: StatusInProgress},
	}

	if IsAvailable(RuleInclusive, existing, "1", at(14, 30), at(15, 30)) {
		t.Fatalf("expected room to be unavailable for overlapping interval")
	}
	if IsAvailable(RuleInclusive, existing, "1", at(15, 0), at(16, 0)) {
		t.Fatalf("expected room to be unavailable for touching interval")
	}
	if !IsAvailable(RuleInclusive, existing, "1", at(15, 1), at(16, 0)) {
		t.Fatalf("expected room to be available after the booking")
	}
	if !IsAvailable(RuleInclusive, existing, "2", at(14, 0), at(15, 0)) {
		t.Fatalf("expected other room to be available")
	}
}

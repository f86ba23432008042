package testfixtures

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	t.Run("defaults to reference time", func(t *testing.T) {
		if got := NewClock(time.Time{}).Now(); !got.Equal(ReferenceTime()) {
			t.Fatalf("expected ReferenceTime, got %v", got)
		}
	})

	t.Run("advance and set", func(t *testing.T) {
		start := time.Date(2024, time.March, 14, 9, 26, 0, 0, time.UTC)
		clock := NewClock(start)

		if got := clock.Advance(90 * time.Minute); !got.Equal(start.Add(90 * time.Minute)) {
			t.Fatalf("advance returned %v", got)
		}
		clock.Set(start)
		if got := clock.Now(); !got.Equal(start) {
			t.Fatalf("expected %v, got %v", start, got)
		}
	})

	t.Run("now func follows the clock", func(t *testing.T) {
		clock := NewClock(time.Time{})
		now := clock.NowFunc()
		clock.Advance(time.Minute)
		if got := now(); !got.Equal(ReferenceTime().Add(time.Minute)) {
			t.Fatalf("expected advanced time, got %v", got)
		}
	})
}

func TestIDGenerator(t *testing.T) {
	gen := NewIDGenerator("")
	if first, second := gen.Next(), gen.Next(); first != "id-0001" || second != "id-0002" {
		t.Fatalf("unexpected sequence %q %q", first, second)
	}
	gen.Reset()
	if got := gen.NextFunc()(); got != "id-0001" {
		t.Fatalf("expected reset sequence, got %q", got)
	}
}

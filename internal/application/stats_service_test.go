package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/salafacil/salafacil/internal/scheduler"
)

type statsRepoStub struct {
	calls       int
	loginsSince time.Time
	stats       Stats
	err         error
}

func (r *statsRepoStub) LoadStats(ctx context.Context, loginsSince time.Time) (Stats, error) {
	r.calls++
	r.loginsSince = loginsSince
	return r.stats, r.err
}

type auditReaderStub []AuditEntry

func (a auditReaderStub) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	return a, nil
}

func TestStatsService(t *testing.T) {
	current := time.Date(2024, time.July, 22, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	t.Run("requires administrators", func(t *testing.T) {
		svc := NewStatsService(&statsRepoStub{}, nil, clock)
		if _, err := svc.Stats(context.Background(), userPrincipal); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if _, err := svc.ListAuditLog(context.Background(), userPrincipal); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("caches counters for thirty seconds", func(t *testing.T) {
		repo := &statsRepoStub{stats: Stats{TotalUsers: 3, ReservationsByStatus: map[scheduler.Status]int{scheduler.StatusScheduled: 2}}}
		svc := NewStatsService(repo, nil, clock)

		first, err := svc.Stats(context.Background(), adminPrincipal)
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if !repo.loginsSince.Equal(current.Add(-7 * 24 * time.Hour)) {
			t.Fatalf("unexpected login window %s", repo.loginsSince)
		}
		first.ReservationsByStatus[scheduler.StatusScheduled] = 99

		second, _ := svc.Stats(context.Background(), adminPrincipal)
		if repo.calls != 1 {
			t.Fatalf("expected cached result, repository called %d times", repo.calls)
		}
		if second.ReservationsByStatus[scheduler.StatusScheduled] != 2 {
			t.Fatalf("expected cache to return an independent copy")
		}

		current = current.Add(31 * time.Second)
		if _, err := svc.Stats(context.Background(), adminPrincipal); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if repo.calls != 2 {
			t.Fatalf("expected refresh after expiry, repository called %d times", repo.calls)
		}

		svc.InvalidateStats()
		_, _ = svc.Stats(context.Background(), adminPrincipal)
		if repo.calls != 3 {
			t.Fatalf("expected refresh after invalidation, repository called %d times", repo.calls)
		}
	})

	t.Run("errors are not cached", func(t *testing.T) {
		repo := &statsRepoStub{err: errors.New("boom")}
		svc := NewStatsService(repo, nil, clock)
		for i := 0; i < 2; i++ {
			if _, err := svc.Stats(context.Background(), adminPrincipal); err == nil {
				t.Fatalf("expected error")
			}
		}
		if repo.calls != 2 {
			t.Fatalf("expected two repository calls, got %d", repo.calls)
		}
	})

	t.Run("audit log is newest first", func(t *testing.T) {
		entries := auditReaderStub{
			{ID: "a", Action: AuditBlockUser, CreatedAt: current},
			{ID: "b", Action: AuditDeleteUser, CreatedAt: current.Add(time.Minute)},
		}
		svc := NewStatsService(nil, entries, clock)
		list, err := svc.ListAuditLog(context.Background(), adminPrincipal)
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if len(list) != 2 || list[0].ID != "b" {
			t.Fatalf("unexpected order %+v", list)
		}
	})
}

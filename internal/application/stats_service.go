package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

const (
	recentLoginWindow = 7 * 24 * time.Hour
	auditListLimit    = 100
)

// StatsRepository aggregates dashboard counters.
type StatsRepository interface {
	LoadStats(ctx context.Context, loginsSince time.Time) (Stats, error)
}

// AuditReader lists administrative log entries, newest first.
type AuditReader interface {
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

// StatsService serves the administrative dashboard.
type StatsService struct {
	stats  StatsRepository
	audit  AuditReader
	cache  *statsCache
	now    func() time.Time
	logger *slog.Logger
}

// NewStatsService wires dependencies for dashboard queries.
func NewStatsService(stats StatsRepository, audit AuditReader, now func() time.Time) *StatsService {
	return NewStatsServiceWithLogger(stats, audit, now, nil)
}

// NewStatsServiceWithLogger wires dependencies with a specific logger.
func NewStatsServiceWithLogger(stats StatsRepository, audit AuditReader, now func() time.Time, logger *slog.Logger) *StatsService {
	if now == nil {
		now = time.Now
	}
	return &StatsService{
		stats:  stats,
		audit:  audit,
		cache:  newStatsCache(30*time.Second, now),
		now:    now,
		logger: defaultLogger(logger),
	}
}

func (s *StatsService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "StatsService", operation, attrs...)
}

// Stats returns the dashboard counters, served from cache for a short while.
func (s *StatsService) Stats(ctx context.Context, principal Principal) (stats Stats, err error) {
	if s == nil {
		err = fmt.Errorf("StatsService is nil")
		return
	}
	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if cached, ok := s.cache.Get(); ok {
		return cached, nil
	}
	if s.stats == nil {
		err = fmt.Errorf("stats repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Stats", "principal_id", principal.UserID)
	now := s.now()
	stats, err = s.stats.LoadStats(ctx, now.Add(-recentLoginWindow))
	if err != nil {
		logger.ErrorContext(ctx, "failed to load stats", "error", err, "error_kind", ErrorKind(err))
		return Stats{}, err
	}
	stats.GeneratedAt = now
	s.cache.Store(stats)
	logger.InfoContext(ctx, "stats computed", "total_users", stats.TotalUsers, "total_rooms", stats.TotalRooms)
	return stats, nil
}

// InvalidateStats drops the cached counters.
func (s *StatsService) InvalidateStats() {
	if s == nil {
		return
	}
	s.cache.Invalidate()
}

// ListAuditLog returns the latest administrative actions.
func (s *StatsService) ListAuditLog(ctx context.Context, principal Principal) ([]AuditEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("StatsService is nil")
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if s.audit == nil {
		return nil, nil
	}

	entries, err := s.audit.ListAudit(ctx, auditListLimit)
	if err != nil {
		s.loggerWith(ctx, "ListAuditLog", "principal_id", principal.UserID).
			ErrorContext(ctx, "failed to list audit log", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	out := make([]AuditEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > auditListLimit {
		out = out[:auditListLimit]
	}
	return out, nil
}

package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/salafacil/salafacil/internal/persistence"
)

const sessionColumns = `id, usuario_id, token_hash, expires_at, revoked_at, created_at, updated_at`

// CreateSession stores a refresh session.
func (s *Store) CreateSession(ctx context.Context, session persistence.Session) error {
	query := `INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		session.ID,
		session.UserID,
		session.TokenHash,
		utc(session.ExpiresAt),
		utcPtr(session.RevokedAt),
		utc(session.CreatedAt),
		utc(session.UpdatedAt),
	)
	return mapError(err)
}

// GetSessionByTokenHash retrieves a session by the hash of its token.
func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (persistence.Session, error) {
	var session persistence.Session
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE token_hash = ?`
	if err := s.db.GetContext(ctx, &session, s.rebind(query), tokenHash); err != nil {
		return persistence.Session{}, mapError(err)
	}
	return session, nil
}

// RevokeSession marks an active session as revoked. Revoking twice reports ErrNotFound.
func (s *Store) RevokeSession(ctx context.Context, tokenHash string, revokedAt time.Time) (persistence.Session, error) {
	var session persistence.Session
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE sessions SET revoked_at = ?, updated_at = ? WHERE token_hash = ? AND revoked_at IS NULL`),
			utc(revokedAt), utc(revokedAt), tokenHash,
		)
		if err != nil {
			return mapError(err)
		}
		if err := expectOne(res); err != nil {
			return err
		}
		query := `SELECT ` + sessionColumns + ` FROM sessions WHERE token_hash = ?`
		return mapError(tx.GetContext(ctx, &session, tx.Rebind(query), tokenHash))
	})
	if err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}

// DeleteExpiredSessions drops sessions that expired at or before reference.
func (s *Store) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE expires_at <= ?`), utc(reference))
	return mapError(err)
}

const notificationColumns = `id, usuario_id, title, message, type, lida, created_at`

// CreateNotifications stores a batch of notifications atomically.
func (s *Store) CreateNotifications(ctx context.Context, notifications []persistence.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return mapError(err)
		}
		defer stmt.Close()

		for _, n := range notifications {
			if _, err := stmt.ExecContext(ctx, n.ID, n.UserID, n.Title, n.Message, n.Type, n.Read, utc(n.CreatedAt)); err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// ListNotifications returns a user's newest notifications.
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]persistence.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE usuario_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	notifications := []persistence.Notification{}
	if err := s.db.SelectContext(ctx, &notifications, s.rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	return notifications, nil
}

// MarkNotificationRead flags a notification owned by userID as read.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string) error {
	return s.execOne(ctx, `UPDATE notifications SET lida = ? WHERE id = ? AND usuario_id = ?`, true, id, userID)
}

const auditColumns = `id, admin_id, action, target_user_id, details, created_at`

// AppendAudit records an administrative action.
func (s *Store) AppendAudit(ctx context.Context, entry persistence.AuditEntry) error {
	query := `INSERT INTO admin_logs (` + auditColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		entry.ID,
		entry.AdminID,
		entry.Action,
		entry.TargetUserID,
		entry.Details,
		utc(entry.CreatedAt),
	)
	return mapError(err)
}

// ListAudit returns the newest entries first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]persistence.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM admin_logs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	entries := []persistence.AuditEntry{}
	if err := s.db.SelectContext(ctx, &entries, s.rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

package sqlstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/salafacil/salafacil/internal/persistence"
)

const reservationColumns = `id, titulo, descricao, sala_id, usuario_id, data_inicio, data_fim, status,
	participantes, cancelado_em, created_at, updated_at`

// CreateReservation locks the room, runs guard against its non-cancelled
// reservations and inserts the reservation in one transaction.
func (s *Store) CreateReservation(ctx context.Context, reservation persistence.Reservation, guard persistence.ReservationGuard) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.checkRoomSchedule(ctx, tx, reservation.RoomID, guard); err != nil {
			return err
		}

		query := `INSERT INTO agendamentos (` + reservationColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := tx.ExecContext(ctx, tx.Rebind(query),
			reservation.ID,
			reservation.Title,
			reservation.Description,
			reservation.RoomID,
			reservation.UserID,
			utc(reservation.Start),
			utc(reservation.End),
			reservation.Status,
			reservation.Participants,
			utcPtr(reservation.CancelledAt),
			utc(reservation.CreatedAt),
			utc(reservation.UpdatedAt),
		)
		return mapError(err)
	})
}

// UpdateReservation rewrites a reservation, status included, whose stored
// status still equals expected. The guard runs under the same room lock as
// the write.
func (s *Store) UpdateReservation(ctx context.Context, reservation persistence.Reservation, expected string, guard persistence.ReservationGuard) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var current string
		if err := tx.GetContext(ctx, &current, tx.Rebind(`SELECT status FROM agendamentos WHERE id = ?`+s.forUpdate()), reservation.ID); err != nil {
			return mapError(err)
		}
		if current != expected {
			return persistence.ErrStaleStatus
		}

		if err := s.checkRoomSchedule(ctx, tx, reservation.RoomID, guard); err != nil {
			return err
		}

		query := `UPDATE agendamentos
			SET titulo = ?, descricao = ?, sala_id = ?, usuario_id = ?, data_inicio = ?, data_fim = ?,
				status = ?, participantes = ?, cancelado_em = ?, updated_at = ?
			WHERE id = ? AND status = ?`
		res, err := tx.ExecContext(ctx, tx.Rebind(query),
			reservation.Title,
			reservation.Description,
			reservation.RoomID,
			reservation.UserID,
			utc(reservation.Start),
			utc(reservation.End),
			reservation.Status,
			reservation.Participants,
			utcPtr(reservation.CancelledAt),
			utc(reservation.UpdatedAt),
			reservation.ID,
			expected,
		)
		if err != nil {
			return mapError(err)
		}
		if err := expectOne(res); err != nil {
			return persistence.ErrStaleStatus
		}
		return nil
	})
}

// checkRoomSchedule locks the room row on Postgres and hands the room's
// non-cancelled reservations to guard.
func (s *Store) checkRoomSchedule(ctx context.Context, tx *sqlx.Tx, roomID string, guard persistence.ReservationGuard) error {
	if s.dialect == DialectPostgres {
		var locked string
		err := tx.GetContext(ctx, &locked, tx.Rebind(`SELECT id FROM salas WHERE id = ? FOR UPDATE`), roomID)
		if err != nil {
			mapped := mapError(err)
			if errors.Is(mapped, persistence.ErrNotFound) {
				return persistence.ErrForeignKeyViolation
			}
			return mapped
		}
	}
	if guard == nil {
		return nil
	}

	existing := []persistence.Reservation{}
	query := `SELECT ` + reservationColumns + ` FROM agendamentos WHERE sala_id = ? AND status <> ? ORDER BY data_inicio, id`
	if err := tx.SelectContext(ctx, &existing, tx.Rebind(query), roomID, persistence.StatusCancelled); err != nil {
		return mapError(err)
	}
	return guard(existing)
}

func (s *Store) forUpdate() string {
	if s.dialect == DialectPostgres {
		return ` FOR UPDATE`
	}
	return ""
}

// GetReservation retrieves a reservation by ID.
func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	var reservation persistence.Reservation
	query := `SELECT ` + reservationColumns + ` FROM agendamentos WHERE id = ?`
	if err := s.db.GetContext(ctx, &reservation, s.rebind(query), id); err != nil {
		return persistence.Reservation{}, mapError(err)
	}
	return reservation, nil
}

// ListReservations returns reservations matching filter ordered by start.
func (s *Store) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.RoomID != "" {
		clauses = append(clauses, "sala_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.UserID != "" {
		clauses = append(clauses, "usuario_id = ?")
		args = append(args, filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN (?)")
		args = append(args, filter.Statuses)
	}
	if filter.StartsBefore != nil {
		clauses = append(clauses, "data_inicio <= ?")
		args = append(args, utc(*filter.StartsBefore))
	}
	if filter.EndsAfter != nil {
		clauses = append(clauses, "data_fim >= ?")
		args = append(args, utc(*filter.EndsAfter))
	}

	query := `SELECT ` + reservationColumns + ` FROM agendamentos`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY data_inicio, id`

	if len(filter.Statuses) > 0 {
		var err error
		query, args, err = sqlx.In(query, args...)
		if err != nil {
			return nil, err
		}
	}

	reservations := []persistence.Reservation{}
	if err := s.db.SelectContext(ctx, &reservations, s.rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	return reservations, nil
}

// TransitionReservationStatus moves a reservation from one status to another
// only if it is still in from.
func (s *Store) TransitionReservationStatus(ctx context.Context, id, from, to string, at time.Time) error {
	var cancelledAt *time.Time
	if to == persistence.StatusCancelled {
		cancelledAt = utcPtr(&at)
	}

	query := `UPDATE agendamentos
		SET status = ?, updated_at = ?, cancelado_em = COALESCE(?, cancelado_em)
		WHERE id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, s.rebind(query), to, utc(at), cancelledAt, id, from)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Nothing changed: tell a missing row apart from a lost race.
	if _, err := s.GetReservation(ctx, id); err != nil {
		return err
	}
	return persistence.ErrStaleStatus
}

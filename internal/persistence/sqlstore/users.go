package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/salafacil/salafacil/internal/persistence"
)

const userColumns = `id, username, email, nome, telefone, password_hash, role, status,
	department_id, google_id, last_login_at, blocked_at, created_at, updated_at`

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, user persistence.User) error {
	query := `INSERT INTO usuarios (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		user.ID,
		user.Username,
		user.Email,
		user.Name,
		user.Phone,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.DepartmentID,
		user.GoogleID,
		utcPtr(user.LastLoginAt),
		utcPtr(user.BlockedAt),
		utc(user.CreatedAt),
		utc(user.UpdatedAt),
	)
	return mapError(err)
}

// UpdateUser replaces every mutable column of an existing user.
func (s *Store) UpdateUser(ctx context.Context, user persistence.User) error {
	query := `UPDATE usuarios
		SET username = ?, email = ?, nome = ?, telefone = ?, password_hash = ?, role = ?, status = ?,
			department_id = ?, google_id = ?, last_login_at = ?, blocked_at = ?, updated_at = ?
		WHERE id = ?`

	return s.execOne(ctx, query,
		user.Username,
		user.Email,
		user.Name,
		user.Phone,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.DepartmentID,
		user.GoogleID,
		utcPtr(user.LastLoginAt),
		utcPtr(user.BlockedAt),
		utc(user.UpdatedAt),
		user.ID,
	)
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return s.getUser(ctx, `WHERE lower(email) = ?`, strings.ToLower(strings.TrimSpace(email)))
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	return s.getUser(ctx, `WHERE username = ?`, username)
}

// GetUserByGoogleID retrieves the user linked to a Google subject.
func (s *Store) GetUserByGoogleID(ctx context.Context, googleID string) (persistence.User, error) {
	return s.getUser(ctx, `WHERE google_id = ?`, googleID)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (persistence.User, error) {
	var user persistence.User
	query := `SELECT ` + userColumns + ` FROM usuarios ` + where
	if err := s.db.GetContext(ctx, &user, s.rebind(query), arg); err != nil {
		return persistence.User{}, mapError(err)
	}
	return user, nil
}

// ListUsers returns users ordered by creation time.
func (s *Store) ListUsers(ctx context.Context, filter persistence.UserFilter) ([]persistence.User, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Role != "" {
		clauses = append(clauses, "role = ?")
		args = append(args, filter.Role)
	}
	if filter.DepartmentID != "" {
		clauses = append(clauses, "department_id = ?")
		args = append(args, filter.DepartmentID)
	}

	query := `SELECT ` + userColumns + ` FROM usuarios`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at, id`

	users := []persistence.User{}
	if err := s.db.SelectContext(ctx, &users, s.rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	return users, nil
}

// DeleteUser removes a user. Users that own reservations are protected by
// the foreign key.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM usuarios WHERE id = ?`, id)
}

// SetUserPassword replaces the stored password hash.
func (s *Store) SetUserPassword(ctx context.Context, id, passwordHash string) error {
	return s.execOne(ctx, `UPDATE usuarios SET password_hash = ? WHERE id = ?`, passwordHash, id)
}

// TouchLastLogin records a successful sign-in.
func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, `UPDATE usuarios SET last_login_at = ? WHERE id = ?`, utc(at), id)
}

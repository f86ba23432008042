package persistence

import (
	"context"
	"time"
)

// UserFilter narrows user listings. Empty fields match everything.
type UserFilter struct {
	Status       string
	Role         string
	DepartmentID string
}

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
	SetUserPassword(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// DepartmentRepository exposes CRUD operations for departments.
type DepartmentRepository interface {
	CreateDepartment(ctx context.Context, department Department) error
	UpdateDepartment(ctx context.Context, department Department) error
	GetDepartment(ctx context.Context, id string) (Department, error)
	ListDepartments(ctx context.Context) ([]Department, error)
	DeleteDepartment(ctx context.Context, id string) error
}

// LocationRepository exposes CRUD operations for locations.
type LocationRepository interface {
	CreateLocation(ctx context.Context, location Location) error
	UpdateLocation(ctx context.Context, location Location) error
	GetLocation(ctx context.Context, id string) (Location, error)
	ListLocations(ctx context.Context, activeOnly bool) ([]Location, error)
	DeleteLocation(ctx context.Context, id string) error
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// ReservationFilter narrows reservation queries. A reservation matches the
// time window when it overlaps [EndsAfter, StartsBefore].
type ReservationFilter struct {
	RoomID       string
	UserID       string
	Statuses     []string
	StartsBefore *time.Time
	EndsAfter    *time.Time
}

// ReservationGuard inspects the non-cancelled reservations of the target room
// before a write is applied. Returning an error aborts the write.
type ReservationGuard func(existing []Reservation) error

// ReservationRepository stores reservations. Create and Update run the guard
// and the write as a single atomic step per room. UpdateReservation writes the
// whole row, status included, only while the stored status equals expected.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation, guard ReservationGuard) error
	UpdateReservation(ctx context.Context, reservation Reservation, expected string, guard ReservationGuard) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	TransitionReservationStatus(ctx context.Context, id, from, to string, at time.Time) error
}

// SessionRepository stores refresh token sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error)
	RevokeSession(ctx context.Context, tokenHash string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	CreateNotifications(ctx context.Context, notifications []Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
}

// AuditRepository stores the administrative action log.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

// Store aggregates every repository implemented by a backend.
type Store interface {
	UserRepository
	DepartmentRepository
	LocationRepository
	RoomRepository
	ReservationRepository
	SessionRepository
	NotificationRepository
	AuditRepository
	Close() error
}

package bootstrap

import (
	"context"
	"strings"
	"time"

	"github.com/salafacil/salafacil/internal/application"
	"github.com/salafacil/salafacil/internal/persistence"
	"github.com/salafacil/salafacil/internal/scheduler"
)

// userRepositoryAdapter serves the user, credential and recipient contracts
// of the application layer from one persistence.UserRepository.
type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	var hash *string
	if passwordHash != "" {
		hash = &passwordHash
	}
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, hash)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

// UpdateUser keeps the stored password hash; passwords change only through SetPasswordHash.
func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	current, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, current.PasswordHash)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) SetPasswordHash(ctx context.Context, id, passwordHash string) error {
	return a.repo.SetUserPassword(ctx, id, passwordHash)
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context, filter application.UserFilter) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx, persistence.UserFilter{
		Status:       string(filter.Status),
		Role:         string(filter.Role),
		DepartmentID: filter.DepartmentID,
	})
	if err != nil {
		return nil, err
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

func (a *userRepositoryAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return application.UserCredentials{}, err
	}
	return toCredentials(stored), nil
}

func (a *userRepositoryAdapter) GetUserCredentialsByUsername(ctx context.Context, username string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return application.UserCredentials{}, err
	}
	return toCredentials(stored), nil
}

func (a *userRepositoryAdapter) GetUserByGoogleID(ctx context.Context, googleID string) (application.User, error) {
	stored, err := a.repo.GetUserByGoogleID(ctx, googleID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return a.repo.TouchLastLogin(ctx, id, at)
}

func toCredentials(stored persistence.User) application.UserCredentials {
	creds := application.UserCredentials{User: toApplicationUser(stored)}
	if stored.PasswordHash != nil {
		creds.PasswordHash = *stored.PasswordHash
	}
	return creds
}

type auditAdapter struct {
	repo persistence.AuditRepository
}

func (a *auditAdapter) AppendAudit(ctx context.Context, entry application.AuditEntry) error {
	return a.repo.AppendAudit(ctx, toPersistenceAuditEntry(entry))
}

func (a *auditAdapter) ListAudit(ctx context.Context, limit int) ([]application.AuditEntry, error) {
	models, err := a.repo.ListAudit(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]application.AuditEntry, 0, len(models))
	for _, model := range models {
		entries = append(entries, toApplicationAuditEntry(model))
	}
	return entries, nil
}

type departmentRepositoryAdapter struct {
	repo persistence.DepartmentRepository
}

func (a *departmentRepositoryAdapter) CreateDepartment(ctx context.Context, department application.Department) (application.Department, error) {
	if err := a.repo.CreateDepartment(ctx, toPersistenceDepartment(department)); err != nil {
		return application.Department{}, err
	}
	return a.GetDepartment(ctx, department.ID)
}

func (a *departmentRepositoryAdapter) GetDepartment(ctx context.Context, id string) (application.Department, error) {
	stored, err := a.repo.GetDepartment(ctx, id)
	if err != nil {
		return application.Department{}, err
	}
	return toApplicationDepartment(stored), nil
}

func (a *departmentRepositoryAdapter) UpdateDepartment(ctx context.Context, department application.Department) (application.Department, error) {
	if err := a.repo.UpdateDepartment(ctx, toPersistenceDepartment(department)); err != nil {
		return application.Department{}, err
	}
	return a.GetDepartment(ctx, department.ID)
}

func (a *departmentRepositoryAdapter) DeleteDepartment(ctx context.Context, id string) error {
	return a.repo.DeleteDepartment(ctx, id)
}

func (a *departmentRepositoryAdapter) ListDepartments(ctx context.Context) ([]application.Department, error) {
	models, err := a.repo.ListDepartments(ctx)
	if err != nil {
		return nil, err
	}
	departments := make([]application.Department, 0, len(models))
	for _, model := range models {
		departments = append(departments, toApplicationDepartment(model))
	}
	return departments, nil
}

type locationRepositoryAdapter struct {
	repo persistence.LocationRepository
}

func (a *locationRepositoryAdapter) CreateLocation(ctx context.Context, location application.Location) (application.Location, error) {
	if err := a.repo.CreateLocation(ctx, toPersistenceLocation(location)); err != nil {
		return application.Location{}, err
	}
	return a.GetLocation(ctx, location.ID)
}

func (a *locationRepositoryAdapter) GetLocation(ctx context.Context, id string) (application.Location, error) {
	stored, err := a.repo.GetLocation(ctx, id)
	if err != nil {
		return application.Location{}, err
	}
	return toApplicationLocation(stored), nil
}

func (a *locationRepositoryAdapter) UpdateLocation(ctx context.Context, location application.Location) (application.Location, error) {
	if err := a.repo.UpdateLocation(ctx, toPersistenceLocation(location)); err != nil {
		return application.Location{}, err
	}
	return a.GetLocation(ctx, location.ID)
}

func (a *locationRepositoryAdapter) DeleteLocation(ctx context.Context, id string) error {
	return a.repo.DeleteLocation(ctx, id)
}

func (a *locationRepositoryAdapter) ListLocations(ctx context.Context, activeOnly bool) ([]application.Location, error) {
	models, err := a.repo.ListLocations(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	locations := make([]application.Location, 0, len(models))
	for _, model := range models {
		locations = append(locations, toApplicationLocation(model))
	}
	return locations, nil
}

type roomRepositoryAdapter struct {
	repo persistence.RoomRepository
}

func (a *roomRepositoryAdapter) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepositoryAdapter) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepositoryAdapter) DeleteRoom(ctx context.Context, id string) error {
	return a.repo.DeleteRoom(ctx, id)
}

func (a *roomRepositoryAdapter) ListRooms(ctx context.Context) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

type reservationRepositoryAdapter struct {
	repo persistence.ReservationRepository
}

func (a *reservationRepositoryAdapter) CreateReservation(ctx context.Context, reservation application.Reservation, guard application.ReservationGuard) (application.Reservation, error) {
	if err := a.repo.CreateReservation(ctx, toPersistenceReservation(reservation), adaptGuard(guard)); err != nil {
		return application.Reservation{}, err
	}
	return a.GetReservation(ctx, reservation.ID)
}

func (a *reservationRepositoryAdapter) UpdateReservation(ctx context.Context, reservation application.Reservation, expected scheduler.Status, guard application.ReservationGuard) (application.Reservation, error) {
	if err := a.repo.UpdateReservation(ctx, toPersistenceReservation(reservation), string(expected), adaptGuard(guard)); err != nil {
		return application.Reservation{}, err
	}
	return a.GetReservation(ctx, reservation.ID)
}

func (a *reservationRepositoryAdapter) GetReservation(ctx context.Context, id string) (application.Reservation, error) {
	stored, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, err
	}
	return toApplicationReservation(stored), nil
}

func (a *reservationRepositoryAdapter) ListReservations(ctx context.Context, filter application.ReservationRepositoryFilter) ([]application.Reservation, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}
	models, err := a.repo.ListReservations(ctx, persistence.ReservationFilter{
		RoomID:       filter.RoomID,
		UserID:       filter.UserID,
		Statuses:     statuses,
		StartsBefore: cloneTime(filter.StartsBefore),
		EndsAfter:    cloneTime(filter.EndsAfter),
	})
	if err != nil {
		return nil, err
	}
	return toApplicationReservations(models), nil
}

func (a *reservationRepositoryAdapter) TransitionReservationStatus(ctx context.Context, id string, from, to scheduler.Status, at time.Time) error {
	return a.repo.TransitionReservationStatus(ctx, id, string(from), string(to), at)
}

func adaptGuard(guard application.ReservationGuard) persistence.ReservationGuard {
	if guard == nil {
		return nil
	}
	return func(existing []persistence.Reservation) error {
		return guard(toApplicationReservations(existing))
	}
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	if err := a.repo.CreateSession(ctx, toPersistenceSession(session)); err != nil {
		return application.Session{}, err
	}
	return session, nil
}

func (a *sessionRepositoryAdapter) GetSessionByTokenHash(ctx context.Context, tokenHash string) (application.Session, error) {
	stored, err := a.repo.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, tokenHash string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, tokenHash, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

type notificationRepositoryAdapter struct {
	repo persistence.NotificationRepository
}

func (a *notificationRepositoryAdapter) CreateNotifications(ctx context.Context, notifications []application.Notification) error {
	models := make([]persistence.Notification, 0, len(notifications))
	for _, n := range notifications {
		models = append(models, toPersistenceNotification(n))
	}
	return a.repo.CreateNotifications(ctx, models)
}

func (a *notificationRepositoryAdapter) ListNotifications(ctx context.Context, userID string, limit int) ([]application.Notification, error) {
	models, err := a.repo.ListNotifications(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]application.Notification, 0, len(models))
	for _, model := range models {
		out = append(out, toApplicationNotification(model))
	}
	return out, nil
}

func (a *notificationRepositoryAdapter) MarkNotificationRead(ctx context.Context, id, userID string) error {
	return a.repo.MarkNotificationRead(ctx, id, userID)
}

// statsRepositoryAdapter derives dashboard counters from the list queries.
type statsRepositoryAdapter struct {
	store persistence.Store
}

func (a *statsRepositoryAdapter) LoadStats(ctx context.Context, loginsSince time.Time) (application.Stats, error) {
	users, err := a.store.ListUsers(ctx, persistence.UserFilter{})
	if err != nil {
		return application.Stats{}, err
	}
	departments, err := a.store.ListDepartments(ctx)
	if err != nil {
		return application.Stats{}, err
	}
	rooms, err := a.store.ListRooms(ctx)
	if err != nil {
		return application.Stats{}, err
	}
	reservations, err := a.store.ListReservations(ctx, persistence.ReservationFilter{})
	if err != nil {
		return application.Stats{}, err
	}

	stats := application.Stats{
		TotalUsers:       len(users),
		TotalDepartments: len(departments),
		TotalRooms:       len(rooms),
		ReservationsByStatus: map[scheduler.Status]int{
			scheduler.StatusScheduled:  0,
			scheduler.StatusInProgress: 0,
			scheduler.StatusCompleted:  0,
			scheduler.StatusCancelled:  0,
		},
	}
	for _, user := range users {
		switch application.UserStatus(user.Status) {
		case application.UserStatusActive:
			stats.ActiveUsers++
		case application.UserStatusBlocked:
			stats.BlockedUsers++
		}
		if application.Role(user.Role).IsAdmin() {
			stats.AdminUsers++
		}
		if user.LastLoginAt != nil && !user.LastLoginAt.Before(loginsSince) {
			stats.RecentLogins++
		}
	}
	for _, room := range rooms {
		if room.Active {
			stats.ActiveRooms++
		}
	}
	for _, reservation := range reservations {
		stats.ReservationsByStatus[scheduler.Status(reservation.Status)]++
	}
	return stats, nil
}

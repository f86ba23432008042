package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/salafacil/salafacil/internal/persistence"
)

// Storage is an in-process persistence.Store. It enforces the same unique and
// foreign key rules as the SQL schema so services behave identically on both.
type Storage struct {
	mu            sync.RWMutex
	users         map[string]persistence.User
	departments   map[string]persistence.Department
	locations     map[string]persistence.Location
	rooms         map[string]persistence.Room
	reservations  map[string]persistence.Reservation
	sessions      map[string]persistence.Session
	notifications map[string]persistence.Notification
	audit         []persistence.AuditEntry
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		users:         make(map[string]persistence.User),
		departments:   make(map[string]persistence.Department),
		locations:     make(map[string]persistence.Location),
		rooms:         make(map[string]persistence.Room),
		reservations:  make(map[string]persistence.Reservation),
		sessions:      make(map[string]persistence.Session),
		notifications: make(map[string]persistence.Notification),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- UserRepository implementation ---

// CreateUser stores a new user.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	if err := s.checkUserLocked(user); err != nil {
		return err
	}

	s.users[user.ID] = cloneUser(user)
	return nil
}

// UpdateUser replaces an existing user, including its password hash.
func (s *Storage) UpdateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.checkUserLocked(user); err != nil {
		return err
	}

	user.CreatedAt = existing.CreatedAt
	s.users[user.ID] = cloneUser(user)
	return nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return s.findUser(func(u persistence.User) bool { return u.ID == id })
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return s.findUser(func(u persistence.User) bool { return strings.EqualFold(u.Email, email) })
}

// GetUserByUsername retrieves a user by username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	return s.findUser(func(u persistence.User) bool { return u.Username == username })
}

// GetUserByGoogleID retrieves the user linked to a Google subject.
func (s *Storage) GetUserByGoogleID(ctx context.Context, googleID string) (persistence.User, error) {
	return s.findUser(func(u persistence.User) bool { return u.GoogleID != nil && *u.GoogleID == googleID })
}

// ListUsers returns users ordered by CreatedAt ascending.
func (s *Storage) ListUsers(ctx context.Context, filter persistence.UserFilter) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		if filter.Status != "" && user.Status != filter.Status {
			continue
		}
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		if filter.DepartmentID != "" && (user.DepartmentID == nil || *user.DepartmentID != filter.DepartmentID) {
			continue
		}
		users = append(users, cloneUser(user))
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})

	return users, nil
}

// DeleteUser removes a user that owns no reservations. Sessions and
// notifications go with it.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, reservation := range s.reservations {
		if reservation.UserID == id {
			return persistence.ErrForeignKeyViolation
		}
	}

	delete(s.users, id)
	for hash, session := range s.sessions {
		if session.UserID == id {
			delete(s.sessions, hash)
		}
	}
	for nid, notification := range s.notifications {
		if notification.UserID == id {
			delete(s.notifications, nid)
		}
	}
	return nil
}

// SetUserPassword replaces the stored password hash.
func (s *Storage) SetUserPassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.ErrNotFound
	}
	user.PasswordHash = &passwordHash
	s.users[id] = user
	return nil
}

// TouchLastLogin records a successful sign-in.
func (s *Storage) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.ErrNotFound
	}
	user.LastLoginAt = &at
	s.users[id] = user
	return nil
}

func (s *Storage) findUser(match func(persistence.User) bool) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if match(user) {
			return cloneUser(user), nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (s *Storage) checkUserLocked(user persistence.User) error {
	for id, existing := range s.users {
		if id == user.ID {
			continue
		}
		if strings.EqualFold(existing.Email, user.Email) || existing.Username == user.Username {
			return persistence.ErrDuplicate
		}
		if user.GoogleID != nil && existing.GoogleID != nil && *existing.GoogleID == *user.GoogleID {
			return persistence.ErrDuplicate
		}
	}
	if user.DepartmentID != nil {
		if _, ok := s.departments[*user.DepartmentID]; !ok {
			return persistence.ErrForeignKeyViolation
		}
	}
	return nil
}

// --- DepartmentRepository implementation ---

// CreateDepartment stores a new department.
func (s *Storage) CreateDepartment(ctx context.Context, department persistence.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.departments[department.ID]; ok {
		return persistence.ErrDuplicate
	}
	if err := s.checkDepartmentLocked(department); err != nil {
		return err
	}

	department.UsersCount = 0
	s.departments[department.ID] = cloneDepartment(department)
	return nil
}

// UpdateDepartment replaces an existing department.
func (s *Storage) UpdateDepartment(ctx context.Context, department persistence.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.departments[department.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.checkDepartmentLocked(department); err != nil {
		return err
	}

	department.CreatedAt = existing.CreatedAt
	department.UsersCount = 0
	s.departments[department.ID] = cloneDepartment(department)
	return nil
}

// GetDepartment retrieves a department with its user count.
func (s *Storage) GetDepartment(ctx context.Context, id string) (persistence.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	department, ok := s.departments[id]
	if !ok {
		return persistence.Department{}, persistence.ErrNotFound
	}
	department = cloneDepartment(department)
	department.UsersCount = s.countUsersLocked(id)
	return department, nil
}

// ListDepartments returns departments ordered by name.
func (s *Storage) ListDepartments(ctx context.Context) ([]persistence.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	departments := make([]persistence.Department, 0, len(s.departments))
	for id, department := range s.departments {
		department = cloneDepartment(department)
		department.UsersCount = s.countUsersLocked(id)
		departments = append(departments, department)
	}

	sort.Slice(departments, func(i, j int) bool {
		if departments[i].Name == departments[j].Name {
			return departments[i].ID < departments[j].ID
		}
		return departments[i].Name < departments[j].Name
	})
	return departments, nil
}

// DeleteDepartment removes a department no user belongs to. Child departments
// lose their parent.
func (s *Storage) DeleteDepartment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.departments[id]; !ok {
		return persistence.ErrNotFound
	}
	if s.countUsersLocked(id) > 0 {
		return persistence.ErrForeignKeyViolation
	}

	delete(s.departments, id)
	for childID, child := range s.departments {
		if child.ParentID != nil && *child.ParentID == id {
			child.ParentID = nil
			s.departments[childID] = child
		}
	}
	return nil
}

func (s *Storage) checkDepartmentLocked(department persistence.Department) error {
	for id, existing := range s.departments {
		if id != department.ID && strings.EqualFold(existing.Name, department.Name) {
			return persistence.ErrDuplicate
		}
	}
	if department.ParentID != nil {
		if *department.ParentID == department.ID {
			return persistence.ErrConstraintViolation
		}
		if _, ok := s.departments[*department.ParentID]; !ok {
			return persistence.ErrForeignKeyViolation
		}
	}
	return nil
}

func (s *Storage) countUsersLocked(departmentID string) int {
	n := 0
	for _, user := range s.users {
		if user.DepartmentID != nil && *user.DepartmentID == departmentID {
			n++
		}
	}
	return n
}

// --- LocationRepository implementation ---

// CreateLocation stores a new location.
func (s *Storage) CreateLocation(ctx context.Context, location persistence.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locations[location.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.locations[location.ID] = location
	return nil
}

// UpdateLocation replaces an existing location.
func (s *Storage) UpdateLocation(ctx context.Context, location persistence.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.locations[location.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	location.CreatedAt = existing.CreatedAt
	s.locations[location.ID] = location
	return nil
}

// GetLocation retrieves a location by ID.
func (s *Storage) GetLocation(ctx context.Context, id string) (persistence.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	location, ok := s.locations[id]
	if !ok {
		return persistence.Location{}, persistence.ErrNotFound
	}
	return location, nil
}

// ListLocations returns locations ordered by name.
func (s *Storage) ListLocations(ctx context.Context, activeOnly bool) ([]persistence.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locations := make([]persistence.Location, 0, len(s.locations))
	for _, location := range s.locations {
		if activeOnly && !location.Active {
			continue
		}
		locations = append(locations, location)
	}

	sort.Slice(locations, func(i, j int) bool {
		if locations[i].Name == locations[j].Name {
			return locations[i].ID < locations[j].ID
		}
		return locations[i].Name < locations[j].Name
	})
	return locations, nil
}

// DeleteLocation removes a location no room references.
func (s *Storage) DeleteLocation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locations[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, room := range s.rooms {
		if room.LocationID != nil && *room.LocationID == id {
			return persistence.ErrForeignKeyViolation
		}
	}
	delete(s.locations, id)
	return nil
}

// --- RoomRepository implementation ---

// CreateRoom stores a new room.
func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return persistence.ErrDuplicate
	}
	if err := s.checkRoomLocked(room); err != nil {
		return err
	}

	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

// UpdateRoom replaces an existing room.
func (s *Storage) UpdateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rooms[room.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.checkRoomLocked(room); err != nil {
		return err
	}

	room.CreatedAt = existing.CreatedAt
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return cloneRoom(room), nil
}

// ListRooms returns all rooms ordered by name.
func (s *Storage) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, cloneRoom(room))
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})
	return rooms, nil
}

// DeleteRoom removes a room that has never been booked.
func (s *Storage) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, reservation := range s.reservations {
		if reservation.RoomID == id {
			return persistence.ErrForeignKeyViolation
		}
	}
	delete(s.rooms, id)
	return nil
}

func (s *Storage) checkRoomLocked(room persistence.Room) error {
	if room.LocationID != nil {
		if _, ok := s.locations[*room.LocationID]; !ok {
			return persistence.ErrForeignKeyViolation
		}
	}
	return nil
}

// --- ReservationRepository implementation ---

// CreateReservation runs guard against the room's live reservations and
// stores the reservation under the same lock.
func (s *Storage) CreateReservation(ctx context.Context, reservation persistence.Reservation, guard persistence.ReservationGuard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[reservation.ID]; ok {
		return persistence.ErrDuplicate
	}
	if err := s.checkReservationLocked(reservation); err != nil {
		return err
	}
	if guard != nil {
		if err := guard(s.liveReservationsLocked(reservation.RoomID)); err != nil {
			return err
		}
	}

	s.reservations[reservation.ID] = cloneReservation(reservation)
	return nil
}

// UpdateReservation replaces a reservation whose stored status still equals
// expected, running guard first under the same lock.
func (s *Storage) UpdateReservation(ctx context.Context, reservation persistence.Reservation, expected string, guard persistence.ReservationGuard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.reservations[reservation.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if existing.Status != expected {
		return persistence.ErrStaleStatus
	}
	if err := s.checkReservationLocked(reservation); err != nil {
		return err
	}
	if guard != nil {
		if err := guard(s.liveReservationsLocked(reservation.RoomID)); err != nil {
			return err
		}
	}

	reservation.CreatedAt = existing.CreatedAt
	s.reservations[reservation.ID] = cloneReservation(reservation)
	return nil
}

// GetReservation retrieves a reservation by ID.
func (s *Storage) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return cloneReservation(reservation), nil
}

// ListReservations returns reservations matching filter ordered by start.
func (s *Storage) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservations := make([]persistence.Reservation, 0)
	for _, reservation := range s.reservations {
		if !matchesReservationFilter(reservation, filter) {
			continue
		}
		reservations = append(reservations, cloneReservation(reservation))
	}

	sort.Slice(reservations, func(i, j int) bool {
		if reservations[i].Start.Equal(reservations[j].Start) {
			return reservations[i].ID < reservations[j].ID
		}
		return reservations[i].Start.Before(reservations[j].Start)
	})
	return reservations, nil
}

// TransitionReservationStatus moves a reservation from one status to another
// only if it is still in from.
func (s *Storage) TransitionReservationStatus(ctx context.Context, id, from, to string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if reservation.Status != from {
		return persistence.ErrStaleStatus
	}

	reservation.Status = to
	reservation.UpdatedAt = at
	if to == persistence.StatusCancelled {
		cancelledAt := at
		reservation.CancelledAt = &cancelledAt
	}
	s.reservations[id] = reservation
	return nil
}

func (s *Storage) checkReservationLocked(reservation persistence.Reservation) error {
	if _, ok := s.rooms[reservation.RoomID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if _, ok := s.users[reservation.UserID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	if !reservation.End.After(reservation.Start) {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func (s *Storage) liveReservationsLocked(roomID string) []persistence.Reservation {
	live := make([]persistence.Reservation, 0)
	for _, reservation := range s.reservations {
		if reservation.RoomID == roomID && reservation.Status != persistence.StatusCancelled {
			live = append(live, cloneReservation(reservation))
		}
	}
	return live
}

// --- SessionRepository implementation ---

// CreateSession stores a refresh session keyed by its token hash.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.TokenHash]; ok {
		return persistence.ErrDuplicate
	}
	if _, ok := s.users[session.UserID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	s.sessions[session.TokenHash] = cloneSession(session)
	return nil
}

// GetSessionByTokenHash retrieves a session by the hash of its token.
func (s *Storage) GetSessionByTokenHash(ctx context.Context, tokenHash string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[tokenHash]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return cloneSession(session), nil
}

// RevokeSession marks an active session as revoked. Revoking twice reports ErrNotFound.
func (s *Storage) RevokeSession(ctx context.Context, tokenHash string, revokedAt time.Time) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[tokenHash]
	if !ok || session.RevokedAt != nil {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	session.UpdatedAt = revokedAt
	s.sessions[tokenHash] = session
	return cloneSession(session), nil
}

// DeleteExpiredSessions drops sessions that expired at or before reference.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, session := range s.sessions {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessions, hash)
		}
	}
	return nil
}

// --- NotificationRepository implementation ---

// CreateNotifications stores a batch of notifications atomically.
func (s *Storage) CreateNotifications(ctx context.Context, notifications []persistence.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, notification := range notifications {
		if _, ok := s.notifications[notification.ID]; ok {
			return persistence.ErrDuplicate
		}
		if _, ok := s.users[notification.UserID]; !ok {
			return persistence.ErrForeignKeyViolation
		}
	}
	for _, notification := range notifications {
		s.notifications[notification.ID] = notification
	}
	return nil
}

// ListNotifications returns a user's newest notifications.
func (s *Storage) ListNotifications(ctx context.Context, userID string, limit int) ([]persistence.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Notification, 0)
	for _, notification := range s.notifications {
		if notification.UserID == userID {
			out = append(out, notification)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkNotificationRead flags a notification owned by userID as read.
func (s *Storage) MarkNotificationRead(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification, ok := s.notifications[id]
	if !ok || notification.UserID != userID {
		return persistence.ErrNotFound
	}
	notification.Read = true
	s.notifications[id] = notification
	return nil
}

// --- AuditRepository implementation ---

// AppendAudit records an administrative action.
func (s *Storage) AppendAudit(ctx context.Context, entry persistence.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, entry)
	return nil
}

// ListAudit returns the newest entries first.
func (s *Storage) ListAudit(ctx context.Context, limit int) ([]persistence.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.audit)
	slices.Reverse(out)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Helpers ---

func cloneUser(user persistence.User) persistence.User {
	user.PasswordHash = cloneString(user.PasswordHash)
	user.DepartmentID = cloneString(user.DepartmentID)
	user.GoogleID = cloneString(user.GoogleID)
	user.LastLoginAt = cloneTime(user.LastLoginAt)
	user.BlockedAt = cloneTime(user.BlockedAt)
	return user
}

func cloneDepartment(department persistence.Department) persistence.Department {
	department.ParentID = cloneString(department.ParentID)
	return department
}

func cloneRoom(room persistence.Room) persistence.Room {
	room.LocationID = cloneString(room.LocationID)
	room.Resources = slices.Clone(room.Resources)
	return room
}

func cloneReservation(reservation persistence.Reservation) persistence.Reservation {
	reservation.CancelledAt = cloneTime(reservation.CancelledAt)
	return reservation
}

func cloneSession(session persistence.Session) persistence.Session {
	session.RevokedAt = cloneTime(session.RevokedAt)
	return session
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copy := *value
	return &copy
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copy := *value
	return &copy
}

func matchesReservationFilter(reservation persistence.Reservation, filter persistence.ReservationFilter) bool {
	if filter.RoomID != "" && reservation.RoomID != filter.RoomID {
		return false
	}
	if filter.UserID != "" && reservation.UserID != filter.UserID {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, reservation.Status) {
		return false
	}
	if filter.StartsBefore != nil && reservation.Start.After(*filter.StartsBefore) {
		return false
	}
	if filter.EndsAfter != nil && reservation.End.Before(*filter.EndsAfter) {
		return false
	}
	return true
}

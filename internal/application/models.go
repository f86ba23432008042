package application

import (
	"time"

	"github.com/salafacil/salafacil/internal/scheduler"
)

// Role determines what a user may do.
type Role string

const (
	RoleUser       Role = "user"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role grants administrative privileges.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// UserStatus is the account state of a user.
type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusBlocked UserStatus = "blocked"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	return s == UserStatusActive || s == UserStatusBlocked
}

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the principal holds an administrative role.
func (p Principal) IsAdmin() bool {
	return p.Role.IsAdmin()
}

// IsSuperAdmin reports whether the principal is a superadmin.
func (p Principal) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin
}

// PrincipalFor builds the principal that acts on behalf of user.
func PrincipalFor(user User) Principal {
	return Principal{UserID: user.ID, Role: user.Role}
}

// User represents an account exposed by the application services.
type User struct {
	ID           string
	Username     string
	Email        string
	Name         string
	Phone        string
	Role         Role
	Status       UserStatus
	DepartmentID *string
	GoogleID     *string
	LastLoginAt  *time.Time
	BlockedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Username     string
	Email        string
	Name         string
	Phone        string
	Role         Role
	DepartmentID *string
	Password     string
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// ListUsersParams filters the user listing.
type ListUsersParams struct {
	Principal    Principal
	Status       UserStatus
	Role         Role
	DepartmentID string
}

// SetUserStatusParams wraps the data required to block or unblock a user.
type SetUserStatusParams struct {
	Principal Principal
	UserID    string
	Status    UserStatus
	Reason    string
}

// Department represents an organisational unit.
type Department struct {
	ID          string
	Name        string
	Description string
	ParentID    *string
	UsersCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DepartmentInput captures caller provided department fields.
type DepartmentInput struct {
	Name        string
	Description string
	ParentID    *string
}

// Location represents a site that hosts rooms.
type Location struct {
	ID         string
	Name       string
	Address    string
	City       string
	State      string
	PostalCode string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LocationInput captures caller provided location fields. A nil Active keeps
// the current value on update and defaults to true on create.
type LocationInput struct {
	Name       string
	Address    string
	City       string
	State      string
	PostalCode string
	Active     *bool
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name        string
	Capacity    int
	Description string
	LocationID  *string
	Resources   []string
	Active      *bool
}

// Room represents a bookable room.
type Room struct {
	ID          string
	Name        string
	Capacity    int
	Description string
	LocationID  *string
	Resources   []string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// Reservation represents a room booking.
type Reservation struct {
	ID           string
	Title        string
	Description  string
	RoomID       string
	UserID       string
	Start        time.Time
	End          time.Time
	Status       scheduler.Status
	Participants int
	CancelledAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r Reservation) booking() scheduler.Booking {
	return scheduler.Booking{ID: r.ID, RoomID: r.RoomID, Start: r.Start, End: r.End, Status: r.Status}
}

// ReservationInput captures caller provided reservation fields. UserID is
// honoured only for administrators booking on behalf of someone else.
type ReservationInput struct {
	Title        string
	Description  string
	RoomID       string
	UserID       string
	Start        time.Time
	End          time.Time
	Participants int
}

// ReservationPatch carries a partial update. Nil fields are left untouched.
type ReservationPatch struct {
	Title        *string
	Description  *string
	RoomID       *string
	Start        *time.Time
	End          *time.Time
	Participants *int
	Status       *scheduler.Status
}

// CreateReservationParams wraps the data required to create a reservation.
type CreateReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// UpdateReservationParams wraps the data required to replace a reservation's fields.
type UpdateReservationParams struct {
	Principal     Principal
	ReservationID string
	Input         ReservationInput
}

// PatchReservationParams wraps the data required to partially update a reservation.
type PatchReservationParams struct {
	Principal     Principal
	ReservationID string
	Patch         ReservationPatch
}

// ListReservationsParams filters the reservation listing.
type ListReservationsParams struct {
	Principal Principal
	RoomID    string
	UserID    string
	Status    scheduler.Status
	From      *time.Time
	To        *time.Time
}

// AvailabilityParams describes an availability query for a room.
type AvailabilityParams struct {
	Principal Principal
	RoomID    string
	Start     time.Time
	End       time.Time
	ExcludeID string
}

// AvailabilityResult reports whether the room is free and what blocks it.
type AvailabilityResult struct {
	RoomID    string
	Available bool
	Conflicts []Reservation
}

// AvailableRoomsParams describes a search for rooms free during an interval.
type AvailableRoomsParams struct {
	Principal   Principal
	Start       time.Time
	End         time.Time
	MinCapacity int
}

// Dashboard summarises the principal's day and the current room occupancy.
type Dashboard struct {
	MyReservationsToday int
	TotalRooms          int
	RoomsOccupiedNow    int
	RoomsAvailableNow   int
	Upcoming            []Reservation
}

// Session represents a refresh token session issued to a user.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenPair holds the tokens handed to a client after authentication.
type TokenPair struct {
	Access           string
	AccessExpiresAt  time.Time
	Refresh          string
	RefreshExpiresAt time.Time
}

// AuthResult captures the outcome of a successful authentication.
type AuthResult struct {
	User   User
	Tokens TokenPair
}

// LoginParams captures password login input. Login is a username or an email.
type LoginParams struct {
	Login    string
	Password string
}

// RegisterParams captures self-service sign up input.
type RegisterParams struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Username string
}

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Notification represents an in-app message.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Type      string
	Read      bool
	CreatedAt time.Time
}

// SendNotificationParams wraps the data for an administrative notification.
// An empty RecipientID broadcasts to every active user.
type SendNotificationParams struct {
	Principal   Principal
	RecipientID string
	Title       string
	Message     string
	Type        string
}

// AuditEntry records an administrative action.
type AuditEntry struct {
	ID           string
	AdminID      string
	Action       string
	TargetUserID *string
	Details      string
	CreatedAt    time.Time
}

// Stats aggregates dashboard counters.
type Stats struct {
	TotalUsers           int
	ActiveUsers          int
	BlockedUsers         int
	AdminUsers           int
	TotalDepartments     int
	RecentLogins         int
	TotalRooms           int
	ActiveRooms          int
	ReservationsByStatus map[scheduler.Status]int
	GeneratedAt          time.Time
}

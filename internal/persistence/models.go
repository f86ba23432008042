package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// User represents an account row in usuarios.
type User struct {
	ID           string     `db:"id"`
	Username     string     `db:"username"`
	Email        string     `db:"email"`
	Name         string     `db:"nome"`
	Phone        string     `db:"telefone"`
	PasswordHash *string    `db:"password_hash"`
	Role         string     `db:"role"`
	Status       string     `db:"status"`
	DepartmentID *string    `db:"department_id"`
	GoogleID     *string    `db:"google_id"`
	LastLoginAt  *time.Time `db:"last_login_at"`
	BlockedAt    *time.Time `db:"blocked_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// Department represents an organisational unit. UsersCount is derived on read.
type Department struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	ParentID    *string   `db:"parent_id"`
	UsersCount  int       `db:"users_count"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Location represents a site where rooms live.
type Location struct {
	ID         string    `db:"id"`
	Name       string    `db:"nome"`
	Address    string    `db:"endereco"`
	City       string    `db:"cidade"`
	State      string    `db:"estado"`
	PostalCode string    `db:"cep"`
	Active     bool      `db:"ativa"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Room represents a bookable room.
type Room struct {
	ID          string     `db:"id"`
	Name        string     `db:"nome"`
	Capacity    int        `db:"capacidade"`
	Description string     `db:"descricao"`
	LocationID  *string    `db:"localizacao_id"`
	Resources   StringList `db:"recursos"`
	Active      bool       `db:"ativa"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// Reservation status values stored in agendamentos.status.
const (
	StatusScheduled  = "agendada"
	StatusInProgress = "em_andamento"
	StatusCompleted  = "concluida"
	StatusCancelled  = "cancelada"
)

// Reservation represents a row in agendamentos.
type Reservation struct {
	ID           string     `db:"id"`
	Title        string     `db:"titulo"`
	Description  string     `db:"descricao"`
	RoomID       string     `db:"sala_id"`
	UserID       string     `db:"usuario_id"`
	Start        time.Time  `db:"data_inicio"`
	End          time.Time  `db:"data_fim"`
	Status       string     `db:"status"`
	Participants int        `db:"participantes"`
	CancelledAt  *time.Time `db:"cancelado_em"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// Session represents a refresh token issued to a user. Only the token hash is stored.
type Session struct {
	ID        string     `db:"id"`
	UserID    string     `db:"usuario_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// Notification represents an in-app message for a user.
type Notification struct {
	ID        string    `db:"id"`
	UserID    string    `db:"usuario_id"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Type      string    `db:"type"`
	Read      bool      `db:"lida"`
	CreatedAt time.Time `db:"created_at"`
}

// AuditEntry records an administrative action.
type AuditEntry struct {
	ID           string    `db:"id"`
	AdminID      string    `db:"admin_id"`
	Action       string    `db:"action"`
	TargetUserID *string   `db:"target_user_id"`
	Details      string    `db:"details"`
	CreatedAt    time.Time `db:"created_at"`
}

// StringList stores a list of strings as a JSON array column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("persistence: cannot scan %T into StringList", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("persistence: decode string list: %w", err)
	}
	*l = out
	return nil
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/salafacil/salafacil/internal/persistence"
)

// UserFilter narrows user listings. Zero values match everything.
type UserFilter struct {
	Status       UserStatus
	Role         Role
	DepartmentID string
}

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	SetPasswordHash(ctx context.Context, id, passwordHash string) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)
}

// AuditLog appends entries to the administrative action log.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
}

// PasswordHasher turns a plain password into a storable hash.
type PasswordHasher func(password string) (string, error)

// Administrative actions recorded in the audit log.
const (
	AuditBlockUser             = "BLOCK_USER"
	AuditUnblockUser           = "UNBLOCK_USER"
	AuditDeleteUser            = "DELETE_USER"
	AuditUpdateUserRole        = "UPDATE_USER_ROLE"
	AuditCreateUser            = "CREATE_USER"
	AuditBroadcastNotification = "BROADCAST_NOTIFICATION"
)

const minPasswordLength = 6

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users        UserRepository
	audit        AuditLog
	hashPassword PasswordHasher
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, audit AuditLog, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, audit, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specific logger.
func NewUserServiceWithLogger(users UserRepository, audit AuditLog, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:        users,
		audit:        audit,
		hashPassword: HashPassword,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// WithPasswordHasher replaces the hasher used for new passwords.
func (s *UserService) WithPasswordHasher(hasher PasswordHasher) *UserService {
	if hasher != nil {
		s.hashPassword = hasher
	}
	return s
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// CreateUser validates input and persists a new user for administrators.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateUser", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user created")
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	normalized := normalizeUserInput(params.Input)
	if normalized.Role == "" {
		normalized.Role = RoleUser
	}
	if normalized.Username == "" {
		normalized.Username = usernameFromEmail(normalized.Email)
	}

	vErr := validateUserInput(normalized)
	if len(params.Input.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if normalized.Role == RoleSuperAdmin && !params.Principal.IsSuperAdmin() {
		err = ErrUnauthorized
		return
	}

	var hash string
	hash, err = s.hashPassword(params.Input.Password)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	user = User{
		ID:           s.idGenerator(),
		Username:     normalized.Username,
		Email:        normalized.Email,
		Name:         normalized.Name,
		Phone:        normalized.Phone,
		Role:         normalized.Role,
		Status:       UserStatusActive,
		DepartmentID: normalized.DepartmentID,
		CreatedAt:    s.now(),
	}
	user.UpdatedAt = user.CreatedAt

	if s.users == nil {
		return
	}

	user, err = s.users.CreateUser(ctx, user, hash)
	if err != nil {
		err = mapUserWriteError(err)
		return
	}

	s.recordAudit(ctx, params.Principal, AuditCreateUser, &user.ID, user.Email)
	return
}

// GetUser returns a user to administrators or to the user themself.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin() && principal.UserID != userID {
		return User{}, ErrUnauthorized
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return user, nil
}

// UpdateUser validates input and updates an existing user for administrators.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateUser",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user updated")
	}()

	var existing User
	existing, err = s.users.GetUser(ctx, params.UserID)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}
	if err = ensureMayModify(params.Principal, existing); err != nil {
		return
	}

	normalized := normalizeUserInput(params.Input)
	if normalized.Role == "" {
		normalized.Role = existing.Role
	}
	if normalized.Username == "" {
		normalized.Username = existing.Username
	}

	vErr := validateUserInput(normalized)
	if params.Input.Password != "" && len(params.Input.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if normalized.Role == RoleSuperAdmin && !params.Principal.IsSuperAdmin() {
		err = ErrUnauthorized
		return
	}

	updated := existing
	updated.Username = normalized.Username
	updated.Email = normalized.Email
	updated.Name = normalized.Name
	updated.Phone = normalized.Phone
	updated.Role = normalized.Role
	updated.DepartmentID = normalized.DepartmentID
	updated.UpdatedAt = s.now()

	user, err = s.users.UpdateUser(ctx, updated)
	if err != nil {
		err = mapUserWriteError(err)
		return
	}

	if params.Input.Password != "" {
		var hash string
		if hash, err = s.hashPassword(params.Input.Password); err != nil {
			err = fmt.Errorf("hash password: %w", err)
			return
		}
		if err = s.users.SetPasswordHash(ctx, user.ID, hash); err != nil {
			err = mapUserRepoError(err)
			return
		}
	}

	if existing.Role != user.Role {
		s.recordAudit(ctx, params.Principal, AuditUpdateUserRole, &user.ID, fmt.Sprintf("%s -> %s", existing.Role, user.Role))
	}
	return
}

// SetUserStatus blocks or unblocks a user.
func (s *UserService) SetUserStatus(ctx context.Context, params SetUserStatusParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SetUserStatus",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
		"status", string(params.Status),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change user status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user status changed")
	}()

	if !params.Status.Valid() {
		err = newValidationError("status", "status must be active or blocked")
		return
	}
	if params.Status == UserStatusBlocked && params.UserID == params.Principal.UserID {
		err = newValidationError("status", "administrators cannot block themselves")
		return
	}

	var existing User
	existing, err = s.users.GetUser(ctx, params.UserID)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}
	if err = ensureMayModify(params.Principal, existing); err != nil {
		return
	}
	if existing.Status == params.Status {
		user = existing
		return
	}

	now := s.now()
	updated := existing
	updated.Status = params.Status
	updated.UpdatedAt = now
	action := AuditUnblockUser
	if params.Status == UserStatusBlocked {
		updated.BlockedAt = &now
		action = AuditBlockUser
	} else {
		updated.BlockedAt = nil
	}

	user, err = s.users.UpdateUser(ctx, updated)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}

	s.recordAudit(ctx, params.Principal, action, &user.ID, strings.TrimSpace(params.Reason))
	return
}

// DeleteUser removes a user when requested by an administrator.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin() {
		return ErrUnauthorized
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteUser",
		"principal_id", principal.UserID,
		"user_id", userID,
	)

	if userID == principal.UserID {
		err := newValidationError("id", "administrators cannot delete themselves")
		logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	existing, err := s.users.GetUser(ctx, userID)
	if err != nil {
		err = mapUserRepoError(err)
		logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	if err := ensureMayModify(principal, existing); err != nil {
		logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		err = mapUserRepoError(err)
		logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.recordAudit(ctx, principal, AuditDeleteUser, nil, existing.Email)
	logger.InfoContext(ctx, "user deleted")
	return nil
}

// ListUsers returns users for administrators.
func (s *UserService) ListUsers(ctx context.Context, params ListUsersParams) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !params.Principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if s.users == nil {
		return nil, nil
	}

	if params.Status != "" && !params.Status.Valid() {
		return nil, newValidationError("status", "status must be active or blocked")
	}
	if params.Role != "" && !params.Role.Valid() {
		return nil, newValidationError("role", "unknown role")
	}

	users, err := s.users.ListUsers(ctx, UserFilter{
		Status:       params.Status,
		Role:         params.Role,
		DepartmentID: strings.TrimSpace(params.DepartmentID),
	})
	if err != nil {
		s.loggerWith(ctx, "ListUsers", "principal_id", params.Principal.UserID).
			ErrorContext(ctx, "failed to list users", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	out := make([]User, len(users))
	copy(out, users)

	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Name, out[j].Name) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})

	return out, nil
}

// BootstrapAdmin creates an administrator, or promotes and resets the
// password of the account that already owns the email. It runs without a
// principal and is meant for the create-admin command.
func (s *UserService) BootstrapAdmin(ctx context.Context, input UserInput, superadmin bool) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	normalized := normalizeUserInput(input)
	normalized.Role = RoleAdmin
	if superadmin {
		normalized.Role = RoleSuperAdmin
	}
	if normalized.Username == "" {
		normalized.Username = usernameFromEmail(normalized.Email)
	}

	logger := s.loggerWith(ctx, "BootstrapAdmin", "email", normalized.Email, "role", normalized.Role)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to bootstrap administrator", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "administrator ready")
	}()

	vErr := validateUserInput(normalized)
	if len(input.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	if hash, err = s.hashPassword(input.Password); err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	var existing []User
	existing, err = s.users.ListUsers(ctx, UserFilter{})
	if err != nil {
		return
	}
	now := s.now()
	for _, candidate := range existing {
		if !strings.EqualFold(candidate.Email, normalized.Email) {
			continue
		}
		candidate.Role = normalized.Role
		candidate.Status = UserStatusActive
		candidate.BlockedAt = nil
		candidate.UpdatedAt = now
		if user, err = s.users.UpdateUser(ctx, candidate); err != nil {
			err = mapUserWriteError(err)
			return
		}
		err = mapUserRepoError(s.users.SetPasswordHash(ctx, user.ID, hash))
		return
	}

	user = User{
		ID:        s.idGenerator(),
		Username:  normalized.Username,
		Email:     normalized.Email,
		Name:      normalized.Name,
		Phone:     normalized.Phone,
		Role:      normalized.Role,
		Status:    UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	user, err = s.users.CreateUser(ctx, user, hash)
	err = mapUserWriteError(err)
	return
}

func (s *UserService) recordAudit(ctx context.Context, principal Principal, action string, target *string, details string) {
	if s.audit == nil {
		return
	}
	entry := AuditEntry{
		ID:           s.idGenerator(),
		AdminID:      principal.UserID,
		Action:       action,
		TargetUserID: target,
		Details:      details,
		CreatedAt:    s.now(),
	}
	if err := s.audit.AppendAudit(ctx, entry); err != nil {
		s.loggerWith(ctx, "recordAudit", "action", action).
			WarnContext(ctx, "failed to append audit entry", "error", err)
	}
}

// ensureMayModify enforces that only a superadmin touches a superadmin.
func ensureMayModify(principal Principal, target User) error {
	if target.Role == RoleSuperAdmin && !principal.IsSuperAdmin() {
		return ErrUnauthorized
	}
	return nil
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		Username:     strings.TrimSpace(input.Username),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Name:         strings.TrimSpace(input.Name),
		Phone:        strings.TrimSpace(input.Phone),
		Role:         Role(strings.ToLower(strings.TrimSpace(string(input.Role)))),
		DepartmentID: normalizeOptionalString(input.DepartmentID),
	}
}

func validateUserInput(input UserInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if !isValidEmail(input.Email) {
		vErr.add("email", "email is invalid")
	}

	if input.Name == "" {
		vErr.add("nome", "name is required")
	}

	if input.Username == "" {
		vErr.add("username", "username is required")
	}

	if !input.Role.Valid() {
		vErr.add("role", "unknown role")
	}

	return vErr
}

func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// usernameFromEmail returns the local part of an email address.
func usernameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return email
	}
	return local
}

func mapUserRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFoundError(err) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return ErrInUse
	}
	return err
}

func mapUserWriteError(err error) error {
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return newValidationError("department_id", "department does not exist")
	}
	return mapUserRepoError(err)
}

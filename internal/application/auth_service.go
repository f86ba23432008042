package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// CredentialStore exposes the user operations required by the auth service.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUserCredentialsByUsername(ctx context.Context, username string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (User, error)
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	SetPasswordHash(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// SessionRepository captures the persistence interactions for refresh sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error)
	RevokeSession(ctx context.Context, tokenHash string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// GoogleVerifier validates a Google ID token and returns its identity.
type GoogleVerifier interface {
	Verify(ctx context.Context, credential string) (GoogleIdentity, error)
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthService coordinates login, registration, token refresh and token validation.
type AuthService struct {
	credentials    CredentialStore
	sessions       SessionRepository
	tokens         *TokenIssuer
	google         GoogleVerifier
	verifyPassword PasswordVerifier
	hashPassword   PasswordHasher
	tokenGenerator func() string
	idGenerator    func() string
	now            func() time.Time
	refreshTTL     time.Duration
	acceptLegacy   bool
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, sessions SessionRepository, tokens *TokenIssuer, idGenerator func() string, now func() time.Time, refreshTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(credentials, sessions, tokens, idGenerator, now, refreshTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, sessions SessionRepository, tokens *TokenIssuer, idGenerator func() string, now func() time.Time, refreshTTL time.Duration, logger *slog.Logger) *AuthService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &AuthService{
		credentials:    credentials,
		sessions:       sessions,
		tokens:         tokens,
		verifyPassword: VerifyPassword,
		hashPassword:   HashPassword,
		tokenGenerator: RandomToken,
		idGenerator:    idGenerator,
		now:            now,
		refreshTTL:     refreshTTL,
		logger:         defaultLogger(logger),
	}
}

// WithGoogleVerifier enables Google sign-in.
func (s *AuthService) WithGoogleVerifier(verifier GoogleVerifier) *AuthService {
	s.google = verifier
	return s
}

// WithLegacyTokens toggles acceptance of unsigned token_<ms>_<id> tokens.
func (s *AuthService) WithLegacyTokens(accept bool) *AuthService {
	s.acceptLegacy = accept
	return s
}

// WithPasswords replaces the password hasher and verifier.
func (s *AuthService) WithPasswords(hasher PasswordHasher, verifier PasswordVerifier) *AuthService {
	if hasher != nil {
		s.hashPassword = hasher
	}
	if verifier != nil {
		s.verifyPassword = verifier
	}
	return s
}

// WithTokenGenerator replaces the refresh token generator.
func (s *AuthService) WithTokenGenerator(generator func() string) *AuthService {
	if generator != nil {
		s.tokenGenerator = generator
	}
	return s
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Login authenticates a username or email with a password.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (result AuthResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	login := strings.TrimSpace(params.Login)
	logger := s.loggerWith(ctx, "Login", "login", login)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if login == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.lookupCredentials(ctx, login)
	if err != nil {
		if isNotFoundError(err) {
			err = ErrInvalidCredentials
		}
		return
	}

	if creds.User.Status == UserStatusBlocked {
		err = ErrAccountDisabled
		return
	}
	if creds.PasswordHash == "" {
		err = ErrExternalAccount
		return
	}
	if verr := s.verifyPassword(creds.PasswordHash, params.Password); verr != nil {
		err = ErrInvalidCredentials
		return
	}

	if NeedsRehash(creds.PasswordHash) {
		s.rehash(ctx, creds.User.ID, params.Password)
	}

	result, err = s.startSession(ctx, creds.User)
	return
}

// Register creates a regular account and signs it in.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (result AuthResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	logger := s.loggerWith(ctx, "Register", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "user registered")
	}()

	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "email is required")
	} else if !isValidEmail(email) {
		vErr.add("email", "email is invalid")
	}
	if len(params.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		vErr.add("nome", "name is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, lerr := s.credentials.GetUserCredentialsByEmail(ctx, email); lerr == nil {
		err = ErrAlreadyExists
		return
	} else if !isNotFoundError(lerr) {
		err = lerr
		return
	}

	var username string
	username, err = s.pickUsername(ctx, strings.TrimSpace(params.Username), email)
	if err != nil {
		return
	}

	var hash string
	if hash, err = s.hashPassword(params.Password); err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	now := s.now()
	user := User{
		ID:        s.idGenerator(),
		Username:  username,
		Email:     email,
		Name:      name,
		Phone:     strings.TrimSpace(params.Phone),
		Role:      RoleUser,
		Status:    UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	user, err = s.credentials.CreateUser(ctx, user, hash)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}

	result, err = s.startSession(ctx, user)
	return
}

// GoogleLogin signs in with a Google ID token, linking or creating the account.
func (s *AuthService) GoogleLogin(ctx context.Context, credential string) (result AuthResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	logger := s.loggerWith(ctx, "GoogleLogin")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "google sign-in failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "google sign-in succeeded")
	}()

	if s.google == nil {
		err = fmt.Errorf("%w: google sign-in", ErrNotConfigured)
		return
	}
	if strings.TrimSpace(credential) == "" {
		err = newValidationError("credential", "credential is required")
		return
	}

	var identity GoogleIdentity
	identity, err = s.google.Verify(ctx, credential)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if identity.Subject == "" || email == "" {
		err = ErrInvalidCredentials
		return
	}

	var user User
	user, err = s.resolveGoogleUser(ctx, identity, email)
	if err != nil {
		return
	}
	if user.Status == UserStatusBlocked {
		err = ErrAccountDisabled
		return
	}

	result, err = s.startSession(ctx, user)
	return
}

func (s *AuthService) resolveGoogleUser(ctx context.Context, identity GoogleIdentity, email string) (User, error) {
	user, err := s.credentials.GetUserByGoogleID(ctx, identity.Subject)
	if err == nil {
		return user, nil
	}
	if !isNotFoundError(err) {
		return User{}, err
	}

	creds, err := s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err == nil {
		user = creds.User
		if user.GoogleID != nil && *user.GoogleID != identity.Subject {
			return User{}, ErrInvalidCredentials
		}
		subject := identity.Subject
		user.GoogleID = &subject
		user.UpdatedAt = s.now()
		linked, uerr := s.credentials.UpdateUser(ctx, user)
		if uerr != nil {
			return User{}, mapUserRepoError(uerr)
		}
		return linked, nil
	}
	if !isNotFoundError(err) {
		return User{}, err
	}

	username, err := s.pickUsername(ctx, "", email)
	if err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = usernameFromEmail(email)
	}
	subject := identity.Subject
	now := s.now()
	created, err := s.credentials.CreateUser(ctx, User{
		ID:        s.idGenerator(),
		Username:  username,
		Email:     email,
		Name:      name,
		Role:      RoleUser,
		Status:    UserStatusActive,
		GoogleID:  &subject,
		CreatedAt: now,
		UpdatedAt: now,
	}, "")
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return created, nil
}

// Refresh rotates a refresh token and issues a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (result AuthResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.sessions == nil || s.credentials == nil {
		err = fmt.Errorf("session repository not configured")
		return
	}

	token := strings.TrimSpace(refreshToken)
	logger := s.loggerWith(ctx, "Refresh", "token_provided", token != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session refresh failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "session refreshed")
	}()

	if token == "" {
		err = ErrInvalidCredentials
		return
	}

	hash := HashToken(token)
	var session Session
	session, err = s.sessions.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		if isNotFoundError(err) {
			err = ErrInvalidCredentials
		}
		return
	}

	now := s.now()
	if session.RevokedAt != nil {
		err = ErrSessionRevoked
		return
	}
	if !session.ExpiresAt.After(now) {
		err = ErrSessionExpired
		return
	}

	var user User
	user, err = s.credentials.GetUser(ctx, session.UserID)
	if err != nil {
		if isNotFoundError(err) {
			err = ErrInvalidCredentials
		}
		return
	}
	if user.Status == UserStatusBlocked {
		err = ErrAccountDisabled
		return
	}

	if _, err = s.sessions.RevokeSession(ctx, hash, now); err != nil {
		if isNotFoundError(err) {
			err = ErrSessionRevoked
		}
		return
	}

	var tokens TokenPair
	tokens, err = s.issueTokens(ctx, user)
	if err != nil {
		return
	}
	result = AuthResult{User: user, Tokens: tokens}
	return
}

// Logout revokes a refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return ErrInvalidCredentials
	}

	logger := s.loggerWith(ctx, "Logout")
	now := s.now()

	if _, err := s.sessions.RevokeSession(ctx, HashToken(token), now); err != nil {
		if isNotFoundError(err) {
			err = ErrInvalidCredentials
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if err := s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		logger.WarnContext(ctx, "failed to prune expired sessions", "error", err)
	}
	logger.InfoContext(ctx, "session revoked")
	return nil
}

// ValidateToken resolves an access token to the principal of an active user.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateToken", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "token validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "token validated")
	}()

	if trimmed == "" {
		err = ErrInvalidCredentials
		return
	}

	var userID string
	claims, perr := s.tokens.ParseAccessToken(trimmed)
	switch {
	case perr == nil:
		userID = claims.Subject
	case s.acceptLegacy:
		id, _, ok := ParseLegacyToken(trimmed)
		if !ok {
			err = perr
			return
		}
		userID = id
	default:
		err = perr
		return
	}

	var user User
	user, err = s.credentials.GetUser(ctx, userID)
	if err != nil {
		if isNotFoundError(err) {
			err = ErrInvalidCredentials
		}
		return
	}
	if user.Status != UserStatusActive {
		err = ErrAccountDisabled
		return
	}

	principal = PrincipalFor(user)
	return
}

// CurrentUser returns the account behind principal.
func (s *AuthService) CurrentUser(ctx context.Context, principal Principal) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("AuthService is nil")
	}
	if s.credentials == nil {
		return User{}, fmt.Errorf("credential store not configured")
	}
	user, err := s.credentials.GetUser(ctx, principal.UserID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return user, nil
}

func (s *AuthService) lookupCredentials(ctx context.Context, login string) (UserCredentials, error) {
	primary, secondary := s.credentials.GetUserCredentialsByUsername, s.credentials.GetUserCredentialsByEmail
	if strings.Contains(login, "@") {
		login = strings.ToLower(login)
		primary, secondary = secondary, primary
	}
	creds, err := primary(ctx, login)
	if err == nil || !isNotFoundError(err) {
		return creds, err
	}
	return secondary(ctx, login)
}

func (s *AuthService) pickUsername(ctx context.Context, requested, email string) (string, error) {
	candidate := requested
	if candidate == "" {
		candidate = usernameFromEmail(email)
	}
	_, err := s.credentials.GetUserCredentialsByUsername(ctx, candidate)
	switch {
	case isNotFoundError(err):
		return candidate, nil
	case err != nil:
		return "", err
	case requested != "":
		return "", newValidationError("username", "username is already taken")
	default:
		return email, nil
	}
}

func (s *AuthService) rehash(ctx context.Context, userID, password string) {
	hash, err := s.hashPassword(password)
	if err == nil {
		err = s.credentials.SetPasswordHash(ctx, userID, hash)
	}
	if err != nil {
		s.loggerWith(ctx, "rehash", "user_id", userID).WarnContext(ctx, "failed to upgrade password hash", "error", err)
	}
}

func (s *AuthService) startSession(ctx context.Context, user User) (AuthResult, error) {
	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}

	now := s.now()
	if terr := s.credentials.TouchLastLogin(ctx, user.ID, now); terr != nil {
		s.loggerWith(ctx, "startSession", "user_id", user.ID).WarnContext(ctx, "failed to record last login", "error", terr)
	} else {
		user.LastLoginAt = &now
	}

	return AuthResult{User: user, Tokens: tokens}, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user User) (TokenPair, error) {
	access, accessExpiry, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	pair := TokenPair{Access: access, AccessExpiresAt: accessExpiry}
	if s.sessions == nil {
		return pair, nil
	}

	now := s.now()
	if err := s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		return TokenPair{}, err
	}

	refresh := s.tokenGenerator()
	if refresh == "" {
		return TokenPair{}, errors.New("refresh token generation failed")
	}
	session := Session{
		ID:        s.idGenerator(),
		UserID:    user.ID,
		TokenHash: HashToken(refresh),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.sessions.CreateSession(ctx, session); err != nil {
		return TokenPair{}, err
	}

	pair.Refresh = refresh
	pair.RefreshExpiresAt = session.ExpiresAt
	return pair, nil
}

package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/salafacil/salafacil/internal/application"
)

const sessionCookieName = "session_token"

type authService interface {
	Login(ctx context.Context, params application.LoginParams) (application.AuthResult, error)
	Register(ctx context.Context, params application.RegisterParams) (application.AuthResult, error)
	GoogleLogin(ctx context.Context, credential string) (application.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (application.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateToken(ctx context.Context, token string) (application.Principal, error)
	CurrentUser(ctx context.Context, principal application.Principal) (application.User, error)
}

// AuthHandlerOptions tunes optional AuthHandler behaviour.
type AuthHandlerOptions struct {
	// DemoFallback answers GET /auth with a demo user instead of 401.
	DemoFallback  bool
	ExposeDetails bool
	SecureCookies bool
}

type AuthHandler struct {
	service   authService
	opts      AuthHandlerOptions
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(service authService, opts AuthHandlerOptions, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{service: service, opts: opts, responder: newResponder(base, opts.ExposeDetails), logger: base}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

// Action dispatches POST /auth on the body's action field. Login is the default.
func (h *AuthHandler) Action(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req authRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Action", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode auth request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	action := strings.ToLower(strings.TrimSpace(req.Action))
	logger := h.log(r.Context(), "Action", "action", action)

	var (
		result application.AuthResult
		err    error
	)
	switch action {
	case "", "login":
		login := strings.TrimSpace(req.Username)
		if login == "" {
			login = strings.TrimSpace(req.Email)
		}
		if login == "" || req.Password == "" {
			h.responder.handleServiceError(r.Context(), w, application.ErrInvalidCredentials)
			return
		}
		result, err = h.service.Login(r.Context(), application.LoginParams{Login: login, Password: req.Password})
	case "register":
		result, err = h.service.Register(r.Context(), req.registerParams())
	case "refresh":
		result, err = h.service.Refresh(r.Context(), req.Refresh)
	case "logout":
		if err = h.service.Logout(r.Context(), req.Refresh); err != nil {
			logger.ErrorContext(r.Context(), "logout failed", "error", err, "error_kind", application.ErrorKind(err))
			h.responder.handleServiceError(r.Context(), w, err)
			return
		}
		h.clearSessionCookie(w)
		logger.InfoContext(r.Context(), "session revoked")
		h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
		return
	default:
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errUnknownAction)
		return
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "authentication failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.setSessionCookie(w, result.Tokens.Access, result.Tokens.AccessExpiresAt)
	logger.With("user_id", result.User.ID).InfoContext(r.Context(), "user authenticated")

	status := http.StatusOK
	if action == "register" {
		status = http.StatusCreated
	}
	h.responder.writeJSON(r.Context(), w, status, toAuthResponse(result))
}

// Current answers GET /auth with the authenticated user.
func (h *AuthHandler) Current(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := h.log(r.Context(), "Current")
	user, err := h.currentUser(r)
	if err != nil {
		if h.opts.DemoFallback {
			logger.WarnContext(r.Context(), "serving demo user", "error", err)
			h.responder.writeJSON(r.Context(), w, http.StatusOK, demoUser())
			return
		}
		logger.InfoContext(r.Context(), "current user unavailable", "error", err, "error_kind", application.ErrorKind(err))
		switch {
		case errors.Is(err, errMissingToken):
			h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingToken)
		case errors.Is(err, application.ErrAccountDisabled):
			h.responder.handleServiceError(r.Context(), w, err)
		case errors.Is(err, application.ErrInvalidCredentials),
			errors.Is(err, application.ErrSessionExpired),
			errors.Is(err, application.ErrNotFound):
			h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errInvalidToken)
		default:
			h.responder.handleServiceError(r.Context(), w, err)
		}
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTO(user))
}

func (h *AuthHandler) currentUser(r *http.Request) (application.User, error) {
	token := extractTokenFromRequest(r)
	if token == "" {
		return application.User{}, errMissingToken
	}
	principal, err := h.service.ValidateToken(r.Context(), token)
	if err != nil {
		return application.User{}, err
	}
	return h.service.CurrentUser(r.Context(), principal)
}

// Register handles POST /register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req authRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Register", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode register request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Register")
	result, err := h.service.Register(r.Context(), req.registerParams())
	if err != nil {
		logger.ErrorContext(r.Context(), "registration failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.setSessionCookie(w, result.Tokens.Access, result.Tokens.AccessExpiresAt)
	logger.With("user_id", result.User.ID).InfoContext(r.Context(), "user registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toTokenResponse(result))
}

// GoogleLogin handles POST /google-auth.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req googleAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "GoogleLogin", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode google auth request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "GoogleLogin")
	result, err := h.service.GoogleLogin(r.Context(), req.Credential)
	if err != nil {
		logger.ErrorContext(r.Context(), "google authentication failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.setSessionCookie(w, result.Tokens.Access, result.Tokens.AccessExpiresAt)
	logger.With("user_id", result.User.ID).InfoContext(r.Context(), "user authenticated with google")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTokenResponse(result))
}

type authRequest struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"nome"`
	Phone    string `json:"telefone"`
	Refresh  string `json:"refresh"`
}

func (r authRequest) registerParams() application.RegisterParams {
	return application.RegisterParams{
		Email:    r.Email,
		Password: r.Password,
		Name:     r.Name,
		Phone:    r.Phone,
		Username: r.Username,
	}
}

type googleAuthRequest struct {
	Credential string `json:"credential"`
}

type authResponse struct {
	Access           string  `json:"access"`
	Refresh          string  `json:"refresh"`
	AccessExpiresAt  string  `json:"access_expires_at"`
	RefreshExpiresAt string  `json:"refresh_expires_at"`
	User             userDTO `json:"user"`
}

type tokenResponse struct {
	Token        string  `json:"token"`
	RefreshToken string  `json:"refreshToken"`
	User         userDTO `json:"user"`
}

func toAuthResponse(result application.AuthResult) authResponse {
	return authResponse{
		Access:           result.Tokens.Access,
		Refresh:          result.Tokens.Refresh,
		AccessExpiresAt:  formatTime(result.Tokens.AccessExpiresAt),
		RefreshExpiresAt: formatTime(result.Tokens.RefreshExpiresAt),
		User:             toUserDTO(result.User),
	}
}

func toTokenResponse(result application.AuthResult) tokenResponse {
	return tokenResponse{
		Token:        result.Tokens.Access,
		RefreshToken: result.Tokens.Refresh,
		User:         toUserDTO(result.User),
	}
}

func demoUser() userDTO {
	return userDTO{
		ID:       "demo",
		Username: "demo",
		Email:    "demo@salafacil.com",
		Name:     "Usuário Demo",
		Role:     string(application.RoleUser),
		Status:   string(application.UserStatusActive),
	}
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	}
	if !expires.IsZero() {
		cookie.Expires = expires.UTC()
	}
	http.SetCookie(w, cookie)
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

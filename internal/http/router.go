package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

type RouterConfig struct {
	Auth         *AuthHandler
	Rooms        *RoomHandler
	Reservations *ReservationHandler
	Users        *UserHandler
	Directory    *DirectoryHandler
	Admin        *AdminHandler

	// Validator authenticates every route except /auth, /register,
	// /google-auth, /healthz and /metrics.
	Validator TokenValidator
	// Health reports storage readiness for /healthz.
	Health  func(ctx context.Context) error
	Metrics http.Handler

	// AuthMiddleware wraps the public authentication endpoints only.
	AuthMiddleware []func(http.Handler) http.Handler
	// Middleware wraps the whole router, outermost first.
	Middleware []func(http.Handler) http.Handler
	Logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	logger := defaultLogger(cfg.Logger)
	res := newResponder(logger, false)

	protect := func(next http.HandlerFunc) http.Handler {
		if cfg.Validator == nil {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				res.writeError(r.Context(), w, http.StatusUnauthorized, errMissingToken)
			})
		}
		return RequireAuth(cfg.Validator, logger)(next)
	}
	public := func(next http.HandlerFunc) http.Handler {
		return chain(next, cfg.AuthMiddleware)
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			res.methodNotAllowed(r.Context(), w, http.MethodGet)
			return
		}
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				res.loggerFor(r.Context()).WarnContext(r.Context(), "health check failed", "error", err)
				res.writeJSON(r.Context(), w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		res.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	if cfg.Auth != nil {
		mux.Handle("/auth", public(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Auth.Current(w, r)
			case http.MethodPost:
				cfg.Auth.Action(w, r)
			default:
				res.methodNotAllowed(r.Context(), w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/register", public(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				res.methodNotAllowed(r.Context(), w, http.MethodPost)
				return
			}
			cfg.Auth.Register(w, r)
		}))
		mux.Handle("/google-auth", public(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				res.methodNotAllowed(r.Context(), w, http.MethodPost)
				return
			}
			cfg.Auth.GoogleLogin(w, r)
		}))
	}

	if cfg.Rooms != nil {
		mux.Handle("/salas", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Rooms.List(w, r)
			case http.MethodPost:
				cfg.Rooms.Create(w, r)
			default:
				res.methodNotAllowed(r.Context(), w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/salas/", protect(func(w http.ResponseWriter, r *http.Request) {
			parts := pathParts(r.URL.Path, "/salas/")
			switch {
			case len(parts) == 1 && parts[0] == "disponiveis":
				if r.Method != http.MethodGet {
					res.methodNotAllowed(r.Context(), w, http.MethodGet)
					return
				}
				cfg.Rooms.Available(w, r)
			case len(parts) == 1:
				switch r.Method {
				case http.MethodGet:
					cfg.Rooms.Get(w, r, parts[0])
				case http.MethodPut:
					cfg.Rooms.Update(w, r, parts[0])
				case http.MethodDelete:
					cfg.Rooms.Delete(w, r, parts[0])
				default:
					res.methodNotAllowed(r.Context(), w, http.MethodGet, http.MethodPut, http.MethodDelete)
				}
			case len(parts) == 2 && parts[1] == "disponibilidade":
				if r.Method != http.MethodGet {
					res.methodNotAllowed(r.Context(), w, http.MethodGet)
					return
				}
				cfg.Rooms.Availability(w, r, parts[0])
			default:
				res.writeError(r.Context(), w, http.StatusNotFound, nil)
			}
		}))
	}

	if cfg.Reservations != nil {
		mux.Handle("/agendamentos", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Reservations.List(w, r)
			case http.MethodPost:
				cfg.Reservations.Create(w, r)
			default:
				res.methodNotAllowed(r.Context(), w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/agendamentos/", protect(func(w http.ResponseWriter, r *http.Request) {
			parts := pathParts(r.URL.Path, "/agendamentos/")
			switch {
			case len(parts) == 1 && parts[0] == "dashboard":
				if r.Method != http.MethodGet {
					res.methodNotAllowed(r.Context(), w, http.MethodGet)
					return
				}
				cfg.Reservations.Dashboard(w, r)
			case len(parts) == 1:
				switch r.Method {
				case http.MethodGet:
					cfg.Reservations.Get(w, r, parts[0])
				case http.MethodPut:
					cfg.Reservations.Update(w, r, parts[0])
				case http.MethodPatch:
					cfg.Reservations.Patch(w, r, parts[0])
				case http.MethodDelete:
					cfg.Reservations.Cancel(w, r, parts[0])
				default:
					res.methodNotAllowed(r.Context(), w, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
				}
			case len(parts) == 2 && parts[1] == "cancelar":
				if r.Method != http.MethodPost && r.Method != http.MethodPatch {
					res.methodNotAllowed(r.Context(), w, http.MethodPost, http.MethodPatch)
					return
				}
				cfg.Reservations.Cancel(w, r, parts[0])
			default:
				res.writeError(r.Context(), w, http.StatusNotFound, nil)
			}
		}))
	}

	if cfg.Directory != nil {
		mux.Handle("/departments", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Directory.ListDepartments(w, r)
			case http.MethodPost:
				cfg.Directory.CreateDepartment(w, r)
			default:
				res.methodNotAllowed(r.Context(), w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/departments/", protect(func(w http.ResponseWriter, r *http.Request) {
			parts := pathParts(r.URL.Path, "/departments/")
			if len(parts) != 1 {
				res.writeError(r.Context(), w, http.StatusNotFound, nil)
				return
			}
			switch r.Method {
			case http.MethodGet:
				cfg.Directory.GetDepartment(w, r, parts[0])
			case http.MethodPut:
				cfg.Directory.UpdateDepartment(w, r, parts[0])
			case http.MethodDelete:
				cfg.Directory.DeleteDepartment(w, r, parts[0])
			default:
				res.methodNotAllowed(r.Context(), w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		}))
		mux.Handle("/localizacoes", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Directory.ListLocations(w, r)
			case http.MethodPost:
				cfg.Directory.CreateLocation(w, r)
			default:
				res.methodNotAllowed(r.Context(), w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/localizacoes/", protect(func(w http.ResponseWriter, r *http.Request) {
			parts := pathParts(r.URL.Path, "/localizacoes/")
			if len(parts) != 1 {
				res.writeError(r.Context(), w, http.StatusNotFound, nil)
				return
			}
			switch r.Method {
			case http.MethodGet:
				cfg.Directory.GetLocation(w, r, parts[0])
			case http.MethodPut:
				cfg.Directory.UpdateLocation(w, r, parts[0])
			case http.MethodDelete:
				cfg.Directory.DeleteLocation(w, r, parts[0])
			default:
				res.methodNotAllowed(r.Context(), w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		}))
	}

	if cfg.Users != nil {
		mux.Handle("/users", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Users.List(w, r)
			case http.MethodPost:
				cfg.Users.Create(w, r)
			default:
				res.methodNotAllowed(r.Context(), w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/users/", protect(func(w http.ResponseWriter, r *http.Request) {
			parts := pathParts(r.URL.Path, "/users/")
			switch {
			case len(parts) == 1:
				switch r.Method {
				case http.MethodGet:
					cfg.Users.Get(w, r, parts[0])
				case http.MethodPut:
					cfg.Users.Update(w, r, parts[0])
				case http.MethodDelete:
					cfg.Users.Delete(w, r, parts[0])
				default:
					res.methodNotAllowed(r.Context(), w, http.MethodGet, http.MethodPut, http.MethodDelete)
				}
			case len(parts) == 2 && parts[1] == "status":
				if r.Method != http.MethodPatch {
					res.methodNotAllowed(r.Context(), w, http.MethodPatch)
					return
				}
				cfg.Users.SetStatus(w, r, parts[0])
			default:
				res.writeError(r.Context(), w, http.StatusNotFound, nil)
			}
		}))
	}

	if cfg.Admin != nil {
		mux.Handle("/notifications", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				res.methodNotAllowed(r.Context(), w, http.MethodGet)
				return
			}
			cfg.Admin.ListNotifications(w, r)
		}))
		mux.Handle("/notifications/", protect(func(w http.ResponseWriter, r *http.Request) {
			parts := pathParts(r.URL.Path, "/notifications/")
			if len(parts) != 2 || parts[1] != "read" {
				res.writeError(r.Context(), w, http.StatusNotFound, nil)
				return
			}
			if r.Method != http.MethodPut {
				res.methodNotAllowed(r.Context(), w, http.MethodPut)
				return
			}
			cfg.Admin.MarkRead(w, r, parts[0])
		}))
		mux.Handle("/admin/notifications", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				res.methodNotAllowed(r.Context(), w, http.MethodPost)
				return
			}
			cfg.Admin.SendNotification(w, r)
		}))
		mux.Handle("/admin/logs", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				res.methodNotAllowed(r.Context(), w, http.MethodGet)
				return
			}
			cfg.Admin.Logs(w, r)
		}))
		mux.Handle("/stats", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				res.methodNotAllowed(r.Context(), w, http.MethodGet)
				return
			}
			cfg.Admin.Stats(w, r)
		}))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		res.writeError(r.Context(), w, http.StatusNotFound, nil)
	})

	return chain(mux, cfg.Middleware)
}

// chain wraps h so that middleware[0] runs first.
func chain(h http.Handler, middleware []func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		if middleware[i] != nil {
			h = middleware[i](h)
		}
	}
	return h
}

// pathParts returns the non-empty segments after prefix. An empty segment
// anywhere yields nil so "/salas//x" is not routed.
func pathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	parts := strings.Split(rest, "/")
	for _, p := range parts {
		if p == "" {
			return nil
		}
	}
	return parts
}

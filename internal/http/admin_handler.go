package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/salafacil/salafacil/internal/application"
)

type notificationService interface {
	ListNotifications(ctx context.Context, principal application.Principal) ([]application.Notification, error)
	MarkRead(ctx context.Context, principal application.Principal, id string) error
	Send(ctx context.Context, params application.SendNotificationParams) ([]application.Notification, error)
}

type statsService interface {
	Stats(ctx context.Context, principal application.Principal) (application.Stats, error)
	ListAuditLog(ctx context.Context, principal application.Principal) ([]application.AuditEntry, error)
}

// AdminHandler serves notifications, the admin log and dashboard stats.
type AdminHandler struct {
	notifications notificationService
	stats         statsService
	responder     responder
	logger        *slog.Logger
}

func NewAdminHandler(notifications notificationService, stats statsService, exposeDetails bool, logger *slog.Logger) *AdminHandler {
	base := defaultLogger(logger)
	return &AdminHandler{notifications: notifications, stats: stats, responder: newResponder(base, exposeDetails), logger: base}
}

func (h *AdminHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AdminHandler", operation, attrs...)
}

func (h *AdminHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	principal := principalOf(r)
	list, err := h.notifications.ListNotifications(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "ListNotifications", "principal_id", principal.UserID).
			ErrorContext(r.Context(), "notification list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]notificationDTO, 0, len(list))
	for _, n := range list {
		out = append(out, toNotificationDTO(n))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (h *AdminHandler) MarkRead(w http.ResponseWriter, r *http.Request, id string) {
	principal := principalOf(r)
	if err := h.notifications.MarkRead(r.Context(), principal, id); err != nil {
		h.log(r.Context(), "MarkRead", "principal_id", principal.UserID, "notification_id", id).
			InfoContext(r.Context(), "mark read failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, messageResponse{Message: "Notificação marcada como lida."})
}

func (h *AdminHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	principal := principalOf(r)

	var req sendNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "SendNotification", "principal_id", principal.UserID)
	sent, err := h.notifications.Send(r.Context(), application.SendNotificationParams{
		Principal:   principal,
		RecipientID: strings.TrimSpace(req.UserID),
		Title:       req.Title,
		Message:     req.Message,
		Type:        req.Type,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "notification send failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, sendNotificationResponse{
		Message: "Notificação enviada.",
		Sent:    len(sent),
	})
}

func (h *AdminHandler) Logs(w http.ResponseWriter, r *http.Request) {
	principal := principalOf(r)
	entries, err := h.stats.ListAuditLog(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Logs", "principal_id", principal.UserID).
			InfoContext(r.Context(), "audit log failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]auditEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryDTO{
			ID:           e.ID,
			AdminID:      e.AdminID,
			Action:       e.Action,
			TargetUserID: e.TargetUserID,
			Details:      e.Details,
			CreatedAt:    formatTime(e.CreatedAt),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	principal := principalOf(r)
	stats, err := h.stats.Stats(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Stats", "principal_id", principal.UserID).
			InfoContext(r.Context(), "stats failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	byStatus := make(map[string]int, len(stats.ReservationsByStatus))
	for status, n := range stats.ReservationsByStatus {
		byStatus[string(status)] = n
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, statsDTO{
		TotalUsers:           stats.TotalUsers,
		ActiveUsers:          stats.ActiveUsers,
		BlockedUsers:         stats.BlockedUsers,
		AdminUsers:           stats.AdminUsers,
		TotalDepartments:     stats.TotalDepartments,
		RecentLogins:         stats.RecentLogins,
		TotalRooms:           stats.TotalRooms,
		ActiveRooms:          stats.ActiveRooms,
		ReservationsByStatus: byStatus,
		GeneratedAt:          formatTime(stats.GeneratedAt),
	})
}

type messageResponse struct {
	Message string `json:"message"`
}

type sendNotificationRequest struct {
	UserID  string `json:"usuario_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type sendNotificationResponse struct {
	Message string `json:"message"`
	Sent    int    `json:"sent"`
}

type notificationDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Read      bool   `json:"lida"`
	CreatedAt string `json:"created_at"`
}

func toNotificationDTO(n application.Notification) notificationDTO {
	return notificationDTO{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Read:      n.Read,
		CreatedAt: formatTime(n.CreatedAt),
	}
}

type auditEntryDTO struct {
	ID           string  `json:"id"`
	AdminID      string  `json:"admin_id"`
	Action       string  `json:"action"`
	TargetUserID *string `json:"target_user_id,omitempty"`
	Details      string  `json:"details"`
	CreatedAt    string  `json:"created_at"`
}

type statsDTO struct {
	TotalUsers           int            `json:"total_users"`
	ActiveUsers          int            `json:"active_users"`
	BlockedUsers         int            `json:"blocked_users"`
	AdminUsers           int            `json:"admin_users"`
	TotalDepartments     int            `json:"total_departments"`
	RecentLogins         int            `json:"recent_logins"`
	TotalRooms           int            `json:"total_rooms"`
	ActiveRooms          int            `json:"active_rooms"`
	ReservationsByStatus map[string]int `json:"reservations_by_status"`
	GeneratedAt          string         `json:"generated_at"`
}

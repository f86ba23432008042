package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

const (
	notificationListLimit   = 50
	defaultNotificationType = "info"
)

// NotificationRepository captures the persistence operations for notifications.
type NotificationRepository interface {
	CreateNotifications(ctx context.Context, notifications []Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
}

// RecipientDirectory resolves notification recipients.
type RecipientDirectory interface {
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)
}

// NotificationService delivers in-app messages.
type NotificationService struct {
	notifications NotificationRepository
	recipients    RecipientDirectory
	audit         AuditLog
	idGenerator   func() string
	now           func() time.Time
	logger        *slog.Logger
}

// NewNotificationService wires dependencies for notification operations.
func NewNotificationService(notifications NotificationRepository, recipients RecipientDirectory, audit AuditLog, idGenerator func() string, now func() time.Time) *NotificationService {
	return NewNotificationServiceWithLogger(notifications, recipients, audit, idGenerator, now, nil)
}

// NewNotificationServiceWithLogger wires dependencies with a specific logger.
func NewNotificationServiceWithLogger(notifications NotificationRepository, recipients RecipientDirectory, audit AuditLog, idGenerator func() string, now func() time.Time, logger *slog.Logger) *NotificationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &NotificationService{
		notifications: notifications,
		recipients:    recipients,
		audit:         audit,
		idGenerator:   idGenerator,
		now:           now,
		logger:        defaultLogger(logger),
	}
}

func (s *NotificationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "NotificationService", operation, attrs...)
}

// ListNotifications returns the newest notifications addressed to principal.
func (s *NotificationService) ListNotifications(ctx context.Context, principal Principal) ([]Notification, error) {
	if s == nil {
		return nil, fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return nil, nil
	}

	list, err := s.notifications.ListNotifications(ctx, principal.UserID, notificationListLimit)
	if err != nil {
		s.loggerWith(ctx, "ListNotifications", "principal_id", principal.UserID).
			ErrorContext(ctx, "failed to list notifications", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	out := make([]Notification, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > notificationListLimit {
		out = out[:notificationListLimit]
	}
	return out, nil
}

// MarkRead flags one of principal's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, principal Principal, id string) error {
	if s == nil {
		return fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return fmt.Errorf("notification repository not configured")
	}
	if err := s.notifications.MarkNotificationRead(ctx, id, principal.UserID); err != nil {
		if isNotFoundError(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Send delivers a notification to one user or, without a recipient, to every active user.
func (s *NotificationService) Send(ctx context.Context, params SendNotificationParams) (sent []Notification, err error) {
	if s == nil {
		err = fmt.Errorf("NotificationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Send",
		"principal_id", params.Principal.UserID,
		"recipient_id", params.RecipientID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to send notification", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "notification sent", "recipients", len(sent))
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if s.notifications == nil || s.recipients == nil {
		err = fmt.Errorf("notification repository not configured")
		return
	}

	title := strings.TrimSpace(params.Title)
	message := strings.TrimSpace(params.Message)
	vErr := &ValidationError{}
	if title == "" {
		vErr.add("title", "title is required")
	}
	if message == "" {
		vErr.add("message", "message is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	kind := strings.TrimSpace(params.Type)
	if kind == "" {
		kind = defaultNotificationType
	}

	var recipients []User
	recipientID := strings.TrimSpace(params.RecipientID)
	if recipientID != "" {
		var user User
		user, err = s.recipients.GetUser(ctx, recipientID)
		if err != nil {
			if isNotFoundError(err) {
				err = newValidationError("usuario_id", "recipient does not exist")
			}
			return
		}
		recipients = []User{user}
	} else {
		recipients, err = s.recipients.ListUsers(ctx, UserFilter{Status: UserStatusActive})
		if err != nil {
			return
		}
	}

	now := s.now()
	sent = make([]Notification, 0, len(recipients))
	for _, user := range recipients {
		sent = append(sent, Notification{
			ID:        s.idGenerator(),
			UserID:    user.ID,
			Title:     title,
			Message:   message,
			Type:      kind,
			CreatedAt: now,
		})
	}
	if len(sent) == 0 {
		return
	}

	if err = s.notifications.CreateNotifications(ctx, sent); err != nil {
		sent = nil
		return
	}

	if recipientID == "" && s.audit != nil {
		entry := AuditEntry{
			ID:        s.idGenerator(),
			AdminID:   params.Principal.UserID,
			Action:    AuditBroadcastNotification,
			Details:   fmt.Sprintf("%q sent to %d users", title, len(sent)),
			CreatedAt: now,
		}
		if aerr := s.audit.AppendAudit(ctx, entry); aerr != nil {
			logger.WarnContext(ctx, "failed to record audit entry", "error", aerr)
		}
	}
	return
}

// Deliver stores a notification for userID without the administrator check
// of Send. Room and reservation hooks use it.
func (s *NotificationService) Deliver(ctx context.Context, userID, title, message, kind string) error {
	if s == nil {
		return fmt.Errorf("NotificationService is nil")
	}
	if s.notifications == nil {
		return fmt.Errorf("%w: notification repository", ErrNotConfigured)
	}
	if strings.TrimSpace(userID) == "" {
		return newValidationError("usuario_id", "recipient is required")
	}
	if strings.TrimSpace(kind) == "" {
		kind = defaultNotificationType
	}
	return s.notifications.CreateNotifications(ctx, []Notification{{
		ID:        s.idGenerator(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      kind,
		CreatedAt: s.now(),
	}})
}

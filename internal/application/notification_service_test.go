package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/salafacil/salafacil/internal/persistence"
)

type notificationRepoStub struct {
	stored    []Notification
	createErr error
}

func (r *notificationRepoStub) CreateNotifications(ctx context.Context, notifications []Notification) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.stored = append(r.stored, notifications...)
	return nil
}

func (r *notificationRepoStub) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	var out []Notification
	for _, n := range r.stored {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *notificationRepoStub) MarkNotificationRead(ctx context.Context, id, userID string) error {
	for i, n := range r.stored {
		if n.ID == id && n.UserID == userID {
			r.stored[i].Read = true
			return nil
		}
	}
	return persistence.ErrNotFound
}

func TestNotificationService_Send(t *testing.T) {
	now := time.Date(2024, time.July, 22, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("requires administrators", func(t *testing.T) {
		svc := NewNotificationService(&notificationRepoStub{}, seededUsers(), nil, nil, clock)
		_, err := svc.Send(context.Background(), SendNotificationParams{Principal: userPrincipal, Title: "t", Message: "m"})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("validates title and message", func(t *testing.T) {
		svc := NewNotificationService(&notificationRepoStub{}, seededUsers(), nil, nil, clock)
		_, err := svc.Send(context.Background(), SendNotificationParams{Principal: adminPrincipal})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["title"] == "" || vErr.FieldErrors["message"] == "" {
			t.Fatalf("expected title and message errors, got %v", err)
		}
	})

	t.Run("sends to a single recipient without audit", func(t *testing.T) {
		repo := &notificationRepoStub{}
		audit := &auditStub{}
		svc := NewNotificationService(repo, seededUsers(), audit, sequentialIDs("n-"), clock)

		sent, err := svc.Send(context.Background(), SendNotificationParams{Principal: adminPrincipal, RecipientID: "user-1", Title: " Aviso ", Message: "Sala 3 em manutenção"})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if len(sent) != 1 || sent[0].UserID != "user-1" || sent[0].Title != "Aviso" || sent[0].Type != "info" {
			t.Fatalf("unexpected notifications %+v", sent)
		}
		if len(audit.entries) != 0 {
			t.Fatalf("expected no audit entry, got %v", audit.actions())
		}
	})

	t.Run("unknown recipients are rejected", func(t *testing.T) {
		svc := NewNotificationService(&notificationRepoStub{}, seededUsers(), nil, nil, clock)
		_, err := svc.Send(context.Background(), SendNotificationParams{Principal: adminPrincipal, RecipientID: "ghost", Title: "t", Message: "m"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["usuario_id"] == "" {
			t.Fatalf("expected usuario_id error, got %v", err)
		}
	})

	t.Run("broadcasts to active users and audits", func(t *testing.T) {
		users := seededUsers()
		blocked := users.users["user-1"]
		blocked.Status = UserStatusBlocked
		users.users["user-1"] = blocked

		repo := &notificationRepoStub{}
		audit := &auditStub{}
		svc := NewNotificationService(repo, users, audit, sequentialIDs("n-"), clock)

		sent, err := svc.Send(context.Background(), SendNotificationParams{Principal: adminPrincipal, Title: "Manutenção", Message: "Sistema fora do ar às 22h", Type: "warning"})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if len(sent) != 2 {
			t.Fatalf("expected two recipients, got %d", len(sent))
		}
		for _, n := range sent {
			if n.UserID == "user-1" {
				t.Fatalf("blocked user should not receive broadcasts")
			}
		}
		if actions := audit.actions(); len(actions) != 1 || actions[0] != AuditBroadcastNotification {
			t.Fatalf("unexpected audit actions %v", actions)
		}
	})

	t.Run("storage failures are returned", func(t *testing.T) {
		expected := errors.New("boom")
		svc := NewNotificationService(&notificationRepoStub{createErr: expected}, seededUsers(), nil, sequentialIDs("n-"), clock)
		if _, err := svc.Send(context.Background(), SendNotificationParams{Principal: adminPrincipal, RecipientID: "user-1", Title: "t", Message: "m"}); !errors.Is(err, expected) {
			t.Fatalf("expected %v, got %v", expected, err)
		}
	})
}

func TestNotificationService_ListAndMarkRead(t *testing.T) {
	base := time.Date(2024, time.July, 22, 9, 0, 0, 0, time.UTC)
	repo := &notificationRepoStub{stored: []Notification{
		{ID: "old", UserID: "user-1", CreatedAt: base},
		{ID: "new", UserID: "user-1", CreatedAt: base.Add(time.Hour)},
		{ID: "other", UserID: "admin-1", CreatedAt: base},
	}}
	svc := NewNotificationService(repo, seededUsers(), nil, nil, nil)

	list, err := svc.ListNotifications(context.Background(), userPrincipal)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(list) != 2 || list[0].ID != "new" || list[1].ID != "old" {
		t.Fatalf("unexpected list %+v", list)
	}

	if err := svc.MarkRead(context.Background(), userPrincipal, "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user's notification, got %v", err)
	}
	if err := svc.MarkRead(context.Background(), userPrincipal, "old"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !repo.stored[0].Read {
		t.Fatalf("expected notification marked read")
	}
}

func TestNotificationService_Deliver(t *testing.T) {
	now := time.Date(2024, time.July, 22, 9, 0, 0, 0, time.UTC)
	repo := &notificationRepoStub{}
	svc := NewNotificationService(repo, nil, nil, func() string { return "n-1" }, func() time.Time { return now })

	if err := svc.Deliver(context.Background(), "user-1", "Aviso", "Olá", ""); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(repo.stored) != 1 {
		t.Fatalf("expected one stored notification, got %+v", repo.stored)
	}
	got := repo.stored[0]
	if got.ID != "n-1" || got.UserID != "user-1" || got.Type != "info" || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected notification %+v", got)
	}

	var vErr *ValidationError
	if err := svc.Deliver(context.Background(), " ", "Aviso", "Olá", "system"); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError without recipient, got %v", err)
	}
	if err := NewNotificationService(nil, nil, nil, nil, nil).Deliver(context.Background(), "user-1", "Aviso", "Olá", ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/salafacil/salafacil/internal/persistence"
)

var (
	adminPrincipal = Principal{UserID: "admin-1", Role: RoleAdmin}
	userPrincipal  = Principal{UserID: "user-1", Role: RoleUser}
)

type roomRepoStub struct {
	createErr error
	created   Room

	getRoom Room
	getErr  error

	updateErr error
	updated   Room

	deleteErr error
	deletedID string

	list    []Room
	listErr error
}

func (r *roomRepoStub) CreateRoom(ctx context.Context, room Room) (Room, error) {
	if r.createErr != nil {
		return Room{}, r.createErr
	}
	r.created = room
	return room, nil
}

func (r *roomRepoStub) GetRoom(ctx context.Context, id string) (Room, error) {
	if r.getErr != nil {
		return Room{}, r.getErr
	}
	if r.getRoom.ID == "" || r.getRoom.ID != id {
		return Room{}, ErrNotFound
	}
	return r.getRoom, nil
}

func (r *roomRepoStub) UpdateRoom(ctx context.Context, room Room) (Room, error) {
	if r.updateErr != nil {
		return Room{}, r.updateErr
	}
	r.updated = room
	return room, nil
}

func (r *roomRepoStub) DeleteRoom(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.deletedID = id
	return nil
}

func (r *roomRepoStub) ListRooms(ctx context.Context) ([]Room, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	if len(r.list) == 0 {
		return nil, nil
	}
	out := make([]Room, len(r.list))
	copy(out, r.list)
	return out, nil
}

type locationLookupStub map[string]Location

func (l locationLookupStub) GetLocation(ctx context.Context, id string) (Location, error) {
	loc, ok := l[id]
	if !ok {
		return Location{}, persistence.ErrNotFound
	}
	return loc, nil
}

func TestRoomService_CreateRoom(t *testing.T) {
	t.Run("requires administrator privileges", func(t *testing.T) {
		svc := NewRoomService(nil, nil, nil, nil)

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: userPrincipal,
			Input:     RoomInput{Name: "Sala X", Capacity: 8},
		})

		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("validates required attributes", func(t *testing.T) {
		svc := NewRoomService(nil, nil, nil, nil)

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: adminPrincipal,
			Input:     RoomInput{Name: "   ", Capacity: 0},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["nome"]; !ok {
			t.Fatalf("expected nome validation error, got %v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["capacidade"]; !ok {
			t.Fatalf("expected capacidade validation error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("rejects unknown locations", func(t *testing.T) {
		missing := "loc-404"
		svc := NewRoomService(&roomRepoStub{}, locationLookupStub{}, nil, nil)

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: adminPrincipal,
			Input:     RoomInput{Name: "Sala X", Capacity: 8, LocationID: &missing},
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["localizacao_id"] != "location does not exist" {
			t.Fatalf("expected localizacao_id validation error, got %v", err)
		}
	})

	t.Run("persists rooms for administrators", func(t *testing.T) {
		repo := &roomRepoStub{}
		now := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
		location := "loc-1"
		svc := NewRoomService(repo, locationLookupStub{"loc-1": {ID: "loc-1"}}, func() string { return "room-1" }, func() time.Time { return now })

		created, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: adminPrincipal,
			Input: RoomInput{
				Name:       "  Sala X  ",
				Capacity:   8,
				LocationID: &location,
				Resources:  []string{" Projetor ", "", "projetor", "TV"},
			},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}

		if repo.created.ID != "room-1" {
			t.Fatalf("expected repository to receive generated ID, got %q", repo.created.ID)
		}
		if repo.created.Name != "Sala X" {
			t.Fatalf("expected name to be trimmed, got %q", repo.created.Name)
		}
		if !repo.created.Active {
			t.Fatalf("expected new rooms to default to active")
		}
		if got := repo.created.Resources; len(got) != 2 || got[0] != "Projetor" || got[1] != "TV" {
			t.Fatalf("expected resources to be trimmed and deduplicated, got %v", got)
		}
		if !repo.created.CreatedAt.Equal(now) || !repo.created.UpdatedAt.Equal(now) {
			t.Fatalf("expected timestamps to use injected clock, got created=%v updated=%v", repo.created.CreatedAt, repo.created.UpdatedAt)
		}
		if created.ID != "room-1" {
			t.Fatalf("expected returned room to include generated ID, got %q", created.ID)
		}
	})

	t.Run("maps repository errors to sentinel failures", func(t *testing.T) {
		repo := &roomRepoStub{createErr: persistence.ErrDuplicate}
		svc := NewRoomService(repo, nil, nil, nil)

		_, err := svc.CreateRoom(context.Background(), CreateRoomParams{
			Principal: adminPrincipal,
			Input:     RoomInput{Name: "Sala X", Capacity: 8},
		})

		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestRoomService_UpdateRoom(t *testing.T) {
	t.Run("requires administrator privileges", func(t *testing.T) {
		svc := NewRoomService(nil, nil, nil, nil)

		_, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{
			Principal: userPrincipal,
			RoomID:    "room-1",
			Input:     RoomInput{Name: "Sala", Capacity: 10},
		})

		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("propagates ErrNotFound when the room is missing", func(t *testing.T) {
		repo := &roomRepoStub{getErr: persistence.ErrNotFound}
		svc := NewRoomService(repo, nil, nil, nil)

		_, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{
			Principal: adminPrincipal,
			RoomID:    "missing",
			Input:     RoomInput{Name: "Sala", Capacity: 10},
		})

		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("keeps active flag unless provided", func(t *testing.T) {
		created := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
		repo := &roomRepoStub{getRoom: Room{ID: "room-1", Name: "Sala", Capacity: 4, Active: false, CreatedAt: created}}
		now := created.Add(24 * time.Hour)
		svc := NewRoomService(repo, nil, nil, func() time.Time { return now })

		updated, err := svc.UpdateRoom(context.Background(), UpdateRoomParams{
			Principal: adminPrincipal,
			RoomID:    "room-1",
			Input:     RoomInput{Name: "Sala Azul", Capacity: 6},
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if updated.Active {
			t.Fatalf("expected inactive room to stay inactive")
		}
		if updated.Name != "Sala Azul" || updated.Capacity != 6 {
			t.Fatalf("unexpected updated room %+v", updated)
		}
		if !updated.CreatedAt.Equal(created) || !updated.UpdatedAt.Equal(now) {
			t.Fatalf("unexpected timestamps created=%v updated=%v", updated.CreatedAt, updated.UpdatedAt)
		}
	})
}

func TestRoomService_DeleteRoom(t *testing.T) {
	t.Run("requires administrator privileges", func(t *testing.T) {
		svc := NewRoomService(&roomRepoStub{}, nil, nil, nil)
		if err := svc.DeleteRoom(context.Background(), userPrincipal, "room-1"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rooms with reservations are in use", func(t *testing.T) {
		svc := NewRoomService(&roomRepoStub{deleteErr: persistence.ErrForeignKeyViolation}, nil, nil, nil)
		if err := svc.DeleteRoom(context.Background(), adminPrincipal, "room-1"); !errors.Is(err, ErrInUse) {
			t.Fatalf("expected ErrInUse, got %v", err)
		}
	})

	t.Run("deletes for administrators", func(t *testing.T) {
		repo := &roomRepoStub{}
		svc := NewRoomService(repo, nil, nil, nil)
		if err := svc.DeleteRoom(context.Background(), adminPrincipal, "room-1"); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if repo.deletedID != "room-1" {
			t.Fatalf("expected room-1 to be deleted, got %q", repo.deletedID)
		}
	})
}

func TestRoomService_ListRooms(t *testing.T) {
	repo := &roomRepoStub{list: []Room{
		{ID: "b", Name: "sala b"},
		{ID: "a2", Name: "Sala A"},
		{ID: "a1", Name: "sala a"},
	}}
	svc := NewRoomService(repo, nil, nil, nil)

	rooms, err := svc.ListRooms(context.Background(), userPrincipal)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	got := []string{rooms[0].ID, rooms[1].ID, rooms[2].ID}
	want := []string{"a1", "a2", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestRoomService_Notifications(t *testing.T) {
	t.Run("create, update and delete notify the acting admin", func(t *testing.T) {
		repo := &roomRepoStub{getRoom: Room{ID: "room-1", Name: "Sala Velha", Capacity: 4, Active: true}}
		stub := &notifierStub{}
		svc := NewRoomService(repo, nil, func() string { return "room-1" }, nil).WithNotifier(stub)
		ctx := context.Background()

		if _, err := svc.CreateRoom(ctx, CreateRoomParams{Principal: adminPrincipal, Input: RoomInput{Name: "Sala Nova", Capacity: 8}}); err != nil {
			t.Fatalf("CreateRoom: %v", err)
		}
		if _, err := svc.UpdateRoom(ctx, UpdateRoomParams{Principal: adminPrincipal, RoomID: "room-1", Input: RoomInput{Name: "Sala Azul", Capacity: 6}}); err != nil {
			t.Fatalf("UpdateRoom: %v", err)
		}
		if err := svc.DeleteRoom(ctx, adminPrincipal, "room-1"); err != nil {
			t.Fatalf("DeleteRoom: %v", err)
		}

		want := []delivered{
			{userID: "admin-1", title: "Sala 'Sala Nova' criada com sucesso", message: "A sala Sala Nova (Capacidade: 8) foi criada com sucesso.", kind: "system"},
			{userID: "admin-1", title: "Sala 'Sala Azul' atualizada", message: "A sala Sala Velha foi atualizada com sucesso.", kind: "system"},
			{userID: "admin-1", title: "Sala 'Sala Velha' excluída", message: "A sala Sala Velha foi excluída com sucesso do sistema.", kind: "warning"},
		}
		if len(stub.sent) != len(want) {
			t.Fatalf("expected %d notifications, got %+v", len(want), stub.sent)
		}
		for i := range want {
			if stub.sent[i] != want[i] {
				t.Fatalf("notification %d: expected %+v, got %+v", i, want[i], stub.sent[i])
			}
		}
	})

	t.Run("failed writes send nothing", func(t *testing.T) {
		stub := &notifierStub{}
		svc := NewRoomService(&roomRepoStub{createErr: persistence.ErrDuplicate}, nil, nil, nil).WithNotifier(stub)
		if _, err := svc.CreateRoom(context.Background(), CreateRoomParams{Principal: adminPrincipal, Input: RoomInput{Name: "Sala", Capacity: 2}}); err == nil {
			t.Fatal("expected error")
		}
		if len(stub.sent) != 0 {
			t.Fatalf("expected no notifications, got %+v", stub.sent)
		}
	})

	t.Run("delivery failures do not fail the write", func(t *testing.T) {
		repo := &roomRepoStub{}
		svc := NewRoomService(repo, nil, func() string { return "room-9" }, nil).WithNotifier(&notifierStub{err: errors.New("store down")})
		if _, err := svc.CreateRoom(context.Background(), CreateRoomParams{Principal: adminPrincipal, Input: RoomInput{Name: "Sala", Capacity: 2}}); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if repo.created.ID != "room-9" {
			t.Fatalf("expected room to be stored, got %+v", repo.created)
		}
	})
}

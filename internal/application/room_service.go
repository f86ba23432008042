package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/salafacil/salafacil/internal/persistence"
)

// RoomRepository captures the persistence operations needed by the service.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	UpdateRoom(ctx context.Context, room Room) (Room, error)
	DeleteRoom(ctx context.Context, id string) error
	ListRooms(ctx context.Context) ([]Room, error)
}

// LocationLookup resolves locations referenced by rooms.
type LocationLookup interface {
	GetLocation(ctx context.Context, id string) (Location, error)
}

// RoomService orchestrates validation, authorization, and persistence for rooms.
type RoomService struct {
	rooms       RoomRepository
	locations   LocationLookup
	notifier    Notifier
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomRepository, locations LocationLookup, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, locations, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomRepository, locations LocationLookup, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, locations: locations, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// WithNotifier sends the acting administrator a notification after each
// room create, update and delete.
func (s *RoomService) WithNotifier(notifier Notifier) *RoomService {
	s.notifier = notifier
	return s
}

// notify is best effort; a failed delivery never fails the room write.
func (s *RoomService) notify(ctx context.Context, logger *slog.Logger, userID, title, message, kind string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Deliver(ctx, userID, title, message, kind); err != nil {
		logger.WarnContext(ctx, "failed to deliver room notification", "error", err)
	}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new room for administrators.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	vErr := validateRoomInput(params.Input)
	vErr.merge(s.validateLocation(ctx, params.Input.LocationID))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	active := true
	if params.Input.Active != nil {
		active = *params.Input.Active
	}

	room = Room{
		ID:          s.idGenerator(),
		Name:        strings.TrimSpace(params.Input.Name),
		Capacity:    params.Input.Capacity,
		Description: strings.TrimSpace(params.Input.Description),
		LocationID:  normalizeOptionalString(params.Input.LocationID),
		Resources:   normalizeResources(params.Input.Resources),
		Active:      active,
		CreatedAt:   s.now(),
	}
	room.UpdatedAt = room.CreatedAt

	if s.rooms == nil {
		return
	}

	var persisted Room
	persisted, err = s.rooms.CreateRoom(ctx, room)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	room = persisted
	s.notify(ctx, logger, params.Principal.UserID,
		fmt.Sprintf("Sala '%s' criada com sucesso", room.Name),
		fmt.Sprintf("A sala %s (Capacidade: %d) foi criada com sucesso.", room.Name, room.Capacity),
		notificationSystem)
	return
}

// UpdateRoom validates input and updates an existing room for administrators.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room updated")
	}()

	var existing Room
	existing, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	vErr := validateRoomInput(params.Input)
	vErr.merge(s.validateLocation(ctx, params.Input.LocationID))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = strings.TrimSpace(params.Input.Name)
	updated.Capacity = params.Input.Capacity
	updated.Description = strings.TrimSpace(params.Input.Description)
	updated.LocationID = normalizeOptionalString(params.Input.LocationID)
	updated.Resources = normalizeResources(params.Input.Resources)
	if params.Input.Active != nil {
		updated.Active = *params.Input.Active
	}
	updated.UpdatedAt = s.now()

	room, err = s.rooms.UpdateRoom(ctx, updated)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	s.notify(ctx, logger, params.Principal.UserID,
		fmt.Sprintf("Sala '%s' atualizada", room.Name),
		fmt.Sprintf("A sala %s foi atualizada com sucesso.", existing.Name),
		notificationSystem)
	return
}

// DeleteRoom removes an existing room when requested by an administrator.
// Rooms that still have reservations cannot be removed.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, roomID string) error {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}
	if !principal.IsAdmin() {
		return ErrUnauthorized
	}
	if s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)

	name := roomID
	if s.notifier != nil {
		existing, err := s.rooms.GetRoom(ctx, roomID)
		if err != nil {
			err = mapRoomRepoError(err)
			logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
			return err
		}
		name = existing.Name
	}

	if err := s.rooms.DeleteRoom(ctx, roomID); err != nil {
		err = mapRoomRepoError(err)
		logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "room deleted")
	s.notify(ctx, logger, principal.UserID,
		fmt.Sprintf("Sala '%s' excluída", name),
		fmt.Sprintf("A sala %s foi excluída com sucesso do sistema.", name),
		notificationWarning)
	return nil
}

// GetRoom returns a single room for any authenticated user.
func (s *RoomService) GetRoom(ctx context.Context, principal Principal, roomID string) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	room, err = s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		err = mapRoomRepoError(err)
		s.loggerWith(ctx, "GetRoom", "principal_id", principal.UserID, "room_id", roomID).
			ErrorContext(ctx, "failed to get room", "error", err, "error_kind", ErrorKind(err))
	}
	return
}

// ListRooms returns the catalog of rooms for any authenticated user.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListRooms",
		"principal_id", principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms listed")
	}()

	var raw []Room
	raw, err = s.rooms.ListRooms(ctx)
	if err != nil {
		return
	}

	rooms = make([]Room, len(raw))
	copy(rooms, raw)

	sort.Slice(rooms, func(i, j int) bool {
		if strings.EqualFold(rooms[i].Name, rooms[j].Name) {
			return rooms[i].ID < rooms[j].ID
		}
		return strings.ToLower(rooms[i].Name) < strings.ToLower(rooms[j].Name)
	})

	return
}

func (s *RoomService) validateLocation(ctx context.Context, locationID *string) *ValidationError {
	id := normalizeOptionalString(locationID)
	if id == nil || s.locations == nil {
		return nil
	}
	if _, err := s.locations.GetLocation(ctx, *id); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
			return newValidationError("localizacao_id", "location does not exist")
		}
		return newValidationError("localizacao_id", "location could not be verified")
	}
	return nil
}

func validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("nome", "name is required")
	}
	if input.Capacity <= 0 {
		vErr.add("capacidade", "capacity must be positive")
	}

	return vErr
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return ErrInUse
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return newValidationError("capacidade", "capacity must be positive")
	}
	return err
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeResources(resources []string) []string {
	if len(resources) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(resources))
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		trimmed := strings.TrimSpace(r)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

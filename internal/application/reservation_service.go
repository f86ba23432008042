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
	"github.com/salafacil/salafacil/internal/scheduler"
)

// ReservationGuard inspects the live reservations of the target room inside
// the repository's critical section. A non-nil error aborts the write.
type ReservationGuard func(existing []Reservation) error

// ReservationRepositoryFilter narrows queries issued to the reservation repository.
type ReservationRepositoryFilter struct {
	RoomID       string
	UserID       string
	Statuses     []scheduler.Status
	StartsBefore *time.Time
	EndsAfter    *time.Time
}

// ReservationRepository captures the persistence interactions needed by the service.
// UpdateReservation writes fields and status together and only succeeds when
// the stored status still equals expected.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation, guard ReservationGuard) (Reservation, error)
	UpdateReservation(ctx context.Context, reservation Reservation, expected scheduler.Status, guard ReservationGuard) (Reservation, error)
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationRepositoryFilter) ([]Reservation, error)
	TransitionReservationStatus(ctx context.Context, id string, from, to scheduler.Status, at time.Time) error
}

// RoomLookup resolves the room targeted by a reservation.
type RoomLookup interface {
	GetRoom(ctx context.Context, id string) (Room, error)
}

// RoomCatalog lists every room. It backs the room search and the dashboard.
type RoomCatalog interface {
	ListRooms(ctx context.Context) ([]Room, error)
}

// ReservationEventType names what happened to a reservation.
type ReservationEventType string

const (
	ReservationCreated       ReservationEventType = "reservation.created"
	ReservationUpdated       ReservationEventType = "reservation.updated"
	ReservationCancelled     ReservationEventType = "reservation.cancelled"
	ReservationStatusChanged ReservationEventType = "reservation.status_changed"
)

// ReservationEvent is emitted after a reservation write has been committed.
type ReservationEvent struct {
	Type           ReservationEventType
	Reservation    Reservation
	PreviousStatus scheduler.Status
	ActorID        string
	OccurredAt     time.Time
}

// EventPublisher delivers reservation events to interested consumers.
type EventPublisher interface {
	PublishReservationEvent(ctx context.Context, event ReservationEvent) error
}

// ReservationService orchestrates validation, conflict detection and
// persistence for reservations.
type ReservationService struct {
	reservations ReservationRepository
	rooms        RoomLookup
	catalog      RoomCatalog
	events       EventPublisher
	rule         scheduler.OverlapRule
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewReservationService wires dependencies for reservation operations.
func NewReservationService(reservations ReservationRepository, rooms RoomLookup, idGenerator func() string, now func() time.Time) *ReservationService {
	return NewReservationServiceWithLogger(reservations, rooms, idGenerator, now, nil)
}

// NewReservationServiceWithLogger wires dependencies with a specific logger.
func NewReservationServiceWithLogger(reservations ReservationRepository, rooms RoomLookup, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReservationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		reservations: reservations,
		rooms:        rooms,
		rule:         scheduler.RuleInclusive,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// WithOverlapRule selects how touching reservations are treated.
func (s *ReservationService) WithOverlapRule(rule scheduler.OverlapRule) *ReservationService {
	s.rule = rule
	return s
}

// WithRoomCatalog enables AvailableRooms and Dashboard.
func (s *ReservationService) WithRoomCatalog(catalog RoomCatalog) *ReservationService {
	s.catalog = catalog
	return s
}

// WithEvents attaches a publisher notified after every committed write.
func (s *ReservationService) WithEvents(events EventPublisher) *ReservationService {
	s.events = events
	return s
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// CreateReservation validates the request and persists it when the room is free.
func (s *ReservationService) CreateReservation(ctx context.Context, params CreateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	principal := params.Principal
	input := params.Input

	logger := s.loggerWith(ctx, "CreateReservation",
		"principal_id", principal.UserID,
		"room_id", input.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID).InfoContext(ctx, "reservation created")
	}()

	ownerID := strings.TrimSpace(input.UserID)
	if ownerID == "" {
		ownerID = principal.UserID
	}
	if ownerID != principal.UserID && !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	vErr := validateReservationInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.ensureRoomBookable(ctx, input.RoomID, input.Participants); err != nil {
		return
	}

	createdAt := s.now()
	candidate := Reservation{
		ID:           s.idGenerator(),
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		RoomID:       strings.TrimSpace(input.RoomID),
		UserID:       ownerID,
		Start:        input.Start,
		End:          input.End,
		Status:       scheduler.StatusScheduled,
		Participants: input.Participants,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}

	reservation, err = s.reservations.CreateReservation(ctx, candidate, s.conflictGuard(candidate))
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	s.publish(ctx, ReservationEvent{Type: ReservationCreated, Reservation: reservation, ActorID: principal.UserID, OccurredAt: createdAt})
	return
}

// GetReservation returns a single reservation for any authenticated user.
func (s *ReservationService) GetReservation(ctx context.Context, principal Principal, id string) (Reservation, error) {
	if s == nil {
		return Reservation{}, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return Reservation{}, fmt.Errorf("reservation repository not configured")
	}

	reservation, err := s.reservations.GetReservation(ctx, id)
	if err != nil {
		err = mapReservationRepoError(err)
		s.loggerWith(ctx, "GetReservation", "principal_id", principal.UserID, "reservation_id", id).
			ErrorContext(ctx, "failed to get reservation", "error", err, "error_kind", ErrorKind(err))
		return Reservation{}, err
	}
	return reservation, nil
}

// ListReservations returns reservations ordered by start time.
func (s *ReservationService) ListReservations(ctx context.Context, params ListReservationsParams) (reservations []Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListReservations",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list reservations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(reservations)).InfoContext(ctx, "reservations listed")
	}()

	if params.Status != "" && !params.Status.Valid() {
		err = newValidationError("status", "unknown status")
		return
	}
	if params.From != nil && params.To != nil && params.To.Before(*params.From) {
		err = newValidationError("fim", "end of window must not precede its start")
		return
	}

	filter := ReservationRepositoryFilter{
		RoomID:       strings.TrimSpace(params.RoomID),
		UserID:       strings.TrimSpace(params.UserID),
		StartsBefore: params.To,
		EndsAfter:    params.From,
	}
	if params.Status != "" {
		filter.Statuses = []scheduler.Status{params.Status}
	}

	var raw []Reservation
	raw, err = s.reservations.ListReservations(ctx, filter)
	if err != nil {
		if isNotFoundError(err) {
			err = nil
			return
		}
		return
	}

	reservations = make([]Reservation, len(raw))
	copy(reservations, raw)
	sortReservations(reservations)
	return
}

// UpdateReservation replaces the mutable fields of an open reservation.
func (s *ReservationService) UpdateReservation(ctx context.Context, params UpdateReservationParams) (Reservation, error) {
	input := params.Input
	patch := ReservationPatch{
		Title:        &input.Title,
		Description:  &input.Description,
		RoomID:       &input.RoomID,
		Start:        &input.Start,
		End:          &input.End,
		Participants: &input.Participants,
	}
	return s.applyPatch(ctx, "UpdateReservation", params.Principal, params.ReservationID, patch)
}

// PatchReservation applies a partial update. A status in the patch is
// checked against the lifecycle transition table.
func (s *ReservationService) PatchReservation(ctx context.Context, params PatchReservationParams) (Reservation, error) {
	return s.applyPatch(ctx, "PatchReservation", params.Principal, params.ReservationID, params.Patch)
}

// CancelReservation soft-cancels a reservation owned by the principal.
func (s *ReservationService) CancelReservation(ctx context.Context, principal Principal, id string) (Reservation, error) {
	cancelled := scheduler.StatusCancelled
	return s.applyPatch(ctx, "CancelReservation", principal, id, ReservationPatch{Status: &cancelled})
}

func (s *ReservationService) applyPatch(ctx context.Context, operation string, principal Principal, id string, patch ReservationPatch) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, operation,
		"principal_id", principal.UserID,
		"reservation_id", id,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to modify reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", string(reservation.Status)).InfoContext(ctx, "reservation modified")
	}()

	var existing Reservation
	existing, err = s.reservations.GetReservation(ctx, id)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	if existing.UserID != principal.UserID && !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if existing.Status.Terminal() {
		err = newValidationError("status", "closed reservations cannot be changed")
		return
	}

	updated := existing
	fieldsChanged := applyReservationPatch(&updated, patch)

	if fieldsChanged {
		vErr := validateReservationInput(ReservationInput{
			Title:        updated.Title,
			RoomID:       updated.RoomID,
			Start:        updated.Start,
			End:          updated.End,
			Participants: updated.Participants,
		})
		if vErr.HasErrors() {
			err = vErr
			return
		}
	}

	target := existing.Status
	if patch.Status != nil && *patch.Status != existing.Status {
		target = *patch.Status
		if !target.Valid() {
			err = newValidationError("status", "unknown status")
			return
		}
		if !scheduler.CanTransition(existing.Status, target) {
			err = newValidationError("status", fmt.Sprintf("cannot move from %s to %s", existing.Status, target))
			return
		}
	}

	if !fieldsChanged && target == existing.Status {
		reservation = existing
		return
	}

	now := s.now()
	if fieldsChanged && (updated.RoomID != existing.RoomID || updated.Participants > existing.Participants) {
		if err = s.ensureRoomBookable(ctx, updated.RoomID, updated.Participants); err != nil {
			return
		}
	}
	updated.Status = target
	updated.UpdatedAt = now
	if target == scheduler.StatusCancelled {
		cancelledAt := now
		updated.CancelledAt = &cancelledAt
	}

	// A row that stays live must not overlap another one after the write.
	var guard ReservationGuard
	if target != scheduler.StatusCancelled && reservationTimingChanged(existing, updated) {
		guard = s.conflictGuard(updated)
	}

	reservation, err = s.reservations.UpdateReservation(ctx, updated, existing.Status, guard)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	if fieldsChanged {
		s.publish(ctx, ReservationEvent{Type: ReservationUpdated, Reservation: reservation, PreviousStatus: existing.Status, ActorID: principal.UserID, OccurredAt: now})
	}
	if target != existing.Status {
		eventType := ReservationStatusChanged
		if target == scheduler.StatusCancelled {
			eventType = ReservationCancelled
		}
		s.publish(ctx, ReservationEvent{Type: eventType, Reservation: reservation, PreviousStatus: existing.Status, ActorID: principal.UserID, OccurredAt: now})
	}

	return
}

// CheckAvailability reports whether a room is free for the interval.
func (s *ReservationService) CheckAvailability(ctx context.Context, params AvailabilityParams) (result AvailabilityResult, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CheckAvailability",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("available", result.Available).InfoContext(ctx, "availability checked")
	}()

	vErr := &ValidationError{}
	validateInterval(params.Start, params.End, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if s.rooms != nil {
		if _, err = s.rooms.GetRoom(ctx, params.RoomID); err != nil {
			err = mapRoomRepoError(err)
			return
		}
	}

	result = AvailabilityResult{RoomID: params.RoomID, Available: true}
	if s.reservations == nil {
		return
	}

	var existing []Reservation
	existing, err = s.reservations.ListReservations(ctx, ReservationRepositoryFilter{
		RoomID:   params.RoomID,
		Statuses: nonCancelledStatuses(),
	})
	if err != nil {
		return
	}

	candidate := Reservation{ID: params.ExcludeID, RoomID: params.RoomID, Start: params.Start, End: params.End}
	if conflicts := s.findConflicts(existing, candidate); len(conflicts) > 0 {
		result.Available = false
		result.Conflicts = conflicts
	}
	return
}

func (s *ReservationService) conflictGuard(candidate Reservation) ReservationGuard {
	return func(existing []Reservation) error {
		conflicts := s.findConflicts(existing, candidate)
		if len(conflicts) == 0 {
			return nil
		}
		return &ConflictError{Conflicts: conflicts}
	}
}

func (s *ReservationService) findConflicts(existing []Reservation, candidate Reservation) []Reservation {
	if len(existing) == 0 {
		return nil
	}
	byID := make(map[string]Reservation, len(existing))
	bookings := make([]scheduler.Booking, 0, len(existing))
	for _, r := range existing {
		byID[r.ID] = r
		bookings = append(bookings, r.booking())
	}

	conflicts := scheduler.DetectConflicts(s.rule, bookings, candidate.booking())
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]Reservation, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, byID[c.WithBookingID])
	}
	sortReservations(out)
	return out
}

func (s *ReservationService) ensureRoomBookable(ctx context.Context, roomID string, participants int) error {
	if s.rooms == nil {
		return nil
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if isNotFoundError(err) {
			return newValidationError("sala_id", "room does not exist")
		}
		return err
	}
	if !room.Active {
		return newValidationError("sala_id", "room is not active")
	}
	if participants > room.Capacity {
		return newValidationError("participantes", fmt.Sprintf("room holds at most %d people", room.Capacity))
	}
	return nil
}

func (s *ReservationService) publish(ctx context.Context, event ReservationEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishReservationEvent(ctx, event); err != nil {
		s.loggerWith(ctx, "publish",
			"reservation_id", event.Reservation.ID,
			"event_type", string(event.Type),
		).WarnContext(ctx, "failed to publish reservation event", "error", err)
	}
}

func applyReservationPatch(r *Reservation, patch ReservationPatch) bool {
	changed := false
	if patch.Title != nil {
		r.Title = strings.TrimSpace(*patch.Title)
		changed = true
	}
	if patch.Description != nil {
		r.Description = strings.TrimSpace(*patch.Description)
		changed = true
	}
	if patch.RoomID != nil {
		r.RoomID = strings.TrimSpace(*patch.RoomID)
		changed = true
	}
	if patch.Start != nil {
		r.Start = *patch.Start
		changed = true
	}
	if patch.End != nil {
		r.End = *patch.End
		changed = true
	}
	if patch.Participants != nil {
		r.Participants = *patch.Participants
		changed = true
	}
	return changed
}

func reservationTimingChanged(before, after Reservation) bool {
	return before.RoomID != after.RoomID || !before.Start.Equal(after.Start) || !before.End.Equal(after.End)
}

func validateReservationInput(input ReservationInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Title) == "" {
		vErr.add("titulo", "title is required")
	}
	if strings.TrimSpace(input.RoomID) == "" {
		vErr.add("sala_id", "room is required")
	}
	if input.Participants < 0 {
		vErr.add("participantes", "participants cannot be negative")
	}
	validateInterval(input.Start, input.End, vErr)

	return vErr
}

func validateInterval(start, end time.Time, vErr *ValidationError) {
	if start.IsZero() {
		vErr.add("data_inicio", "start is required")
	}
	if end.IsZero() {
		vErr.add("data_fim", "end is required")
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		vErr.add("data_fim", "end must be after start")
	}
}

func nonCancelledStatuses() []scheduler.Status {
	return []scheduler.Status{scheduler.StatusScheduled, scheduler.StatusInProgress, scheduler.StatusCompleted}
}

func sortReservations(reservations []Reservation) {
	sort.SliceStable(reservations, func(i, j int) bool {
		if reservations[i].Start.Equal(reservations[j].Start) {
			return reservations[i].ID < reservations[j].ID
		}
		return reservations[i].Start.Before(reservations[j].Start)
	})
}

func mapReservationRepoError(err error) error {
	if err == nil {
		return nil
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return err
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	if isNotFoundError(err) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrStaleStatus) {
		return ErrStaleReservation
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return newValidationError("sala_id", "room or user does not exist")
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return newValidationError("data_fim", "end must be after start")
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	return err
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}

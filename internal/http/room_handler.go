package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/salafacil/salafacil/internal/application"
)

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	DeleteRoom(ctx context.Context, principal application.Principal, roomID string) error
	GetRoom(ctx context.Context, principal application.Principal, roomID string) (application.Room, error)
	ListRooms(ctx context.Context, principal application.Principal) ([]application.Room, error)
}

type availabilityService interface {
	CheckAvailability(ctx context.Context, params application.AvailabilityParams) (application.AvailabilityResult, error)
	AvailableRooms(ctx context.Context, params application.AvailableRoomsParams) ([]application.Room, error)
}

type RoomHandler struct {
	service      roomService
	availability availabilityService
	responder    responder
	logger       *slog.Logger
}

func NewRoomHandler(service roomService, availability availabilityService, exposeDetails bool, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, availability: availability, responder: newResponder(base, exposeDetails), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := principalOf(r)

	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode room request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	room, err := h.service.CreateRoom(r.Context(), application.CreateRoomParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("room_id", room.ID).InfoContext(r.Context(), "room created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toRoomDTO(room))
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request, roomID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := principalOf(r)

	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "room_id", roomID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode room update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "room_id", roomID)

	room, err := h.service.UpdateRoom(r.Context(), application.UpdateRoomParams{
		Principal: principal,
		RoomID:    roomID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "room update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRoomDTO(room))
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request, roomID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := principalOf(r)
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "room_id", roomID)
	if err := h.service.DeleteRoom(r.Context(), principal, roomID); err != nil {
		logger.ErrorContext(r.Context(), "room delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request, roomID string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := principalOf(r)
	room, err := h.service.GetRoom(r.Context(), principal, roomID)
	if err != nil {
		h.log(r.Context(), "Get", "principal_id", principal.UserID, "room_id", roomID).
			InfoContext(r.Context(), "room lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRoomDTO(room))
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := principalOf(r)
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	rooms, err := h.service.ListRooms(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(rooms)).DebugContext(r.Context(), "rooms listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRoomDTOs(rooms))
}

// Availability answers GET /salas/{id}/disponibilidade?inicio=&fim=&excluir=.
func (h *RoomHandler) Availability(w http.ResponseWriter, r *http.Request, roomID string) {
	if h == nil || h.availability == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	start, serr := parseTimestamp(query.Get("inicio"))
	end, eerr := parseTimestamp(query.Get("fim"))
	if serr != nil || eerr != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTimeSpan)
		return
	}

	principal := principalOf(r)
	result, err := h.availability.CheckAvailability(r.Context(), application.AvailabilityParams{
		Principal: principal,
		RoomID:    roomID,
		Start:     start,
		End:       end,
		ExcludeID: strings.TrimSpace(query.Get("excluir")),
	})
	if err != nil {
		h.log(r.Context(), "Availability", "principal_id", principal.UserID, "room_id", roomID).
			InfoContext(r.Context(), "availability check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		RoomID:    result.RoomID,
		Available: result.Available,
		Conflicts: toReservationDTOs(result.Conflicts),
	})
}

// Available answers GET /salas/disponiveis?inicio=&fim=&capacidade_min= with
// the active rooms free for the whole interval. data_inicio and data_fim are
// accepted as aliases and capacidade_min defaults to 1.
func (h *RoomHandler) Available(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.availability == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	start, serr := parseTimestamp(firstQueryValue(query.Get("inicio"), query.Get("data_inicio")))
	end, eerr := parseTimestamp(firstQueryValue(query.Get("fim"), query.Get("data_fim")))
	if serr != nil || eerr != nil || start.IsZero() || end.IsZero() {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTimeSpan)
		return
	}
	capacity := 1
	if raw := strings.TrimSpace(query.Get("capacidade_min")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidCapacity)
			return
		}
		capacity = parsed
	}

	principal := principalOf(r)
	logger := h.log(r.Context(), "Available", "principal_id", principal.UserID)
	rooms, err := h.availability.AvailableRooms(r.Context(), application.AvailableRoomsParams{
		Principal:   principal,
		Start:       start,
		End:         end,
		MinCapacity: capacity,
	})
	if err != nil {
		logger.InfoContext(r.Context(), "room search failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(rooms)).DebugContext(r.Context(), "free rooms listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRoomDTOs(rooms))
}

func firstQueryValue(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

type roomRequest struct {
	Name        string   `json:"nome"`
	Capacity    int      `json:"capacidade"`
	Description string   `json:"descricao"`
	LocationID  *string  `json:"localizacao_id"`
	Resources   []string `json:"recursos"`
	Active      *bool    `json:"ativa"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		Name:        strings.TrimSpace(r.Name),
		Capacity:    r.Capacity,
		Description: strings.TrimSpace(r.Description),
		LocationID:  trimmedPtr(r.LocationID),
		Resources:   r.Resources,
		Active:      r.Active,
	}
}

type roomDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"nome"`
	Capacity    int      `json:"capacidade"`
	Description string   `json:"descricao"`
	LocationID  *string  `json:"localizacao_id"`
	Resources   []string `json:"recursos"`
	Active      bool     `json:"ativa"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func toRoomDTO(room application.Room) roomDTO {
	resources := room.Resources
	if resources == nil {
		resources = []string{}
	}
	return roomDTO{
		ID:          room.ID,
		Name:        room.Name,
		Capacity:    room.Capacity,
		Description: room.Description,
		LocationID:  room.LocationID,
		Resources:   resources,
		Active:      room.Active,
		CreatedAt:   formatTime(room.CreatedAt),
		UpdatedAt:   formatTime(room.UpdatedAt),
	}
}

func toRoomDTOs(rooms []application.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}

type availabilityResponse struct {
	RoomID    string           `json:"sala_id"`
	Available bool             `json:"disponivel"`
	Conflicts []reservationDTO `json:"conflitos"`
}

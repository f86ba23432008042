package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/salafacil/salafacil/internal/application"
	"github.com/salafacil/salafacil/internal/scheduler"
)

type reservationService interface {
	CreateReservation(ctx context.Context, params application.CreateReservationParams) (application.Reservation, error)
	GetReservation(ctx context.Context, principal application.Principal, id string) (application.Reservation, error)
	ListReservations(ctx context.Context, params application.ListReservationsParams) ([]application.Reservation, error)
	UpdateReservation(ctx context.Context, params application.UpdateReservationParams) (application.Reservation, error)
	PatchReservation(ctx context.Context, params application.PatchReservationParams) (application.Reservation, error)
	CancelReservation(ctx context.Context, principal application.Principal, id string) (application.Reservation, error)
	Dashboard(ctx context.Context, principal application.Principal) (application.Dashboard, error)
}

type ReservationHandler struct {
	service   reservationService
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, exposeDetails bool, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{service: service, responder: newResponder(base, exposeDetails), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := principalOf(r)

	var req reservationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTimeSpan)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "room_id", input.RoomID)

	reservation, err := h.service.CreateReservation(r.Context(), application.CreateReservationParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.InfoContext(r.Context(), "reservation rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toReservationDTO(reservation))
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := principalOf(r)
	query := r.URL.Query()
	from, ferr := parseOptionalTimestamp(query.Get("inicio"))
	to, terr := parseOptionalTimestamp(query.Get("fim"))
	if ferr != nil || terr != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTimeSpan)
		return
	}

	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	reservations, err := h.service.ListReservations(r.Context(), application.ListReservationsParams{
		Principal: principal,
		RoomID:    strings.TrimSpace(query.Get("sala_id")),
		UserID:    strings.TrimSpace(query.Get("usuario_id")),
		Status:    scheduler.Status(strings.TrimSpace(query.Get("status"))),
		From:      from,
		To:        to,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(reservations)).DebugContext(r.Context(), "reservations listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReservationDTOs(reservations))
}

func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := principalOf(r)
	reservation, err := h.service.GetReservation(r.Context(), principal, id)
	if err != nil {
		h.log(r.Context(), "Get", "principal_id", principal.UserID, "reservation_id", id).
			InfoContext(r.Context(), "reservation lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReservationDTO(reservation))
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := principalOf(r)

	var req reservationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "reservation_id", id, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTimeSpan)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "reservation_id", id)
	reservation, err := h.service.UpdateReservation(r.Context(), application.UpdateReservationParams{
		Principal:     principal,
		ReservationID: id,
		Input:         input,
	})
	if err != nil {
		logger.InfoContext(r.Context(), "reservation update rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReservationDTO(reservation))
}

func (h *ReservationHandler) Patch(w http.ResponseWriter, r *http.Request, id string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := principalOf(r)

	var req reservationPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Patch", "principal_id", principal.UserID, "reservation_id", id, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation patch", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTimeSpan)
		return
	}

	logger := h.log(r.Context(), "Patch", "principal_id", principal.UserID, "reservation_id", id)
	reservation, err := h.service.PatchReservation(r.Context(), application.PatchReservationParams{
		Principal:     principal,
		ReservationID: id,
		Patch:         patch,
	})
	if err != nil {
		logger.InfoContext(r.Context(), "reservation patch rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("status", reservation.Status).InfoContext(r.Context(), "reservation patched")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReservationDTO(reservation))
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, id string) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := principalOf(r)
	logger := h.log(r.Context(), "Cancel", "principal_id", principal.UserID, "reservation_id", id)
	reservation, err := h.service.CancelReservation(r.Context(), principal, id)
	if err != nil {
		logger.InfoContext(r.Context(), "reservation cancel rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toReservationDTO(reservation))
}

// Dashboard answers GET /agendamentos/dashboard for the caller.
func (h *ReservationHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal := principalOf(r)
	dashboard, err := h.service.Dashboard(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Dashboard", "principal_id", principal.UserID).
			ErrorContext(r.Context(), "dashboard failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, dashboardResponse{
		MyReservationsToday: dashboard.MyReservationsToday,
		TotalRooms:          dashboard.TotalRooms,
		RoomsOccupiedNow:    dashboard.RoomsOccupiedNow,
		RoomsAvailableNow:   dashboard.RoomsAvailableNow,
		Upcoming:            toReservationDTOs(dashboard.Upcoming),
	})
}

type dashboardResponse struct {
	MyReservationsToday int              `json:"minhas_reservas_hoje"`
	TotalRooms          int              `json:"total_salas"`
	RoomsOccupiedNow    int              `json:"salas_ocupadas_agora"`
	RoomsAvailableNow   int              `json:"salas_disponiveis_agora"`
	Upcoming            []reservationDTO `json:"proximas_reservas"`
}

type reservationRequest struct {
	Title        string `json:"titulo"`
	Description  string `json:"descricao"`
	RoomID       string `json:"sala_id"`
	UserID       string `json:"usuario_id"`
	Start        string `json:"data_inicio"`
	End          string `json:"data_fim"`
	Participants int    `json:"participantes"`
}

func (r reservationRequest) toInput() (application.ReservationInput, error) {
	start, err := parseTimestamp(r.Start)
	if err != nil {
		return application.ReservationInput{}, err
	}
	end, err := parseTimestamp(r.End)
	if err != nil {
		return application.ReservationInput{}, err
	}
	return application.ReservationInput{
		Title:        strings.TrimSpace(r.Title),
		Description:  strings.TrimSpace(r.Description),
		RoomID:       strings.TrimSpace(r.RoomID),
		UserID:       strings.TrimSpace(r.UserID),
		Start:        start,
		End:          end,
		Participants: r.Participants,
	}, nil
}

type reservationPatchRequest struct {
	Title        *string `json:"titulo"`
	Description  *string `json:"descricao"`
	RoomID       *string `json:"sala_id"`
	Start        *string `json:"data_inicio"`
	End          *string `json:"data_fim"`
	Participants *int    `json:"participantes"`
	Status       *string `json:"status"`
}

func (r reservationPatchRequest) toPatch() (application.ReservationPatch, error) {
	patch := application.ReservationPatch{
		Title:        r.Title,
		Description:  r.Description,
		RoomID:       r.RoomID,
		Participants: r.Participants,
	}
	if r.Start != nil {
		start, err := parseTimestamp(*r.Start)
		if err != nil {
			return application.ReservationPatch{}, err
		}
		patch.Start = &start
	}
	if r.End != nil {
		end, err := parseTimestamp(*r.End)
		if err != nil {
			return application.ReservationPatch{}, err
		}
		patch.End = &end
	}
	if r.Status != nil {
		status := scheduler.Status(strings.TrimSpace(*r.Status))
		patch.Status = &status
	}
	return patch, nil
}

type reservationDTO struct {
	ID           string  `json:"id"`
	Title        string  `json:"titulo"`
	Description  string  `json:"descricao"`
	RoomID       string  `json:"sala_id"`
	UserID       string  `json:"usuario_id"`
	Start        string  `json:"data_inicio"`
	End          string  `json:"data_fim"`
	Status       string  `json:"status"`
	Participants int     `json:"participantes"`
	CancelledAt  *string `json:"cancelado_em,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func toReservationDTO(reservation application.Reservation) reservationDTO {
	return reservationDTO{
		ID:           reservation.ID,
		Title:        reservation.Title,
		Description:  reservation.Description,
		RoomID:       reservation.RoomID,
		UserID:       reservation.UserID,
		Start:        formatTime(reservation.Start),
		End:          formatTime(reservation.End),
		Status:       string(reservation.Status),
		Participants: reservation.Participants,
		CancelledAt:  formatTimePtr(reservation.CancelledAt),
		CreatedAt:    formatTime(reservation.CreatedAt),
		UpdatedAt:    formatTime(reservation.UpdatedAt),
	}
}

func toReservationDTOs(reservations []application.Reservation) []reservationDTO {
	out := make([]reservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		out = append(out, toReservationDTO(reservation))
	}
	return out
}

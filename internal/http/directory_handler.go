package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/salafacil/salafacil/internal/application"
)

type departmentService interface {
	ListDepartments(ctx context.Context, principal application.Principal) ([]application.Department, error)
	GetDepartment(ctx context.Context, principal application.Principal, id string) (application.Department, error)
	CreateDepartment(ctx context.Context, principal application.Principal, input application.DepartmentInput) (application.Department, error)
	UpdateDepartment(ctx context.Context, principal application.Principal, id string, input application.DepartmentInput) (application.Department, error)
	DeleteDepartment(ctx context.Context, principal application.Principal, id string) error
}

type locationService interface {
	ListLocations(ctx context.Context, principal application.Principal, activeOnly bool) ([]application.Location, error)
	GetLocation(ctx context.Context, principal application.Principal, id string) (application.Location, error)
	CreateLocation(ctx context.Context, principal application.Principal, input application.LocationInput) (application.Location, error)
	UpdateLocation(ctx context.Context, principal application.Principal, id string, input application.LocationInput) (application.Location, error)
	DeleteLocation(ctx context.Context, principal application.Principal, id string) error
}

// DirectoryHandler serves departments and locations.
type DirectoryHandler struct {
	departments departmentService
	locations   locationService
	responder   responder
	logger      *slog.Logger
}

func NewDirectoryHandler(departments departmentService, locations locationService, exposeDetails bool, logger *slog.Logger) *DirectoryHandler {
	base := defaultLogger(logger)
	return &DirectoryHandler{departments: departments, locations: locations, responder: newResponder(base, exposeDetails), logger: base}
}

func (h *DirectoryHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "DirectoryHandler", operation, attrs...)
}

func (h *DirectoryHandler) fail(w http.ResponseWriter, r *http.Request, operation string, err error, attrs ...any) {
	attrs = append(attrs, "principal_id", principalOf(r).UserID)
	h.log(r.Context(), operation, attrs...).
		InfoContext(r.Context(), "directory request failed", "error", err, "error_kind", application.ErrorKind(err))
	h.responder.handleServiceError(r.Context(), w, err)
}

func (h *DirectoryHandler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.departments.ListDepartments(r.Context(), principalOf(r))
	if err != nil {
		h.fail(w, r, "ListDepartments", err)
		return
	}
	out := make([]departmentDTO, 0, len(departments))
	for _, d := range departments {
		out = append(out, toDepartmentDTO(d))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (h *DirectoryHandler) GetDepartment(w http.ResponseWriter, r *http.Request, id string) {
	department, err := h.departments.GetDepartment(r.Context(), principalOf(r), id)
	if err != nil {
		h.fail(w, r, "GetDepartment", err, "department_id", id)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDepartmentDTO(department))
}

func (h *DirectoryHandler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req departmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	department, err := h.departments.CreateDepartment(r.Context(), principalOf(r), req.toInput())
	if err != nil {
		h.fail(w, r, "CreateDepartment", err)
		return
	}
	h.log(r.Context(), "CreateDepartment", "department_id", department.ID).InfoContext(r.Context(), "department created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toDepartmentDTO(department))
}

func (h *DirectoryHandler) UpdateDepartment(w http.ResponseWriter, r *http.Request, id string) {
	var req departmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	department, err := h.departments.UpdateDepartment(r.Context(), principalOf(r), id, req.toInput())
	if err != nil {
		h.fail(w, r, "UpdateDepartment", err, "department_id", id)
		return
	}
	h.log(r.Context(), "UpdateDepartment", "department_id", id).InfoContext(r.Context(), "department updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDepartmentDTO(department))
}

func (h *DirectoryHandler) DeleteDepartment(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.departments.DeleteDepartment(r.Context(), principalOf(r), id); err != nil {
		h.fail(w, r, "DeleteDepartment", err, "department_id", id)
		return
	}
	h.log(r.Context(), "DeleteDepartment", "department_id", id).InfoContext(r.Context(), "department deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// ListLocations answers GET /localizacoes; ?ativa=true keeps active sites only.
func (h *DirectoryHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := queryBool(r, "ativa")
	locations, err := h.locations.ListLocations(r.Context(), principalOf(r), activeOnly)
	if err != nil {
		h.fail(w, r, "ListLocations", err)
		return
	}
	out := make([]locationDTO, 0, len(locations))
	for _, l := range locations {
		out = append(out, toLocationDTO(l))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (h *DirectoryHandler) GetLocation(w http.ResponseWriter, r *http.Request, id string) {
	location, err := h.locations.GetLocation(r.Context(), principalOf(r), id)
	if err != nil {
		h.fail(w, r, "GetLocation", err, "location_id", id)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toLocationDTO(location))
}

func (h *DirectoryHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	location, err := h.locations.CreateLocation(r.Context(), principalOf(r), req.toInput())
	if err != nil {
		h.fail(w, r, "CreateLocation", err)
		return
	}
	h.log(r.Context(), "CreateLocation", "location_id", location.ID).InfoContext(r.Context(), "location created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toLocationDTO(location))
}

func (h *DirectoryHandler) UpdateLocation(w http.ResponseWriter, r *http.Request, id string) {
	var req locationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	location, err := h.locations.UpdateLocation(r.Context(), principalOf(r), id, req.toInput())
	if err != nil {
		h.fail(w, r, "UpdateLocation", err, "location_id", id)
		return
	}
	h.log(r.Context(), "UpdateLocation", "location_id", id).InfoContext(r.Context(), "location updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toLocationDTO(location))
}

func (h *DirectoryHandler) DeleteLocation(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.locations.DeleteLocation(r.Context(), principalOf(r), id); err != nil {
		h.fail(w, r, "DeleteLocation", err, "location_id", id)
		return
	}
	h.log(r.Context(), "DeleteLocation", "location_id", id).InfoContext(r.Context(), "location deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type departmentRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ParentID    *string `json:"parent_id"`
}

func (r departmentRequest) toInput() application.DepartmentInput {
	return application.DepartmentInput{
		Name:        strings.TrimSpace(r.Name),
		Description: strings.TrimSpace(r.Description),
		ParentID:    trimmedPtr(r.ParentID),
	}
}

type departmentDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ParentID    *string `json:"parent_id"`
	UsersCount  int     `json:"users_count"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toDepartmentDTO(d application.Department) departmentDTO {
	return departmentDTO{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		ParentID:    d.ParentID,
		UsersCount:  d.UsersCount,
		CreatedAt:   formatTime(d.CreatedAt),
		UpdatedAt:   formatTime(d.UpdatedAt),
	}
}

type locationRequest struct {
	Name       string `json:"nome"`
	Address    string `json:"endereco"`
	City       string `json:"cidade"`
	State      string `json:"estado"`
	PostalCode string `json:"cep"`
	Active     *bool  `json:"ativa"`
}

func (r locationRequest) toInput() application.LocationInput {
	return application.LocationInput{
		Name:       r.Name,
		Address:    r.Address,
		City:       r.City,
		State:      r.State,
		PostalCode: r.PostalCode,
		Active:     r.Active,
	}
}

type locationDTO struct {
	ID         string `json:"id"`
	Name       string `json:"nome"`
	Address    string `json:"endereco"`
	City       string `json:"cidade"`
	State      string `json:"estado"`
	PostalCode string `json:"cep"`
	Active     bool   `json:"ativa"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toLocationDTO(l application.Location) locationDTO {
	return locationDTO{
		ID:         l.ID,
		Name:       l.Name,
		Address:    l.Address,
		City:       l.City,
		State:      l.State,
		PostalCode: l.PostalCode,
		Active:     l.Active,
		CreatedAt:  formatTime(l.CreatedAt),
		UpdatedAt:  formatTime(l.UpdatedAt),
	}
}

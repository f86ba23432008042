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

// DepartmentRepository captures the persistence operations needed by the department service.
type DepartmentRepository interface {
	CreateDepartment(ctx context.Context, department Department) (Department, error)
	GetDepartment(ctx context.Context, id string) (Department, error)
	UpdateDepartment(ctx context.Context, department Department) (Department, error)
	DeleteDepartment(ctx context.Context, id string) error
	ListDepartments(ctx context.Context) ([]Department, error)
}

// DepartmentService manages organisational units.
type DepartmentService struct {
	departments DepartmentRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewDepartmentService wires dependencies for department operations.
func NewDepartmentService(departments DepartmentRepository, idGenerator func() string, now func() time.Time) *DepartmentService {
	return NewDepartmentServiceWithLogger(departments, idGenerator, now, nil)
}

// NewDepartmentServiceWithLogger wires dependencies with a specific logger.
func NewDepartmentServiceWithLogger(departments DepartmentRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *DepartmentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &DepartmentService{departments: departments, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *DepartmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "DepartmentService", operation, attrs...)
}

// ListDepartments returns every department with its user count.
func (s *DepartmentService) ListDepartments(ctx context.Context, principal Principal) ([]Department, error) {
	if s == nil {
		return nil, fmt.Errorf("DepartmentService is nil")
	}
	if s.departments == nil {
		return nil, nil
	}

	departments, err := s.departments.ListDepartments(ctx)
	if err != nil {
		s.loggerWith(ctx, "ListDepartments", "principal_id", principal.UserID).
			ErrorContext(ctx, "failed to list departments", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	out := make([]Department, len(departments))
	copy(out, departments)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// GetDepartment returns a single department.
func (s *DepartmentService) GetDepartment(ctx context.Context, principal Principal, id string) (Department, error) {
	if s == nil {
		return Department{}, fmt.Errorf("DepartmentService is nil")
	}
	if s.departments == nil {
		return Department{}, fmt.Errorf("department repository not configured")
	}
	department, err := s.departments.GetDepartment(ctx, id)
	if err != nil {
		return Department{}, mapDepartmentRepoError(err)
	}
	return department, nil
}

// CreateDepartment validates and stores a department for administrators.
func (s *DepartmentService) CreateDepartment(ctx context.Context, principal Principal, input DepartmentInput) (department Department, err error) {
	if s == nil {
		err = fmt.Errorf("DepartmentService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateDepartment", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create department", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("department_id", department.ID).InfoContext(ctx, "department created")
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	id := s.idGenerator()
	if err = s.validate(ctx, id, input); err != nil {
		return
	}

	department = Department{
		ID:          id,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		ParentID:    normalizeOptionalString(input.ParentID),
		CreatedAt:   s.now(),
	}
	department.UpdatedAt = department.CreatedAt

	if s.departments == nil {
		return
	}
	department, err = s.departments.CreateDepartment(ctx, department)
	err = mapDepartmentRepoError(err)
	return
}

// UpdateDepartment validates and replaces a department for administrators.
func (s *DepartmentService) UpdateDepartment(ctx context.Context, principal Principal, id string, input DepartmentInput) (department Department, err error) {
	if s == nil {
		err = fmt.Errorf("DepartmentService is nil")
		return
	}
	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if s.departments == nil {
		err = fmt.Errorf("department repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateDepartment",
		"principal_id", principal.UserID,
		"department_id", id,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update department", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "department updated")
	}()

	var existing Department
	existing, err = s.departments.GetDepartment(ctx, id)
	if err != nil {
		err = mapDepartmentRepoError(err)
		return
	}
	if err = s.validate(ctx, id, input); err != nil {
		return
	}

	existing.Name = strings.TrimSpace(input.Name)
	existing.Description = strings.TrimSpace(input.Description)
	existing.ParentID = normalizeOptionalString(input.ParentID)
	existing.UpdatedAt = s.now()

	department, err = s.departments.UpdateDepartment(ctx, existing)
	err = mapDepartmentRepoError(err)
	return
}

// DeleteDepartment removes a department that no user belongs to.
func (s *DepartmentService) DeleteDepartment(ctx context.Context, principal Principal, id string) error {
	if s == nil {
		return fmt.Errorf("DepartmentService is nil")
	}
	if !principal.IsAdmin() {
		return ErrUnauthorized
	}
	if s.departments == nil {
		return fmt.Errorf("department repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteDepartment",
		"principal_id", principal.UserID,
		"department_id", id,
	)

	existing, err := s.departments.GetDepartment(ctx, id)
	if err != nil {
		err = mapDepartmentRepoError(err)
		logger.ErrorContext(ctx, "failed to delete department", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	if existing.UsersCount > 0 {
		err = fmt.Errorf("%w: department has %d users", ErrInUse, existing.UsersCount)
		logger.ErrorContext(ctx, "failed to delete department", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if err := s.departments.DeleteDepartment(ctx, id); err != nil {
		err = mapDepartmentRepoError(err)
		logger.ErrorContext(ctx, "failed to delete department", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "department deleted")
	return nil
}

func (s *DepartmentService) validate(ctx context.Context, selfID string, input DepartmentInput) error {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}

	if parent := normalizeOptionalString(input.ParentID); parent != nil {
		if *parent == selfID {
			vErr.add("parent_id", "department cannot be its own parent")
		} else if s.departments != nil {
			if _, err := s.departments.GetDepartment(ctx, *parent); err != nil {
				if !isNotFoundError(err) {
					return err
				}
				vErr.add("parent_id", "parent department does not exist")
			}
		}
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func mapDepartmentRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFoundError(err) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return ErrInUse
	}
	return err
}

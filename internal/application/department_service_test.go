package application

import (
	"context"
	"errors"
	"testing"

	"github.com/salafacil/salafacil/internal/persistence"
)

type departmentRepoStub struct {
	departments map[string]Department
	deleted     []string
}

func newDepartmentRepoStub(departments ...Department) *departmentRepoStub {
	repo := &departmentRepoStub{departments: make(map[string]Department)}
	for _, d := range departments {
		repo.departments[d.ID] = d
	}
	return repo
}

func (r *departmentRepoStub) CreateDepartment(ctx context.Context, department Department) (Department, error) {
	for _, existing := range r.departments {
		if existing.Name == department.Name {
			return Department{}, persistence.ErrDuplicate
		}
	}
	r.departments[department.ID] = department
	return department, nil
}

func (r *departmentRepoStub) GetDepartment(ctx context.Context, id string) (Department, error) {
	d, ok := r.departments[id]
	if !ok {
		return Department{}, persistence.ErrNotFound
	}
	return d, nil
}

func (r *departmentRepoStub) UpdateDepartment(ctx context.Context, department Department) (Department, error) {
	r.departments[department.ID] = department
	return department, nil
}

func (r *departmentRepoStub) DeleteDepartment(ctx context.Context, id string) error {
	delete(r.departments, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *departmentRepoStub) ListDepartments(ctx context.Context) ([]Department, error) {
	out := make([]Department, 0, len(r.departments))
	for _, d := range r.departments {
		out = append(out, d)
	}
	return out, nil
}

func TestDepartmentService(t *testing.T) {
	seed := func() *departmentRepoStub {
		return newDepartmentRepoStub(
			Department{ID: "ti", Name: "TI", UsersCount: 3},
			Department{ID: "rh", Name: "RH"},
		)
	}

	t.Run("lists sorted by name", func(t *testing.T) {
		svc := NewDepartmentService(seed(), nil, nil)
		list, err := svc.ListDepartments(context.Background(), userPrincipal)
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if len(list) != 2 || list[0].ID != "rh" || list[1].UsersCount != 3 {
			t.Fatalf("unexpected list %+v", list)
		}
	})

	t.Run("create requires administrators", func(t *testing.T) {
		svc := NewDepartmentService(seed(), nil, nil)
		if _, err := svc.CreateDepartment(context.Background(), userPrincipal, DepartmentInput{Name: "Vendas"}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("create validates name and parent", func(t *testing.T) {
		svc := NewDepartmentService(seed(), func() string { return "new" }, nil)
		missing := "nope"

		_, err := svc.CreateDepartment(context.Background(), adminPrincipal, DepartmentInput{Name: " ", ParentID: &missing})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["name"] == "" || vErr.FieldErrors["parent_id"] == "" {
			t.Fatalf("expected name and parent_id errors, got %v", err)
		}
	})

	t.Run("create persists with parent", func(t *testing.T) {
		repo := seed()
		svc := NewDepartmentService(repo, func() string { return "suporte" }, nil)
		parent := "ti"

		created, err := svc.CreateDepartment(context.Background(), adminPrincipal, DepartmentInput{Name: " Suporte ", ParentID: &parent})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if created.Name != "Suporte" || created.ParentID == nil || *created.ParentID != "ti" {
			t.Fatalf("unexpected department %+v", created)
		}
	})

	t.Run("duplicate names conflict", func(t *testing.T) {
		svc := NewDepartmentService(seed(), func() string { return "dup" }, nil)
		if _, err := svc.CreateDepartment(context.Background(), adminPrincipal, DepartmentInput{Name: "TI"}); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("department cannot parent itself", func(t *testing.T) {
		svc := NewDepartmentService(seed(), nil, nil)
		self := "rh"
		_, err := svc.UpdateDepartment(context.Background(), adminPrincipal, "rh", DepartmentInput{Name: "RH", ParentID: &self})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["parent_id"] == "" {
			t.Fatalf("expected parent_id error, got %v", err)
		}
	})

	t.Run("departments with users cannot be deleted", func(t *testing.T) {
		repo := seed()
		svc := NewDepartmentService(repo, nil, nil)

		if err := svc.DeleteDepartment(context.Background(), adminPrincipal, "ti"); !errors.Is(err, ErrInUse) {
			t.Fatalf("expected ErrInUse, got %v", err)
		}
		if err := svc.DeleteDepartment(context.Background(), adminPrincipal, "rh"); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if len(repo.deleted) != 1 || repo.deleted[0] != "rh" {
			t.Fatalf("unexpected deletions %v", repo.deleted)
		}
	})
}

package sqlstore

import (
	"context"

	"github.com/salafacil/salafacil/internal/persistence"
)

const departmentSelect = `SELECT d.id, d.name, d.description, d.parent_id, d.created_at, d.updated_at,
	(SELECT COUNT(*) FROM usuarios u WHERE u.department_id = d.id) AS users_count
	FROM departments d`

// CreateDepartment inserts a new department.
func (s *Store) CreateDepartment(ctx context.Context, department persistence.Department) error {
	query := `INSERT INTO departments (id, name, description, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		department.ID,
		department.Name,
		department.Description,
		department.ParentID,
		utc(department.CreatedAt),
		utc(department.UpdatedAt),
	)
	return mapError(err)
}

// UpdateDepartment replaces an existing department.
func (s *Store) UpdateDepartment(ctx context.Context, department persistence.Department) error {
	query := `UPDATE departments SET name = ?, description = ?, parent_id = ?, updated_at = ? WHERE id = ?`
	return s.execOne(ctx, query,
		department.Name,
		department.Description,
		department.ParentID,
		utc(department.UpdatedAt),
		department.ID,
	)
}

// GetDepartment retrieves a department with its user count.
func (s *Store) GetDepartment(ctx context.Context, id string) (persistence.Department, error) {
	var department persistence.Department
	if err := s.db.GetContext(ctx, &department, s.rebind(departmentSelect+` WHERE d.id = ?`), id); err != nil {
		return persistence.Department{}, mapError(err)
	}
	return department, nil
}

// ListDepartments returns departments ordered by name.
func (s *Store) ListDepartments(ctx context.Context) ([]persistence.Department, error) {
	departments := []persistence.Department{}
	if err := s.db.SelectContext(ctx, &departments, departmentSelect+` ORDER BY d.name, d.id`); err != nil {
		return nil, mapError(err)
	}
	return departments, nil
}

// DeleteDepartment removes a department no user belongs to.
func (s *Store) DeleteDepartment(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM departments WHERE id = ?`, id)
}

const locationColumns = `id, nome, endereco, cidade, estado, cep, ativa, created_at, updated_at`

// CreateLocation inserts a new location.
func (s *Store) CreateLocation(ctx context.Context, location persistence.Location) error {
	query := `INSERT INTO localizacoes (` + locationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		location.ID,
		location.Name,
		location.Address,
		location.City,
		location.State,
		location.PostalCode,
		location.Active,
		utc(location.CreatedAt),
		utc(location.UpdatedAt),
	)
	return mapError(err)
}

// UpdateLocation replaces an existing location.
func (s *Store) UpdateLocation(ctx context.Context, location persistence.Location) error {
	query := `UPDATE localizacoes
		SET nome = ?, endereco = ?, cidade = ?, estado = ?, cep = ?, ativa = ?, updated_at = ?
		WHERE id = ?`
	return s.execOne(ctx, query,
		location.Name,
		location.Address,
		location.City,
		location.State,
		location.PostalCode,
		location.Active,
		utc(location.UpdatedAt),
		location.ID,
	)
}

// GetLocation retrieves a location by ID.
func (s *Store) GetLocation(ctx context.Context, id string) (persistence.Location, error) {
	var location persistence.Location
	query := `SELECT ` + locationColumns + ` FROM localizacoes WHERE id = ?`
	if err := s.db.GetContext(ctx, &location, s.rebind(query), id); err != nil {
		return persistence.Location{}, mapError(err)
	}
	return location, nil
}

// ListLocations returns locations ordered by name.
func (s *Store) ListLocations(ctx context.Context, activeOnly bool) ([]persistence.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM localizacoes`
	var args []any
	if activeOnly {
		query += ` WHERE ativa = ?`
		args = append(args, true)
	}
	query += ` ORDER BY nome, id`

	locations := []persistence.Location{}
	if err := s.db.SelectContext(ctx, &locations, s.rebind(query), args...); err != nil {
		return nil, mapError(err)
	}
	return locations, nil
}

// DeleteLocation removes a location no room references.
func (s *Store) DeleteLocation(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM localizacoes WHERE id = ?`, id)
}

const roomColumns = `id, nome, capacidade, descricao, localizacao_id, recursos, ativa, created_at, updated_at`

// CreateRoom inserts a new room.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) error {
	query := `INSERT INTO salas (` + roomColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		room.ID,
		room.Name,
		room.Capacity,
		room.Description,
		room.LocationID,
		room.Resources,
		room.Active,
		utc(room.CreatedAt),
		utc(room.UpdatedAt),
	)
	return mapError(err)
}

// UpdateRoom replaces an existing room.
func (s *Store) UpdateRoom(ctx context.Context, room persistence.Room) error {
	query := `UPDATE salas
		SET nome = ?, capacidade = ?, descricao = ?, localizacao_id = ?, recursos = ?, ativa = ?, updated_at = ?
		WHERE id = ?`
	return s.execOne(ctx, query,
		room.Name,
		room.Capacity,
		room.Description,
		room.LocationID,
		room.Resources,
		room.Active,
		utc(room.UpdatedAt),
		room.ID,
	)
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	var room persistence.Room
	query := `SELECT ` + roomColumns + ` FROM salas WHERE id = ?`
	if err := s.db.GetContext(ctx, &room, s.rebind(query), id); err != nil {
		return persistence.Room{}, mapError(err)
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name.
func (s *Store) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rooms := []persistence.Room{}
	if err := s.db.SelectContext(ctx, &rooms, `SELECT `+roomColumns+` FROM salas ORDER BY nome, id`); err != nil {
		return nil, mapError(err)
	}
	return rooms, nil
}

// DeleteRoom removes a room that has never been booked.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM salas WHERE id = ?`, id)
}

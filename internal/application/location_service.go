package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/salafacil/salafacil/internal/persistence"
)

var (
	statePattern      = regexp.MustCompile(`^[A-Z]{2}$`)
	postalCodePattern = regexp.MustCompile(`^\d{5}-?\d{3}$`)
)

// LocationRepository captures the persistence operations needed by the location service.
type LocationRepository interface {
	CreateLocation(ctx context.Context, location Location) (Location, error)
	GetLocation(ctx context.Context, id string) (Location, error)
	UpdateLocation(ctx context.Context, location Location) (Location, error)
	DeleteLocation(ctx context.Context, id string) error
	ListLocations(ctx context.Context, activeOnly bool) ([]Location, error)
}

// LocationService manages the sites that host rooms.
type LocationService struct {
	locations   LocationRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewLocationService wires dependencies for location operations.
func NewLocationService(locations LocationRepository, idGenerator func() string, now func() time.Time) *LocationService {
	return NewLocationServiceWithLogger(locations, idGenerator, now, nil)
}

// NewLocationServiceWithLogger wires dependencies with a specific logger.
func NewLocationServiceWithLogger(locations LocationRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *LocationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &LocationService{locations: locations, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *LocationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LocationService", operation, attrs...)
}

// ListLocations returns locations sorted by name.
func (s *LocationService) ListLocations(ctx context.Context, principal Principal, activeOnly bool) ([]Location, error) {
	if s == nil {
		return nil, fmt.Errorf("LocationService is nil")
	}
	if s.locations == nil {
		return nil, nil
	}
	locations, err := s.locations.ListLocations(ctx, activeOnly)
	if err != nil {
		s.loggerWith(ctx, "ListLocations", "principal_id", principal.UserID).
			ErrorContext(ctx, "failed to list locations", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	out := make([]Location, len(locations))
	copy(out, locations)
	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Name, out[j].Name) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// GetLocation returns a single location.
func (s *LocationService) GetLocation(ctx context.Context, principal Principal, id string) (Location, error) {
	if s == nil {
		return Location{}, fmt.Errorf("LocationService is nil")
	}
	if s.locations == nil {
		return Location{}, fmt.Errorf("location repository not configured")
	}
	location, err := s.locations.GetLocation(ctx, id)
	if err != nil {
		return Location{}, mapLocationRepoError(err)
	}
	return location, nil
}

// CreateLocation validates and stores a location for administrators.
func (s *LocationService) CreateLocation(ctx context.Context, principal Principal, input LocationInput) (location Location, err error) {
	if s == nil {
		err = fmt.Errorf("LocationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateLocation", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create location", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("location_id", location.ID).InfoContext(ctx, "location created")
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	normalized := normalizeLocationInput(input)
	if vErr := validateLocationInput(normalized); vErr.HasErrors() {
		err = vErr
		return
	}

	active := true
	if normalized.Active != nil {
		active = *normalized.Active
	}

	location = Location{
		ID:         s.idGenerator(),
		Name:       normalized.Name,
		Address:    normalized.Address,
		City:       normalized.City,
		State:      normalized.State,
		PostalCode: normalized.PostalCode,
		Active:     active,
		CreatedAt:  s.now(),
	}
	location.UpdatedAt = location.CreatedAt

	if s.locations == nil {
		return
	}
	location, err = s.locations.CreateLocation(ctx, location)
	err = mapLocationRepoError(err)
	return
}

// UpdateLocation validates and replaces a location for administrators.
func (s *LocationService) UpdateLocation(ctx context.Context, principal Principal, id string, input LocationInput) (location Location, err error) {
	if s == nil {
		err = fmt.Errorf("LocationService is nil")
		return
	}
	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if s.locations == nil {
		err = fmt.Errorf("location repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateLocation",
		"principal_id", principal.UserID,
		"location_id", id,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update location", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "location updated")
	}()

	var existing Location
	existing, err = s.locations.GetLocation(ctx, id)
	if err != nil {
		err = mapLocationRepoError(err)
		return
	}

	normalized := normalizeLocationInput(input)
	if vErr := validateLocationInput(normalized); vErr.HasErrors() {
		err = vErr
		return
	}

	existing.Name = normalized.Name
	existing.Address = normalized.Address
	existing.City = normalized.City
	existing.State = normalized.State
	existing.PostalCode = normalized.PostalCode
	if normalized.Active != nil {
		existing.Active = *normalized.Active
	}
	existing.UpdatedAt = s.now()

	location, err = s.locations.UpdateLocation(ctx, existing)
	err = mapLocationRepoError(err)
	return
}

// DeleteLocation removes a location no room references.
func (s *LocationService) DeleteLocation(ctx context.Context, principal Principal, id string) error {
	if s == nil {
		return fmt.Errorf("LocationService is nil")
	}
	if !principal.IsAdmin() {
		return ErrUnauthorized
	}
	if s.locations == nil {
		return fmt.Errorf("location repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteLocation",
		"principal_id", principal.UserID,
		"location_id", id,
	)
	if err := s.locations.DeleteLocation(ctx, id); err != nil {
		err = mapLocationRepoError(err)
		logger.ErrorContext(ctx, "failed to delete location", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "location deleted")
	return nil
}

func normalizeLocationInput(input LocationInput) LocationInput {
	return LocationInput{
		Name:       strings.TrimSpace(input.Name),
		Address:    strings.TrimSpace(input.Address),
		City:       strings.TrimSpace(input.City),
		State:      strings.ToUpper(strings.TrimSpace(input.State)),
		PostalCode: strings.TrimSpace(input.PostalCode),
		Active:     input.Active,
	}
}

func validateLocationInput(input LocationInput) *ValidationError {
	vErr := &ValidationError{}
	if input.Name == "" {
		vErr.add("nome", "name is required")
	}
	if input.State != "" && !statePattern.MatchString(input.State) {
		vErr.add("estado", "state must be a two letter code")
	}
	if input.PostalCode != "" && !postalCodePattern.MatchString(input.PostalCode) {
		vErr.add("cep", "postal code must have 8 digits")
	}
	return vErr
}

func mapLocationRepoError(err error) error {
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

package application

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInUse is returned when a resource cannot be removed while others reference it.
	ErrInUse = errors.New("application: resource in use")
	// ErrConflict is returned when a reservation collides with an existing one.
	ErrConflict = errors.New("application: booking conflict")
	// ErrStaleReservation is returned when another write changed the reservation status first.
	ErrStaleReservation = errors.New("application: reservation changed concurrently")
	// ErrInvalidCredentials is returned when authentication input does not match.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrExternalAccount is returned on password login for accounts created through Google.
	ErrExternalAccount = errors.New("application: account uses external sign-in")
	// ErrAccountDisabled is returned when the account is blocked.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned when a token or session is past its expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a refresh session was revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrNotConfigured is returned when an optional integration was not set up.
	ErrNotConfigured = errors.New("application: not configured")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func newValidationError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// ConflictError lists the reservations that block a booking.
type ConflictError struct {
	Conflicts []Reservation
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c == nil || len(c.Conflicts) == 0 {
		return ErrConflict.Error()
	}
	ids := make([]string, 0, len(c.Conflicts))
	for _, r := range c.Conflicts {
		ids = append(ids, r.ID)
	}
	return fmt.Sprintf("%s: overlaps %s", ErrConflict.Error(), strings.Join(ids, ", "))
}

// Unwrap lets errors.Is match ErrConflict.
func (c *ConflictError) Unwrap() error {
	return ErrConflict
}

package bootstrap

import (
	"slices"
	"time"

	"github.com/salafacil/salafacil/internal/application"
	"github.com/salafacil/salafacil/internal/persistence"
	"github.com/salafacil/salafacil/internal/scheduler"
)

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:           model.ID,
		Username:     model.Username,
		Email:        model.Email,
		Name:         model.Name,
		Phone:        model.Phone,
		Role:         application.Role(model.Role),
		Status:       application.UserStatus(model.Status),
		DepartmentID: cloneString(model.DepartmentID),
		GoogleID:     cloneString(model.GoogleID),
		LastLoginAt:  cloneTime(model.LastLoginAt),
		BlockedAt:    cloneTime(model.BlockedAt),
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

// toPersistenceUser converts user; an empty passwordHash is stored as NULL.
func toPersistenceUser(user application.User, passwordHash *string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Name:         user.Name,
		Phone:        user.Phone,
		PasswordHash: cloneString(passwordHash),
		Role:         string(user.Role),
		Status:       string(user.Status),
		DepartmentID: cloneString(user.DepartmentID),
		GoogleID:     cloneString(user.GoogleID),
		LastLoginAt:  cloneTime(user.LastLoginAt),
		BlockedAt:    cloneTime(user.BlockedAt),
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationDepartment(model persistence.Department) application.Department {
	return application.Department{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		ParentID:    cloneString(model.ParentID),
		UsersCount:  model.UsersCount,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceDepartment(department application.Department) persistence.Department {
	return persistence.Department{
		ID:          department.ID,
		Name:        department.Name,
		Description: department.Description,
		ParentID:    cloneString(department.ParentID),
		CreatedAt:   department.CreatedAt,
		UpdatedAt:   department.UpdatedAt,
	}
}

func toApplicationLocation(model persistence.Location) application.Location {
	return application.Location{
		ID:         model.ID,
		Name:       model.Name,
		Address:    model.Address,
		City:       model.City,
		State:      model.State,
		PostalCode: model.PostalCode,
		Active:     model.Active,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toPersistenceLocation(location application.Location) persistence.Location {
	return persistence.Location{
		ID:         location.ID,
		Name:       location.Name,
		Address:    location.Address,
		City:       location.City,
		State:      location.State,
		PostalCode: location.PostalCode,
		Active:     location.Active,
		CreatedAt:  location.CreatedAt,
		UpdatedAt:  location.UpdatedAt,
	}
}

func toApplicationRoom(model persistence.Room) application.Room {
	resources := slices.Clone([]string(model.Resources))
	if resources == nil {
		resources = []string{}
	}
	return application.Room{
		ID:          model.ID,
		Name:        model.Name,
		Capacity:    model.Capacity,
		Description: model.Description,
		LocationID:  cloneString(model.LocationID),
		Resources:   resources,
		Active:      model.Active,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:          room.ID,
		Name:        room.Name,
		Capacity:    room.Capacity,
		Description: room.Description,
		LocationID:  cloneString(room.LocationID),
		Resources:   persistence.StringList(slices.Clone(room.Resources)),
		Active:      room.Active,
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
	}
}

func toApplicationReservation(model persistence.Reservation) application.Reservation {
	return application.Reservation{
		ID:           model.ID,
		Title:        model.Title,
		Description:  model.Description,
		RoomID:       model.RoomID,
		UserID:       model.UserID,
		Start:        model.Start,
		End:          model.End,
		Status:       scheduler.Status(model.Status),
		Participants: model.Participants,
		CancelledAt:  cloneTime(model.CancelledAt),
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func toPersistenceReservation(reservation application.Reservation) persistence.Reservation {
	return persistence.Reservation{
		ID:           reservation.ID,
		Title:        reservation.Title,
		Description:  reservation.Description,
		RoomID:       reservation.RoomID,
		UserID:       reservation.UserID,
		Start:        reservation.Start,
		End:          reservation.End,
		Status:       string(reservation.Status),
		Participants: reservation.Participants,
		CancelledAt:  cloneTime(reservation.CancelledAt),
		CreatedAt:    reservation.CreatedAt,
		UpdatedAt:    reservation.UpdatedAt,
	}
}

func toApplicationReservations(models []persistence.Reservation) []application.Reservation {
	out := make([]application.Reservation, 0, len(models))
	for _, model := range models {
		out = append(out, toApplicationReservation(model))
	}
	return out
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:        model.ID,
		UserID:    model.UserID,
		TokenHash: model.TokenHash,
		ExpiresAt: model.ExpiresAt,
		RevokedAt: cloneTime(model.RevokedAt),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		TokenHash: session.TokenHash,
		ExpiresAt: session.ExpiresAt,
		RevokedAt: cloneTime(session.RevokedAt),
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
}

func toApplicationNotification(model persistence.Notification) application.Notification {
	return application.Notification{
		ID:        model.ID,
		UserID:    model.UserID,
		Title:     model.Title,
		Message:   model.Message,
		Type:      model.Type,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

func toPersistenceNotification(notification application.Notification) persistence.Notification {
	return persistence.Notification{
		ID:        notification.ID,
		UserID:    notification.UserID,
		Title:     notification.Title,
		Message:   notification.Message,
		Type:      notification.Type,
		Read:      notification.Read,
		CreatedAt: notification.CreatedAt,
	}
}

func toApplicationAuditEntry(model persistence.AuditEntry) application.AuditEntry {
	return application.AuditEntry{
		ID:           model.ID,
		AdminID:      model.AdminID,
		Action:       model.Action,
		TargetUserID: cloneString(model.TargetUserID),
		Details:      model.Details,
		CreatedAt:    model.CreatedAt,
	}
}

func toPersistenceAuditEntry(entry application.AuditEntry) persistence.AuditEntry {
	return persistence.AuditEntry{
		ID:           entry.ID,
		AdminID:      entry.AdminID,
		Action:       entry.Action,
		TargetUserID: cloneString(entry.TargetUserID),
		Details:      entry.Details,
		CreatedAt:    entry.CreatedAt,
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copy := *value
	return &copy
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copy := *value
	return &copy
}

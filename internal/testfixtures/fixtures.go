package testfixtures

import (
	"fmt"
	"time"

	"github.com/salafacil/salafacil/internal/application"
)

// referenceTime is a Monday morning before any fixture booking starts.
var referenceTime = time.Date(2024, time.July, 22, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the baseline instant used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// DefaultPassword satisfies the minimum password length.
const DefaultPassword = "segredo123"

// AdminInput describes the bootstrap administrator.
func AdminInput() application.UserInput {
	return application.UserInput{
		Email:    "admin@salafacil.dev",
		Name:     "Administrador",
		Password: DefaultPassword,
	}
}

// RegisterParams describes a self-registered user named after n.
func RegisterParams(n int) application.RegisterParams {
	return application.RegisterParams{
		Email:    fmt.Sprintf("usuario%d@salafacil.dev", n),
		Password: DefaultPassword,
		Name:     fmt.Sprintf("Usuário %d", n),
	}
}

// RoomInput describes an active room.
func RoomInput(name string, capacity int) application.RoomInput {
	return application.RoomInput{
		Name:      name,
		Capacity:  capacity,
		Resources: []string{"projetor", "tv"},
	}
}

// ReservationInput books roomID from start for d.
func ReservationInput(roomID string, start time.Time, d time.Duration) application.ReservationInput {
	return application.ReservationInput{
		Title:        "Reunião",
		RoomID:       roomID,
		Start:        start,
		End:          start.Add(d),
		Participants: 2,
	}
}

// At returns the reference day at hour:minute UTC.
func At(hour, minute int) time.Time {
	y, m, d := referenceTime.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, time.UTC)
}

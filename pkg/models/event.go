package models

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventBookingCreated   EventKind = "booking_created"
	EventBookingCancelled EventKind = "booking_cancelled"
	EventRideEdited       EventKind = "ride_edited"
	EventRideCancelled    EventKind = "ride_cancelled"
)

// Event describes a state change that some counterparts must hear about.
// It is self-contained so it can travel through a broker without lookups.
type Event struct {
	ID            string    `json:"id"`
	Kind          EventKind `json:"kind"`
	RideID        int64     `json:"ride_id"`
	BookingID     int64     `json:"booking_id,omitempty"`
	Destination   string    `json:"destination"`
	Field         string    `json:"field,omitempty"`
	Value         string    `json:"value,omitempty"`
	ActorName     string    `json:"actor_name"`
	ActorUsername string    `json:"actor_username,omitempty"`
	Recipients    []int64   `json:"recipients"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewEvent(kind EventKind, ride *Ride, actor *User, recipients ...int64) Event {
	ev := Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Recipients: recipients,
		CreatedAt:  time.Now().UTC(),
	}
	if ride != nil {
		ev.RideID = ride.ID
		ev.Destination = ride.Destination
	}
	if actor != nil {
		ev.ActorName = actor.FullName
		ev.ActorUsername = actor.Username
	}
	return ev
}

// BookingCreatedEvent is the driver-facing notice for a stored booking row.
func BookingCreatedEvent(b *Booking) Event {
	ev := NewEvent(EventBookingCreated, &Ride{ID: b.RideID, Destination: b.Destination},
		&User{ID: b.PassengerID, FullName: b.PassengerName, Username: b.PassengerUsername}, b.DriverID)
	ev.BookingID = b.ID
	return ev
}

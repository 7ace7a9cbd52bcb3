package models

import "time"

// Ride fields that a driver may change after publishing.
const (
	FieldTime        = "time"
	FieldDestination = "destination"
	FieldPrice       = "price"
	FieldSeats       = "seats"
)

type Ride struct {
	ID          int64     `json:"id" bson:"_id"`
	DriverID    int64     `json:"driver_id" bson:"driver_id"`
	Destination string    `json:"destination" bson:"destination"`
	Time        string    `json:"time" bson:"time"`
	Seats       int       `json:"seats" bson:"seats"`
	SeatsTaken  int       `json:"seats_taken" bson:"seats_taken"`
	Price       string    `json:"price" bson:"price"`
	Comment     string    `json:"comment" bson:"comment"`
	IsActive    bool      `json:"is_active" bson:"is_active"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`

	// populated by joins
	DriverName     string `json:"driver_name,omitempty" bson:"-"`
	DriverUsername string `json:"driver_username,omitempty" bson:"-"`
}

func (r Ride) SeatsLeft() int {
	return r.Seats - r.SeatsTaken
}

// RideInput is what a driver submits when publishing a ride.
type RideInput struct {
	Destination string `json:"destination"`
	Time        string `json:"time"`
	Seats       int    `json:"seats"`
	Price       string `json:"price"`
	Comment     string `json:"comment"`
}

// RideUpdate is the outcome of an edit or cancellation: the ride after the
// change and the passengers that were booked on it.
type RideUpdate struct {
	Ride       *Ride
	Passengers []*User
}

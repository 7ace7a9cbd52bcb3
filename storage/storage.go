package storage

import (
	"context"

	"ridebot/pkg/models"
)

type IStorage interface {
	User() IUserStorage
	Ride() IRideStorage
	Booking() IBookingStorage
	// Reset wipes users, rides and bookings.
	Reset(ctx context.Context) error
	Close()
}

type IUserStorage interface {
	Upsert(ctx context.Context, user *models.User) (*models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
}

// IRideStorage mutations that touch seats or bookings are atomic per ride.
// driverID arguments scope the mutation to rides owned by that driver.
type IRideStorage interface {
	Create(ctx context.Context, ride *models.Ride) (*models.Ride, error)
	GetByID(ctx context.Context, id int64) (*models.Ride, error)
	UpdateText(ctx context.Context, driverID, rideID int64, field, value string) (*models.RideUpdate, error)
	UpdateSeats(ctx context.Context, driverID, rideID int64, seats int) (*models.RideUpdate, error)
	Cancel(ctx context.Context, driverID, rideID int64) (*models.RideUpdate, error)
	GetDriverRides(ctx context.Context, driverID int64) ([]*models.Ride, error)
	GetPassengerRides(ctx context.Context, passengerID int64) ([]*models.Ride, error)
	// Search returns active rides with free seats; an empty query matches all.
	Search(ctx context.Context, query string) ([]*models.Ride, error)
	GetActive(ctx context.Context) ([]*models.Ride, error)
}

type IBookingStorage interface {
	// Book inserts a booking and takes one seat, or fails with
	// NotFound, Duplicate or Capacity and changes nothing.
	Book(ctx context.Context, rideID, passengerID int64) (*models.Booking, error)
	// Unbook deletes the booking and frees one seat.
	Unbook(ctx context.Context, rideID, passengerID int64) (*models.Booking, error)
	Get(ctx context.Context, rideID, passengerID int64) (*models.Booking, error)
	GetUnnotified(ctx context.Context, limit int) ([]*models.Booking, error)
	MarkNotified(ctx context.Context, id int64) error
	RecordFailedAttempt(ctx context.Context, id int64) (int, error)
}

type ISessionStorage interface {
	// Get returns nil, nil when the user has no session.
	Get(ctx context.Context, userID int64) (*models.Session, error)
	Save(ctx context.Context, userID int64, session *models.Session) error
	Delete(ctx context.Context, userID int64) error
}

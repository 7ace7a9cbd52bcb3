// Package memory is an in-process implementation of storage.IStorage. It backs
// STORAGE_BACKEND=memory for local runs and the unit test suites.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ridebot/pkg/models"
	"ridebot/storage"
)

type Store struct {
	mu sync.Mutex

	users    map[int64]models.User
	rides    map[int64]models.Ride
	bookings map[int64]models.Booking

	nextRideID    int64
	nextBookingID int64

	now func() time.Time
}

func New() *Store {
	s := &Store{now: time.Now}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.users = map[int64]models.User{}
	s.rides = map[int64]models.Ride{}
	s.bookings = map[int64]models.Booking{}
	s.nextRideID, s.nextBookingID = 0, 0
}

func (s *Store) User() storage.IUserStorage       { return userRepo{s} }
func (s *Store) Ride() storage.IRideStorage       { return rideRepo{s} }
func (s *Store) Booking() storage.IBookingStorage { return bookingRepo{s} }

func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

func (s *Store) Close() {}

// withDriver copies r and fills the driver columns. Caller holds mu.
func (s *Store) withDriver(r models.Ride) *models.Ride {
	if u, ok := s.users[r.DriverID]; ok {
		r.DriverName = u.FullName
		r.DriverUsername = u.Username
	}
	return &r
}

// joinBooking copies b and fills the ride and passenger columns. Caller holds mu.
func (s *Store) joinBooking(b models.Booking) *models.Booking {
	if r, ok := s.rides[b.RideID]; ok {
		b.Destination = r.Destination
		b.DriverID = r.DriverID
	}
	if u, ok := s.users[b.PassengerID]; ok {
		b.PassengerName = u.FullName
		b.PassengerUsername = u.Username
	}
	return &b
}

// passengersOf lists the users booked on a ride, oldest booking first. Caller holds mu.
func (s *Store) passengersOf(rideID int64) []*models.User {
	var bookings []models.Booking
	for _, b := range s.bookings {
		if b.RideID == rideID {
			bookings = append(bookings, b)
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })

	passengers := make([]*models.User, 0, len(bookings))
	for _, b := range bookings {
		u, ok := s.users[b.PassengerID]
		if !ok {
			u = models.User{ID: b.PassengerID}
		}
		passengers = append(passengers, &u)
	}
	return passengers
}

// findBooking is a linear scan; the store is meant for small data sets. Caller holds mu.
func (s *Store) findBooking(rideID, passengerID int64) (models.Booking, bool) {
	for _, b := range s.bookings {
		if b.RideID == rideID && b.PassengerID == passengerID {
			return b, true
		}
	}
	return models.Booking{}, false
}

// newestFirst mirrors ORDER BY created_at DESC, id DESC.
func newestFirst(rides []*models.Ride) []*models.Ride {
	sort.Slice(rides, func(i, j int) bool {
		if !rides[i].CreatedAt.Equal(rides[j].CreatedAt) {
			return rides[i].CreatedAt.After(rides[j].CreatedAt)
		}
		return rides[i].ID > rides[j].ID
	})
	return rides
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

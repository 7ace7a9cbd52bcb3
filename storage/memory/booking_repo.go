package memory

import (
	"context"
	"sort"

	"ridebot/pkg/apperr"
	"ridebot/pkg/models"
)

type bookingRepo struct {
	s *Store
}

func (r bookingRepo) Book(ctx context.Context, rideID, passengerID int64) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ride, ok := r.s.rides[rideID]
	if !ok || !ride.IsActive {
		return nil, apperr.NotFound("ride %d", rideID)
	}
	if _, ok := r.s.findBooking(rideID, passengerID); ok {
		return nil, apperr.Duplicate("passenger %d already booked ride %d", passengerID, rideID)
	}
	if ride.SeatsTaken >= ride.Seats {
		return nil, apperr.Capacity("ride %d has no free seats", rideID)
	}

	r.s.nextBookingID++
	b := models.Booking{
		ID:          r.s.nextBookingID,
		RideID:      rideID,
		PassengerID: passengerID,
		CreatedAt:   r.s.now(),
	}
	r.s.bookings[b.ID] = b
	ride.SeatsTaken++
	ride.UpdatedAt = r.s.now()
	r.s.rides[ride.ID] = ride

	return r.s.joinBooking(b), nil
}

func (r bookingRepo) Unbook(ctx context.Context, rideID, passengerID int64) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.findBooking(rideID, passengerID)
	if !ok {
		return nil, apperr.NotFound("booking for ride %d", rideID)
	}
	out := r.s.joinBooking(b)
	delete(r.s.bookings, b.ID)

	if ride, ok := r.s.rides[rideID]; ok {
		if ride.SeatsTaken > 0 {
			ride.SeatsTaken--
		}
		ride.UpdatedAt = r.s.now()
		r.s.rides[ride.ID] = ride
	}
	return out, nil
}

func (r bookingRepo) Get(ctx context.Context, rideID, passengerID int64) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.findBooking(rideID, passengerID)
	if !ok {
		return nil, apperr.NotFound("booking for ride %d", rideID)
	}
	return r.s.joinBooking(b), nil
}

func (r bookingRepo) GetUnnotified(ctx context.Context, limit int) ([]*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.Booking
	for _, b := range r.s.bookings {
		if !b.Notified {
			out = append(out, r.s.joinBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r bookingRepo) MarkNotified(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		// the booking may have been cancelled between delivery and marking
		return nil
	}
	b.Notified = true
	r.s.bookings[id] = b
	return nil
}

func (r bookingRepo) RecordFailedAttempt(ctx context.Context, id int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return 0, nil
	}
	b.NotifyAttempts++
	r.s.bookings[id] = b
	return b.NotifyAttempts, nil
}

package memory

import (
	"context"

	"ridebot/pkg/apperr"
	"ridebot/pkg/models"
)

type rideRepo struct {
	s *Store
}

func (r rideRepo) Create(ctx context.Context, ride *models.Ride) (*models.Ride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextRideID++
	now := r.s.now()
	stored := *ride
	stored.ID = r.s.nextRideID
	stored.SeatsTaken = 0
	stored.IsActive = true
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.s.rides[stored.ID] = stored

	return r.s.withDriver(stored), nil
}

func (r rideRepo) GetByID(ctx context.Context, id int64) (*models.Ride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ride, ok := r.s.rides[id]
	if !ok {
		return nil, apperr.NotFound("ride %d", id)
	}
	return r.s.withDriver(ride), nil
}

// owned returns the active ride if driverID owns it. Caller holds mu.
func (r rideRepo) owned(driverID, rideID int64) (models.Ride, error) {
	ride, ok := r.s.rides[rideID]
	if !ok || !ride.IsActive || ride.DriverID != driverID {
		return models.Ride{}, apperr.NotFound("ride %d", rideID)
	}
	return ride, nil
}

func (r rideRepo) UpdateText(ctx context.Context, driverID, rideID int64, field, value string) (*models.RideUpdate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ride, err := r.owned(driverID, rideID)
	if err != nil {
		return nil, err
	}
	switch field {
	case models.FieldTime:
		ride.Time = value
	case models.FieldDestination:
		ride.Destination = value
	case models.FieldPrice:
		ride.Price = value
	default:
		return nil, apperr.Validation("поле %q нельзя изменить", field)
	}
	ride.UpdatedAt = r.s.now()
	r.s.rides[ride.ID] = ride

	return &models.RideUpdate{Ride: r.s.withDriver(ride), Passengers: r.s.passengersOf(ride.ID)}, nil
}

func (r rideRepo) UpdateSeats(ctx context.Context, driverID, rideID int64, seats int) (*models.RideUpdate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ride, err := r.owned(driverID, rideID)
	if err != nil {
		return nil, err
	}
	if seats < ride.SeatsTaken {
		return nil, apperr.Validation("уже забронировано мест: %d", ride.SeatsTaken)
	}
	ride.Seats = seats
	ride.UpdatedAt = r.s.now()
	r.s.rides[ride.ID] = ride

	return &models.RideUpdate{Ride: r.s.withDriver(ride), Passengers: r.s.passengersOf(ride.ID)}, nil
}

func (r rideRepo) Cancel(ctx context.Context, driverID, rideID int64) (*models.RideUpdate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ride, err := r.owned(driverID, rideID)
	if err != nil {
		return nil, err
	}
	passengers := r.s.passengersOf(ride.ID)
	for id, b := range r.s.bookings {
		if b.RideID == ride.ID {
			delete(r.s.bookings, id)
		}
	}
	ride.IsActive = false
	ride.SeatsTaken = 0
	ride.UpdatedAt = r.s.now()
	r.s.rides[ride.ID] = ride

	return &models.RideUpdate{Ride: r.s.withDriver(ride), Passengers: passengers}, nil
}

func (r rideRepo) GetDriverRides(ctx context.Context, driverID int64) ([]*models.Ride, error) {
	return r.filter(func(ride models.Ride) bool {
		return ride.IsActive && ride.DriverID == driverID
	}), nil
}

func (r rideRepo) GetPassengerRides(ctx context.Context, passengerID int64) ([]*models.Ride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	booked := map[int64]bool{}
	for _, b := range r.s.bookings {
		if b.PassengerID == passengerID {
			booked[b.RideID] = true
		}
	}
	return r.collect(func(ride models.Ride) bool {
		return ride.IsActive && booked[ride.ID]
	}), nil
}

func (r rideRepo) Search(ctx context.Context, query string) ([]*models.Ride, error) {
	return r.filter(func(ride models.Ride) bool {
		return ride.IsActive && ride.SeatsTaken < ride.Seats &&
			(query == "" || containsFold(ride.Destination, query))
	}), nil
}

func (r rideRepo) GetActive(ctx context.Context) ([]*models.Ride, error) {
	return r.filter(func(ride models.Ride) bool { return ride.IsActive }), nil
}

func (r rideRepo) filter(keep func(models.Ride) bool) []*models.Ride {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.collect(keep)
}

// collect returns the kept rides, newest first. Caller holds mu.
func (r rideRepo) collect(keep func(models.Ride) bool) []*models.Ride {
	var out []*models.Ride
	for _, ride := range r.s.rides {
		if keep(ride) {
			out = append(out, r.s.withDriver(ride))
		}
	}
	return newestFirst(out)
}

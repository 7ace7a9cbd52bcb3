package service

import (
	"context"
	"strconv"
	"strings"

	"ridebot/pkg/apperr"
	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/storage"
)

type RideService interface {
	CreateRide(ctx context.Context, driverID int64, in models.RideInput) (*models.Ride, error)
	EditRideField(ctx context.Context, actorID, rideID int64, field, value string) (*models.Ride, error)
	CancelRide(ctx context.Context, actorID, rideID int64) error
	GetRide(ctx context.Context, rideID int64) (*models.Ride, error)
	ListRidesForDriver(ctx context.Context, driverID int64) ([]*models.Ride, error)
	ListBookingsForPassenger(ctx context.Context, passengerID int64) ([]*models.Ride, error)
	SearchRides(ctx context.Context, query string) ([]*models.Ride, error)
	ListActiveRides(ctx context.Context) ([]*models.Ride, error)
}

type rideService struct {
	stg        storage.IRideStorage
	dispatcher Dispatcher
	log        logger.ILogger
}

func NewRideService(stg storage.IStorage, dispatcher Dispatcher, log logger.ILogger) RideService {
	return &rideService{
		stg:        stg.Ride(),
		dispatcher: dispatcher,
		log:        log,
	}
}

// ValidateRide trims in and checks it can be published.
func ValidateRide(in models.RideInput) (models.RideInput, error) {
	in.Destination = strings.TrimSpace(in.Destination)
	in.Time = strings.TrimSpace(in.Time)
	in.Price = strings.TrimSpace(in.Price)
	in.Comment = strings.TrimSpace(in.Comment)
	if in.Destination == "" {
		return in, apperr.Validation("укажите направление")
	}
	if in.Seats <= 0 {
		return in, apperr.Validation("количество мест должно быть больше нуля")
	}
	return in, nil
}

func (s *rideService) CreateRide(ctx context.Context, driverID int64, in models.RideInput) (*models.Ride, error) {
	in, err := ValidateRide(in)
	if err != nil {
		return nil, err
	}

	created, err := s.stg.Create(ctx, &models.Ride{
		DriverID:    driverID,
		Destination: in.Destination,
		Time:        in.Time,
		Seats:       in.Seats,
		Price:       in.Price,
		Comment:     in.Comment,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("ride created",
		logger.Int64("ride_id", created.ID),
		logger.Int64("driver_id", driverID),
		logger.Int("seats", created.Seats),
	)
	return created, nil
}

// EditRideField changes one field of the actor's ride and tells every booked
// passenger about it.
func (s *rideService) EditRideField(ctx context.Context, actorID, rideID int64, field, value string) (*models.Ride, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, apperr.Validation("значение не может быть пустым")
	}

	var (
		upd *models.RideUpdate
		err error
	)
	switch field {
	case models.FieldSeats:
		seats, convErr := strconv.Atoi(value)
		if convErr != nil {
			return nil, apperr.Validation("количество мест должно быть числом")
		}
		if seats <= 0 {
			return nil, apperr.Validation("количество мест должно быть больше нуля")
		}
		upd, err = s.stg.UpdateSeats(ctx, actorID, rideID, seats)
		value = strconv.Itoa(seats)
	case models.FieldTime, models.FieldDestination, models.FieldPrice:
		upd, err = s.stg.UpdateText(ctx, actorID, rideID, field, value)
	default:
		return nil, apperr.Validation("поле %q нельзя изменить", field)
	}
	if err != nil {
		return nil, err
	}

	ev := models.NewEvent(models.EventRideEdited, upd.Ride, driverOf(upd.Ride), userIDs(upd.Passengers)...)
	ev.Field = field
	ev.Value = value
	s.dispatcher.Dispatch(ctx, ev)

	s.log.Info("ride edited",
		logger.Int64("ride_id", rideID),
		logger.String("field", field),
		logger.Int("passengers", len(upd.Passengers)),
	)
	return upd.Ride, nil
}

func (s *rideService) CancelRide(ctx context.Context, actorID, rideID int64) error {
	upd, err := s.stg.Cancel(ctx, actorID, rideID)
	if err != nil {
		return err
	}

	s.dispatcher.Dispatch(ctx, models.NewEvent(models.EventRideCancelled, upd.Ride, driverOf(upd.Ride), userIDs(upd.Passengers)...))

	s.log.Info("ride cancelled",
		logger.Int64("ride_id", rideID),
		logger.Int("passengers", len(upd.Passengers)),
	)
	return nil
}

func (s *rideService) GetRide(ctx context.Context, rideID int64) (*models.Ride, error) {
	return s.stg.GetByID(ctx, rideID)
}

func (s *rideService) ListRidesForDriver(ctx context.Context, driverID int64) ([]*models.Ride, error) {
	return s.stg.GetDriverRides(ctx, driverID)
}

func (s *rideService) ListBookingsForPassenger(ctx context.Context, passengerID int64) ([]*models.Ride, error) {
	return s.stg.GetPassengerRides(ctx, passengerID)
}

// SearchRides treats "", "all" and "все" as a request for every ride with
// free seats.
func (s *rideService) SearchRides(ctx context.Context, query string) ([]*models.Ride, error) {
	query = strings.TrimSpace(query)
	switch strings.ToLower(query) {
	case "all", "все":
		query = ""
	}
	return s.stg.Search(ctx, query)
}

func (s *rideService) ListActiveRides(ctx context.Context) ([]*models.Ride, error) {
	return s.stg.GetActive(ctx)
}

func driverOf(ride *models.Ride) *models.User {
	return &models.User{ID: ride.DriverID, FullName: ride.DriverName, Username: ride.DriverUsername}
}

func userIDs(users []*models.User) []int64 {
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

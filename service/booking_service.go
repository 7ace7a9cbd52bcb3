package service

import (
	"context"

	"ridebot/pkg/apperr"
	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/storage"
)

type BookingService interface {
	BookSeat(ctx context.Context, rideID, passengerID int64) (*models.Booking, error)
	UnbookSeat(ctx context.Context, rideID, passengerID int64) (*models.Booking, error)
}

type bookingService struct {
	rides      storage.IRideStorage
	bookings   storage.IBookingStorage
	dispatcher Dispatcher
	log        logger.ILogger
}

func NewBookingService(stg storage.IStorage, dispatcher Dispatcher, log logger.ILogger) BookingService {
	return &bookingService{
		rides:      stg.Ride(),
		bookings:   stg.Booking(),
		dispatcher: dispatcher,
		log:        log,
	}
}

// BookSeat takes one seat for the passenger and notifies the driver.
func (s *bookingService) BookSeat(ctx context.Context, rideID, passengerID int64) (*models.Booking, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsActive {
		return nil, apperr.NotFound("ride %d", rideID)
	}
	if ride.DriverID == passengerID {
		return nil, apperr.Validation("нельзя забронировать место в своей поездке")
	}

	b, err := s.bookings.Book(ctx, rideID, passengerID)
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(ctx, models.BookingCreatedEvent(b))

	s.log.Info("seat booked",
		logger.Int64("ride_id", rideID),
		logger.Int64("passenger_id", passengerID),
		logger.Int64("booking_id", b.ID),
	)
	return b, nil
}

func (s *bookingService) UnbookSeat(ctx context.Context, rideID, passengerID int64) (*models.Booking, error) {
	b, err := s.bookings.Unbook(ctx, rideID, passengerID)
	if err != nil {
		return nil, err
	}

	ev := models.NewEvent(models.EventBookingCancelled,
		&models.Ride{ID: b.RideID, Destination: b.Destination},
		&models.User{ID: b.PassengerID, FullName: b.PassengerName, Username: b.PassengerUsername},
		b.DriverID,
	)
	ev.BookingID = b.ID
	s.dispatcher.Dispatch(ctx, ev)

	s.log.Info("seat released",
		logger.Int64("ride_id", rideID),
		logger.Int64("passenger_id", passengerID),
	)
	return b, nil
}

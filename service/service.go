package service

import (
	"context"

	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/storage"
)

// Dispatcher receives events after successful mutations.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev models.Event)
}

type IServiceManager interface {
	User() UserService
	Ride() RideService
	Booking() BookingService
}

type service struct {
	userService    UserService
	rideService    RideService
	bookingService BookingService
}

func New(stg storage.IStorage, dispatcher Dispatcher, log logger.ILogger) IServiceManager {
	if dispatcher == nil {
		dispatcher = nopDispatcher{}
	}
	return &service{
		userService:    NewUserService(stg, log),
		rideService:    NewRideService(stg, dispatcher, log),
		bookingService: NewBookingService(stg, dispatcher, log),
	}
}

func (s *service) User() UserService {
	return s.userService
}

func (s *service) Ride() RideService {
	return s.rideService
}

func (s *service) Booking() BookingService {
	return s.bookingService
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, models.Event) {}

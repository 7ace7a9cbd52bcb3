package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ridebot/pkg/apperr"
	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/storage"
	"ridebot/storage/memory"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, ev models.Event) {
	m.Called(ctx, ev)
}

// events returns what was dispatched, in order.
func (m *MockDispatcher) events() []models.Event {
	var out []models.Event
	for _, call := range m.Calls {
		out = append(out, call.Arguments.Get(1).(models.Event))
	}
	return out
}

func newDispatcher() *MockDispatcher {
	d := &MockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Return()
	return d
}

// fixture stores driver 1 (Ivan) and passengers 2 (Olga), 3, 4.
func fixture(t *testing.T) (storage.IStorage, IServiceManager, *MockDispatcher) {
	t.Helper()
	ctx := context.Background()
	stg := memory.New()
	d := newDispatcher()
	svc := New(stg, d, logger.NewNop())

	_, err := svc.User().Register(ctx, 1, "@ivan", " Ivan Driver ")
	require.NoError(t, err)
	_, err = svc.User().Register(ctx, 2, "olga", "Olga")
	require.NoError(t, err)
	_, err = svc.User().Register(ctx, 3, "", "Petr")
	require.NoError(t, err)
	_, err = svc.User().Register(ctx, 4, "", "Anna")
	require.NoError(t, err)
	return stg, svc, d
}

func createRide(t *testing.T, svc IServiceManager, seats int) *models.Ride {
	t.Helper()
	ride, err := svc.Ride().CreateRide(context.Background(), 1, models.RideInput{
		Destination: " Moscow ",
		Time:        "завтра 9:00",
		Seats:       seats,
		Price:       "500",
	})
	require.NoError(t, err)
	return ride
}

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := fixture(t)

	u, err := svc.User().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ivan", u.Username)
	assert.Equal(t, "Ivan Driver", u.FullName)

	_, err = svc.User().Get(ctx, 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUserService_EnsureDriver(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := fixture(t)

	u, err := svc.User().EnsureDriver(ctx, 1, "", "")
	require.NoError(t, err)
	assert.Equal(t, "ivan", u.Username)
	assert.Equal(t, "Ivan Driver", u.FullName)

	u, err = svc.User().EnsureDriver(ctx, 1, "", "Ivan Petrov")
	require.NoError(t, err)
	assert.Equal(t, "ivan", u.Username)
	assert.Equal(t, "Ivan Petrov", u.FullName)

	u, err = svc.User().EnsureDriver(ctx, 50, "@newbie", "")
	require.NoError(t, err)
	assert.Equal(t, "newbie", u.Username)
	assert.Equal(t, DefaultDriverName, u.FullName)
}

func TestValidateRide(t *testing.T) {
	in, err := ValidateRide(models.RideInput{Destination: " Tver ", Seats: 1, Price: " 300 "})
	require.NoError(t, err)
	assert.Equal(t, "Tver", in.Destination)
	assert.Equal(t, "300", in.Price)

	_, err = ValidateRide(models.RideInput{Seats: 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = ValidateRide(models.RideInput{Destination: "Tver", Seats: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRideService_CreateRide(t *testing.T) {
	ctx := context.Background()
	_, svc, d := fixture(t)

	ride := createRide(t, svc, 3)
	assert.Equal(t, "Moscow", ride.Destination)
	assert.Equal(t, 0, ride.SeatsTaken)
	assert.True(t, ride.IsActive)
	assert.Equal(t, "Ivan Driver", ride.DriverName)

	_, err := svc.Ride().CreateRide(ctx, 1, models.RideInput{Destination: "  ", Seats: 2})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Ride().CreateRide(ctx, 1, models.RideInput{Destination: "Tver", Seats: 0})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.NotEmpty(t, apperr.Message(err))

	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestBookingService_CapacityScenario(t *testing.T) {
	ctx := context.Background()
	_, svc, d := fixture(t)
	ride := createRide(t, svc, 2)

	b, err := svc.Booking().BookSeat(ctx, ride.ID, 2)
	require.NoError(t, err)
	assert.False(t, b.Notified)
	_, err = svc.Booking().BookSeat(ctx, ride.ID, 3)
	require.NoError(t, err)

	_, err = svc.Booking().BookSeat(ctx, ride.ID, 4)
	assert.ErrorIs(t, err, apperr.ErrCapacity)

	got, err := svc.Ride().GetRide(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SeatsTaken)

	events := d.events()
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, models.EventBookingCreated, ev.Kind)
		assert.Equal(t, []int64{1}, ev.Recipients)
		assert.Equal(t, "Moscow", ev.Destination)
		assert.NotZero(t, ev.BookingID)
	}
	assert.Equal(t, "Olga", events[0].ActorName)
	assert.Equal(t, "olga", events[0].ActorUsername)
}

func TestBookingService_Rejections(t *testing.T) {
	ctx := context.Background()
	_, svc, d := fixture(t)
	ride := createRide(t, svc, 2)

	_, err := svc.Booking().BookSeat(ctx, ride.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrValidation, "driver cannot book own ride")

	_, err = svc.Booking().BookSeat(ctx, ride.ID, 2)
	require.NoError(t, err)
	_, err = svc.Booking().BookSeat(ctx, ride.ID, 2)
	assert.ErrorIs(t, err, apperr.ErrDuplicate)

	_, err = svc.Booking().BookSeat(ctx, 404, 2)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, svc.Ride().CancelRide(ctx, 1, ride.ID))
	_, err = svc.Booking().BookSeat(ctx, ride.ID, 3)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "cancelled ride")

	// one booking_created plus the cancellation
	assert.Len(t, d.events(), 2)
}

func TestBookingService_UnbookSeat(t *testing.T) {
	ctx := context.Background()
	_, svc, d := fixture(t)
	ride := createRide(t, svc, 2)

	_, err := svc.Booking().BookSeat(ctx, ride.ID, 2)
	require.NoError(t, err)

	_, err = svc.Booking().UnbookSeat(ctx, ride.ID, 2)
	require.NoError(t, err)

	got, err := svc.Ride().GetRide(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SeatsTaken)

	_, err = svc.Booking().UnbookSeat(ctx, ride.ID, 2)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	events := d.events()
	require.Len(t, events, 2)
	ev := events[1]
	assert.Equal(t, models.EventBookingCancelled, ev.Kind)
	assert.Equal(t, []int64{1}, ev.Recipients)
	assert.Equal(t, "Moscow", ev.Destination)
	assert.Equal(t, "Olga", ev.ActorName)
}

func TestRideService_EditRideField(t *testing.T) {
	ctx := context.Background()
	_, svc, d := fixture(t)
	ride := createRide(t, svc, 3)
	for _, passenger := range []int64{2, 3} {
		_, err := svc.Booking().BookSeat(ctx, ride.ID, passenger)
		require.NoError(t, err)
	}

	cases := []struct {
		name  string
		actor int64
		field string
		value string
		kind  error
	}{
		{"unknown field", 1, "color", "red", apperr.ErrValidation},
		{"empty value", 1, models.FieldTime, "  ", apperr.ErrValidation},
		{"seats not a number", 1, models.FieldSeats, "two", apperr.ErrValidation},
		{"seats zero", 1, models.FieldSeats, "0", apperr.ErrValidation},
		{"seats below taken", 1, models.FieldSeats, "1", apperr.ErrValidation},
		{"not the driver", 2, models.FieldTime, "11:00", apperr.ErrNotFound},
		{"missing ride", 1, models.FieldTime, "11:00", apperr.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rideID := ride.ID
			if tc.name == "missing ride" {
				rideID = 404
			}
			_, err := svc.Ride().EditRideField(ctx, tc.actor, rideID, tc.field, tc.value)
			assert.ErrorIs(t, err, tc.kind)
		})
	}

	unchanged, err := svc.Ride().GetRide(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, unchanged.Seats)
	assert.Equal(t, "завтра 9:00", unchanged.Time)

	before := len(d.events())
	updated, err := svc.Ride().EditRideField(ctx, 1, ride.ID, models.FieldSeats, " 2 ")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Seats)

	updated, err = svc.Ride().EditRideField(ctx, 1, ride.ID, models.FieldTime, "10:30")
	require.NoError(t, err)
	assert.Equal(t, "10:30", updated.Time)

	events := d.events()[before:]
	require.Len(t, events, 2)
	assert.Equal(t, models.EventRideEdited, events[0].Kind)
	assert.Equal(t, models.FieldSeats, events[0].Field)
	assert.Equal(t, "2", events[0].Value)
	assert.ElementsMatch(t, []int64{2, 3}, events[0].Recipients)
	assert.Equal(t, "Ivan Driver", events[1].ActorName)
	assert.Equal(t, "10:30", events[1].Value)
}

func TestRideService_CancelRide(t *testing.T) {
	ctx := context.Background()
	_, svc, d := fixture(t)
	ride := createRide(t, svc, 3)
	for _, passenger := range []int64{2, 3} {
		_, err := svc.Booking().BookSeat(ctx, ride.ID, passenger)
		require.NoError(t, err)
	}

	err := svc.Ride().CancelRide(ctx, 2, ride.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, svc.Ride().CancelRide(ctx, 1, ride.ID))

	got, err := svc.Ride().GetRide(ctx, ride.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, 0, got.SeatsTaken)

	for _, passenger := range []int64{2, 3} {
		rides, err := svc.Ride().ListBookingsForPassenger(ctx, passenger)
		require.NoError(t, err)
		assert.Empty(t, rides)
	}

	events := d.events()
	last := events[len(events)-1]
	assert.Equal(t, models.EventRideCancelled, last.Kind)
	assert.ElementsMatch(t, []int64{2, 3}, last.Recipients)
	assert.Equal(t, "Moscow", last.Destination)

	assert.ErrorIs(t, svc.Ride().CancelRide(ctx, 1, ride.ID), apperr.ErrNotFound)
}

func TestRideService_Listings(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := fixture(t)
	moscow := createRide(t, svc, 1)
	tver, err := svc.Ride().CreateRide(ctx, 1, models.RideInput{Destination: "Tver", Seats: 2})
	require.NoError(t, err)
	_, err = svc.Booking().BookSeat(ctx, moscow.ID, 2)
	require.NoError(t, err)

	for _, q := range []string{"", "all", "ВСЕ", " все "} {
		found, err := svc.Ride().SearchRides(ctx, q)
		require.NoError(t, err)
		require.Len(t, found, 1, "query %q", q)
		assert.Equal(t, tver.ID, found[0].ID)
	}

	found, err := svc.Ride().SearchRides(ctx, "mos")
	require.NoError(t, err)
	assert.Empty(t, found, "full rides are hidden")

	active, err := svc.Ride().ListActiveRides(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	mine, err := svc.Ride().ListRidesForDriver(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	booked, err := svc.Ride().ListBookingsForPassenger(ctx, 2)
	require.NoError(t, err)
	require.Len(t, booked, 1)
	assert.Equal(t, "ivan", booked[0].DriverUsername)
}

// MockRideStorage overrides the calls a test needs; anything else panics.
type MockRideStorage struct {
	storage.IRideStorage
	mock.Mock
}

func (m *MockRideStorage) Create(ctx context.Context, ride *models.Ride) (*models.Ride, error) {
	args := m.Called(ctx, ride)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ride), args.Error(1)
}

func (m *MockRideStorage) Cancel(ctx context.Context, driverID, rideID int64) (*models.RideUpdate, error) {
	args := m.Called(ctx, driverID, rideID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RideUpdate), args.Error(1)
}

type brokenStore struct {
	*memory.Store
	rides *MockRideStorage
}

func (s brokenStore) Ride() storage.IRideStorage { return s.rides }

func TestRideService_StoreErrorsAbort(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("connection reset")
	rides := &MockRideStorage{}
	rides.On("Create", mock.Anything, mock.Anything).Return(nil, apperr.Store("create ride", cause)).Once()
	rides.On("Cancel", mock.Anything, int64(1), int64(5)).Return(nil, apperr.Store("cancel ride", cause)).Once()

	d := newDispatcher()
	svc := New(brokenStore{Store: memory.New(), rides: rides}, d, logger.NewNop())

	_, err := svc.Ride().CreateRide(ctx, 1, models.RideInput{Destination: "Tver", Seats: 1})
	assert.ErrorIs(t, err, apperr.ErrStore)
	assert.ErrorIs(t, err, cause)

	err = svc.Ride().CancelRide(ctx, 1, 5)
	assert.ErrorIs(t, err, apperr.ErrStore)

	rides.AssertExpectations(t)
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestNew_NilDispatcher(t *testing.T) {
	ctx := context.Background()
	stg := memory.New()
	svc := New(stg, nil, logger.NewNop())

	_, err := svc.User().Register(ctx, 1, "", "Ivan")
	require.NoError(t, err)
	_, err = svc.User().Register(ctx, 2, "", "Olga")
	require.NoError(t, err)
	ride, err := svc.Ride().CreateRide(ctx, 1, models.RideInput{Destination: "Tver", Seats: 1})
	require.NoError(t, err)
	_, err = svc.Booking().BookSeat(ctx, ride.ID, 2)
	assert.NoError(t, err)
}

// Package storagetest is a behavioural suite every storage.IStorage backend
// must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridebot/pkg/apperr"
	"ridebot/pkg/models"
	"ridebot/storage"
)

// Factory returns an empty store. It is called once per sub-test.
type Factory func(t *testing.T) storage.IStorage

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, stg storage.IStorage)
	}{
		{"UserUpsert", testUserUpsert},
		{"CapacityScenario", testCapacityScenario},
		{"DuplicateBooking", testDuplicateBooking},
		{"BookMissingRide", testBookMissingRide},
		{"UnbookRestoresSeat", testUnbookRestoresSeat},
		{"CancelRide", testCancelRide},
		{"UpdateSeats", testUpdateSeats},
		{"UpdateText", testUpdateText},
		{"Search", testSearch},
		{"PassengerRides", testPassengerRides},
		{"Notifications", testNotifications},
		{"ConcurrentBooking", testConcurrentBooking},
		{"RejectedBookingsStayHidden", testRejectedBookingsStayHidden},
		{"Reset", testReset},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func seedUser(t *testing.T, stg storage.IStorage, id int64) *models.User {
	t.Helper()
	u, err := stg.User().Upsert(context.Background(), &models.User{
		ID:       id,
		FullName: fmt.Sprintf("User %d", id),
		Username: fmt.Sprintf("user%d", id),
	})
	require.NoError(t, err)
	return u
}

func seedRide(t *testing.T, stg storage.IStorage, driverID int64, destination string, seats int) *models.Ride {
	t.Helper()
	ride, err := stg.Ride().Create(context.Background(), &models.Ride{
		DriverID:    driverID,
		Destination: destination,
		Time:        "завтра 9:00",
		Seats:       seats,
		Price:       "500",
	})
	require.NoError(t, err)
	return ride
}

func seatsTaken(t *testing.T, stg storage.IStorage, rideID int64) int {
	t.Helper()
	ride, err := stg.Ride().GetByID(context.Background(), rideID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ride.SeatsTaken, 0)
	assert.LessOrEqual(t, ride.SeatsTaken, ride.Seats)
	return ride.SeatsTaken
}

func testUserUpsert(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	seedUser(t, stg, 1)

	u, err := stg.User().Upsert(ctx, &models.User{ID: 1, FullName: "Renamed", Username: ""})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", u.FullName)

	got, err := stg.User().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.FullName)
	assert.Equal(t, "", got.Username)

	_, err = stg.User().Get(ctx, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func testCapacityScenario(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3, 4} {
		seedUser(t, stg, id)
	}
	ride := seedRide(t, stg, 1, "Moscow", 2)
	assert.Equal(t, 0, ride.SeatsTaken)
	assert.True(t, ride.IsActive)

	b, err := stg.Booking().Book(ctx, ride.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "Moscow", b.Destination)
	assert.Equal(t, int64(1), b.DriverID)
	assert.Equal(t, "User 2", b.PassengerName)
	assert.False(t, b.Notified)
	assert.Equal(t, 1, seatsTaken(t, stg, ride.ID))

	_, err = stg.Booking().Book(ctx, ride.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, seatsTaken(t, stg, ride.ID))

	_, err = stg.Booking().Book(ctx, ride.ID, 4)
	assert.ErrorIs(t, err, apperr.ErrCapacity)
	assert.Equal(t, 2, seatsTaken(t, stg, ride.ID))

	_, err = stg.Booking().Get(ctx, ride.ID, 4)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func testDuplicateBooking(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	seedUser(t, stg, 1)
	seedUser(t, stg, 2)
	ride := seedRide(t, stg, 1, "Tver", 3)

	_, err := stg.Booking().Book(ctx, ride.ID, 2)
	require.NoError(t, err)
	_, err = stg.Booking().Book(ctx, ride.ID, 2)
	assert.ErrorIs(t, err, apperr.ErrDuplicate)

	assert.Equal(t, 1, seatsTaken(t, stg, ride.ID))
	pending, err := stg.Booking().GetUnnotified(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func testBookMissingRide(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	seedUser(t, stg, 2)

	_, err := stg.Booking().Book(ctx, 9999, 2)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func testUnbookRestoresSeat(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	seedUser(t, stg, 1)
	seedUser(t, stg, 2)
	ride := seedRide(t, stg, 1, "Kazan", 2)
	before := seatsTaken(t, stg, ride.ID)

	_, err := stg.Booking().Book(ctx, ride.ID, 2)
	require.NoError(t, err)

	b, err := stg.Booking().Unbook(ctx, ride.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.DriverID)
	assert.Equal(t, "Kazan", b.Destination)
	assert.Equal(t, before, seatsTaken(t, stg, ride.ID))

	_, err = stg.Booking().Get(ctx, ride.ID, 2)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = stg.Booking().Unbook(ctx, ride.ID, 2)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, before, seatsTaken(t, stg, ride.ID))
}

func testCancelRide(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3, 5} {
		seedUser(t, stg, id)
	}
	ride := seedRide(t, stg, 1, "Podolsk", 3)
	_, err := stg.Booking().Book(ctx, ride.ID, 2)
	require.NoError(t, err)
	_, err = stg.Booking().Book(ctx, ride.ID, 3)
	require.NoError(t, err)

	_, err = stg.Ride().Cancel(ctx, 5, ride.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "only the driver can cancel")

	upd, err := stg.Ride().Cancel(ctx, 1, ride.ID)
	require.NoError(t, err)
	assert.False(t, upd.Ride.IsActive)
	require.Len(t, upd.Passengers, 2)
	assert.ElementsMatch(t, []int64{2, 3}, []int64{upd.Passengers[0].ID, upd.Passengers[1].ID})

	for _, passenger := range []int64{2, 3} {
		_, err = stg.Booking().Get(ctx, ride.ID, passenger)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	}

	found, err := stg.Ride().Search(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, found)
	mine, err := stg.Ride().GetDriverRides(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, mine)

	_, err = stg.Booking().Book(ctx, ride.ID, 5)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = stg.Ride().Cancel(ctx, 1, ride.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func testUpdateSeats(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		seedUser(t, stg, id)
	}
	ride := seedRide(t, stg, 1, "Tula", 3)
	for _, passenger := range []int64{2, 3} {
		_, err := stg.Booking().Book(ctx, ride.ID, passenger)
		require.NoError(t, err)
	}

	_, err := stg.Ride().UpdateSeats(ctx, 1, ride.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	got, err := stg.Ride().GetByID(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Seats)

	upd, err := stg.Ride().UpdateSeats(ctx, 1, ride.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, upd.Ride.Seats)
	assert.Len(t, upd.Passengers, 2)

	found, err := stg.Ride().Search(ctx, "tula")
	require.NoError(t, err)
	assert.Empty(t, found, "a full ride is not offered")
}

func testUpdateText(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	for _, id := range []int64{1, 2, 9} {
		seedUser(t, stg, id)
	}
	ride := seedRide(t, stg, 1, "Vidnoe", 2)
	_, err := stg.Booking().Book(ctx, ride.ID, 2)
	require.NoError(t, err)

	_, err = stg.Ride().UpdateText(ctx, 9, ride.ID, models.FieldTime, "10:00")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	upd, err := stg.Ride().UpdateText(ctx, 1, ride.ID, models.FieldTime, "10:00")
	require.NoError(t, err)
	assert.Equal(t, "10:00", upd.Ride.Time)
	require.Len(t, upd.Passengers, 1)
	assert.Equal(t, int64(2), upd.Passengers[0].ID)

	upd, err = stg.Ride().UpdateText(ctx, 1, ride.ID, models.FieldDestination, "Domodedovo")
	require.NoError(t, err)
	assert.Equal(t, "Domodedovo", upd.Ride.Destination)

	upd, err = stg.Ride().UpdateText(ctx, 1, ride.ID, models.FieldPrice, "700 ₽")
	require.NoError(t, err)
	assert.Equal(t, "700 ₽", upd.Ride.Price)

	_, err = stg.Ride().UpdateText(ctx, 1, ride.ID, "seats_taken", "0")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func testSearch(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	seedUser(t, stg, 1)
	seedUser(t, stg, 2)
	moscow := seedRide(t, stg, 1, "Moscow, Red Square", 2)
	seedRide(t, stg, 1, "Tver", 2)
	full := seedRide(t, stg, 1, "Moscow City", 1)
	_, err := stg.Booking().Book(ctx, full.ID, 2)
	require.NoError(t, err)

	found, err := stg.Ride().Search(ctx, "moscow")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, moscow.ID, found[0].ID)
	assert.Equal(t, "User 1", found[0].DriverName)

	found, err = stg.Ride().Search(ctx, "RED")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = stg.Ride().Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = stg.Ride().Search(ctx, "100%")
	require.NoError(t, err)
	assert.Empty(t, found)

	active, err := stg.Ride().GetActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 3, "active listing includes full rides")
}

func testPassengerRides(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	for _, id := range []int64{1, 2} {
		seedUser(t, stg, id)
	}
	first := seedRide(t, stg, 1, "Serpukhov", 2)
	second := seedRide(t, stg, 1, "Chekhov", 2)
	seedRide(t, stg, 1, "Klin", 2)
	for _, r := range []*models.Ride{first, second} {
		_, err := stg.Booking().Book(ctx, r.ID, 2)
		require.NoError(t, err)
	}
	_, err := stg.Ride().Cancel(ctx, 1, second.ID)
	require.NoError(t, err)

	rides, err := stg.Ride().GetPassengerRides(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rides, 1)
	assert.Equal(t, first.ID, rides[0].ID)
	assert.Equal(t, "User 1", rides[0].DriverName)
	assert.Equal(t, "user1", rides[0].DriverUsername)

	mine, err := stg.Ride().GetDriverRides(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func testNotifications(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		seedUser(t, stg, id)
	}
	ride := seedRide(t, stg, 1, "Obninsk", 3)
	first, err := stg.Booking().Book(ctx, ride.ID, 2)
	require.NoError(t, err)
	_, err = stg.Booking().Book(ctx, ride.ID, 3)
	require.NoError(t, err)

	pending, err := stg.Booking().GetUnnotified(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, int64(1), pending[0].DriverID)
	assert.Equal(t, "Obninsk", pending[0].Destination)

	attempts, err := stg.Booking().RecordFailedAttempt(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	attempts, err = stg.Booking().RecordFailedAttempt(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	require.NoError(t, stg.Booking().MarkNotified(ctx, first.ID))
	pending, err = stg.Booking().GetUnnotified(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.NotEqual(t, first.ID, pending[0].ID)

	b, err := stg.Booking().Get(ctx, ride.ID, 2)
	require.NoError(t, err)
	assert.True(t, b.Notified)
	assert.Equal(t, 2, b.NotifyAttempts)
}

func testConcurrentBooking(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	const seats, passengers = 3, 12
	seedUser(t, stg, 1)
	for i := int64(0); i < passengers; i++ {
		seedUser(t, stg, 100+i)
	}
	ride := seedRide(t, stg, 1, "Sochi", seats)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		booked   int
		rejected int
		failures []error
	)
	for i := int64(0); i < passengers; i++ {
		wg.Add(1)
		go func(passenger int64) {
			defer wg.Done()
			_, err := stg.Booking().Book(ctx, ride.ID, passenger)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case errors.Is(err, apperr.ErrCapacity):
				rejected++
			default:
				failures = append(failures, err)
			}
		}(100 + i)
	}
	wg.Wait()

	assert.Empty(t, failures)
	assert.Equal(t, seats, booked)
	assert.Equal(t, passengers-seats, rejected)
	assert.Equal(t, seats, seatsTaken(t, stg, ride.ID))
}

// testRejectedBookingsStayHidden races bookers for one seat against readers
// of unnotified bookings and ride passengers. Readers must only ever see the
// booking that won the seat.
func testRejectedBookingsStayHidden(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	const passengers = 10
	driver := seedUser(t, stg, 1)
	for i := int64(0); i < passengers; i++ {
		seedUser(t, stg, 100+i)
	}
	ride := seedRide(t, stg, driver.ID, "Yaroslavl", 1)

	var (
		wg, readers sync.WaitGroup
		mu          sync.Mutex
		winner      int64
	)
	seen := map[int64]bool{}
	done := make(chan struct{})

	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			pending, err := stg.Booking().GetUnnotified(ctx, 50)
			if err == nil {
				mu.Lock()
				for _, b := range pending {
					seen[b.PassengerID] = true
				}
				mu.Unlock()
			}
			if upd, err := stg.Ride().UpdateText(ctx, driver.ID, ride.ID, models.FieldPrice, "500"); err == nil {
				mu.Lock()
				for _, p := range upd.Passengers {
					seen[p.ID] = true
				}
				mu.Unlock()
			}
		}
	}()

	for i := int64(0); i < passengers; i++ {
		wg.Add(1)
		go func(passenger int64) {
			defer wg.Done()
			if _, err := stg.Booking().Book(ctx, ride.ID, passenger); err == nil {
				mu.Lock()
				winner = passenger
				mu.Unlock()
			}
		}(100 + i)
	}
	wg.Wait()
	close(done)
	readers.Wait()

	require.NotZero(t, winner)
	for passenger := range seen {
		assert.Equal(t, winner, passenger, "passenger %d was visible without a seat", passenger)
	}
	assert.Equal(t, 1, seatsTaken(t, stg, ride.ID))
}

func testReset(t *testing.T, stg storage.IStorage) {
	ctx := context.Background()
	seedUser(t, stg, 1)
	seedRide(t, stg, 1, "Anywhere", 1)

	require.NoError(t, stg.Reset(ctx))

	active, err := stg.Ride().GetActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	_, err = stg.User().Get(ctx, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

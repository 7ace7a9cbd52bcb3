package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridebot/pkg/models"
	"ridebot/storage"
	"ridebot/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.IStorage {
		return New()
	})
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Save(ctx, 1, &models.Session{State: "ride_time", Draft: models.RideInput{Destination: "Tver"}}))
	got, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ride_time", got.State)
	assert.Equal(t, "Tver", got.Draft.Destination)

	got.State = "mutated"
	again, _ := s.Get(ctx, 1)
	assert.Equal(t, "ride_time", again.State, "stored session is a copy")

	require.NoError(t, s.Delete(ctx, 1))
	got, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPassengerRidesUnderChurn(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.User().Upsert(ctx, &models.User{ID: 1, FullName: "Driver"})
	require.NoError(t, err)
	_, err = s.User().Upsert(ctx, &models.User{ID: 2, FullName: "Passenger"})
	require.NoError(t, err)

	kept, err := s.Ride().Create(ctx, &models.Ride{DriverID: 1, Destination: "Tver", Seats: 2})
	require.NoError(t, err)
	toggled, err := s.Ride().Create(ctx, &models.Ride{DriverID: 1, Destination: "Klin", Seats: 2})
	require.NoError(t, err)
	_, err = s.Booking().Book(ctx, kept.ID, 2)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_, _ = s.Booking().Book(ctx, toggled.ID, 2)
			_, _ = s.Booking().Unbook(ctx, toggled.ID, 2)
		}
	}()

	for {
		select {
		case <-done:
			rides, err := s.Ride().GetPassengerRides(ctx, 2)
			require.NoError(t, err)
			require.Len(t, rides, 1)
			assert.Equal(t, kept.ID, rides[0].ID)
			return
		default:
		}
		rides, err := s.Ride().GetPassengerRides(ctx, 2)
		require.NoError(t, err)
		ids := make([]int64, 0, len(rides))
		for _, r := range rides {
			ids = append(ids, r.ID)
		}
		require.Contains(t, ids, kept.ID)
		for _, r := range rides {
			assert.True(t, r.IsActive)
			assert.Equal(t, "Driver", r.DriverName)
		}
	}
}

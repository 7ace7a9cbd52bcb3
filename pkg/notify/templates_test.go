package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridebot/pkg/models"
)

func TestRender(t *testing.T) {
	ride := &models.Ride{ID: 3, Destination: "Kazan"}
	passenger := &models.User{FullName: "Olga", Username: "olga"}
	driver := &models.User{FullName: "Ivan"}

	edited := models.NewEvent(models.EventRideEdited, ride, driver, 2)
	edited.Field, edited.Value = models.FieldPrice, "700"

	cases := []struct {
		name string
		ev   models.Event
		want []string
	}{
		{"booking created", models.NewEvent(models.EventBookingCreated, ride, passenger, 1), []string{"Kazan", "Olga (@olga)"}},
		{"booking cancelled", models.NewEvent(models.EventBookingCancelled, ride, passenger, 1), []string{"Kazan", "@olga"}},
		{"ride edited", edited, []string{"Kazan", "Ivan", "Цена", "700"}},
		{"ride cancelled", models.NewEvent(models.EventRideCancelled, ride, driver, 2), []string{"Kazan", "Ivan"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, err := Render(tc.ev)
			require.NoError(t, err)
			for _, want := range tc.want {
				assert.Contains(t, text, want)
			}
		})
	}

	_, err := Render(models.Event{Kind: "unknown"})
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Olga (@olga)", DisplayName("Olga", "olga"))
	assert.Equal(t, "Olga", DisplayName("Olga", ""))
	assert.Equal(t, "Пользователь", DisplayName("", ""))
}

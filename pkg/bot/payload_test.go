package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"ridebot/pkg/models"
)

// wireData is what Telegram hands back for an inline data button.
func wireData(btn tele.Btn) string {
	data := "\f" + btn.Unique
	if btn.Data != "" {
		data += "|" + btn.Data
	}
	return data
}

func TestCallback_ButtonRoundTrip(t *testing.T) {
	menu := &tele.ReplyMarkup{}
	cases := []Callback{
		{Action: ActionBook, RideID: 12},
		{Action: ActionUnbook, RideID: 3},
		{Action: ActionCancel, RideID: 99},
		{Action: ActionEdit, RideID: 4},
		{Action: ActionEdit, RideID: 4, Field: models.FieldSeats},
		{Action: ActionCheckSub},
	}
	for _, want := range cases {
		data := wireData(want.Button(menu, "x"))
		got, err := ParseCallback(data)
		require.NoError(t, err, data)
		assert.Equal(t, want, got)
	}
}

func TestParseCallback_Rejects(t *testing.T) {
	for _, data := range []string{
		"",
		"\ftake|1",
		"\fbook",
		"\fbook|abc",
		"\funbook|-1",
		"\fcancel|0",
	} {
		_, err := ParseCallback(data)
		assert.Error(t, err, "%q", data)
	}
}

func TestParseCallback_PlainData(t *testing.T) {
	cb, err := ParseCallback("book|7")
	require.NoError(t, err)
	assert.Equal(t, Callback{Action: ActionBook, RideID: 7}, cb)
}

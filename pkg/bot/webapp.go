package bot

import (
	"context"
	"encoding/json"

	"github.com/spf13/cast"
	tele "gopkg.in/telebot.v3"

	"ridebot/pkg/logger"
	"ridebot/pkg/models"
)

// webAppRide is the form the mini app posts back. Seats may arrive as a
// string or a number.
type webAppRide struct {
	Destination string      `json:"destination"`
	Time        string      `json:"time"`
	Seats       interface{} `json:"seats"`
	Price       string      `json:"price"`
	Comment     string      `json:"comment"`
}

func (w webAppRide) input() (models.RideInput, error) {
	seats, err := cast.ToIntE(w.Seats)
	if err != nil {
		return models.RideInput{}, err
	}
	return models.RideInput{
		Destination: w.Destination,
		Time:        w.Time,
		Seats:       seats,
		Price:       w.Price,
		Comment:     w.Comment,
	}, nil
}

func (b *Bot) handleWebApp(c tele.Context) error {
	data := c.Message().WebAppData
	if data == nil {
		return c.Send(msg("webapp_bad"))
	}

	var form webAppRide
	if err := json.Unmarshal([]byte(data.Data), &form); err != nil {
		b.Log.Warning("bad web app payload", logger.Int64("user_id", c.Sender().ID), logger.Error(err))
		return c.Send(msg("webapp_bad"))
	}
	in, err := form.input()
	if err != nil {
		return c.Send(msg("ride_seats_bad"))
	}

	return b.publishRide(context.Background(), c, in)
}

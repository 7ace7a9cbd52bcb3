package bot

import (
	"context"
	"errors"
	"strconv"

	tele "gopkg.in/telebot.v3"

	"ridebot/pkg/apperr"
	"ridebot/pkg/logger"
	"ridebot/pkg/models"
)

func (b *Bot) handleCreateStart(c tele.Context) error {
	ctx := context.Background()
	if err := b.saveSession(ctx, c.Sender().ID, &models.Session{State: StateRideDestination}); err != nil {
		return c.Send(msg("generic_error"))
	}
	return c.Send(msg("ride_destination"), abortMenu())
}

// handleWizardStep stores one answer of the ride wizard and asks the next
// question. The last answer publishes the ride.
func (b *Bot) handleWizardStep(ctx context.Context, c tele.Context, session *models.Session, text string) error {
	var next, prompt string
	switch session.State {
	case StateRideDestination:
		if text == "" {
			return c.Send(msg("ride_destination"))
		}
		session.Draft.Destination = text
		next, prompt = StateRideTime, msg("ride_time")
	case StateRideTime:
		session.Draft.Time = text
		next, prompt = StateRideSeats, msg("ride_seats")
	case StateRideSeats:
		seats, err := strconv.Atoi(text)
		if err != nil || seats <= 0 {
			return c.Send(msg("ride_seats_bad"))
		}
		session.Draft.Seats = seats
		next, prompt = StateRidePrice, msg("ride_price")
	case StateRidePrice:
		session.Draft.Price = text
		next, prompt = StateRideComment, msg("ride_comment")
	case StateRideComment:
		if text != "-" {
			session.Draft.Comment = text
		}
		return b.publishRide(ctx, c, session.Draft)
	}

	session.State = next
	if err := b.saveSession(ctx, c.Sender().ID, session); err != nil {
		return c.Send(msg("generic_error"))
	}
	return c.Send(prompt)
}

func (b *Bot) publishRide(ctx context.Context, c tele.Context, in models.RideInput) error {
	b.clearSession(ctx, c.Sender().ID)
	if _, err := b.register(ctx, c.Sender()); err != nil {
		return b.showMenu(c, errorText(err))
	}

	ride, err := b.Svc.Ride().CreateRide(ctx, c.Sender().ID, in)
	if err != nil {
		return b.showMenu(c, errorText(err))
	}
	b.Log.Info("ride published", logger.Int64("ride_id", ride.ID), logger.Int64("driver_id", ride.DriverID))
	return b.showMenu(c, msg("ride_created")+"\n\n"+rideCard(ride))
}

func (b *Bot) handleMyRides(c tele.Context) error {
	rides, err := b.Svc.Ride().ListRidesForDriver(context.Background(), c.Sender().ID)
	if err != nil {
		return c.Send(errorText(err))
	}
	if len(rides) == 0 {
		return c.Send(msg("no_driver_rides"))
	}

	for _, r := range rides {
		menu := &tele.ReplyMarkup{}
		menu.Inline(menu.Row(
			Callback{Action: ActionEdit, RideID: r.ID}.Button(menu, "✏️ Изменить"),
			Callback{Action: ActionCancel, RideID: r.ID}.Button(menu, "❌ Отменить"),
		))
		if err := c.Send(rideCard(r), menu); err != nil {
			return err
		}
	}
	return nil
}

// handleEdit shows the field chooser, or asks for the new value once a field
// is picked.
func (b *Bot) handleEdit(ctx context.Context, c tele.Context, cb Callback) error {
	if cb.Field == "" {
		menu := &tele.ReplyMarkup{}
		rows := make([]tele.Row, 0, len(fieldButtons))
		for _, f := range fieldButtons {
			rows = append(rows, menu.Row(Callback{Action: ActionEdit, RideID: cb.RideID, Field: f.field}.Button(menu, f.label)))
		}
		menu.Inline(rows...)
		if err := c.Send(msg("edit_choose"), menu); err != nil {
			return err
		}
		return c.Respond()
	}

	session := &models.Session{State: StateEditValue, EditRideID: cb.RideID, EditField: cb.Field}
	if err := b.saveSession(ctx, c.Sender().ID, session); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: msg("generic_error"), ShowAlert: true})
	}
	if err := c.Send(format(msg("edit_prompt"), fieldLabel(cb.Field)), abortMenu()); err != nil {
		return err
	}
	return c.Respond()
}

func (b *Bot) handleEditValue(ctx context.Context, c tele.Context, session *models.Session, text string) error {
	ride, err := b.Svc.Ride().EditRideField(ctx, c.Sender().ID, session.EditRideID, session.EditField, text)
	if errors.Is(err, apperr.ErrValidation) {
		// the value can be retyped
		return c.Send(errorText(err))
	}
	b.clearSession(ctx, c.Sender().ID)
	if err != nil {
		return b.showMenu(c, errorText(err))
	}
	return b.showMenu(c, msg("ride_updated")+"\n\n"+rideCard(ride))
}

func (b *Bot) handleCancelRide(ctx context.Context, c tele.Context, rideID int64) error {
	if err := b.Svc.Ride().CancelRide(ctx, c.Sender().ID, rideID); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: errorText(err), ShowAlert: true})
	}
	if err := c.Send(msg("ride_cancelled")); err != nil {
		return err
	}
	return c.Respond()
}

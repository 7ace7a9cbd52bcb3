package bot

import (
	"context"

	tele "gopkg.in/telebot.v3"

	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/pkg/notify"
)

func (b *Bot) handleSearchStart(c tele.Context) error {
	ctx := context.Background()
	if err := b.saveSession(ctx, c.Sender().ID, &models.Session{State: StateSearch}); err != nil {
		return c.Send(msg("generic_error"))
	}
	return c.Send(msg("search_prompt"), abortMenu())
}

func (b *Bot) sendSearchResults(ctx context.Context, c tele.Context, query string) error {
	rides, err := b.Svc.Ride().SearchRides(ctx, query)
	if err != nil {
		return b.showMenu(c, errorText(err))
	}
	if len(rides) == 0 {
		return b.showMenu(c, msg("search_empty"))
	}

	if err := b.showMenu(c, format(msg("search_found"), len(rides))); err != nil {
		return err
	}
	for _, r := range rides {
		if r.DriverID == c.Sender().ID {
			if err := c.Send(rideCard(r)); err != nil {
				return err
			}
			continue
		}
		menu := &tele.ReplyMarkup{}
		menu.Inline(menu.Row(Callback{Action: ActionBook, RideID: r.ID}.Button(menu, "✅ Забронировать")))
		if err := c.Send(rideCard(r), menu); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handleBook(ctx context.Context, c tele.Context, rideID int64) error {
	if _, err := b.register(ctx, c.Sender()); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: errorText(err), ShowAlert: true})
	}
	if _, err := b.Svc.Booking().BookSeat(ctx, rideID, c.Sender().ID); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: errorText(err), ShowAlert: true})
	}

	if err := c.Respond(&tele.CallbackResponse{Text: msg("booked")}); err != nil {
		b.Log.Debug("failed to answer callback", logger.Error(err))
	}
	ride, err := b.Svc.Ride().GetRide(ctx, rideID)
	if err != nil {
		return c.Send(msg("booked"))
	}
	return c.Send(msg("booked") + "\n\n" + rideCard(ride) + "\n\n" +
		format(msg("driver_contact"), notify.DisplayName(ride.DriverName, ride.DriverUsername)))
}

func (b *Bot) handleMyBookings(c tele.Context) error {
	rides, err := b.Svc.Ride().ListBookingsForPassenger(context.Background(), c.Sender().ID)
	if err != nil {
		return c.Send(errorText(err))
	}
	if len(rides) == 0 {
		return c.Send(msg("no_bookings"))
	}

	for _, r := range rides {
		menu := &tele.ReplyMarkup{}
		menu.Inline(menu.Row(Callback{Action: ActionUnbook, RideID: r.ID}.Button(menu, "❌ Отменить бронь")))
		if err := c.Send(rideCard(r), menu); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handleUnbook(ctx context.Context, c tele.Context, rideID int64) error {
	if _, err := b.Svc.Booking().UnbookSeat(ctx, rideID, c.Sender().ID); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: errorText(err), ShowAlert: true})
	}
	if err := c.Send(msg("unbooked")); err != nil {
		return err
	}
	return c.Respond()
}

// Package notify delivers ride events to the users they concern.
//
// A Notifier renders and sends one event. Dispatcher strategies decide when
// that happens: inline right after the mutation, from a poll over unnotified
// bookings, or from a Kafka change feed.
package notify

import (
	"context"
	"errors"

	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/storage"
)

// ErrUndeliverable marks send failures that will never succeed, such as a
// user who blocked the bot. Senders wrap such errors with it.
var ErrUndeliverable = errors.New("recipient unreachable")

// DefaultMaxAttempts is how many transient failures a booking notice survives
// before it is abandoned.
const DefaultMaxAttempts = 3

type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, chatID int64, text string) error

func (f SenderFunc) Send(ctx context.Context, chatID int64, text string) error {
	return f(ctx, chatID, text)
}

// Dispatcher is the interchangeable delivery strategy.
type Dispatcher interface {
	// Dispatch is called after a successful mutation. It never fails the caller.
	Dispatch(ctx context.Context, ev models.Event)
	// Run is the background part of the strategy. It returns when ctx is done.
	Run(ctx context.Context) error
}

func IsPermanent(err error) bool {
	return errors.Is(err, ErrUndeliverable)
}

type Notifier struct {
	sender      Sender
	bookings    storage.IBookingStorage
	maxAttempts int
	log         logger.ILogger
}

func NewNotifier(sender Sender, bookings storage.IBookingStorage, maxAttempts int, log logger.ILogger) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Notifier{
		sender:      sender,
		bookings:    bookings,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// Handle delivers ev and, for booking notices, records the outcome on the
// booking row.
func (n *Notifier) Handle(ctx context.Context, ev models.Event) {
	err := n.Deliver(ctx, ev)
	if ev.Kind == models.EventBookingCreated && ev.BookingID != 0 {
		n.settle(ctx, ev.BookingID, err)
	}
}

// Deliver sends ev to every recipient. A failed recipient does not stop the
// others; the joined failures are returned.
func (n *Notifier) Deliver(ctx context.Context, ev models.Event) error {
	text, err := Render(ev)
	if err != nil {
		n.log.Error("failed to render event", logger.String("kind", string(ev.Kind)), logger.Error(err))
		return err
	}

	var errs []error
	for _, chatID := range ev.Recipients {
		if err := n.sender.Send(ctx, chatID, text); err != nil {
			n.log.Warning("failed to deliver event",
				logger.String("event_id", ev.ID),
				logger.String("kind", string(ev.Kind)),
				logger.Int64("chat_id", chatID),
				logger.Bool("permanent", IsPermanent(err)),
				logger.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// settle marks the booking notified unless the failure is worth another
// cycle. Store errors are logged and left for the next cycle.
func (n *Notifier) settle(ctx context.Context, bookingID int64, deliveryErr error) {
	if deliveryErr != nil && !IsPermanent(deliveryErr) {
		attempts, err := n.bookings.RecordFailedAttempt(ctx, bookingID)
		if err != nil {
			n.log.Error("failed to record notify attempt", logger.Int64("booking_id", bookingID), logger.Error(err))
			return
		}
		if attempts < n.maxAttempts {
			return
		}
		n.log.Error("giving up on booking notice",
			logger.Int64("booking_id", bookingID),
			logger.Int("attempts", attempts),
			logger.Error(deliveryErr),
		)
	}

	if err := n.bookings.MarkNotified(ctx, bookingID); err != nil {
		n.log.Error("failed to mark booking notified", logger.Int64("booking_id", bookingID), logger.Error(err))
	}
}

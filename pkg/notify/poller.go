package notify

import (
	"context"
	"time"

	"ridebot/pkg/logger"
	"ridebot/pkg/models"
	"ridebot/storage"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultBatchSize    = 10
)

// Poller delivers booking notices by scanning for unnotified bookings. Other
// events have no backing row and are delivered inline.
type Poller struct {
	n        *Notifier
	bookings storage.IBookingStorage
	interval time.Duration
	batch    int
	log      logger.ILogger
}

func NewPoller(n *Notifier, bookings storage.IBookingStorage, interval time.Duration, batch int, log logger.ILogger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Poller{
		n:        n,
		bookings: bookings,
		interval: interval,
		batch:    batch,
		log:      log,
	}
}

func (p *Poller) Dispatch(ctx context.Context, ev models.Event) {
	if ev.Kind == models.EventBookingCreated {
		return
	}
	p.n.Handle(ctx, ev)
}

func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("notification poller started",
		logger.Duration("interval", p.interval),
		logger.Int("batch", p.batch),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("notification poller stopped")
			return nil
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.log.Error("notification poll failed", logger.Error(err))
			}
		}
	}
}

// RunOnce handles one batch and reports how many bookings it processed.
func (p *Poller) RunOnce(ctx context.Context) (int, error) {
	pending, err := p.bookings.GetUnnotified(ctx, p.batch)
	if err != nil {
		return 0, err
	}
	for _, b := range pending {
		if ctx.Err() != nil {
			break
		}
		p.n.Handle(ctx, models.BookingCreatedEvent(b))
	}
	return len(pending), nil
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/segmentio/kafka-go"

	"ridebot/pkg/logger"
	"ridebot/pkg/models"
)

type Publisher interface {
	Publish(ctx context.Context, key string, payload interface{}) error
}

type Subscriber interface {
	Consume(ctx context.Context, handler func(context.Context, kafka.Message) error) error
}

// Kafka publishes events to a topic in Dispatch and delivers them from the
// consumer side in Run. Events keyed by ride keep their order per ride.
type Kafka struct {
	n   *Notifier
	pub Publisher
	sub Subscriber
	log logger.ILogger
}

func NewKafka(n *Notifier, pub Publisher, sub Subscriber, log logger.ILogger) *Kafka {
	return &Kafka{n: n, pub: pub, sub: sub, log: log}
}

func (d *Kafka) Dispatch(ctx context.Context, ev models.Event) {
	if err := d.pub.Publish(ctx, strconv.FormatInt(ev.RideID, 10), ev); err != nil {
		d.log.Warning("failed to publish event, delivering inline",
			logger.String("event_id", ev.ID),
			logger.String("kind", string(ev.Kind)),
			logger.Error(err),
		)
		d.n.Handle(ctx, ev)
	}
}

func (d *Kafka) Run(ctx context.Context) error {
	d.log.Info("notification consumer started")

	err := d.sub.Consume(ctx, d.handleMessage)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		d.log.Info("notification consumer stopped")
		return nil
	}
	return err
}

func (d *Kafka) handleMessage(ctx context.Context, msg kafka.Message) error {
	var ev models.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		d.log.Error("failed to decode event",
			logger.Int64("offset", msg.Offset),
			logger.Error(err),
		)
		return nil
	}
	d.n.Handle(ctx, ev)
	return nil
}

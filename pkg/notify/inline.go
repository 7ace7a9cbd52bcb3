package notify

import (
	"context"

	"ridebot/pkg/models"
)

// Inline delivers every event synchronously inside Dispatch.
type Inline struct {
	n *Notifier
}

func NewInline(n *Notifier) *Inline {
	return &Inline{n: n}
}

func (d *Inline) Dispatch(ctx context.Context, ev models.Event) {
	d.n.Handle(ctx, ev)
}

func (d *Inline) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

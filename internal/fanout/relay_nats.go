package fanout

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

const natsSubject = "leadmarket.fanout"

// NATSRelay shares fanout frames between instances over core NATS subjects.
// Core NATS is at-most-once, which matches hub delivery.
type NATSRelay struct {
	nc      *nats.Conn
	subject string
}

// NewNATSRelay connects to url.
func NewNATSRelay(url string) (*NATSRelay, error) {
	nc, err := nats.Connect(url, nats.Name("leadmarket-fanout"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSRelay{nc: nc, subject: natsSubject}, nil
}

func (r *NATSRelay) Publish(_ context.Context, data []byte) error {
	if err := r.nc.Publish(r.subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", r.subject, err)
	}
	return nil
}

func (r *NATSRelay) Run(ctx context.Context, deliver func([]byte)) error {
	sub, err := r.nc.Subscribe(r.subject, func(msg *nats.Msg) {
		deliver(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", r.subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	<-ctx.Done()
	return ctx.Err()
}

func (r *NATSRelay) Close() error {
	r.nc.Close()
	return nil
}

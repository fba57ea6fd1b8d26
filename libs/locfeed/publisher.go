package locfeed

import (
	"context"
	"fmt"
	"time"
)

// Publisher emits location events onto per-order channels over the shared
// connection. It never retries on its own: the driver agent's periodic
// trigger is the retry schedule.
type Publisher struct {
	conn *Connection
}

func NewPublisher(conn *Connection) *Publisher {
	return &Publisher{conn: conn}
}

// PublishLocation sends one event to the channel of orderID, connecting
// first when needed. It returns once the broker has acknowledged the
// message (at-least-once, not retained) or with the underlying cause on
// failure. Nothing is buffered while disconnected.
func (p *Publisher) PublishLocation(ctx context.Context, orderID string, ev LocationEvent) error {
	if orderID == "" {
		return ErrEmptyOrderID
	}
	// The payload always names the order whose channel carries it.
	ev.OrderID = orderID
	data, err := ev.ToBytes()
	if err != nil {
		return fmt.Errorf("encode location event: %v", err)
	}

	if _, err := p.conn.Connect(); err != nil {
		return err
	}
	nc := p.conn.current()
	if nc == nil {
		// Another caller's dial is still in flight.
		return ErrNotConnected
	}

	if err := nc.Publish(Topic(orderID), data); err != nil {
		return fmt.Errorf("publish to %s: %v", Topic(orderID), err)
	}
	if err := nc.Flush(p.ackTimeout(ctx)); err != nil {
		return fmt.Errorf("broker ack for %s: %v", Topic(orderID), err)
	}
	return nil
}

func (p *Publisher) ackTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < p.conn.opts.AckTimeout {
			return left
		}
	}
	return p.conn.opts.AckTimeout
}

package locfeed

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Handler receives decoded location events for one order.
type Handler func(LocationEvent)

// Subscriber listens on per-order channels over the shared connection.
// It keeps at most one active subscription per order id.
type Subscriber struct {
	conn *Connection

	mu     sync.Mutex
	orders map[string]*interest
}

func NewSubscriber(conn *Connection) *Subscriber {
	return &Subscriber{conn: conn, orders: make(map[string]*interest)}
}

// SubscribeToDriverLocation subscribes to the location channel of orderID
// and invokes handler for every decoded event. Malformed payloads are
// logged and skipped, never interrupting delivery of later messages.
//
// When the connection is not up yet, the interest is registered and comes
// alive once a connect succeeds; a failed connect leaves it dormant until
// the connection manager recovers or the caller subscribes again.
//
// The returned unsubscribe function is idempotent and safe to call after
// the connection has been torn down. Subscribing to an order that already
// has an active subscription replaces it, so a single handler never
// receives the same event twice.
func (s *Subscriber) SubscribeToDriverLocation(orderID string, handler Handler) (func(), error) {
	if orderID == "" {
		return nil, ErrEmptyOrderID
	}

	topic := Topic(orderID)
	raw := func(data []byte) {
		ev, err := DecodeLocationEvent(data)
		if err != nil {
			log.WithField("topic", topic).WithField("err", err).Error("Dropping undecodable location message")
			return
		}
		handler(ev)
	}

	s.mu.Lock()
	if prev, ok := s.orders[orderID]; ok {
		s.conn.removeInterest(prev)
	}
	in := s.conn.addInterest(topic, raw)
	s.orders[orderID] = in
	s.mu.Unlock()

	if _, err := s.conn.Connect(); err != nil {
		// The interest stays registered; the reconnect policy will pick
		// it up if the broker comes back.
		log.WithField("topic", topic).WithField("err", err).Warn("Subscription deferred, broker unavailable")
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			if s.orders[orderID] == in {
				delete(s.orders, orderID)
			}
			s.mu.Unlock()
			s.conn.removeInterest(in)
		})
	}
	return unsubscribe, nil
}

// LatestOnly wraps a handler with a last-applied-timestamp gate so a late
// arriving older event cannot overwrite a newer marker position. The
// transport gives no ordering guarantee; this keeps the displayed state
// last-write-wins by sampling time instead of arrival time. Events for one
// subscription are delivered sequentially, which is what makes the
// unsynchronized counter safe.
func LatestOnly(handler Handler) Handler {
	var lastApplied int64
	return func(ev LocationEvent) {
		if ev.Timestamp < lastApplied {
			log.WithField("order_id", ev.OrderID).Debug("Ignoring stale location event")
			return
		}
		lastApplied = ev.Timestamp
		handler(ev)
	}
}

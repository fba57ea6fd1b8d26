package locfeed

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

var ErrNotConnected = errors.New("broker connection is not established")

// BrokerConn is the slice of the broker client the connection manager
// actually uses. The production implementation wraps *nats.Conn; tests
// inject fakes through Options.Dialer.
type BrokerConn interface {
	Publish(subject string, data []byte) error
	Flush(timeout time.Duration) error
	Subscribe(subject string, handler func(data []byte)) (BrokerSub, error)
	IsConnected() bool
	Close()
}

// BrokerSub is a live broker-side subscription.
type BrokerSub interface {
	Unsubscribe() error
}

// DialFunc establishes one broker connection. onDown must be invoked once
// when the connection is lost for any reason other than an explicit Close.
type DialFunc func(clientID string, timeout time.Duration, onDown func(error)) (BrokerConn, error)

// Options configures a Connection. Zero values fall back to the deployment
// defaults used by the dashboard clients already on the broker.
type Options struct {
	URL            string
	ClientIDPrefix string
	ConnectTimeout time.Duration
	AckTimeout     time.Duration
	ReconnectBase  time.Duration // first retry delay, grows by x1.5
	MaxReconnects  int
	Dialer         DialFunc
}

const (
	defaultURL            = "nats://127.0.0.1:4222"
	defaultClientIDPrefix = "antermbg-driver"
	defaultConnectTimeout = 10 * time.Second
	defaultAckTimeout     = 5 * time.Second
	defaultReconnectBase  = 5 * time.Second
	defaultMaxReconnects  = 10
)

// Connection owns at most one live broker connection, shared by every
// publisher and subscriber in the process. It connects lazily, recovers
// from transport failures with capped exponential backoff and replays
// registered subscription interests after each successful (re)connect.
type Connection struct {
	opts Options

	mu         sync.Mutex
	nc         BrokerConn
	connecting bool
	attempts   int
	retry      *time.Timer
	gen        uint64 // invalidates down-callbacks from stale dials
	interests  map[*interest]struct{}
}

// interest is a subscription the caller wants alive whenever the
// connection is up. sub is nil while the interest is dormant.
type interest struct {
	subject string
	handler func(data []byte)
	sub     BrokerSub
}

func NewConnection(opts Options) *Connection {
	if opts.URL == "" {
		opts.URL = defaultURL
	}
	if opts.ClientIDPrefix == "" {
		opts.ClientIDPrefix = defaultClientIDPrefix
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = defaultAckTimeout
	}
	if opts.ReconnectBase <= 0 {
		opts.ReconnectBase = defaultReconnectBase
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = defaultMaxReconnects
	}
	c := &Connection{opts: opts, interests: make(map[*interest]struct{})}
	if c.opts.Dialer == nil {
		c.opts.Dialer = c.natsDial
	}
	return c
}

// Connect establishes the broker connection if there is none. It returns
// (true, nil) when the connection is up after the call, (false, nil) when
// another connect attempt is already in flight, and (false, err) when the
// dial failed. Calling Connect resets the retry counter, so it also revives
// a manager that went dormant after exhausting its reconnect budget.
func (c *Connection) Connect() (bool, error) {
	c.mu.Lock()
	c.attempts = 0
	c.stopRetryLocked()
	c.mu.Unlock()
	return c.connect()
}

func (c *Connection) connect() (bool, error) {
	c.mu.Lock()
	if c.nc != nil && c.nc.IsConnected() {
		c.mu.Unlock()
		return true, nil
	}
	if c.connecting {
		c.mu.Unlock()
		return false, nil
	}
	c.connecting = true
	c.gen++
	gen := c.gen
	dial := c.opts.Dialer
	timeout := c.opts.ConnectTimeout
	clientID := fmt.Sprintf("%s-%d", c.opts.ClientIDPrefix, time.Now().UnixMilli())
	c.mu.Unlock()

	nc, err := dial(clientID, timeout, func(cause error) { c.connectionDown(gen, cause) })

	c.mu.Lock()
	c.connecting = false
	if err != nil {
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return false, fmt.Errorf("broker dial: %v", err)
	}
	if gen != c.gen {
		// Disconnect raced with the dial; drop the fresh connection.
		c.mu.Unlock()
		nc.Close()
		return false, ErrNotConnected
	}
	c.nc = nc
	c.attempts = 0
	c.stopRetryLocked()
	for in := range c.interests {
		c.activateLocked(in)
	}
	c.mu.Unlock()

	log.WithField("client_id", clientID).Info("Connected to broker")
	return true, nil
}

// Disconnect tears down the connection, cancels any pending reconnect and
// resets retry state. Registered interests stay registered but dormant.
// Safe to call when not connected.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.stopRetryLocked()
	c.attempts = 0
	c.connecting = false
	nc := c.nc
	c.nc = nil
	for in := range c.interests {
		in.sub = nil
	}
	c.mu.Unlock()

	if nc != nil {
		nc.Close()
		log.Info("Disconnected from broker")
	}
}

// IsConnected reports whether a live connection is currently held.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nc != nil && c.nc.IsConnected()
}

func (c *Connection) connectionDown(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen || c.nc == nil {
		// Explicit Disconnect or a newer dial already superseded this one.
		c.mu.Unlock()
		return
	}
	c.nc = nil
	for in := range c.interests {
		in.sub = nil
	}
	log.WithField("err", cause).Warn("Broker connection lost")
	c.scheduleReconnectLocked()
	c.mu.Unlock()
}

// backoffDelay is base * 1.5^(attempt-1) for attempt >= 1.
func (c *Connection) backoffDelay(attempt int) time.Duration {
	return time.Duration(float64(c.opts.ReconnectBase) * math.Pow(1.5, float64(attempt-1)))
}

func (c *Connection) scheduleReconnectLocked() {
	if c.retry != nil {
		return
	}
	if c.attempts >= c.opts.MaxReconnects {
		log.Errorf("Failed to connect after %d attempts, giving up until Connect is called again", c.opts.MaxReconnects)
		return
	}
	c.attempts++
	delay := c.backoffDelay(c.attempts)
	log.Warnf("Reconnecting to broker in %v (attempt %d/%d)", delay, c.attempts, c.opts.MaxReconnects)
	c.retry = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.retry = nil
		c.mu.Unlock()
		if _, err := c.connect(); err != nil {
			log.WithField("err", err).Debug("Reconnect attempt failed")
		}
	})
}

func (c *Connection) stopRetryLocked() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
}

// current returns the live broker connection or nil.
func (c *Connection) current() BrokerConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc != nil && c.nc.IsConnected() {
		return c.nc
	}
	return nil
}

// addInterest registers a subscription interest and activates it right away
// when the connection is up. Dormant interests are activated on the next
// successful connect.
func (c *Connection) addInterest(subject string, handler func(data []byte)) *interest {
	in := &interest{subject: subject, handler: handler}
	c.mu.Lock()
	c.interests[in] = struct{}{}
	if c.nc != nil && c.nc.IsConnected() {
		c.activateLocked(in)
	}
	c.mu.Unlock()
	return in
}

// removeInterest drops the registration and the broker-side subscription,
// if any. Idempotent and safe after the connection has been torn down.
func (c *Connection) removeInterest(in *interest) {
	c.mu.Lock()
	delete(c.interests, in)
	sub := in.sub
	in.sub = nil
	c.mu.Unlock()

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			log.WithField("err", err).Debug("Unsubscribe failed")
		}
	}
}

func (c *Connection) activateLocked(in *interest) {
	if in.sub != nil {
		return
	}
	sub, err := c.nc.Subscribe(in.subject, in.handler)
	if err != nil {
		log.WithField("topic", in.subject).WithField("err", err).Error("Subscription failed")
		return
	}
	in.sub = sub
}

// natsDial is the production DialFunc. The client owns the reconnect
// policy, so the library's built-in retries are disabled.
func (c *Connection) natsDial(clientID string, timeout time.Duration, onDown func(error)) (BrokerConn, error) {
	var down sync.Once
	nc, err := nats.Connect(c.opts.URL,
		nats.Name(clientID),
		nats.Timeout(timeout),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			down.Do(func() { onDown(err) })
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			down.Do(func() { onDown(nc.LastError()) })
		}),
	)
	if err != nil {
		return nil, err
	}
	return &natsConn{nc: nc}, nil
}

type natsConn struct {
	nc *nats.Conn
}

func (n *natsConn) Publish(subject string, data []byte) error {
	return n.nc.Publish(subject, data)
}

func (n *natsConn) Flush(timeout time.Duration) error {
	return n.nc.FlushTimeout(timeout)
}

func (n *natsConn) Subscribe(subject string, handler func(data []byte)) (BrokerSub, error) {
	return n.nc.Subscribe(subject, func(m *nats.Msg) { handler(m.Data) })
}

func (n *natsConn) IsConnected() bool {
	return n.nc.IsConnected()
}

func (n *natsConn) Close() {
	n.nc.Close()
}

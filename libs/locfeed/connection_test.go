package locfeed

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory BrokerConn. Messages are injected by calling
// deliver directly.
type fakeConn struct {
	mu       sync.Mutex
	closed   bool
	handlers map[string]func([]byte)
}

func newFakeConn() *fakeConn {
	return &fakeConn{handlers: make(map[string]func([]byte))}
}

func (f *fakeConn) Publish(subject string, data []byte) error { return nil }
func (f *fakeConn) Flush(timeout time.Duration) error         { return nil }

func (f *fakeConn) Subscribe(subject string, handler func([]byte)) (BrokerSub, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[subject] = handler
	return &fakeSub{conn: f, subject: subject}, nil
}

func (f *fakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) deliver(subject string, data []byte) {
	f.mu.Lock()
	handler := f.handlers[subject]
	f.mu.Unlock()
	if handler != nil {
		handler(data)
	}
}

type fakeSub struct {
	conn    *fakeConn
	subject string
}

func (s *fakeSub) Unsubscribe() error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	delete(s.conn.handlers, s.subject)
	return nil
}

// fakeDialer fails the first failures dials (all of them when failures is
// negative) and hands out fakeConns afterwards.
type fakeDialer struct {
	mu       sync.Mutex
	dials    int
	failures int
	conns    []*fakeConn
	onDowns  []func(error)
	started  chan struct{} // closed once the first dial begins, when set
	block    chan struct{} // dial blocks on this channel, when set
}

func (d *fakeDialer) dial(clientID string, timeout time.Duration, onDown func(error)) (BrokerConn, error) {
	d.mu.Lock()
	d.dials++
	if d.started != nil {
		close(d.started)
		d.started = nil
	}
	block := d.block
	fail := d.failures != 0
	if d.failures > 0 {
		d.failures--
	}
	d.mu.Unlock()

	if block != nil {
		<-block
	}
	if fail {
		return nil, errors.New("broker unreachable")
	}

	conn := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.onDowns = append(d.onDowns, onDown)
	d.mu.Unlock()
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn() (*fakeConn, func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil, nil
	}
	return d.conns[len(d.conns)-1], d.onDowns[len(d.onDowns)-1]
}

func TestBackoffDelayFollowsGeometricProgression(t *testing.T) {
	c := NewConnection(Options{ReconnectBase: 100 * time.Millisecond})

	assert.Equal(t, 100*time.Millisecond, c.backoffDelay(1))
	assert.Equal(t, 150*time.Millisecond, c.backoffDelay(2))
	assert.Equal(t, 225*time.Millisecond, c.backoffDelay(3))

	prev := time.Duration(0)
	for n := 1; n <= 10; n++ {
		d := c.backoffDelay(n)
		assert.Greater(t, d, prev, "delay must strictly increase")
		prev = d
	}
}

func TestConnectIsIdempotentWhenConnected(t *testing.T) {
	d := &fakeDialer{}
	c := NewConnection(Options{Dialer: d.dial})

	ok, err := c.Connect()
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Connect()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, d.dialCount(), "second Connect must not dial again")
	assert.True(t, c.IsConnected())
}

func TestConnectReportsAttemptInFlight(t *testing.T) {
	started := make(chan struct{})
	block := make(chan struct{})
	d := &fakeDialer{started: started, block: block}
	c := NewConnection(Options{Dialer: d.dial})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Connect()
	}()
	<-started

	ok, err := c.Connect()
	require.NoError(t, err)
	assert.False(t, ok, "a second caller must not start a concurrent dial")
	assert.Equal(t, 1, d.dialCount())

	close(block)
	<-done
	assert.True(t, c.IsConnected())
}

func TestReconnectStopsAfterRetryCap(t *testing.T) {
	d := &fakeDialer{failures: -1}
	c := NewConnection(Options{Dialer: d.dial, ReconnectBase: time.Millisecond, MaxReconnects: 10})

	_, err := c.Connect()
	require.Error(t, err)

	// 1 explicit dial + 10 retries, then the manager goes dormant.
	// Total backoff is well under half a second with a 1ms base.
	assert.Eventually(t, func() bool { return d.dialCount() == 11 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 11, d.dialCount(), "no retry may be scheduled past the cap")

	// An explicit Connect resets the attempt counter and dials again.
	_, err = c.Connect()
	require.Error(t, err)
	assert.GreaterOrEqual(t, d.dialCount(), 12)
	c.Disconnect()
}

func TestConnectionDownTriggersReconnect(t *testing.T) {
	d := &fakeDialer{}
	c := NewConnection(Options{Dialer: d.dial, ReconnectBase: time.Millisecond})

	_, err := c.Connect()
	require.NoError(t, err)

	conn, onDown := d.lastConn()
	require.NotNil(t, conn)
	conn.Close()
	onDown(errors.New("connection reset"))

	assert.Eventually(t, func() bool { return c.IsConnected() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, d.dialCount())
	c.Disconnect()
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	d := &fakeDialer{failures: -1}
	c := NewConnection(Options{Dialer: d.dial, ReconnectBase: 50 * time.Millisecond, MaxReconnects: 10})

	_, err := c.Connect()
	require.Error(t, err)
	dialed := d.dialCount()

	c.Disconnect()
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, dialed, d.dialCount(), "Disconnect must cancel the pending retry timer")
	assert.False(t, c.IsConnected())

	// Safe to call again when not connected.
	c.Disconnect()
}

func TestSubscriptionIsDeferredUntilConnectSucceeds(t *testing.T) {
	d := &fakeDialer{failures: 1}
	c := NewConnection(Options{Dialer: d.dial, ReconnectBase: time.Millisecond})
	s := NewSubscriber(c)

	got := make(chan LocationEvent, 1)
	unsubscribe, err := s.SubscribeToDriverLocation("O7", func(ev LocationEvent) { got <- ev })
	require.NoError(t, err)
	defer unsubscribe()

	// First dial failed; the reconnect policy brings the connection up and
	// must activate the registered interest.
	assert.Eventually(t, func() bool {
		conn, _ := d.lastConn()
		if conn == nil {
			return false
		}
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.handlers[Topic("O7")] != nil
	}, 2*time.Second, 5*time.Millisecond)

	conn, _ := d.lastConn()
	ev := LocationEvent{DriverID: "D1", OrderID: "O7", Timestamp: 42, Location: Coordinates{Lat: 1, Lng: 2}}
	data, err := ev.ToBytes()
	require.NoError(t, err)
	conn.deliver(Topic("O7"), data)

	select {
	case received := <-got:
		assert.Equal(t, ev, received)
	case <-time.After(time.Second):
		t.Fatal("deferred subscription never delivered")
	}
	c.Disconnect()
}

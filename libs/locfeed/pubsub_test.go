package locfeed

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBroker(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded broker did not start")
	}
	t.Cleanup(srv.Shutdown)
	return srv.ClientURL()
}

func brokerClient(t *testing.T, url string) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func testEvent(orderID string) LocationEvent {
	heading := 42.0
	return LocationEvent{
		DriverID:  "D1",
		OrderID:   orderID,
		Timestamp: time.Now().UnixMilli(),
		Location:  Coordinates{Lat: -6.2, Lng: 106.8},
		Heading:   &heading,
	}
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	url := startBroker(t)
	conn := NewConnection(Options{URL: url})
	defer conn.Disconnect()

	pub := NewPublisher(conn)
	sub := NewSubscriber(conn)

	got := make(chan LocationEvent, 4)
	unsubscribe, err := sub.SubscribeToDriverLocation("O2", func(ev LocationEvent) { got <- ev })
	require.NoError(t, err)
	defer unsubscribe()

	ev := testEvent("O2")
	require.NoError(t, pub.PublishLocation(context.Background(), "O2", ev))

	select {
	case received := <-got:
		assert.Equal(t, ev, received)
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestPublisherSendsToExactChannelName(t *testing.T) {
	url := startBroker(t)
	conn := NewConnection(Options{URL: url})
	defer conn.Disconnect()
	pub := NewPublisher(conn)

	// A foreign client listening on the raw subject must interoperate.
	raw := brokerClient(t, url)
	got := make(chan []byte, 1)
	_, err := raw.Subscribe("antermbg/delivery/O2/location", func(m *nats.Msg) { got <- m.Data })
	require.NoError(t, err)
	require.NoError(t, raw.Flush())

	ev := LocationEvent{
		DriverID:  "D1",
		OrderID:   "O2",
		Timestamp: 1000,
		Location:  Coordinates{Lat: -6.2, Lng: 106.8},
	}
	require.NoError(t, pub.PublishLocation(context.Background(), "O2", ev))

	select {
	case data := <-got:
		assert.JSONEq(t,
			`{"driverId":"D1","orderId":"O2","timestamp":1000,"location":{"lat":-6.2,"lng":106.8}}`,
			string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("nothing arrived on the wire-contract channel")
	}
}

func TestPublisherStampsOrderIDOverPayload(t *testing.T) {
	url := startBroker(t)
	conn := NewConnection(Options{URL: url})
	defer conn.Disconnect()
	pub := NewPublisher(conn)

	raw := brokerClient(t, url)
	got := make(chan []byte, 1)
	_, err := raw.Subscribe(Topic("O2"), func(m *nats.Msg) { got <- m.Data })
	require.NoError(t, err)
	require.NoError(t, raw.Flush())

	// A stale id inside the event must not survive: the payload always
	// names the order whose channel carries it.
	ev := testEvent("O-STALE")
	require.NoError(t, pub.PublishLocation(context.Background(), "O2", ev))

	select {
	case data := <-got:
		received, err := DecodeLocationEvent(data)
		require.NoError(t, err)
		assert.Equal(t, "O2", received.OrderID)
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestPublishRejectsEmptyOrderID(t *testing.T) {
	conn := NewConnection(Options{})
	pub := NewPublisher(conn)

	err := pub.PublishLocation(context.Background(), "", testEvent("O1"))
	assert.ErrorIs(t, err, ErrEmptyOrderID)

	_, err = NewSubscriber(conn).SubscribeToDriverLocation("", func(LocationEvent) {})
	assert.ErrorIs(t, err, ErrEmptyOrderID)
}

func TestMalformedPayloadDoesNotBreakSubscription(t *testing.T) {
	url := startBroker(t)
	conn := NewConnection(Options{URL: url})
	defer conn.Disconnect()

	pub := NewPublisher(conn)
	sub := NewSubscriber(conn)

	got := make(chan LocationEvent, 4)
	unsubscribe, err := sub.SubscribeToDriverLocation("O3", func(ev LocationEvent) { got <- ev })
	require.NoError(t, err)
	defer unsubscribe()

	// Warm up so the subscription is known to be active on the server.
	require.NoError(t, pub.PublishLocation(context.Background(), "O3", testEvent("O3")))
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("warmup event never delivered")
	}

	raw := brokerClient(t, url)
	require.NoError(t, raw.Publish(Topic("O3"), []byte("{definitely not json")))
	require.NoError(t, raw.Publish(Topic("O3"), []byte(`{"orderId":"O3"}`))) // schema-invalid
	require.NoError(t, raw.Flush())

	ev := testEvent("O3")
	require.NoError(t, pub.PublishLocation(context.Background(), "O3", ev))

	select {
	case received := <-got:
		assert.Equal(t, ev, received, "the valid event after garbage must still arrive")
	case <-time.After(2 * time.Second):
		t.Fatal("subscription died after a malformed payload")
	}
	assert.Empty(t, got, "garbage must not produce deliveries")
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	url := startBroker(t)
	conn := NewConnection(Options{URL: url})
	defer conn.Disconnect()

	pub := NewPublisher(conn)
	sub := NewSubscriber(conn)

	got := make(chan LocationEvent, 4)
	unsubscribe, err := sub.SubscribeToDriverLocation("O4", func(ev LocationEvent) { got <- ev })
	require.NoError(t, err)

	require.NoError(t, pub.PublishLocation(context.Background(), "O4", testEvent("O4")))
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered before unsubscribe")
	}

	unsubscribe()
	unsubscribe() // second call must be a no-op

	require.NoError(t, pub.PublishLocation(context.Background(), "O4", testEvent("O4")))
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, got, "no delivery may happen after unsubscribe")

	// Safe after the connection itself is gone.
	conn.Disconnect()
	unsubscribe()
}

func TestResubscribeReplacesPriorSubscription(t *testing.T) {
	url := startBroker(t)
	conn := NewConnection(Options{URL: url})
	defer conn.Disconnect()

	pub := NewPublisher(conn)
	sub := NewSubscriber(conn)

	got := make(chan LocationEvent, 8)
	handler := func(ev LocationEvent) { got <- ev }

	_, err := sub.SubscribeToDriverLocation("O5", handler)
	require.NoError(t, err)
	unsubscribe, err := sub.SubscribeToDriverLocation("O5", handler)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, pub.PublishLocation(context.Background(), "O5", testEvent("O5")))

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, got, "re-subscribing the same order must not duplicate deliveries")
}

func TestLatestOnlyDropsStaleEvents(t *testing.T) {
	var applied []int64
	gate := LatestOnly(func(ev LocationEvent) { applied = append(applied, ev.Timestamp) })

	for _, ts := range []int64{100, 200, 150, 200, 300} {
		gate(LocationEvent{DriverID: "D1", OrderID: "O1", Timestamp: ts})
	}
	assert.Equal(t, []int64{100, 200, 200, 300}, applied)
}

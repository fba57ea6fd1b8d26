// Package feed keeps the tracker subscribed to the location channel of
// every in-progress order, mirroring what the school and kitchen map views
// do per order, but for the whole fleet at once.
package feed

import (
	"context"
	"time"

	"github.com/antermbg/livetrack/cli/tracker/storage"
	"github.com/antermbg/livetrack/libs/deliveries"
	"github.com/antermbg/livetrack/libs/locfeed"
	log "github.com/sirupsen/logrus"
)

// Lister is the slice of the delivery API client the feed needs.
type Lister interface {
	List(ctx context.Context, mode deliveries.Mode) ([]deliveries.Delivery, error)
}

// Feed reconciles broker subscriptions against the delivery listing and
// routes received events into the latest-position table and the storage
// repository.
type Feed struct {
	sub    *locfeed.Subscriber
	client Lister
	latest *Latest
	sink   storage.Saver

	active map[string]func() // orderID -> unsubscribe
}

func New(sub *locfeed.Subscriber, client Lister, latest *Latest, sink storage.Saver) *Feed {
	return &Feed{
		sub:    sub,
		client: client,
		latest: latest,
		sink:   sink,
		active: make(map[string]func()),
	}
}

// Run polls the listing every interval and reconciles subscriptions until
// ctx is done. All subscriptions are torn down on exit.
func (f *Feed) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	defer f.teardown()

	for {
		list, err := f.client.List(ctx, "")
		if err != nil {
			log.WithField("err", err).Error("Failed to list deliveries")
		} else {
			f.reconcile(list)
		}

		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
	}
}

func (f *Feed) reconcile(list []deliveries.Delivery) {
	wanted := make(map[string]bool, len(list))
	for _, d := range list {
		if deliveries.InProgress(d.Status) {
			wanted[d.OrderID] = true
		}
	}

	for orderID, unsubscribe := range f.active {
		if wanted[orderID] {
			continue
		}
		unsubscribe()
		delete(f.active, orderID)
		f.latest.Drop(orderID)
		log.WithField("order_id", orderID).Info("Stopped tracking order")
	}

	for orderID := range wanted {
		if _, ok := f.active[orderID]; ok {
			continue
		}
		unsubscribe, err := f.sub.SubscribeToDriverLocation(orderID, f.handler())
		if err != nil {
			log.WithField("order_id", orderID).WithField("err", err).Error("Failed to subscribe to order")
			continue
		}
		f.active[orderID] = unsubscribe
		log.WithField("order_id", orderID).Info("Tracking order")
	}
}

// handler applies an event to the latest table and hands it to the sinks.
// Events the timestamp gate rejects are not persisted either.
func (f *Feed) handler() locfeed.Handler {
	return func(ev locfeed.LocationEvent) {
		if !f.latest.Apply(ev) {
			return
		}
		if f.sink == nil {
			return
		}
		if err := f.sink.Save(&ev); err != nil {
			log.WithField("order_id", ev.OrderID).WithField("err", err).Error("Failed to store location event")
		}
	}
}

func (f *Feed) teardown() {
	for orderID, unsubscribe := range f.active {
		unsubscribe()
		delete(f.active, orderID)
	}
}

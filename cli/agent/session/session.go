// Package session drives location publishing for one driver shift. It owns
// the single restartable publish schedule, so a stale order id can never
// keep publishing from a leaked timer.
package session

import (
	"context"
	"time"

	"github.com/antermbg/livetrack/cli/agent/position"
	"github.com/antermbg/livetrack/libs/locfeed"
	log "github.com/sirupsen/logrus"
)

// Publisher is the slice of locfeed the session needs; tests use fakes.
type Publisher interface {
	PublishLocation(ctx context.Context, orderID string, ev locfeed.LocationEvent) error
}

// Session publishes the driver's position on the channel of the active
// order. Publishing is both event driven (every new fix) and interval
// driven (every Interval while an order stays active), whichever fires
// first for a given fix.
type Session struct {
	driverID string
	pub      Publisher
	interval time.Duration
	now      func() int64 // epoch millis, swapped in tests
}

const DefaultInterval = 30 * time.Second

func New(driverID string, pub Publisher, interval time.Duration) *Session {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Session{
		driverID: driverID,
		pub:      pub,
		interval: interval,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

// Run consumes device fixes and active-order changes until ctx is done.
// orders carries the current active order id, empty string for none; the
// same id repeated is a no-op. Rules, in order of precedence:
//
//   - no active order: nothing is published, the ticker is stopped;
//   - a new fix while active: publish immediately;
//   - a tick while active: publish the last known fix;
//   - the active order changes: cancel the schedule and, when a new order
//     is active and a fix is known, publish immediately and restart it.
func (s *Session) Run(ctx context.Context, fixes <-chan position.Fix, orders <-chan string) {
	var (
		active  string
		last    position.Fix
		haveFix bool
		ticker  *time.Ticker
		tick    <-chan time.Time
	)
	stopSchedule := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tick = nil
		}
	}
	startSchedule := func() {
		ticker = time.NewTicker(s.interval)
		tick = ticker.C
	}
	defer stopSchedule()

	for {
		select {
		case <-ctx.Done():
			return

		case fix, ok := <-fixes:
			if !ok {
				fixes = nil
				continue
			}
			first := !haveFix
			last, haveFix = fix, true
			if active == "" {
				continue
			}
			s.publish(ctx, active, fix)
			if first && ticker == nil {
				startSchedule()
			}

		case next, ok := <-orders:
			if !ok {
				orders = nil
				continue
			}
			if next == active {
				continue
			}
			stopSchedule()
			active = next
			if active == "" {
				log.Info("No active order, location publishing stopped")
				continue
			}
			log.WithField("order_id", active).Info("Active order changed, restarting location publishing")
			if haveFix {
				s.publish(ctx, active, last)
			}
			startSchedule()

		case <-tick:
			if active != "" && haveFix {
				s.publish(ctx, active, last)
			}
		}
	}
}

func (s *Session) publish(ctx context.Context, orderID string, fix position.Fix) {
	ev := locfeed.LocationEvent{
		DriverID:  s.driverID,
		OrderID:   orderID,
		Timestamp: s.now(),
		Location:  locfeed.Coordinates{Lat: fix.Lat, Lng: fix.Lng},
		Heading:   fix.Heading,
		Speed:     fix.Speed,
	}
	if !fix.At.IsZero() {
		ev.Timestamp = fix.At.UnixMilli()
	}
	if err := s.pub.PublishLocation(ctx, orderID, ev); err != nil {
		// The next fix or tick is the retry.
		log.WithField("order_id", orderID).WithField("err", err).Error("Failed to publish location")
	}
}

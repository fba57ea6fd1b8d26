package feed

import (
	"sync"

	"github.com/antermbg/livetrack/libs/locfeed"
)

// Latest is the in-memory last-write-wins table behind the read API.
// Apply keeps the newest event per order by sampling timestamp, so a late
// arriving older report cannot move a marker backwards.
type Latest struct {
	mu      sync.RWMutex
	byOrder map[string]locfeed.LocationEvent
}

func NewLatest() *Latest {
	return &Latest{byOrder: make(map[string]locfeed.LocationEvent)}
}

// Apply stores ev unless a newer event for the same order is already held.
// It reports whether the event was applied.
func (l *Latest) Apply(ev locfeed.LocationEvent) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.byOrder[ev.OrderID]; ok && cur.Timestamp > ev.Timestamp {
		return false
	}
	l.byOrder[ev.OrderID] = ev
	return true
}

// Get returns the last known position for an order.
func (l *Latest) Get(orderID string) (locfeed.LocationEvent, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ev, ok := l.byOrder[orderID]
	return ev, ok
}

// Snapshot returns the last known position of every tracked order.
func (l *Latest) Snapshot() []locfeed.LocationEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]locfeed.LocationEvent, 0, len(l.byOrder))
	for _, ev := range l.byOrder {
		out = append(out, ev)
	}
	return out
}

// Drop forgets an order once its delivery is finished.
func (l *Latest) Drop(orderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byOrder, orderID)
}

package deliveries

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPickFirstEnRouteDelivery(t *testing.T) {
	sel := NewSelector(ModeDelivery)

	list := []Delivery{
		{OrderID: "O1", Status: StatusReadyForDelivery},
		{OrderID: "O2", Status: StatusEnRouteToSchool},
	}
	orderID, ok := sel.Pick(list)
	assert.True(t, ok)
	assert.Equal(t, "O2", orderID)
}

func TestPickKeepsListOrderAsTieBreak(t *testing.T) {
	sel := NewSelector(ModeDelivery)

	list := []Delivery{
		{OrderID: "O3", Status: StatusEnRouteToSchool},
		{OrderID: "O4", Status: StatusEnRouteToSchool},
	}
	orderID, ok := sel.Pick(list)
	assert.True(t, ok)
	assert.Equal(t, "O3", orderID, "first match in upstream order wins")
}

func TestPickByMode(t *testing.T) {
	tests := []struct {
		name   string
		mode   Mode
		status string
		want   bool
	}{
		{"delivery mode matches en route to school", ModeDelivery, StatusEnRouteToSchool, true},
		{"delivery mode matches plates ready", ModeDelivery, StatusPlatesReady, true},
		{"delivery mode ignores en route to kitchen", ModeDelivery, StatusEnRouteToKitchen, false},
		{"delivery mode ignores ready for delivery", ModeDelivery, StatusReadyForDelivery, false},
		{"delivery mode ignores done", ModeDelivery, StatusDone, false},
		{"pickup mode matches en route to kitchen", ModePickup, StatusEnRouteToKitchen, true},
		{"pickup mode ignores en route to school", ModePickup, StatusEnRouteToSchool, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := NewSelector(tt.mode).Pick([]Delivery{{OrderID: "O1", Status: tt.status}})
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestPickNoneWhenNothingEnRoute(t *testing.T) {
	sel := NewSelector(ModeDelivery)

	orderID, ok := sel.Pick([]Delivery{
		{OrderID: "O1", Status: StatusPending},
		{OrderID: "O2", Status: StatusDone},
	})
	assert.False(t, ok)
	assert.Empty(t, orderID)

	_, ok = sel.Pick(nil)
	assert.False(t, ok)
}

func TestTrackerEmitsTransitionsOnlyOnChange(t *testing.T) {
	tr := NewTracker(NewSelector(ModeDelivery))

	listFor := func(active string) []Delivery {
		if active == "" {
			return []Delivery{{OrderID: "O9", Status: StatusPending}}
		}
		return []Delivery{{OrderID: active, Status: StatusEnRouteToSchool}}
	}

	// Idle -> Active(A)
	transition, changed := tr.Observe(listFor("A"))
	assert.True(t, changed)
	assert.Equal(t, Transition{Prev: "", Next: "A"}, transition)
	assert.Equal(t, "A", tr.Active())

	// Active(A) -> Active(A): no transition
	_, changed = tr.Observe(listFor("A"))
	assert.False(t, changed)

	// Active(A) -> Active(B)
	transition, changed = tr.Observe(listFor("B"))
	assert.True(t, changed)
	assert.Equal(t, Transition{Prev: "A", Next: "B"}, transition)

	// Active(B) -> Idle
	transition, changed = tr.Observe(listFor(""))
	assert.True(t, changed)
	assert.Equal(t, Transition{Prev: "B", Next: ""}, transition)
	assert.Empty(t, tr.Active())

	// Idle -> Active(B) again
	_, changed = tr.Observe(listFor("B"))
	assert.True(t, changed)
}

func TestInProgress(t *testing.T) {
	assert.True(t, InProgress(StatusReadyForDelivery))
	assert.True(t, InProgress(StatusEnRouteToSchool))
	assert.True(t, InProgress(StatusEnRouteToKitchen))
	assert.False(t, InProgress(StatusPending))
	assert.False(t, InProgress(StatusDone))
	assert.False(t, InProgress(StatusCancelled))
}

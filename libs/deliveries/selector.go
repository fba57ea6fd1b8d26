package deliveries

// Mode is what the driver is currently doing: bringing food to schools or
// collecting the empty containers back to the kitchen.
type Mode string

const (
	ModeDelivery Mode = "delivery"
	ModePickup   Mode = "pickup"
)

// enRoute lists, per mode, the statuses that make an order the live
// publishing target. The delivery map also treats "Piring Siap Diambil"
// as active so the school keeps seeing the driver between drop-off and
// container pickup.
var enRoute = map[Mode][]string{
	ModeDelivery: {StatusEnRouteToSchool, StatusPlatesReady},
	ModePickup:   {StatusEnRouteToKitchen},
}

// Selector decides which single order, if any, should receive location
// publishes right now.
type Selector struct {
	mode Mode
}

func NewSelector(mode Mode) Selector {
	if mode == "" {
		mode = ModeDelivery
	}
	return Selector{mode: mode}
}

// Pick scans the assignments in API order and returns the first one whose
// status is en route for the selector's mode. No re-sorting: the upstream
// ordering is the tie-break. ok is false when nothing qualifies.
func (s Selector) Pick(list []Delivery) (orderID string, ok bool) {
	statuses := enRoute[s.mode]
	for _, d := range list {
		for _, st := range statuses {
			if d.Status == st {
				return d.OrderID, true
			}
		}
	}
	return "", false
}

// Transition is one state change of the active-order machine. Empty ids
// mean "no active order".
type Transition struct {
	Prev string
	Next string
}

// Tracker runs the Idle/Active state machine over successive listings.
// It has no terminal state; it lives as long as the driver session.
type Tracker struct {
	sel     Selector
	current string
}

func NewTracker(sel Selector) *Tracker {
	return &Tracker{sel: sel}
}

// Active returns the current active order id, empty when idle.
func (t *Tracker) Active() string {
	return t.current
}

// Observe feeds one listing through the selector. changed is true only
// when the active order differs from the previous observation, which is
// exactly when the publish schedule must stop, start or restart.
func (t *Tracker) Observe(list []Delivery) (tr Transition, changed bool) {
	next, _ := t.sel.Pick(list)
	if next == t.current {
		return Transition{}, false
	}
	tr = Transition{Prev: t.current, Next: next}
	t.current = next
	return tr, true
}

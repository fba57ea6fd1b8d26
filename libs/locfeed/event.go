package locfeed

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptyOrderID  = errors.New("order id is empty")
	ErrEmptyDriverID = errors.New("driver id is empty")
	ErrBadTimestamp  = errors.New("timestamp must be positive")
)

// Coordinates is a WGS84 point in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LocationEvent is one driver position report tied to a delivery order.
// Heading and Speed are optional on the wire; absent fields stay absent
// after a round trip.
type LocationEvent struct {
	DriverID  string      `json:"driverId"`
	OrderID   string      `json:"orderId"`
	Timestamp int64       `json:"timestamp"` // epoch milliseconds
	Location  Coordinates `json:"location"`
	Heading   *float64    `json:"heading,omitempty"`
	Speed     *float64    `json:"speed,omitempty"`
}

// Validate checks the fields every event must carry. A report without an
// order id is meaningless and must never reach the broker.
func (e *LocationEvent) Validate() error {
	if e.OrderID == "" {
		return ErrEmptyOrderID
	}
	if e.DriverID == "" {
		return ErrEmptyDriverID
	}
	if e.Timestamp <= 0 {
		return ErrBadTimestamp
	}
	return nil
}

// ToBytes serializes the event into its UTF-8 JSON wire form.
func (e *LocationEvent) ToBytes() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// DecodeLocationEvent parses and validates an inbound wire payload.
func DecodeLocationEvent(data []byte) (LocationEvent, error) {
	var e LocationEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("malformed location payload: %v", err)
	}
	if err := e.Validate(); err != nil {
		return e, fmt.Errorf("invalid location payload: %v", err)
	}
	return e, nil
}

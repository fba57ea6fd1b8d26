package deliveries

// Delivery statuses as the dashboard API reports them. The strings are the
// wire values; they are Indonesian and must not be translated.
const (
	StatusPending          = "Pending"
	StatusReadyForDelivery = "Siap Diantar"
	StatusEnRouteToSchool  = "Menuju Sekolah"
	StatusFoodReceived     = "Makanan Diterima"
	StatusPlatesReady      = "Piring Siap Diambil"
	StatusEnRouteToKitchen = "Menuju Dapur"
	StatusDone             = "Selesai"
	StatusCancelled        = "Cancelled"
)

// School is the delivery destination, with coordinates for the map views.
type School struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Delivery is one assigned order as returned by the listing API. Only
// OrderID and Status drive the tracking logic; the rest is carried for
// the callers that render it.
type Delivery struct {
	OrderID       string  `json:"order_id"`
	Status        string  `json:"status"`
	School        School  `json:"school"`
	Portion       int     `json:"portion"`
	DeliverBefore string  `json:"deliver_before"`
	DepartTime    string  `json:"departe_time"`
	ETALabel      string  `json:"eta_label"`
	ETAMinutes    int     `json:"eta_minutes"`
	RouteID       string  `json:"route_id"`
	Seq           int     `json:"seq"`
	Driver        *Driver `json:"driver,omitempty"`
}

// Driver identifies the assigned driver on admin-side listings.
type Driver struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InProgress reports whether a delivery is somewhere between leaving the
// kitchen and returning to it, i.e. worth tracking on a map.
func InProgress(status string) bool {
	switch status {
	case StatusReadyForDelivery, StatusEnRouteToSchool, StatusFoodReceived,
		StatusPlatesReady, StatusEnRouteToKitchen:
		return true
	}
	return false
}

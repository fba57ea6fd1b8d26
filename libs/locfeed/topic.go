package locfeed

// TopicPrefix is the fixed namespace shared with every publisher and
// subscriber on the broker. Changing it breaks interoperability with
// clients already deployed.
const TopicPrefix = "antermbg/delivery"

// Topic returns the order-scoped channel name: antermbg/delivery/<orderId>/location.
// The name contains no "." so NATS treats it as a single subject token,
// preserving the wire contract byte for byte.
func Topic(orderID string) string {
	return TopicPrefix + "/" + orderID + "/location"
}

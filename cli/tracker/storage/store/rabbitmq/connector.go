package rabbitmq

/*
Re-publishes received location events to a RabbitMQ topic exchange for
downstream consumers (analytics, notifications). The routing key is the
order id.

Config section keys:

host = "localhost"
port = "5672"
user = "guest"
password = "guest"
exchange = "antermbg.locations"
*/

import (
	"fmt"

	"github.com/antermbg/livetrack/libs/locfeed"
	"github.com/streadway/amqp"
)

type Connector struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	exchange   string
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("invalid storage configuration")
	}

	c.exchange = cfg["exchange"]
	if c.exchange == "" {
		c.exchange = "antermbg.locations"
	}

	uri := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg["user"], cfg["password"], cfg["host"], cfg["port"])
	var err error
	if c.connection, err = amqp.Dial(uri); err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}
	if c.channel, err = c.connection.Channel(); err != nil {
		return fmt.Errorf("failed to open RabbitMQ channel: %v", err)
	}
	if err = c.channel.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %v", c.exchange, err)
	}
	return nil
}

func (c *Connector) Save(ev *locfeed.LocationEvent) error {
	if ev == nil {
		return fmt.Errorf("invalid event reference")
	}

	data, err := ev.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %v", err)
	}

	err = c.channel.Publish(c.exchange, ev.OrderID, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to exchange %s: %v", c.exchange, err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	return c.connection.Close()
}

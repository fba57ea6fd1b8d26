package postgresql

/*
Location history sink backed by PostgreSQL.

Config section keys:

host = "localhost"
port = "5432"
user = "postgres"
password = "postgres"
database = "livetrack"
table = "location_history"
sslmode = "disable"
*/

import (
	"database/sql"
	"fmt"

	"github.com/antermbg/livetrack/libs/locfeed"
	_ "github.com/lib/pq"
)

type Connector struct {
	connection *sql.DB
	config     map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	var err error
	if cfg == nil {
		return fmt.Errorf("invalid storage configuration")
	}
	c.config = cfg
	connStr := fmt.Sprintf("dbname=%s host=%s port=%s user=%s password=%s sslmode=%s",
		c.config["database"], c.config["host"], c.config["port"], c.config["user"], c.config["password"], c.config["sslmode"])
	if c.connection, err = sql.Open("postgres", connStr); err != nil {
		return fmt.Errorf("failed to open PostgreSQL connection: %v", err)
	}

	if err = c.connection.Ping(); err != nil {
		return fmt.Errorf("PostgreSQL is unreachable: %v", err)
	}
	return err
}

func (c *Connector) Save(ev *locfeed.LocationEvent) error {
	if ev == nil {
		return fmt.Errorf("invalid event reference")
	}

	table := c.config["table"]
	if table == "" {
		table = "location_history"
	}

	insertQuery := fmt.Sprintf(
		"INSERT INTO %s (driver_id, order_id, recorded_at_ms, lat, lng, heading, speed) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		table)
	if _, err := c.connection.Exec(insertQuery,
		ev.DriverID, ev.OrderID, ev.Timestamp, ev.Location.Lat, ev.Location.Lng, ev.Heading, ev.Speed); err != nil {
		return fmt.Errorf("failed to insert location row: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	return c.connection.Close()
}

package mysql

/*
Location history sink backed by MySQL, for kitchens that already run one.

Config section keys:

host = "localhost"
port = "3306"
user = "root"
password = "root"
database = "livetrack"
table = "location_history"
*/

import (
	"database/sql"
	"fmt"

	"github.com/antermbg/livetrack/libs/locfeed"
	_ "github.com/go-sql-driver/mysql"
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
	connStr := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s",
		c.config["user"], c.config["password"], c.config["host"], c.config["port"], c.config["database"])
	if c.connection, err = sql.Open("mysql", connStr); err != nil {
		return fmt.Errorf("failed to open MySQL connection: %v", err)
	}

	if err = c.connection.Ping(); err != nil {
		return fmt.Errorf("MySQL is unreachable: %v", err)
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
		"INSERT INTO %s (driver_id, order_id, recorded_at_ms, lat, lng, heading, speed) VALUES (?, ?, ?, ?, ?, ?, ?)",
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

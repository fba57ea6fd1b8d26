package redis

/*
Latest-location cache. Keeps one JSON value per order under
<key_prefix><order_id> with a TTL, so dashboards can read the last known
driver position without touching history tables.

Config section keys:

host = "localhost"
port = "6379"
password = ""
db = "0"
key_prefix = "latest:"
ttl_sec = "300"
*/

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/antermbg/livetrack/libs/locfeed"
	goredis "github.com/go-redis/redis/v8"
)

type Connector struct {
	client    *goredis.Client
	keyPrefix string
	ttl       time.Duration
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("invalid storage configuration")
	}

	db := 0
	if cfg["db"] != "" {
		parsed, err := strconv.Atoi(cfg["db"])
		if err != nil {
			return fmt.Errorf("failed to parse redis db: %v", err)
		}
		db = parsed
	}
	c.keyPrefix = cfg["key_prefix"]
	if c.keyPrefix == "" {
		c.keyPrefix = "latest:"
	}
	if cfg["ttl_sec"] != "" {
		ttlSec, err := strconv.Atoi(cfg["ttl_sec"])
		if err != nil {
			return fmt.Errorf("failed to parse ttl_sec: %v", err)
		}
		c.ttl = time.Duration(ttlSec) * time.Second
	}

	c.client = goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg["host"], cfg["port"]),
		Password: cfg["password"],
		DB:       db,
	})

	if err := c.client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("Redis is unreachable: %v", err)
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

	key := c.keyPrefix + ev.OrderID
	if err := c.client.Set(context.Background(), key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %v", key, err)
	}
	return nil
}

func (c *Connector) Close() error {
	return c.client.Close()
}

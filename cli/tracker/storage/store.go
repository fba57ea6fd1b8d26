package storage

import (
	"errors"

	"github.com/antermbg/livetrack/cli/tracker/storage/store/mysql"
	"github.com/antermbg/livetrack/cli/tracker/storage/store/postgresql"
	"github.com/antermbg/livetrack/cli/tracker/storage/store/rabbitmq"
	"github.com/antermbg/livetrack/cli/tracker/storage/store/redis"
	"github.com/antermbg/livetrack/cli/tracker/storage/store/tarantool_queue"
	"github.com/antermbg/livetrack/libs/locfeed"
)

var ErrInvalidStorage = errors.New("storage not found")
var ErrUnknownStorage = errors.New("storage isn't supported yet")

type Store interface {
	Connector
	Saver
}

// Saver persists or forwards one received location event.
type Saver interface {
	Save(ev *locfeed.LocationEvent) error
}

// Connector is the lifecycle half of an output store.
type Connector interface {
	// Init opens the connection using the raw key/value section from the
	// config file.
	Init(map[string]string) error

	// Close releases the connection.
	Close() error
}

// Repository fans every received event out to all configured stores.
type Repository struct {
	storages []Saver
}

// AddStore attaches one more output store.
func (r *Repository) AddStore(s Saver) {
	r.storages = append(r.storages, s)
}

// Save writes the event to every store, stopping at the first failure so
// the caller can log it with the sink still identifiable.
func (r *Repository) Save(ev *locfeed.LocationEvent) error {
	for _, store := range r.storages {
		if err := store.Save(ev); err != nil {
			return err
		}
	}
	return nil
}

// LoadStorages instantiates the stores named in the config's storage map.
func (r *Repository) LoadStorages(storages map[string]map[string]string) error {
	if len(storages) == 0 {
		return ErrInvalidStorage
	}

	var db Store
	for store, params := range storages {
		switch store {
		case "rabbitmq":
			db = &rabbitmq.Connector{}
		case "postgresql":
			db = &postgresql.Connector{}
		case "tarantool_queue":
			db = &tarantool_queue.Connector{}
		case "redis":
			db = &redis.Connector{}
		case "mysql":
			db = &mysql.Connector{}
		default:
			return ErrUnknownStorage
		}

		if err := db.Init(params); err != nil {
			return err
		}

		r.AddStore(db)
	}
	return nil
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{}
}

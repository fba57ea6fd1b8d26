// Package position abstracts the device geolocation capability: one-shot
// fixes and a continuous watch, the way the platform location APIs expose
// them. The concrete implementation reads a gpsd socket; anything that can
// produce fixes satisfies Source.
package position

import (
	"context"
	"time"
)

// Fix is one sampled device position.
type Fix struct {
	Lat     float64
	Lng     float64
	Heading *float64 // degrees from north, when the device reports it
	Speed   *float64 // meters per second, when the device reports it
	At      time.Time
}

// Options mirror the platform geolocation knobs.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration // max wait for a single fix
	MaxAge       time.Duration // accept a cached fix no older than this
}

// Source yields device positions. Watch delivers fixes until ctx is done;
// per-fix device errors are logged by the implementation and simply
// produce no fix, so a later successful sample resumes the stream.
type Source interface {
	Current(ctx context.Context, opts Options) (Fix, error)
	Watch(ctx context.Context, opts Options) (<-chan Fix, error)
}

package position

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// GpsdSource samples positions from a gpsd daemon on the device.
type GpsdSource struct {
	addr string
}

func NewGpsdSource(addr string) *GpsdSource {
	return &GpsdSource{addr: addr}
}

// tpv is the subset of a gpsd TPV report the agent cares about.
type tpv struct {
	Class string   `json:"class"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Track *float64 `json:"track"`
	Speed *float64 `json:"speed"`
	Time  string   `json:"time"`
}

const gpsdWatch = `?WATCH={"enable":true,"json":true}` + "\n"

func (g *GpsdSource) dial(ctx context.Context) (net.Conn, *bufio.Scanner, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", g.addr)
	if err != nil {
		return nil, nil, fmt.Errorf("gpsd dial %s: %v", g.addr, err)
	}
	if _, err := conn.Write([]byte(gpsdWatch)); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("gpsd watch command: %v", err)
	}
	return conn, bufio.NewScanner(conn), nil
}

// Current blocks until the first complete fix arrives or the timeout hits.
func (g *GpsdSource) Current(ctx context.Context, opts Options) (Fix, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	conn, sc, err := g.dial(ctx)
	if err != nil {
		return Fix{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	for sc.Scan() {
		if fix, ok := parseTPV(sc.Bytes()); ok {
			return fix, nil
		}
	}
	if err := sc.Err(); err != nil {
		return Fix{}, fmt.Errorf("gpsd read: %v", err)
	}
	return Fix{}, fmt.Errorf("gpsd closed the stream before a fix arrived")
}

// Watch streams fixes until ctx is cancelled. A dropped gpsd connection is
// redialed with a short pause; unparsable reports are skipped.
func (g *GpsdSource) Watch(ctx context.Context, opts Options) (<-chan Fix, error) {
	out := make(chan Fix)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			conn, sc, err := g.dial(ctx)
			if err != nil {
				log.WithField("err", err).Error("Position source unavailable")
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			// The watcher lives only as long as this connection, so a
			// flaky link does not pile up parked goroutines over a shift.
			connDone := make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					conn.Close()
				case <-connDone:
				}
			}()
			for sc.Scan() {
				fix, ok := parseTPV(sc.Bytes())
				if !ok {
					continue
				}
				select {
				case out <- fix:
				case <-ctx.Done():
					conn.Close()
					return
				}
			}
			close(connDone)
			conn.Close()
			if err := sc.Err(); err != nil && ctx.Err() == nil {
				log.WithField("err", err).Warn("Position stream interrupted, redialing")
			}
		}
	}()
	return out, nil
}

func parseTPV(line []byte) (Fix, bool) {
	var report tpv
	if err := json.Unmarshal(line, &report); err != nil {
		log.WithField("err", err).Debug("Skipping unparsable gpsd report")
		return Fix{}, false
	}
	if report.Class != "TPV" || report.Lat == nil || report.Lon == nil {
		return Fix{}, false
	}
	fix := Fix{
		Lat:     *report.Lat,
		Lng:     *report.Lon,
		Heading: report.Track,
		Speed:   report.Speed,
		At:      time.Now(),
	}
	if report.Time != "" {
		if t, err := time.Parse(time.RFC3339, report.Time); err == nil {
			fix.At = t
		}
	}
	return fix, true
}

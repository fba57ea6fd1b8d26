package storage

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/antermbg/livetrack/libs/locfeed"
	log "github.com/sirupsen/logrus"
)

// AsyncRepository decouples the subscriber callback from the sinks: a slow
// database or queue must not delay delivery of the next location event.
type AsyncRepository struct {
	repo *Repository
	ch   chan *locfeed.LocationEvent
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewAsyncRepository(repo *Repository, buffer, workers int) *AsyncRepository {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ar := &AsyncRepository{
		repo: repo,
		ch:   make(chan *locfeed.LocationEvent, buffer),
	}
	for i := 0; i < workers; i++ {
		ar.wg.Add(1)
		go ar.worker()
	}
	return ar
}

func (a *AsyncRepository) worker() {
	defer a.wg.Done()
	for ev := range a.ch {
		if err := a.repo.Save(ev); err != nil {
			log.WithField("err", err).Error("Failed to store location event")
		}
	}
}

// Save buffers the event for the workers. The closed flag is checked under
// the same lock Close takes exclusively, so a Save that got past it holds
// the read lock across the send and can never hit a closed channel.
func (a *AsyncRepository) Save(ev *locfeed.LocationEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return fmt.Errorf("async repository is closed")
	}
	a.ch <- ev
	return nil
}

// Close rejects further saves, lets the workers drain the buffer and waits
// for them to finish.
func (a *AsyncRepository) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	close(a.ch)
	a.wg.Wait()
}

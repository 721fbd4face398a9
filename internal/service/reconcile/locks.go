package reconcile

import (
	"context"
	"sync"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
)

// venueLocks serializes work per venue. Venues are independent, so there
// is no global lock; entries are dropped once nobody holds or waits on them.
type venueLocks struct {
	mu    sync.Mutex
	locks map[core.VenueID]*venueLock
}

type venueLock struct {
	sem  chan struct{}
	refs int
}

func newVenueLocks() *venueLocks {
	return &venueLocks{locks: make(map[core.VenueID]*venueLock)}
}

// lock blocks until the venue is free or ctx is done. The returned func
// releases the lock and must be called exactly once.
func (l *venueLocks) lock(ctx context.Context, id core.VenueID) (func(), error) {
	l.mu.Lock()
	vl, ok := l.locks[id]
	if !ok {
		vl = &venueLock{sem: make(chan struct{}, 1)}
		l.locks[id] = vl
	}
	vl.refs++
	l.mu.Unlock()

	select {
	case vl.sem <- struct{}{}:
		return func() {
			<-vl.sem
			l.release(id, vl)
		}, nil
	case <-ctx.Done():
		l.release(id, vl)
		return nil, ctx.Err()
	}
}

func (l *venueLocks) release(id core.VenueID, vl *venueLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	vl.refs--
	if vl.refs == 0 {
		delete(l.locks, id)
	}
}

// size returns the number of tracked venues.
func (l *venueLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// =======================
// qhash/rotation.go
// =======================

package qhash

import (
	"sync"
	"sync/atomic"
	"time"
)

// RotationScheduler owns the current EngineState and replaces it as one
// unit, either every interval or every everyN generations. Readers load
// the pointer once per computation and therefore see a whole epoch.
type RotationScheduler struct {
	cur      atomic.Pointer[EngineState]
	mu       sync.Mutex // serializes rotations
	lo, hi   int
	poolSize int
	interval time.Duration
	everyN   uint64
	seen     atomic.Uint64
	warn     *warner
}

func newRotationScheduler(cfg *Config, w *warner) (*RotationScheduler, error) {
	r := &RotationScheduler{
		lo:       cfg.LayerBounds[0],
		hi:       cfg.LayerBounds[1],
		poolSize: cfg.PoolSize,
		interval: cfg.rotationInterval(),
		everyN:   uint64(cfg.RotationEveryN),
		warn:     w,
	}
	st, err := newEngineState(r.poolSize, r.lo, 0)
	if err != nil {
		return nil, err
	}
	r.cur.Store(st)
	return r, nil
}

// Current returns the active state. The result must be treated as
// read-only.
func (r *RotationScheduler) Current() *EngineState {
	return r.cur.Load()
}

// Rotate draws a new state, advances the layer count and publishes it.
// It returns the new rotation counter.
func (r *RotationScheduler) Rotate() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.cur.Load()
	layers := nextLayerCount(prev.LayerCount, r.lo, r.hi)
	next, err := newEngineState(r.poolSize, layers, prev.Rotation+1)
	if err != nil {
		// Never fail a rotation; derive from the previous epoch instead
		r.warn.warnf("rotation %d: %v; deriving state from previous epoch", prev.Rotation+1, err)
		next = deriveEngineState(prev, layers, prev.Rotation+1)
	}
	r.cur.Store(next)
	return next.Rotation
}

// Observe counts one generation and rotates inline when the count-based
// trigger fires.
func (r *RotationScheduler) Observe() {
	if r.everyN == 0 {
		return
	}
	if r.seen.Add(1)%r.everyN == 0 {
		r.Rotate()
	}
}

// run rotates every interval until stop is closed.
func (r *RotationScheduler) run(stop <-chan struct{}) {
	if r.interval <= 0 {
		<-stop
		return
	}
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			n := r.Rotate()
			r.warn.infof("rotation %d (time-based)", n)
		}
	}
}

// =======================
// qhash/workers.go
// =======================

package qhash

import (
	"runtime"
	"strconv"
	"time"
)

// worker generates until the run is cancelled. The flag is checked once
// per iteration, so cancellation waits for the current digest at most.
func (e *Engine) worker(run *runState, id int) {
	defer run.wg.Done()
	defer run.alive.Add(-1)

	pause := e.cfg.workerPause()
	buf := make([]byte, 0, 64)
	for n := uint64(0); !run.cancel.Load(); n++ {
		buf = e.iterate(run, id, n, buf)
		if pause > 0 {
			time.Sleep(pause)
		} else {
			runtime.Gosched()
		}
	}
}

// iterate produces one digest. A panic is logged and swallowed so the
// worker continues with the next iteration.
func (e *Engine) iterate(run *runState, id int, n uint64, buf []byte) []byte {
	defer func() {
		if r := recover(); r != nil {
			e.warn.warnf("worker %d iteration %d: recovered from panic: %v", id, n, r)
		}
	}()

	if e.iterHook != nil {
		e.iterHook(id)
	}

	// Unique input: worker id, local counter, timestamp
	buf = append(buf[:0], 'w')
	buf = strconv.AppendInt(buf, int64(id), 10)
	buf = append(buf, '-')
	buf = strconv.AppendUint(buf, n, 10)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, time.Now().UnixNano(), 10)

	d := e.memo.get(string(buf), id)
	if e.cfg.DisplayEnabled {
		e.recent.Append(d)
	}
	e.stats.generate()
	run.counts[id].Add(1)
	e.rotator.Observe()
	return buf
}

// sampleRates refreshes the rate and peak once per second.
func (e *Engine) sampleRates(stop <-chan struct{}) {
	t := time.NewTicker(rateSampleEvery)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-t.C:
			e.stats.sample(now)
		}
	}
}

// =======================
// qhash/engine.go
// =======================

package qhash

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Worker ids used for entropy sampling by non-pool callers.
const (
	onDemandWorker  = -1
	trapWorker      = -2
	challengeWorker = -3
	seedWorker      = -4
)

// Engine is one digest generation and caching instance. All state is
// in-memory and owned by the Engine; share it by pointer.
//
// Generate is memoized but not deterministic: each computation mixes fresh
// entropy and fresh layer keys, so identical inputs only return identical
// digests when the second call is served from the precomputed table or
// the dynamic cache.
type Engine struct {
	cfg      Config
	warn     *warner
	entropy  *EntropyGenerator
	keys     *keySource
	pipeline *Pipeline
	families map[string][]*algorithm
	rotator  *RotationScheduler
	table    *PrecomputedTable
	dyn      *DynamicCache
	memo     *MemoCache
	stats    *StatsRecorder
	recent   *RecentPatternBuffer
	seq      atomic.Uint64

	ctl       sync.Mutex // serializes Start and Stop
	lifecycle atomic.Int32
	run       *runState

	// iterHook, when set, runs at the top of every worker iteration.
	iterHook func(worker int)
}

// runState belongs to one Start..Stop cycle. Workers abandoned by a timed
// out Stop keep their own runState and never touch the next one.
type runState struct {
	wg     sync.WaitGroup
	stop   chan struct{}
	cancel atomic.Bool
	alive  atomic.Int32
	counts []atomic.Uint64
}

// New builds an engine: resolves digest algorithms, allocates the initial
// EngineState and precomputes the seed table. Failing to allocate the
// initial state is fatal.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger()
	}
	w := newWarner(cfg.Logger)

	algos, err := resolveAlgorithms(cfg.Algorithms, registryAvailable, w)
	if err != nil {
		return nil, fmt.Errorf("algorithm setup failed: %w", err)
	}

	rotator, err := newRotationScheduler(&cfg, w)
	if err != nil {
		return nil, fmt.Errorf("engine state allocation failed: %w", err)
	}

	keys := newKeySource()
	ks, err := keys.get()
	if err != nil {
		return nil, fmt.Errorf("entropy allocation failed: %w", err)
	}
	keys.put(ks)

	e := &Engine{
		cfg:      cfg,
		warn:     w,
		entropy:  NewEntropyGenerator(),
		keys:     keys,
		pipeline: newPipeline(algos, keys, cfg.OutputLength),
		families: map[string][]*algorithm{
			"sha3":    {newAlgorithm("sha3-256"), newAlgorithm("sha3-512"), newAlgorithm("keccak-256")},
			"blake2b": {newAlgorithm("blake2b-256"), newAlgorithm("blake2b-512")},
		},
		rotator: rotator,
		dyn:     newDynamicCache(cfg.CacheCapacity),
		stats:   newStatsRecorder(),
		recent:  NewRecentPatternBuffer(cfg.RecentBufferCapacity),
	}
	e.table = newPrecomputedTable(cfg.PrecomputedSeeds, func(s string) string {
		return e.compute(s, seedWorker)
	})
	e.memo = newMemoCache(e.table, e.dyn, e.stats, e.compute)
	return e, nil
}

// compute runs the pipeline once for input. It never fails: a pipeline
// error degrades to a plain SHA-256 based digest.
func (e *Engine) compute(input string, worker int) string {
	st := e.rotator.Current()
	sample := e.entropy.Sample(worker)
	win := st.poolWindow(e.seq.Add(1))
	for i := range sample {
		sample[i] ^= win[i]
	}

	d, err := e.pipeline.Compute([]byte(input), sample[:], st)
	if err != nil {
		e.warn.warnOnce("pipeline", "pipeline degraded: %v; using fallback digest", err)
		return fallbackDigest([]byte(input), sample[:], e.cfg.OutputLength)
	}
	return d
}

// produced accounts for one emitted digest.
func (e *Engine) produced() {
	e.stats.generate()
	e.rotator.Observe()
}

// Generate returns the digest for input, from cache when possible.
func (e *Engine) Generate(input string) string {
	d := e.memo.get(input, onDemandWorker)
	e.produced()
	return d
}

// GetStatistics returns a consistent snapshot of the counters.
func (e *Engine) GetStatistics() Statistics {
	s := e.stats.snapshot(time.Now())
	s.Rotations = e.rotator.Current().Rotation
	s.CacheSize = e.dyn.Len()
	s.CacheCapacity = e.dyn.Capacity()
	s.State = e.Lifecycle().String()
	if e.Lifecycle() == Running {
		s.Workers = e.cfg.WorkerCount
	}
	return s
}

// Rotate forces an immediate rotation and returns the new counter.
func (e *Engine) Rotate() uint64 {
	return e.rotator.Rotate()
}

// State returns a copy of the current EngineState's observable fields.
func (e *Engine) State() StateInfo {
	return e.rotator.Current().info()
}

func (e *Engine) Lifecycle() LifecycleState {
	return LifecycleState(e.lifecycle.Load())
}

// RecentPatterns returns up to limit of the latest worker outputs.
func (e *Engine) RecentPatterns(limit int) []string {
	return e.recent.Snapshot(limit)
}

// CacheLen is the number of entries in the dynamic cache.
func (e *Engine) CacheLen() int { return e.dyn.Len() }

// PrecomputedLen is the number of entries in the precomputed table.
func (e *Engine) PrecomputedLen() int { return e.table.Len() }

// Algorithms lists the digest algorithms actually in use.
func (e *Engine) Algorithms() []string { return e.pipeline.Algorithms() }

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// WorkerCounts returns per-worker iteration counts of the current or last
// run.
func (e *Engine) WorkerCounts() []uint64 {
	e.ctl.Lock()
	run := e.run
	e.ctl.Unlock()
	if run == nil {
		return nil
	}
	out := make([]uint64, len(run.counts))
	for i := range run.counts {
		out[i] = run.counts[i].Load()
	}
	return out
}

// Start launches the worker pool, the rotation loop and the rate sampler.
// Calling Start on a running engine is a no-op.
func (e *Engine) Start() {
	e.ctl.Lock()
	defer e.ctl.Unlock()

	if !e.lifecycle.CompareAndSwap(int32(Stopped), int32(Starting)) {
		return
	}

	run := &runState{
		stop:   make(chan struct{}),
		counts: make([]atomic.Uint64, e.cfg.WorkerCount),
	}
	e.run = run
	e.recent.Reset()
	e.stats.resetRate(time.Now())

	run.wg.Add(e.cfg.WorkerCount + 2)
	run.alive.Store(int32(e.cfg.WorkerCount + 2))
	for i := 0; i < e.cfg.WorkerCount; i++ {
		go e.worker(run, i)
	}
	go func() {
		defer run.wg.Done()
		defer run.alive.Add(-1)
		e.rotator.run(run.stop)
	}()
	go func() {
		defer run.wg.Done()
		defer run.alive.Add(-1)
		e.sampleRates(run.stop)
	}()

	e.lifecycle.Store(int32(Running))
	e.warn.infof("started %d workers (algorithms %v)", e.cfg.WorkerCount, e.Algorithms())
}

// Stop signals every goroutine of the current run and waits up to the
// configured timeout. Goroutines still alive after the timeout are
// abandoned with a warning. Calling Stop on a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.ctl.Lock()
	defer e.ctl.Unlock()

	if !e.lifecycle.CompareAndSwap(int32(Running), int32(Stopping)) {
		return
	}

	run := e.run
	run.cancel.Store(true)
	close(run.stop)

	done := make(chan struct{})
	go func() {
		run.wg.Wait()
		close(done)
	}()

	timeout := e.cfg.stopTimeout()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		e.warn.warnf("%d goroutines still running after %s; abandoning", run.alive.Load(), timeout)
	}

	e.stats.freeze(time.Now())

	e.lifecycle.Store(int32(Stopped))
}

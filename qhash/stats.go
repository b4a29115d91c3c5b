package qhash

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// StatsRecorder holds the engine's counters. Counters are atomic and never
// lose increments; rate fields are refreshed by sample.
type StatsRecorder struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	generated atomic.Uint64
	rate      atomic.Uint64 // float64 bits
	peak      atomic.Uint64 // float64 bits

	mu       sync.Mutex
	lastAt   time.Time
	lastSeen uint64
}

func newStatsRecorder() *StatsRecorder {
	return &StatsRecorder{lastAt: time.Now()}
}

func (s *StatsRecorder) hit()      { s.hits.Add(1) }
func (s *StatsRecorder) miss()     { s.misses.Add(1) }
func (s *StatsRecorder) generate() { s.generated.Add(1) }

func (s *StatsRecorder) Generated() uint64 { return s.generated.Load() }

// resetRate restarts the rate window, keeping counters and peak.
func (s *StatsRecorder) resetRate(now time.Time) {
	s.mu.Lock()
	s.lastAt = now
	s.lastSeen = s.generated.Load()
	s.mu.Unlock()
	s.rate.Store(0)
}

// sample closes the current window: it derives the generation rate since
// the previous sample and keeps the peak.
func (s *StatsRecorder) sample(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollLocked(now)
}

func (s *StatsRecorder) rollLocked(now time.Time) float64 {
	elapsed := now.Sub(s.lastAt).Seconds()
	if elapsed <= 0 {
		return math.Float64frombits(s.rate.Load())
	}
	total := s.generated.Load()
	rate := float64(total-s.lastSeen) / elapsed
	s.lastAt, s.lastSeen = now, total

	s.rate.Store(math.Float64bits(rate))
	s.raisePeak(rate)
	return rate
}

func (s *StatsRecorder) raisePeak(rate float64) {
	for {
		old := s.peak.Load()
		if rate <= math.Float64frombits(old) || s.peak.CompareAndSwap(old, math.Float64bits(rate)) {
			return
		}
	}
}

// currentRate is the rate of the last completed window, or of the running
// window when the last one saw nothing. A window older than
// rateSampleEvery is closed first, so callers that never start the worker
// pool still observe their own throughput.
func (s *StatsRecorder) currentRate(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := now.Sub(s.lastAt)
	if elapsed >= rateSampleEvery {
		return s.rollLocked(now)
	}
	if r := math.Float64frombits(s.rate.Load()); r > 0 {
		return r
	}
	if elapsed < minRateWindow {
		elapsed = minRateWindow
	}
	rate := float64(s.generated.Load()-s.lastSeen) / elapsed.Seconds()
	s.raisePeak(rate)
	return rate
}

// freeze folds the running window into the peak and zeroes the rate.
func (s *StatsRecorder) freeze(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastAt) >= minRateWindow {
		s.rollLocked(now)
	}
	s.lastAt, s.lastSeen = now, s.generated.Load()
	s.rate.Store(0)
}

// snapshot fills the counter fields of a Statistics value. Hits and misses
// are read once so HitRate always agrees with them.
func (s *StatsRecorder) snapshot(now time.Time) Statistics {
	hits, misses := s.hits.Load(), s.misses.Load()
	rate := s.currentRate(now)
	return Statistics{
		Hits:           hits,
		Misses:         misses,
		HitRate:        hitRate(hits, misses),
		TotalGenerated: s.generated.Load(),
		RatePerSecond:  rate,
		PeakRate:       math.Float64frombits(s.peak.Load()),
	}
}

func hitRate(hits, misses uint64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

package qhash

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WorkerCount = 0
	cfg.Logger = log.New(io.Discard, "", 0)
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Stop)
	return e
}

// syncBuffer is a bytes.Buffer safe for a logger and a reading test.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestGenerateMissThenHit(t *testing.T) {
	cfg := testConfig()
	cfg.CacheCapacity = 10
	e := newTestEngine(t, cfg)

	d1 := e.Generate("abc")
	s := e.GetStatistics()
	if s.Misses != 1 || s.Hits != 0 {
		t.Fatalf("after first call: hits=%d misses=%d, want 0/1", s.Hits, s.Misses)
	}

	d2 := e.Generate("abc")
	s = e.GetStatistics()
	if s.Misses != 1 || s.Hits != 1 {
		t.Fatalf("after second call: hits=%d misses=%d, want 1/1", s.Hits, s.Misses)
	}
	if d1 != d2 {
		t.Fatalf("cached digest differs: %q vs %q", d1, d2)
	}
	if len(d1) != cfg.OutputLength {
		t.Fatalf("digest length %d, want %d", len(d1), cfg.OutputLength)
	}
}

func TestGenerateUncachedIsNondeterministic(t *testing.T) {
	cfg := testConfig()
	cfg.CacheCapacity = 0
	e := newTestEngine(t, cfg)

	if e.Generate("same") == e.Generate("same") {
		t.Fatalf("two uncached computations returned the same digest")
	}
	if s := e.GetStatistics(); s.Misses != 2 || s.CacheSize != 0 {
		t.Fatalf("misses=%d cache=%d, want 2/0", s.Misses, s.CacheSize)
	}
}

func TestPrecomputedNeverMisses(t *testing.T) {
	e := newTestEngine(t, testConfig())
	if e.PrecomputedLen() != len(DefaultSeeds) {
		t.Fatalf("precomputed %d entries, want %d", e.PrecomputedLen(), len(DefaultSeeds))
	}

	first := make(map[string]string)
	for round := 0; round < 3; round++ {
		for _, s := range DefaultSeeds {
			d := e.Generate(s)
			if prev, ok := first[s]; ok && prev != d {
				t.Fatalf("precomputed digest for %q changed", s)
			}
			first[s] = d
		}
	}
	s := e.GetStatistics()
	if s.Misses != 0 {
		t.Fatalf("precomputed inputs caused %d misses", s.Misses)
	}
	if s.Hits != uint64(3*len(DefaultSeeds)) {
		t.Fatalf("hits=%d, want %d", s.Hits, 3*len(DefaultSeeds))
	}
	if e.CacheLen() != 0 {
		t.Fatalf("precomputed hits leaked into the dynamic cache: %d", e.CacheLen())
	}
}

func TestHitRateUnderConcurrency(t *testing.T) {
	e := newTestEngine(t, testConfig())

	const goroutines, calls = 16, 200
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < calls; i++ {
				e.Generate(fmt.Sprintf("in-%d", (g*7+i)%50))
				if i%25 == 0 {
					s := e.GetStatistics()
					if s.HitRate != hitRate(s.Hits, s.Misses) {
						t.Errorf("inconsistent hit rate %v for %d/%d", s.HitRate, s.Hits, s.Misses)
					}
				}
			}
		}(g)
	}
	wg.Wait()

	s := e.GetStatistics()
	if s.Hits+s.Misses != goroutines*calls {
		t.Fatalf("hits+misses=%d, want %d", s.Hits+s.Misses, goroutines*calls)
	}
	if s.HitRate != float64(s.Hits)/float64(s.Hits+s.Misses) {
		t.Fatalf("hit rate %v != %d/%d", s.HitRate, s.Hits, s.Hits+s.Misses)
	}
	if s.TotalGenerated != goroutines*calls {
		t.Fatalf("total=%d, want %d", s.TotalGenerated, goroutines*calls)
	}
}

func TestHitRateZeroWhenIdle(t *testing.T) {
	e := newTestEngine(t, testConfig())
	if s := e.GetStatistics(); s.HitRate != 0 || s.Hits != 0 || s.Misses != 0 {
		t.Fatalf("fresh engine stats: %+v", s)
	}
}

func TestCacheNeverExceedsCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.CacheCapacity = 100
	e := newTestEngine(t, cfg)

	const goroutines, per = 32, 20 // 640 distinct inputs
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				e.Generate(fmt.Sprintf("distinct-%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	if n := e.CacheLen(); n != cfg.CacheCapacity {
		t.Fatalf("cache size %d, want exactly %d", n, cfg.CacheCapacity)
	}
	if s := e.GetStatistics(); s.CacheSize != cfg.CacheCapacity {
		t.Fatalf("stats cache size %d", s.CacheSize)
	}
}

func TestHashTrapUniqueness(t *testing.T) {
	e := newTestEngine(t, testConfig())

	out := e.HashTrap("decoy", 5000)
	if len(out) != 5000 {
		t.Fatalf("got %d decoys, want 5000", len(out))
	}
	seen := make(map[string]struct{}, len(out))
	for _, d := range out {
		seen[d] = struct{}{}
	}
	if ratio := float64(len(seen)) / float64(len(out)); ratio <= 0.999 {
		t.Fatalf("uniqueness ratio %.5f", ratio)
	}

	// Repeating the seed still yields new decoys
	for _, d := range e.HashTrap("decoy", 100) {
		if _, dup := seen[d]; dup {
			t.Fatalf("repeated seed produced an earlier decoy %q", d)
		}
	}
	if e.CacheLen() != 0 {
		t.Fatalf("decoys were cached: %d", e.CacheLen())
	}
	if got := e.GetStatistics().TotalGenerated; got != 5100 {
		t.Fatalf("total generated %d, want 5100", got)
	}
}

func TestHashTrapNonPositiveCount(t *testing.T) {
	e := newTestEngine(t, testConfig())
	for _, n := range []int{0, -5} {
		if out := e.HashTrap("x", n); out == nil || len(out) != 0 {
			t.Fatalf("HashTrap(x, %d) = %v, want empty slice", n, out)
		}
	}
}

func TestChallengeMode(t *testing.T) {
	e := newTestEngine(t, testConfig())

	out := e.ChallengeMode("incident-42")
	if len(out) != ChallengeVariants {
		t.Fatalf("got %d variants, want %d", len(out), ChallengeVariants)
	}
	seen := make(map[string]bool)
	for i, v := range out {
		if len(v) != e.Config().OutputLength {
			t.Fatalf("variant %d length %d", i, len(v))
		}
		if seen[v] {
			t.Fatalf("variant %d collides with an earlier one", i)
		}
		seen[v] = true
	}
	if strings.Trim(out[1], "01") != "" {
		t.Fatalf("binary variant has non-binary characters: %q", out[1])
	}
	// The standard variant is the cached Generate result
	if out[0] != e.Generate("incident-42") {
		t.Fatalf("standard variant is not the cached digest")
	}

	again := e.ChallengeMode("incident-42")
	for i := 1; i < len(out); i++ {
		if again[i] == out[i] {
			t.Fatalf("variant %d repeated across calls", i)
		}
	}
}

func TestRotationAdvancesState(t *testing.T) {
	cfg := testConfig()
	cfg.LayerBounds = [2]int{2, 5}
	e := newTestEngine(t, cfg)

	before := e.State()
	if before.LayerCount != 2 || before.Rotation != 0 {
		t.Fatalf("initial state %+v", before)
	}
	n := e.Rotate()
	after := e.State()
	if n != before.Rotation+1 || after.Rotation != before.Rotation+1 {
		t.Fatalf("rotation counter %d -> %d (returned %d)", before.Rotation, after.Rotation, n)
	}
	if bytes.Equal(before.QuantumState, after.QuantumState) {
		t.Fatalf("quantum state unchanged by rotation")
	}

	for i := 0; i < 50; i++ {
		e.Rotate()
		st := e.State()
		if st.LayerCount < 2 || st.LayerCount > 5 {
			t.Fatalf("layer count %d outside [2,5]", st.LayerCount)
		}
	}
	if got := e.GetStatistics().Rotations; got != 51 {
		t.Fatalf("rotations %d, want 51", got)
	}
}

func TestCountBasedRotation(t *testing.T) {
	cfg := testConfig()
	cfg.RotationEveryN = 10
	e := newTestEngine(t, cfg)

	for i := 0; i < 25; i++ {
		e.Generate(fmt.Sprintf("c-%d", i))
	}
	if r := e.State().Rotation; r != 2 {
		t.Fatalf("rotation counter %d after 25 generations, want 2", r)
	}
}

func TestTimeBasedRotation(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a rotation tick")
	}
	cfg := testConfig()
	cfg.RotationInterval = 1
	cfg.RotationEveryN = 0
	e := newTestEngine(t, cfg)

	e.Start()
	time.Sleep(1500 * time.Millisecond)
	e.Stop()
	if r := e.State().Rotation; r < 1 {
		t.Fatalf("no time-based rotation after 1.5s")
	}
}

func TestStartStopHaltsGeneration(t *testing.T) {
	cfg := testConfig()
	cfg.WorkerCount = 4
	cfg.StopTimeoutMS = 2000
	e := newTestEngine(t, cfg)

	e.Start()
	if e.Lifecycle() != Running {
		t.Fatalf("lifecycle %v after Start", e.Lifecycle())
	}
	start := time.Now()
	e.Stop()
	if d := time.Since(start); d > 2*time.Second {
		t.Fatalf("Stop took %s", d)
	}
	if e.Lifecycle() != Stopped {
		t.Fatalf("lifecycle %v after Stop", e.Lifecycle())
	}

	stopped := e.GetStatistics()
	if stopped.RatePerSecond != 0 {
		t.Fatalf("stopped engine reports rate %v", stopped.RatePerSecond)
	}
	a := stopped.TotalGenerated
	time.Sleep(200 * time.Millisecond)
	b := e.GetStatistics().TotalGenerated
	if a != b {
		t.Fatalf("total generated grew after Stop: %d -> %d", a, b)
	}
}

func TestOnDemandRateReported(t *testing.T) {
	e := newTestEngine(t, testConfig())

	for i := 0; i < 1004; i++ {
		e.Generate(fmt.Sprintf("on-demand-%d", i))
	}
	s := e.GetStatistics()
	if s.State != "stopped" || s.TotalGenerated != 1004 {
		t.Fatalf("state=%s total=%d", s.State, s.TotalGenerated)
	}
	if s.RatePerSecond <= 0 || s.PeakRate < s.RatePerSecond {
		t.Fatalf("rate=%v peak=%v without a worker pool", s.RatePerSecond, s.PeakRate)
	}
}

func TestRateAfterRunAndStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timed run in short mode")
	}
	cfg := testConfig()
	cfg.WorkerCount = 2
	e := newTestEngine(t, cfg)

	e.Start()
	time.Sleep(1200 * time.Millisecond)
	e.Stop()
	time.Sleep(300 * time.Millisecond)

	s := e.GetStatistics()
	if s.RatePerSecond != 0 {
		t.Fatalf("rate %v after Stop", s.RatePerSecond)
	}
	if s.PeakRate <= 0 {
		t.Fatalf("peak not kept after Stop")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	cfg := testConfig()
	cfg.WorkerCount = 2
	e := newTestEngine(t, cfg)

	e.Stop() // stopped: no-op
	e.Start()
	e.Start() // running: no-op
	if n := len(e.WorkerCounts()); n != 2 {
		t.Fatalf("%d worker counters, want 2", n)
	}
	time.Sleep(20 * time.Millisecond)
	e.Stop()
	e.Stop()
	if e.Lifecycle() != Stopped {
		t.Fatalf("lifecycle %v", e.Lifecycle())
	}
}

func TestRestartKeepsPrecomputedTable(t *testing.T) {
	cfg := testConfig()
	cfg.WorkerCount = 2
	cfg.DisplayEnabled = true
	e := newTestEngine(t, cfg)

	admin := e.Generate("admin")
	e.Start()
	time.Sleep(30 * time.Millisecond)
	e.Stop()
	if len(e.RecentPatterns(0)) == 0 {
		t.Fatalf("display enabled but no recent patterns recorded")
	}

	e.Start()
	time.Sleep(30 * time.Millisecond)
	e.Stop()
	if e.Generate("admin") != admin {
		t.Fatalf("precomputed digest changed across restart")
	}
	if e.PrecomputedLen() != len(DefaultSeeds) {
		t.Fatalf("precomputed table size changed")
	}
}

func TestDisplayDisabledSkipsRecentBuffer(t *testing.T) {
	cfg := testConfig()
	cfg.WorkerCount = 2
	e := newTestEngine(t, cfg)

	e.Start()
	time.Sleep(30 * time.Millisecond)
	e.Stop()
	if n := len(e.RecentPatterns(0)); n != 0 {
		t.Fatalf("recent buffer holds %d entries with display disabled", n)
	}
	if e.GetStatistics().TotalGenerated == 0 {
		t.Fatalf("workers generated nothing")
	}
}

func TestWorkerStress(t *testing.T) {
	for _, workers := range []int{1, 8, 64} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			cfg := testConfig()
			cfg.WorkerCount = workers
			cfg.CacheCapacity = 500
			cfg.RotationEveryN = 97
			cfg.DisplayEnabled = true
			cfg.RecentBufferCapacity = 256
			e := newTestEngine(t, cfg)

			e.Start()
			time.Sleep(150 * time.Millisecond)
			e.Stop()

			var sum uint64
			counts := e.WorkerCounts()
			if len(counts) != workers {
				t.Fatalf("%d counters, want %d", len(counts), workers)
			}
			for _, c := range counts {
				sum += c
			}
			s := e.GetStatistics()
			if s.TotalGenerated != sum {
				t.Fatalf("total %d != sum of worker counts %d", s.TotalGenerated, sum)
			}
			if sum == 0 {
				t.Fatalf("no generations")
			}
			if s.CacheSize > cfg.CacheCapacity {
				t.Fatalf("cache size %d exceeds %d", s.CacheSize, cfg.CacheCapacity)
			}
			if s.Misses != sum {
				t.Fatalf("unique worker inputs should all miss: misses=%d sum=%d", s.Misses, sum)
			}
			if n := len(e.RecentPatterns(0)); n > cfg.RecentBufferCapacity {
				t.Fatalf("recent buffer %d exceeds %d", n, cfg.RecentBufferCapacity)
			}
			if want := sum / 97; s.Rotations != want {
				t.Fatalf("rotations %d, want %d", s.Rotations, want)
			}
		})
	}
}

func TestWorkerPanicIsRecovered(t *testing.T) {
	var logs syncBuffer
	cfg := testConfig()
	cfg.WorkerCount = 2
	cfg.Logger = log.New(&logs, "", 0)
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var calls atomic.Int64
	e.iterHook = func(int) {
		if calls.Add(1)%3 == 0 {
			panic("boom")
		}
	}
	e.Start()
	time.Sleep(50 * time.Millisecond)
	e.Stop()

	var sum uint64
	for _, c := range e.WorkerCounts() {
		sum += c
	}
	s := e.GetStatistics()
	if sum == 0 || s.TotalGenerated != sum {
		t.Fatalf("total %d, worker sum %d", s.TotalGenerated, sum)
	}
	if uint64(calls.Load()) <= sum {
		t.Fatalf("expected some iterations to panic: calls=%d generated=%d", calls.Load(), sum)
	}
	if !strings.Contains(logs.String(), "recovered from panic: boom") {
		t.Fatalf("panic not logged:\n%s", logs.String())
	}
}

func TestStopTimeoutAbandonsWorkers(t *testing.T) {
	var logs syncBuffer
	cfg := testConfig()
	cfg.WorkerCount = 1
	cfg.StopTimeoutMS = 100
	cfg.Logger = log.New(&logs, "", 0)
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	e.iterHook = func(int) {
		once.Do(func() { close(entered) })
		<-release
	}
	e.Start()
	<-entered

	start := time.Now()
	e.Stop()
	if d := time.Since(start); d > time.Second {
		t.Fatalf("Stop blocked for %s", d)
	}
	if e.Lifecycle() != Stopped {
		t.Fatalf("lifecycle %v", e.Lifecycle())
	}
	close(release)
	if !strings.Contains(logs.String(), "abandoning") {
		t.Fatalf("timeout not logged:\n%s", logs.String())
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.LayerBounds = [2]int{5, 2}
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error for inverted layer bounds")
	}
}

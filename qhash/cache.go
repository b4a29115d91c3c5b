// =======================
// qhash/cache.go
// =======================

package qhash

import (
	"sync"
	"sync/atomic"

	"github.com/chmduquesne/rollinghash/buzhash64"
)

// PrecomputedTable is built once and never written again, so lookups take
// no lock.
type PrecomputedTable struct {
	m map[string]string
}

func newPrecomputedTable(seeds []string, compute func(string) string) *PrecomputedTable {
	t := &PrecomputedTable{m: make(map[string]string, len(seeds))}
	for _, s := range seeds {
		if _, ok := t.m[s]; ok {
			continue
		}
		t.m[s] = compute(s)
	}
	return t
}

func (t *PrecomputedTable) Lookup(input string) (string, bool) {
	d, ok := t.m[input]
	return d, ok
}

func (t *PrecomputedTable) Len() int { return len(t.m) }

// DynamicCache is a fixed-capacity sharded map. Once full, inserts are
// dropped; nothing is ever evicted. The size is reserved atomically before
// a shard is written, so Len never exceeds the capacity even under
// concurrent inserts.
type DynamicCache struct {
	shards   [cacheShards]cacheShard
	capacity int64
	size     atomic.Int64
	hashers  sync.Pool
}

type cacheShard struct {
	mu sync.RWMutex
	m  map[string]string
}

// buzTable is shared by every pooled shard hasher.
var buzTable = buzhash64.GenerateHashes(0x71a5)

func newDynamicCache(capacity int) *DynamicCache {
	c := &DynamicCache{capacity: int64(capacity)}
	perShard := capacity/cacheShards + 1
	if perShard > 1024 {
		perShard = 1024
	}
	for i := range c.shards {
		c.shards[i].m = make(map[string]string, perShard)
	}
	c.hashers.New = func() any { return buzhash64.NewFromUint64Array(buzTable) }
	return c
}

func (c *DynamicCache) shard(key string) *cacheShard {
	h := c.hashers.Get().(*buzhash64.Buzhash64)
	h.Reset()
	h.Write([]byte(key))
	sum := h.Sum64()
	c.hashers.Put(h)
	return &c.shards[sum%cacheShards]
}

// Get looks key up under the shard's read lock.
func (c *DynamicCache) Get(key string) (string, bool) {
	s := c.shard(key)
	s.mu.RLock()
	d, ok := s.m[key]
	s.mu.RUnlock()
	return d, ok
}

// Insert stores key if there is room. It returns the value now associated
// with key, which is the earlier one if a concurrent writer won the race,
// and whether the cache holds key afterwards. A slot is reserved only for
// a key the shard does not hold yet, so re-inserting a present key never
// crowds out a new one.
func (c *DynamicCache) Insert(key, digest string) (string, bool) {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.m[key]; ok {
		return prev, true
	}
	if !c.reserve() {
		return digest, false
	}
	s.m[key] = digest
	return digest, true
}

// reserve claims one slot, failing when the cache is full.
func (c *DynamicCache) reserve() bool {
	for {
		n := c.size.Load()
		if n >= c.capacity {
			return false
		}
		if c.size.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Len counts stored entries shard by shard.
func (c *DynamicCache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

func (c *DynamicCache) Capacity() int { return int(c.capacity) }

// MemoCache fronts the pipeline: precomputed table first, then the dynamic
// cache, then a fresh computation.
type MemoCache struct {
	table   *PrecomputedTable
	dyn     *DynamicCache
	stats   *StatsRecorder
	compute func(input string, worker int) string
}

func newMemoCache(table *PrecomputedTable, dyn *DynamicCache, stats *StatsRecorder, compute func(string, int) string) *MemoCache {
	return &MemoCache{table: table, dyn: dyn, stats: stats, compute: compute}
}

// GetOrCompute never fails. A miss is computed outside any lock and
// returned whether or not it could be stored.
func (m *MemoCache) GetOrCompute(input string) string {
	return m.get(input, onDemandWorker)
}

func (m *MemoCache) get(input string, worker int) string {
	if d, ok := m.table.Lookup(input); ok {
		m.stats.hit()
		return d
	}
	if d, ok := m.dyn.Get(input); ok {
		m.stats.hit()
		return d
	}

	m.stats.miss()
	d := m.compute(input, worker)
	stored, _ := m.dyn.Insert(input, d)
	return stored
}

// =======================
// qhash/entropy.go
// =======================

package qhash

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"
)

// EntropyGenerator mixes cheap local signals into a fixed-size buffer.
//
// The output is NOT a cryptographically secure source and must never be
// used as key material. It only perturbs pipeline inputs so that equal
// inputs computed outside the cache do not collide.
type EntropyGenerator struct {
	pid uint64
	seq atomic.Uint64

	mu       sync.Mutex
	loadTime atomic.Int64 // unix nanos of the last load reading
	cpuLoad  atomic.Uint64
	memLoad  atomic.Uint64
}

// loadSample is one coarse system load reading.
type loadSample struct {
	cpu uint64 // scaled load average or equivalent
	mem uint64 // memory use in basis points
}

func NewEntropyGenerator() *EntropyGenerator {
	g := &EntropyGenerator{pid: uint64(processID())}
	g.refreshLoad(time.Now().UnixNano())
	return g
}

// Sample returns EntropySize bytes for the given worker. Negative worker
// ids denote on-demand callers.
func (g *EntropyGenerator) Sample(worker int) [EntropySize]byte {
	var out [EntropySize]byte

	now := time.Now().UnixNano()
	if now-g.loadTime.Load() > int64(loadSampleMaxAge) {
		g.refreshLoad(now)
	}

	words := [...]uint64{
		uint64(now),
		g.seq.Add(1),
		g.pid,
		uint64(threadID()),
		uint64(int64(worker)),
		g.cpuLoad.Load(),
		g.memLoad.Load(),
	}

	// Each signal lands at a different offset so no two share alignment
	var w [8]byte
	for i, v := range words {
		binary.LittleEndian.PutUint64(w[:], v*0x9e3779b97f4a7c15+uint64(i))
		off := (i * 5) % EntropySize
		for j := range w {
			out[(off+j)%EntropySize] ^= w[j]
		}
	}
	// Spread the fast-moving clock bits across the whole buffer
	for i := range out {
		out[i] ^= byte(now >> (uint(i) % 8 * 8))
	}
	return out
}

// refreshLoad reads system load at most once per loadSampleMaxAge.
func (g *EntropyGenerator) refreshLoad(now int64) {
	if !g.mu.TryLock() {
		return
	}
	defer g.mu.Unlock()

	ls := readLoad()
	g.cpuLoad.Store(ls.cpu)
	g.memLoad.Store(ls.mem)
	g.loadTime.Store(now)
}

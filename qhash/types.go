// =======================
// qhash/types.go
// =======================

package qhash

import "time"

const (
	AccumulatorSize  = 32  // Width of the XOR-fold accumulator in bytes
	EntropySize      = 32  // Bytes returned by one entropy sample
	QuantumStateSize = 48  // 384 bits of rotation state
	MinPoolSize      = 1024
	DefaultPoolSize  = 2048
	MaxLayers        = 64
	MinAlgorithms    = 3
	MaxAlgorithms    = 8
	cacheShards      = 32
	rateSampleEvery  = time.Second
	minRateWindow    = 100 * time.Millisecond // floor for a running-window rate
	loadSampleMaxAge = 50 * time.Millisecond
)

// LifecycleState is the worker pool state machine.
type LifecycleState int32

const (
	Stopped LifecycleState = iota
	Starting
	Running
	Stopping
)

func (s LifecycleState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

// EngineState is the shared transformation state of one rotation epoch.
// A published EngineState is never mutated; rotation swaps in a new one.
type EngineState struct {
	QuantumState [QuantumStateSize]byte
	EntropyPool  []byte
	LayerCount   int
	Rotation     uint64

	// Derived once per epoch
	substitution [256]byte
	rotateBy     int
}

// StateInfo is a copy of the observable EngineState fields.
type StateInfo struct {
	QuantumState []byte `json:"quantum_state"`
	PoolSize     int    `json:"entropy_pool_size"`
	LayerCount   int    `json:"obfuscation_layer_count"`
	Rotation     uint64 `json:"rotation_counter"`
}

// Statistics is a read-only snapshot returned by Engine.GetStatistics.
type Statistics struct {
	Hits           uint64  `json:"hits"`
	Misses         uint64  `json:"misses"`
	HitRate        float64 `json:"hit_rate"`
	TotalGenerated uint64  `json:"total_generated"`
	RatePerSecond  float64 `json:"rate_per_second"`
	PeakRate       float64 `json:"peak_rate"`
	Rotations      uint64  `json:"rotations"`
	CacheSize      int     `json:"cache_size"`
	CacheCapacity  int     `json:"cache_capacity"`
	Workers        int     `json:"workers"`
	State          string  `json:"state"`
}

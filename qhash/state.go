// =======================
// qhash/state.go
// =======================

package qhash

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
)

// newEngineState draws a fresh quantum state and entropy pool from
// crypto/rand.
func newEngineState(poolSize, layers int, rotation uint64) (*EngineState, error) {
	if poolSize < MinPoolSize {
		return nil, fmt.Errorf("entropy pool too small: %d", poolSize)
	}

	st := &EngineState{
		EntropyPool: make([]byte, poolSize),
		LayerCount:  layers,
		Rotation:    rotation,
	}
	if _, err := rand.Read(st.QuantumState[:]); err != nil {
		return nil, fmt.Errorf("quantum state generation failed: %w", err)
	}
	if _, err := rand.Read(st.EntropyPool); err != nil {
		return nil, fmt.Errorf("entropy pool generation failed: %w", err)
	}
	st.derive()
	return st, nil
}

// deriveEngineState builds the next state from prev without touching
// crypto/rand, by chained SHA-512 over the previous quantum state.
func deriveEngineState(prev *EngineState, layers int, rotation uint64) *EngineState {
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], rotation)
	seed := append(append([]byte(nil), prev.QuantumState[:]...), ctr[:]...)

	st := &EngineState{
		LayerCount: layers,
		Rotation:   rotation,
	}
	copy(st.QuantumState[:], chainSHA512(seed, QuantumStateSize))
	st.EntropyPool = chainSHA512(append(seed, prev.EntropyPool[:64]...), len(prev.EntropyPool))
	st.derive()
	return st
}

// chainSHA512 expands seed to size bytes by repeated SHA-512.
func chainSHA512(seed []byte, size int) []byte {
	out := make([]byte, 0, size+sha512.Size)
	buf := seed
	for len(out) < size {
		h := sha512.Sum512(buf)
		out = append(out, h[:]...)
		buf = h[:]
	}
	return out[:size]
}

// derive fills the per-epoch substitution table and rotation offset.
func (st *EngineState) derive() {
	shift := st.QuantumState[QuantumStateSize-1] | 1 // never the identity
	for i := range st.substitution {
		st.substitution[i] = byte(i) + shift
	}
	q := binary.BigEndian.Uint64(st.QuantumState[:8])
	st.rotateBy = int(q % AccumulatorSize)
}

// poolWindow returns EntropySize pool bytes starting at a position derived
// from key.
func (st *EngineState) poolWindow(key uint64) []byte {
	n := len(st.EntropyPool) - EntropySize
	off := int(key % uint64(n+1))
	return st.EntropyPool[off : off+EntropySize]
}

// nextLayerCount advances cur cyclically within [lo,hi].
func nextLayerCount(cur, lo, hi int) int {
	if cur < lo || cur > hi {
		return lo
	}
	span := hi - lo + 1
	return lo + (cur-lo+1)%span
}

func (st *EngineState) info() StateInfo {
	return StateInfo{
		QuantumState: append([]byte(nil), st.QuantumState[:]...),
		PoolSize:     len(st.EntropyPool),
		LayerCount:   st.LayerCount,
		Rotation:     st.Rotation,
	}
}

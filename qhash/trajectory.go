package qhash

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// LorenzParams is one parameter set of the Lorenz system.
type LorenzParams struct {
	Sigma, Rho, Beta, Dt float64
}

// ClassicLorenz is the textbook chaotic parameter set.
var ClassicLorenz = LorenzParams{Sigma: 10, Rho: 28, Beta: 8.0 / 3.0, Dt: 0.01}

const (
	lorenzDiscard    = 1000
	lorenzIterations = 2000
)

// Step advances (x, y, z) by one Euler step.
func (p LorenzParams) Step(x, y, z float64) (float64, float64, float64) {
	dx := p.Sigma * (y - x)
	dy := x*(p.Rho-z) - y
	dz := x*y - p.Beta*z
	return x + dx*p.Dt, y + dy*p.Dt, z + dz*p.Dt
}

// seedLorenz derives initial conditions in [-20,20) from data.
func seedLorenz(data []byte) (float64, float64, float64) {
	h := sha256.Sum256(data)
	mk := func(off int) float64 {
		u := binary.BigEndian.Uint64(h[off : off+8])
		return float64(u>>11)/float64(1<<53)*40 - 20
	}
	return mk(0), mk(8), mk(16)
}

// discretize extracts one byte from the fractional part of f scaled by
// 2^shift.
func discretize(f float64, shift uint) byte {
	f = math.Ldexp(f, int(shift))
	_, frac := math.Modf(f)
	if frac < 0 {
		frac++
	}
	return byte(int(frac*256) & 0xFF)
}

// lorenzFold evolves the Lorenz system seeded by data and folds the
// discretized trajectory into outSize bytes.
func lorenzFold(data []byte, p LorenzParams, outSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty input data")
	}
	if outSize <= 0 || outSize > 128 {
		return nil, fmt.Errorf("invalid output size: %d", outSize)
	}

	x, y, z := seedLorenz(data)

	// Skip initial transients
	for i := 0; i < lorenzDiscard; i++ {
		x, y, z = p.Step(x, y, z)
	}

	stream := make([]byte, 0, lorenzIterations*6)
	for i := 0; i < lorenzIterations; i++ {
		x, y, z = p.Step(x, y, z)
		if math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) > 1e10 {
			return nil, fmt.Errorf("trajectory diverged at iteration %d", i)
		}
		stream = append(stream,
			discretize(x, 0), discretize(y, 0), discretize(z, 0),
			discretize(x, 8), discretize(y, 8), discretize(z, 8),
		)
	}

	// XOR-fold with prime offsets
	out := make([]byte, outSize)
	for i := range out {
		out[i] = stream[i%len(stream)] ^ stream[(i*7)%len(stream)]
		out[i] ^= stream[(i*11)%len(stream)] ^ stream[(i*13)%len(stream)]
	}
	for i, b := range stream {
		out[i%outSize] ^= b
	}
	return out, nil
}

// =======================
// qhash/generators.go
// =======================

package qhash

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"time"
)

// ChallengeVariants is the size of a ChallengeMode bundle.
const ChallengeVariants = 5

// HashTrap returns count decoy digests for seed. Every input carries the
// index and a fresh random suffix, so repeated seeds still yield distinct
// decoys. Decoys bypass the caches.
func (e *Engine) HashTrap(seed string, count int) []string {
	if count <= 0 {
		return []string{}
	}

	out := make([]string, count)
	var suffix [16]byte
	for i := range out {
		e.randomBytes(suffix[:])
		input := seed + "|" + strconv.Itoa(i) + "|" + hex.EncodeToString(suffix[:])
		out[i] = e.compute(input, trapWorker)
		e.produced()
	}
	return out
}

// ChallengeMode returns a bundle of ChallengeVariants representations of
// seed: the standard digest, a bit-string variant, and independently keyed
// sha3, blake2b and Lorenz-trajectory families.
func (e *Engine) ChallengeMode(seed string) []string {
	st := e.rotator.Current()
	n := e.cfg.OutputLength

	out := make([]string, 0, ChallengeVariants)
	out = append(out, e.Generate(seed))

	acc := e.keyedDigest("binary", seed, e.pipeline.algos, st)
	out = append(out, encodeBinary(acc[:], n))

	for _, fam := range []string{"sha3", "blake2b"} {
		acc := e.keyedDigest(fam, seed, e.families[fam], st)
		out = append(out, encodeDigest(acc[:], n))
	}

	out = append(out, e.lorenzDigest(seed, st))

	for range out[1:] {
		e.produced()
	}
	return out
}

// keyedDigest runs the pipeline over label||key||seed||entropy with its own
// random key.
func (e *Engine) keyedDigest(label, seed string, algos []*algorithm, st *EngineState) [AccumulatorSize]byte {
	var key [32]byte
	e.randomBytes(key[:])
	sample := e.entropy.Sample(challengeWorker)

	acc, err := e.pipeline.transform(algos, st, []byte(label), key[:], []byte(seed), sample[:])
	if err != nil {
		e.warn.warnOnce("challenge", "challenge %s variant degraded: %v", label, err)
		return accumulate(algos, []byte(label), key[:], []byte(seed), sample[:])
	}
	return acc
}

// lorenzDigest seeds a Lorenz trajectory from seed and a random key, then
// runs the fold through the obfuscation layers.
func (e *Engine) lorenzDigest(seed string, st *EngineState) string {
	var key [32]byte
	e.randomBytes(key[:])
	data := append([]byte(seed), key[:]...)

	raw, err := lorenzFold(data, ClassicLorenz, AccumulatorSize)
	if err != nil {
		e.warn.warnOnce("lorenz", "lorenz variant degraded: %v", err)
		acc := e.keyedDigest("lorenz", seed, e.pipeline.algos, st)
		return encodeDigest(acc[:], e.cfg.OutputLength)
	}

	var acc [AccumulatorSize]byte
	copy(acc[:], raw)
	if err := e.pipeline.obfuscate(&acc, st); err != nil {
		e.warn.warnOnce("lorenz", "lorenz variant degraded: %v", err)
	}
	return encodeDigest(acc[:], e.cfg.OutputLength)
}

// randomBytes fills dst from the key stream, falling back to entropy
// samples and the engine sequence if no stream can be created.
func (e *Engine) randomBytes(dst []byte) {
	if err := e.keys.read(dst); err == nil {
		return
	}
	for off := 0; off < len(dst); off += EntropySize {
		s := e.entropy.Sample(trapWorker)
		binary.LittleEndian.PutUint64(s[:8], e.seq.Add(1)^uint64(time.Now().UnixNano()))
		copy(dst[off:], s[:])
	}
}

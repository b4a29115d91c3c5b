// =======================
// qhash/pipeline.go
// =======================

package qhash

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"strconv"
	"strings"
)

// Pipeline is the layered transformation applied to every generated digest:
// several independent digests are XOR-folded into one accumulator, which
// then passes through a number of obfuscation layers (keyed XOR, byte
// reversal, substitution, rotation).
//
// Layering heterogeneous operations means no single inverse step recovers
// the accumulator. This is defence-in-depth obfuscation; it carries no
// proven cryptographic guarantee and must not be treated as one.
//
// Every layer draws a fresh key, so two computations of the same input
// differ. Only a cache hit returns an earlier output.
type Pipeline struct {
	algos  []*algorithm
	keys   *keySource
	outLen int
}

func newPipeline(algos []*algorithm, keys *keySource, outLen int) *Pipeline {
	return &Pipeline{algos: algos, keys: keys, outLen: outLen}
}

// Algorithms lists the resolved digest algorithm names in use.
func (p *Pipeline) Algorithms() []string {
	names := make([]string, len(p.algos))
	for i, a := range p.algos {
		names[i] = a.name
	}
	return names
}

// Compute returns the encoded digest of input mixed with entropy under st.
func (p *Pipeline) Compute(input, entropy []byte, st *EngineState) (string, error) {
	acc, err := p.transform(p.algos, st, input, entropy)
	if err != nil {
		return "", err
	}
	return encodeDigest(acc[:], p.outLen), nil
}

// transform runs fold + obfuscation with the given algorithm set.
func (p *Pipeline) transform(algos []*algorithm, st *EngineState, parts ...[]byte) ([AccumulatorSize]byte, error) {
	acc := accumulate(algos, parts...)
	if err := p.obfuscate(&acc, st); err != nil {
		return acc, err
	}
	return acc, nil
}

// accumulate XOR-folds every algorithm's digest of parts into one
// AccumulatorSize buffer. Longer digests wrap around.
func accumulate(algos []*algorithm, parts ...[]byte) [AccumulatorSize]byte {
	var acc [AccumulatorSize]byte
	var buf [64]byte
	for _, a := range algos {
		d := a.sum(buf[:0], parts...)
		foldInto(&acc, d)
	}
	return acc
}

func foldInto(acc *[AccumulatorSize]byte, d []byte) {
	for i, b := range d {
		acc[i%AccumulatorSize] ^= b
	}
}

// obfuscate applies st.LayerCount layers. Layer i always XORs a fresh key;
// even layers reverse, every third substitutes, every fourth rotates.
func (p *Pipeline) obfuscate(acc *[AccumulatorSize]byte, st *EngineState) error {
	ks, err := p.keys.get()
	if err != nil {
		return err
	}
	defer p.keys.put(ks)

	var key [AccumulatorSize]byte
	for i := 0; i < st.LayerCount; i++ {
		ks.fill(key[:])
		for j := range acc {
			acc[j] ^= key[j]
		}
		if i%2 == 0 {
			reverseBytes(acc[:])
		}
		if i%3 == 0 {
			for j, b := range acc {
				acc[j] = st.substitution[b]
			}
		}
		if i%4 == 0 {
			rotateLeft(acc, st.rotateBy)
		}
	}
	return nil
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func rotateLeft(acc *[AccumulatorSize]byte, n int) {
	n %= AccumulatorSize
	if n == 0 {
		return
	}
	var tmp [AccumulatorSize]byte
	copy(tmp[:], acc[n:])
	copy(tmp[AccumulatorSize-n:], acc[:n])
	*acc = tmp
}

// encodeDigest base64-encodes raw and fits it to exactly n characters.
// Short encodings are extended with chained SHA-256 blocks of raw.
func encodeDigest(raw []byte, n int) string {
	var sb strings.Builder
	sb.Grow(n + 44)
	sb.WriteString(base64.RawURLEncoding.EncodeToString(raw))

	block := raw
	var ctr [8]byte
	for i := uint64(1); sb.Len() < n; i++ {
		binary.BigEndian.PutUint64(ctr[:], i)
		h := sha256.Sum256(append(append([]byte(nil), block...), ctr[:]...))
		sb.WriteString(base64.RawURLEncoding.EncodeToString(h[:]))
		block = h[:]
	}
	return sb.String()[:n]
}

// encodeBinary renders raw as a bit string fitted to n characters.
func encodeBinary(raw []byte, n int) string {
	var sb strings.Builder
	sb.Grow(n + 8)
	for sb.Len() < n {
		for _, b := range raw {
			s := strconv.FormatUint(uint64(b), 2)
			sb.WriteString(strings.Repeat("0", 8-len(s)))
			sb.WriteString(s)
			if sb.Len() >= n {
				break
			}
		}
		h := sha256.Sum256(raw)
		raw = h[:]
	}
	return sb.String()[:n]
}

// fallbackDigest is used when the pipeline cannot draw layer keys.
func fallbackDigest(input, entropy []byte, n int) string {
	h := sha256.New()
	h.Write(input)
	h.Write(entropy)
	return encodeDigest(h.Sum(nil), n)
}

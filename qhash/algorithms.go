// =======================
// qhash/algorithms.go
// =======================

package qhash

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"hash"
	"sync"

	"github.com/dchest/blake2b"
	"golang.org/x/crypto/sha3"
)

// algorithmSpec describes one registered digest algorithm.
type algorithmSpec struct {
	size    int // digest bytes
	family  string
	newHash func() hash.Hash
	ready   func() bool
}

func always() bool { return true }

func stdlib(h crypto.Hash, family string) algorithmSpec {
	return algorithmSpec{size: h.Size(), family: family, newHash: h.New, ready: h.Available}
}

var algorithmRegistry = map[string]algorithmSpec{
	"sha256":      stdlib(crypto.SHA256, "sha2"),
	"sha384":      stdlib(crypto.SHA384, "sha2"),
	"sha512":      stdlib(crypto.SHA512, "sha2"),
	"sha512-256":  stdlib(crypto.SHA512_256, "sha2"),
	"sha3-256":    {size: 32, family: "sha3", newHash: sha3.New256, ready: always},
	"sha3-512":    {size: 64, family: "sha3", newHash: sha3.New512, ready: always},
	"keccak-256":  {size: 32, family: "sha3", newHash: sha3.NewLegacyKeccak256, ready: always},
	"blake2b-256": {size: 32, family: "blake2b", newHash: blake2b.New256, ready: always},
	"blake2b-512": {size: 64, family: "blake2b", newHash: blake2b.New512, ready: always},
}

// Substitution candidates are tried in this order.
var algorithmOrder = []string{
	"sha256", "sha3-256", "blake2b-256", "sha512-256", "keccak-256",
	"sha512", "sha3-512", "blake2b-512", "sha384",
}

// algorithm is a resolved, pooled digest.
type algorithm struct {
	name   string
	size   int
	family string
	pool   sync.Pool
}

func newAlgorithm(name string) *algorithm {
	spec := algorithmRegistry[name]
	a := &algorithm{name: name, size: spec.size, family: spec.family}
	a.pool.New = func() any { return spec.newHash() }
	return a
}

// sum hashes the concatenation of parts, appending the digest to dst.
func (a *algorithm) sum(dst []byte, parts ...[]byte) []byte {
	h := a.pool.Get().(hash.Hash)
	h.Reset()
	for _, p := range parts {
		h.Write(p)
	}
	dst = h.Sum(dst)
	a.pool.Put(h)
	return dst
}

func registryAvailable(name string) bool {
	spec, ok := algorithmRegistry[name]
	return ok && spec.ready()
}

// resolveAlgorithms maps configured names onto available algorithms. An
// unavailable name is replaced by an unused algorithm of the same digest
// width and a degraded-mode warning is logged once per name. The result
// always holds at least MinAlgorithms entries including one 256-bit and
// one 512-bit digest.
func resolveAlgorithms(names []string, available func(string) bool, w *warner) ([]*algorithm, error) {
	if len(names) == 0 {
		names = DefaultAlgorithms
	}

	used := make(map[string]bool)
	var out []string

	pick := func(width int) string {
		for _, cand := range algorithmOrder {
			if used[cand] || !available(cand) {
				continue
			}
			if width == 0 || algorithmRegistry[cand].size == width {
				return cand
			}
		}
		return ""
	}

	for _, name := range names {
		if used[name] {
			continue
		}
		if available(name) {
			used[name] = true
			out = append(out, name)
			continue
		}

		width := AccumulatorSize
		if spec, ok := algorithmRegistry[name]; ok {
			width = spec.size
		}
		sub := pick(width)
		if sub == "" {
			sub = pick(0)
		}
		if sub == "" {
			w.warnOnce("algo:"+name, "algorithm %q unavailable and no substitute left; dropping", name)
			continue
		}
		w.warnOnce("algo:"+name, "algorithm %q unavailable, substituting %q (degraded mode)", name, sub)
		used[sub] = true
		out = append(out, sub)
	}

	// Width coverage and minimum count
	has := func(width int) bool {
		for _, n := range out {
			if algorithmRegistry[n].size == width {
				return true
			}
		}
		return false
	}
	for _, width := range []int{32, 64} {
		if has(width) {
			continue
		}
		if sub := pick(width); sub != "" {
			used[sub] = true
			out = append(out, sub)
		}
	}
	for len(out) < MinAlgorithms {
		sub := pick(0)
		if sub == "" {
			return nil, fmt.Errorf("only %d digest algorithms available, need %d", len(out), MinAlgorithms)
		}
		used[sub] = true
		out = append(out, sub)
	}

	algos := make([]*algorithm, len(out))
	for i, n := range out {
		algos[i] = newAlgorithm(n)
	}
	return algos, nil
}

package qhash

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/aead/chacha20/chacha"
)

// reseedAfter bounds how many key bytes one ChaCha stream produces.
const reseedAfter = 64 << 20

// keyStream hands out fresh pseudo-random layer keys. Each stream is a
// ChaCha20 cipher keyed from crypto/rand, so drawing a key costs one
// XORKeyStream call rather than a syscall.
type keyStream struct {
	c    *chacha.Cipher
	used int
}

func newKeyStream() (*keyStream, error) {
	var seed [chacha.KeySize + chacha.NonceSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("keystream seed failed: %w", err)
	}
	return keyStreamFrom(seed[:chacha.KeySize], seed[chacha.KeySize:])
}

// keyStreamFrom builds a 20-round ChaCha stream for key and nonce.
func keyStreamFrom(key, nonce []byte) (*keyStream, error) {
	c, err := chacha.NewCipher(nonce, key, 20)
	if err != nil {
		return nil, fmt.Errorf("keystream cipher init failed: %w", err)
	}
	return &keyStream{c: c}, nil
}

// fill overwrites dst with fresh key bytes.
func (k *keyStream) fill(dst []byte) {
	for i := range dst {
		dst[i] = 0
	}
	k.c.XORKeyStream(dst, dst)
	k.used += len(dst)
}

// keySource pools keyStreams so concurrent callers never share one.
type keySource struct {
	pool sync.Pool
	open func() (*keyStream, error)
}

func newKeySource() *keySource {
	return &keySource{open: newKeyStream}
}

func (s *keySource) get() (*keyStream, error) {
	if ks, ok := s.pool.Get().(*keyStream); ok && ks.used < reseedAfter {
		return ks, nil
	}
	return s.open()
}

func (s *keySource) put(ks *keyStream) {
	s.pool.Put(ks)
}

// read fills dst with fresh key bytes from a pooled stream.
func (s *keySource) read(dst []byte) error {
	ks, err := s.get()
	if err != nil {
		return err
	}
	ks.fill(dst)
	s.put(ks)
	return nil
}

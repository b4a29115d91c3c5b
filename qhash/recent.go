package qhash

import "sync"

// RecentPatternBuffer keeps the latest generated digests for display.
// When full, the oldest entry is overwritten; Append never blocks on
// readers for longer than one slot write.
type RecentPatternBuffer struct {
	mu    sync.Mutex
	buf   []string
	next  int
	count int
}

func NewRecentPatternBuffer(capacity int) *RecentPatternBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RecentPatternBuffer{buf: make([]string, capacity)}
}

func (r *RecentPatternBuffer) Append(s string) {
	r.mu.Lock()
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.mu.Unlock()
}

// Snapshot returns up to limit entries, newest last. limit <= 0 means all.
func (r *RecentPatternBuffer) Snapshot(limit int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]string, n)
	start := (r.next - n + len(r.buf)) % len(r.buf)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

func (r *RecentPatternBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *RecentPatternBuffer) Cap() int { return len(r.buf) }

func (r *RecentPatternBuffer) Reset() {
	r.mu.Lock()
	for i := range r.buf {
		r.buf[i] = ""
	}
	r.next, r.count = 0, 0
	r.mu.Unlock()
}

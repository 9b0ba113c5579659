// Package dedupe tracks keys that are currently claimed, so the same piece of
// work is not queued twice while an earlier request for it is still pending.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Deduper claims keys for at-most-once in-flight processing.
type Deduper interface {
	// SeenAndRecord atomically checks whether key is claimed and claims it if not.
	// It reports true when the key was already claimed.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases key once its work finished or could not be queued.
	Unrecord(ctx context.Context, key string)

	// Size returns the number of claimed keys.
	Size() int64
}

type claim struct {
	at  time.Time
	seq uint64
}

// inMemoryDeduper keeps claims in a map. Claims older than ttl are treated as
// released, which recovers keys whose owner never called Unrecord. When the
// map is full the oldest claim is dropped.
type inMemoryDeduper struct {
	mu      sync.Mutex
	claims  map[string]claim
	seq     uint64
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	size    atomic.Int64
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 1024,
		ttl:     30 * time.Minute,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.claims = make(map[string]claim)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if c, ok := d.claims[key]; ok {
		if !d.expired(c, now) {
			return true
		}
		delete(d.claims, key)
	}

	if d.maxSize > 0 && len(d.claims) >= d.maxSize {
		d.evict(now)
	}

	d.seq++
	d.claims[key] = claim{at: now, seq: d.seq}
	d.size.Store(int64(len(d.claims)))
	return false
}

func (d *inMemoryDeduper) Unrecord(ctx context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.claims, key)
	d.size.Store(int64(len(d.claims)))
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

func (d *inMemoryDeduper) expired(c claim, now time.Time) bool {
	return d.ttl > 0 && now.Sub(c.at) >= d.ttl
}

// evict drops expired claims, or the oldest one when none expired.
// Must be called with d.mu held.
func (d *inMemoryDeduper) evict(now time.Time) {
	var (
		oldestKey string
		oldestSeq uint64
		dropped   bool
	)
	for k, c := range d.claims {
		if d.expired(c, now) {
			delete(d.claims, k)
			dropped = true
			continue
		}
		if oldestKey == "" || c.seq < oldestSeq {
			oldestKey, oldestSeq = k, c.seq
		}
	}
	if !dropped && oldestKey != "" {
		delete(d.claims, oldestKey)
	}
}

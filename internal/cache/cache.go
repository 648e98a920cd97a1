package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"auditgraph/internal/logger"
	"auditgraph/internal/metrics"
	"auditgraph/internal/store"
)

// Options configures a bounded cache.
type Options struct {
	// MaxEntries bounds the in-memory tier.
	MaxEntries int
	// ExpectedItems and FalsePositiveRate size the membership filter.
	ExpectedItems     uint
	FalsePositiveRate float64
	// HashName selects the key hash recorded in checkpoints.
	HashName string
}

// BoundedCache is a two-tier map: a bounded in-memory LRU backed by a
// durable overflow store, with a bloom filter recording every key ever
// written so that reads for never-seen keys skip the store entirely.
// Values are JSON-encoded when they cross into the overflow tier.
type BoundedCache[V any] struct {
	lru      *lru.Cache[string, V]
	filter   *bloom.BloomFilter
	backing  store.Store
	hashKey  func(string) string
	hashName string

	// Eviction writes happen inside the LRU callback, which cannot
	// return an error; the first failure is held until the next call.
	evictErr error
}

// New creates a bounded cache over the given overflow store.
func New[V any](opts Options, backing store.Store) (*BoundedCache[V], error) {
	if opts.MaxEntries <= 0 {
		return nil, errors.New("cache max entries must be positive")
	}
	if opts.ExpectedItems == 0 {
		opts.ExpectedItems = 1000000
	}
	if opts.FalsePositiveRate <= 0 {
		opts.FalsePositiveRate = 0.000001
	}
	hash, err := newKeyHasher(opts.HashName)
	if err != nil {
		return nil, err
	}

	c := &BoundedCache[V]{
		filter:   bloom.NewWithEstimates(opts.ExpectedItems, opts.FalsePositiveRate),
		backing:  backing,
		hashKey:  hash,
		hashName: hashNameOrDefault(opts.HashName),
	}
	c.lru, err = lru.NewWithEvict(opts.MaxEntries, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create lru tier: %w", err)
	}
	return c, nil
}

func (c *BoundedCache[V]) onEvict(key string, value V) {
	data, err := json.Marshal(value)
	if err != nil {
		c.holdEvictErr(fmt.Errorf("encode evicted value: %w", err))
		return
	}
	if err := c.backing.Put(key, data); err != nil {
		c.holdEvictErr(fmt.Errorf("spill evicted value: %w", err))
		return
	}
	metrics.CacheEvictions.Inc()
}

func (c *BoundedCache[V]) holdEvictErr(err error) {
	if c.evictErr == nil {
		c.evictErr = err
	}
	logger.Errorf("Cache eviction failed: %v", err)
}

func (c *BoundedCache[V]) takeEvictErr() error {
	err := c.evictErr
	c.evictErr = nil
	return err
}

// Put stores a value. The key is recorded in the membership filter for
// the lifetime of the cache.
func (c *BoundedCache[V]) Put(key string, value V) error {
	hashed := c.hashKey(key)
	c.filter.AddString(hashed)
	c.lru.Add(hashed, value)
	return c.takeEvictErr()
}

// Get returns the value for a key. Keys the filter has never seen are
// reported absent without touching the overflow store; overflow hits
// are promoted back into memory.
func (c *BoundedCache[V]) Get(key string) (V, bool, error) {
	var zero V
	hashed := c.hashKey(key)

	if value, ok := c.lru.Get(hashed); ok {
		return value, true, nil
	}
	if !c.filter.TestString(hashed) {
		metrics.CacheFilterSkips.Inc()
		return zero, false, nil
	}

	data, err := c.backing.Get(hashed)
	if err == store.ErrNotFound {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("read overflow store: %w", err)
	}

	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, false, fmt.Errorf("decode overflow value: %w", err)
	}
	if err := c.backing.Delete(hashed); err != nil {
		return zero, false, fmt.Errorf("promote overflow value: %w", err)
	}
	c.lru.Add(hashed, value)
	if err := c.takeEvictErr(); err != nil {
		return zero, false, err
	}
	return value, true, nil
}

// Remove drops a key from both tiers. The filter keeps the key, so a
// later Get may still consult the overflow store and miss there.
func (c *BoundedCache[V]) Remove(key string) error {
	hashed := c.hashKey(key)
	c.lru.Remove(hashed)
	if err := c.takeEvictErr(); err != nil {
		return err
	}
	if err := c.backing.Delete(hashed); err != nil {
		return fmt.Errorf("remove overflow value: %w", err)
	}
	return nil
}

// Flush spills every resident entry to the overflow store. Used before
// checkpointing so the store holds the complete map.
func (c *BoundedCache[V]) Flush() error {
	for _, hashed := range c.lru.Keys() {
		value, ok := c.lru.Peek(hashed)
		if !ok {
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode resident value: %w", err)
		}
		if err := c.backing.Put(hashed, data); err != nil {
			return fmt.Errorf("spill resident value: %w", err)
		}
	}
	return nil
}

// Len returns the number of in-memory entries.
func (c *BoundedCache[V]) Len() int {
	return c.lru.Len()
}

// HashName returns the configured key-hash name.
func (c *BoundedCache[V]) HashName() string {
	return c.hashName
}

// FilterBytes serializes the membership filter.
func (c *BoundedCache[V]) FilterBytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.filter.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize membership filter: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFilter replaces the membership filter with a serialized one.
func (c *BoundedCache[V]) RestoreFilter(data []byte, hashName string) error {
	if hashName != c.hashName {
		return fmt.Errorf("key hash mismatch: checkpoint uses %q, cache uses %q", hashName, c.hashName)
	}
	filter := &bloom.BloomFilter{}
	if _, err := filter.ReadFrom(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("restore membership filter: %w", err)
	}
	c.filter = filter
	return nil
}

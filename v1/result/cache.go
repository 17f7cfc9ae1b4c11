package result

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/idemlock/go-idemlock/v1/metrics"
	"github.com/idemlock/go-idemlock/v1/store"
)

const defaultLocalTTL = time.Minute

// Cache stores completed operation results in a backing store, optionally
// fronted by an in-process ristretto cache.
type Cache[T any] struct {
	store    store.Store
	codec    Codec
	classify Classifier[T]

	local    *ristretto.Cache
	localTTL time.Duration
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithCodec sets the codec used to serialize results. JSON is the default.
func WithCodec[T any](c Codec) Option[T] {
	return func(rc *Cache[T]) {
		rc.codec = c
	}
}

// WithClassifier sets the success classifier applied before writes.
func WithClassifier[T any](c Classifier[T]) Option[T] {
	return func(rc *Cache[T]) {
		rc.classify = c
	}
}

// WithLocal fronts the backing store with an in-process ristretto cache.
// Results never change once cached, so the front can only serve what the
// store would have served; localTTL bounds how long a locally held copy may
// outlive its store entry. A non-positive localTTL uses one minute. If the
// front cache cannot be constructed the Cache degrades to store-only reads.
func WithLocal[T any](localTTL time.Duration) Option[T] {
	return func(rc *Cache[T]) {
		if localTTL <= 0 {
			localTTL = defaultLocalTTL
		}
		c, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e4,
			MaxCost:     1 << 20,
			BufferItems: 64,
		})
		if err != nil {
			return
		}
		rc.local = c
		rc.localTTL = localTTL
	}
}

// New returns a Cache over s.
func New[T any](s store.Store, opts ...Option[T]) *Cache[T] {
	rc := &Cache[T]{
		store:    s,
		codec:    JSONCodec{},
		classify: DefaultClassifier[T],
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Get returns the cached result for key. A hit means the operation already
// completed and must not run again.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if c.local != nil {
		if v, ok := c.local.Get(key); ok {
			metrics.CacheHitCounter.Inc()
			return v.(T), true, nil
		}
	}
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		metrics.StoreErrorCounter.Inc()
		return zero, false, err
	}
	if !ok {
		metrics.CacheMissCounter.Inc()
		return zero, false, nil
	}
	var v T
	if err := c.codec.Unmarshal(data, &v); err != nil {
		return zero, false, err
	}
	if c.local != nil {
		c.local.SetWithTTL(key, v, 1, c.localTTL)
	}
	metrics.CacheHitCounter.Inc()
	return v, true, nil
}

// Set stores value under key for ttl if the classifier accepts it. Results
// classified as failures are never written; the stored return reports
// whether a write happened.
func (c *Cache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) (stored bool, err error) {
	if !c.classify(value) {
		return false, nil
	}
	data, err := c.codec.Marshal(value)
	if err != nil {
		return false, err
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		metrics.StoreErrorCounter.Inc()
		return false, err
	}
	if c.local != nil {
		c.local.SetWithTTL(key, value, 1, c.localTTL)
		c.local.Wait()
	}
	return true, nil
}

// Close releases the in-process front cache, if any.
func (c *Cache[T]) Close() {
	if c.local != nil {
		c.local.Close()
	}
}

package store

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"time"
)

// defaultSweepInterval is the default period for removing expired entries.
const defaultSweepInterval = time.Minute

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemory implements Store with a local map. It mirrors the single-key
// atomicity of a real backend under one mutex, which makes it suitable for
// tests and single-process development setups.
type InMemory struct {
	mu      sync.Mutex
	entries map[string]memEntry

	sweepInterval time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// InMemoryOption configures an InMemory store.
type InMemoryOption func(*InMemory)

// WithSweepInterval sets the interval at which expired entries are removed.
// A zero or negative duration disables the background sweeper; expired
// entries are still treated as absent on read.
func WithSweepInterval(d time.Duration) InMemoryOption {
	return func(s *InMemory) {
		s.sweepInterval = d
	}
}

// NewInMemory returns a new in-memory store.
func NewInMemory(opts ...InMemoryOption) *InMemory {
	ctx, cancel := context.WithCancel(context.Background())
	s := &InMemory{
		entries:       make(map[string]memEntry),
		sweepInterval: defaultSweepInterval,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sweepInterval > 0 {
		s.wg.Add(1)
		go s.sweeper()
	}
	return s
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// SetNX implements Store.SetNX.
func (s *InMemory) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && !e.expired(time.Now()) {
		return false, nil
	}
	s.entries[key] = memEntry{value: value, expiresAt: expiry(ttl)}
	return true, nil
}

// Get implements Store.Get.
func (s *InMemory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set implements Store.Set.
func (s *InMemory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memEntry{value: value, expiresAt: expiry(ttl)}
	return nil
}

// CompareAndDelete implements Store.CompareAndDelete.
func (s *InMemory) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) || !bytes.Equal(e.value, expected) {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// CompareAndExpire implements Store.CompareAndExpire.
func (s *InMemory) CompareAndExpire(ctx context.Context, key string, expected []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) || !bytes.Equal(e.value, expected) {
		return false, nil
	}
	e.expiresAt = expiry(ttl)
	s.entries[key] = e
	return true, nil
}

// Expire implements Store.Expire.
func (s *InMemory) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		return false, nil
	}
	e.expiresAt = expiry(ttl)
	s.entries[key] = e
	return true, nil
}

// Incr implements Store.Incr. A key holding a non-integer value resets to 1.
func (s *InMemory) Incr(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	var exp time.Time
	if e, ok := s.entries[key]; ok && !e.expired(time.Now()) {
		n, _ = strconv.ParseInt(string(e.value), 10, 64)
		exp = e.expiresAt
	}
	n++
	s.entries[key] = memEntry{value: []byte(strconv.FormatInt(n, 10)), expiresAt: exp}
	return n, nil
}

// sweeper periodically removes expired entries.
func (s *InMemory) sweeper() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for k, e := range s.entries {
				if e.expired(now) {
					delete(s.entries, k)
				}
			}
			s.mu.Unlock()
		case <-s.ctx.Done():
			return
		}
	}
}

// Close terminates the background sweeper.
func (s *InMemory) Close() {
	s.cancel()
	s.wg.Wait()
}

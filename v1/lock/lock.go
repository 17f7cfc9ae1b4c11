package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	idemerrors "github.com/idemlock/go-idemlock/v1/errors"
	"github.com/idemlock/go-idemlock/v1/metrics"
	"github.com/idemlock/go-idemlock/v1/store"
)

// ErrZeroTTL is returned when a lock is requested without a TTL. A lock with
// no expiry would deadlock forever if its holder crashed.
var ErrZeroTTL = errors.New("lock: ttl must be positive")

// Manager acquires, renews and releases locks on a backing store.
type Manager struct {
	store  store.Store
	logger *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for stale-release warnings and store
// failures. The default logger discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager returns a new Manager backed by s.
func NewManager(s store.Store, opts ...Option) *Manager {
	m := &Manager{store: s, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire attempts to take the lock for key with the given TTL. On success
// it returns a freshly generated ownership token and true. ok=false means
// the lock is held by someone else; err is reserved for store failures.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		return "", false, ErrZeroTTL
	}
	token := uuid.NewString()
	ok, err := m.store.SetNX(ctx, key, []byte(token), ttl)
	if err != nil {
		metrics.StoreErrorCounter.Inc()
		m.logger.Error("lock acquire failed", zap.String("key", key), zap.Error(err))
		return "", false, err
	}
	if !ok {
		metrics.ConflictCounter.Inc()
		return "", false, nil
	}
	metrics.AcquireCounter.Inc()
	return token, true, nil
}

// Release deletes the lock for key only if token still owns it. A false
// return means the lock already expired and may have been reacquired by
// another owner; that is a no-op, not an error.
func (m *Manager) Release(ctx context.Context, key, token string) (bool, error) {
	ok, err := m.store.CompareAndDelete(ctx, key, []byte(token))
	if err != nil {
		metrics.StoreErrorCounter.Inc()
		m.logger.Error("lock release failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	if !ok {
		metrics.StaleReleaseCounter.Inc()
		m.logger.Warn("stale lock release ignored", zap.String("key", key))
	}
	return ok, nil
}

// Renew resets the TTL for key if token still owns it, for work that
// outlives its original TTL. The ownership check and the TTL reset happen in
// one round trip on the backend.
func (m *Manager) Renew(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrZeroTTL
	}
	ok, err := m.store.CompareAndExpire(ctx, key, []byte(token), ttl)
	if err != nil {
		metrics.StoreErrorCounter.Inc()
		m.logger.Error("lock renew failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return ok, nil
}

// IsUnavailable reports whether err stems from the backing store being
// unreachable rather than from contention.
func IsUnavailable(err error) bool {
	return errors.Is(err, idemerrors.ErrUnavailable)
}

package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/idemlock/go-idemlock/v1/lock"
)

const jitterFraction = 0.1

// Policy configures backoff between lock acquisition attempts. Policies are
// plain values passed in by the caller; there is no ambient default state.
type Policy struct {
	// Base is the delay after the first failed attempt.
	Base time.Duration
	// Cap bounds the delay regardless of attempt count.
	Cap time.Duration
	// MaxAttempts is the total number of acquisition attempts.
	MaxAttempts int
}

// DefaultPolicy is a reasonable starting point for task-queue style
// contention: 5 attempts, 100ms doubling up to 2s.
func DefaultPolicy() Policy {
	return Policy{Base: 100 * time.Millisecond, Cap: 2 * time.Second, MaxAttempts: 5}
}

// Delay returns the backoff before retrying after attempt (zero-based),
// min(Base*2^attempt, Cap) plus up to 10% uniform jitter.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.Base
	for i := 0; i < attempt && d < p.Cap; i++ {
		d *= 2
	}
	if d > p.Cap {
		d = p.Cap
	}
	if d > 0 {
		d += time.Duration(rand.Float64() * jitterFraction * float64(d))
	}
	return d
}

// AcquireWithRetry attempts to take the lock up to p.MaxAttempts times,
// sleeping p.Delay between attempts. ok=false after the last attempt means
// the lock stayed contended; err is reserved for store failures and context
// cancellation.
func AcquireWithRetry(ctx context.Context, m *lock.Manager, key string, ttl time.Duration, p Policy) (string, bool, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		token, ok, err := m.Acquire(ctx, key, ttl)
		if err != nil {
			return "", false, err
		}
		if ok {
			return token, true, nil
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", false, ctx.Err()
		}
	}
	return "", false, nil
}

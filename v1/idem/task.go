package idem

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/idemlock/go-idemlock/v1/keys"
	"github.com/idemlock/go-idemlock/v1/retry"
)

// Task is the explicit step-controller form of the executor, bound to one
// (operation, resourceID, params) triple. Drive it with ShouldExecute,
// CacheResult and RenewLock, and defer Close so the lock is released on
// every exit path, panics included.
type Task[T any] struct {
	runner *Runner[T]
	key    keys.Key

	token    string
	acquired bool

	cached    T
	hasCached bool

	mu            sync.Mutex
	closed        bool
	stopKeepAlive func()
}

// Begin derives the idempotency key, checks the result cache, and on a miss
// acquires the lock with retry. The cache is checked again after the lock
// outcome either way: a contender may have missed the first check, backed
// off, and only reached the lock after the previous holder completed. The
// error return is reserved for backing store failures.
func (r *Runner[T]) Begin(ctx context.Context, operation, resourceID string, params keys.Params) (*Task[T], error) {
	key := keys.Make(operation, resourceID, params)
	task := &Task[T]{runner: r, key: key}

	v, ok, err := r.results.Get(ctx, key.ResultKey())
	if err != nil {
		return nil, err
	}
	if ok {
		task.cached = v
		task.hasCached = true
		return task, nil
	}

	token, acquired, err := retry.AcquireWithRetry(ctx, r.locks, key.LockKey(), r.lockTTL, r.policy)
	if err != nil {
		return nil, err
	}
	if !acquired {
		// The holder may have finished while we were backing off.
		v, ok, err := r.results.Get(ctx, key.ResultKey())
		if err != nil {
			return nil, err
		}
		if ok {
			task.cached = v
			task.hasCached = true
		}
		return task, nil
	}

	// Holding the lock does not mean the work is still pending: the previous
	// holder may have cached its result and released while we were between
	// the first cache check and the acquisition. Re-check before executing,
	// and hand the lock straight back on a hit.
	v, ok, err = r.results.Get(ctx, key.ResultKey())
	if err != nil {
		_, _ = r.locks.Release(ctx, key.LockKey(), token)
		return nil, err
	}
	if ok {
		if _, rerr := r.locks.Release(ctx, key.LockKey(), token); rerr != nil {
			r.logger.Error("lock release failed",
				zap.String("key", key.String()), zap.Error(rerr))
		}
		task.cached = v
		task.hasCached = true
		return task, nil
	}

	task.token = token
	task.acquired = true
	return task, nil
}

// Key returns the derived idempotency key.
func (t *Task[T]) Key() keys.Key { return t.key }

// ShouldExecute reports whether the caller holds the lock and no cached
// result exists, i.e. the work must actually run.
func (t *Task[T]) ShouldExecute() bool {
	return t.acquired && !t.hasCached
}

// Cached returns the previously cached result, if any.
func (t *Task[T]) Cached() (T, bool) {
	return t.cached, t.hasCached
}

// Conflict reports whether the lock stayed contended with no cached result.
func (t *Task[T]) Conflict() bool {
	return !t.acquired && !t.hasCached
}

// Outcome translates the task state after Begin (or after CacheResult) into
// an Outcome value.
func (t *Task[T]) Outcome() Outcome[T] {
	switch {
	case t.hasCached && !t.acquired:
		return Outcome[T]{Status: StatusCached, Value: t.cached}
	case t.hasCached:
		return Outcome[T]{Status: StatusExecuted, Value: t.cached}
	default:
		return Outcome[T]{Status: StatusConflict}
	}
}

// CacheResult stores value for this task's key if it classifies as a
// success. Failures are never cached; stored reports whether a write
// happened.
func (t *Task[T]) CacheResult(ctx context.Context, value T) (stored bool, err error) {
	stored, err = t.runner.results.Set(ctx, t.key.ResultKey(), value, t.runner.resultTTL)
	if err != nil {
		return false, err
	}
	if stored {
		t.cached = value
		t.hasCached = true
	}
	return stored, nil
}

// RenewLock resets the lock TTL for long-running work. A false return means
// ownership was already lost to expiry.
func (t *Task[T]) RenewLock(ctx context.Context) (bool, error) {
	if !t.acquired {
		return false, nil
	}
	return t.runner.locks.Renew(ctx, t.key.LockKey(), t.token, t.runner.lockTTL)
}

// KeepAlive renews the lock every interval until stop is called, the context
// is cancelled, the task is closed, or a renewal reports lost ownership.
func (t *Task[T]) KeepAlive(ctx context.Context, interval time.Duration) (stop func()) {
	t.mu.Lock()
	if !t.acquired || t.closed || t.stopKeepAlive != nil {
		t.mu.Unlock()
		return func() {}
	}
	ch := make(chan struct{})
	var once sync.Once
	stop = func() {
		once.Do(func() { close(ch) })
	}
	t.stopKeepAlive = stop
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ok, err := t.RenewLock(ctx)
				if err != nil {
					t.runner.logger.Error("lock renewal failed",
						zap.String("key", t.key.String()), zap.Error(err))
					continue
				}
				if !ok {
					t.runner.logger.Warn("lock ownership lost during keepalive",
						zap.String("key", t.key.String()))
					return
				}
			case <-ch:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return stop
}

// Close releases the lock if this task holds it. It is idempotent and safe
// to defer; a stale token at release time is a warning, never an error that
// masks the work's own outcome.
func (t *Task[T]) Close(ctx context.Context) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	stop := t.stopKeepAlive
	t.stopKeepAlive = nil
	t.mu.Unlock()
	if stop != nil {
		stop()
	}

	if !t.acquired {
		return
	}
	if _, err := t.runner.locks.Release(ctx, t.key.LockKey(), t.token); err != nil {
		t.runner.logger.Error("lock release failed",
			zap.String("key", t.key.String()), zap.Error(err))
	}
}

package lock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/idemlock/go-idemlock/v1/store"
)

func newRedisManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return NewManager(store.NewRedis(client)), mr
}

func TestAcquireReleaseReacquire(t *testing.T) {
	m, _ := newRedisManager(t)
	ctx := context.Background()

	token, ok, err := m.Acquire(ctx, "k", time.Minute)
	if err != nil || !ok || token == "" {
		t.Fatalf("acquire: ok %v token %q err %v", ok, token, err)
	}
	if _, ok, _ := m.Acquire(ctx, "k", time.Minute); ok {
		t.Fatal("second acquire must fail while held")
	}
	if ok, err := m.Release(ctx, "k", token); err != nil || !ok {
		t.Fatalf("release: ok %v err %v", ok, err)
	}
	if _, ok, _ := m.Acquire(ctx, "k", time.Minute); !ok {
		t.Fatal("acquire after release must succeed")
	}
}

func TestReleaseRequiresOwnership(t *testing.T) {
	m, _ := newRedisManager(t)
	ctx := context.Background()

	token, _, _ := m.Acquire(ctx, "k", time.Minute)
	if ok, err := m.Release(ctx, "k", "foreign-token"); err != nil || ok {
		t.Fatalf("foreign release: ok %v err %v", ok, err)
	}
	// The legitimate holder's record must be intact.
	if _, ok, _ := m.Acquire(ctx, "k", time.Minute); ok {
		t.Fatal("lock vanished after failed foreign release")
	}
	if ok, _ := m.Release(ctx, "k", token); !ok {
		t.Fatal("owner release must succeed")
	}
}

func TestStaleReleaseAfterExpiry(t *testing.T) {
	m, mr := newRedisManager(t)
	ctx := context.Background()

	oldToken, _, _ := m.Acquire(ctx, "k", time.Minute)
	mr.FastForward(2 * time.Minute)

	newToken, ok, _ := m.Acquire(ctx, "k", time.Minute)
	if !ok {
		t.Fatal("acquire after TTL expiry must succeed")
	}
	if newToken == oldToken {
		t.Fatal("tokens must be unique per acquisition")
	}
	// Old holder coming back must not free the new holder's lock.
	if ok, err := m.Release(ctx, "k", oldToken); err != nil || ok {
		t.Fatalf("stale release: ok %v err %v", ok, err)
	}
	if _, ok, _ := m.Acquire(ctx, "k", time.Minute); ok {
		t.Fatal("new holder's lock was lost to a stale release")
	}
}

func TestRenew(t *testing.T) {
	m, mr := newRedisManager(t)
	ctx := context.Background()

	token, _, _ := m.Acquire(ctx, "k", time.Minute)
	if ok, err := m.Renew(ctx, "k", token, time.Hour); err != nil || !ok {
		t.Fatalf("renew: ok %v err %v", ok, err)
	}
	mr.FastForward(30 * time.Minute)
	if _, ok, _ := m.Acquire(ctx, "k", time.Minute); ok {
		t.Fatal("renewed lock expired at original TTL")
	}
	if ok, _ := m.Renew(ctx, "k", "foreign-token", time.Hour); ok {
		t.Fatal("foreign renew must fail")
	}
	mr.FastForward(2 * time.Hour)
	if ok, _ := m.Renew(ctx, "k", token, time.Hour); ok {
		t.Fatal("renew after expiry must fail")
	}
}

func TestZeroTTLRejected(t *testing.T) {
	m, _ := newRedisManager(t)
	if _, _, err := m.Acquire(context.Background(), "k", 0); err != ErrZeroTTL {
		t.Fatalf("expected ErrZeroTTL, got %v", err)
	}
}

func TestMutualExclusion(t *testing.T) {
	m, _ := newRedisManager(t)
	ctx := context.Background()

	const contenders = 32
	var wins atomic.Int64
	var g errgroup.Group
	for i := 0; i < contenders; i++ {
		g.Go(func() error {
			_, ok, err := m.Acquire(ctx, "k", time.Minute)
			if err != nil {
				return err
			}
			if ok {
				wins.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if n := wins.Load(); n != 1 {
		t.Fatalf("expected exactly one winner, got %d", n)
	}
}

func TestIsUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	m := NewManager(store.NewRedis(client))
	mr.Close()
	_ = client.Close()

	_, _, err = m.Acquire(context.Background(), "k", time.Minute)
	if err == nil || !IsUnavailable(err) {
		t.Fatalf("expected store-unavailable error, got %v", err)
	}
}

func TestMemoryStoreManager(t *testing.T) {
	s := store.NewInMemory(store.WithSweepInterval(0))
	defer s.Close()
	m := NewManager(s)
	ctx := context.Background()

	token, ok, err := m.Acquire(ctx, "k", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire: ok %v err %v", ok, err)
	}
	if ok, _ := m.Release(ctx, "k", token); !ok {
		t.Fatal("release failed")
	}
}

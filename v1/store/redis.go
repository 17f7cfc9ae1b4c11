package store

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	idemerrors "github.com/idemlock/go-idemlock/v1/errors"
)

const defaultRedisOpTimeout = 5 * time.Second

var compareAndDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

var compareAndExpireScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
    return 0
end
`)

// Redis implements Store using a Redis backend.
type Redis struct {
	client  *redis.Client
	timeout time.Duration
}

// RedisOption configures a Redis store.
type RedisOption func(*redisOptions)

type redisOptions struct {
	timeout time.Duration
}

// WithTimeout sets the per-operation timeout for Redis calls.
func WithTimeout(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.timeout = d
	}
}

// NewRedis returns a new Redis store using the provided client.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	o := redisOptions{timeout: defaultRedisOpTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Redis{client: client, timeout: o.timeout}
}

// mapErr translates transport failures into the sentinel taxonomy so callers
// never mistake an outage for lock contention.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case stdErrors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", idemerrors.ErrUnavailable, idemerrors.ErrTimeout)
	case stdErrors.Is(err, context.Canceled):
		return err
	case stdErrors.Is(err, redis.ErrClosed):
		return fmt.Errorf("%w: %w", idemerrors.ErrUnavailable, idemerrors.ErrConnectionClosed)
	default:
		return fmt.Errorf("%w: %w", idemerrors.ErrUnavailable, err)
	}
}

// SetNX implements Store.SetNX.
func (s *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ok, err := s.client.SetNX(cctx, key, value, ttl).Result()
	if err != nil {
		return false, mapErr(err)
	}
	return ok, nil
}

// Get implements Store.Get.
func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	data, err := s.client.Get(cctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, mapErr(err)
	}
	return data, true, nil
}

// Set implements Store.Set.
func (s *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return mapErr(s.client.Set(cctx, key, value, ttl).Err())
}

// CompareAndDelete implements Store.CompareAndDelete. The comparison and the
// delete run as one Lua script, so a holder that lost its lock to TTL expiry
// can never delete a lock legitimately reacquired by someone else.
func (s *Redis) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := compareAndDeleteScript.Run(cctx, s.client, []string{key}, expected).Int()
	if err != nil && err != redis.Nil {
		return false, mapErr(err)
	}
	return n == 1, nil
}

// CompareAndExpire implements Store.CompareAndExpire.
func (s *Redis) CompareAndExpire(ctx context.Context, key string, expected []byte, ttl time.Duration) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := compareAndExpireScript.Run(cctx, s.client, []string{key}, expected, ttl.Milliseconds()).Int()
	if err != nil && err != redis.Nil {
		return false, mapErr(err)
	}
	return n == 1, nil
}

// Expire implements Store.Expire.
func (s *Redis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ok, err := s.client.Expire(cctx, key, ttl).Result()
	if err != nil {
		return false, mapErr(err)
	}
	return ok, nil
}

// Incr implements Store.Incr.
func (s *Redis) Incr(ctx context.Context, key string) (int64, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.client.Incr(cctx, key).Result()
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

package idem

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/idemlock/go-idemlock/v1/keys"
	"github.com/idemlock/go-idemlock/v1/lock"
	"github.com/idemlock/go-idemlock/v1/result"
	"github.com/idemlock/go-idemlock/v1/retry"
	"github.com/idemlock/go-idemlock/v1/store"
)

var tracer = otel.Tracer("github.com/idemlock/go-idemlock/v1/idem")

const (
	// DefaultLockTTL bounds how long a crashed holder can block successors.
	DefaultLockTTL = 30 * time.Second
	// DefaultResultTTL keeps results long enough for late retries to
	// short-circuit.
	DefaultResultTTL = 24 * time.Hour
)

// Status reports how an outcome was produced.
type Status int

const (
	// StatusExecuted means the work ran in this call.
	StatusExecuted Status = iota
	// StatusCached means a previously cached result was returned and the
	// work did not run.
	StatusCached
	// StatusConflict means the lock stayed contended, no cached result
	// exists, and nothing was executed. Callers may retry later.
	StatusConflict
)

func (s Status) String() string {
	switch s {
	case StatusExecuted:
		return "executed"
	case StatusCached:
		return "cached"
	case StatusConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Outcome is the non-error result of an idempotent run. Conflict is a value,
// not an error: contention is an expected condition.
type Outcome[T any] struct {
	Status Status
	Value  T
}

// Runner executes operations at most once concurrently per idempotency key.
type Runner[T any] struct {
	locks   *lock.Manager
	results *result.Cache[T]

	lockTTL   time.Duration
	resultTTL time.Duration
	policy    retry.Policy

	logger       *zap.Logger
	traceEnabled bool
}

// Option configures a Runner.
type Option[T any] func(*Runner[T])

// WithLockTTL sets the lock TTL. Pick a value comfortably above the
// operation's expected duration, or renew from inside the work.
func WithLockTTL[T any](d time.Duration) Option[T] {
	return func(r *Runner[T]) {
		r.lockTTL = d
	}
}

// WithResultTTL sets how long cached results are kept.
func WithResultTTL[T any](d time.Duration) Option[T] {
	return func(r *Runner[T]) {
		r.resultTTL = d
	}
}

// WithRetryPolicy sets the backoff policy for contended acquisitions.
func WithRetryPolicy[T any](p retry.Policy) Option[T] {
	return func(r *Runner[T]) {
		r.policy = p
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger[T any](l *zap.Logger) Option[T] {
	return func(r *Runner[T]) {
		r.logger = l
	}
}

// WithTracing enables OpenTelemetry spans around Run and Begin.
func WithTracing[T any]() Option[T] {
	return func(r *Runner[T]) {
		r.traceEnabled = true
	}
}

// New returns a Runner using the provided lock manager and result cache.
func New[T any](locks *lock.Manager, results *result.Cache[T], opts ...Option[T]) *Runner[T] {
	r := &Runner[T]{
		locks:     locks,
		results:   results,
		lockTTL:   DefaultLockTTL,
		resultTTL: DefaultResultTTL,
		policy:    retry.DefaultPolicy(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromStore builds a Runner with a default lock manager and result cache
// over the same backing store.
func NewFromStore[T any](s store.Store, opts ...Option[T]) *Runner[T] {
	return New[T](lock.NewManager(s), result.New[T](s), opts...)
}

// Run executes work at most once per (operation, resourceID, params) key.
// A cached result from an earlier completion is returned without executing;
// if the lock cannot be acquired after retries and no result appeared in the
// meantime, Run returns a conflict outcome without executing. Errors from
// work propagate unchanged after the lock is released and are never cached.
func (r *Runner[T]) Run(ctx context.Context, operation, resourceID string, params keys.Params, work func(context.Context) (T, error)) (Outcome[T], error) {
	var span trace.Span
	if r.traceEnabled {
		ctx, span = tracer.Start(ctx, "Idem.Run")
		span.SetAttributes(
			attribute.String("idemlock.operation", operation),
			attribute.String("idemlock.resource_id", resourceID),
		)
		defer span.End()
	}

	var zero Outcome[T]
	task, err := r.Begin(ctx, operation, resourceID, params)
	if err != nil {
		return zero, err
	}
	// Release must survive a cancelled caller context.
	defer task.Close(context.WithoutCancel(ctx))

	if !task.ShouldExecute() {
		out := task.Outcome()
		if r.traceEnabled {
			span.SetAttributes(attribute.String("idemlock.status", out.Status.String()))
		}
		return out, nil
	}

	value, err := work(ctx)
	if err != nil {
		return zero, err
	}
	if _, cerr := task.CacheResult(ctx, value); cerr != nil {
		// The work already completed; losing the cache write only costs a
		// future re-execution attempt.
		r.logger.Error("caching result failed",
			zap.String("operation", operation),
			zap.String("resource_id", resourceID),
			zap.Error(cerr))
	}
	if r.traceEnabled {
		span.SetAttributes(attribute.String("idemlock.status", StatusExecuted.String()))
	}
	return Outcome[T]{Status: StatusExecuted, Value: value}, nil
}

// Wrap turns a work function into its idempotent equivalent for a fixed
// operation name.
func Wrap[T any](r *Runner[T], operation string, work func(ctx context.Context, resourceID string, params keys.Params) (T, error)) func(ctx context.Context, resourceID string, params keys.Params) (Outcome[T], error) {
	return func(ctx context.Context, resourceID string, params keys.Params) (Outcome[T], error) {
		return r.Run(ctx, operation, resourceID, params, func(ctx context.Context) (T, error) {
			return work(ctx, resourceID, params)
		})
	}
}

package result

// Classifier decides whether a payload represents a successful outcome worth
// caching. Callers supply their own classifier when the default convention
// does not fit their payload shape.
type Classifier[T any] func(T) bool

// Failer is the convention the default classifier recognizes: payloads that
// can report their own failure.
type Failer interface {
	Failed() bool
}

// DefaultClassifier treats a payload as successful unless it implements
// Failer and reports failure. Ambiguous payloads count as success, biasing
// toward idempotency over re-execution.
func DefaultClassifier[T any](v T) bool {
	if f, ok := any(v).(Failer); ok {
		return !f.Failed()
	}
	return true
}

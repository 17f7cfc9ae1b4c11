// Package keys derives deterministic idempotency keys from an operation name,
// a resource identifier and a set of named parameters. The same inputs always
// produce the same key regardless of parameter insertion order.
package keys

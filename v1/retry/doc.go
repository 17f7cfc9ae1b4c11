// Package retry wraps lock acquisition with bounded exponential backoff and
// jitter, so contending workers back off instead of stampeding the store.
package retry

// Package result stores the outcomes of completed operations keyed by
// idempotency key. Only results classified as successful are ever written,
// so a retried invocation either replays a genuine success or re-executes.
// Cached results are immutable once written, which makes the optional
// in-process front cache safe.
package result

// Package lock implements distributed mutual exclusion over a shared
// key-value store. Each acquisition generates a fresh ownership token, and
// release verifies the token atomically, so a holder that lost its lock to
// TTL expiry can never delete a successor's lock. Locks always carry a TTL
// to avoid permanent deadlock after a holder crash.
package lock

// Package store provides the thin key-value client the locking and caching
// layers coordinate through. Any backend exposing atomic set-if-absent and
// compare-and-delete can implement Store; Redis and in-memory backends are
// included.
package store

// Package idem orchestrates idempotent execution: check the result cache,
// acquire the lock with retry, run the work, cache a successful result and
// release the lock on every exit path. It is exposed both as a
// function-wrapping decorator (Wrap, Run) and as an explicit step controller
// (Begin returning a Task to drive with defer-guaranteed release).
package idem

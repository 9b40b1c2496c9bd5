package lock

import "context"

// Lock defines an exclusive, non-blocking lock over a named resource.
//
// Locks are short-lived handles over a process-wide registry: two handles
// built on the same key share the same underlying state.
type Lock interface {
	Key() string

	// TryLock acquires the lock or fails immediately if it is already held.
	TryLock(context.Context) error
	// Unlock releases the lock.
	Unlock(context.Context) error
}

// Package mutation coordinates optimistic cache writes around platform
// mutations and composes them with notification, logging and form error
// handling.
package mutation

import (
	"context"

	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
)

// Snapshot is the rollback context captured by OnMutate.
// PreviousData is nil when the key held no value of type T.
type Snapshot[T any] struct {
	PreviousData *T
}

// Coordinator applies an optimistic update to one cache key and undoes it
// on failure.
//
// The cache value under key is expected to be a T. A value of another type
// is treated as absent.
type Coordinator[T, V any] struct {
	cache   opsconnect.CacheStore
	key     string
	updater func(prev T, vars V) T
}

// NewCoordinator creates a coordinator for key. updater must be pure: it
// receives the current value and returns the optimistic one without
// modifying prev.
func NewCoordinator[T, V any](cache opsconnect.CacheStore, key string, updater func(prev T, vars V) T) *Coordinator[T, V] {
	return &Coordinator[T, V]{
		cache:   cache,
		key:     key,
		updater: updater,
	}
}

// Key returns the cache key the coordinator writes.
func (c *Coordinator[T, V]) Key() string {
	return c.key
}

// OnMutate cancels in-flight fetches for the key, snapshots the current
// value and, if one exists, installs updater(prev, vars).
//
// Cancellation always completes (or fails) before the snapshot is read. A
// cancellation error does not stop the optimistic write.
func (c *Coordinator[T, V]) OnMutate(ctx context.Context, vars V) (snap Snapshot[T]) {
	defer func() { _ = recover() }()

	if c.cache == nil {
		return snap
	}
	_ = c.cache.CancelPending(ctx, c.key)

	raw, exists := c.cache.Get(c.key)
	if !exists {
		return snap
	}
	prev, ok := raw.(T)
	if !ok {
		return snap
	}
	snap.PreviousData = &prev

	if c.updater != nil {
		c.cache.Set(c.key, c.updater(prev, vars))
	}
	return snap
}

// OnError restores the snapshot taken by OnMutate, if it captured a value.
func (c *Coordinator[T, V]) OnError(_ error, _ V, snap Snapshot[T]) {
	defer func() { _ = recover() }()

	if c.cache == nil || snap.PreviousData == nil {
		return
	}
	c.cache.Set(c.key, *snap.PreviousData)
}

// OnSettled invalidates the key so the next read reconciles with the server.
func (c *Coordinator[T, V]) OnSettled() {
	defer func() { _ = recover() }()

	if c.cache == nil {
		return
	}
	c.cache.Invalidate(c.key)
}

// Begin runs OnMutate and returns a function that rolls the write back.
func (c *Coordinator[T, V]) Begin(ctx context.Context, vars V) (rollback func(err error)) {
	snap := c.OnMutate(ctx, vars)
	return func(err error) {
		c.OnError(err, vars, snap)
	}
}

// Optimistic is the part of a coordinator a Mutation drives. It hides the
// cached value type so one wrapper type serves every cache shape.
type Optimistic[V any] interface {
	Begin(ctx context.Context, vars V) (rollback func(err error))
	OnSettled()
}

// Verify that Coordinator implements Optimistic
var _ Optimistic[struct{}] = (*Coordinator[int, struct{}])(nil)

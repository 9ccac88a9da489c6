package sdk

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"

	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
	"github.com/marwen-abid/opsconnect-sdk-go/notify"
	"github.com/marwen-abid/opsconnect-sdk-go/query"
)

// QueryHandle is one cached query. The decoded data lives in the client's
// cache under the handle's key, so optimistic writes to that key are what
// Raw and Result report.
type QueryHandle[T any] struct {
	client *Client
	key    string
	op     opsconnect.Operation
	vars   map[string]any

	mu      sync.RWMutex
	phase   query.Phase
	err     error
	outcome *notify.Outcome

	background sync.WaitGroup
}

// NewQuery creates a handle for op cached under key. Nothing is fetched
// until Fetch or Refetch is called.
func NewQuery[T any](c *Client, key string, op opsconnect.Operation, vars map[string]any) *QueryHandle[T] {
	return &QueryHandle[T]{
		client: c,
		key:    key,
		op:     op,
		vars:   vars,
		phase:  query.PhaseIdle,
	}
}

// Key returns the cache key.
func (q *QueryHandle[T]) Key() string { return q.key }

// Phase returns the current lifecycle phase.
func (q *QueryHandle[T]) Phase() query.Phase {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.phase
}

// Outcome returns how the last failure was classified, if the last fetch
// failed.
func (q *QueryHandle[T]) Outcome() (notify.Outcome, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.outcome == nil {
		return notify.Outcome{}, false
	}
	return *q.outcome, true
}

// Fetch runs the query and stores the decoded data in the cache.
//
// Failures are reported to the client's dispatcher and kept on the handle
// until the next successful fetch. A fetch cancelled by an optimistic
// mutation on the same key is not a failure: the handle returns to the phase
// it had before and the cache keeps the optimistic value.
func (q *QueryHandle[T]) Fetch(ctx context.Context) error {
	prev, err := q.begin()
	if err != nil {
		return err
	}

	_, fetchErr := q.client.fetch(ctx, q.key, q.op, q.vars, q.store)
	cancelled := fetchErr != nil && ctx.Err() == nil && stderrors.Is(fetchErr, context.Canceled)
	if cancelled {
		fetchErr = nil
	}
	return q.settle(prev, fetchErr, cancelled)
}

// store decodes data and writes it to the cache unless the fetch has been
// cancelled.
func (q *QueryHandle[T]) store(fetchCtx context.Context, data json.RawMessage) error {
	var v T
	if err := decode(data, &v); err != nil {
		return err.With("operationName", q.op.Name).With("key", q.key)
	}
	if err := fetchCtx.Err(); err != nil {
		return err
	}
	q.client.cache.Set(q.key, v)
	return nil
}

// begin moves the handle into loading or refetching and returns the phase it
// left. A handle already in flight stays where it is.
func (q *QueryHandle[T]) begin() (query.Phase, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	from := q.phase
	var to query.Phase
	switch from {
	case query.PhaseLoading, query.PhaseRefetching:
		return from, nil
	case query.PhaseSuccess:
		to = query.PhaseRefetching
	case query.PhaseError:
		to = query.PhaseLoading
		if _, ok := q.cached(); ok {
			to = query.PhaseRefetching
		}
	default:
		to = query.PhaseLoading
	}

	if err := query.ValidateTransition(from, to); err != nil {
		return from, err
	}
	q.phase = to
	return from, nil
}

// settle records the result of a fetch that started from prev.
func (q *QueryHandle[T]) settle(prev query.Phase, err error, cancelled bool) error {
	var outcome *notify.Outcome
	if err != nil {
		o := q.client.dispatcher.Handle(err, notify.ErrorContext{
			Operation: q.op.Name,
			Component: "query",
			Fields:    map[string]any{"key": q.key},
		})
		outcome = &o
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var to query.Phase
	switch {
	case cancelled:
		to = prev
		if prev == query.PhaseLoading || prev == query.PhaseRefetching {
			to = q.phase
		}
	case err != nil:
		to = query.PhaseError
		q.err = err
		q.outcome = outcome
	default:
		to = query.PhaseSuccess
		q.err = nil
		q.outcome = nil
	}

	if q.phase == to {
		return err
	}
	if vErr := query.ValidateTransition(q.phase, to); vErr != nil {
		return vErr
	}
	q.phase = to
	return err
}

func (q *QueryHandle[T]) cached() (T, bool) {
	var zero T
	v, ok := q.client.cache.Get(q.key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Raw returns the handle's fetch state.
func (q *QueryHandle[T]) Raw() query.RawState[T] {
	q.mu.RLock()
	phase, err := q.phase, q.err
	q.mu.RUnlock()

	raw := query.RawState[T]{Refetch: q.Refetch}
	raw.IsLoading, raw.IsFetching = phase.Flags()
	if v, ok := q.cached(); ok {
		raw.Data = &v
	}
	if err != nil {
		raw.Error = err
	}
	return raw
}

// Result returns the adapted view of Raw.
func (q *QueryHandle[T]) Result() query.Result[T] {
	return query.Adapt(q.Raw())
}

// Refetch starts a fetch in the background and returns immediately.
func (q *QueryHandle[T]) Refetch() error {
	q.background.Add(1)
	go func() {
		defer q.background.Done()
		_ = q.Fetch(context.Background())
	}()
	return nil
}

// Wait blocks until every background fetch has finished.
func (q *QueryHandle[T]) Wait() {
	q.background.Wait()
}

// Watch refetches in the background whenever the handle's key is
// invalidated. The returned function stops watching.
func (q *QueryHandle[T]) Watch() (stop func()) {
	return q.client.cache.OnInvalidate(func(key string) {
		if key == q.key {
			_ = q.Refetch()
		}
	})
}

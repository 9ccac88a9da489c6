// Package observer watches query results in the background. It refetches a
// source on an interval and surfaces each adapted result through typed
// handlers with filtering capabilities.
//
// The Poller enables dashboards and long-running jobs to react to platform
// state (open alerts, site health) without building their own refresh loop.
// It backs off exponentially while fetches fail and resets once they succeed.
//
// Example usage:
//
//	alerts := sdk.NewQuery[AlertList](client, "alerts:open", openAlertsOp, nil)
//	p := observer.NewPoller[AlertList](alerts,
//	    observer.WithInterval(15*time.Second),
//	    observer.WithLogger(logger),
//	)
//
//	p.OnResult(func(res query.Result[AlertList]) error {
//	    render(res.Data)
//	    return nil
//	}, observer.WithData[AlertList]())
//
//	if err := p.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package observer

import (
	"context"

	"github.com/marwen-abid/opsconnect-sdk-go/query"
)

// Source is something the observer can refetch and read. *sdk.QueryHandle
// implements it.
type Source[T any] interface {
	Fetch(ctx context.Context) error
	Result() query.Result[T]
}

// Handler processes one adapted result. Handlers are called sequentially
// after every fetch. A returned error is logged and polling continues.
type Handler[T any] func(query.Result[T]) error

// Filter decides whether a result is passed to a handler.
type Filter[T any] func(query.Result[T]) bool

// handlerEntry pairs a handler with its filters
type handlerEntry[T any] struct {
	handler Handler[T]
	filters []Filter[T]
}

// Observer watches a source and calls registered handlers with its results.
type Observer[T any] interface {
	// OnResult registers a handler with optional filters. Filters are ANDed.
	OnResult(handler Handler[T], filters ...Filter[T])

	// Start polls until the context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop ends the current run. It's safe to call Stop multiple times.
	Stop() error
}

// WithData passes only results that carry data.
func WithData[T any]() Filter[T] {
	return func(res query.Result[T]) bool {
		return res.Data != nil
	}
}

// WithErrors passes only failed results.
func WithErrors[T any]() Filter[T] {
	return func(res query.Result[T]) bool {
		return res.HasError()
	}
}

// SkipLoading drops results that are still waiting for their first data.
func SkipLoading[T any]() Filter[T] {
	return func(res query.Result[T]) bool {
		return !res.Loading
	}
}

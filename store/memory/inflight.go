package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/marwen-abid/opsconnect-sdk-go/errors"
)

// fetchEntry is one tracked in-flight fetch.
type fetchEntry struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// inflightSet tracks in-flight fetches per cache key.
// Access is protected by sync.Mutex for thread safety.
type inflightSet struct {
	fetches map[string]map[*fetchEntry]struct{}
	mu      sync.Mutex
}

func newInflightSet() *inflightSet {
	return &inflightSet{
		fetches: make(map[string]map[*fetchEntry]struct{}),
	}
}

// track records a fetch for key and returns its cancellable context and the
// function that marks it finished. done is safe to call more than once.
func (s *inflightSet) track(parent context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	f := &fetchEntry{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if s.fetches[key] == nil {
		s.fetches[key] = make(map[*fetchEntry]struct{})
	}
	s.fetches[key][f] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	done := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fetches[key], f)
			if len(s.fetches[key]) == 0 {
				delete(s.fetches, key)
			}
			s.mu.Unlock()

			cancel()
			close(f.done)
		})
	}
	return ctx, done
}

// cancel cancels all fetches for key and waits for them to finish.
// Cancellation is cooperative: if a fetch ignores its context, cancel
// returns CANCEL_TIMEOUT once ctx ends.
func (s *inflightSet) cancel(ctx context.Context, key string) error {
	s.mu.Lock()
	pending := make([]*fetchEntry, 0, len(s.fetches[key]))
	for f := range s.fetches[key] {
		pending = append(pending, f)
	}
	s.mu.Unlock()

	for _, f := range pending {
		f.cancel()
	}
	for _, f := range pending {
		select {
		case <-f.done:
		case <-ctx.Done():
			return errors.NewCacheError(
				errors.CANCEL_TIMEOUT,
				fmt.Sprintf("in-flight fetch for %q did not stop", key),
				ctx.Err(),
			).With("key", key)
		}
	}
	return nil
}

func (s *inflightSet) pending(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.fetches[key])
}

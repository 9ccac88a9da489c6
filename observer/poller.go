package observer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marwen-abid/opsconnect-sdk-go/config"
	"github.com/marwen-abid/opsconnect-sdk-go/errors"
	"github.com/marwen-abid/opsconnect-sdk-go/query"
)

// settings holds Poller configuration.
type settings struct {
	interval       time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *zap.Logger
}

// Option configures a Poller.
type Option func(*settings)

// WithInterval sets the delay between successful fetches (default: 30s).
func WithInterval(d time.Duration) Option {
	return func(s *settings) {
		s.interval = d
	}
}

// WithBackoff sets the initial and maximum delay after failed fetches.
// Default is 1s initial, 60s max with exponential growth.
func WithBackoff(initial, max time.Duration) Option {
	return func(s *settings) {
		s.initialBackoff = initial
		s.maxBackoff = max
	}
}

// WithPollingConfig applies the polling section of cfg.
func WithPollingConfig(cfg *config.Config) Option {
	return func(s *settings) {
		if cfg == nil {
			return
		}
		s.interval = cfg.GetPollInterval()
		s.initialBackoff, s.maxBackoff = cfg.GetPollBackoff()
	}
}

// WithLogger sets the logger for fetch and handler failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// Poller implements Observer by refetching a Source on an interval.
type Poller[T any] struct {
	source   Source[T]
	handlers []handlerEntry[T]
	settings

	// Synchronization
	mu       sync.RWMutex
	stopChan chan struct{}
	stopped  bool
	running  bool
}

// NewPoller creates a Poller for source.
func NewPoller[T any](source Source[T], opts ...Option) *Poller[T] {
	p := &Poller[T]{
		source: source,
		settings: settings{
			interval:       30 * time.Second,
			initialBackoff: 1 * time.Second,
			maxBackoff:     60 * time.Second,
			logger:         zap.NewNop(),
		},
		stopChan: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(&p.settings)
	}

	return p
}

// OnResult registers a handler with optional filters. Filters are ANDed
// together. Handlers are called sequentially after each fetch.
func (p *Poller[T]) OnResult(handler Handler[T], filters ...Filter[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handlers = append(p.handlers, handlerEntry[T]{
		handler: handler,
		filters: filters,
	})
}

// Start fetches the source, delivers its result and waits, until the
// context is cancelled or Stop is called. After a failed fetch it waits
// the current backoff instead of the interval.
func (p *Poller[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.NewObserverError(errors.OBSERVER_RUNNING, "poller already running", nil)
	}
	p.running = true
	stop := p.stopChan
	p.mu.Unlock()

	// A stopped poller can be started again once its run has ended.
	defer func() {
		p.mu.Lock()
		p.running = false
		if p.stopped {
			p.stopChan = make(chan struct{})
			p.stopped = false
		}
		p.mu.Unlock()
	}()

	// Exponential backoff state
	backoff := p.currentSettings().initialBackoff
	attempt := 0

	for {
		// Check if stopped or context cancelled
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := p.source.Fetch(ctx)
		p.deliver()

		cur := p.currentSettings()
		wait := cur.interval
		if err != nil {
			attempt++
			wait = backoff
			cur.logger.Warn("poll failed",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", backoff),
				zap.Error(errors.NewObserverError(errors.POLL_FAILED, "source fetch failed", err)),
			)

			// Increase backoff exponentially: 1s, 2s, 4s, 8s, ..., max 60s
			backoff *= 2
			if backoff > cur.maxBackoff {
				backoff = cur.maxBackoff
			}
		} else {
			backoff = cur.initialBackoff
			attempt = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-stop:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// SetInterval changes the delay between successful fetches. It takes effect
// after the current wait.
func (p *Poller[T]) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.interval = d
	p.mu.Unlock()
}

func (p *Poller[T]) currentSettings() settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// Stop ends the current run. It's safe to call Stop multiple times. Once
// Start has returned, the poller can be started again.
func (p *Poller[T]) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.stopped {
		close(p.stopChan)
		p.stopped = true
	}
	return nil
}

// deliver runs all registered handlers whose filters pass for the current
// result.
func (p *Poller[T]) deliver() {
	res := p.source.Result()

	p.mu.RLock()
	handlers := p.handlers
	logger := p.logger
	p.mu.RUnlock()

	for i, entry := range handlers {
		// Check all filters (AND logic)
		passesFilters := true
		for _, filter := range entry.filters {
			if !filter(res) {
				passesFilters = false
				break
			}
		}

		if !passesFilters {
			continue
		}

		if err := p.call(entry.handler, res); err != nil {
			// Log error but continue processing other handlers
			logger.Error("observer handler failed", zap.Int("handler", i), zap.Error(err))
		}
	}
}

// call runs handler, converting a panic into a HANDLER_PANIC error.
func (p *Poller[T]) call(handler Handler[T], res query.Result[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewObserverError(errors.HANDLER_PANIC, fmt.Sprintf("handler panicked: %v", r), nil)
		}
	}()
	return handler(res)
}

// Compile-time interface check
var _ Observer[struct{}] = (*Poller[struct{}])(nil)

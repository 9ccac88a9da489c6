package net

import (
	"sync"
	"time"
)

// circuitBreaker opens after failureLimit consecutive failed requests and
// lets a probe through once resetTimeout has elapsed since the last failure.
type circuitBreaker struct {
	mu           sync.RWMutex
	failures     int
	lastFailTime time.Time
	failureLimit int
	resetTimeout time.Duration
	state        circuitState
}

type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
)

func (s circuitState) String() string {
	if s == stateOpen {
		return "open"
	}
	return "closed"
}

// allowRequest checks if the circuit breaker allows the request to proceed.
func (cb *circuitBreaker) allowRequest() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.state == stateClosed {
		return true
	}
	return time.Since(cb.lastFailTime) > cb.resetTimeout
}

// recordSuccess closes the circuit.
func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = stateClosed
}

// recordFailure counts a failed request and may open the circuit.
func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailTime = time.Now()

	if cb.failureLimit > 0 && cb.failures >= cb.failureLimit {
		cb.state = stateOpen
	}
}

// State reports whether the circuit is "open" or "closed".
func (c *Client) State() string {
	c.circuitBreaker.mu.RLock()
	defer c.circuitBreaker.mu.RUnlock()

	return c.circuitBreaker.state.String()
}

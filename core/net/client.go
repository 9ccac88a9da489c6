// Package net provides the HTTP transport for the platform GraphQL API, with
// retry, timeout, rate limiting and circuit breaker patterns.
//
// The Client struct offers configurable timeout, retry attempts, and
// exponential backoff. It includes a simple circuit breaker to prevent
// cascading failures when the API is down.
//
// Example usage:
//
//	client := net.NewClient("https://ops.example.com/graphql",
//	    net.WithTimeout(20*time.Second),
//	    net.WithMaxRetries(5),
//	    net.WithBearerToken(token),
//	)
//	env, err := client.Execute(ctx, opsconnect.Operation{Name: "Sites", Document: q}, nil)
package net

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
	"github.com/marwen-abid/opsconnect-sdk-go/errors"
)

// Default configuration values
const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRetries   = 3
	defaultBackoff      = 1 * time.Second
	defaultFailureLimit = 5
	defaultResetTimeout = 60 * time.Second

	maxResponseBytes = 10 << 20
)

// RequestIDHeader carries the per-operation request ID.
const RequestIDHeader = "X-Request-ID"

// Client sends GraphQL operations over HTTP. It implements opsconnect.Executor.
type Client struct {
	endpoint       string
	httpClient     *http.Client
	maxRetries     int
	retryBackoff   time.Duration
	limiter        *rate.Limiter
	token          string
	circuitBreaker *circuitBreaker
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout (default: 30s).
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxRetries sets the maximum number of retry attempts (default: 3).
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryBackoff sets the base duration for exponential backoff (default: 1s).
func WithRetryBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryBackoff = d
	}
}

// WithRateLimit caps outgoing attempts at rps per second with the given
// burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBearerToken sends token in the Authorization header.
func WithBearerToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is kept
// unless WithTimeout is applied after it.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithCircuitBreaker sets how many consecutive failed requests open the
// breaker and how long it stays open (defaults: 5, 60s).
func WithCircuitBreaker(failureLimit int, resetTimeout time.Duration) ClientOption {
	return func(c *Client) {
		c.circuitBreaker.failureLimit = failureLimit
		c.circuitBreaker.resetTimeout = resetTimeout
	}
}

// NewClient creates a client for the GraphQL endpoint with the given options.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	client := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultBackoff,
		circuitBreaker: &circuitBreaker{
			failureLimit: defaultFailureLimit,
			resetTimeout: defaultResetTimeout,
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Endpoint returns the GraphQL endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// requestBody is the JSON body of a GraphQL POST.
type requestBody struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Execute posts op to the endpoint and decodes the result envelope.
//
// Transport failures, an open circuit breaker and exhausted 5xx retries are
// returned as *errors.ClientError with NetworkError set. A response that is
// not a GraphQL envelope is returned as *errors.SDKError. GraphQL errors
// are left in the envelope for the caller.
func (c *Client) Execute(ctx context.Context, op opsconnect.Operation, variables map[string]any) (*opsconnect.ResultEnvelope, error) {
	body, err := json.Marshal(requestBody{
		Query:         op.Document,
		OperationName: op.Name,
		Variables:     variables,
	})
	if err != nil {
		return nil, errors.NewCoreError(errors.REQUEST_BUILD_FAILED, "failed to encode GraphQL request", err).
			With("operationName", op.Name)
	}

	requestID := uuid.NewString()
	status, payload, err := c.do(ctx, body, requestID)
	if err != nil {
		return nil, err
	}

	var env opsconnect.ResultEnvelope
	if err := json.Unmarshal(payload, &env); err != nil || (len(env.Data) == 0 && env.Errors == nil) {
		if err == nil {
			err = fmt.Errorf("response has neither data nor errors")
		}
		return nil, errors.NewCoreError(
			errors.RESPONSE_DECODE_FAILED,
			fmt.Sprintf("unexpected response from %s (status %d)", c.endpoint, status),
			err,
		).With("operationName", op.Name).With("requestID", requestID).With("status", status)
	}
	return &env, nil
}

// do posts body with retry logic and circuit breaker. It returns the status
// code and body of the first response below 500.
func (c *Client) do(ctx context.Context, body []byte, requestID string) (int, []byte, error) {
	// Check circuit breaker
	if !c.circuitBreaker.allowRequest() {
		return 0, nil, errors.NewNetworkError(
			"circuit breaker is open",
			errors.NewCoreError(errors.CIRCUIT_OPEN, fmt.Sprintf("%s is failing, requests paused", c.endpoint), nil),
		)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, nil, errors.NewNetworkError("request cancelled", err)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return 0, nil, errors.NewNetworkError("request cancelled while rate limited", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return 0, nil, errors.NewCoreError(errors.REQUEST_BUILD_FAILED, "failed to create POST request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set(RequestIDHeader, requestID)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled by the caller, not a server failure
				return 0, nil, errors.NewNetworkError("request cancelled", err)
			}
			lastErr = err
			// Network error - retry
			if attempt < c.maxRetries && c.backoff(ctx, attempt) == nil {
				continue
			}
			c.circuitBreaker.recordFailure()
			return 0, nil, errors.NewNetworkError(
				fmt.Sprintf("request failed after %d attempts", attempt+1),
				err,
			)
		}

		payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()

		// Check status code
		if resp.StatusCode >= 500 {
			// Server error - retry
			lastErr = fmt.Errorf("server error: %s", resp.Status)
			if attempt < c.maxRetries && c.backoff(ctx, attempt) == nil {
				continue
			}
			c.circuitBreaker.recordFailure()
			return 0, nil, errors.NewNetworkError(
				fmt.Sprintf("server error after %d attempts: %s", attempt+1, resp.Status),
				lastErr,
			)
		}

		if err != nil {
			c.circuitBreaker.recordFailure()
			return 0, nil, errors.NewNetworkError("failed to read response body", err)
		}

		// Success, or a client error the caller decodes
		c.circuitBreaker.recordSuccess()
		return resp.StatusCode, payload, nil
	}

	// Should not reach here
	return 0, nil, errors.NewNetworkError("unexpected retry exhaustion", lastErr)
}

// backoff waits retryBackoff * 2^attempt, or until ctx ends.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(c.retryBackoff * (1 << uint(attempt)))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Verify that Client implements opsconnect.Executor
var _ opsconnect.Executor = (*Client)(nil)

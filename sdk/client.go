// Package sdk ties the transport, cache and notification layers together
// into a client for the operations platform API.
package sdk

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	opsconnect "github.com/marwen-abid/opsconnect-sdk-go"
	"github.com/marwen-abid/opsconnect-sdk-go/config"
	"github.com/marwen-abid/opsconnect-sdk-go/core/net"
	"github.com/marwen-abid/opsconnect-sdk-go/errors"
	"github.com/marwen-abid/opsconnect-sdk-go/logging"
	"github.com/marwen-abid/opsconnect-sdk-go/notify"
	"github.com/marwen-abid/opsconnect-sdk-go/store/memory"
)

// Client runs queries and mutations against the platform. It owns the view
// cache that query handles populate and optimistic mutations write.
type Client struct {
	endpoint      string
	executor      opsconnect.Executor
	transportOpts []net.ClientOption
	cache         *memory.Cache
	dispatcher    *notify.Dispatcher
	logger        *zap.Logger
	group         singleflight.Group
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithExecutor replaces the HTTP transport. Transport options are ignored
// when an executor is supplied.
func WithExecutor(e opsconnect.Executor) ClientOption {
	return func(c *Client) {
		c.executor = e
	}
}

// WithTransport passes options to the default HTTP transport.
func WithTransport(opts ...net.ClientOption) ClientOption {
	return func(c *Client) {
		c.transportOpts = append(c.transportOpts, opts...)
	}
}

// WithCache sets the view cache. By default each client has its own.
func WithCache(cache *memory.Cache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithDispatcher sets the dispatcher query failures are reported to.
func WithDispatcher(d *notify.Dispatcher) ClientOption {
	return func(c *Client) {
		c.dispatcher = d
	}
}

// WithLogger sets the zap logger backing the default dispatcher.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the GraphQL endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	client := &Client{endpoint: endpoint}

	for _, opt := range opts {
		opt(client)
	}

	if client.executor == nil {
		client.executor = net.NewClient(endpoint, client.transportOpts...)
	}
	if client.cache == nil {
		client.cache = memory.NewCache()
	}
	if client.logger == nil {
		client.logger = zap.NewNop()
	}
	if client.dispatcher == nil {
		client.dispatcher = notify.NewDispatcher(nil, logging.NewAdapter(logging.NewZap(client.logger)))
	}

	return client
}

// NewClientFromConfig validates cfg and builds a client with a zap logger,
// an HTTP transport and a dispatcher showing toasts through notifier.
// It is meant for composition roots; library code should take a *Client.
func NewClientFromConfig(cfg *config.Config, notifier opsconnect.Notifier) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, errors.NewClientError(errors.CONFIG_INVALID, "failed to build logger", err)
	}

	transport := []net.ClientOption{
		net.WithTimeout(cfg.GetTimeout()),
		net.WithMaxRetries(cfg.Transport.MaxRetries),
		net.WithRetryBackoff(cfg.GetRetryBackoff()),
		net.WithRateLimit(cfg.Transport.RateLimit, cfg.Transport.Burst),
	}
	if cfg.Token != "" {
		transport = append(transport, net.WithBearerToken(cfg.Token))
	}

	return NewClient(cfg.Endpoint,
		WithTransport(transport...),
		WithLogger(logger),
		WithDispatcher(notify.NewDispatcher(notifier, logging.NewAdapter(logging.NewZap(logger)))),
	), nil
}

// Endpoint returns the GraphQL endpoint URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Cache returns the client's view cache.
func (c *Client) Cache() *memory.Cache { return c.cache }

// Dispatcher returns the dispatcher failures are reported to.
func (c *Client) Dispatcher() *notify.Dispatcher { return c.dispatcher }

// Logger returns the client's zap logger.
func (c *Client) Logger() *zap.Logger { return c.logger }

// Close flushes buffered log entries.
func (c *Client) Close() error {
	_ = c.logger.Sync()
	return nil
}

// Fetch runs a query whose result is cached under key. Concurrent fetches of
// the same key share one request, started with the first caller's ctx. The
// request is registered with the cache so an optimistic mutation on key can
// cancel it.
//
// When the envelope carries GraphQL errors, Fetch returns the partial data
// (if any) together with a *errors.ResponseError.
func (c *Client) Fetch(ctx context.Context, key string, op opsconnect.Operation, vars map[string]any) (json.RawMessage, error) {
	return c.fetch(ctx, key, op, vars, nil)
}

// fetch is Fetch with a store step that runs while the request is still
// tracked. A CancelPending on key therefore returns only after store is
// done, and store sees the cancellation through fetchCtx.
func (c *Client) fetch(ctx context.Context, key string, op opsconnect.Operation, vars map[string]any,
	store func(fetchCtx context.Context, data json.RawMessage) error) (json.RawMessage, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		fetchCtx, done := c.cache.Track(ctx, key)
		defer done()

		data, err := c.execute(fetchCtx, op, vars)
		if err == nil && store != nil {
			err = store(fetchCtx, data)
		}
		return data, err
	})
	data, _ := v.(json.RawMessage)
	return data, err
}

// Exec runs op without deduplication or cache tracking. Use it for
// mutations.
func (c *Client) Exec(ctx context.Context, op opsconnect.Operation, vars map[string]any) (json.RawMessage, error) {
	return c.execute(ctx, op, vars)
}

func (c *Client) execute(ctx context.Context, op opsconnect.Operation, vars map[string]any) (json.RawMessage, error) {
	env, err := c.executor.Execute(ctx, op, vars)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, errors.NewCoreError(errors.RESPONSE_DECODE_FAILED, "executor returned no envelope", nil).
			With("operationName", op.Name)
	}
	if len(env.Errors) > 0 {
		return env.Data, errors.NewResponseError(op.Name, env.Errors)
	}
	return env.Data, nil
}

// ExecFunc returns a function that runs op with variables built from V and
// decodes the data into R. It is shaped to be a mutation.Mutation's Do.
func ExecFunc[V, R any](c *Client, op opsconnect.Operation, variables func(V) map[string]any) func(context.Context, V) (R, error) {
	return func(ctx context.Context, v V) (R, error) {
		var result R

		var vars map[string]any
		if variables != nil {
			vars = variables(v)
		}
		data, err := c.Exec(ctx, op, vars)
		if err != nil {
			return result, err
		}
		if err := decode(data, &result); err != nil {
			return result, err.With("operationName", op.Name)
		}
		return result, nil
	}
}

// decode unmarshals GraphQL data into out. Empty or null data leaves out
// untouched.
func decode(data json.RawMessage, out any) *errors.SDKError {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.NewClientError(errors.DECODE_FAILED, "failed to decode response data", err)
	}
	return nil
}

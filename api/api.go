// Package api is the caller-facing facade of the SDK's outbound call layer.
// A Client accepts individual method calls, runs them through the batching
// dispatcher, and optionally serves repeated read-only calls from a cache.
package api

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/den67rus/vk-io/cache"
	"github.com/den67rus/vk-io/dispatch"
	"github.com/den67rus/vk-io/transport"
)

// Client issues API calls. All methods are safe for concurrent use.
type Client struct {
	disp      *dispatch.Dispatcher
	transport transport.Transport
	cache     *cache.Memory
	cacheable cache.Methods
	logger    zerolog.Logger
}

// New creates a Client for the given access token.
func New(token string, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(token); err != nil {
		return nil, err
	}

	tr := o.transport
	if tr == nil {
		tr = transport.NewHTTP(transport.HTTPConfig{
			Token:   token,
			Version: o.version,
			BaseURL: o.baseURL,
			Client:  o.httpClient,
			Logger:  o.logger,
		})
	}

	disp, err := dispatch.New(dispatch.Config{
		Transport:     tr,
		MaxBatchCalls: o.maxBatchCalls,
		Debounce:      o.debounce,
		Logger:        o.logger,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		disp:      disp,
		transport: tr,
		logger:    o.logger.With().Str("component", "api").Logger(),
	}

	if o.cacheSize > 0 {
		mem, err := cache.NewMemory(o.cacheSize, o.cacheTTL)
		if err != nil {
			return nil, err
		}
		c.cache = mem
		c.cacheable = cache.NewMethods(o.cacheMethods...)
	}

	return c, nil
}

// Request enqueues one call and returns its handle without waiting.
// The handle settles once the call's batch unit or direct send completes.
func (c *Client) Request(method string, params transport.Params) *dispatch.Call {
	return c.disp.Submit(method, params)
}

// Call submits one call and waits for its outcome.
func (c *Client) Call(ctx context.Context, method string, params transport.Params) (json.RawMessage, error) {
	if c.cache != nil && c.cacheable.Contains(method) {
		return c.cachedCall(ctx, method, params)
	}
	return c.disp.Submit(method, params).Wait(ctx)
}

// Execute runs raw script code on the platform. Execute calls are never
// bundled; the dispatcher sends them one at a time.
func (c *Client) Execute(ctx context.Context, code string) (json.RawMessage, error) {
	return c.Call(ctx, dispatch.MethodExecute, transport.Params{"code": code})
}

// Flush forces a drain cycle without waiting out the debounce.
func (c *Client) Flush() {
	c.disp.Flush()
}

// Close rejects queued calls, waits for in-flight batches to settle and
// releases resources.
func (c *Client) Close() {
	c.disp.Close()
	if c.cache != nil {
		c.cache.Close()
	}
}

func (c *Client) cachedCall(ctx context.Context, method string, params transport.Params) (json.RawMessage, error) {
	key := method + ":" + params.Canonical()
	if data, ok := c.cache.Get(key); ok {
		c.logger.Debug().Str("method", method).Msg("cache hit")
		return data, nil
	}

	data, err := c.disp.Submit(method, params).Wait(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, data)
	return data, nil
}

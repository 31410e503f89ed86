package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/den67rus/vk-io/transport"
)

// DefaultMaxBatchCalls is the platform's limit on sub-calls per execute.
const DefaultMaxBatchCalls = 25

type options struct {
	version       string
	baseURL       string
	maxBatchCalls int
	debounce      time.Duration
	httpClient    *http.Client
	transport     transport.Transport
	logger        zerolog.Logger
	cacheSize     int
	cacheTTL      time.Duration
	cacheMethods  []string
}

// Option customizes a Client.
type Option func(*options)

// WithVersion overrides the API version sent with every call.
func WithVersion(version string) Option {
	return func(o *options) { o.version = version }
}

// WithBaseURL points the HTTP transport at a non-default endpoint.
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithMaxBatchCalls bounds the sub-calls bundled into one execute.
// A value of 1 disables batching.
func WithMaxBatchCalls(n int) Option {
	return func(o *options) { o.maxBatchCalls = n }
}

// WithDebounce sets the deferral before a drain cycle fires.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithHTTPClient supplies the http.Client used by the default transport.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithTransport replaces the default HTTP transport entirely. The token
// argument of New is ignored then; authentication is the transport's
// business.
func WithTransport(t transport.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithLogger injects a logger; the default is zerolog.Nop.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCache enables response caching for the listed methods. Only
// read-only methods should be listed; cached responses bypass the
// dispatcher entirely.
func WithCache(size int, ttl time.Duration, methods ...string) Option {
	return func(o *options) {
		o.cacheSize = size
		o.cacheTTL = ttl
		o.cacheMethods = methods
	}
}

func defaultOptions() options {
	return options{
		version:       transport.DefaultVersion,
		maxBatchCalls: DefaultMaxBatchCalls,
		logger:        zerolog.Nop(),
	}
}

func (o *options) validate(token string) error {
	if o.transport == nil && token == "" {
		return fmt.Errorf("access token is required")
	}
	if o.maxBatchCalls < 1 {
		return fmt.Errorf("max batch calls must be at least 1, got %d", o.maxBatchCalls)
	}
	if o.debounce < 0 {
		return fmt.Errorf("debounce must not be negative")
	}
	if o.cacheSize < 0 {
		return fmt.Errorf("cache size must not be negative")
	}
	if o.cacheSize > 0 && o.cacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if o.cacheSize > 0 && len(o.cacheMethods) == 0 {
		return fmt.Errorf("cache enabled with no cacheable methods")
	}
	return nil
}

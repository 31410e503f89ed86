package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public VK API endpoint prefix.
const DefaultBaseURL = "https://api.vk.com/method"

// DefaultVersion is the API version requested when none is configured.
const DefaultVersion = "5.199"

// HTTPConfig configures an HTTP transport.
type HTTPConfig struct {
	Token   string
	Version string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
	Logger  zerolog.Logger
}

// HTTP sends calls to the API over plain HTTPS, one POST per call.
type HTTP struct {
	token   string
	version string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTP creates an HTTP transport. Zero-value config fields fall back
// to defaults; a nil Client gets a tuned one.
func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: cfg.Timeout,
		}
	}
	return &HTTP{
		token:   cfg.Token,
		version: cfg.Version,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		logger:  cfg.Logger.With().Str("component", "transport.http").Logger(),
	}
}

// envelope is the top-level API response shape.
type envelope struct {
	Response      json.RawMessage `json:"response"`
	Error         *Error          `json:"error"`
	ExecuteErrors []*Error        `json:"execute_errors"`
}

// Send posts one method call and decodes the reply envelope.
// A platform-reported error comes back as *Error.
func (t *HTTP) Send(ctx context.Context, method string, params Params) (*Reply, error) {
	form := params.Encode()
	form.Set("access_token", t.token)
	form.Set("v", t.version)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	t.logger.Debug().
		Str("method", method).
		Dur("elapsed", time.Since(start)).
		Int("size", len(body)).
		Msg("call completed")

	if env.Error != nil {
		return nil, env.Error
	}
	return &Reply{Response: env.Response, Errors: env.ExecuteErrors}, nil
}

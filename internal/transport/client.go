package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// bodyLimit caps how much of a health or GraphQL body is read.
const bodyLimit = 1 << 20

// Pool sizing. Every source of a board talks to the same GraphQL host, so the
// per-host limits bound how many loads hit it at once.
const (
	poolIdle        = 100
	poolIdlePerHost = 10
	poolPerHost     = 10
	poolIdleTimeout = 60 * time.Second
)

// Response is a raw HTTP exchange as seen by a readiness check or the
// GraphQL decoder.
type Response struct {
	// Body is the response body, truncated at 1MB.
	Body []byte

	// StatusCode is zero when no response arrived.
	StatusCode int

	// Latency covers the whole exchange, body read included.
	Latency time.Duration

	// Error is set when the exchange itself failed. A 5xx answer is not an
	// Error; checks decide what a status means.
	Error error
}

// Client sends the board's outbound requests: readiness GETs and GraphQL
// POSTs. It is safe for concurrent use by every source's load.
//
// There is no client-wide timeout. Each call passes its own, so a slow
// source cannot shorten another source's budget.
type Client struct {
	httpClient *http.Client
}

// NewClient returns a [Client] over a pooled transport that honours the
// HTTP_PROXY family of environment variables.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        poolIdle,
				MaxIdleConnsPerHost: poolIdlePerHost,
				MaxConnsPerHost:     poolPerHost,
				IdleConnTimeout:     poolIdleTimeout,
			},
		},
	}
}

// Fetch sends a request without a body, GET when method is empty. Readiness
// probes use it to read health endpoints. Failures are reported in
// [Response.Error].
func (c *Client) Fetch(ctx context.Context, method, url string, headers map[string]string, timeout time.Duration) Response {
	if method == "" {
		method = http.MethodGet
	}
	return c.do(ctx, method, url, headers, nil, timeout)
}

// do performs one exchange bounded by timeout (when positive) and ctx.
func (c *Client) do(ctx context.Context, method, url string, headers map[string]string, body io.Reader, timeout time.Duration) Response {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	failed := func(status int, err error) Response {
		return Response{StatusCode: status, Latency: time.Since(start), Error: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return failed(0, fmt.Errorf("failed to create request: %w", err))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failed(0, fmt.Errorf("request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		return failed(resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	return Response{
		Body:       data,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close drops idle pooled connections when a board stops. The client stays
// usable. A nil client is a no-op.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if t, ok := c.httpClient.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}

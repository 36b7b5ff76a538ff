package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/Keksclan/rawrcache/contextx"
)

// maxErrorBody caps how much of a non-2xx response body is kept in the error.
const maxErrorBody = 512

// HTTPClient is a [Transport] speaking JSON over HTTP to a single API.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
	token   func(context.Context) string
	agent   string
	logger  *slog.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.hc = hc
	}
}

// WithBearerToken sets a function returning the bearer token sent with every
// request. An empty token sends no Authorization header.
func WithBearerToken(fn func(context.Context) string) HTTPOption {
	return func(c *HTTPClient) {
		c.token = fn
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(c *HTTPClient) {
		c.agent = ua
	}
}

// WithHTTPLogger sets the logger used for per-request debug output.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// NewHTTPClient creates a client for the API rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 30 * time.Second},
		agent:   "rawrcache",
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Do sends req and returns the response body of a 2xx response.
func (c *HTTPClient) Do(ctx context.Context, req Request) ([]byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	fail := func(kind Kind, status int, err error) error {
		return &Error{Kind: kind, Method: method, URL: req.URL, Status: status, Err: err}
	}

	target := c.resolve(req.URL)
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fail(KindDecode, 0, fmt.Errorf("encode body: %w", err))
		}
		body = bytes.NewReader(b)
	}

	hr, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fail(KindNetwork, 0, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	hr.Header.Set("Accept", "application/json")
	if body != nil {
		hr.Header.Set("Content-Type", "application/json")
	}
	if c.agent != "" {
		hr.Header.Set("User-Agent", c.agent)
	}
	if id := contextx.RequestIDFromContext(ctx); id != "" {
		hr.Header.Set("X-Request-ID", id)
	}
	if c.token != nil {
		if tok := c.token(ctx); tok != "" {
			hr.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.hc.Do(hr)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fail(KindCancelled, 0, err)
		}
		return nil, fail(KindNetwork, 0, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		"method", method,
		"url", req.URL,
		"status", resp.StatusCode,
		"request_id", contextx.RequestIDFromContext(ctx),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var detail error
		if s := strings.TrimSpace(string(snippet)); s != "" {
			detail = errors.New(s)
		}
		return nil, fail(KindStatus, resp.StatusCode, detail)
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fail(KindCancelled, resp.StatusCode, err)
		}
		return nil, fail(KindNetwork, resp.StatusCode, err)
	}
	return out, nil
}

func (c *HTTPClient) resolve(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return c.baseURL + u
}

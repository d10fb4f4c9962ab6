package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/Cheese-ChessFront/pkg/framedto"
	"github.com/valyala/fasthttp"
)

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(n int) Option {
	return func(c *Client) { c.retryMax = n }
}

// WithDialer replaces the TCP dialer, used to run against in-memory listeners.
func WithDialer(d fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = d }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 5 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Health(ctx context.Context) (*framedto.Health, error) {
	var h framedto.Health
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/health", nil, &h, false); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) PostStatus(ctx context.Context, st framedto.Status) error {
	st.Type = framedto.TypeStatus
	return c.doJSON(ctx, fasthttp.MethodPost, "/status", st, nil, true)
}

func (c *Client) PostSnapshot(ctx context.Context, snap framedto.Snapshot) error {
	snap.Type = framedto.TypeSnapshot
	return c.doJSON(ctx, fasthttp.MethodPost, "/snapshot", snap, nil, true)
}

// PostEvent carries spawn, despawn and frame messages when no WebSocket is
// available. Frames are not retried; the next one supersedes them.
func (c *Client) PostEvent(ctx context.Context, msg any) error {
	return c.doJSON(ctx, fasthttp.MethodPost, "/events", msg, nil, false)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepWithContext(ctx, backoffDuration(attempt-1)); err != nil {
				return lastErr
			}
		}
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("%s %s: %w", method, path, err)
			continue
		}
		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("bridge %s %s: status=%d body=%s", method, path, status, truncate(string(resp.Body()), 512))
			if !shouldRetryStatus(status) {
				return lastErr
			}
			continue
		}
		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDuration doubles from 100ms and stops growing after the sixth attempt.
func backoffDuration(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

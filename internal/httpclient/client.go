package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cesargomez89/flixetl/internal/constants"
)

// Client wraps an http.Client to provide rate limiting, automatic retries
// and a fixed User-Agent for every source request.
type Client struct {
	httpClient *http.Client
	userAgent  string

	minRequestInterval time.Duration
	retryBase          time.Duration
	lastRequest        time.Time
	mu                 sync.Mutex
}

// Options configures a Client. Zero values fall back to package defaults.
type Options struct {
	Timeout            time.Duration
	MinRequestInterval time.Duration
	RetryBase          time.Duration
	UserAgent          string
}

// NewClient creates a new rate-limited, retrying HTTP client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultHTTPTimeout
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = constants.DefaultRetryBase
	}
	if opts.UserAgent == "" {
		opts.UserAgent = constants.DefaultUserAgent
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent:          opts.UserAgent,
		minRequestInterval: opts.MinRequestInterval,
		retryBase:          opts.RetryBase,
	}
}

// Get issues a GET for url. The caller owns the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.Do(ctx, req)
}

// Do executes an HTTP request with rate-limiting and retries. Transport errors,
// 429 and 5xx responses are retried; any other response is returned as is.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastErr error
	for attempt := 0; attempt < constants.DefaultRetryCount; attempt++ {
		// Check context before claiming a time slot
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := c.waitTurn(ctx); err != nil {
			return nil, err
		}

		lastAttempt := attempt == constants.DefaultRetryCount-1
		resp, err := c.httpClient.Do(req)
		backoffWait := time.Duration(attempt+1) * c.retryBase
		switch {
		case err != nil:
			lastErr = err
		case retryable(resp.StatusCode) && !lastAttempt:
			retryAfter := parseRetryAfter(resp)
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("server unavailable (status %d)", resp.StatusCode)
			if retryAfter > backoffWait {
				backoffWait = retryAfter
			}
		default:
			// The final retryable status is handed to the caller as is.
			return resp, nil
		}

		if lastAttempt {
			break
		}

		backoffTimer := time.NewTimer(backoffWait)
		select {
		case <-ctx.Done():
			backoffTimer.Stop()
			return nil, ctx.Err()
		case <-backoffTimer.C:
		}
	}
	return nil, lastErr
}

func (c *Client) waitTurn(ctx context.Context) error {
	if c.minRequestInterval <= 0 {
		return nil
	}

	c.mu.Lock()
	now := time.Now()
	nextAllowed := c.lastRequest.Add(c.minRequestInterval)
	var waitTime time.Duration
	if now.Before(nextAllowed) {
		waitTime = nextAllowed.Sub(now)
		c.lastRequest = nextAllowed
	} else {
		c.lastRequest = now
	}
	c.mu.Unlock()

	if waitTime <= 0 {
		return nil
	}
	timer := time.NewTimer(waitTime)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// parseRetryAfter reads a Retry-After header and returns the duration to wait.
func parseRetryAfter(resp *http.Response) time.Duration {
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(ra); err == nil {
		return time.Until(t)
	}
	return 0
}

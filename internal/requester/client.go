// Package requester provides the HTTP client used for registry and ads.txt
// fetches: a hard per-attempt timeout and a bounded retry loop with linearly
// increasing backoff.
package requester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrNetwork wraps every transport failure, timeout and non-success status
// surfaced by Fetch.
var ErrNetwork = errors.New("network request failed")

// retryStep is the base of the linear backoff: attempt n waits n*retryStep.
const retryStep = 300 * time.Millisecond

// linearBackOff yields retryStep, 2*retryStep, 3*retryStep, ...
type linearBackOff struct {
	step    time.Duration
	attempt int
}

var _ backoff.BackOff = (*linearBackOff)(nil)

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.step
}

func (l *linearBackOff) Reset() { l.attempt = 0 }

// Client is an HTTP GET client with retries. Safe for concurrent use.
type Client struct {
	client  *http.Client
	timeout time.Duration
	retries int
}

// NewClient creates a Client with the given per-attempt timeout and number of
// additional retries after the first attempt.
func NewClient(timeout time.Duration, retries int) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Client{
		client:  &http.Client{},
		timeout: timeout,
		retries: retries,
	}
}

// Fetch performs a GET against url and returns the response body. A non-2xx
// status or transport error is retried up to the configured number of times,
// with the linear policy driving the wait between attempts; the last error
// is returned once retries are exhausted.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := backoff.Retry(ctx,
		func() ([]byte, error) {
			return c.fetchOnce(ctx, url)
		},
		backoff.WithBackOff(&linearBackOff{step: retryStep}),
		backoff.WithMaxTries(uint(c.retries)+1),
	)
	if err != nil {
		if errors.Is(err, ErrNetwork) {
			return nil, err
		}
		// Context cancellation surfaces from the retry loop itself.
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return body, nil
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: unexpected status %d for %s", ErrNetwork, resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return body, nil
}

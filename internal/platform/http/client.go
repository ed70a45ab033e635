package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/zorojean/lifekline/internal/apperr"
)

// Client is a wrapper for HTTP client with rate limiting
type Client struct {
	HTTPClient      *http.Client
	Limiter         *rate.Limiter
	MaxRetries      int
	MaxRetryTimeout time.Duration
}

// ClientOptions holds options for creating a new Client
type ClientOptions struct {
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new HTTP client with rate limiting. MaxRetries defaults
// to zero: a failed call is reported as is.
func NewClient(opts ClientOptions) *Client {
	// Set default values if not provided
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetryTimeout == 0 {
		opts.MaxRetryTimeout = 30 * time.Second
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: opts.Timeout,
		},
		Limiter:         rate.NewLimiter(rate.Every(time.Second), opts.RequestsPerSec),
		MaxRetries:      opts.MaxRetries,
		MaxRetryTimeout: opts.MaxRetryTimeout,
	}
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DoRequest performs an HTTP request, waiting on the rate limiter before each
// attempt. Any failure, including a non-2xx status, is returned as
// *apperr.TransportError. Network errors and 429/5xx statuses are retried up
// to MaxRetries times.
func (c *Client) DoRequest(ctx context.Context, req *http.Request) (*Response, error) {
	var out *Response
	operation := func() error {
		// every attempt, retries included, goes through the shared limiter
		if err := c.Limiter.Wait(ctx); err != nil {
			return backoff.Permanent(&apperr.TransportError{Err: err})
		}

		attempt := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(&apperr.TransportError{Err: err})
			}
			attempt.Body = body
		}

		resp, err := c.HTTPClient.Do(attempt)
		if err != nil {
			return &apperr.TransportError{Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &apperr.TransportError{StatusCode: resp.StatusCode, Err: err}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := &apperr.TransportError{StatusCode: resp.StatusCode, Body: string(body)}
			if retryable(resp.StatusCode) {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		out = &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
		return nil
	}

	// Use exponential backoff for retries
	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = c.MaxRetryTimeout
	strategy := backoff.WithContext(backoff.WithMaxRetries(backoffStrategy, uint64(c.MaxRetries)), ctx)

	if err := backoff.Retry(operation, strategy); err != nil {
		var transportErr *apperr.TransportError
		if errors.As(err, &transportErr) {
			return nil, transportErr
		}
		return nil, &apperr.TransportError{Err: err}
	}

	return out, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// Package httpfetch is an HTTP transport for callback.Receiver.
//
// A Client performs GET requests and reports each one to a Receiver: the
// body of a 2xx response is dispatched with callback.OriginNetwork, other
// statuses and transport errors go to Fail, and deadlines go to Timeout.
// With a Store configured, a stored body is replayed with
// callback.OriginCache before the request is sent.
package httpfetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bjaus/callback"
)

// CodeTransport is the Failure code for requests that never produced an
// HTTP status.
const CodeTransport = -1

// ErrStatus is the cause of failures for non-2xx responses.
var ErrStatus = errors.New("httpfetch: unexpected status")

const defaultTimeout = 30 * time.Second

// Client fetches URLs and reports the outcome to a callback.Receiver.
type Client struct {
	http    *http.Client
	timeout time.Duration
	header  http.Header
	store   Store
	ttl     time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Defaults to
// http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout bounds each request. Zero disables the bound; the caller's
// context still applies. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = d
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(cl *Client) {
		cl.header.Add(key, value)
	}
}

// WithStore replays and records response bodies. Bodies are saved only
// after the Receiver accepted them, so malformed payloads are never
// replayed.
func WithStore(s Store, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.store = s
		cl.ttl = ttl
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		http:    http.DefaultClient,
		timeout: defaultTimeout,
		header:  make(http.Header),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches url and reports to r. It returns the error r.Dispatch
// returned, the *callback.Failure passed to r.Fail, or the timeout error
// after r.Timeout.
//
// The processing flow:
//  1. Replay a stored body with OriginCache, if any
//  2. Send the request
//  3. On timeout, call r.Timeout
//  4. On any other error or a non-2xx status, call r.Fail
//  5. Dispatch the body with OriginNetwork and store it if accepted
func (c *Client) Get(ctx context.Context, url string, r callback.Receiver) error {
	log := c.logger.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("url", url),
	)

	if c.store != nil {
		c.replay(ctx, log, url, r)
	}

	start := time.Now()
	body, err := c.fetch(ctx, url)
	if err != nil {
		if isTimeout(err) {
			log.WarnContext(ctx, "request timed out", slog.Duration("elapsed", time.Since(start)))
			r.Timeout(ctx)
			return err
		}

		var f *callback.Failure
		if !errors.As(err, &f) {
			f = &callback.Failure{Code: CodeTransport, Message: "transport error", Err: err}
		}
		r.Fail(ctx, url, f)
		return f
	}
	log.DebugContext(ctx, "response received",
		slog.Int("bytes", len(body)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if err := r.Dispatch(ctx, url, body, callback.OriginNetwork); err != nil {
		return err
	}

	if c.store != nil {
		if err := c.store.Save(ctx, url, body, c.ttl); err != nil {
			log.WarnContext(ctx, "store response", slog.Any("error", err))
		}
	}
	return nil
}

func (c *Client) replay(ctx context.Context, log *slog.Logger, url string, r callback.Receiver) {
	raw, err := c.store.Load(ctx, url)
	switch {
	case errors.Is(err, ErrMiss):
		return
	case err != nil:
		log.WarnContext(ctx, "load stored response", slog.Any("error", err))
		return
	}

	log.DebugContext(ctx, "replaying stored response", slog.Int("bytes", len(raw)))
	// A failed replay is already reported to the Receiver; the network
	// response still follows.
	_ = r.Dispatch(ctx, url, raw, callback.OriginCache)
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &callback.Failure{Code: CodeTransport, Message: "invalid request", Err: err}
	}
	for key, values := range c.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &callback.Failure{
			Code:    resp.StatusCode,
			Message: http.StatusText(resp.StatusCode),
			Err:     ErrStatus,
		}
	}
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

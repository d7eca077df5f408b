package callback

import (
	"context"
	"time"
)

// OnDispatchFunc is called once a payload has been classified, before any
// decoding or outcome callback.
type OnDispatchFunc func(ctx context.Context, url string, origin Origin, shape Shape)

// OnSuccessFunc is called after a success callback returns.
type OnSuccessFunc func(ctx context.Context, url string, origin Origin, duration time.Duration)

// OnFailureFunc is called after the failure callback returns. Failures
// reported by a transport through Fail arrive with OriginNetwork and a zero
// duration.
type OnFailureFunc func(ctx context.Context, url string, origin Origin, f *Failure, duration time.Duration)

// OnTimeoutFunc is called after the timeout callback returns.
type OnTimeoutFunc func(ctx context.Context)

// hooks holds all configured hook functions.
type hooks struct {
	onDispatch []OnDispatchFunc
	onSuccess  []OnSuccessFunc
	onFailure  []OnFailureFunc
	onTimeout  []OnTimeoutFunc
}

// WithOnDispatch adds a hook called after classification.
// Multiple hooks are called in order.
//
// Example:
//
//	callback.WithOnDispatch(func(ctx context.Context, url string, o callback.Origin, s callback.Shape) {
//	    logger.Debug("dispatching", "url", url, "origin", o, "shape", s)
//	})
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(c *config) {
		c.hooks.onDispatch = append(c.hooks.onDispatch, fn)
	}
}

// WithOnSuccess adds a hook called after a success callback.
// Multiple hooks are called in order.
//
// Example:
//
//	callback.WithOnSuccess(func(ctx context.Context, url string, o callback.Origin, d time.Duration) {
//	    metrics.Timing("callback.success", d, "origin:"+o.String())
//	})
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(c *config) {
		c.hooks.onSuccess = append(c.hooks.onSuccess, fn)
	}
}

// WithOnFailure adds a hook called after the failure callback.
// Multiple hooks are called in order.
//
// Example:
//
//	callback.WithOnFailure(func(ctx context.Context, url string, o callback.Origin, f *callback.Failure, d time.Duration) {
//	    metrics.Incr("callback.failure", "code:"+strconv.Itoa(f.Code))
//	})
func WithOnFailure(fn OnFailureFunc) Option {
	return func(c *config) {
		c.hooks.onFailure = append(c.hooks.onFailure, fn)
	}
}

// WithOnTimeout adds a hook called after the timeout callback.
// Multiple hooks are called in order.
func WithOnTimeout(fn OnTimeoutFunc) Option {
	return func(c *config) {
		c.hooks.onTimeout = append(c.hooks.onTimeout, fn)
	}
}

func (h *hooks) callOnDispatch(ctx context.Context, url string, origin Origin, shape Shape) {
	for _, fn := range h.onDispatch {
		fn(ctx, url, origin, shape)
	}
}

func (h *hooks) callOnSuccess(ctx context.Context, url string, origin Origin, duration time.Duration) {
	for _, fn := range h.onSuccess {
		fn(ctx, url, origin, duration)
	}
}

func (h *hooks) callOnFailure(ctx context.Context, url string, origin Origin, f *Failure, duration time.Duration) {
	for _, fn := range h.onFailure {
		fn(ctx, url, origin, f, duration)
	}
}

func (h *hooks) callOnTimeout(ctx context.Context) {
	for _, fn := range h.onTimeout {
		fn(ctx)
	}
}

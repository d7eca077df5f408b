package callback

import (
	"context"
	"log/slog"
	"reflect"
	"time"
)

// Dispatcher decodes payloads into T and routes each one to exactly one
// Handler method.
//
// Usage:
//  1. Create a dispatcher with New, which resolves T once
//  2. Hand it to a transport as a Receiver
//  3. The transport calls Dispatch, Fail or Timeout
//
// Dispatcher holds no mutable state after New and is safe for concurrent
// use. All callbacks run synchronously on the caller's goroutine.
type Dispatcher[T any] struct {
	handler Handler[T]
	desc    *Descriptor
	cfg     config
}

var _ Receiver = (*Dispatcher[string])(nil)

type config struct {
	logger    *slog.Logger
	decoder   Decoder
	envelope  string
	rejects   []Matcher
	indicator Indicator
	hooks     hooks
}

// Option configures a Dispatcher.
type Option func(*config)

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithDecoder replaces the JSON decoder used for object and array payloads.
func WithDecoder(d Decoder) Option {
	return func(c *config) {
		c.decoder = d
	}
}

// WithEnvelope makes the dispatcher decode the value at a gjson path instead
// of the whole payload. A payload without the path is malformed.
//
// Example:
//
//	// {"code":0,"data":{"id":1}} delivers User{ID: 1}
//	callback.New[User](h, callback.WithEnvelope("data"))
func WithEnvelope(path string) Option {
	return func(c *config) {
		c.envelope = path
	}
}

// WithRejectWhen routes payloads matching m to the failure callback before
// classification. Matchers see the whole payload, envelope included.
// Multiple matchers are OR-ed.
//
// Example:
//
//	callback.WithRejectWhen(callback.FieldEquals("status", "error"))
func WithRejectWhen(m Matcher) Option {
	return func(c *config) {
		c.rejects = append(c.rejects, m)
	}
}

// WithIndicator sets the progress element dismissed by Timeout. The
// dispatcher only holds the reference; the caller owns the element.
func WithIndicator(i Indicator) Option {
	return func(c *config) {
		c.indicator = i
	}
}

// New resolves T and returns a Dispatcher for h.
//
// A T that cannot be resolved is logged and leaves the dispatcher without a
// Descriptor: it stays usable, but every Dispatch fails with CodeMalformed.
//
// Example:
//
//	d := callback.New[[]Order](&ordersHandler{},
//	    callback.WithEnvelope("data"),
//	    callback.WithOnFailure(func(ctx context.Context, url string, o callback.Origin, f *callback.Failure, _ time.Duration) {
//	        metrics.Incr("orders.failure")
//	    }),
//	)
func New[T any](h Handler[T], opts ...Option) *Dispatcher[T] {
	cfg := config{
		logger:  slog.Default(),
		decoder: JSONDecoder(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	desc, err := Resolve[T]()
	if err != nil {
		cfg.logger.Error("resolve result type",
			slog.String("type", reflect.TypeFor[T]().String()),
			slog.Any("error", err),
		)
	}

	return &Dispatcher[T]{handler: h, desc: desc, cfg: cfg}
}

// Descriptor returns the resolved result type, or nil if resolution failed.
func (d *Dispatcher[T]) Descriptor() *Descriptor {
	return d.desc
}

// Dispatch decodes raw into T and invokes one Handler method. Successful
// results go to OnSuccess for OriginNetwork and to OnCacheSuccess for
// OriginCache. Everything else goes to OnFailure with CodeMalformed, and the
// same *Failure is returned.
//
// The processing flow:
//  1. Reject the payload if a WithRejectWhen matcher matches
//  2. Unwrap the envelope if WithEnvelope is set
//  3. Classify the payload shape
//  4. Fail if T has no Descriptor
//  5. Deliver string results verbatim, without decoding
//  6. Decode objects and arrays according to the Descriptor
func (d *Dispatcher[T]) Dispatch(ctx context.Context, url string, raw []byte, origin Origin) error {
	start := time.Now()

	if d.rejected(raw) {
		return d.fail(ctx, url, origin, raw, ErrRejected, start)
	}

	text := d.desc != nil && d.desc.kind == KindText
	payload, found := raw, true
	if d.cfg.envelope != "" {
		payload, found = extract(raw, d.cfg.envelope, text)
	}

	shape := ShapeError
	if found {
		shape = Classify(payload)
	}
	d.cfg.hooks.callOnDispatch(ctx, url, origin, shape)

	if d.desc == nil {
		return d.fail(ctx, url, origin, raw, ErrNoDescriptor, start)
	}
	if !found {
		return d.fail(ctx, url, origin, raw, ErrMalformed, start)
	}

	if text {
		result, ok := any(string(payload)).(T)
		if !ok {
			return d.fail(ctx, url, origin, raw, ErrTypeMismatch, start)
		}
		d.succeed(ctx, url, origin, result, start)
		return nil
	}

	var (
		result T
		err    error
	)
	switch shape {
	case ShapeObject:
		result, err = d.decodeObject(payload)
	case ShapeArray:
		result, err = d.decodeArray(payload)
	default:
		err = ErrMalformed
	}
	if err != nil {
		return d.fail(ctx, url, origin, raw, err, start)
	}

	d.succeed(ctx, url, origin, result, start)
	return nil
}

// Fail delivers a failure detected outside the dispatcher, such as an HTTP
// status or a transport error.
//
// A nil f is reported as a malformed failure.
func (d *Dispatcher[T]) Fail(ctx context.Context, url string, f *Failure) {
	if f == nil {
		f = malformed(ErrMalformed)
	}
	d.cfg.logger.WarnContext(ctx, "request failed",
		slog.String("url", url),
		slog.Int("code", f.Code),
		slog.String("message", f.Message),
	)
	d.handler.OnFailure(ctx, url, f)
	d.cfg.hooks.callOnFailure(ctx, url, OriginNetwork, f, 0)
}

// Timeout dismisses the indicator, if any, and calls OnTimeout. It does not
// touch the Descriptor or any payload.
func (d *Dispatcher[T]) Timeout(ctx context.Context) {
	if d.cfg.indicator != nil {
		d.cfg.indicator.Dismiss()
	}
	d.handler.OnTimeout(ctx)
	d.cfg.hooks.callOnTimeout(ctx)
}

func (d *Dispatcher[T]) rejected(raw []byte) bool {
	if len(d.cfg.rejects) == 0 {
		return false
	}
	view, err := Inspect(raw)
	if err != nil {
		return false
	}
	for _, m := range d.cfg.rejects {
		if m.Match(view) {
			return true
		}
	}
	return false
}

func (d *Dispatcher[T]) decodeObject(payload []byte) (T, error) {
	if d.desc.kind != KindArray || d.desc.custom {
		return d.decode(payload)
	}

	// A single object for a slice result becomes a one-element slice.
	var result T
	elem := reflect.New(d.desc.elem)
	if err := d.cfg.decoder.Decode(payload, elem.Interface()); err != nil {
		return result, &DecodeError{Type: d.desc.elem, Err: err}
	}
	result, ok := single(d.desc.typ, elem.Elem()).Interface().(T)
	if !ok {
		return result, ErrTypeMismatch
	}
	return result, nil
}

func (d *Dispatcher[T]) decodeArray(payload []byte) (T, error) {
	if d.desc.kind != KindArray && !d.desc.custom {
		var result T
		return result, ErrShapeMismatch
	}
	return d.decode(payload)
}

func (d *Dispatcher[T]) decode(payload []byte) (T, error) {
	var result T
	if err := d.cfg.decoder.Decode(payload, &result); err != nil {
		return result, &DecodeError{Type: d.desc.typ, Err: err}
	}
	return result, nil
}

// single builds a slice of type t, or a pointer chain ending in one,
// holding only e.
func single(t reflect.Type, e reflect.Value) reflect.Value {
	if t.Kind() != reflect.Pointer {
		return reflect.Append(reflect.MakeSlice(t, 0, 1), e)
	}
	p := reflect.New(t.Elem())
	p.Elem().Set(single(t.Elem(), e))
	return p
}

func (d *Dispatcher[T]) succeed(ctx context.Context, url string, origin Origin, result T, start time.Time) {
	switch origin {
	case OriginCache:
		if h, ok := d.handler.(CacheHandler[T]); ok {
			h.OnCacheSuccess(ctx, url, result)
		}
	default:
		d.handler.OnSuccess(ctx, url, result)
	}
	d.cfg.hooks.callOnSuccess(ctx, url, origin, time.Since(start))
}

func (d *Dispatcher[T]) fail(ctx context.Context, url string, origin Origin, raw []byte, cause error, start time.Time) error {
	f := malformed(cause)
	d.cfg.logger.ErrorContext(ctx, "dispatch failed",
		slog.String("url", url),
		slog.String("origin", origin.String()),
		slog.String("raw", string(raw)),
		slog.Any("error", cause),
	)
	d.handler.OnFailure(ctx, url, f)
	d.cfg.hooks.callOnFailure(ctx, url, origin, f, time.Since(start))
	return f
}

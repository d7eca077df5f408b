package callback

import (
	"context"
	"encoding/json"
)

// Handler receives the outcome of a call whose result type is T. Exactly
// one method is invoked per Dispatch, Fail or Timeout.
//
// Example:
//
//	type userHandler struct {
//	    view *UserView
//	}
//
//	func (h *userHandler) OnSuccess(ctx context.Context, url string, u User) {
//	    h.view.Show(u)
//	}
//
//	func (h *userHandler) OnFailure(ctx context.Context, url string, f *callback.Failure) {
//	    h.view.Error(f.Message)
//	}
//
//	func (h *userHandler) OnTimeout(ctx context.Context) {}
type Handler[T any] interface {
	// OnSuccess receives results decoded from a live network response.
	OnSuccess(ctx context.Context, url string, result T)

	// OnFailure receives malformed payloads, decode errors and failures
	// reported by the transport.
	OnFailure(ctx context.Context, url string, f *Failure)

	// OnTimeout is called when the transport gives up waiting.
	OnTimeout(ctx context.Context)
}

// CacheHandler is an optional interface for handlers that want results
// replayed from a cache. Handlers that do not implement it ignore cached
// results.
type CacheHandler[T any] interface {
	OnCacheSuccess(ctx context.Context, url string, result T)
}

// Funcs adapts plain functions to Handler and CacheHandler. Nil fields are
// no-ops.
//
//	d := callback.New(callback.Funcs[[]Item]{
//	    Success: func(ctx context.Context, url string, items []Item) { ... },
//	})
type Funcs[T any] struct {
	Success      func(ctx context.Context, url string, result T)
	CacheSuccess func(ctx context.Context, url string, result T)
	Failure      func(ctx context.Context, url string, f *Failure)
	Timeout      func(ctx context.Context)
}

// OnSuccess implements the Handler interface.
func (f Funcs[T]) OnSuccess(ctx context.Context, url string, result T) {
	if f.Success != nil {
		f.Success(ctx, url, result)
	}
}

// OnCacheSuccess implements the CacheHandler interface.
func (f Funcs[T]) OnCacheSuccess(ctx context.Context, url string, result T) {
	if f.CacheSuccess != nil {
		f.CacheSuccess(ctx, url, result)
	}
}

// OnFailure implements the Handler interface.
func (f Funcs[T]) OnFailure(ctx context.Context, url string, fail *Failure) {
	if f.Failure != nil {
		f.Failure(ctx, url, fail)
	}
}

// OnTimeout implements the Handler interface.
func (f Funcs[T]) OnTimeout(ctx context.Context) {
	if f.Timeout != nil {
		f.Timeout(ctx)
	}
}

// Receiver is what a transport or cache calls once it has a payload, a
// failure or a timeout for a URL. Dispatcher implements it for every T, so
// transports do not need to be generic.
type Receiver interface {
	Dispatch(ctx context.Context, url string, raw []byte, origin Origin) error
	Fail(ctx context.Context, url string, f *Failure)
	Timeout(ctx context.Context)
}

// Indicator is an externally owned progress element, such as a spinner,
// dismissed when a call times out.
type Indicator interface {
	Dismiss()
}

// Decoder turns payload text into a value. v is always a non-nil pointer.
type Decoder interface {
	Decode(raw []byte, v any) error
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(raw []byte, v any) error

// Decode implements the Decoder interface.
func (f DecoderFunc) Decode(raw []byte, v any) error { return f(raw, v) }

// JSONDecoder returns a Decoder backed by encoding/json.
func JSONDecoder() Decoder {
	return jsonDecoder{}
}

type jsonDecoder struct{}

func (jsonDecoder) Decode(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}

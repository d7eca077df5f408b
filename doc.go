// Package callback turns raw response payloads into typed results and routes
// them to outcome callbacks.
//
// A caller declares the result it expects with a single type parameter: a
// string, an object type, or a slice. The Dispatcher resolves that type once,
// then for each payload it classifies the text, decodes it and invokes one
// callback: success from the network, success from a cache, failure, or
// timeout.
//
// # Quick Start
//
// Implement Handler for your result type:
//
//	type User struct {
//	    ID   int    `json:"id"`
//	    Name string `json:"name"`
//	}
//
//	type usersHandler struct{}
//
//	func (usersHandler) OnSuccess(ctx context.Context, url string, users []User) { ... }
//	func (usersHandler) OnFailure(ctx context.Context, url string, f *callback.Failure) { ... }
//	func (usersHandler) OnTimeout(ctx context.Context) { ... }
//
// Create a dispatcher and hand it to a transport:
//
//	d := callback.New[[]User](usersHandler{})
//
//	err := httpfetch.New().Get(ctx, "https://api.example.com/users", d)
//
// Or feed it payloads directly:
//
//	err := d.Dispatch(ctx, url, body, callback.OriginNetwork)
//
// # Result Types
//
// The type parameter is resolved once by New into a Descriptor:
//
//   - string: the payload is delivered verbatim and never decoded
//   - slices: arrays decode element-wise; a single object becomes a
//     one-element slice
//   - structs, maps, pointers: objects decode into one value; an array
//     payload is a shape mismatch
//
// Types that cannot come from JSON (interfaces, funcs, channels, fixed-length
// arrays) fail to resolve. New logs the problem and the dispatcher fails
// every payload with CodeMalformed.
//
// # Shapes
//
// Classify looks only at the first non-whitespace character: '{' is
// ShapeObject, '[' is ShapeArray, anything else is ShapeError. Full parsing
// is left to the Decoder, whose errors are delivered as a Failure wrapping a
// *DecodeError.
//
// # Origins
//
// Payloads carry an Origin. OriginNetwork results go to Handler.OnSuccess;
// OriginCache results go to CacheHandler.OnCacheSuccess when the handler
// implements it and are dropped otherwise. Parsing does not depend on the
// origin.
//
// # Failures
//
// Every payload problem reaches OnFailure with a *Failure whose Code is
// CodeMalformed. The cause is available through errors.Is and errors.As:
//
//	var f *callback.Failure
//	if errors.As(err, &f) && errors.Is(f, callback.ErrShapeMismatch) {
//	    ...
//	}
//
// Transports report their own failures through Dispatcher.Fail with their
// own codes.
//
// # Envelopes and Rejections
//
// Many services wrap results in an envelope and flag errors in a status
// field. WithEnvelope decodes a nested path, and WithRejectWhen sends
// matching payloads to the failure callback:
//
//	d := callback.New[Profile](h,
//	    callback.WithEnvelope("data"),
//	    callback.WithRejectWhen(callback.Not(callback.RawEquals("code", "0"))),
//	)
//
// # Hooks
//
// Hooks provide observability without coupling to a metrics system:
//
//	d := callback.New[Profile](h,
//	    callback.WithOnSuccess(func(ctx context.Context, url string, o callback.Origin, d time.Duration) {
//	        metrics.Timing("callback.success", d, "origin:"+o.String())
//	    }),
//	)
//
// Available hooks:
//   - WithOnDispatch: Called after classification
//   - WithOnSuccess: Called after a success callback
//   - WithOnFailure: Called after the failure callback
//   - WithOnTimeout: Called after the timeout callback
//
// # Thread Safety
//
// A Dispatcher is immutable after New. Dispatch runs synchronously on the
// calling goroutine and may be called concurrently.
package callback

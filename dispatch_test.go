package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method  string
	url     string
	result  any
	failure *Failure
}

// recorder implements Handler and CacheHandler and records every call.
type recorder[T any] struct {
	calls []call
}

func (r *recorder[T]) OnSuccess(ctx context.Context, url string, result T) {
	r.calls = append(r.calls, call{method: "success", url: url, result: result})
}

func (r *recorder[T]) OnCacheSuccess(ctx context.Context, url string, result T) {
	r.calls = append(r.calls, call{method: "cache", url: url, result: result})
}

func (r *recorder[T]) OnFailure(ctx context.Context, url string, f *Failure) {
	r.calls = append(r.calls, call{method: "failure", url: url, failure: f})
}

func (r *recorder[T]) OnTimeout(ctx context.Context) {
	r.calls = append(r.calls, call{method: "timeout"})
}

// networkOnly implements Handler without CacheHandler.
type networkOnly[T any] struct {
	successes int
	failures  int
}

func (h *networkOnly[T]) OnSuccess(ctx context.Context, url string, result T)   { h.successes++ }
func (h *networkOnly[T]) OnFailure(ctx context.Context, url string, f *Failure) { h.failures++ }
func (h *networkOnly[T]) OnTimeout(ctx context.Context)                         {}

// countingDecoder counts calls into the JSON decoder.
type countingDecoder struct {
	calls int
}

func (d *countingDecoder) Decode(raw []byte, v any) error {
	d.calls++
	return JSONDecoder().Decode(raw, v)
}

type indicator struct {
	dismissed int
}

func (i *indicator) Dismiss() { i.dismissed++ }

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestDispatch_Scenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("object from network reaches OnSuccess", func(t *testing.T) {
		h := &recorder[foo]{}
		d := New[foo](h)

		err := d.Dispatch(ctx, "/api/x", []byte(`{"a":1}`), OriginNetwork)

		require.NoError(t, err)
		require.Len(t, h.calls, 1)
		assert.Equal(t, "success", h.calls[0].method)
		assert.Equal(t, "/api/x", h.calls[0].url)
		assert.Equal(t, foo{A: 1}, h.calls[0].result)
	})

	t.Run("array of integers keeps order", func(t *testing.T) {
		h := &recorder[[]int]{}
		d := New[[]int](h)

		err := d.Dispatch(ctx, "/api/x", []byte(`[1,2]`), OriginNetwork)

		require.NoError(t, err)
		require.Len(t, h.calls, 1)
		assert.Equal(t, "success", h.calls[0].method)
		assert.Equal(t, []int{1, 2}, h.calls[0].result)
	})

	t.Run("non-JSON from cache fails with sentinel code", func(t *testing.T) {
		logger, buf := newTestLogger()
		h := &recorder[foo]{}
		d := New[foo](h, WithLogger(logger))

		err := d.Dispatch(ctx, "/api/x", []byte(`not-json`), OriginCache)

		var f *Failure
		require.ErrorAs(t, err, &f)
		assert.Equal(t, CodeMalformed, f.Code)
		assert.Equal(t, MessageMalformed, f.Message)
		assert.ErrorIs(t, err, ErrMalformed)
		require.Len(t, h.calls, 1)
		assert.Equal(t, "failure", h.calls[0].method)
		assert.Same(t, f, h.calls[0].failure)
		assert.Contains(t, buf.String(), "not-json")
	})

	t.Run("object from cache reaches OnCacheSuccess only", func(t *testing.T) {
		h := &recorder[foo]{}
		d := New[foo](h)

		err := d.Dispatch(ctx, "/api/x", []byte(`{"a":7}`), OriginCache)

		require.NoError(t, err)
		require.Len(t, h.calls, 1)
		assert.Equal(t, "cache", h.calls[0].method)
		assert.Equal(t, foo{A: 7}, h.calls[0].result)
	})
}

func TestDispatch_MalformedForAnyDescriptor(t *testing.T) {
	ctx := context.Background()
	raw := []byte(`not-json`)

	for _, origin := range []Origin{OriginNetwork, OriginCache} {
		t.Run("object/"+origin.String(), func(t *testing.T) {
			h := &recorder[foo]{}
			err := New[foo](h).Dispatch(ctx, "u", raw, origin)
			assert.ErrorIs(t, err, ErrMalformed)
			require.Len(t, h.calls, 1)
			assert.Equal(t, CodeMalformed, h.calls[0].failure.Code)
		})

		t.Run("array/"+origin.String(), func(t *testing.T) {
			h := &recorder[[]foo]{}
			err := New[[]foo](h).Dispatch(ctx, "u", raw, origin)
			assert.ErrorIs(t, err, ErrMalformed)
			require.Len(t, h.calls, 1)
			assert.Equal(t, CodeMalformed, h.calls[0].failure.Code)
		})
	}
}

func TestDispatch_TextFastPath(t *testing.T) {
	ctx := context.Background()

	payloads := []string{`not-json`, `{"a":1}`, `[1,2]`, ``}

	for _, origin := range []Origin{OriginNetwork, OriginCache} {
		for _, raw := range payloads {
			t.Run(origin.String()+"/"+raw, func(t *testing.T) {
				dec := &countingDecoder{}
				h := &recorder[string]{}
				d := New[string](h, WithDecoder(dec))

				err := d.Dispatch(ctx, "/text", []byte(raw), origin)

				require.NoError(t, err)
				assert.Zero(t, dec.calls, "decoder must not run for text results")
				require.Len(t, h.calls, 1, "text results are delivered exactly once")
				assert.Equal(t, raw, h.calls[0].result)
				if origin == OriginCache {
					assert.Equal(t, "cache", h.calls[0].method)
				} else {
					assert.Equal(t, "success", h.calls[0].method)
				}
			})
		}
	}
}

func TestDispatch_NoDescriptor(t *testing.T) {
	ctx := context.Background()

	logger, buf := newTestLogger()
	dec := &countingDecoder{}
	h := &recorder[any]{}
	d := New[any](h, WithLogger(logger), WithDecoder(dec))

	require.Nil(t, d.Descriptor())
	assert.Contains(t, buf.String(), "resolve result type")

	payloads := []string{`{"a":1}`, `[1]`, `not-json`, `"text"`}
	for _, origin := range []Origin{OriginNetwork, OriginCache} {
		for _, raw := range payloads {
			h.calls = nil
			buf.Reset()

			err := d.Dispatch(ctx, "/none", []byte(raw), origin)

			var f *Failure
			require.ErrorAs(t, err, &f, "origin %s payload %s", origin, raw)
			assert.Equal(t, CodeMalformed, f.Code)
			assert.ErrorIs(t, err, ErrNoDescriptor)
			require.Len(t, h.calls, 1)
			assert.Equal(t, "failure", h.calls[0].method)
			assert.Contains(t, buf.String(), "/none")
		}
	}
	assert.Zero(t, dec.calls)
}

func TestDispatch_RoundTrip(t *testing.T) {
	type address struct {
		City string `json:"city"`
		Zip  string `json:"zip"`
	}
	type user struct {
		ID      int               `json:"id"`
		Name    string            `json:"name"`
		Tags    []string          `json:"tags"`
		Address *address          `json:"address"`
		Attrs   map[string]string `json:"attrs"`
		Active  bool              `json:"active"`
	}

	want := user{
		ID:      42,
		Name:    "Ada",
		Tags:    []string{"a", "b"},
		Address: &address{City: "London", Zip: "N1"},
		Attrs:   map[string]string{"k": "v"},
		Active:  true,
	}
	raw, err := json.Marshal(want)
	require.NoError(t, err)

	h := &recorder[user]{}
	require.NoError(t, New[user](h).Dispatch(context.Background(), "/u", raw, OriginNetwork))

	require.Len(t, h.calls, 1)
	assert.Equal(t, want, h.calls[0].result)
}

func TestDispatch_Shapes(t *testing.T) {
	ctx := context.Background()

	t.Run("object for slice result becomes one element", func(t *testing.T) {
		h := &recorder[[]foo]{}
		err := New[[]foo](h).Dispatch(ctx, "u", []byte(`{"a":3}`), OriginNetwork)

		require.NoError(t, err)
		require.Len(t, h.calls, 1)
		assert.Equal(t, []foo{{A: 3}}, h.calls[0].result)
	})

	t.Run("array of objects", func(t *testing.T) {
		h := &recorder[[]foo]{}
		err := New[[]foo](h).Dispatch(ctx, "u", []byte(`[{"a":1},{"a":2}]`), OriginNetwork)

		require.NoError(t, err)
		require.Len(t, h.calls, 1)
		assert.Equal(t, []foo{{A: 1}, {A: 2}}, h.calls[0].result)
	})

	t.Run("array for object result is a shape mismatch", func(t *testing.T) {
		h := &recorder[foo]{}
		err := New[foo](h).Dispatch(ctx, "u", []byte(`[{"a":1}]`), OriginNetwork)

		assert.ErrorIs(t, err, ErrShapeMismatch)
		require.Len(t, h.calls, 1)
		assert.Equal(t, "failure", h.calls[0].method)
		assert.Equal(t, CodeMalformed, h.calls[0].failure.Code)
	})

	t.Run("pointer result", func(t *testing.T) {
		h := &recorder[*foo]{}
		err := New[*foo](h).Dispatch(ctx, "u", []byte(`{"a":5}`), OriginNetwork)

		require.NoError(t, err)
		require.Len(t, h.calls, 1)
		assert.Equal(t, &foo{A: 5}, h.calls[0].result)
	})

	t.Run("map result", func(t *testing.T) {
		h := &recorder[map[string]int]{}
		err := New[map[string]int](h).Dispatch(ctx, "u", []byte(`{"a":5,"b":6}`), OriginNetwork)

		require.NoError(t, err)
		require.Len(t, h.calls, 1)
		assert.Equal(t, map[string]int{"a": 5, "b": 6}, h.calls[0].result)
	})

	t.Run("mixed array into slice of any", func(t *testing.T) {
		h := &recorder[[]any]{}
		err := New[[]any](h).Dispatch(ctx, "u", []byte(`[1,"two",{"three":3}]`), OriginNetwork)

		require.NoError(t, err)
		require.Len(t, h.calls, 1)
		assert.Equal(t, []any{float64(1), "two", map[string]any{"three": float64(3)}}, h.calls[0].result)
	})

	t.Run("raw message keeps the payload", func(t *testing.T) {
		for _, raw := range []string{`{"a":1}`, `[1,2]`} {
			h := &recorder[json.RawMessage]{}
			err := New[json.RawMessage](h).Dispatch(ctx, "u", []byte(raw), OriginNetwork)

			require.NoError(t, err, raw)
			require.Len(t, h.calls, 1)
			assert.Equal(t, "success", h.calls[0].method)
			assert.Equal(t, json.RawMessage(raw), h.calls[0].result)
		}
	})

	t.Run("pointer to slice from array", func(t *testing.T) {
		h := &recorder[*[]foo]{}
		err := New[*[]foo](h).Dispatch(ctx, "u", []byte(`[{"a":1},{"a":2}]`), OriginNetwork)

		require.NoError(t, err)
		require.Len(t, h.calls, 1)
		assert.Equal(t, &[]foo{{A: 1}, {A: 2}}, h.calls[0].result)
	})

	t.Run("pointer to slice from object", func(t *testing.T) {
		h := &recorder[*[]foo]{}
		err := New[*[]foo](h).Dispatch(ctx, "u", []byte(`{"a":4}`), OriginNetwork)

		require.NoError(t, err)
		require.Len(t, h.calls, 1)
		assert.Equal(t, &[]foo{{A: 4}}, h.calls[0].result)
	})

	t.Run("named string with UnmarshalJSON", func(t *testing.T) {
		h := &recorder[status]{}
		err := New[status](h).Dispatch(ctx, "u", []byte(`{"status":"ok"}`), OriginNetwork)

		require.NoError(t, err)
		require.Len(t, h.calls, 1)
		assert.Equal(t, status("ok"), h.calls[0].result)
	})
}

func TestDispatch_ScalarResult(t *testing.T) {
	logger, buf := newTestLogger()
	h := &recorder[int]{}
	d := New[int](h, WithLogger(logger))

	require.Nil(t, d.Descriptor())
	assert.Contains(t, buf.String(), "resolve result type")
	assert.Contains(t, buf.String(), "scalar")

	err := d.Dispatch(context.Background(), "u", []byte(`5`), OriginNetwork)

	assert.ErrorIs(t, err, ErrNoDescriptor)
	require.Len(t, h.calls, 1)
	assert.Equal(t, "failure", h.calls[0].method)
}

func TestDispatch_DecodeErrors(t *testing.T) {
	ctx := context.Background()

	tests := map[string]string{
		"wrong field type": `{"a":"not a number"}`,
		"truncated object": `{"a":`,
		"trailing garbage": `{"a":1} trailing`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			h := &recorder[foo]{}
			err := New[foo](h).Dispatch(ctx, "u", []byte(raw), OriginNetwork)

			var f *Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, CodeMalformed, f.Code)

			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Contains(t, de.Error(), "callback.foo")

			require.Len(t, h.calls, 1)
			assert.Equal(t, "failure", h.calls[0].method)
		})
	}

	t.Run("element decode error for slice result", func(t *testing.T) {
		h := &recorder[[]foo]{}
		err := New[[]foo](h).Dispatch(ctx, "u", []byte(`{"a":"x"}`), OriginNetwork)

		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "callback.foo", de.Type.String())
	})

	t.Run("custom decoder errors are wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		h := &recorder[foo]{}
		d := New[foo](h, WithDecoder(DecoderFunc(func([]byte, any) error { return boom })))

		err := d.Dispatch(ctx, "u", []byte(`{"a":1}`), OriginNetwork)

		assert.ErrorIs(t, err, boom)
	})
}

func TestDispatch_Idempotent(t *testing.T) {
	ctx := context.Background()
	h := &recorder[[]foo]{}
	d := New[[]foo](h)
	desc := d.Descriptor()

	for range 2 {
		require.NoError(t, d.Dispatch(ctx, "u", []byte(`[{"a":1}]`), OriginNetwork))
	}
	for range 2 {
		assert.Error(t, d.Dispatch(ctx, "u", []byte(`oops`), OriginCache))
	}

	require.Len(t, h.calls, 4)
	assert.Equal(t, h.calls[0], h.calls[1])
	assert.Equal(t, h.calls[2].method, h.calls[3].method)
	assert.Equal(t, h.calls[2].failure.Code, h.calls[3].failure.Code)
	assert.Same(t, desc, d.Descriptor())
}

func TestDispatch_CacheWithoutCacheHandler(t *testing.T) {
	h := &networkOnly[foo]{}
	d := New[foo](h)

	err := d.Dispatch(context.Background(), "u", []byte(`{"a":1}`), OriginCache)

	require.NoError(t, err)
	assert.Zero(t, h.successes)
	assert.Zero(t, h.failures)
}

func TestDispatch_Envelope(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes nested object", func(t *testing.T) {
		h := &recorder[foo]{}
		d := New[foo](h, WithEnvelope("data"))

		err := d.Dispatch(ctx, "u", []byte(`{"code":0,"data":{"a":9}}`), OriginNetwork)

		require.NoError(t, err)
		assert.Equal(t, foo{A: 9}, h.calls[0].result)
	})

	t.Run("decodes nested array", func(t *testing.T) {
		h := &recorder[[]int]{}
		d := New[[]int](h, WithEnvelope("data.items"))

		err := d.Dispatch(ctx, "u", []byte(`{"data":{"items":[3,2,1]}}`), OriginNetwork)

		require.NoError(t, err)
		assert.Equal(t, []int{3, 2, 1}, h.calls[0].result)
	})

	t.Run("missing path is malformed", func(t *testing.T) {
		h := &recorder[foo]{}
		d := New[foo](h, WithEnvelope("data"))

		err := d.Dispatch(ctx, "u", []byte(`{"code":0}`), OriginNetwork)

		assert.ErrorIs(t, err, ErrMalformed)
		require.Len(t, h.calls, 1)
		assert.Equal(t, "failure", h.calls[0].method)
	})

	t.Run("null data is malformed", func(t *testing.T) {
		h := &recorder[foo]{}
		d := New[foo](h, WithEnvelope("data"))

		err := d.Dispatch(ctx, "u", []byte(`{"code":1,"data":null}`), OriginNetwork)

		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("text result is unquoted", func(t *testing.T) {
		h := &recorder[string]{}
		d := New[string](h, WithEnvelope("data"))

		err := d.Dispatch(ctx, "u", []byte(`{"data":"hello"}`), OriginNetwork)

		require.NoError(t, err)
		assert.Equal(t, "hello", h.calls[0].result)
	})

	t.Run("text result keeps nested JSON", func(t *testing.T) {
		h := &recorder[string]{}
		d := New[string](h, WithEnvelope("data"))

		err := d.Dispatch(ctx, "u", []byte(`{"data":{"a":1}}`), OriginNetwork)

		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, h.calls[0].result)
	})
}

func TestDispatch_RejectWhen(t *testing.T) {
	ctx := context.Background()

	newDispatcher := func(h Handler[foo]) *Dispatcher[foo] {
		return New[foo](h,
			WithEnvelope("data"),
			WithRejectWhen(FieldEquals("status", "error")),
			WithRejectWhen(Not(RawEquals("code", "0"))),
		)
	}

	tests := map[string]struct {
		raw      string
		rejected bool
	}{
		"status error":  {`{"status":"error","code":0,"data":{"a":1}}`, true},
		"non-zero code": {`{"code":500,"data":{"a":1}}`, true},
		"accepted":      {`{"status":"ok","code":0,"data":{"a":1}}`, false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := &recorder[foo]{}
			err := newDispatcher(h).Dispatch(ctx, "u", []byte(tt.raw), OriginNetwork)

			require.Len(t, h.calls, 1)
			if tt.rejected {
				assert.ErrorIs(t, err, ErrRejected)
				assert.Equal(t, "failure", h.calls[0].method)
				assert.Equal(t, CodeMalformed, h.calls[0].failure.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, foo{A: 1}, h.calls[0].result)
		})
	}

	t.Run("invalid JSON is never rejected", func(t *testing.T) {
		h := &recorder[foo]{}
		err := newDispatcher(h).Dispatch(ctx, "u", []byte(`not-json`), OriginNetwork)

		assert.ErrorIs(t, err, ErrMalformed)
		assert.NotErrorIs(t, err, ErrRejected)
	})
}

func TestDispatcher_Fail(t *testing.T) {
	h := &recorder[foo]{}
	d := New[foo](h)
	f := &Failure{Code: 503, Message: "Service Unavailable"}

	d.Fail(context.Background(), "/down", f)

	require.Len(t, h.calls, 1)
	assert.Equal(t, "failure", h.calls[0].method)
	assert.Equal(t, "/down", h.calls[0].url)
	assert.Same(t, f, h.calls[0].failure)
}

func TestDispatcher_FailNil(t *testing.T) {
	h := &recorder[foo]{}
	d := New[foo](h)

	require.NotPanics(t, func() { d.Fail(context.Background(), "/down", nil) })

	require.Len(t, h.calls, 1)
	assert.Equal(t, "failure", h.calls[0].method)
	require.NotNil(t, h.calls[0].failure)
	assert.Equal(t, CodeMalformed, h.calls[0].failure.Code)
	assert.ErrorIs(t, h.calls[0].failure, ErrMalformed)
}

func TestDispatcher_Timeout(t *testing.T) {
	t.Run("dismisses indicator then calls OnTimeout", func(t *testing.T) {
		ind := &indicator{}
		dec := &countingDecoder{}
		h := &recorder[foo]{}
		d := New[foo](h, WithIndicator(ind), WithDecoder(dec))

		d.Timeout(context.Background())

		assert.Equal(t, 1, ind.dismissed)
		require.Len(t, h.calls, 1)
		assert.Equal(t, "timeout", h.calls[0].method)
		assert.Zero(t, dec.calls)
	})

	t.Run("works without indicator", func(t *testing.T) {
		h := &recorder[foo]{}
		New[foo](h).Timeout(context.Background())

		require.Len(t, h.calls, 1)
		assert.Equal(t, "timeout", h.calls[0].method)
	})

	t.Run("works without descriptor", func(t *testing.T) {
		h := &recorder[any]{}
		New[any](h, WithLogger(slog.New(slog.DiscardHandler))).Timeout(context.Background())

		require.Len(t, h.calls, 1)
		assert.Equal(t, "timeout", h.calls[0].method)
	})
}

func TestFuncs(t *testing.T) {
	ctx := context.Background()

	t.Run("nil fields are no-ops", func(t *testing.T) {
		d := New[foo](Funcs[foo]{}, WithLogger(slog.New(slog.DiscardHandler)))

		assert.NoError(t, d.Dispatch(ctx, "u", []byte(`{"a":1}`), OriginNetwork))
		assert.NoError(t, d.Dispatch(ctx, "u", []byte(`{"a":1}`), OriginCache))
		assert.Error(t, d.Dispatch(ctx, "u", []byte(`x`), OriginNetwork))
		d.Timeout(ctx)
	})

	t.Run("routes to each function", func(t *testing.T) {
		var got []string
		d := New[foo](Funcs[foo]{
			Success:      func(context.Context, string, foo) { got = append(got, "success") },
			CacheSuccess: func(context.Context, string, foo) { got = append(got, "cache") },
			Failure:      func(context.Context, string, *Failure) { got = append(got, "failure") },
			Timeout:      func(context.Context) { got = append(got, "timeout") },
		}, WithLogger(slog.New(slog.DiscardHandler)))

		_ = d.Dispatch(ctx, "u", []byte(`{"a":1}`), OriginNetwork)
		_ = d.Dispatch(ctx, "u", []byte(`{"a":1}`), OriginCache)
		_ = d.Dispatch(ctx, "u", []byte(`x`), OriginNetwork)
		d.Timeout(ctx)

		assert.Equal(t, []string{"success", "cache", "failure", "timeout"}, got)
	})
}

func TestFailureError(t *testing.T) {
	f := &Failure{Code: 404, Message: "Not Found"}
	assert.Equal(t, "Not Found (code 404)", f.Error())

	f = malformed(ErrMalformed)
	assert.Equal(t, "malformed response data (code -200): payload is not a JSON object or array", f.Error())
	assert.ErrorIs(t, f, ErrMalformed)
}

package callback

import (
	"errors"
	"fmt"
	"reflect"
)

// CodeMalformed is the Failure code for payloads that cannot be turned into
// the declared result: bad shape, decode errors, rejected payloads and
// dispatchers without a Descriptor.
const CodeMalformed = -200

// MessageMalformed accompanies CodeMalformed.
const MessageMalformed = "malformed response data"

var (
	// ErrMalformed is the cause when a payload is neither an object nor an array.
	ErrMalformed = errors.New("payload is not a JSON object or array")

	// ErrNoDescriptor is the cause when the result type failed to resolve.
	ErrNoDescriptor = errors.New("result type was not resolved")

	// ErrShapeMismatch is the cause when an array arrives for a non-slice result.
	ErrShapeMismatch = errors.New("payload shape does not match result type")

	// ErrTypeMismatch is the cause when the text fast path cannot produce the
	// declared type.
	ErrTypeMismatch = errors.New("result type is not text")

	// ErrRejected is the cause when a payload matched a WithRejectWhen matcher.
	ErrRejected = errors.New("payload rejected")
)

// Failure is delivered to Handler.OnFailure and returned from Dispatch.
// Code and Message are the values surfaced to callers; Err carries the cause
// for errors.Is and errors.As.
type Failure struct {
	Code    int
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s (code %d)", f.Message, f.Code)
	}
	return fmt.Sprintf("%s (code %d): %v", f.Message, f.Code, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func malformed(cause error) *Failure {
	return &Failure{Code: CodeMalformed, Message: MessageMalformed, Err: cause}
}

// DecodeError wraps a Decoder error for a payload whose shape classified
// correctly but whose content did not decode.
type DecodeError struct {
	Type reflect.Type
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

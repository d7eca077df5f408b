package callback

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrUnresolvable is returned by Resolve when a result type has no payload
// shape it can be decoded from.
var ErrUnresolvable = errors.New("unresolvable result type")

// Kind selects how a Dispatcher turns payload text into a result.
type Kind int

const (
	// KindText delivers the payload verbatim. Only string resolves to it.
	KindText Kind = iota + 1

	// KindObject decodes a JSON object into a single value.
	KindObject

	// KindArray decodes a JSON array into a slice.
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Descriptor is the resolved form of a Dispatcher's result type. It is
// computed once by New and never changes afterwards.
type Descriptor struct {
	typ  reflect.Type
	elem reflect.Type
	kind Kind

	// custom is set when the result type implements json.Unmarshaler and
	// takes any object or array payload whole.
	custom bool
}

// Type returns the declared result type.
func (d *Descriptor) Type() reflect.Type { return d.typ }

// Elem returns the element type. For KindArray this is the slice element;
// otherwise it is the declared type itself.
func (d *Descriptor) Elem() reflect.Type { return d.elem }

// Kind returns the decoding strategy.
func (d *Descriptor) Kind() Kind { return d.kind }

func (d *Descriptor) String() string {
	if d.kind == KindArray {
		return fmt.Sprintf("%s of %s", d.kind, d.elem)
	}
	return fmt.Sprintf("%s %s", d.kind, d.typ)
}

var (
	textType        = reflect.TypeFor[string]()
	unmarshalerType = reflect.TypeFor[json.Unmarshaler]()
)

// Resolve maps T to a Descriptor.
//
//   - string resolves to KindText.
//   - Slices and pointers to slices resolve to KindArray with the slice
//     element as Elem.
//   - Structs, maps and pointers to them resolve to KindObject.
//
// Types implementing json.Unmarshaler, such as json.RawMessage, keep their
// kind but decode object and array payloads themselves.
//
// Bare scalars (bool, numbers and named string types) yield an error
// wrapping ErrUnresolvable, since a scalar payload is never an object or an
// array. So do interfaces, fixed-length arrays, funcs, channels and complex
// numbers.
func Resolve[T any]() (*Descriptor, error) {
	return resolve(reflect.TypeFor[T]())
}

func resolve(t reflect.Type) (*Descriptor, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrUnresolvable)
	}
	if t == textType {
		return &Descriptor{typ: t, elem: t, kind: KindText}, nil
	}

	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	custom := reflect.PointerTo(base).Implements(unmarshalerType)

	switch base.Kind() {
	case reflect.Interface:
		return nil, fmt.Errorf("%w: %s is an interface", ErrUnresolvable, t)
	case reflect.Array:
		return nil, fmt.Errorf("%w: %s is a fixed-length array", ErrUnresolvable, t)
	case reflect.Slice:
		if err := decodable(base.Elem()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnresolvable, t, err)
		}
		return &Descriptor{typ: t, elem: base.Elem(), kind: KindArray, custom: custom}, nil
	}

	if err := decodable(base); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnresolvable, t, err)
	}
	if !custom && scalar(base.Kind()) {
		return nil, fmt.Errorf("%w: %s is a scalar", ErrUnresolvable, t)
	}
	return &Descriptor{typ: t, elem: t, kind: KindObject, custom: custom}, nil
}

func scalar(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// decodable rejects kinds encoding/json can never populate.
func decodable(t reflect.Type) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return fmt.Errorf("%s values cannot be decoded", t.Kind())
	}
	return nil
}

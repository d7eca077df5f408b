package callback

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Shape is the structural class of a payload, decided from its first
// non-whitespace character.
type Shape int

const (
	// ShapeError marks text that is neither a JSON object nor an array.
	ShapeError Shape = iota
	// ShapeObject marks text starting with '{'.
	ShapeObject
	// ShapeArray marks text starting with '['.
	ShapeArray
)

func (s Shape) String() string {
	switch s {
	case ShapeError:
		return "error"
	case ShapeObject:
		return "object"
	case ShapeArray:
		return "array"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Classify reports the shape of raw without parsing it. A payload that
// starts like an object but is truncated is still ShapeObject; the
// decoder reports the malformed content.
func Classify(raw []byte) Shape {
	r := gjson.ParseBytes(raw)
	switch {
	case r.IsObject():
		return ShapeObject
	case r.IsArray():
		return ShapeArray
	default:
		return ShapeError
	}
}

// Origin tells a Dispatcher where a payload came from. It only selects the
// success callback; parsing is identical for both.
type Origin int

const (
	// OriginNetwork is a live response. It is the zero value.
	OriginNetwork Origin = iota
	// OriginCache is a response replayed from a local cache.
	OriginCache
)

func (o Origin) String() string {
	switch o {
	case OriginNetwork:
		return "network"
	case OriginCache:
		return "cache"
	default:
		return fmt.Sprintf("Origin(%d)", int(o))
	}
}

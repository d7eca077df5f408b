package callback

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when the input is not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// View looks up values in a payload by gjson path for Matcher evaluation.
type View interface {
	// Lookup returns the raw JSON at path. Strings keep their quotes.
	Lookup(path string) (string, bool)
}

// Inspect validates raw and returns a View over it.
func Inspect(raw []byte) (View, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	return payloadView(raw), nil
}

type payloadView []byte

func (v payloadView) Lookup(path string) (string, bool) {
	r := gjson.GetBytes(v, path)
	return r.Raw, r.Exists()
}

// extract returns the raw JSON at path. Strings are returned unquoted when
// text is set.
func extract(raw []byte, path string, text bool) ([]byte, bool) {
	r := gjson.GetBytes(raw, path)
	if !r.Exists() {
		return nil, false
	}
	if text && r.Type == gjson.String {
		return []byte(r.Str), true
	}
	return []byte(r.Raw), true
}

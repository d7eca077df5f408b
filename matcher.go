package callback

import "github.com/tidwall/gjson"

// Matcher decides whether a payload is a service-level error that should go
// to the failure callback even though it is well-formed JSON. Matchers are
// evaluated against a View before the payload is classified.
type Matcher interface {
	Match(v View) bool
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(v View) bool

// Match implements the Matcher interface.
func (f MatcherFunc) Match(v View) bool { return f(v) }

// HasFields matches when every path is present, e.g. HasFields("error").
func HasFields(paths ...string) Matcher {
	return MatcherFunc(func(v View) bool {
		for _, p := range paths {
			if _, ok := v.Lookup(p); !ok {
				return false
			}
		}
		return true
	})
}

// FieldEquals matches when path holds the JSON string value.
func FieldEquals(path, value string) Matcher {
	return MatcherFunc(func(v View) bool {
		raw, ok := v.Lookup(path)
		if !ok {
			return false
		}
		r := gjson.Parse(raw)
		return r.Type == gjson.String && r.Str == value
	})
}

// RawEquals compares the raw JSON at path, which makes it usable for
// numbers and booleans:
//
//	callback.Not(callback.RawEquals("code", "0"))
func RawEquals(path, raw string) Matcher {
	return MatcherFunc(func(v View) bool {
		got, ok := v.Lookup(path)
		return ok && got == raw
	})
}

// And matches when all of ms match.
func And(ms ...Matcher) Matcher {
	return MatcherFunc(func(v View) bool {
		for _, m := range ms {
			if !m.Match(v) {
				return false
			}
		}
		return true
	})
}

// Or matches when any of ms matches.
func Or(ms ...Matcher) Matcher {
	return MatcherFunc(func(v View) bool {
		for _, m := range ms {
			if m.Match(v) {
				return true
			}
		}
		return false
	})
}

// Not inverts m.
func Not(m Matcher) Matcher {
	return MatcherFunc(func(v View) bool { return !m.Match(v) })
}

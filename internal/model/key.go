package model

import (
	"cmp"
	"encoding/json"
	"strconv"
	"strings"
)

// Key is the natural identity of a record: a name, a numeric id, or a
// composite tuple of both. Opaque remote identifiers are string keys.
type Key struct {
	parts []keyPart
}

type keyPart struct {
	numeric bool
	n       int64
	s       string
}

// StringKey returns a single-string key.
func StringKey(s string) Key {
	return Key{parts: []keyPart{{s: s}}}
}

// IntKey returns a single-integer key.
func IntKey(n int) Key {
	return Key{parts: []keyPart{{numeric: true, n: int64(n)}}}
}

// TupleKey concatenates keys into a composite key.
func TupleKey(keys ...Key) Key {
	var k Key
	for _, p := range keys {
		k.parts = append(k.parts, p.parts...)
	}
	return k
}

// Len returns the number of tuple elements.
func (k Key) Len() int { return len(k.parts) }

// Compare orders keys element-wise: integers numerically, strings lexically,
// integers before strings, and a prefix before its extensions.
func (k Key) Compare(o Key) int {
	for i := 0; i < len(k.parts) && i < len(o.parts); i++ {
		a, b := k.parts[i], o.parts[i]
		switch {
		case a.numeric && b.numeric:
			if c := cmp.Compare(a.n, b.n); c != 0 {
				return c
			}
		case a.numeric:
			return -1
		case b.numeric:
			return 1
		default:
			if c := strings.Compare(a.s, b.s); c != 0 {
				return c
			}
		}
	}
	return cmp.Compare(len(k.parts), len(o.parts))
}

// Equal reports whether k and o identify the same record.
func (k Key) Equal(o Key) bool { return k.Compare(o) == 0 }

// String renders the key for display; tuple elements are joined by "/".
func (k Key) String() string {
	parts := make([]string, len(k.parts))
	for i, p := range k.parts {
		if p.numeric {
			parts[i] = strconv.FormatInt(p.n, 10)
		} else {
			parts[i] = p.s
		}
	}
	return strings.Join(parts, "/")
}

// id is an unambiguous identity used for de-duplication.
func (k Key) id() string {
	var b strings.Builder
	for _, p := range k.parts {
		if p.numeric {
			b.WriteByte('#')
			b.WriteString(strconv.FormatInt(p.n, 10))
		} else {
			b.WriteString(strconv.Quote(p.s))
		}
		b.WriteByte(';')
	}
	return b.String()
}

func (k Key) value() any {
	vals := make([]any, len(k.parts))
	for i, p := range k.parts {
		if p.numeric {
			vals[i] = p.n
		} else {
			vals[i] = p.s
		}
	}
	if len(vals) == 1 {
		return vals[0]
	}
	return vals
}

// MarshalJSON encodes single keys as a scalar and tuples as an array.
func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.value())
}

// MarshalYAML encodes single keys as a scalar and tuples as a sequence.
func (k Key) MarshalYAML() (any, error) {
	return k.value(), nil
}

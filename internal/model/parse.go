package model

import (
	"math"
	"strconv"
	"strings"

	errs "github.com/dm/gridmon/internal/errors"
)

// Remote attribute values always arrive as text. These helpers are the only
// place text becomes a typed column value; malformed input is an error,
// never a silent zero.

func parseError(attr, value string, kind Kind, cause error) error {
	return errs.WrapWithContext(errs.ErrCodeDataShape, "unparsable "+kind.String()+" attribute", cause,
		map[string]any{"attribute": attr, "value": value})
}

// ParseInt parses an int column value.
func ParseInt(attr, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, parseError(attr, value, KindInt, err)
	}
	return n, nil
}

// ParseLong parses a long column value.
func ParseLong(attr, value string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, parseError(attr, value, KindLong, err)
	}
	return n, nil
}

// ParseFloat parses a double column value. NaN and infinities are rejected.
func ParseFloat(attr, value string) (float64, error) {
	s := strings.TrimSpace(value)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, parseError(attr, value, KindDouble, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, parseError(attr, value, KindDouble, strconv.ErrRange)
	}
	return f, nil
}

// ParseBool parses a bool column value ("true"/"false", any case).
func ParseBool(attr, value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, parseError(attr, value, KindBool, strconv.ErrSyntax)
	}
}

// Getter resolves an attribute or report column by name.
type Getter func(name string) (string, error)

// Fields reads typed values through a Getter, remembering the first error so
// a run of reads can be checked once.
type Fields struct {
	get Getter
	err error
}

// NewFields wraps get.
func NewFields(get Getter) *Fields {
	return &Fields{get: get}
}

// Err returns the first error encountered.
func (f *Fields) Err() error { return f.err }

func (f *Fields) raw(name string) (string, bool) {
	if f.err != nil {
		return "", false
	}
	v, err := f.get(name)
	if err != nil {
		f.err = err
		return "", false
	}
	return v, true
}

// String returns the named value as text.
func (f *Fields) String(name string) string {
	v, _ := f.raw(name)
	return v
}

// Int returns the named value as an int.
func (f *Fields) Int(name string) int {
	v, ok := f.raw(name)
	if !ok {
		return 0
	}
	n, err := ParseInt(name, v)
	f.err = err
	return n
}

// Long returns the named value as an int64.
func (f *Fields) Long(name string) int64 {
	v, ok := f.raw(name)
	if !ok {
		return 0
	}
	n, err := ParseLong(name, v)
	f.err = err
	return n
}

// Float returns the named value as a float64.
func (f *Fields) Float(name string) float64 {
	v, ok := f.raw(name)
	if !ok {
		return 0
	}
	n, err := ParseFloat(name, v)
	f.err = err
	return n
}

// Bool returns the named value as a bool.
func (f *Fields) Bool(name string) bool {
	v, ok := f.raw(name)
	if !ok {
		return false
	}
	b, err := ParseBool(name, v)
	f.err = err
	return b
}

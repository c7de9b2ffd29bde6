package model

import (
	"fmt"

	errs "github.com/dm/gridmon/internal/errors"
)

// Record is one fixed-arity row of a schema. Values are stored with the Go
// type of their column kind: string, int, int64, float64 or bool.
type Record struct {
	schema *Schema
	values []any
}

// NewRecord returns an empty record for s.
func NewRecord(s *Schema) *Record {
	return &Record{schema: s, values: make([]any, s.Width())}
}

// Schema returns the record's schema.
func (r *Record) Schema() *Schema { return r.schema }

// Len returns the number of columns.
func (r *Record) Len() int { return len(r.values) }

// Set stores v at column i. It panics when i is out of range or v does not
// have the Go type of the column kind.
func (r *Record) Set(i int, v any) *Record {
	c := r.schema.Column(i)
	if !kindAccepts(c.Kind, v) {
		panic(fmt.Sprintf("model: %s.%s is %s, got %T", r.schema.entity, c.Name, c.Kind, v))
	}
	r.values[i] = v
	return r
}

func kindAccepts(k Kind, v any) bool {
	switch v.(type) {
	case string:
		return k == KindString
	case int:
		return k == KindInt
	case int64:
		return k == KindLong
	case float64:
		return k == KindDouble
	case bool:
		return k == KindBool
	default:
		return false
	}
}

// Get returns the raw value of column i, nil when unset.
func (r *Record) Get(i int) any { return r.values[i] }

// Values returns a copy of all column values in index order.
func (r *Record) Values() []any {
	return append([]any(nil), r.values...)
}

// String returns column i as a string; "" when unset or of another kind.
func (r *Record) String(i int) string {
	v, _ := r.values[i].(string)
	return v
}

// Int returns column i as an int; 0 when unset or of another kind.
func (r *Record) Int(i int) int {
	v, _ := r.values[i].(int)
	return v
}

// Long returns column i as an int64; 0 when unset or of another kind.
func (r *Record) Long(i int) int64 {
	v, _ := r.values[i].(int64)
	return v
}

// Float returns column i as a float64; 0 when unset or of another kind.
func (r *Record) Float(i int) float64 {
	v, _ := r.values[i].(float64)
	return v
}

// Bool returns column i as a bool; false when unset or of another kind.
func (r *Record) Bool(i int) bool {
	v, _ := r.values[i].(bool)
	return v
}

// Numeric returns column i as a float64 for int, long and double columns.
func (r *Record) Numeric(i int) (float64, bool) {
	switch v := r.values[i].(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// Validate fails when any declared column is unset.
func (r *Record) Validate() error {
	for i, v := range r.values {
		if v == nil {
			return errs.NewWithContext(errs.ErrCodeDataShape, "record column not populated",
				map[string]any{"entity": string(r.schema.entity), "column": r.schema.Column(i).Name})
		}
	}
	return nil
}

// Package sender declares the boundary between gridmon and a live cluster.
//
// RequestSender is the only way retrievers reach remote management state.
// Implementations own every transport detail (protocol, encoding, timeouts);
// values always cross the boundary as text and are coerced by the caller.
package sender

import (
	"context"

	errs "github.com/dm/gridmon/internal/errors"
)

// RequestSender queries remote management attributes and invokes
// administrative operations. Any returned error aborts the caller's current
// poll of one entity type.
type RequestSender interface {
	// FetchAll returns every readable attribute of obj.
	FetchAll(ctx context.Context, obj ObjectName) ([]Attribute, error)

	// FetchOne returns a single attribute of obj as text.
	FetchOne(ctx context.Context, obj ObjectName, attr string) (string, error)

	// FetchMany returns the named attributes in request order. Either every
	// attribute is returned or the call fails.
	FetchMany(ctx context.Context, obj ObjectName, attrs []string) (AttributeList, error)

	// Discover returns the objects matching q, sorted by canonical name.
	// An empty result is not an error.
	Discover(ctx context.Context, q Query) ([]ObjectName, error)

	// Invoke runs an operation on obj and returns its textual result,
	// which is empty for void operations.
	Invoke(ctx context.Context, obj ObjectName, operation string, args ...string) (string, error)

	// RunReport runs a tabular report on the cluster and returns one row
	// per result line, with values ordered as r.Columns.
	RunReport(ctx context.Context, r Report) ([]ReportRow, error)
}

// Attribute is a single named attribute value.
type Attribute struct {
	Name  string
	Value string
}

// AttributeList is an ordered list of attributes as returned by FetchMany.
type AttributeList []Attribute

// Get returns the value of the named attribute.
func (l AttributeList) Get(name string) (string, bool) {
	for _, a := range l {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Require returns the value of the named attribute, or a data-shape error
// when it is absent.
func (l AttributeList) Require(name string) (string, error) {
	v, ok := l.Get(name)
	if !ok {
		return "", errs.NewWithContext(errs.ErrCodeDataShape, "expected attribute missing",
			map[string]any{"attribute": name})
	}
	return v, nil
}

// Names returns the attribute names in order.
func (l AttributeList) Names() []string {
	out := make([]string, len(l))
	for i, a := range l {
		out[i] = a.Name
	}
	return out
}

// Report describes a bulk tabular query: the report definition to run and
// the ordered columns each returned row carries. Optional columns are
// included in Columns but may be absent from a row, reading as empty.
type Report struct {
	Name     string
	Columns  []string
	Optional []string
}

// IsZero reports whether r names no report.
func (r Report) IsZero() bool {
	return r.Name == ""
}

// Index returns the position of column, or -1.
func (r Report) Index(column string) int {
	for i, c := range r.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// IsOptional reports whether column may be absent from a row.
func (r Report) IsOptional(column string) bool {
	for _, c := range r.Optional {
		if c == column {
			return true
		}
	}
	return false
}

// ReportRow holds one line of report output, ordered as Report.Columns.
type ReportRow []string

// Lookup returns a function resolving column names against row, in the
// same shape as AttributeList.Require, so build logic can be shared between
// direct and report collection.
func (r Report) Lookup(row ReportRow) func(column string) (string, error) {
	return func(column string) (string, error) {
		i := r.Index(column)
		if i >= len(row) && r.IsOptional(column) {
			return "", nil
		}
		if i < 0 || i >= len(row) {
			return "", errs.NewWithContext(errs.ErrCodeDataShape, "report column missing",
				map[string]any{"report": r.Name, "column": column, "width": len(row)})
		}
		return row[i], nil
	}
}

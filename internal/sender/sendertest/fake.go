// Package sendertest provides an in-memory RequestSender for tests.
package sendertest

import (
	"context"
	"sort"
	"sync"

	errs "github.com/dm/gridmon/internal/errors"
	"github.com/dm/gridmon/internal/sender"
)

// Call records one request made against a Fake.
type Call struct {
	Method string
	Object string
	Attrs  []string
	Args   []string
}

// Fake is an in-memory management server. Objects are registered with Add;
// discovery matches them against query patterns exactly like a real server
// would. The optional hooks inject failures.
type Fake struct {
	// FetchErr, when set, is consulted before every FetchOne, FetchMany and
	// FetchAll; a non-nil result is returned instead of the attributes.
	FetchErr func(obj sender.ObjectName, attrs []string) error
	// DiscoverErr is consulted before every Discover.
	DiscoverErr func(q sender.Query) error
	// ReportErr is consulted before every RunReport.
	ReportErr func(r sender.Report) error

	mu      sync.Mutex
	objects map[string]*object
	reports map[string][]sender.ReportRow
	results map[string]string
	calls   []Call
}

type object struct {
	name  sender.ObjectName
	attrs map[string]string
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		objects: make(map[string]*object),
		reports: make(map[string][]sender.ReportRow),
		results: make(map[string]string),
	}
}

// Add registers an object with the given attributes, replacing any object
// of the same name, and returns its parsed name. It panics on a malformed name.
func (f *Fake) Add(name string, attrs map[string]string) sender.ObjectName {
	on := sender.MustObjectName(name)
	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[on.String()] = &object{name: on, attrs: copied}
	return on
}

// Set changes a single attribute of a registered object.
func (f *Fake) Set(name, attr, value string) {
	on := sender.MustObjectName(name)

	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.objects[on.String()]; ok {
		o.attrs[attr] = value
	}
}

// SetReport registers the rows returned for a report name.
func (f *Fake) SetReport(name string, rows ...sender.ReportRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[name] = rows
}

// SetResult registers the value returned when operation is invoked on name.
func (f *Fake) SetResult(name, operation, result string) {
	on := sender.MustObjectName(name)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[on.String()+"#"+operation] = result
}

// Calls returns a copy of every recorded call, in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times method was called.
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (f *Fake) record(c Call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *Fake) lookup(obj sender.ObjectName) (*object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[obj.String()]
	if !ok {
		return nil, errs.NewWithContext(errs.ErrCodeNotFound, "instance not found",
			map[string]any{"mbean": obj.String()})
	}
	return o, nil
}

// FetchAll implements sender.RequestSender.
func (f *Fake) FetchAll(_ context.Context, obj sender.ObjectName) ([]sender.Attribute, error) {
	f.record(Call{Method: "FetchAll", Object: obj.String()})
	if f.FetchErr != nil {
		if err := f.FetchErr(obj, nil); err != nil {
			return nil, err
		}
	}
	o, err := f.lookup(obj)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sender.Attribute, 0, len(o.attrs))
	for k, v := range o.attrs {
		out = append(out, sender.Attribute{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FetchOne implements sender.RequestSender.
func (f *Fake) FetchOne(_ context.Context, obj sender.ObjectName, attr string) (string, error) {
	f.record(Call{Method: "FetchOne", Object: obj.String(), Attrs: []string{attr}})
	list, err := f.fetch(obj, []string{attr})
	if err != nil {
		return "", err
	}
	return list[0].Value, nil
}

// FetchMany implements sender.RequestSender.
func (f *Fake) FetchMany(_ context.Context, obj sender.ObjectName, attrs []string) (sender.AttributeList, error) {
	f.record(Call{Method: "FetchMany", Object: obj.String(), Attrs: append([]string(nil), attrs...)})
	return f.fetch(obj, attrs)
}

func (f *Fake) fetch(obj sender.ObjectName, attrs []string) (sender.AttributeList, error) {
	if f.FetchErr != nil {
		if err := f.FetchErr(obj, attrs); err != nil {
			return nil, err
		}
	}
	o, err := f.lookup(obj)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(sender.AttributeList, 0, len(attrs))
	for _, a := range attrs {
		v, ok := o.attrs[a]
		if !ok {
			return nil, errs.NewWithContext(errs.ErrCodeNotFound, "attribute not found",
				map[string]any{"mbean": obj.String(), "attribute": a})
		}
		out = append(out, sender.Attribute{Name: a, Value: v})
	}
	return out, nil
}

// Discover implements sender.RequestSender.
func (f *Fake) Discover(_ context.Context, q sender.Query) ([]sender.ObjectName, error) {
	f.record(Call{Method: "Discover", Args: []string{q.Category.String()}})
	if f.DiscoverErr != nil {
		if err := f.DiscoverErr(q); err != nil {
			return nil, err
		}
	}
	pattern, err := q.Pattern()
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sender.ObjectName
	for _, o := range f.objects {
		if o.name.Matches(pattern) {
			out = append(out, o.name)
		}
	}
	sender.SortObjectNames(out)
	return out, nil
}

// Invoke implements sender.RequestSender.
func (f *Fake) Invoke(_ context.Context, obj sender.ObjectName, operation string, args ...string) (string, error) {
	f.record(Call{Method: "Invoke", Object: obj.String(), Attrs: []string{operation}, Args: append([]string(nil), args...)})
	if _, err := f.lookup(obj); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[obj.String()+"#"+operation], nil
}

// RunReport implements sender.RequestSender.
func (f *Fake) RunReport(_ context.Context, r sender.Report) ([]sender.ReportRow, error) {
	f.record(Call{Method: "RunReport", Args: []string{r.Name}})
	if f.ReportErr != nil {
		if err := f.ReportErr(r); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	rows, ok := f.reports[r.Name]
	if !ok {
		return nil, errs.NewWithContext(errs.ErrCodeNotFound, "report not found",
			map[string]any{"report": r.Name})
	}
	out := make([]sender.ReportRow, len(rows))
	for i, row := range rows {
		out[i] = append(sender.ReportRow(nil), row...)
	}
	return out, nil
}

var _ sender.RequestSender = (*Fake)(nil)

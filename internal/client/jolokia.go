package client

import (
	"context"

	"github.com/tidwall/gjson"

	errs "github.com/dm/gridmon/internal/errors"
	"github.com/dm/gridmon/internal/sender"
)

const opRunTabularReport = "runTabularReport"

// call sends r and returns the "value" of a successful response.
// Jolokia reports MBean failures inside a 200 response, so the embedded
// status is mapped to an error code here.
func (c *JolokiaClient) call(ctx context.Context, r request) (gjson.Result, error) {
	body, err := c.doPost(ctx, r)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errs.NewWithContext(errs.ErrCodeTransport, "malformed agent response",
			map[string]any{"type": r.Type, "mbean": r.MBean, "body": truncate(body, 200)})
	}

	res := gjson.ParseBytes(body)
	status := res.Get("status").Int()
	if status == 200 {
		return res.Get("value"), nil
	}

	detail := map[string]any{
		"type":       r.Type,
		"mbean":      r.MBean,
		"status":     status,
		"error":      res.Get("error").String(),
		"error_type": res.Get("error_type").String(),
	}
	switch status {
	case 404:
		return gjson.Result{}, errs.NewWithContext(errs.ErrCodeNotFound, "remote object not found", detail)
	case 401, 403:
		return gjson.Result{}, errs.NewWithContext(errs.ErrCodeUnauthorized, "agent denied request", detail)
	case 400:
		return gjson.Result{}, errs.NewWithContext(errs.ErrCodeInvalidRequest, "agent rejected request", detail)
	default:
		return gjson.Result{}, errs.NewWithContext(errs.ErrCodeTransport, "remote request failed", detail)
	}
}

// FetchAll implements sender.RequestSender. Composite attribute values are
// flattened into dotted names, e.g. "HeapMemoryUsage.used".
func (c *JolokiaClient) FetchAll(ctx context.Context, obj sender.ObjectName) ([]sender.Attribute, error) {
	v, err := c.call(ctx, request{Type: typeRead, MBean: obj.String()})
	if err != nil {
		return nil, err
	}
	if !v.IsObject() {
		return nil, errs.NewWithContext(errs.ErrCodeDataShape, "read of all attributes did not return an object",
			map[string]any{"mbean": obj.String()})
	}
	flat := make(map[string]string)
	v.ForEach(func(k, val gjson.Result) bool {
		flattenValue(flat, k.String(), val)
		return true
	})
	return sortedAttributes(flat), nil
}

// FetchOne implements sender.RequestSender.
func (c *JolokiaClient) FetchOne(ctx context.Context, obj sender.ObjectName, attr string) (string, error) {
	v, err := c.call(ctx, request{Type: typeRead, MBean: obj.String(), Attribute: attr})
	if err != nil {
		return "", err
	}
	return textValue(v), nil
}

// FetchMany implements sender.RequestSender.
func (c *JolokiaClient) FetchMany(ctx context.Context, obj sender.ObjectName, attrs []string) (sender.AttributeList, error) {
	if len(attrs) == 0 {
		return sender.AttributeList{}, nil
	}
	v, err := c.call(ctx, request{Type: typeRead, MBean: obj.String(), Attribute: attrs})
	if err != nil {
		return nil, err
	}

	values := objectFields(v)
	out := make(sender.AttributeList, 0, len(attrs))
	for _, name := range attrs {
		val, ok := values[name]
		if !ok {
			return nil, errs.NewWithContext(errs.ErrCodeDataShape, "attribute missing from response",
				map[string]any{"mbean": obj.String(), "attribute": name})
		}
		out = append(out, sender.Attribute{Name: name, Value: textValue(val)})
	}
	return out, nil
}

// Discover implements sender.RequestSender.
func (c *JolokiaClient) Discover(ctx context.Context, q sender.Query) ([]sender.ObjectName, error) {
	pattern, err := q.Pattern()
	if err != nil {
		return nil, err
	}
	v, err := c.call(ctx, request{Type: typeSearch, MBean: pattern.String()})
	if err != nil {
		return nil, err
	}

	var out []sender.ObjectName
	for _, item := range v.Array() {
		name, err := sender.ParseObjectName(item.String())
		if err != nil {
			return nil, errs.WrapWithContext(errs.ErrCodeDataShape, "search returned a malformed name", err,
				map[string]any{"pattern": pattern.String()})
		}
		out = append(out, name)
	}
	sender.SortObjectNames(out)
	return out, nil
}

// Invoke implements sender.RequestSender.
func (c *JolokiaClient) Invoke(ctx context.Context, obj sender.ObjectName, operation string, args ...string) (string, error) {
	v, err := c.call(ctx, request{Type: typeExec, MBean: obj.String(), Operation: operation, Arguments: args})
	if err != nil {
		return "", err
	}
	return textValue(v), nil
}

// RunReport implements sender.RequestSender using the reporter of the
// lowest numbered member.
func (c *JolokiaClient) RunReport(ctx context.Context, r sender.Report) ([]sender.ReportRow, error) {
	if r.IsZero() {
		return nil, errs.New(errs.ErrCodeInvalidRequest, "report name required")
	}
	reporters, err := c.Discover(ctx, sender.Query{Category: sender.CategoryReporters})
	if err != nil {
		return nil, err
	}
	if len(reporters) == 0 {
		return nil, errs.New(errs.ErrCodeNotFound, "no reporter available")
	}
	reporter := lowestNode(reporters)

	v, err := c.call(ctx, request{Type: typeExec, MBean: reporter.String(), Operation: opRunTabularReport, Arguments: []string{r.Name}})
	if err != nil {
		return nil, err
	}
	return tabularRows(v, r)
}

// Version returns information about the answering agent.
func (c *JolokiaClient) Version(ctx context.Context) (AgentInfo, error) {
	v, err := c.call(ctx, request{Type: typeVersion})
	if err != nil {
		return AgentInfo{}, err
	}
	return AgentInfo{
		Agent:    v.Get("agent").String(),
		Protocol: v.Get("protocol").String(),
		Product:  v.Get("info.product").String(),
	}, nil
}

var _ sender.RequestSender = (*JolokiaClient)(nil)

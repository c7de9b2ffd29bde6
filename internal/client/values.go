package client

import (
	"sort"
	"strconv"

	"github.com/tidwall/gjson"

	errs "github.com/dm/gridmon/internal/errors"
	"github.com/dm/gridmon/internal/sender"
)

// textValue renders a JSON value as the text form every attribute takes
// across the sender boundary. Numbers keep their literal form so large
// longs do not lose precision.
func textValue(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return v.Str
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	default:
		return v.Raw
	}
}

// flattenValue stores v under name, or for objects stores every leaf under
// a dotted name. e.g. {"used": 1, "max": 2} under "Heap" becomes
// Heap.used=1 and Heap.max=2. Arrays are kept as JSON text.
func flattenValue(dst map[string]string, name string, v gjson.Result) {
	if !v.IsObject() {
		dst[name] = textValue(v)
		return
	}
	v.ForEach(func(k, sub gjson.Result) bool {
		flattenValue(dst, name+"."+k.String(), sub)
		return true
	})
}

// objectFields returns the direct children of an object by key.
func objectFields(v gjson.Result) map[string]gjson.Result {
	out := make(map[string]gjson.Result)
	if !v.IsObject() {
		return out
	}
	v.ForEach(func(k, val gjson.Result) bool {
		out[k.String()] = val
		return true
	})
	return out
}

func sortedAttributes(flat map[string]string) []sender.Attribute {
	out := make([]sender.Attribute, 0, len(flat))
	for k, v := range flat {
		out = append(out, sender.Attribute{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// lowestNode returns the name with the smallest nodeId property, or the
// first name when none carries one.
func lowestNode(names []sender.ObjectName) sender.ObjectName {
	best, bestID := names[0], -1
	for _, n := range names {
		id, err := strconv.Atoi(n.Key("nodeId"))
		if err != nil {
			continue
		}
		if bestID < 0 || id < bestID {
			best, bestID = n, id
		}
	}
	return best
}

// tabularRows extracts report rows from tabular data. The agent renders a
// table either as a list of row objects or as row objects nested under
// their index values; both shapes are walked. A row is an object holding
// at least one report column as a scalar.
func tabularRows(v gjson.Result, r sender.Report) ([]sender.ReportRow, error) {
	var rows []sender.ReportRow
	var walkErr error

	var walk func(gjson.Result)
	walk = func(node gjson.Result) {
		if walkErr != nil {
			return
		}
		switch {
		case node.IsArray():
			for _, item := range node.Array() {
				walk(item)
			}
		case node.IsObject():
			fields := objectFields(node)
			if !isRow(fields, r.Columns) {
				node.ForEach(func(_, child gjson.Result) bool {
					walk(child)
					return walkErr == nil
				})
				return
			}
			row := make(sender.ReportRow, len(r.Columns))
			for i, col := range r.Columns {
				val, ok := fields[col]
				if !ok && r.IsOptional(col) {
					continue
				}
				if !ok {
					walkErr = errs.NewWithContext(errs.ErrCodeDataShape, "report row is missing a column",
						map[string]any{"report": r.Name, "column": col})
					return
				}
				row[i] = textValue(val)
			}
			rows = append(rows, row)
		}
	}
	walk(v)

	if walkErr != nil {
		return nil, walkErr
	}
	return rows, nil
}

func isRow(fields map[string]gjson.Result, columns []string) bool {
	for _, col := range columns {
		if v, ok := fields[col]; ok && !v.IsObject() && !v.IsArray() {
			return true
		}
	}
	return false
}

// Package output writes poll results as JSON, YAML or a text table.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	errs "github.com/dm/gridmon/internal/errors"
	"github.com/dm/gridmon/internal/model"
)

// Format represents the output format type
type Format string

const (
	// FormatJSON outputs data in JSON format
	FormatJSON Format = "json"
	// FormatYAML outputs data in YAML format
	FormatYAML Format = "yaml"
	// FormatTable outputs data as one text table per entity type
	FormatTable Format = "table"
)

func (f Format) IsUnknown() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatTable:
		return false
	default:
		return true
	}
}

// SupportedFormats returns a list of all supported output formats.
func SupportedFormats() []string {
	return []string{
		string(FormatJSON),
		string(FormatYAML),
		string(FormatTable),
	}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if f.IsUnknown() {
		return "", errs.NewWithContext(errs.ErrCodeInvalidRequest, "unknown output format",
			map[string]any{"format": s, "supported": SupportedFormats()})
	}
	return f, nil
}

// Result is everything written for one poll cycle.
type Result struct {
	Cycle *model.Cycle
	// Order lists entity types in display order; nil sorts them by name.
	Order []model.EntityType
	// Resources and CacheRates are optional derived summaries.
	Resources  *model.ClusterResources
	CacheRates []model.CacheRate
	// Trends are per-machine load histories, oldest first.
	Trends []Trend
	// LastGood holds, for failed entity types, when they last succeeded.
	LastGood map[model.EntityType]time.Time
}

// Trend is the recent history of one value.
type Trend struct {
	Label  string    `json:"label" yaml:"label"`
	Values []float64 `json:"values" yaml:"values"`
}

func (r Result) entities() []model.EntityType {
	if r.Order != nil {
		return r.Order
	}
	seen := make(map[model.EntityType]bool)
	var out []model.EntityType
	if r.Cycle != nil {
		for e := range r.Cycle.Snapshots {
			seen[e] = true
		}
		for e := range r.Cycle.Errors {
			seen[e] = true
		}
	}
	for e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type resultDoc struct {
	FetchedAt  time.Time               `json:"fetched_at" yaml:"fetched_at"`
	Snapshots  []*model.Snapshot       `json:"snapshots" yaml:"snapshots"`
	Errors     map[string]string       `json:"errors,omitempty" yaml:"errors,omitempty"`
	Resources  *model.ClusterResources `json:"resources,omitempty" yaml:"resources,omitempty"`
	CacheRates []model.CacheRate       `json:"cache_rates,omitempty" yaml:"cache_rates,omitempty"`
	Trends     []Trend                 `json:"trends,omitempty" yaml:"trends,omitempty"`
	LastGood   map[string]time.Time    `json:"last_good,omitempty" yaml:"last_good,omitempty"`
}

func (r Result) doc() resultDoc {
	d := resultDoc{
		Snapshots:  []*model.Snapshot{},
		Resources:  r.Resources,
		CacheRates: r.CacheRates,
		Trends:     r.Trends,
	}
	for e, at := range r.LastGood {
		if d.LastGood == nil {
			d.LastGood = make(map[string]time.Time)
		}
		d.LastGood[string(e)] = at
	}
	if r.Cycle == nil {
		return d
	}
	d.FetchedAt = r.Cycle.FetchedAt
	for _, e := range r.entities() {
		if snap := r.Cycle.Snapshot(e); snap != nil {
			d.Snapshots = append(d.Snapshots, snap)
		}
		if err := r.Cycle.Errors[e]; err != nil {
			if d.Errors == nil {
				d.Errors = make(map[string]string)
			}
			d.Errors[string(e)] = err.Error()
		}
	}
	return d
}

// Writer handles serialization of poll results to one output.
type Writer struct {
	format Format
	output io.Writer
}

// NewWriter creates a new Writer with the specified format and output destination.
// If output is nil, os.Stdout will be used.
// If format is unknown, defaults to JSON format.
func NewWriter(format Format, output io.Writer) *Writer {
	if output == nil {
		output = os.Stdout
	}
	if format.IsUnknown() {
		slog.Warn("unknown format, defaulting to JSON", "format", format)
		format = FormatJSON
	}
	return &Writer{
		format: format,
		output: output,
	}
}

// Format returns the writer's format.
func (w *Writer) Format() Format { return w.format }

// Write outputs r in the configured format.
func (w *Writer) Write(r Result) error {
	switch w.format {
	case FormatJSON:
		return w.writeJSON(r.doc())
	case FormatYAML:
		return w.writeYAML(r.doc())
	case FormatTable:
		return w.writeTable(r)
	default:
		return fmt.Errorf("unsupported format: %s", w.format)
	}
}

// WriteValue outputs an arbitrary value. Table format prints it as text.
func (w *Writer) WriteValue(v any) error {
	switch w.format {
	case FormatJSON:
		return w.writeJSON(v)
	case FormatYAML:
		return w.writeYAML(v)
	default:
		_, err := fmt.Fprintln(w.output, v)
		return err
	}
}

// WriteRows outputs a simple listing. JSON and YAML get one object per row
// keyed by header; table format renders a text table.
func (w *Writer) WriteRows(headers []string, rows [][]string) error {
	if w.format == FormatTable {
		return w.writeRowsTable(headers, rows)
	}
	items := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		item := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				item[h] = row[i]
			}
		}
		items = append(items, item)
	}
	if w.format == FormatYAML {
		return w.writeYAML(items)
	}
	return w.writeJSON(items)
}

func (w *Writer) writeJSON(v any) error {
	encoder := json.NewEncoder(w.output)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to serialize to JSON: %w", err)
	}
	return nil
}

func (w *Writer) writeYAML(v any) error {
	encoder := yaml.NewEncoder(w.output)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to serialize to YAML: %w", err)
	}
	return encoder.Close()
}

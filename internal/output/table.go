package output

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"

	"github.com/dm/gridmon/internal/format"
	"github.com/dm/gridmon/internal/model"
)

var (
	colorGreen = lipgloss.Color("#10b981")
	colorRed   = lipgloss.Color("#ef4444")
	colorGray  = lipgloss.Color("#6b7280")
	colorBlue  = lipgloss.Color("#3b82f6")
	colorWhite = lipgloss.Color("#f8fafc")
	colorAlt   = lipgloss.Color("#0f172a")
)

// tableStyles are bound to the writer's renderer.
type tableStyles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	cellAlt lipgloss.Style
	numeric lipgloss.Style
	border  lipgloss.Style
	err     lipgloss.Style
	dim     lipgloss.Style
}

func newTableStyles(r *lipgloss.Renderer) tableStyles {
	return tableStyles{
		title:   r.NewStyle().Bold(true).Foreground(colorBlue),
		header:  r.NewStyle().Bold(true).Foreground(colorGray).Padding(0, 1),
		cell:    r.NewStyle().Foreground(colorWhite).Padding(0, 1),
		cellAlt: r.NewStyle().Foreground(colorWhite).Background(colorAlt).Padding(0, 1),
		numeric: r.NewStyle().Foreground(colorGreen).Padding(0, 1),
		border:  r.NewStyle().Foreground(colorGray),
		err:     r.NewStyle().Bold(true).Foreground(colorRed),
		dim:     r.NewStyle().Foreground(colorGray),
	}
}

func (w *Writer) writeTable(r Result) error {
	st := newTableStyles(lipgloss.NewRenderer(w.output))
	var b strings.Builder

	if r.Cycle != nil && !r.Cycle.FetchedAt.IsZero() {
		b.WriteString(st.dim.Render("fetched at " + r.Cycle.FetchedAt.Format("2006-01-02 15:04:05")))
		b.WriteString("\n")
	}
	if r.Resources != nil {
		b.WriteString(renderResources(st, *r.Resources))
		b.WriteString("\n")
	}

	for _, e := range r.entities() {
		if err := r.Cycle.Errors[e]; err != nil {
			b.WriteString("\n")
			b.WriteString(st.err.Render(string(e) + ": " + sanitize(err.Error())))
			if at, ok := r.LastGood[e]; ok {
				b.WriteString(st.dim.Render("  (last good " + at.Format("15:04:05") + ")"))
			}
			b.WriteString("\n")
			continue
		}
		snap := r.Cycle.Snapshot(e)
		if snap == nil {
			continue
		}
		b.WriteString("\n")
		b.WriteString(st.title.Render(fmt.Sprintf("%s (%d)", e, snap.Len())))
		b.WriteString("\n")
		b.WriteString(renderSnapshot(st, snap))
		b.WriteString("\n")
	}

	if len(r.CacheRates) > 0 {
		b.WriteString("\n")
		b.WriteString(st.title.Render("cache throughput"))
		b.WriteString("\n")
		b.WriteString(renderRates(st, r.CacheRates))
		b.WriteString("\n")
	}

	if len(r.Trends) > 0 {
		b.WriteString("\n")
		b.WriteString(st.title.Render("load trend"))
		b.WriteString("\n")
		b.WriteString(renderTrends(st, r.Trends))
		b.WriteString("\n")
	}

	_, err := fmt.Fprint(w.output, b.String())
	return err
}

func newTable(st tableStyles, headers []string, numeric func(col int) bool) *ltable.Table {
	return ltable.New().
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == ltable.HeaderRow:
				return st.header
			case numeric(col):
				return st.numeric
			case row%2 == 0:
				return st.cellAlt
			default:
				return st.cell
			}
		}).
		BorderStyle(st.border).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(true).
		BorderColumn(false)
}

func renderSnapshot(st tableStyles, snap *model.Snapshot) string {
	schema := snap.Schema()
	if snap.Len() == 0 {
		return st.dim.Render("  (no records)")
	}
	t := newTable(st, schema.Names(), func(col int) bool {
		return col >= 0 && col < schema.Width() && schema.Column(col).Kind != model.KindString
	})
	for _, e := range snap.Entries() {
		cells := make([]string, schema.Width())
		for i := range cells {
			cells[i] = FormatCell(schema.Column(i), e.Record.Get(i))
		}
		t = t.Row(cells...)
	}
	return t.String()
}

func (w *Writer) writeRowsTable(headers []string, rows [][]string) error {
	st := newTableStyles(lipgloss.NewRenderer(w.output))
	t := newTable(st, headers, func(int) bool { return false })
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = sanitize(c)
		}
		t = t.Row(cells...)
	}
	_, err := fmt.Fprintln(w.output, t.String())
	return err
}

func renderRates(st tableStyles, rates []model.CacheRate) string {
	t := newTable(st, []string{"Cache", "Gets", "Puts"}, func(col int) bool { return col > 0 })
	for _, r := range rates {
		t = t.Row(sanitize(r.Key.String()), format.Rate(r.GetsPerSec), format.Rate(r.PutsPerSec))
	}
	return t.String()
}

const trendWidth = 30

func renderTrends(st tableStyles, trends []Trend) string {
	t := newTable(st, []string{"Machine", "Load", "History"}, func(col int) bool { return col > 0 })
	for _, tr := range trends {
		last := format.NotAvailable
		if n := len(tr.Values); n > 0 {
			last = format.Load(tr.Values[n-1])
		}
		t = t.Row(sanitize(tr.Label), last, Sparkline(tr.Values, trendWidth))
	}
	return t.String()
}

func renderResources(st tableStyles, res model.ClusterResources) string {
	load := format.NotAvailable
	if res.LoadSampleSize > 0 {
		load = format.Load(res.AvgLoad)
	}
	return st.dim.Render(fmt.Sprintf("machines %d  cpus %d  memory %s free of %s (%s)  load %s",
		res.Machines, res.Processors,
		format.Bytes(res.FreeMemory), format.Bytes(res.TotalMemory),
		format.Ratio(res.FreeRatio), load))
}

// FormatCell renders one record value for display according to the column's
// kind and unit. Unset values render empty.
func FormatCell(c model.Column, v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return sanitize(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return formatInteger(c.Unit, int64(x))
	case int64:
		return formatInteger(c.Unit, x)
	case float64:
		switch c.Unit {
		case model.UnitRatio:
			return format.Ratio(x)
		case model.UnitLoad:
			return format.Load(x)
		default:
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
	default:
		return sanitize(fmt.Sprint(x))
	}
}

func formatInteger(u model.Unit, n int64) string {
	switch u {
	case model.UnitBytes:
		return format.Bytes(n)
	case model.UnitMegabytes:
		return format.Megabytes(n)
	default:
		return format.Number(n)
	}
}

// sanitize strips control characters from remote strings.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

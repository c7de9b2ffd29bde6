package output

import (
	"slices"
	"strings"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders values as a block sparkline of exactly width runes.
//
// Rules:
//   - Empty values → width spaces
//   - All zeros → all '▁' (floor level)
//   - Values longer than width → last width values
//   - Fewer values than width → left-padded with spaces
//   - Negative values (not available) render at floor level
func Sparkline(values []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(values) == 0 {
		return strings.Repeat(" ", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	maxVal := slices.Max(values)

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", width-len(values)))
	for _, v := range values {
		var idx int
		if maxVal > 0 && v > 0 {
			idx = int(v / maxVal * 7)
		}
		idx = max(0, min(idx, 7))
		sb.WriteRune(sparkBlocks[idx])
	}
	return sb.String()
}

// Package format renders statistic values for the table output.
package format

import (
	"fmt"
	"strconv"
	"strings"
)

// NotAvailable is shown for sentinel values the cluster did not report.
const NotAvailable = "---"

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// Bytes renders a byte count with one decimal place in the largest binary
// unit below it.
func Bytes(n int64) string {
	if n < 1024 && n > -1024 {
		return fmt.Sprintf("%d B", n)
	}
	v := float64(n) / 1024
	unit := 0
	for unit < len(byteUnits)-1 && (v >= 1024 || v <= -1024) {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", v, byteUnits[unit])
}

// Megabytes renders a size the cluster reports in megabytes, such as
// machine and member memory.
func Megabytes(mb int64) string {
	return Bytes(mb << 20)
}

// Rate renders a per-second rate. Negative rates have no baseline.
func Rate(perSec float64) string {
	switch {
	case perSec < 0:
		return NotAvailable
	case perSec == 0:
		return "0 /s"
	}
	whole, frac, _ := strings.Cut(strconv.FormatFloat(perSec, 'f', 1, 64), ".")
	return group(whole) + "." + frac + " /s"
}

// Load renders a system load average. Platforms without one report a
// negative load.
func Load(load float64) string {
	if load < 0 {
		return NotAvailable
	}
	return strconv.FormatFloat(load, 'f', 2, 64)
}

// Number renders an integer with thousands separators.
func Number(n int64) string {
	s := strconv.FormatInt(n, 10)
	if digits, ok := strings.CutPrefix(s, "-"); ok {
		return "-" + group(digits)
	}
	return group(s)
}

// Ratio renders a fraction in [0,1] as a percentage. Negative ratios have
// no denominator.
func Ratio(r float64) string {
	if r < 0 {
		return NotAvailable
	}
	return strconv.FormatFloat(r*100, 'f', 1, 64) + "%"
}

// group inserts a comma every three digits from the right.
func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

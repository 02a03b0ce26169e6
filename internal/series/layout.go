package series

import (
	"strings"
	"time"
)

// DefaultLayout renders timestamps as year_month_day_hour_minute_second_micros,
// e.g. 2024_03_01_14_05_09_123456.
const DefaultLayout = "2006_01_02_15_04_05_000000"

// Layout formats and parses sample timestamps. Go only recognises fractional
// seconds after '.' or ',', so a trailing "_000..." fraction is rewritten to
// ".000..." internally and swapped back on output.
type Layout struct {
	goLayout       string
	underscoreFrac bool
}

// NewLayout wraps a Go time layout. An empty layout selects DefaultLayout.
func NewLayout(layout string) Layout {
	if layout == "" {
		layout = DefaultLayout
	}
	if i := strings.LastIndex(layout, "05_0"); i >= 0 && strings.Trim(layout[i+3:], "0") == "" {
		return Layout{goLayout: layout[:i+2] + "." + layout[i+3:], underscoreFrac: true}
	}
	return Layout{goLayout: layout}
}

// String returns the layout as it was configured.
func (l Layout) String() string {
	if !l.underscoreFrac {
		return l.goLayout
	}
	return swapLast(l.goLayout, ".", "_")
}

// Format renders t.
func (l Layout) Format(t time.Time) string {
	out := t.Format(l.goLayout)
	if l.underscoreFrac {
		out = swapLast(out, ".", "_")
	}
	return out
}

// Parse reads a timestamp in local time.
func (l Layout) Parse(s string) (time.Time, error) {
	if l.underscoreFrac {
		s = swapLast(s, "_", ".")
	}
	return time.ParseInLocation(l.goLayout, s, time.Local)
}

func swapLast(s, old, repl string) string {
	i := strings.LastIndex(s, old)
	if i < 0 {
		return s
	}
	return s[:i] + repl + s[i+len(old):]
}

package table

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the layout timestamps are written back with.
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout is used for date columns holding only midnight values.
const DateLayout = "2006-01-02"

// nullMarkers are the cell values treated as missing, matching the
// markers pandas recognises when reading the upstream "cleaned" files.
var nullMarkers = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// IsNull reports whether a raw cell denotes a missing value.
func IsNull(cell string) bool {
	_, ok := nullMarkers[strings.TrimSpace(cell)]
	return ok
}

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// ParseTimestamp parses cell with the first layout that accepts it. Values
// without a zone are read as UTC. Null or unparseable cells return ok=false.
func ParseTimestamp(cell string) (time.Time, bool) {
	s := strings.TrimSpace(cell)
	if IsNull(s) {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseFloat parses a numeric cell. Null cells return NaN with ok=true;
// non-numeric cells return ok=false.
func ParseFloat(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if IsNull(s) {
		return math.NaN(), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FormatFloat renders f the way Python prints a float: integral values keep
// a trailing ".0" and NaN becomes an empty cell.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ""
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatBool renders b as Python's True/False.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// FormatTimestampColumn renders a parsed date column. A column where every
// value falls on midnight is written date-only; otherwise every value gets
// the finest sub-second precision present in the column. Nil entries are
// written as empty cells.
func FormatTimestampColumn(stamps []*time.Time) []string {
	datesOnly, digits := true, 0
	for _, ts := range stamps {
		if ts == nil {
			continue
		}
		u := ts.UTC()
		if u.Hour() != 0 || u.Minute() != 0 || u.Second() != 0 || u.Nanosecond() != 0 {
			datesOnly = false
		}
		switch ns := u.Nanosecond(); {
		case ns%1000 != 0:
			digits = 9
		case ns%1000000 != 0 && digits < 6:
			digits = 6
		case ns != 0 && digits < 3:
			digits = 3
		}
	}

	layout := TimestampLayout
	switch {
	case datesOnly:
		layout = DateLayout
	case digits > 0:
		layout += "." + strings.Repeat("0", digits)
	}

	out := make([]string, len(stamps))
	for i, ts := range stamps {
		if ts != nil {
			out[i] = ts.UTC().Format(layout)
		}
	}
	return out
}

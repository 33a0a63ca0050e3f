// Package normalize parses the loosely formatted fields that arrive in
// supplier price-list files into canonical values. Every parser here is
// total: bad input yields a defaulted value or a "not ok" flag, never an
// error, so a single malformed cell cannot abort a row.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases and removes diacritics ("Sí" -> "si"), the comparison key
// used wherever feed text is matched against user text.
func Fold(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// ParseBool reports whether raw is the affirmative token used by the feed
// ("si", in any casing, with or without the accent). Empty or anything else
// is false.
func ParseBool(raw string) bool {
	return Fold(strings.TrimSpace(raw)) == "si"
}

// ParsePrice parses a price cell such as "$ 1.234,50" or "45.90". It strips
// currency symbols and spaces and converts the locale decimal comma. The
// second return value is false when the cell is unparseable; callers default
// to 0.0 and log a warning.
func ParsePrice(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.NewReplacer("$", "", " ", "", " ", "").Replace(s)
	// Feed uses the comma as decimal separator; a value with both separators
	// ("1.234,50") carries thousands dots that must go first.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParsePositiveInt parses business-key cells where zero or negative is not a
// valid id. Returns false for empty, non-numeric, NaN-ish or non-positive
// input. Accepts "12.0" style values that spreadsheet exports produce.
func ParsePositiveInt(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || Fold(s) == "nan" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, false
		}
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f != math.Trunc(f) || f <= 0 {
		return 0, false
	}
	return int64(f), true
}

// ParseFloat parses a plain numeric cell, defaulting to 0 on failure.
func ParseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

var spanishMonths = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"setiembre":  time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006/01/02",
}

// ParseSpanishDate best-effort parses the date shapes the feed actually
// uses: ISO dates, day-first slashed dates, and written-out Spanish dates
// like "3 de febrero de 2025". Returns nil when nothing matches.
func ParseSpanishDate(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	// "3 de febrero de 2025" / "3 febrero 2025"
	fields := strings.FieldsFunc(Fold(s), func(r rune) bool {
		return r == ' ' || r == ','
	})
	var parts []string
	for _, f := range fields {
		if f != "de" && f != "del" {
			parts = append(parts, f)
		}
	}
	if len(parts) == 3 {
		day, errD := strconv.Atoi(parts[0])
		month, okM := spanishMonths[parts[1]]
		year, errY := strconv.Atoi(parts[2])
		if errD == nil && okM && errY == nil && day >= 1 && day <= 31 {
			t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	return nil
}

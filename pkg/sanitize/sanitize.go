// Package sanitize validates and cleans raw field values from upstream extracts.
//
// Every function is total: malformed input yields ok == false, never a panic,
// so callers can count and skip a field without aborting the stream.
package sanitize

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

const (
	// DefaultTextLen is the truncation length used when Text is given maxLen <= 0.
	DefaultTextLen = 255
	// MaxIndicatorCodeLen is the longest indicator code accepted.
	MaxIndicatorCodeLen = 50
)

// Bounds is an inclusive numeric range.
type Bounds struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v lies within the bounds.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// YearRange is an inclusive range of years.
type YearRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Contains reports whether y lies within the range.
func (r YearRange) Contains(y int) bool {
	return y >= r.Min && y <= r.Max
}

var (
	DefaultValueBounds = Bounds{Min: -1_000_000, Max: 1_000_000_000}
	GDPGrowthBounds    = Bounds{Min: -50, Max: 50}
	InflationBounds    = Bounds{Min: -20, Max: 100}

	WorldBankYears = YearRange{Min: 1960, Max: 2030}
	OECDYears      = YearRange{Min: 1960, Max: 2030}
	IMFYears       = YearRange{Min: 1980, Max: 2030}
)

// emptyMarkers are tokens the agencies use for "no value".
var emptyMarkers = map[string]struct{}{
	"":    {},
	"..":  {},
	"nan": {},
	"n/a": {},
}

// Text strips markup and control characters, trims, and truncates to maxLen runes.
func Text(s string, maxLen int) (string, bool) {
	if s == "" {
		return "", false
	}
	if maxLen <= 0 {
		maxLen = DefaultTextLen
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '<', r == '>', r == '"', r == '\'', r == '&':
			continue
		case r < 0x20, r == 0x7f:
			continue
		}
		b.WriteRune(r)
	}

	out := strings.TrimSpace(b.String())
	if utf8.RuneCountInString(out) > maxLen {
		out = string([]rune(out)[:maxLen])
		out = strings.TrimSpace(out)
	}
	if out == "" {
		return "", false
	}
	return out, true
}

// NumericValue parses s as a float within bounds.
// Empty markers, non-finite numbers and out-of-range values are rejected.
// Thousands separators are accepted ("1,234.5").
func NumericValue(s string, b Bounds) (float64, bool) {
	s = strings.TrimSpace(s)
	if _, empty := emptyMarkers[strings.ToLower(s)]; empty {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if !b.Contains(v) {
		return 0, false
	}
	return v, true
}

// Year parses s as an integer year within r.
func Year(s string, r YearRange) (int, bool) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	if !r.Contains(y) {
		return 0, false
	}
	return y, true
}

// CountryCode checks the shape of a source-native country code.
// World Bank and OECD use ISO alpha-3; IMF uses three-digit WEO codes in [100,999].
func CountryCode(code string, src models.Source) (string, bool) {
	code = strings.TrimSpace(code)
	switch src {
	case models.SourceIMF:
		n, err := strconv.Atoi(code)
		if err != nil || n < 100 || n > 999 {
			return "", false
		}
		return strconv.Itoa(n), true
	case models.SourceWorldBank, models.SourceOECD:
		if len(code) != 3 {
			return "", false
		}
		for i := 0; i < len(code); i++ {
			c := code[i]
			if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
				return "", false
			}
		}
		return code, true
	}
	return "", false
}

// IndicatorCode keeps only [A-Z0-9._-] characters.
// Codes longer than MaxIndicatorCodeLen are rejected outright.
func IndicatorCode(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" || len(code) > MaxIndicatorCodeLen {
		return "", false
	}
	var b strings.Builder
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '_' || c == '-' {
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

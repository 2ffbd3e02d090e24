// SPDX-License-Identifier: Apache-2.0

// Package match resolves canonical BOM rows against catalog parts with
// confidence scoring.
package match

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParsedValue is a component value decomposed into a comparable form.
// Supports SI prefixes (10k, 100n, 4.7u, 1M), resistor R notation (4R7),
// unit suffixes (10kOhm, 100nF) and tolerance markers (10k 1%).
type ParsedValue struct {
	Original   string
	Numeric    float64
	HasNumeric bool
	Unit       string
	// Tolerance is the parsed tolerance fraction (0.01 for "1%"), zero
	// when the value carries none.
	Tolerance float64
	Formatted string
}

var siPrefixes = map[string]float64{
	"P": 1e-12,
	"N": 1e-9,
	"U": 1e-6,
	"M": 1e6, // uppercase M is mega in component values; milli is not used
	"K": 1e3,
	"G": 1e9,
	"T": 1e12,
}

var unitSuffixes = map[string]string{
	"OHM":  "ohm",
	"OHMS": "ohm",
	"R":    "ohm",
	"F":    "farad",
	"H":    "henry",
	"V":    "volt",
	"A":    "amp",
	"W":    "watt",
}

var (
	toleranceRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	rNotationRe = regexp.MustCompile(`^(\d+)R(\d+)?$`)
	valueRe     = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([PNUMKGT])?([A-Z]*)\s*$`)
)

// ParseValue parses a component value string. Unparseable input yields a
// ParsedValue that only carries the original string.
func ParseValue(s string) ParsedValue {
	original := strings.TrimSpace(s)
	if original == "" {
		return ParsedValue{}
	}
	working := strings.ToUpper(original)

	tolerance := 0.0
	if m := toleranceRe.FindStringSubmatchIndex(working); m != nil {
		pct, _ := strconv.ParseFloat(working[m[2]:m[3]], 64)
		tolerance = pct / 100
		working = strings.TrimSpace(working[:m[0]])
	}

	if m := rNotationRe.FindStringSubmatch(working); m != nil {
		decimal := m[2]
		if decimal == "" {
			decimal = "0"
		}
		numeric, _ := strconv.ParseFloat(m[1]+"."+decimal, 64)
		return ParsedValue{
			Original:   original,
			Numeric:    numeric,
			HasNumeric: true,
			Unit:       "ohm",
			Tolerance:  tolerance,
			Formatted:  formatValue(numeric, "ohm"),
		}
	}

	if m := valueRe.FindStringSubmatch(working); m != nil {
		numeric, _ := strconv.ParseFloat(m[1], 64)
		if m[2] != "" {
			numeric *= siPrefixes[m[2]]
		}
		unit := unitSuffixes[m[3]]
		return ParsedValue{
			Original:   original,
			Numeric:    numeric,
			HasNumeric: true,
			Unit:       unit,
			Tolerance:  tolerance,
			Formatted:  formatValue(numeric, unit),
		}
	}

	if numeric, err := strconv.ParseFloat(strings.ReplaceAll(working, ",", ""), 64); err == nil {
		return ParsedValue{
			Original:   original,
			Numeric:    numeric,
			HasNumeric: true,
			Tolerance:  tolerance,
			Formatted:  formatValue(numeric, ""),
		}
	}

	return ParsedValue{Original: original, Tolerance: tolerance, Formatted: original}
}

// Compatible reports whether two values represent the same component value
// within tolerancePct percent. Values without a numeric interpretation
// compare as case-insensitive strings.
func (v ParsedValue) Compatible(other ParsedValue, tolerancePct float64) bool {
	if !v.HasNumeric || !other.HasNumeric {
		return strings.EqualFold(v.Original, other.Original)
	}
	if v.Unit != "" && other.Unit != "" && v.Unit != other.Unit {
		return false
	}
	if v.Numeric == 0 {
		return other.Numeric == 0
	}
	larger := v.Numeric
	if other.Numeric > larger {
		larger = other.Numeric
	}
	diff := v.Numeric - other.Numeric
	if diff < 0 {
		diff = -diff
	}
	return diff/larger <= tolerancePct/100
}

// ValuesMatch reports whether two value strings agree within tolerancePct.
func ValuesMatch(a, b string, tolerancePct float64) bool {
	return ParseValue(a).Compatible(ParseValue(b), tolerancePct)
}

var unitSymbols = map[string]string{
	"ohm":   "ohm",
	"farad": "F",
	"henry": "H",
	"volt":  "V",
	"amp":   "A",
	"watt":  "W",
}

// formatValue renders a numeric value with the best display prefix, used
// as the canonical comparison-friendly form.
func formatValue(numeric float64, unit string) string {
	if numeric == 0 {
		return "0"
	}
	abs := numeric
	if abs < 0 {
		abs = -abs
	}

	display := numeric
	prefix := ""
	switch {
	case abs >= 1e12:
		display, prefix = numeric/1e12, "T"
	case abs >= 1e9:
		display, prefix = numeric/1e9, "G"
	case abs >= 1e6:
		display, prefix = numeric/1e6, "M"
	case abs >= 1e3:
		display, prefix = numeric/1e3, "k"
	case abs >= 1:
	case abs >= 1e-3:
		display, prefix = numeric*1e3, "m"
	case abs >= 1e-6:
		display, prefix = numeric*1e6, "u"
	case abs >= 1e-9:
		display, prefix = numeric*1e9, "n"
	default:
		display, prefix = numeric*1e12, "p"
	}

	var number string
	if display == float64(int64(display)) {
		number = strconv.FormatInt(int64(display), 10)
	} else {
		number = fmt.Sprintf("%.3g", display)
	}
	return number + prefix + unitSymbols[unit]
}

// SPDX-License-Identifier: Apache-2.0

package match

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedFootprint is a package/footprint string decomposed into a
// comparable form: chip-size equivalences (imperial vs metric) and package
// family aliases both count as compatible.
type ParsedFootprint struct {
	Original     string
	PackageType  string
	SizeImperial string
	SizeMetric   string
	PinCount     int
	Pitch        float64
	Canonical    string
}

// imperialToMetric maps chip component sizes (0603 imperial is 1608 metric).
var imperialToMetric = map[string]string{
	"0201": "0603",
	"0402": "1005",
	"0603": "1608",
	"0805": "2012",
	"1206": "3216",
	"1210": "3225",
	"1812": "4532",
	"2010": "5025",
	"2512": "6332",
}

var metricToImperial = func() map[string]string {
	m := make(map[string]string, len(imperialToMetric))
	for imp, met := range imperialToMetric {
		m[met] = imp
	}
	return m
}()

// packageAliases groups package names that are mechanically interchangeable.
var packageAliases = map[string][]string{
	"SOT-23":   {"SOT23", "SOT-23-3", "TO-236", "SC-59"},
	"SOT-23-5": {"SOT23-5", "SC-74A"},
	"SOT-23-6": {"SOT23-6", "SC-74"},
	"SOT-223":  {"SOT223", "TO-261AA"},
	"SOT-323":  {"SOT323", "SC-70", "SC70"},
	"SOIC-8":   {"SOIC8", "SO-8", "SO8", "SOP-8", "SOP8"},
	"SOIC-14":  {"SOIC14", "SO-14", "SO14", "SOP-14", "SOP14"},
	"SOIC-16":  {"SOIC16", "SO-16", "SO16", "SOP-16", "SOP16"},
	"TSSOP-8":  {"TSSOP8", "MSOP-8", "MSOP8"},
	"QFN-16":   {"QFN16", "VQFN-16", "VQFN16"},
	"QFN-20":   {"QFN20", "VQFN-20", "VQFN20"},
	"QFN-32":   {"QFN32", "VQFN-32", "VQFN32"},
	"QFN-48":   {"QFN48", "VQFN-48", "VQFN48"},
	"LQFP-32":  {"LQFP32", "TQFP-32", "TQFP32"},
	"LQFP-48":  {"LQFP48", "TQFP-48", "TQFP48"},
	"LQFP-64":  {"LQFP64", "TQFP-64", "TQFP64"},
	"LQFP-100": {"LQFP100", "TQFP-100", "TQFP100"},
	"TO-220":   {"TO220", "TO-220-3", "TO220-3"},
	"TO-252":   {"TO252", "DPAK", "D-PAK"},
	"TO-263":   {"TO263", "D2PAK", "D2-PAK", "DDPAK"},
	"DIP-8":    {"DIP8", "PDIP-8", "PDIP8"},
	"DIP-14":   {"DIP14", "PDIP-14", "PDIP14"},
	"DIP-16":   {"DIP16", "PDIP-16", "PDIP16"},
}

var packageAliasLookup = func() map[string]string {
	m := map[string]string{}
	for canonical, aliases := range packageAliases {
		m[strings.ToUpper(canonical)] = canonical
		for _, a := range aliases {
			m[strings.ToUpper(a)] = canonical
		}
	}
	return m
}()

// packageFamilies is checked by substring, longest names first so TSSOP
// is not claimed by SOP and LQFP is not claimed by QFP.
var packageFamilies = []string{
	"TSSOP", "MSOP", "SOIC", "LQFP", "TQFP", "VQFN", "FBGA", "PDIP", "PLCC",
	"QFN", "BGA", "SOP", "SOT", "QFP", "DIP", "TO",
}

var (
	pitchRe        = regexp.MustCompile(`(?i)P(\d+(?:\.\d+)?)\s*mm`)
	dimensionsRe   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*x\s*(\d+(?:\.\d+)?)\s*mm`)
	imperialSizeRe = regexp.MustCompile(`^(0201|0402|0603|0805|1206|1210|1812|2010|2512)$`)
	metricSizeRe   = regexp.MustCompile(`^(1005|1608|2012|3216|3225|4532|5025|6332)$`)
	pinCountRe     = regexp.MustCompile(`-?(\d+)$`)
	separatorsRe   = regexp.MustCompile(`[_\-\s]+`)
)

// ParseFootprint parses a footprint string. KiCad Library:Footprint forms,
// pitch and dimension annotations are handled; surrounding separators are
// normalized.
func ParseFootprint(s string) ParsedFootprint {
	original := strings.TrimSpace(s)
	if original == "" {
		return ParsedFootprint{}
	}
	working := original

	// KiCad footprints are Library:FootprintName.
	if i := strings.LastIndex(working, ":"); i >= 0 {
		working = working[i+1:]
	}

	pitch := 0.0
	if m := pitchRe.FindStringSubmatchIndex(working); m != nil {
		pitch, _ = strconv.ParseFloat(working[m[2]:m[3]], 64)
		working = working[:m[0]] + working[m[1]:]
	}
	if m := dimensionsRe.FindStringIndex(working); m != nil {
		working = working[:m[0]] + working[m[1]:]
	}

	working = separatorsRe.ReplaceAllString(strings.TrimSpace(working), "-")
	working = strings.Trim(working, "-")

	if imperial, metric, ok := chipSize(working); ok {
		return ParsedFootprint{
			Original:     original,
			PackageType:  "chip",
			SizeImperial: imperial,
			SizeMetric:   metric,
			PinCount:     2,
			Canonical:    imperial,
		}
	}

	pinCount := 0
	if m := pinCountRe.FindStringSubmatch(working); m != nil {
		pinCount, _ = strconv.Atoi(m[1])
	}

	packageType := ""
	upper := strings.ToUpper(working)
	for _, family := range packageFamilies {
		if strings.Contains(upper, family) {
			packageType = family
			break
		}
	}

	canonical := working
	if known, ok := packageAliasLookup[upper]; ok {
		canonical = known
	}

	return ParsedFootprint{
		Original:    original,
		PackageType: packageType,
		PinCount:    pinCount,
		Pitch:       pitch,
		Canonical:   canonical,
	}
}

// chipSize finds a chip-size code in the normalized footprint, either the
// whole string or one of its dash-separated tokens, so library forms like
// "R-0603-1608Metric" resolve to their size. Imperial codes take
// precedence over metric: "0603" is read as imperial even though it is
// also a valid metric code for 0201.
func chipSize(working string) (imperial, metric string, ok bool) {
	tokens := strings.Split(strings.ToUpper(working), "-")
	for _, tok := range tokens {
		tok = strings.TrimSuffix(tok, "METRIC")
		if imperialSizeRe.MatchString(tok) {
			return tok, imperialToMetric[tok], true
		}
	}
	for _, tok := range tokens {
		tok = strings.TrimSuffix(tok, "METRIC")
		if metricSizeRe.MatchString(tok) {
			return metricToImperial[tok], tok, true
		}
	}
	return "", "", false
}

// Compatible reports whether two footprints can be substituted for each
// other: same canonical, equivalent chip sizes, or same package family
// alias group.
func (f ParsedFootprint) Compatible(other ParsedFootprint) bool {
	if f.Canonical == "" || other.Canonical == "" {
		return false
	}
	if strings.EqualFold(f.Canonical, other.Canonical) {
		return true
	}

	if f.SizeImperial != "" && other.SizeImperial != "" && f.SizeImperial == other.SizeImperial {
		return true
	}
	if f.SizeImperial != "" && other.SizeMetric != "" && imperialToMetric[f.SizeImperial] == other.SizeMetric {
		return true
	}
	if f.SizeMetric != "" && other.SizeImperial != "" && metricToImperial[f.SizeMetric] == other.SizeImperial {
		return true
	}
	if f.SizeMetric != "" && other.SizeMetric != "" && f.SizeMetric == other.SizeMetric {
		return true
	}

	a, aok := packageAliasLookup[strings.ToUpper(f.Canonical)]
	b, bok := packageAliasLookup[strings.ToUpper(other.Canonical)]
	return aok && bok && a == b
}

// FootprintsCompatible reports compatibility for two raw footprint strings.
func FootprintsCompatible(a, b string) bool {
	return ParseFootprint(a).Compatible(ParseFootprint(b))
}

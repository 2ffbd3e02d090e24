// SPDX-License-Identifier: Apache-2.0

package bom

import (
	"regexp"
	"sort"
	"strings"
)

// Analysis summarizes a parsed BOM: totals, component categories derived
// from reference designator prefixes, and missing-field counts.
type Analysis struct {
	TotalComponents  int            `json:"total_components"`
	UniqueLineItems  int            `json:"unique_line_items"`
	Categories       map[string]int `json:"categories"`
	MostCommonValues []ValueCount   `json:"most_common_values"`
	MissingValue     int            `json:"missing_value"`
	MissingFootprint int            `json:"missing_footprint"`
	MissingMPN       int            `json:"missing_mpn"`
}

// ValueCount is one entry of the most-common-values ranking.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// refCategories maps designator prefixes to human-readable categories.
var refCategories = map[string]string{
	"R":   "Resistors",
	"C":   "Capacitors",
	"L":   "Inductors",
	"D":   "Diodes",
	"Q":   "Transistors",
	"U":   "ICs",
	"J":   "Connectors",
	"SW":  "Switches",
	"F":   "Fuses",
	"T":   "Transformers",
	"Y":   "Crystals",
	"TP":  "Test Points",
	"M":   "Mechanical",
	"BT":  "Batteries",
	"LED": "LEDs",
}

var refPrefixRe = regexp.MustCompile(`^[A-Za-z]+`)

// Analyze computes summary statistics over canonical rows. It is a pure
// function and returns deterministic ordering for ranked output.
func Analyze(rows []CanonicalRow) Analysis {
	analysis := Analysis{Categories: map[string]int{}}
	valueCounts := map[string]int{}

	for _, row := range rows {
		analysis.UniqueLineItems++
		analysis.TotalComponents += row.Quantity

		for _, ref := range row.References {
			prefix := strings.ToUpper(refPrefixRe.FindString(ref))
			if prefix == "" {
				continue
			}
			category, ok := refCategories[prefix]
			if !ok {
				category = "Other (" + prefix + ")"
			}
			analysis.Categories[category]++
		}

		if row.Value == "" {
			analysis.MissingValue++
		} else {
			valueCounts[row.Value]++
		}
		if row.Footprint == "" {
			analysis.MissingFootprint++
		}
		if row.MPN == "" {
			analysis.MissingMPN++
		}
	}

	for v, c := range valueCounts {
		analysis.MostCommonValues = append(analysis.MostCommonValues, ValueCount{Value: v, Count: c})
	}
	sort.Slice(analysis.MostCommonValues, func(i, j int) bool {
		a, b := analysis.MostCommonValues[i], analysis.MostCommonValues[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Value < b.Value
	})
	if len(analysis.MostCommonValues) > 10 {
		analysis.MostCommonValues = analysis.MostCommonValues[:10]
	}

	return analysis
}

// SPDX-License-Identifier: Apache-2.0

package bom

import (
	"fmt"
	"strconv"
	"strings"
)

// fieldMapping maps each canonical field to the source column names a tool
// uses for it, in preference order. Adding a tool is adding one entry here
// plus its detection fingerprint; no new dispatch logic.
type fieldMapping struct {
	reference   []string
	value       []string
	footprint   []string
	quantity    []string
	mpn         []string
	description []string
}

var toolMappings = map[Tool]fieldMapping{
	ToolKiCad: {
		reference:   []string{"reference", "references", "ref", "designator"},
		value:       []string{"value"},
		footprint:   []string{"footprint"},
		quantity:    []string{"qty", "quantity"},
		mpn:         []string{"mpn", "manufacturer part number", "mfr part number", "part number"},
		description: []string{"description"},
	},
	ToolAltium: {
		reference:   []string{"designator"},
		value:       []string{"comment", "value"},
		footprint:   []string{"footprint"},
		quantity:    []string{"quantity", "qty"},
		mpn:         []string{"manufacturer part number 1", "manufacturer part number", "supplier part number 1", "mpn"},
		description: []string{"description"},
	},
	ToolFusion360: {
		reference:   []string{"parts"},
		value:       []string{"value"},
		footprint:   []string{"package"},
		quantity:    []string{"qty", "quantity"},
		mpn:         []string{"mpn", "part number"},
		description: []string{"description", "device"},
	},
	ToolEagle: {
		reference:   []string{"part"},
		value:       []string{"value"},
		footprint:   []string{"package"},
		quantity:    nil, // one element per row in Eagle exports
		mpn:         []string{"mpn", "part number"},
		description: []string{"description", "device"},
	},
	ToolPADS: {
		reference:   []string{"ref des", "refdes"},
		value:       []string{"value"},
		footprint:   []string{"package", "footprint"},
		quantity:    []string{"qty", "quantity"},
		mpn:         []string{"part number", "part type"},
		description: []string{"description"},
	},
	ToolProtel99: {
		reference:   []string{"designator"},
		value:       []string{"part type", "value"},
		footprint:   []string{"footprint"},
		quantity:    []string{"quantity", "qty"},
		mpn:         []string{"part number", "mpn"},
		description: []string{"description"},
	},
	ToolGeneric: {
		reference:   []string{"reference", "ref", "designator", "refdes"},
		value:       []string{"value", "part", "component"},
		footprint:   []string{"footprint", "package", "case"},
		quantity:    []string{"quantity", "qty", "count"},
		mpn:         []string{"mpn", "part number", "manufacturer part number"},
		description: []string{"description", "desc"},
	},
}

// Normalizer converts one tool's raw rows into canonical rows.
type Normalizer struct {
	tool         Tool
	mapping      fieldMapping
	oneRefPerRow bool
}

// NewNormalizer returns a Normalizer for the given tool, or an error for a
// tool no mapping table covers.
func NewNormalizer(tool Tool, oneRefPerRow bool) (*Normalizer, error) {
	mapping, ok := toolMappings[tool]
	if !ok {
		return nil, fmt.Errorf("%w: no field mapping for tool %q", ErrUnrecognizedFormat, tool)
	}
	return &Normalizer{tool: tool, mapping: mapping, oneRefPerRow: oneRefPerRow}, nil
}

// Normalize produces canonical rows plus diagnostics. Rows with no
// resolvable identity are dropped with an error diagnostic; other missing
// required fields downgrade to warnings and the row is kept.
func (n *Normalizer) Normalize(table rawTable) ([]CanonicalRow, []Diagnostic) {
	headerIdx := make(map[string]int, len(table.header))
	for i, h := range table.header {
		key := normalizeHeader(h)
		if _, exists := headerIdx[key]; !exists && key != "" {
			headerIdx[key] = i
		}
	}

	hasColumn := func(synonyms []string) bool {
		for _, s := range synonyms {
			if _, ok := headerIdx[s]; ok {
				return true
			}
		}
		return false
	}
	missingValue := !hasColumn(n.mapping.value)
	missingMPN := !hasColumn(n.mapping.mpn)

	var diags []Diagnostic

	seen := map[string]bool{}
	var rows []CanonicalRow

	for _, raw := range table.rows {
		if isEmptyRow(raw.cells) {
			continue
		}

		cell := func(synonyms []string) string {
			for _, s := range synonyms {
				if i, ok := headerIdx[s]; ok && i < len(raw.cells) {
					if v := strings.TrimSpace(raw.cells[i]); v != "" {
						return v
					}
				}
			}
			return ""
		}

		refField := cell(n.mapping.reference)
		value := cell(n.mapping.value)
		footprint := cell(n.mapping.footprint)
		mpn := cell(n.mapping.mpn)
		desc := cell(n.mapping.description)

		if refField == "" && value == "" && footprint == "" && mpn == "" && desc == "" {
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Line:     raw.line,
				Message:  "row has no resolvable fields; dropped",
			})
			continue
		}
		if refField == "" {
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Line:     raw.line,
				Message:  "row has no reference designator; dropped",
			})
			continue
		}

		refs := splitReferences(refField)
		var unique []string
		for _, ref := range refs {
			if seen[ref] {
				diags = append(diags, Diagnostic{
					Severity: SeverityError,
					Ref:      ref,
					Line:     raw.line,
					Message:  fmt.Sprintf("duplicate reference designator %q; dropped", ref),
				})
				continue
			}
			seen[ref] = true
			unique = append(unique, ref)
		}
		if len(unique) == 0 {
			continue
		}

		// Required-field warnings are per row so a partial report still
		// points at every affected line item.
		switch {
		case missingValue && missingMPN:
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Ref:      unique[0],
				Line:     raw.line,
				Message:  fmt.Sprintf("no value or manufacturer part number column in %s export; fields left empty", n.tool),
			})
		case missingMPN && mpn == "":
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Ref:      unique[0],
				Line:     raw.line,
				Message:  fmt.Sprintf("no manufacturer part number column in %s export; field left empty", n.tool),
			})
		case missingValue && value == "":
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Ref:      unique[0],
				Line:     raw.line,
				Message:  fmt.Sprintf("no value column in %s export; field left empty", n.tool),
			})
		case value == "" && mpn == "":
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Ref:      unique[0],
				Line:     raw.line,
				Message:  "row has neither value nor manufacturer part number",
			})
		}

		qty := len(unique)
		if qtyField := cell(n.mapping.quantity); qtyField != "" {
			parsed, err := strconv.Atoi(strings.TrimSpace(qtyField))
			switch {
			case err != nil || parsed < 1:
				diags = append(diags, Diagnostic{
					Severity: SeverityWarning,
					Ref:      unique[0],
					Line:     raw.line,
					Message:  fmt.Sprintf("invalid quantity %q; defaulting to %d", qtyField, qty),
				})
			default:
				qty = parsed
			}
		}

		row := CanonicalRow{
			References:  unique,
			Value:       value,
			Footprint:   footprint,
			Quantity:    qty,
			MPN:         mpn,
			Description: desc,
			SourceLine:  raw.line,
		}

		if n.oneRefPerRow && len(unique) > 1 {
			rows = append(rows, expandRow(row)...)
		} else {
			rows = append(rows, row)
		}
	}

	return rows, diags
}

// expandRow duplicates a grouped row once per reference, splitting quantity
// evenly with the remainder assigned to the first duplicate.
func expandRow(row CanonicalRow) []CanonicalRow {
	n := len(row.References)
	base := row.Quantity / n
	remainder := row.Quantity % n

	out := make([]CanonicalRow, 0, n)
	for i, ref := range row.References {
		qty := base
		if i == 0 {
			qty += remainder
		}
		if qty < 1 {
			qty = 1
		}
		dup := row
		dup.References = []string{ref}
		dup.Quantity = qty
		out = append(out, dup)
	}
	return out
}

// splitReferences expands a grouped designator cell like "R1, R2 R3" into
// individual designators.
func splitReferences(field string) []string {
	parts := strings.FieldsFunc(field, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

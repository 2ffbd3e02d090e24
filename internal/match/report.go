// SPDX-License-Identifier: Apache-2.0

package match

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/partsproj/parts-mcp/internal/bom"
)

// Summary is the BOM-level rollup of row outcomes.
type Summary struct {
	TotalRows int `json:"total_rows"`
	Matched   int `json:"matched"`
	Ambiguous int `json:"ambiguous"`
	Unmatched int `json:"unmatched"`
	// MatchRate is matched/total, 0 for an empty BOM.
	MatchRate float64 `json:"match_rate"`
}

// Report is the immutable result of processing one BOM: ordered row
// results, summary counts and every accumulated diagnostic.
type Report struct {
	ID          string           `json:"id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Rows        []RowResult      `json:"rows"`
	Summary     Summary          `json:"summary"`
	Diagnostics []bom.Diagnostic `json:"diagnostics"`
}

// Aggregate reduces row results and parse diagnostics into a Report. It
// is a pure reduction apart from the report ID and timestamp: counts,
// rate and ordering are deterministic given the input sequence.
func Aggregate(rows []RowResult, parseDiags []bom.Diagnostic) *Report {
	report := &Report{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Rows:        rows,
		Diagnostics: append([]bom.Diagnostic{}, parseDiags...),
	}

	for _, r := range rows {
		report.Summary.TotalRows++
		switch r.Status {
		case StatusMatched:
			report.Summary.Matched++
		case StatusAmbiguous:
			report.Summary.Ambiguous++
		default:
			report.Summary.Unmatched++
		}
		report.Diagnostics = append(report.Diagnostics, r.Diagnostics...)
	}
	if report.Summary.TotalRows > 0 {
		report.Summary.MatchRate = float64(report.Summary.Matched) / float64(report.Summary.TotalRows)
	}
	return report
}

// WriteCSV serializes the report's rows. The header set is parseable back
// through the KiCad CSV path, so an exported report round-trips.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Reference", "Value", "Footprint", "MPN", "Matched Part ID", "Confidence"}); err != nil {
		return err
	}
	for _, row := range r.Rows {
		partID, confidence := "", ""
		if len(row.Candidates) > 0 {
			partID = row.Candidates[0].PartID
			confidence = strconv.FormatFloat(row.Candidates[0].Confidence, 'f', 2, 64)
		}
		record := []string{
			strings.Join(row.Row.References, ", "),
			row.Row.Value,
			row.Row.Footprint,
			row.Row.MPN,
			partID,
			confidence,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON serializes the full report, preserving every field.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

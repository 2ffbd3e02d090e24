// SPDX-License-Identifier: Apache-2.0

package match

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partsproj/parts-mcp/internal/bom"
)

func sampleRows() []RowResult {
	return []RowResult{
		{
			Row: bom.CanonicalRow{References: []string{"R1"}, Value: "10k", Footprint: "0603", MPN: "RC0603FR-0710KL", Quantity: 1},
			Candidates: []Candidate{
				{PartID: "cat-1", Confidence: 1.0, Basis: BasisExactMPN},
			},
			Status: StatusMatched,
		},
		{
			Row: bom.CanonicalRow{References: []string{"C1", "C2"}, Value: "100n", Footprint: "0402", Quantity: 2},
			Candidates: []Candidate{
				{PartID: "cat-2", Confidence: 0.82, Basis: BasisValueFootprint},
				{PartID: "cat-3", Confidence: 0.80, Basis: BasisValueFootprint},
			},
			Status: StatusAmbiguous,
		},
		{
			Row:    bom.CanonicalRow{References: []string{"U1"}, Value: "LM358", Quantity: 1},
			Status: StatusUnmatched,
			Diagnostics: []bom.Diagnostic{
				{Severity: bom.SeverityWarning, Ref: "U1", Message: "catalog lookup failed for U1: unavailable"},
			},
		},
	}
}

func TestAggregate(t *testing.T) {
	parseDiags := []bom.Diagnostic{
		{Severity: bom.SeverityError, Line: 4, Message: "duplicate reference designator \"R9\"; dropped"},
	}

	report := Aggregate(sampleRows(), parseDiags)

	assert.NotEmpty(t, report.ID)
	assert.False(t, report.GeneratedAt.IsZero())

	assert.Equal(t, 3, report.Summary.TotalRows)
	assert.Equal(t, 1, report.Summary.Matched)
	assert.Equal(t, 1, report.Summary.Ambiguous)
	assert.Equal(t, 1, report.Summary.Unmatched)
	assert.InDelta(t, 1.0/3.0, report.Summary.MatchRate, 1e-9)

	// Parse diagnostics come first, then row diagnostics in row order.
	require.Len(t, report.Diagnostics, 2)
	assert.Equal(t, bom.SeverityError, report.Diagnostics[0].Severity)
	assert.Equal(t, "U1", report.Diagnostics[1].Ref)
}

func TestAggregateEmpty(t *testing.T) {
	report := Aggregate(nil, nil)
	assert.Zero(t, report.Summary.TotalRows)
	assert.Zero(t, report.Summary.MatchRate)
}

func TestWriteJSON(t *testing.T) {
	report := Aggregate(sampleRows(), nil)

	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, report.ID, decoded.ID)
	assert.Equal(t, report.Summary, decoded.Summary)
	require.Len(t, decoded.Rows, 3)
	assert.Equal(t, StatusAmbiguous, decoded.Rows[1].Status)
}

func TestWriteCSVRoundTrips(t *testing.T) {
	report := Aggregate(sampleRows(), nil)

	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf))

	// The exported header set is itself a parseable BOM, so a report can
	// be re-ingested by the pipeline.
	rows, _, err := bom.NewParser(nil).Parse(bom.File{Name: "report.csv", Content: buf.Bytes()})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"R1"}, rows[0].References)
	assert.Equal(t, "10k", rows[0].Value)
	assert.Equal(t, "RC0603FR-0710KL", rows[0].MPN)
	assert.Equal(t, []string{"C1", "C2"}, rows[1].References)
	assert.Equal(t, "100n", rows[1].Value)
}

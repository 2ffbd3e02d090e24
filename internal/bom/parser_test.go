// SPDX-License-Identifier: Apache-2.0

package bom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kicadCSV = `Reference,Value,Footprint,Qty,MPN,Description
R1,10k,Resistor_SMD:R_0603_1608Metric,1,RC0603FR-0710KL,Thick film resistor
C1,100n,Capacitor_SMD:C_0603_1608Metric,1,,MLCC capacitor
U1,LM358,Package_SO:SOIC-8_3.9x4.9mm_P1.27mm,1,LM358DR,Dual op-amp
`

func TestParseKiCadCSV(t *testing.T) {
	rows, diags, err := NewParser(nil).Parse(File{Name: "project.csv", Content: []byte(kicadCSV)})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Empty(t, diags)

	assert.Equal(t, []string{"R1"}, rows[0].References)
	assert.Equal(t, "10k", rows[0].Value)
	assert.Equal(t, "Resistor_SMD:R_0603_1608Metric", rows[0].Footprint)
	assert.Equal(t, 1, rows[0].Quantity)
	assert.Equal(t, "RC0603FR-0710KL", rows[0].MPN)
	assert.Equal(t, 2, rows[0].SourceLine)

	assert.Equal(t, "", rows[1].MPN)
	assert.Equal(t, "LM358DR", rows[2].MPN)
}

func TestParseIsIdempotent(t *testing.T) {
	file := File{Name: "project.csv", Content: []byte(kicadCSV)}
	p := NewParser(nil)

	rows1, diags1, err1 := p.Parse(file)
	rows2, diags2, err2 := p.Parse(file)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, rows1, rows2)
	assert.Equal(t, diags1, diags2)
}

func TestParseGroupedReferences(t *testing.T) {
	content := []byte("Reference,Value,Footprint,Qty,MPN\n\"R1, R2, R3\",10k,R_0603,3,RC0603FR-0710KL\n")

	t.Run("grouped row kept by default", func(t *testing.T) {
		rows, diags, err := NewParser(nil).Parse(File{Name: "bom.csv", Content: content})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Empty(t, diags)
		assert.Equal(t, []string{"R1", "R2", "R3"}, rows[0].References)
		assert.Equal(t, 3, rows[0].Quantity)
	})

	t.Run("one ref per row expansion", func(t *testing.T) {
		rows, _, err := NewParser(nil, WithOneRefPerRow()).Parse(File{Name: "bom.csv", Content: content})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		for i, ref := range []string{"R1", "R2", "R3"} {
			assert.Equal(t, []string{ref}, rows[i].References)
			assert.Equal(t, 1, rows[i].Quantity)
			assert.Equal(t, "10k", rows[i].Value)
		}
	})

	t.Run("quantity remainder goes to first reference", func(t *testing.T) {
		uneven := []byte("Reference,Value,Footprint,Qty,MPN\n\"R1, R2, R3\",10k,R_0603,4,RC0603FR-0710KL\n")
		rows, _, err := NewParser(nil, WithOneRefPerRow()).Parse(File{Name: "bom.csv", Content: uneven})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, 2, rows[0].Quantity)
		assert.Equal(t, 1, rows[1].Quantity)
		assert.Equal(t, 1, rows[2].Quantity)
	})
}

func TestParseAltiumMissingMPNColumn(t *testing.T) {
	content := []byte("Designator,Comment,Footprint\nR1,10k,0603\nC1,100n,0402\n")
	rows, diags, err := NewParser(nil).Parse(File{Name: "export.csv", Content: content})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// One warning per emitted row, not one per file.
	require.Len(t, diags, 2)
	for i, d := range diags {
		assert.Equal(t, SeverityWarning, d.Severity)
		assert.Equal(t, rows[i].References[0], d.Ref)
		assert.Contains(t, d.Message, "manufacturer part number")
	}
}

func TestParseSemicolonDelimited(t *testing.T) {
	content := []byte("Designator;Comment;Footprint\nR1;10k;0603\nC1;100n;0402\n")
	rows, diags, err := NewParser(nil).Parse(File{Name: "export.csv", Content: content})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"R1"}, rows[0].References)
	assert.Equal(t, "10k", rows[0].Value)
	assert.Equal(t, "0603", rows[0].Footprint)
	assert.Equal(t, []string{"C1"}, rows[1].References)
	assert.Equal(t, "0402", rows[1].Footprint)
	for _, d := range diags {
		assert.NotEqual(t, SeverityError, d.Severity)
	}
}

func TestParseTabSeparatedXLS(t *testing.T) {
	content := []byte("Designator\tComment\tFootprint\nR1\t10k\t0603\n")
	rows, _, err := NewParser(nil).Parse(File{Name: "export.xls", Content: content})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"R1"}, rows[0].References)
	assert.Equal(t, "10k", rows[0].Value)
}

func TestParseWithFormat(t *testing.T) {
	content := []byte("Designator;Comment;Footprint\nR1;10k;0603\nC1;100n;0402\n")
	format := Format{Tool: ToolAltium, Encoding: EncodingCSV, Delimiter: ';'}
	rows, _, err := NewParser(nil).ParseWithFormat(File{Name: "export.csv", Content: content}, format)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "100n", rows[1].Value)
}

func TestParseDiagnostics(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantRows     int
		wantSeverity Severity
		wantMessage  string
	}{
		{
			name:         "duplicate reference dropped",
			content:      "Reference,Value,MPN\nR1,10k,X1\nR1,22k,X2\n",
			wantRows:     1,
			wantSeverity: SeverityError,
			wantMessage:  "duplicate reference",
		},
		{
			name:         "row without reference dropped",
			content:      "Reference,Value,MPN\nR1,10k,X1\n,22k,X2\n",
			wantRows:     1,
			wantSeverity: SeverityError,
			wantMessage:  "no reference designator",
		},
		{
			name:         "invalid quantity defaults",
			content:      "Reference,Value,Qty,MPN\nR1,10k,many,X1\n",
			wantRows:     1,
			wantSeverity: SeverityWarning,
			wantMessage:  "invalid quantity",
		},
		{
			name:         "empty value and mpn cells warn",
			content:      "Reference,Value,MPN\nR1,,\n",
			wantRows:     1,
			wantSeverity: SeverityWarning,
			wantMessage:  "neither value nor manufacturer part number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, diags, err := NewParser(nil).Parse(File{Name: "bom.csv", Content: []byte(tt.content)})
			require.NoError(t, err)
			assert.Len(t, rows, tt.wantRows)
			require.NotEmpty(t, diags)
			assert.Equal(t, tt.wantSeverity, diags[0].Severity)
			assert.Contains(t, diags[0].Message, tt.wantMessage)
		})
	}
}

func TestParseEmptyFile(t *testing.T) {
	_, _, err := NewParser(nil).Parse(File{Name: "empty.csv", Content: nil})
	require.ErrorIs(t, err, ErrUnreadableFile)
}

func TestParseSkipsPreambleLines(t *testing.T) {
	content := []byte("My Project BOM\nReference,Value,Footprint,MPN\nR1,10k,R_0603,X1\n")
	rows, _, err := NewParser(nil).Parse(File{Name: "bom.csv", Content: content})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"R1"}, rows[0].References)
	assert.Equal(t, 3, rows[0].SourceLine)
}

func TestParseKiCadXML(t *testing.T) {
	content := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<export version="E">
  <components>
    <comp ref="R1">
      <value>10k</value>
      <footprint>Resistor_SMD:R_0603_1608Metric</footprint>
      <fields>
        <field name="MPN">RC0603FR-0710KL</field>
      </fields>
    </comp>
    <comp ref="C1">
      <value>100n</value>
      <footprint>Capacitor_SMD:C_0603_1608Metric</footprint>
    </comp>
  </components>
</export>`)

	rows, diags, err := NewParser(nil).Parse(File{Name: "project.xml", Content: content})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Empty(t, diags)
	assert.Equal(t, "RC0603FR-0710KL", rows[0].MPN)
	assert.Equal(t, "100n", rows[1].Value)
}

func TestParseKiCadNetlist(t *testing.T) {
	content := []byte(`(export (version "E")
  (components
    (comp (ref "R1")
      (value "10k")
      (footprint "Resistor_SMD:R_0603_1608Metric")
      (fields
        (field (name "MPN") "RC0603FR-0710KL"))
      (libsource (lib "Device") (part "R") (description "Thick film resistor")))
    (comp (ref "C1")
      (value "100n")
      (footprint "Capacitor_SMD:C_0402_1005Metric")
      (libsource (lib "Device") (part "C") (description "Ceramic capacitor"))))
  (nets
    (net (code "1") (name "GND")
      (node (ref "R1") (pin "2"))
      (node (ref "C1") (pin "2")))))`)

	rows, _, err := NewParser(nil).Parse(File{Name: "project.net", Content: content})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"R1"}, rows[0].References)
	assert.Equal(t, "10k", rows[0].Value)
	assert.Equal(t, "RC0603FR-0710KL", rows[0].MPN)
	assert.Equal(t, "Thick film resistor", rows[0].Description)
	assert.Equal(t, "Capacitor_SMD:C_0402_1005Metric", rows[1].Footprint)
	assert.Equal(t, "Ceramic capacitor", rows[1].Description)
}

func TestParseNetlistErrors(t *testing.T) {
	t.Run("unbalanced parentheses", func(t *testing.T) {
		_, _, err := NewParser(nil).Parse(File{Name: "bad.net", Content: []byte("(export (components")})
		require.ErrorIs(t, err, ErrUnreadableFile)
	})

	t.Run("not an export document", func(t *testing.T) {
		_, _, err := NewParser(nil).Parse(File{Name: "bad.net", Content: []byte("(kicad_sch (version 1))")})
		require.ErrorIs(t, err, ErrUnreadableFile)
	})

	t.Run("no components", func(t *testing.T) {
		_, _, err := NewParser(nil).Parse(File{Name: "bad.net", Content: []byte("(export (components))")})
		require.ErrorIs(t, err, ErrUnreadableFile)
	})
}

func TestParseEagleBoard(t *testing.T) {
	content := []byte(`<?xml version="1.0"?>
<eagle version="9.6.2">
  <drawing>
    <board>
      <elements>
        <element name="R1" library="resistor" package="R0603" value="10k"/>
        <element name="C1" library="capacitor" package="C0603" value="100n"/>
      </elements>
    </board>
  </drawing>
</eagle>`)

	rows, _, err := NewParser(nil).Parse(File{Name: "board.brd", Content: content})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"R1"}, rows[0].References)
	assert.Equal(t, "R0603", rows[0].Footprint)
}

func TestParsePADSASCII(t *testing.T) {
	content := []byte(strings.Join([]string{
		"*PADS-PCB* PART DECAL",
		"*PART*",
		"R1 RES0603-10K",
		"C1 CAP0603-100N",
		"*NET*",
		"*SIGNAL* GND",
	}, "\n"))

	rows, _, err := NewParser(nil).Parse(File{Name: "layout.asc", Content: content})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"R1"}, rows[0].References)
	assert.Equal(t, "RES0603-10K", rows[0].MPN)
}

func TestParseJSON(t *testing.T) {
	t.Run("top-level array", func(t *testing.T) {
		content := []byte(`[
  {"reference": "R1", "value": "10k", "footprint": "0603", "qty": 2},
  {"reference": "C1", "value": "100n", "footprint": "0402"}
]`)
		rows, _, err := NewParser(nil).Parse(File{Name: "bom.json", Content: content})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 2, rows[0].Quantity)
		assert.Equal(t, "100n", rows[1].Value)
	})

	t.Run("components wrapper object", func(t *testing.T) {
		content := []byte(`{"components": [{"reference": "R1", "value": "10k"}]}`)
		rows, _, err := NewParser(nil).Parse(File{Name: "bom.json", Content: content})
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, _, err := NewParser(nil).Parse(File{Name: "bom.json", Content: []byte("{broken")})
		require.ErrorIs(t, err, ErrUnreadableFile)
	})
}

// SPDX-License-Identifier: Apache-2.0

// Package bom turns CAD-tool BOM exports into a canonical row schema.
// Detection, normalization and parsing are deterministic: the same file
// bytes always yield the same rows and the same diagnostics.
package bom

import "errors"

// Tool identifies the CAD tool that produced a BOM file.
type Tool string

const (
	ToolKiCad     Tool = "kicad"
	ToolAltium    Tool = "altium"
	ToolFusion360 Tool = "fusion360"
	ToolEagle     Tool = "eagle"
	ToolPADS      Tool = "pads"
	ToolProtel99  Tool = "protel99"
	ToolGeneric   Tool = "generic"
)

// Encoding is the serialization a BOM file uses.
type Encoding string

const (
	EncodingCSV  Encoding = "csv"
	EncodingTSV  Encoding = "tsv"
	EncodingXML  Encoding = "xml"
	EncodingJSON Encoding = "json"
	EncodingBRD  Encoding = "brd"
	EncodingASC  Encoding = "asc"
	EncodingNET  Encoding = "net"
)

// Format is a detected {tool, encoding} pair.
type Format struct {
	Tool     Tool
	Encoding Encoding
	// Delimiter is the detected field separator for CSV/TSV encodings;
	// zero for non-tabular encodings.
	Delimiter rune
}

// File is the raw input to the parser: content plus a filename hint.
type File struct {
	Name    string
	Content []byte
}

var (
	// ErrUnrecognizedFormat is returned when no tool fingerprint matches
	// the file's headers above the detection threshold.
	ErrUnrecognizedFormat = errors.New("unrecognized BOM format")

	// ErrUnreadableFile is returned when the file is empty or cannot be
	// decoded at all. Malformed individual rows never cause it.
	ErrUnreadableFile = errors.New("unreadable BOM file")
)

// Severity classifies a parse diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a non-fatal finding accumulated during parsing or matching.
// A BOM with errors still returns every successfully parsed row.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	// Ref is the reference designator the diagnostic applies to, when known.
	Ref     string `json:"ref,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// CanonicalRow is one normalized BOM line item.
type CanonicalRow struct {
	// References holds the reference designators for this row, unique
	// across the whole parsed BOM.
	References  []string `json:"references"`
	Value       string   `json:"value"`
	Footprint   string   `json:"footprint"`
	Quantity    int      `json:"quantity"`
	MPN         string   `json:"mpn,omitempty"`
	Description string   `json:"description,omitempty"`
	// SourceLine is the 1-based line (or record) number in the input file.
	SourceLine int `json:"source_line"`
}

// Ref returns the row's primary reference designator.
func (r CanonicalRow) Ref() string {
	if len(r.References) == 0 {
		return ""
	}
	return r.References[0]
}

// rawTable is the decoded but not yet normalized content of a BOM file:
// a header row plus data rows, each tagged with its source line number.
type rawTable struct {
	header []string
	rows   []rawRow
}

type rawRow struct {
	line  int
	cells []string
}

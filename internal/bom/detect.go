// SPDX-License-Identifier: Apache-2.0

package bom

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// fingerprint is the stable header signature of one CAD tool's BOM export.
// Required fields drive detection; optional fields only break ties between
// tools whose required sets overlap equally.
type fingerprint struct {
	tool     Tool
	required []string
	optional []string
}

// minFingerprintOverlap is the fraction of a tool's required fields that
// must be present in the header row for detection to succeed.
const minFingerprintOverlap = 0.6

// toolFingerprints is evaluated in order; on equal scores the earlier
// entry wins, which keeps detection deterministic.
var toolFingerprints = []fingerprint{
	{
		tool:     ToolKiCad,
		required: []string{"reference", "value"},
		optional: []string{"footprint", "qty", "quantity", "mpn", "datasheet", "description"},
	},
	{
		tool:     ToolAltium,
		required: []string{"designator", "comment"},
		optional: []string{"footprint", "quantity", "description", "manufacturer part number 1", "layer"},
	},
	{
		tool:     ToolProtel99,
		required: []string{"designator", "part type"},
		optional: []string{"footprint", "quantity", "description"},
	},
	{
		tool:     ToolEagle,
		required: []string{"part", "value", "device", "package"},
		optional: []string{"description"},
	},
	{
		tool:     ToolFusion360,
		required: []string{"parts", "value", "qty"},
		optional: []string{"device", "package", "description"},
	},
	{
		tool:     ToolPADS,
		required: []string{"item", "ref des"},
		optional: []string{"qty", "part number", "description", "package"},
	},
}

// DetectFormat inspects a BOM file and determines the producing CAD tool
// and serialization. It is a pure function of its input.
func DetectFormat(file File) (Format, error) {
	content := stripUTF8BOM(file.Content)
	if len(bytes.TrimSpace(content)) == 0 {
		return Format{}, fmt.Errorf("%w: %s is empty", ErrUnreadableFile, file.Name)
	}
	if !utf8.Valid(content) {
		return Format{}, fmt.Errorf("%w: %s is not valid UTF-8 text", ErrUnreadableFile, file.Name)
	}

	ext := strings.ToLower(filepath.Ext(file.Name))
	switch ext {
	case ".xml":
		return Format{Tool: ToolKiCad, Encoding: EncodingXML}, nil
	case ".brd":
		return Format{Tool: ToolEagle, Encoding: EncodingBRD}, nil
	case ".asc":
		return Format{Tool: ToolPADS, Encoding: EncodingASC}, nil
	case ".json":
		return Format{Tool: ToolGeneric, Encoding: EncodingJSON}, nil
	case ".net":
		return Format{Tool: ToolKiCad, Encoding: EncodingNET}, nil
	case ".xls":
		// Altium "XLS" exports are frequently tab-separated text. True
		// binary workbooks are rejected above by the UTF-8 check.
		if bytes.ContainsRune(content, '\t') {
			return Format{Tool: ToolAltium, Encoding: EncodingTSV, Delimiter: '\t'}, nil
		}
		return Format{}, fmt.Errorf("%w: %s looks like a binary XLS workbook, export the BOM as CSV instead", ErrUnrecognizedFormat, file.Name)
	}

	// Generic .csv/.tsv/.txt: fingerprint the header row.
	delim := detectDelimiter(content)
	encoding := EncodingCSV
	if delim == '\t' {
		encoding = EncodingTSV
	}

	headers, err := readCandidateHeaders(content, delim, 10)
	if err != nil {
		return Format{}, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, file.Name, err)
	}

	// Exporters sometimes emit title lines before the header row, so
	// every leading record is tried until one carries a tool signature.
	for _, header := range headers {
		if tool, ok := matchFingerprint(header); ok {
			return Format{Tool: tool, Encoding: encoding, Delimiter: delim}, nil
		}
	}
	return Format{}, fmt.Errorf("%w: headers %v match no known CAD tool export", ErrUnrecognizedFormat, headers[0])
}

// matchFingerprint scores the normalized header field set against every
// tool fingerprint and returns the best match at or above the minimum
// required-field overlap.
func matchFingerprint(header []string) (Tool, bool) {
	fields := make(map[string]bool, len(header))
	for _, h := range header {
		fields[normalizeHeader(h)] = true
	}

	bestTool := Tool("")
	bestScore := 0.0
	for _, fp := range toolFingerprints {
		hits := 0
		for _, req := range fp.required {
			if fields[req] {
				hits++
			}
		}
		score := float64(hits) / float64(len(fp.required))
		if score < minFingerprintOverlap {
			continue
		}
		// Optional fields contribute a small tie-break bonus, never
		// enough to outweigh a missing required field.
		for _, opt := range fp.optional {
			if fields[opt] {
				score += 0.01
			}
		}
		if score > bestScore {
			bestScore = score
			bestTool = fp.tool
		}
	}
	if bestTool != "" {
		return bestTool, true
	}

	// Fallback: a bare part-number listing with no tool signature.
	if fields["mpn"] || fields["part number"] || fields["manufacturer part number"] {
		return ToolGeneric, true
	}
	return "", false
}

// detectDelimiter picks the CSV delimiter from the first line of content.
// Tab beats semicolon beats comma, matching how the supported tools quote
// their exports.
func detectDelimiter(content []byte) rune {
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	switch {
	case bytes.ContainsRune(line, '\t'):
		return '\t'
	case bytes.ContainsRune(line, ';'):
		return ';'
	default:
		return ','
	}
}

// normalizeHeader canonicalizes a column name for fingerprint comparison:
// lower-cased, trimmed, inner whitespace collapsed.
func normalizeHeader(h string) string {
	h = strings.TrimSpace(strings.ToLower(h))
	h = strings.Trim(h, `"'`)
	return strings.Join(strings.Fields(h), " ")
}

func stripUTF8BOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
}

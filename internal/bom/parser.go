// SPDX-License-Identifier: Apache-2.0

package bom

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Parser orchestrates format detection, decoding and normalization for a
// single BOM file. Malformed rows become diagnostics; only an undecodable
// or unrecognized file fails the whole call.
type Parser struct {
	logger *zap.Logger
	// oneRefPerRow expands grouped reference lists into one row per
	// reference, redistributing quantity.
	oneRefPerRow bool
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithOneRefPerRow makes the parser emit exactly one reference designator
// per canonical row, splitting grouped rows.
func WithOneRefPerRow() ParserOption {
	return func(p *Parser) { p.oneRefPerRow = true }
}

// NewParser creates a Parser. A nil logger defaults to zap.NewNop.
func NewParser(logger *zap.Logger, opts ...ParserOption) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Parser{logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse detects the file's format, decodes it and normalizes every row.
// The returned row order and diagnostics are deterministic for identical
// input bytes.
func (p *Parser) Parse(file File) ([]CanonicalRow, []Diagnostic, error) {
	format, err := DetectFormat(file)
	if err != nil {
		return nil, nil, err
	}
	return p.ParseWithFormat(file, format)
}

// ParseWithFormat decodes and normalizes a file whose format is already
// known, so callers that detect the format themselves do not fingerprint
// the file twice.
func (p *Parser) ParseWithFormat(file File, format Format) ([]CanonicalRow, []Diagnostic, error) {
	table, err := decode(file, format)
	if err != nil {
		return nil, nil, err
	}

	normalizer, err := NewNormalizer(format.Tool, p.oneRefPerRow)
	if err != nil {
		return nil, nil, err
	}
	rows, diags := normalizer.Normalize(table)

	p.logger.Info("parsed BOM file",
		zap.String("file", file.Name),
		zap.String("tool", string(format.Tool)),
		zap.String("encoding", string(format.Encoding)),
		zap.Int("rows", len(rows)),
		zap.Int("diagnostics", len(diags)))

	return rows, diags, nil
}

// decode turns raw file bytes into an untyped header+rows table according
// to the detected encoding.
func decode(file File, format Format) (rawTable, error) {
	content := stripUTF8BOM(file.Content)
	switch format.Encoding {
	case EncodingCSV, EncodingTSV:
		delim := format.Delimiter
		if delim == 0 {
			delim = ','
			if format.Encoding == EncodingTSV {
				delim = '\t'
			}
		}
		return decodeCSV(file.Name, content, delim)
	case EncodingXML:
		return decodeKiCadXML(file.Name, content)
	case EncodingBRD:
		return decodeEagleBRD(file.Name, content)
	case EncodingASC:
		return decodePADSASC(file.Name, content)
	case EncodingNET:
		return decodeKiCadNet(file.Name, content)
	case EncodingJSON:
		return decodeJSON(file.Name, content)
	default:
		return rawTable{}, fmt.Errorf("%w: unsupported encoding %q", ErrUnrecognizedFormat, format.Encoding)
	}
}

// readCandidateHeaders decodes up to max leading CSV records for
// fingerprinting.
func readCandidateHeaders(content []byte, delim rune, max int) ([][]string, error) {
	r := newCSVReader(content, delim)
	var records [][]string
	for len(records) < max {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading header rows: %w", err)
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file has no records")
	}
	return records, nil
}

func newCSVReader(content []byte, delim rune) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return r
}

func decodeCSV(name string, content []byte, delim rune) (rawTable, error) {
	r := newCSVReader(content, delim)

	var records [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rawTable{}, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, name, err)
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return rawTable{}, fmt.Errorf("%w: %s has no records", ErrUnreadableFile, name)
	}

	// Some tools emit title or comment lines before the header; the
	// header is the first record with more than one named field.
	headerIdx := 0
	for i, rec := range records {
		named := 0
		for _, c := range rec {
			if normalizeHeader(c) != "" {
				named++
			}
		}
		if named >= 2 {
			headerIdx = i
			break
		}
	}

	table := rawTable{header: records[headerIdx]}
	for i, rec := range records[headerIdx+1:] {
		table.rows = append(table.rows, rawRow{
			// 1-based line numbers, counting the skipped preamble.
			line:  headerIdx + i + 2,
			cells: rec,
		})
	}
	return table, nil
}

// kicadExport is the subset of KiCad's netlist/BOM XML export we read.
type kicadExport struct {
	XMLName    xml.Name `xml:"export"`
	Components struct {
		Comps []kicadComp `xml:"comp"`
	} `xml:"components"`
}

type kicadComp struct {
	Ref       string `xml:"ref,attr"`
	Value     string `xml:"value"`
	Footprint string `xml:"footprint"`
	Datasheet string `xml:"datasheet"`
	Fields    struct {
		Fields []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:",chardata"`
		} `xml:"field"`
	} `xml:"fields"`
}

func decodeKiCadXML(name string, content []byte) (rawTable, error) {
	var export kicadExport
	if err := xml.Unmarshal(content, &export); err != nil {
		return rawTable{}, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, name, err)
	}
	if len(export.Components.Comps) == 0 {
		return rawTable{}, fmt.Errorf("%w: %s contains no <comp> elements", ErrUnreadableFile, name)
	}

	table := rawTable{header: []string{"Reference", "Value", "Footprint", "MPN", "Description"}}
	for i, comp := range export.Components.Comps {
		mpn, desc := "", ""
		for _, f := range comp.Fields.Fields {
			switch normalizeHeader(f.Name) {
			case "mpn", "manufacturer part number", "part number":
				mpn = strings.TrimSpace(f.Value)
			case "description", "desc":
				desc = strings.TrimSpace(f.Value)
			}
		}
		table.rows = append(table.rows, rawRow{
			line:  i + 1,
			cells: []string{comp.Ref, comp.Value, comp.Footprint, mpn, desc},
		})
	}
	return table, nil
}

// eagleBoard is the subset of an Eagle .brd board file we read: placed
// elements carry the reference, value and package.
type eagleBoard struct {
	XMLName  xml.Name `xml:"eagle"`
	Elements []struct {
		Name    string `xml:"name,attr"`
		Value   string `xml:"value,attr"`
		Package string `xml:"package,attr"`
		Library string `xml:"library,attr"`
	} `xml:"drawing>board>elements>element"`
}

func decodeEagleBRD(name string, content []byte) (rawTable, error) {
	var board eagleBoard
	if err := xml.Unmarshal(content, &board); err != nil {
		return rawTable{}, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, name, err)
	}
	if len(board.Elements) == 0 {
		return rawTable{}, fmt.Errorf("%w: %s contains no board elements", ErrUnreadableFile, name)
	}

	table := rawTable{header: []string{"Part", "Value", "Device", "Package"}}
	for i, el := range board.Elements {
		table.rows = append(table.rows, rawRow{
			line:  i + 1,
			cells: []string{el.Name, el.Value, el.Library, el.Package},
		})
	}
	return table, nil
}

// decodePADSASC reads the *PART* section of a PADS ASCII export: one
// "REFDES PARTTYPE" pair per line until the next section marker.
func decodePADSASC(name string, content []byte) (rawTable, error) {
	lines := strings.Split(string(content), "\n")
	table := rawTable{header: []string{"Ref Des", "Part Number"}}

	inParts := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "*") {
			inParts = strings.EqualFold(trimmed, "*PART*")
			continue
		}
		if !inParts {
			continue
		}
		fields := strings.Fields(trimmed)
		cells := []string{fields[0], ""}
		if len(fields) > 1 {
			cells[1] = fields[1]
		}
		table.rows = append(table.rows, rawRow{line: i + 1, cells: cells})
	}

	if len(table.rows) == 0 {
		return rawTable{}, fmt.Errorf("%w: %s has no *PART* section", ErrUnreadableFile, name)
	}
	return table, nil
}

// decodeJSON accepts either a top-level array of component objects or an
// object wrapping the array under a well-known key.
func decodeJSON(name string, content []byte) (rawTable, error) {
	var components []map[string]any

	var asList []map[string]any
	if err := json.Unmarshal(content, &asList); err == nil {
		components = asList
	} else {
		var asObject map[string]json.RawMessage
		if err := json.Unmarshal(content, &asObject); err != nil {
			return rawTable{}, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, name, err)
		}
		for _, key := range []string{"components", "parts", "items", "bom"} {
			raw, ok := asObject[key]
			if !ok {
				continue
			}
			if err := json.Unmarshal(raw, &components); err != nil {
				return rawTable{}, fmt.Errorf("%w: %s: %q is not a component list: %v", ErrUnreadableFile, name, key, err)
			}
			break
		}
	}
	if len(components) == 0 {
		return rawTable{}, fmt.Errorf("%w: %s contains no components", ErrUnreadableFile, name)
	}

	// Header is the sorted union of keys so output is deterministic.
	keySet := map[string]bool{}
	for _, comp := range components {
		for k := range comp {
			keySet[k] = true
		}
	}
	header := make([]string, 0, len(keySet))
	for k := range keySet {
		header = append(header, k)
	}
	sort.Strings(header)

	table := rawTable{header: header}
	for i, comp := range components {
		cells := make([]string, len(header))
		for j, k := range header {
			if v, ok := comp[k]; ok && v != nil {
				cells[j] = strings.TrimSpace(fmt.Sprintf("%v", v))
			}
		}
		table.rows = append(table.rows, rawRow{line: i + 1, cells: cells})
	}
	return table, nil
}

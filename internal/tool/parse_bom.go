// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/partsproj/parts-mcp/internal/bom"
)

// MetadataParseBOM describes the parse_bom tool.
var MetadataParseBOM = &mcp.Tool{
	Name: "parse_bom",
	Description: "Parse a bill-of-materials export into canonical rows. " +
		"Detects the originating EDA tool from the file name and header " +
		"(KiCad, Altium, Fusion 360, Eagle, PADS, Protel 99, or a generic CSV) " +
		"and maps tool-specific columns onto reference, value, footprint, " +
		"quantity, MPN and description. KiCad XML and .net netlist exports are " +
		"accepted alongside tabular files. Rows with problems produce diagnostics " +
		"instead of aborting the parse. The output includes a summary analysis " +
		"grouping components by designator category.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"file_name", "content"},
		"properties": map[string]interface{}{
			"file_name": map[string]interface{}{
				"type":        "string",
				"description": "Original file name, used for extension-based format hints.",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Raw content of the BOM file.",
			},
			"one_ref_per_row": map[string]interface{}{
				"type":        "boolean",
				"description": "Expand grouped reference lists (e.g. \"R1, R2, R3\") into one row per reference.",
			},
		},
	},
}

// InputParseBOM is the input for the ParseBOM tool.
type InputParseBOM struct {
	FileName     string `json:"file_name"`
	Content      string `json:"content"`
	OneRefPerRow bool   `json:"one_ref_per_row"`
}

// OutputParseBOM is the output for the ParseBOM tool.
type OutputParseBOM struct {
	// Tool is the detected originating EDA tool.
	Tool bom.Tool `json:"tool"`
	// Encoding is the detected file encoding (csv, tsv, xml, ...).
	Encoding bom.Encoding `json:"encoding"`
	// Rows are the canonical BOM rows in source order.
	Rows []bom.CanonicalRow `json:"rows"`
	// Diagnostics reports rows that were dropped or degraded.
	Diagnostics []bom.Diagnostic `json:"diagnostics"`
	// Analysis summarizes the parsed BOM by component category.
	Analysis bom.Analysis `json:"analysis"`
}

// ParseBOM detects the BOM format, normalizes the rows and returns them
// together with diagnostics and a category analysis.
func (s *Service) ParseBOM(ctx context.Context, _ *mcp.CallToolRequest, input InputParseBOM) (*mcp.CallToolResult, OutputParseBOM, error) {
	if input.FileName == "" {
		return nil, OutputParseBOM{}, fmt.Errorf("file_name is required")
	}
	if input.Content == "" {
		return nil, OutputParseBOM{}, fmt.Errorf("content is required")
	}

	file := bom.File{Name: input.FileName, Content: []byte(input.Content)}

	format, err := bom.DetectFormat(file)
	if err != nil {
		return nil, OutputParseBOM{}, err
	}

	var opts []bom.ParserOption
	if input.OneRefPerRow {
		opts = append(opts, bom.WithOneRefPerRow())
	}
	rows, diags, err := bom.NewParser(s.logger, opts...).ParseWithFormat(file, format)
	if err != nil {
		return nil, OutputParseBOM{}, err
	}

	s.logger.Info("parsed bom",
		zap.String("file", input.FileName),
		zap.String("tool", string(format.Tool)),
		zap.Int("rows", len(rows)),
		zap.Int("diagnostics", len(diags)))

	return nil, OutputParseBOM{
		Tool:        format.Tool,
		Encoding:    format.Encoding,
		Rows:        rows,
		Diagnostics: diags,
		Analysis:    bom.Analyze(rows),
	}, nil
}

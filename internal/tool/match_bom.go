// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/partsproj/parts-mcp/internal/bom"
	"github.com/partsproj/parts-mcp/internal/match"
)

// MetadataMatchBOM describes the match_bom tool.
var MetadataMatchBOM = &mcp.Tool{
	Name: "match_bom",
	Description: "Parse a bill-of-materials export and match every row against " +
		"the parts catalog. Rows are matched by exact MPN first, then by " +
		"value plus footprint, then by fuzzy description. Each row comes back " +
		"as matched, ambiguous or unmatched with ranked candidates and " +
		"confidence scores. The report preserves BOM row order and includes " +
		"per-row diagnostics and a summary with the overall match rate.",
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
			"include_csv": map[string]interface{}{
				"type":        "boolean",
				"description": "Also render the report as CSV suitable for spreadsheet import.",
			},
		},
	},
}

// InputMatchBOM is the input for the MatchBOM tool.
type InputMatchBOM struct {
	FileName   string `json:"file_name"`
	Content    string `json:"content"`
	IncludeCSV bool   `json:"include_csv"`
}

// OutputMatchBOM is the output for the MatchBOM tool.
type OutputMatchBOM struct {
	// Report holds per-row match results and the aggregate summary.
	Report *match.Report `json:"report"`
	// CSV is the CSV rendering of the report, when requested.
	CSV string `json:"csv,omitempty"`
}

// MatchBOM parses the file and runs the matching cascade over every row.
func (s *Service) MatchBOM(ctx context.Context, _ *mcp.CallToolRequest, input InputMatchBOM) (*mcp.CallToolResult, OutputMatchBOM, error) {
	if input.FileName == "" {
		return nil, OutputMatchBOM{}, fmt.Errorf("file_name is required")
	}
	if input.Content == "" {
		return nil, OutputMatchBOM{}, fmt.Errorf("content is required")
	}

	file := bom.File{Name: input.FileName, Content: []byte(input.Content)}
	rows, diags, err := bom.NewParser(s.logger).Parse(file)
	if err != nil {
		return nil, OutputMatchBOM{}, err
	}

	report, err := s.matcher.MatchBOM(ctx, rows, diags)
	if err != nil {
		return nil, OutputMatchBOM{}, err
	}

	s.logger.Info("matched bom",
		zap.String("file", input.FileName),
		zap.Int("rows", report.Summary.TotalRows),
		zap.Float64("match_rate", report.Summary.MatchRate))

	out := OutputMatchBOM{Report: report}
	if input.IncludeCSV {
		var sb strings.Builder
		if err := report.WriteCSV(&sb); err != nil {
			return nil, OutputMatchBOM{}, fmt.Errorf("rendering report csv: %w", err)
		}
		out.CSV = sb.String()
	}
	return nil, out, nil
}

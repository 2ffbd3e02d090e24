// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/partsproj/parts-mcp/internal/bom"
)

// MetadataGenerateBOM describes the generate_bom tool.
var MetadataGenerateBOM = &mcp.Tool{
	Name: "generate_bom",
	Description: "Generate a BOM from a local KiCad project using kicad-cli " +
		"and parse it into canonical rows. Accepts a path to a .kicad_pro " +
		"project or a .kicad_sch schematic. Requires kicad-cli to be installed " +
		"on the host.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"project_path"},
		"properties": map[string]interface{}{
			"project_path": map[string]interface{}{
				"type":        "string",
				"description": "Path to a .kicad_pro project file or .kicad_sch schematic.",
			},
		},
	},
}

// InputGenerateBOM is the input for the GenerateBOM tool.
type InputGenerateBOM struct {
	ProjectPath string `json:"project_path"`
}

// OutputGenerateBOM is the output for the GenerateBOM tool.
type OutputGenerateBOM struct {
	// BOMPath is where kicad-cli wrote the generated BOM.
	BOMPath string `json:"bom_path"`
	// Rows are the canonical rows parsed from the generated BOM.
	Rows []bom.CanonicalRow `json:"rows"`
	// Diagnostics reports rows that were dropped or degraded during parsing.
	Diagnostics []bom.Diagnostic `json:"diagnostics"`
	// Analysis summarizes the generated BOM by component category.
	Analysis bom.Analysis `json:"analysis"`
}

// GenerateBOM exports a BOM from a KiCad project and parses the result.
func (s *Service) GenerateBOM(ctx context.Context, _ *mcp.CallToolRequest, input InputGenerateBOM) (*mcp.CallToolResult, OutputGenerateBOM, error) {
	if input.ProjectPath == "" {
		return nil, OutputGenerateBOM{}, fmt.Errorf("project_path is required")
	}

	cli, err := findCLI(s.logger)
	if err != nil {
		return nil, OutputGenerateBOM{}, err
	}

	bomPath, err := cli.GenerateBOM(ctx, input.ProjectPath)
	if err != nil {
		return nil, OutputGenerateBOM{}, err
	}

	content, err := os.ReadFile(bomPath)
	if err != nil {
		return nil, OutputGenerateBOM{}, fmt.Errorf("reading generated bom: %w", err)
	}

	rows, diags, err := bom.NewParser(s.logger).Parse(bom.File{
		Name:    filepath.Base(bomPath),
		Content: content,
	})
	if err != nil {
		return nil, OutputGenerateBOM{}, fmt.Errorf("parsing generated bom: %w", err)
	}

	s.logger.Info("generated bom",
		zap.String("project", input.ProjectPath),
		zap.String("output", bomPath),
		zap.Int("rows", len(rows)))

	return nil, OutputGenerateBOM{
		BOMPath:     bomPath,
		Rows:        rows,
		Diagnostics: diags,
		Analysis:    bom.Analyze(rows),
	}, nil
}

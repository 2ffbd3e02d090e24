// SPDX-License-Identifier: Apache-2.0

// Package kicad wraps the external kicad-cli process for BOM generation.
package kicad

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// GenerationError reports a failed kicad-cli invocation with the
// process's stderr passed through.
type GenerationError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("kicad-cli %s failed: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

// wellKnownPaths are checked when kicad-cli is not on PATH.
var wellKnownPaths = []string{
	"/usr/bin/kicad-cli",
	"/usr/local/bin/kicad-cli",
	"/opt/homebrew/bin/kicad-cli",
	"/Applications/KiCad/KiCad.app/Contents/MacOS/kicad-cli",
	"/var/lib/flatpak/exports/bin/org.kicad.KiCad.kicad-cli",
	"/snap/bin/kicad.kicad-cli",
}

// CLI invokes kicad-cli for BOM generation.
type CLI struct {
	binary string
	logger *zap.Logger
}

// Find locates kicad-cli on PATH or in well-known install locations.
func Find(logger *zap.Logger) (*CLI, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path, err := exec.LookPath("kicad-cli"); err == nil {
		return &CLI{binary: path, logger: logger}, nil
	}
	for _, path := range wellKnownPaths {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return &CLI{binary: path, logger: logger}, nil
		}
	}
	return nil, fmt.Errorf("kicad-cli not found on PATH or in known install locations")
}

// GenerateBOM exports a CSV BOM for the given KiCad project and returns
// the generated file path. The project may be a .kicad_pro or .kicad_sch
// file; project files resolve to their sibling schematic.
func (c *CLI) GenerateBOM(ctx context.Context, projectPath string) (string, error) {
	schematic, err := resolveSchematic(projectPath)
	if err != nil {
		return "", err
	}

	output := strings.TrimSuffix(schematic, filepath.Ext(schematic)) + "_bom.csv"
	args := []string{"sch", "export", "bom", "--output", output, schematic}

	c.logger.Info("generating BOM",
		zap.String("schematic", schematic),
		zap.String("output", output))

	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &GenerationError{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	if _, err := os.Stat(output); err != nil {
		return "", &GenerationError{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    fmt.Errorf("no output file produced: %w", err),
		}
	}
	return output, nil
}

// resolveSchematic maps a project path to the schematic kicad-cli needs.
func resolveSchematic(projectPath string) (string, error) {
	switch strings.ToLower(filepath.Ext(projectPath)) {
	case ".kicad_sch":
		return projectPath, nil
	case ".kicad_pro":
		schematic := strings.TrimSuffix(projectPath, filepath.Ext(projectPath)) + ".kicad_sch"
		if _, err := os.Stat(schematic); err != nil {
			return "", fmt.Errorf("project %s has no schematic at %s", projectPath, schematic)
		}
		return schematic, nil
	default:
		return "", fmt.Errorf("expected a .kicad_pro or .kicad_sch file, got %s", projectPath)
	}
}

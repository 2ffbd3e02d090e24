// SPDX-License-Identifier: Apache-2.0

// Package tool exposes the BOM pipeline as MCP tools. Each tool has a
// Metadata* descriptor with its JSON schema, typed input/output structs,
// and a handler on Service.
package tool

import (
	"go.uber.org/zap"

	"github.com/partsproj/parts-mcp/internal/kicad"
	"github.com/partsproj/parts-mcp/internal/match"
)

// Service carries the shared dependencies of the tool handlers.
type Service struct {
	matcher *match.Matcher
	logger  *zap.Logger
}

// NewService wires a tool service around a configured matcher.
func NewService(matcher *match.Matcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{matcher: matcher, logger: logger}
}

// findCLI is swapped out in tests to avoid depending on an installed kicad-cli.
var findCLI = kicad.Find

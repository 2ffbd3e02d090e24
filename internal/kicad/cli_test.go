// SPDX-License-Identifier: Apache-2.0

package kicad

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSchematic(t *testing.T) {
	dir := t.TempDir()
	schematic := filepath.Join(dir, "board.kicad_sch")
	require.NoError(t, os.WriteFile(schematic, []byte("(kicad_sch)"), 0o644))

	t.Run("schematic passes through", func(t *testing.T) {
		got, err := resolveSchematic(schematic)
		require.NoError(t, err)
		assert.Equal(t, schematic, got)
	})

	t.Run("project resolves to sibling schematic", func(t *testing.T) {
		project := filepath.Join(dir, "board.kicad_pro")
		require.NoError(t, os.WriteFile(project, []byte("{}"), 0o644))

		got, err := resolveSchematic(project)
		require.NoError(t, err)
		assert.Equal(t, schematic, got)
	})

	t.Run("project without schematic fails", func(t *testing.T) {
		orphan := filepath.Join(dir, "other.kicad_pro")
		require.NoError(t, os.WriteFile(orphan, []byte("{}"), 0o644))

		_, err := resolveSchematic(orphan)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no schematic")
	})

	t.Run("unrelated extension fails", func(t *testing.T) {
		_, err := resolveSchematic(filepath.Join(dir, "board.pcb"))
		require.Error(t, err)
	})
}

func TestGenerationError(t *testing.T) {
	cause := errors.New("exit status 2")
	err := &GenerationError{
		Args:   []string{"sch", "export", "bom"},
		Stderr: "Error: schematic file not found",
		Err:    cause,
	}

	assert.Contains(t, err.Error(), "sch export bom")
	assert.Contains(t, err.Error(), "schematic file not found")
	assert.ErrorIs(t, err, cause)
}

// SPDX-License-Identifier: Apache-2.0

package bom

import (
	"fmt"
	"strings"
	"unicode"
)

// decodeKiCadNet reads a KiCad schematic netlist export: an S-expression
// document of the shape (export (components (comp ...)) (nets ...)). Only
// the component list feeds canonical rows; net topology is ignored.
func decodeKiCadNet(name string, content []byte) (rawTable, error) {
	root, err := parseSExpr(content)
	if err != nil {
		return rawTable{}, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, name, err)
	}
	if root.name() != "export" {
		return rawTable{}, fmt.Errorf("%w: %s is not a netlist export", ErrUnreadableFile, name)
	}
	components := root.child("components")
	if components == nil {
		return rawTable{}, fmt.Errorf("%w: %s has no components section", ErrUnreadableFile, name)
	}

	table := rawTable{header: []string{"Reference", "Value", "Footprint", "MPN", "Description"}}
	line := 0
	for _, comp := range components.list {
		if comp.name() != "comp" {
			continue
		}
		line++
		mpn, desc := "", ""
		if fields := comp.child("fields"); fields != nil {
			for _, f := range fields.list {
				if f.name() != "field" {
					continue
				}
				switch normalizeHeader(f.childValue("name")) {
				case "mpn", "manufacturer part number", "part number":
					mpn = strings.TrimSpace(f.text())
				case "description", "desc":
					desc = strings.TrimSpace(f.text())
				}
			}
		}
		if desc == "" {
			if lib := comp.child("libsource"); lib != nil {
				desc = lib.childValue("description")
			}
		}
		table.rows = append(table.rows, rawRow{
			line: line,
			cells: []string{
				comp.childValue("ref"),
				comp.childValue("value"),
				comp.childValue("footprint"),
				mpn,
				desc,
			},
		})
	}
	if len(table.rows) == 0 {
		return rawTable{}, fmt.Errorf("%w: %s contains no components", ErrUnreadableFile, name)
	}
	return table, nil
}

// sexpNode is one node of an S-expression tree: an atom, or a list whose
// head atom names the node.
type sexpNode struct {
	atom string
	list []*sexpNode
}

func (n *sexpNode) isList() bool { return n.list != nil }

// name returns the head atom of a list node, or "" for atoms and empty
// lists.
func (n *sexpNode) name() string {
	if n.isList() && len(n.list) > 0 && !n.list[0].isList() {
		return n.list[0].atom
	}
	return ""
}

// child returns the first child list with the given head atom.
func (n *sexpNode) child(name string) *sexpNode {
	for _, c := range n.list {
		if c.name() == name {
			return c
		}
	}
	return nil
}

// childValue returns the text of the child list with the given head atom,
// as in (ref "R1").
func (n *sexpNode) childValue(name string) string {
	c := n.child(name)
	if c == nil {
		return ""
	}
	return c.text()
}

// text returns the first non-head atom of a list node, as in
// (field (name "MPN") "RC0603FR-0710KL").
func (n *sexpNode) text() string {
	for _, item := range n.list[1:] {
		if !item.isList() {
			return item.atom
		}
	}
	return ""
}

func parseSExpr(content []byte) (*sexpNode, error) {
	p := &sexpParser{input: string(content)}
	p.skipSpace()
	node, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	return node, nil
}

type sexpParser struct {
	input string
	pos   int
}

func (p *sexpParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *sexpParser) parseNode() (*sexpNode, error) {
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("unexpected end of input")
	}
	if p.input[p.pos] != '(' {
		return p.parseAtom()
	}
	p.pos++
	node := &sexpNode{list: []*sexpNode{}}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return nil, fmt.Errorf("unbalanced parentheses")
		}
		if p.input[p.pos] == ')' {
			p.pos++
			return node, nil
		}
		child, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		node.list = append(node.list, child)
	}
}

func (p *sexpParser) parseAtom() (*sexpNode, error) {
	if p.input[p.pos] == '"' {
		return p.parseQuoted()
	}
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '(' || c == ')' || unicode.IsSpace(rune(c)) {
			break
		}
		p.pos++
	}
	return &sexpNode{atom: p.input[start:p.pos]}, nil
}

func (p *sexpParser) parseQuoted() (*sexpNode, error) {
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '\\' && p.pos+1 < len(p.input) {
			p.pos++
			sb.WriteByte(p.input[p.pos])
			p.pos++
			continue
		}
		if c == '"' {
			p.pos++
			return &sexpNode{atom: sb.String()}, nil
		}
		sb.WriteByte(c)
		p.pos++
	}
	return nil, fmt.Errorf("unterminated string")
}

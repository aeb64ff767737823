// Package treeview draws a dimension's hierarchy as an indented ASCII (or
// Unicode box-drawing) tree, for the `info` and `drill` CLI subcommands
// (§6). Adapted from goarchive's internal/mermaidascii — the same
// Config-plus-Render entry point, retargeted from parsing Mermaid graph
// syntax into a box diagram to walking a live dimension.Tree via Drill
// into an indented tree, since a dimension's hierarchy has no edges to
// parse: it already exists in the store.
package treeview

import (
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/mengerdb/menger/internal/dimension"
	"github.com/mengerdb/menger/internal/types"
)

// Config tunes Render's output: the connector glyph set and whether leaf
// names are colorized, the Go analogues of mermaidascii's UseAscii and
// box-padding knobs (root.go), now held on a value instead of package
// globals.
type Config struct {
	// UseASCII forces +--/\--/| connectors instead of Unicode box-drawing,
	// for terminals or redirected output that can't render box glyphs.
	UseASCII bool
	// Color enables gookit/color highlighting of leaf-level nodes.
	Color bool
	// AnnotateWidth is the column an annotation (see Annotate) is
	// right-aligned to; 0 picks a sensible default.
	AnnotateWidth int
}

// DefaultConfig returns Unicode box-drawing connectors with color enabled.
func DefaultConfig() *Config {
	return &Config{UseASCII: false, Color: true}
}

type connectors struct{ branch, last, pipe, blank string }

func (c *Config) glyphs() connectors {
	if c.UseASCII {
		return connectors{branch: "+-- ", last: "\\-- ", pipe: "|   ", blank: "    "}
	}
	return connectors{branch: "├── ", last: "└── ", pipe: "│   ", blank: "    "}
}

// Annotate returns extra text to print after a node's name (a dice total,
// a child count, a profile hit count) for coord, or "" to print nothing.
type Annotate func(coord types.Coordinate) string

// Render draws dim's subtree rooted at coord (an empty Coordinate means
// the dimension's root) down to maxDepth edges below it (0 means
// unbounded, matching Tree.Search's convention).
func Render(dim *dimension.Tree, coord types.Coordinate, maxDepth int, cfg *Config, annotate Annotate) (string, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var b strings.Builder
	b.WriteString(rootLabel(dim, coord))
	if annotate != nil {
		writeAnnotation(&b, rootLabel(dim, coord), annotate(coord), cfg)
	}
	b.WriteByte('\n')

	if err := renderChildren(&b, dim, coord, 0, maxDepth, "", cfg, annotate); err != nil {
		return "", err
	}
	return b.String(), nil
}

func rootLabel(dim *dimension.Tree, coord types.Coordinate) string {
	if len(coord) == 0 {
		return dim.Label
	}
	return coord[len(coord)-1].String()
}

func renderChildren(b *strings.Builder, dim *dimension.Tree, coord types.Coordinate, depth, maxDepth int, prefix string, cfg *Config, annotate Annotate) error {
	if maxDepth > 0 && depth >= maxDepth {
		return nil
	}
	names, err := dim.Drill(coord)
	if err != nil {
		return err
	}

	g := cfg.glyphs()
	for i, name := range names {
		last := i == len(names)-1
		connector, nextPrefix := g.branch, prefix+g.pipe
		if last {
			connector, nextPrefix = g.last, prefix+g.blank
		}

		childCoord := append(append(types.Coordinate{}, coord...), name)
		label := name.String()
		if cfg.Color && len(childCoord) == dim.Depth {
			label = color.FgGreen.Render(label)
		}

		line := prefix + connector + label
		b.WriteString(line)
		if annotate != nil {
			writeAnnotation(b, prefix+connector+name.String(), annotate(childCoord), cfg)
		}
		b.WriteByte('\n')

		if err := renderChildren(b, dim, childCoord, depth+1, maxDepth, nextPrefix, cfg, annotate); err != nil {
			return err
		}
	}
	return nil
}

// writeAnnotation right-pads plain (the undecorated line, so ANSI color
// codes don't throw off the column math) out to AnnotateWidth before
// appending value.
func writeAnnotation(b *strings.Builder, plain, value string, cfg *Config) {
	if value == "" {
		return
	}
	width := cfg.AnnotateWidth
	if width <= 0 {
		width = 40
	}
	pad := width - runewidth.StringWidth(plain)
	if pad < 1 {
		pad = 1
	}
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(value)
}

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/mengerdb/menger/internal/measure"
	"github.com/mengerdb/menger/internal/space"
	"github.com/mengerdb/menger/internal/types"
)

var (
	diceSpace  string
	diceFormat string
)

var diceCmd = &cobra.Command{
	Use:   "dice [dim_name[=drill_path] ...] [measure_name ...]",
	Short: "Run an aggregating query against a space",
	Long: `Dice groups a space's fact rows by the listed dimensions and prints the
listed measures (§4.3 "dice"). A bare dimension name groups by that
dimension's leaves; "dim=path" additionally restricts the result to the
subtree rooted at path. Arguments that are not one of the space's
dimensions are treated as measure names.

Example:
  menger dice --space sales region=EU/FR product revenue margin`,
	RunE: runDice,
}

func init() {
	diceCmd.Flags().StringVar(&diceSpace, "space", "", "Space to query (required unless the schema defines exactly one)")
	diceCmd.Flags().StringVar(&diceFormat, "format", "col", "Output format: col or json")
	rootCmd.AddCommand(diceCmd)
}

func runDice(cmd *cobra.Command, args []string) error {
	sess, cleanup, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	sp, err := resolveSpace(sess, diceSpace)
	if err != nil {
		return err
	}

	var items []types.SelectItem
	var filters types.Filter
	var headers []string

	for _, arg := range args {
		name, path, hasPath := strings.Cut(arg, "=")
		if dim, ok := sp.Dimensions.Get(name); ok {
			items = append(items, types.DimensionItem(name))
			headers = append(headers, name)
			if hasPath {
				coord, err := parseCoordinate(dim, path)
				if err != nil {
					return err
				}
				filters = append(filters, types.Match(name, nil, coord))
			}
			continue
		}
		if hasPath {
			return fmt.Errorf("dice: %q is not a dimension of space %q", name, sp.Name)
		}
		m, ok := sp.Measures.Get(name)
		if !ok {
			return fmt.Errorf("dice: %q is neither a dimension nor a measure of space %q", name, sp.Name)
		}
		if _, isComputed := m.(measure.Computed); isComputed {
			items = append(items, types.ComputedItem(name))
		} else {
			items = append(items, types.SumItem(name))
		}
		headers = append(headers, name)
	}

	if len(items) == 0 {
		return fmt.Errorf("dice: at least one dimension or measure argument is required")
	}

	rows, err := sess.profiles.Dice(sp, items, filters, types.DimFormatFull, true)
	if err != nil {
		return err
	}

	if diceFormat == "json" {
		return printDiceJSON(cmd, headers, rows)
	}
	printDiceCol(cmd, headers, rows)
	return nil
}

func resolveSpace(sess *session, name string) (*space.Space, error) {
	if name != "" {
		return sess.space(name)
	}
	if len(sess.spaces) == 1 {
		for _, sp := range sess.spaces {
			return sp, nil
		}
	}
	return nil, fmt.Errorf("dice: --space is required when the schema defines more than one space")
}

func cellText(c space.Cell) string {
	if c.IsNum {
		return c.Text
	}
	if c.Text != "" {
		return c.Text
	}
	parts := make([]string, len(c.Path))
	for i, a := range c.Path {
		parts[i] = a.String()
	}
	return strings.Join(parts, "/")
}

// printDiceCol renders rows as aligned columns, the Go analogue of a
// shell "column -t": header widths are measured with go-runewidth so
// multi-byte coordinate names line up, and the header row is colorized
// with gookit/color.
func printDiceCol(cmd *cobra.Command, headers []string, rows [][]space.Cell) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	text := make([][]string, len(rows))
	for r, row := range rows {
		text[r] = make([]string, len(row))
		for i, c := range row {
			t := cellText(c)
			text[r][i] = t
			if w := runewidth.StringWidth(t); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var header strings.Builder
	for i, h := range headers {
		header.WriteString(runewidth.FillRight(h, widths[i]+2))
	}
	cmd.Println(color.FgCyan.Render(strings.TrimRight(header.String(), " ")))

	for _, row := range text {
		var line strings.Builder
		for i, t := range row {
			line.WriteString(runewidth.FillRight(t, widths[i]+2))
		}
		cmd.Println(strings.TrimRight(line.String(), " "))
	}
}

func printDiceJSON(cmd *cobra.Command, headers []string, rows [][]space.Cell) error {
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]interface{}, len(headers))
		for i, c := range row {
			if c.IsNum {
				obj[headers[i]] = c.Value
			} else {
				obj[headers[i]] = cellText(c)
			}
		}
		out = append(out, obj)
	}
	enc, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(enc))
	return nil
}

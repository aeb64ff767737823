package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mengerdb/menger/internal/treeview"
)

var drillDepth int
var drillASCII bool

var drillCmd = &cobra.Command{
	Use:   "drill <dim[=path]>",
	Short: "List the immediate children of a dimension coordinate",
	Long: `Drill prints the immediate children of a coordinate (§4.2 "drill"). The
argument names a dimension, optionally with a "/"-separated path into it;
omitting the path drills the dimension's root.

With --depth > 1, drill instead renders a multi-level tree below the
coordinate.

Example:
  menger drill place=EU/FR
  menger drill place --depth 3`,
	Args: cobra.ExactArgs(1),
	RunE: runDrill,
}

func init() {
	drillCmd.Flags().IntVar(&drillDepth, "depth", 1, "Number of levels to render below the coordinate")
	drillCmd.Flags().BoolVar(&drillASCII, "ascii", false, "Use ASCII connectors instead of Unicode box-drawing")
	rootCmd.AddCommand(drillCmd)
}

func runDrill(cmd *cobra.Command, args []string) error {
	sess, cleanup, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	dimName, path, _ := strings.Cut(args[0], "=")
	dim, err := sess.dimension(dimName)
	if err != nil {
		return err
	}

	coord, err := parseCoordinate(dim, path)
	if err != nil {
		return err
	}

	cfg := treeview.DefaultConfig()
	cfg.UseASCII = drillASCII
	out, err := treeview.Render(dim, coord, drillDepth, cfg, nil)
	if err != nil {
		return err
	}
	cmd.Print(out)
	return nil
}

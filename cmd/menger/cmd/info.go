package cmd

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/mengerdb/menger/internal/measure"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the spaces and dimensions defined by the schema",
	Long: `Info opens the store and prints every space it serves, along with each
space's dimensions and measures.

Example:
  menger info --schema schema.yaml --store sqlite://menger.db`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	sess, cleanup, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var spaceNames []string
	for name := range sess.spaces {
		spaceNames = append(spaceNames, name)
	}
	sort.Strings(spaceNames)

	if len(spaceNames) == 0 {
		cmd.Printf("No spaces defined in %s\n", schemaFile)
		return nil
	}

	cmd.Printf("Store:  %s\n", sess.cfg.Store.URI)
	cmd.Printf("Schema: %s\n\n", schemaFile)

	for i, name := range spaceNames {
		sp := sess.spaces[name]
		cmd.Printf("%d. %s\n", i+1, name)

		for el := sp.Dimensions.Front(); el != nil; el = el.Next() {
			cmd.Printf("   dimension %-20s depth=%d type=%s\n", el.Key, el.Value.Depth, el.Value.ValueType)
		}
		for el := sp.Measures.Front(); el != nil; el = el.Next() {
			kind := "computed"
			if _, ok := el.Value.(*measure.Sum); ok {
				kind = "sum"
			}
			cmd.Printf("   measure   %-20s kind=%s\n", el.Key, kind)
		}
		if i < len(spaceNames)-1 {
			cmd.Println()
		}
	}
	return nil
}

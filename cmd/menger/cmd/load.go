package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mengerdb/menger/internal/space"
	"github.com/mengerdb/menger/internal/types"
)

var loadCmd = &cobra.Command{
	Use:   "load <path> [path ...]",
	Short: "Load fact records from JSON files into a space",
	Long: `Load reads one or more JSON files, each holding a batch of records for a
single space, and upserts them (§4.3 "load"). A file has the shape:

  {
    "space": "sales",
    "load_type": "default",
    "records": [
      {"coords": {"region": ["EU","FR"], "product": ["widgets"]},
       "measures": {"revenue": 120.5}}
    ]
  }

load_type is one of "default", "increment", "create_only" and defaults to
"default" when omitted.

Example:
  menger load batch1.json batch2.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

// loadFile is the on-disk shape of one load batch.
type loadFile struct {
	Space    string            `json:"space"`
	LoadType string            `json:"load_type"`
	Records  []loadRecord      `json:"records"`
}

type loadRecord struct {
	Coords   map[string][]string `json:"coords"`
	Measures map[string]float64  `json:"measures"`
}

func runLoad(cmd *cobra.Command, args []string) error {
	sess, cleanup, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var total int
	for _, path := range args {
		n, err := loadOne(sess, path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		total += n
		cmd.Printf("%s: %d record(s) applied\n", path, n)
	}
	cmd.Printf("total: %d record(s) applied\n", total)
	return nil
}

func loadOne(sess *session, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var file loadFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, err
	}

	sp, err := sess.space(file.Space)
	if err != nil {
		return 0, err
	}

	loadType, err := parseLoadType(file.LoadType)
	if err != nil {
		return 0, err
	}

	points := make([]space.Point, len(file.Records))
	for i, rec := range file.Records {
		coords := make(map[string]types.Coordinate, len(rec.Coords))
		for dimName, parts := range rec.Coords {
			dim, err := sess.dimension(dimName)
			if err != nil {
				return 0, err
			}
			coord := make(types.Coordinate, len(parts))
			for j, part := range parts {
				atom, err := parseAtom(dim, part)
				if err != nil {
					return 0, err
				}
				coord[j] = atom
			}
			coords[dimName] = coord
		}
		points[i] = space.Point{Coords: coords, Measures: rec.Measures}
	}

	return sp.Load(points, nil, loadType)
}

func parseLoadType(s string) (types.LoadType, error) {
	switch s {
	case "", "default":
		return types.LoadDefault, nil
	case "increment":
		return types.LoadIncrement, nil
	case "create_only":
		return types.LoadCreateOnly, nil
	default:
		return 0, fmt.Errorf("unknown load_type %q", s)
	}
}

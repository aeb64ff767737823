// Command menger is the CLI front-end for the embedded OLAP engine: a thin
// client of the internal/ library, mirroring how goarchive's cmd/goarchive
// is a thin client of internal/archiver.
package main

import "github.com/mengerdb/menger/cmd/menger/cmd"

func main() {
	cmd.Execute()
}

package types

// Clause is one conjunct of a query or load-time filter: "coordinate in
// one of Coords, on Dimension, optionally restricted to Depth" (§3). Within
// a clause, multiple Coords are OR'd; clauses of a Filter are AND'd.
type Clause struct {
	Dimension string
	Coords    []Coordinate
	Depth     *int
}

// Filter is a conjunction of Clauses.
type Filter []Clause

// Match constructs a Clause — the Go form of Dimension.match(coord1,
// coord2, ..., depth=None) in §4.2.
func Match(dimension string, depth *int, coords ...Coordinate) Clause {
	return Clause{Dimension: dimension, Coords: coords, Depth: depth}
}

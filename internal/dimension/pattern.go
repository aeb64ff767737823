package dimension

import "github.com/mengerdb/menger/internal/types"

// Pattern is a glob/explode pattern over a dimension's coordinate: each
// position is either a concrete Atom or a wildcard, denoted by a nil entry.
// This is the Go counterpart of the Python glob()/explode() argument, which
// accepts a tuple mixing concrete values and None (menger/dimension.py
// Tree.glob, Tree.explode).
type Pattern []*types.Atom

// Wildcard constructs an unbound Pattern position.
func Wildcard() *types.Atom { return nil }

// Bound constructs a concrete Pattern position.
func Bound(a types.Atom) *types.Atom { return &a }

// head returns the longest prefix of concrete (non-wildcard) positions, the
// Go analogue of `head = takewhile(lambda v: v is not None, value)` in
// Tree.glob.
func (p Pattern) head() types.Coordinate {
	head := make(types.Coordinate, 0, len(p))
	for _, v := range p {
		if v == nil {
			break
		}
		head = append(head, *v)
	}
	return head
}

// tail returns the pattern positions after the concrete head, preserving
// any wildcards and concrete atoms that follow.
func (p Pattern) tail() Pattern {
	i := 0
	for i < len(p) && p[i] != nil {
		i++
	}
	return p[i:]
}

// isAllWildcard reports whether every position in the tail is a wildcard —
// the common case, where glob degenerates to "every descendant of head at
// this depth".
func (p Pattern) isAllWildcard() bool {
	for _, v := range p {
		if v != nil {
			return false
		}
	}
	return true
}

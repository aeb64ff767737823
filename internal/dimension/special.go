package dimension

import (
	"github.com/mengerdb/menger/internal/event"
	"github.com/mengerdb/menger/internal/types"
)

// NewVersion constructs the single-level "version" variant of a Tree: a
// dimension whose only purpose is tracking a monotonic revision label
// (menger/dimension.py Version, §4.3 "at most one Version dimension per
// space"). It rejects levels deeper than one, matching the original's
// ValueError guard.
func NewVersion(label string, valueType types.AtomType, store Store, bus *event.Bus) (*Tree, error) {
	t := New(label, []string{label}, valueType, store, bus)
	t.Special = "version"
	if t.Depth > 1 {
		return nil, types.NewSchemaError("version dimension %q supports only one level", label)
	}
	return t, nil
}

// LastCoord returns the greatest immediate child of the root — the
// "current version" a space's dice pins this dimension to when the query
// neither projects nor filters it (menger/dimension.py Version.max).
func (t *Tree) LastCoord() (types.Coordinate, error) {
	children, err := t.Drill(types.Coordinate{})
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, nil
	}
	max := children[0]
	for _, c := range children[1:] {
		if atomLess(max, c) {
			max = c
		}
	}
	return types.Coordinate{max}, nil
}

// atomLess orders two atoms of one dimension's type: numerically for
// AtomInt/AtomFloat (so version 9 sorts before version 10), lexicographic
// string comparison otherwise.
func atomLess(a, b types.Atom) bool {
	switch a.Type {
	case types.AtomInt:
		return a.Int < b.Int
	case types.AtomFloat:
		return a.Flt < b.Flt
	default:
		return a.String() < b.String()
	}
}

// NewDate constructs the conventional year/month/day calendar dimension
// (§4.3 "Date" special dimension), a plain three-level integer Tree with no
// additional behavior beyond what Tree already provides.
func NewDate(label string, store Store, bus *event.Bus) *Tree {
	t := New(label, []string{"year", "month", "day"}, types.AtomInt, store, bus)
	t.Special = "date"
	return t
}

package types

import "strconv"

// AtomType is the scalar type of a dimension's node names (§3 Data Model).
type AtomType int

const (
	AtomString AtomType = iota
	AtomInt
	AtomFloat
)

func (t AtomType) String() string {
	switch t {
	case AtomString:
		return "string"
	case AtomInt:
		return "int"
	case AtomFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Atom is a single element of a Coordinate: one node name on the path from a
// dimension's root. Exactly one of the three fields is meaningful,
// according to Type.
type Atom struct {
	Type AtomType
	Str  string
	Int  int64
	Flt  float64
}

func StringAtom(s string) Atom { return Atom{Type: AtomString, Str: s} }
func IntAtom(i int64) Atom     { return Atom{Type: AtomInt, Int: i} }
func FloatAtom(f float64) Atom { return Atom{Type: AtomFloat, Flt: f} }

// String renders the atom the way it would appear in a formatted path
// (§4.3 dim_fmt), regardless of its declared scalar type.
func (a Atom) String() string {
	switch a.Type {
	case AtomInt:
		return strconv.FormatInt(a.Int, 10)
	case AtomFloat:
		return strconv.FormatFloat(a.Flt, 'g', -1, 64)
	default:
		return a.Str
	}
}

// Coordinate is an ordered sequence of atoms identifying a node in a
// dimension's hierarchy. The empty coordinate is the root (§3).
type Coordinate []Atom

// Equal reports whether two coordinates denote the same path.
func (c Coordinate) Equal(other Coordinate) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether c is a prefix of other — used both by the
// load-time match predicate (§9 Open Question b) and by glob's head/tail
// split (§4.2).
func (c Coordinate) IsPrefixOf(other Coordinate) bool {
	if len(c) > len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// Key is a comparable string form of a Coordinate suitable for use as a map
// key in the dimension caches (§4.2).
func (c Coordinate) Key() string {
	// A type tag and separator before each atom and a terminator after it
	// keep coordinates of different scalar types or lengths from colliding.
	// String atoms are not escaped, so one that contains the 0x1e or 0x1f
	// byte can collide with a different coordinate.
	b := make([]byte, 0, 8*len(c))
	for _, a := range c {
		b = append(b, byte(a.Type), 0x1f)
		b = append(b, a.String()...)
		b = append(b, 0x1e)
	}
	return string(b)
}

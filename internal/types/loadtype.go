package types

// LoadType selects the upsert semantics of Backend.Load (§4.1).
type LoadType int

const (
	// LoadDefault inserts new rows, updates rows whose values differ, skips
	// inserting all-zero rows, and deletes a row that an update makes
	// all-zero.
	LoadDefault LoadType = iota
	// LoadIncrement adds incoming values to any existing row element-wise
	// (§9 Open Question c: true old+new, with delete-on-zero still applied).
	LoadIncrement
	// LoadCreateOnly inserts only if the row does not already exist.
	LoadCreateOnly
)

func (t LoadType) String() string {
	switch t {
	case LoadDefault:
		return "default"
	case LoadIncrement:
		return "increment"
	case LoadCreateOnly:
		return "create_only"
	default:
		return "unknown"
	}
}

// DimFormat selects how dimension/level select items are rendered in dice
// output (§4.3 step 7).
type DimFormat int

const (
	// DimFormatTuple yields the full-name tuple from the dimension root.
	DimFormatTuple DimFormat = iota
	// DimFormatFull yields the formatted path string ("a/b/c").
	DimFormatFull
	// DimFormatLeaf yields only the last name on the path.
	DimFormatLeaf
)

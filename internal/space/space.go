// Package space compiles a user query (a select list, filters, and
// formatting options) into backend operations and drives load/dice/delete/
// snapshot, the Go analogue of menger/space.py's MetaSpace/Space pair.
// Go has no metaclasses, so the declarative "class body becomes a schema"
// trick is replaced by building a Space directly from a parsed schema
// config (internal/config.SchemaConfig) at session-start time.
package space

import (
	"github.com/elliotchance/orderedmap/v2"

	"github.com/mengerdb/menger/internal/backend"
	"github.com/mengerdb/menger/internal/dimension"
	"github.com/mengerdb/menger/internal/measure"
	"github.com/mengerdb/menger/internal/types"
)

// Point is one input row to Load: a coordinate per dimension name, plus a
// raw numeric value per stored-measure name (§4.3 "load").
type Point struct {
	Coords   map[string]types.Coordinate
	Measures map[string]float64
}

// Space is a compiled cube: an ordered set of dimensions, an ordered set
// of measures (stored and computed), and the session it is bound to.
type Space struct {
	Name       string
	Dimensions *orderedmap.OrderedMap[string, *dimension.Tree]
	Measures   *orderedmap.OrderedMap[string, measure.Measure]
	versionDim string // name of the space's Version dimension, if any

	store *backend.Session
}

// New constructs an empty Space bound to store. Dimensions and measures
// are added with AddDimension/AddMeasure by the schema loader.
func New(name string, store *backend.Session) *Space {
	return &Space{
		Name:       name,
		Dimensions: orderedmap.NewOrderedMap[string, *dimension.Tree](),
		Measures:   orderedmap.NewOrderedMap[string, measure.Measure](),
		store:      store,
	}
}

// AddDimension registers a dimension under this space, recording it as the
// space's Version dimension if it is one (§4.3 "at most one Version
// dimension per space" is enforced at schema-validation time, not here).
func (s *Space) AddDimension(dim *dimension.Tree) {
	s.Dimensions.Set(dim.Label, dim)
	if dim.Special == "version" {
		s.versionDim = dim.Label
	}
}

// AddMeasure registers a stored or computed measure under this space.
func (s *Space) AddMeasure(m measure.Measure) {
	s.Measures.Set(m.Name(), m)
}

// VersionDimension returns the space's Version dimension and whether one
// is configured.
func (s *Space) VersionDimension() (*dimension.Tree, bool) {
	if s.versionDim == "" {
		return nil, false
	}
	dim, _ := s.Dimensions.Get(s.versionDim)
	return dim, true
}

// Register creates this space's fact table (idempotent), the Go analogue
// of menger/backend's per-space DDL fired from Space.set_db (§4.1
// "register(space)").
func (s *Space) Register() error {
	var dims []*dimension.Tree
	for el := s.Dimensions.Front(); el != nil; el = el.Next() {
		dims = append(dims, el.Value)
		if err := s.store.RegisterDimension(el.Value); err != nil {
			return err
		}
	}
	var measures []measure.Measure
	for el := s.Measures.Front(); el != nil; el = el.Next() {
		measures = append(measures, el.Value)
	}
	return s.store.RegisterSpace(backend.SpaceSchema{Name: s.Name, Dimensions: dims, Measures: measures})
}

// dimensionNames returns the space's dimension labels in declaration order.
func (s *Space) dimensionNames() []string {
	var names []string
	for el := s.Dimensions.Front(); el != nil; el = el.Next() {
		names = append(names, el.Key)
	}
	return names
}

// Key resolves a point's coordinates to dimension node IDs, in dimension
// declaration order (§4.3 Space.key). create controls whether missing
// coordinates are materialized.
func (s *Space) Key(coords map[string]types.Coordinate, create bool) ([]int64, error) {
	names := s.dimensionNames()
	ids := make([]int64, len(names))
	for i, name := range names {
		dim, _ := s.Dimensions.Get(name)
		coord := coords[name]
		id, ok, err := dim.Key(coord, create)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, types.NewUnknownCoordinateError(name, coord)
		}
		ids[i] = id
	}
	return ids, nil
}

// Match reports whether a point satisfies a load-time filter: for every
// filter clause, at least one listed coordinate must be a prefix of the
// point's coordinate on that dimension (§4.3 "load").
func (s *Space) Match(coords map[string]types.Coordinate, filters types.Filter) bool {
	for _, clause := range filters {
		coord := coords[clause.Dimension]
		matched := false
		for _, want := range clause.Coords {
			if want.IsPrefixOf(coord) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// storedMeasureNames returns the space's Sum measure names, in declaration
// order, used as the fact table's value columns.
func (s *Space) storedMeasureNames() []string {
	var names []string
	for el := s.Measures.Front(); el != nil; el = el.Next() {
		if _, ok := el.Value.(*measure.Sum); ok {
			names = append(names, el.Key)
		}
	}
	return names
}

// Load upserts a batch of points (§4.3 "load"): each point is optionally
// filtered, its coordinates resolved/created, and the resulting row passed
// to the backend with the requested load semantics. Returns the number of
// rows that were inserted or updated (all-zero-update-deletes is handled
// by the backend's Load and does not currently distinguish itself in the
// returned count from a plain update).
func (s *Space) Load(points []Point, filters types.Filter, loadType types.LoadType) (int, error) {
	dimNames := s.dimensionNames()
	measureNames := s.storedMeasureNames()
	edited := 0

	for _, p := range points {
		if filters != nil && !s.Match(p.Coords, filters) {
			continue
		}

		ids, err := s.Key(p.Coords, true)
		if err != nil {
			return edited, err
		}

		vals := make([]float64, len(measureNames))
		for i, name := range measureNames {
			vals[i] = p.Measures[name]
		}

		changed, err := s.store.Load(s.Name, dimNames, ids, measureNames, vals, loadType == types.LoadIncrement)
		if err != nil {
			return edited, err
		}
		if changed {
			edited++
		}
	}

	if edited > 0 {
		_ = s.store.Analyze(s.Name)
	}
	return edited, nil
}

// Delete removes the fact row matching coords exactly (§4.3 "delete").
// coords must name every dimension of the space.
func (s *Space) Delete(coords map[string]types.Coordinate) error {
	dimNames := s.dimensionNames()
	ids, err := s.Key(coords, false)
	if err != nil {
		return err
	}
	return s.store.DeleteFact(s.Name, dimNames, ids)
}

// Snapshot copies an aggregated projection of s into other (§4.3
// "snapshot"): self is diced over items/filters with tuple-formatted
// dimensions; coordinate constants in items pin the matching dimension on
// other and double as a delete-filter there, clearing out any rows a
// previous, wider snapshot left behind before the fresh rows are loaded.
func (s *Space) Snapshot(other *Space, items []types.SelectItem, filters types.Filter) error {
	rows, err := s.Dice(items, filters, types.DimFormatTuple, false)
	if err != nil {
		return err
	}

	hasConstant := false
	for _, it := range items {
		if it.Kind == types.SelectCoordinate && it.Name != "" {
			hasConstant = true
			if err := other.deleteByPrefix(it.Name, it.Value); err != nil {
				return err
			}
		}
	}
	if !hasConstant {
		if err := other.store.ClearFact(other.Name); err != nil {
			return err
		}
	}

	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		p := Point{Coords: map[string]types.Coordinate{}, Measures: map[string]float64{}}
		for i, it := range items {
			cell := row[i]
			switch it.Kind {
			case types.SelectDimension, types.SelectLevel, types.SelectCoordinate:
				p.Coords[it.Name] = cell.Path
			case types.SelectSum, types.SelectComputed:
				p.Measures[it.Name] = cell.Value
			}
		}
		points = append(points, p)
	}

	_, err = other.Load(points, nil, types.LoadCreateOnly)
	return err
}

// deleteByPrefix removes every fact row of other whose coordinate on dim
// lies under prefix, by globbing the dimension for matching leaves and
// deleting each exact row. Used by Snapshot to clear stale rows under a
// coordinate constant before loading fresh ones.
func (s *Space) deleteByPrefix(dimName string, prefix types.Coordinate) error {
	dim, ok := s.Dimensions.Get(dimName)
	if !ok {
		return types.NewSchemaError("snapshot: unknown dimension %q", dimName)
	}
	pattern := make(dimension.Pattern, len(prefix))
	for i := range prefix {
		a := prefix[i]
		pattern[i] = &a
	}
	for i := len(prefix); i < dim.Depth; i++ {
		pattern = append(pattern, dimension.Wildcard())
	}
	matches, err := dim.Glob(pattern, nil)
	if err != nil {
		return err
	}
	for _, leaf := range matches {
		if err := s.Delete(map[string]types.Coordinate{dimName: leaf}); err != nil {
			if _, ok := err.(*types.UnknownCoordinateError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

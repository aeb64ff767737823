// Package dimension mediates between user-facing coordinates (tuples of
// names) and the integer node IDs the backend's closure tables key on
// (§4.2). It is grounded directly on menger/dimension.py: the three caches
// (key_cache, name_cache, full_name_cache/tuple_cache), the lazy
// materialize-on-create behavior of key(coord, create=true), and the
// reparent/rename/delete operations that drive the backend's closure-table
// mutations and invalidate caches via the clear_cache event.
package dimension

import (
	"sort"
	"strings"
	"sync"

	"github.com/mengerdb/menger/internal/event"
	"github.com/mengerdb/menger/internal/types"
)

// RootID is the virtual "ancestor of everything" node every dimension's
// closure table is seeded with on register (§4.3 point 5).
const RootID int64 = 1

// ChildRef is one row of a get_children result: a node's name and ID.
type ChildRef struct {
	Name types.Atom
	ID   int64
}

// ParentRef is one row of a get_parents result: a node's ID, name, and
// parent ID (0 for the root, which has no parent).
type ParentRef struct {
	ID       int64
	Name     types.Atom
	ParentID int64
}

// SearchResult is one row of a search result: a node's full path name and
// its depth.
type SearchResult struct {
	Name  types.Coordinate
	Depth int
}

// GlobFilterValue restricts a glob to descendants of Key at (optionally)
// Depth edges below it.
type GlobFilterValue struct {
	Key   int64
	Depth int
}

// GlobFilter is one filter clause: the node must lie under the union of
// these branches (OR within a clause; multiple clauses passed to Store.Glob
// are AND'd by the backend).
type GlobFilter []GlobFilterValue

// Store is the slice of the backend contract (§4.1, §6) a Tree needs to
// resolve coordinates to IDs and drive structural mutations. Implemented
// by internal/backend.Session; kept narrow here so this package never
// imports internal/backend.
type Store interface {
	GetChildren(dim *Tree, parentID int64) ([]ChildRef, error)
	GetParents(dim *Tree) ([]ParentRef, error)
	CreateCoordinate(dim *Tree, name types.Atom, parentID int64) (int64, error)
	DeleteCoordinate(dim *Tree, id int64) error
	Reparent(dim *Tree, childID, newParentID int64) error
	Merge(dim *Tree, parentID int64) error
	Prune(dim *Tree, nodeID int64) error
	Rename(dim *Tree, id int64, newName types.Atom) error
	Search(dim *Tree, substring string, maxDepth int) ([]SearchResult, error)
	Glob(dim *Tree, headKey int64, headLen int, tail Pattern, filters []GlobFilter) ([]int64, error)
}

// Tree is a named hierarchical dimension: depth, ordered level names, and
// the scalar type of node names (§3). Special variants (Date, Version) are
// plain Trees constructed with a fixed shape — see special.go.
type Tree struct {
	Label     string
	ValueType types.AtomType
	Levels    []string
	Depth     int
	Special   string // "", "date", or "version"

	store Store
	bus   *event.Bus

	mu            sync.RWMutex
	keyCache      map[string]int64
	nameCache     map[int64]ParentRef
	fullNameCache map[int64]types.Coordinate
}

// New constructs a Tree dimension and subscribes its cache invalidation to
// the session's clear_cache event (menger/dimension.py Dimension.__init__).
func New(label string, levels []string, valueType types.AtomType, store Store, bus *event.Bus) *Tree {
	t := &Tree{
		Label:     label,
		ValueType: valueType,
		Levels:    levels,
		Depth:     len(levels),
		store:     store,
		bus:       bus,
	}
	t.initCache()
	if bus != nil {
		bus.Register(event.ClearCache, t.initCache)
	}
	return t
}

func (t *Tree) initCache() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keyCache = make(map[string]int64)
	t.nameCache = make(map[int64]ParentRef)
	t.fullNameCache = make(map[int64]types.Coordinate)
}

// Normalize validates a coordinate against the dimension's depth and
// scalar type (the Go analogue of Dimension.coord, which in Python just
// accepts any list/tuple; Go's static typing already rules out the wrong
// shape, so this only enforces depth and atom type).
func (t *Tree) Normalize(coord types.Coordinate) error {
	if len(coord) > t.Depth {
		return types.NewUserError("coordinate %q exceeds dimension %q depth %d", formatPath(coord), t.Label, t.Depth)
	}
	for _, a := range coord {
		if a.Type != t.ValueType {
			return types.NewUserError("coordinate %q has atom type %s, dimension %q expects %s", formatPath(coord), a.Type, t.Label, t.ValueType)
		}
	}
	return nil
}

func formatPath(c types.Coordinate) string {
	parts := make([]string, len(c))
	for i, a := range c {
		parts[i] = a.String()
	}
	return strings.Join(parts, "/")
}

// Key resolves coord to its node ID. With create=false, ok is false if the
// coordinate has never been materialized. With create=true, any missing
// ancestor (including coord itself) is created.
func (t *Tree) Key(coord types.Coordinate, create bool) (id int64, ok bool, err error) {
	if len(coord) == 0 {
		return RootID, true, nil
	}

	key := coord.Key()
	t.mu.RLock()
	if id, cached := t.keyCache[key]; cached {
		t.mu.RUnlock()
		return id, true, nil
	}
	t.mu.RUnlock()

	id, found, err := t.lookupKey(coord)
	if err != nil {
		return 0, false, err
	}
	if found {
		return id, true, nil
	}
	if !create {
		return 0, false, nil
	}

	id, err = t.createID(coord)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// lookupKey is the Go analogue of Dimension._get_key: it batches the
// parent's entire child list into key_cache (one backend round trip
// regardless of how many of the parent's children get looked up next),
// then answers from the cache.
func (t *Tree) lookupKey(coord types.Coordinate) (int64, bool, error) {
	parent := coord[:len(coord)-1]
	parentID, found, err := t.Key(parent, false)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}

	children, err := t.store.GetChildren(t, parentID)
	if err != nil {
		return 0, false, err
	}

	t.mu.Lock()
	for _, c := range children {
		childCoord := make(types.Coordinate, 0, len(parent)+1)
		childCoord = append(childCoord, parent...)
		childCoord = append(childCoord, c.Name)
		t.keyCache[childCoord.Key()] = c.ID
	}
	id, ok := t.keyCache[coord.Key()]
	t.mu.Unlock()

	return id, ok, nil
}

// createID materializes coord and every missing ancestor, the Go analogue
// of Dimension.create_id.
func (t *Tree) createID(coord types.Coordinate) (int64, error) {
	parent := coord[:len(coord)-1]
	parentID, _, err := t.Key(parent, true)
	if err != nil {
		return 0, err
	}

	name := coord[len(coord)-1]
	newID, err := t.store.CreateCoordinate(t, name, parentID)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	t.keyCache[coord.Key()] = newID
	t.nameCache[newID] = ParentRef{ID: newID, Name: name, ParentID: parentID}
	t.mu.Unlock()

	return newID, nil
}

// Contains reports whether coord has been materialized.
func (t *Tree) Contains(coord types.Coordinate) (bool, error) {
	_, ok, err := t.Key(coord, false)
	return ok, err
}

// GetName resolves id back to its full coordinate, the Go analogue of
// Dimension.get_name. Unknown IDs yield an empty coordinate, matching the
// Python implementation's behavior rather than erroring — callers that
// need strict existence should check Key first.
func (t *Tree) GetName(id int64) (types.Coordinate, error) {
	if id == RootID {
		return types.Coordinate{}, nil
	}

	t.mu.RLock()
	if full, ok := t.fullNameCache[id]; ok {
		t.mu.RUnlock()
		return full, nil
	}
	_, known := t.nameCache[id]
	t.mu.RUnlock()

	if !known {
		parents, err := t.store.GetParents(t)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		for _, p := range parents {
			t.nameCache[p.ID] = p
		}
		t.mu.Unlock()
	}

	t.mu.RLock()
	entry, ok := t.nameCache[id]
	t.mu.RUnlock()
	if !ok {
		return types.Coordinate{}, nil
	}

	parentName, err := t.GetName(entry.ParentID)
	if err != nil {
		return nil, err
	}

	full := make(types.Coordinate, 0, len(parentName)+1)
	full = append(full, parentName...)
	full = append(full, entry.Name)

	t.mu.Lock()
	t.fullNameCache[id] = full
	t.mu.Unlock()

	return full, nil
}

// Drill yields the names of coord's immediate children, ordered ascending
// (§4.2). An unknown coord yields an empty slice.
func (t *Tree) Drill(coord types.Coordinate) ([]types.Atom, error) {
	id, ok, err := t.Key(coord, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	children, err := t.store.GetChildren(t, id)
	if err != nil {
		return nil, err
	}

	names := make([]types.Atom, len(children))
	for i, c := range children {
		names[i] = c.Name
	}
	sort.Slice(names, func(i, j int) bool { return atomLess(names[i], names[j]) })
	return names, nil
}

// Format renders coord (or a suffix of it starting at offset) the way the
// CLI's drill-path display does (§4.2 Dimension.format).
func (t *Tree) Format(coord types.Coordinate, offset int) string {
	return formatPath(coord[offset:])
}

// Reparent moves coord under newParentCoord: creates newParentCoord if
// needed, delegates the closure-table surgery to the backend, merges any
// resulting duplicate, prunes the old parent if it is now a childless
// leaf, and fires clear_cache (§4.2).
func (t *Tree) Reparent(coord, newParentCoord types.Coordinate) error {
	currParent := coord[:len(coord)-1]
	if currParent.Equal(newParentCoord) {
		return nil
	}

	recordID, ok, err := t.Key(coord, false)
	if err != nil {
		return err
	}
	if !ok {
		return types.NewUnknownCoordinateError(t.Label, coord)
	}

	newParentID, _, err := t.Key(newParentCoord, true)
	if err != nil {
		return err
	}

	if err := t.store.Reparent(t, recordID, newParentID); err != nil {
		return err
	}
	if err := t.store.Merge(t, newParentID); err != nil {
		return err
	}

	if oldParentID, ok, err := t.Key(currParent, false); err == nil && ok {
		_ = t.store.Prune(t, oldParentID)
	}

	t.bus.Trigger(event.ClearCache)
	return nil
}

// Rename changes coord's leaf name, merges any resulting duplicate under
// the same parent, and fires clear_cache (§4.2).
func (t *Tree) Rename(coord types.Coordinate, newName types.Atom) error {
	recordID, ok, err := t.Key(coord, false)
	if err != nil {
		return err
	}
	if !ok {
		return types.NewUnknownCoordinateError(t.Label, coord)
	}

	if err := t.store.Rename(t, recordID, newName); err != nil {
		return err
	}

	parentID, ok, err := t.Key(coord[:len(coord)-1], false)
	if err != nil {
		return err
	}
	if ok {
		if err := t.store.Merge(t, parentID); err != nil {
			return err
		}
	}

	t.bus.Trigger(event.ClearCache)
	return nil
}

// Delete removes coord's subtree and fires clear_cache. Deleting an
// unknown coordinate is a no-op (§4.2).
func (t *Tree) Delete(coord types.Coordinate) error {
	id, ok, err := t.Key(coord, false)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := t.store.DeleteCoordinate(t, id); err != nil {
		return err
	}
	t.bus.Trigger(event.ClearCache)
	return nil
}

// Search delegates prefix-like search to the backend (§4.2).
func (t *Tree) Search(substring string, maxDepth int) ([]SearchResult, error) {
	return t.store.Search(t, substring, maxDepth)
}

// Explode resolves a single glob pattern to the (key, depth) pair the
// backend's dice planner joins on: if every position is concrete, depth is
// 0 and key is that exact node; otherwise depth is the number of
// positions from the first wildcard to the end and key is the node at the first wildcard's parent
// (§4.2 Tree.explode — "first None from the left wins").
func (t *Tree) Explode(coord Pattern) (key int64, depth int, err error) {
	if coord == nil {
		return 0, 0, nil
	}

	allConcrete := true
	for _, v := range coord {
		if v == nil {
			allConcrete = false
			break
		}
	}
	if allConcrete {
		concrete := make(types.Coordinate, len(coord))
		for i, v := range coord {
			concrete[i] = *v
		}
		id, ok, err := t.Key(concrete, false)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			return 0, 0, types.NewUnknownCoordinateError(t.Label, concrete)
		}
		return id, 0, nil
	}

	for pos, v := range coord {
		if v != nil {
			continue
		}
		prefix := make(types.Coordinate, pos)
		for i := 0; i < pos; i++ {
			prefix[i] = *coord[i]
		}
		id, ok, err := t.Key(prefix, false)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			return 0, 0, types.NewUnknownCoordinateError(t.Label, prefix)
		}
		return id, len(coord) - pos, nil
	}

	// unreachable: allConcrete handled the no-wildcard case above
	return 0, 0, nil
}

// Glob resolves a head/tail split pattern against optional filter clauses
// and returns the full name of every matching node, the Go analogue of
// Tree.glob: the pattern's concrete prefix resolves to a single node
// (its "head"), and the remaining wildcard/concrete tail together with the
// filters is delegated to the backend.
func (t *Tree) Glob(value Pattern, filters []GlobFilter) ([]types.Coordinate, error) {
	head := value.head()
	tail := value.tail()

	headID, ok, err := t.Key(head, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	ids, err := t.store.Glob(t, headID, len(head), tail, filters)
	if err != nil {
		return nil, err
	}

	names := make([]types.Coordinate, 0, len(ids))
	for _, id := range ids {
		name, err := t.GetName(id)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// Match constructs a filter clause over this dimension (§4.2).
func (t *Tree) Match(depth *int, coords ...types.Coordinate) types.Clause {
	return types.Match(t.Label, depth, coords...)
}

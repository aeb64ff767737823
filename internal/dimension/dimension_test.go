package dimension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mengerdb/menger/internal/event"
	"github.com/mengerdb/menger/internal/types"
)

// fakeStore is an in-memory Store good enough to exercise Tree's cache and
// delegation logic without a real backend.
type fakeStore struct {
	nextID   int64
	parent   map[int64]int64
	name     map[int64]types.Atom
	children map[int64][]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:   RootID + 1,
		parent:   map[int64]int64{},
		name:     map[int64]types.Atom{},
		children: map[int64][]int64{},
	}
}

func (s *fakeStore) GetChildren(dim *Tree, parentID int64) ([]ChildRef, error) {
	var out []ChildRef
	for _, id := range s.children[parentID] {
		out = append(out, ChildRef{Name: s.name[id], ID: id})
	}
	return out, nil
}

func (s *fakeStore) GetParents(dim *Tree) ([]ParentRef, error) {
	var out []ParentRef
	for id, name := range s.name {
		out = append(out, ParentRef{ID: id, Name: name, ParentID: s.parent[id]})
	}
	return out, nil
}

func (s *fakeStore) CreateCoordinate(dim *Tree, name types.Atom, parentID int64) (int64, error) {
	id := s.nextID
	s.nextID++
	s.name[id] = name
	s.parent[id] = parentID
	s.children[parentID] = append(s.children[parentID], id)
	return id, nil
}

func (s *fakeStore) DeleteCoordinate(dim *Tree, id int64) error {
	parentID := s.parent[id]
	s.removeChild(parentID, id)
	delete(s.name, id)
	delete(s.parent, id)
	delete(s.children, id)
	return nil
}

func (s *fakeStore) removeChild(parentID, childID int64) {
	kids := s.children[parentID]
	for i, id := range kids {
		if id == childID {
			s.children[parentID] = append(kids[:i], kids[i+1:]...)
			return
		}
	}
}

func (s *fakeStore) Reparent(dim *Tree, childID, newParentID int64) error {
	oldParent := s.parent[childID]
	s.removeChild(oldParent, childID)
	s.parent[childID] = newParentID
	s.children[newParentID] = append(s.children[newParentID], childID)
	return nil
}

func (s *fakeStore) Merge(dim *Tree, parentID int64) error { return nil }
func (s *fakeStore) Prune(dim *Tree, nodeID int64) error   { return nil }

func (s *fakeStore) Rename(dim *Tree, id int64, newName types.Atom) error {
	s.name[id] = newName
	return nil
}

func (s *fakeStore) Search(dim *Tree, substring string, maxDepth int) ([]SearchResult, error) {
	return nil, nil
}

func (s *fakeStore) Glob(dim *Tree, headKey int64, headLen int, tail Pattern, filters []GlobFilter) ([]int64, error) {
	return s.children[headKey], nil
}

func newTestTree(store Store) *Tree {
	return New("region", []string{"continent", "country", "city"}, types.AtomString, store, event.New())
}

func TestKey_CreatesAncestors(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	coord := types.Coordinate{types.StringAtom("europe"), types.StringAtom("france"), types.StringAtom("paris")}
	id, ok, err := tree.Key(coord, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotZero(t, id)

	parentCoord := coord[:2]
	parentID, ok, err := tree.Key(parentCoord, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, id, parentID)
}

func TestKey_UnknownWithoutCreate(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	coord := types.Coordinate{types.StringAtom("europe")}
	_, ok, err := tree.Key(coord, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKey_EmptyCoordIsRoot(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	id, ok, err := tree.Key(types.Coordinate{}, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, RootID, id)
}

func TestKey_CachesLookups(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	coord := types.Coordinate{types.StringAtom("europe")}
	id1, _, err := tree.Key(coord, true)
	require.NoError(t, err)

	delete(store.name, id1)
	id2, ok, err := tree.Key(coord, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id1, id2)
}

func TestGetName_RoundTrips(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	coord := types.Coordinate{types.StringAtom("europe"), types.StringAtom("france")}
	id, _, err := tree.Key(coord, true)
	require.NoError(t, err)

	name, err := tree.GetName(id)
	require.NoError(t, err)
	assert.Equal(t, coord, name)
}

func TestGetName_UnknownIDYieldsEmptyCoordinate(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	name, err := tree.GetName(999)
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestDrill_SortsChildren(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	for _, n := range []string{"france", "belgium", "germany"} {
		_, _, err := tree.Key(types.Coordinate{types.StringAtom(n)}, true)
		require.NoError(t, err)
	}

	children, err := tree.Drill(types.Coordinate{})
	require.NoError(t, err)
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.String()
	}
	assert.Equal(t, []string{"belgium", "france", "germany"}, names)
}

func TestContains(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	coord := types.Coordinate{types.StringAtom("europe")}
	ok, err := tree.Contains(coord)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = tree.Key(coord, true)
	require.NoError(t, err)

	ok, err = tree.Contains(coord)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReparent_MovesNodeAndClearsCache(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	newParent := types.Coordinate{types.StringAtom("asia")}
	coord := types.Coordinate{types.StringAtom("europe"), types.StringAtom("turkey")}

	_, _, err := tree.Key(coord, true)
	require.NoError(t, err)
	_, _, err = tree.Key(newParent, true)
	require.NoError(t, err)

	require.NoError(t, tree.Reparent(coord, newParent))

	id, ok, err := tree.Key(coord, false)
	require.NoError(t, err)
	assert.False(t, ok)

	movedCoord := types.Coordinate{types.StringAtom("asia"), types.StringAtom("turkey")}
	id, ok, err = tree.Key(movedCoord, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotZero(t, id)
}

func TestReparent_NoopWhenSameParent(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	coord := types.Coordinate{types.StringAtom("europe"), types.StringAtom("france")}
	_, _, err := tree.Key(coord, true)
	require.NoError(t, err)

	err = tree.Reparent(coord, coord[:1])
	assert.NoError(t, err)
}

func TestReparent_UnknownCoordinate(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	err := tree.Reparent(types.Coordinate{types.StringAtom("nowhere")}, types.Coordinate{types.StringAtom("elsewhere")})
	assert.Error(t, err)
}

func TestRename_UpdatesNameAndClearsCache(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	coord := types.Coordinate{types.StringAtom("europe")}
	_, _, err := tree.Key(coord, true)
	require.NoError(t, err)

	require.NoError(t, tree.Rename(coord, types.StringAtom("eu")))

	_, ok, err := tree.Key(coord, false)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = tree.Key(types.Coordinate{types.StringAtom("eu")}, false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDelete_RemovesNode(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	coord := types.Coordinate{types.StringAtom("europe")}
	_, _, err := tree.Key(coord, true)
	require.NoError(t, err)

	require.NoError(t, tree.Delete(coord))

	ok, err := tree.Contains(coord)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete_UnknownIsNoop(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	err := tree.Delete(types.Coordinate{types.StringAtom("nowhere")})
	assert.NoError(t, err)
}

func TestExplode_AllConcrete(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	coord := types.Coordinate{types.StringAtom("europe"), types.StringAtom("france")}
	id, _, err := tree.Key(coord, true)
	require.NoError(t, err)

	europe := types.StringAtom("europe")
	france := types.StringAtom("france")
	key, depth, err := tree.Explode(Pattern{&europe, &france})
	require.NoError(t, err)
	assert.Equal(t, id, key)
	assert.Equal(t, 0, depth)
}

func TestExplode_WildcardTail(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	coord := types.Coordinate{types.StringAtom("europe")}
	id, _, err := tree.Key(coord, true)
	require.NoError(t, err)

	europe := types.StringAtom("europe")
	key, depth, err := tree.Explode(Pattern{&europe, nil, nil})
	require.NoError(t, err)
	assert.Equal(t, id, key)
	assert.Equal(t, 2, depth)
}

func TestExplode_UnknownPrefix(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	nowhere := types.StringAtom("nowhere")
	_, _, err := tree.Explode(Pattern{&nowhere, nil})
	assert.Error(t, err)
}

func TestExplode_Nil(t *testing.T) {
	store := newFakeStore()
	tree := newTestTree(store)

	key, depth, err := tree.Explode(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), key)
	assert.Equal(t, 0, depth)
}

func TestVersion_MaxIsGreatestChild(t *testing.T) {
	store := newFakeStore()
	bus := event.New()
	v, err := NewVersion("version", types.AtomString, store, bus)
	require.NoError(t, err)

	for _, n := range []string{"v1", "v3", "v2"} {
		_, _, err := v.Key(types.Coordinate{types.StringAtom(n)}, true)
		require.NoError(t, err)
	}

	last, err := v.LastCoord()
	require.NoError(t, err)
	assert.Equal(t, types.Coordinate{types.StringAtom("v3")}, last)
}

func TestVersion_SpecialTagKeepsDeclaredDepth(t *testing.T) {
	store := newFakeStore()
	bus := event.New()
	tree := New("version", []string{"major", "minor"}, types.AtomString, store, bus)
	tree.Special = "version"
	assert.Equal(t, 2, tree.Depth)
}

func TestClearCache_InvalidatesOnTrigger(t *testing.T) {
	store := newFakeStore()
	bus := event.New()
	tree := newTestTree2(store, bus)

	coord := types.Coordinate{types.StringAtom("europe")}
	id1, _, err := tree.Key(coord, true)
	require.NoError(t, err)

	delete(store.name, id1)
	store.parent[id1] = 0

	bus.Trigger(event.ClearCache)

	_, ok, err := tree.Key(coord, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func newTestTree2(store Store, bus *event.Bus) *Tree {
	return New("region", []string{"continent", "country", "city"}, types.AtomString, store, bus)
}

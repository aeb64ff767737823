package treeview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mengerdb/menger/internal/dimension"
	"github.com/mengerdb/menger/internal/event"
	"github.com/mengerdb/menger/internal/types"
)

// fakeStore is a minimal in-memory dimension.Store, enough to exercise
// Render's tree walk without a real backend (mirrors internal/dimension's
// own test fixture of the same shape).
type fakeStore struct {
	nextID   int64
	parent   map[int64]int64
	name     map[int64]types.Atom
	children map[int64][]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:   dimension.RootID + 1,
		parent:   map[int64]int64{},
		name:     map[int64]types.Atom{},
		children: map[int64][]int64{},
	}
}

func (s *fakeStore) GetChildren(dim *dimension.Tree, parentID int64) ([]dimension.ChildRef, error) {
	var out []dimension.ChildRef
	for _, id := range s.children[parentID] {
		out = append(out, dimension.ChildRef{Name: s.name[id], ID: id})
	}
	return out, nil
}

func (s *fakeStore) GetParents(dim *dimension.Tree) ([]dimension.ParentRef, error) {
	var out []dimension.ParentRef
	for id, name := range s.name {
		out = append(out, dimension.ParentRef{ID: id, Name: name, ParentID: s.parent[id]})
	}
	return out, nil
}

func (s *fakeStore) CreateCoordinate(dim *dimension.Tree, name types.Atom, parentID int64) (int64, error) {
	id := s.nextID
	s.nextID++
	s.name[id] = name
	s.parent[id] = parentID
	s.children[parentID] = append(s.children[parentID], id)
	return id, nil
}

func (s *fakeStore) DeleteCoordinate(dim *dimension.Tree, id int64) error { return nil }
func (s *fakeStore) Reparent(dim *dimension.Tree, childID, newParentID int64) error {
	return nil
}
func (s *fakeStore) Merge(dim *dimension.Tree, parentID int64) error { return nil }
func (s *fakeStore) Prune(dim *dimension.Tree, nodeID int64) error   { return nil }
func (s *fakeStore) Rename(dim *dimension.Tree, id int64, newName types.Atom) error {
	return nil
}
func (s *fakeStore) Search(dim *dimension.Tree, substring string, maxDepth int) ([]dimension.SearchResult, error) {
	return nil, nil
}
func (s *fakeStore) Glob(dim *dimension.Tree, headKey int64, headLen int, tail dimension.Pattern, filters []dimension.GlobFilter) ([]int64, error) {
	return nil, nil
}

func newTestTree() *dimension.Tree {
	store := newFakeStore()
	tree := dimension.New("region", []string{"country", "city"}, types.AtomString, store, event.New())
	must := func(id int64, ok bool, err error) int64 {
		if err != nil {
			panic(err)
		}
		return id
	}
	must(tree.Key(types.Coordinate{types.StringAtom("US")}, true))
	must(tree.Key(types.Coordinate{types.StringAtom("US"), types.StringAtom("NYC")}, true))
	must(tree.Key(types.Coordinate{types.StringAtom("US"), types.StringAtom("LA")}, true))
	must(tree.Key(types.Coordinate{types.StringAtom("FR")}, true))
	return tree
}

func TestRender_TopLevel(t *testing.T) {
	tree := newTestTree()
	cfg := &Config{UseASCII: true, Color: false}

	out, err := Render(tree, types.Coordinate{}, 1, cfg, nil)
	require.NoError(t, err)
	require.Contains(t, out, "region\n")
	require.Contains(t, out, "+-- FR")
	require.Contains(t, out, "\\-- US")
}

func TestRender_NestedDepth(t *testing.T) {
	tree := newTestTree()
	cfg := &Config{UseASCII: true, Color: false}

	out, err := Render(tree, types.Coordinate{types.StringAtom("US")}, 1, cfg, nil)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Equal(t, "US", lines[0])
	require.Len(t, lines, 3)
}

func TestRender_Annotate(t *testing.T) {
	tree := newTestTree()
	cfg := &Config{UseASCII: true, Color: false, AnnotateWidth: 20}

	out, err := Render(tree, types.Coordinate{}, 1, cfg, func(coord types.Coordinate) string {
		if len(coord) == 0 {
			return ""
		}
		return "*"
	})
	require.NoError(t, err)
	require.Contains(t, out, "FR")
	require.Contains(t, out, "*")
}

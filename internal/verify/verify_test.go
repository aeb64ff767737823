package verify

import (
	"context"
	"testing"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/stretchr/testify/require"

	"github.com/mengerdb/menger/internal/backend"
	"github.com/mengerdb/menger/internal/config"
	"github.com/mengerdb/menger/internal/dimension"
	"github.com/mengerdb/menger/internal/logger"
	"github.com/mengerdb/menger/internal/schema"
	"github.com/mengerdb/menger/internal/space"
	"github.com/mengerdb/menger/internal/types"
)

func buildTestSpace(t *testing.T) (*backend.Session, *space.Space, map[string]*dimension.Tree) {
	t.Helper()

	mgr, err := backend.Open(context.Background(), "sqlite://:memory:", false, logger.NewDefault())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	store := mgr.NewSession(false)

	dims := orderedmap.NewOrderedMap[string, config.DimensionConfig]()
	dims.Set("region", config.DimensionConfig{Type: "string", Depth: 1, Levels: []string{"country"}})

	measures := orderedmap.NewOrderedMap[string, config.MeasureConfig]()
	measures.Set("revenue", config.MeasureConfig{Kind: "sum", ValueType: "float"})

	spaces := orderedmap.NewOrderedMap[string, config.SpaceConfig]()
	spaces.Set("sales", config.SpaceConfig{Dimensions: dims, Measures: measures})

	builder := schema.NewBuilder(&config.SchemaConfig{Spaces: spaces}, store)
	spacesByName, dimsByName, err := builder.Build()
	require.NoError(t, err)

	return store, spacesByName["sales"], dimsByName
}

func TestVerify_CleanStorePasses(t *testing.T) {
	store, sp, dims := buildTestSpace(t)

	_, err := sp.Load([]space.Point{
		{
			Coords:   map[string]types.Coordinate{"region": {types.StringAtom("US")}},
			Measures: map[string]float64{"revenue": 42},
		},
	}, nil, types.LoadDefault)
	require.NoError(t, err)

	v := New(store, MethodFull, logger.NewDefault())
	stats, err := v.Verify(dims, map[string]*space.Space{"sales": sp})
	require.NoError(t, err)
	require.Equal(t, 0, stats.ChecksFailed)
	require.True(t, stats.ChecksRun > 0)
}

func TestVerify_SkipMethodRunsNothing(t *testing.T) {
	store, sp, dims := buildTestSpace(t)

	v := New(store, MethodSkip, logger.NewDefault())
	stats, err := v.Verify(dims, map[string]*space.Space{"sales": sp})
	require.NoError(t, err)
	require.Equal(t, 0, stats.ChecksRun)
}

package schema

import (
	"context"
	"testing"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/stretchr/testify/require"

	"github.com/mengerdb/menger/internal/backend"
	"github.com/mengerdb/menger/internal/config"
	"github.com/mengerdb/menger/internal/logger"
)

func openTestSession(t *testing.T) *backend.Session {
	t.Helper()
	mgr, err := backend.Open(context.Background(), "sqlite://:memory:", false, logger.NewDefault())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr.NewSession(false)
}

func sampleSchema() *config.SchemaConfig {
	dims := orderedmap.NewOrderedMap[string, config.DimensionConfig]()
	dims.Set("region", config.DimensionConfig{Type: "string", Depth: 2, Levels: []string{"country", "city"}})

	measures := orderedmap.NewOrderedMap[string, config.MeasureConfig]()
	measures.Set("revenue", config.MeasureConfig{Kind: "sum", ValueType: "float"})
	measures.Set("units", config.MeasureConfig{Kind: "sum", ValueType: "int"})
	measures.Set("avg_order", config.MeasureConfig{Kind: "average", Args: []string{"revenue", "units"}})

	spaces := orderedmap.NewOrderedMap[string, config.SpaceConfig]()
	spaces.Set("sales", config.SpaceConfig{Dimensions: dims, Measures: measures})

	return &config.SchemaConfig{Spaces: spaces}
}

func TestBuilder_Build(t *testing.T) {
	store := openTestSession(t)
	builder := NewBuilder(sampleSchema(), store)

	spaces, dims, err := builder.Build()
	require.NoError(t, err)
	require.Len(t, spaces, 1)
	require.Len(t, dims, 1)

	sp, ok := spaces["sales"]
	require.True(t, ok)
	require.Equal(t, "sales", sp.Name)

	dim, ok := sp.Dimensions.Get("region")
	require.True(t, ok)
	require.Equal(t, 2, dim.Depth)

	_, ok = sp.Measures.Get("avg_order")
	require.True(t, ok)
}

func TestBuilder_SharesDimensionAcrossSpaces(t *testing.T) {
	store := openTestSession(t)

	dims := orderedmap.NewOrderedMap[string, config.DimensionConfig]()
	dims.Set("region", config.DimensionConfig{Type: "string", Depth: 1, Levels: []string{"country"}})

	spaceA := config.SpaceConfig{Dimensions: dims, Measures: orderedmap.NewOrderedMap[string, config.MeasureConfig]()}
	spaceB := config.SpaceConfig{Dimensions: dims, Measures: orderedmap.NewOrderedMap[string, config.MeasureConfig]()}

	spaces := orderedmap.NewOrderedMap[string, config.SpaceConfig]()
	spaces.Set("a", spaceA)
	spaces.Set("b", spaceB)

	builder := NewBuilder(&config.SchemaConfig{Spaces: spaces}, store)
	result, dimSet, err := builder.Build()
	require.NoError(t, err)
	require.Len(t, dimSet, 1)

	dimA, _ := result["a"].Dimensions.Get("region")
	dimB, _ := result["b"].Dimensions.Get("region")
	require.Same(t, dimA, dimB)
}

func TestBuilder_UnknownMeasureKind(t *testing.T) {
	store := openTestSession(t)

	dims := orderedmap.NewOrderedMap[string, config.DimensionConfig]()
	measures := orderedmap.NewOrderedMap[string, config.MeasureConfig]()
	measures.Set("bogus", config.MeasureConfig{Kind: "median"})

	spaces := orderedmap.NewOrderedMap[string, config.SpaceConfig]()
	spaces.Set("s", config.SpaceConfig{Dimensions: dims, Measures: measures})

	builder := NewBuilder(&config.SchemaConfig{Spaces: spaces}, store)
	_, _, err := builder.Build()
	require.Error(t, err)
}

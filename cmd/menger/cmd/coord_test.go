package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mengerdb/menger/internal/dimension"
	"github.com/mengerdb/menger/internal/types"
)

func stringDim() *dimension.Tree {
	return dimension.New("region", []string{"country", "city"}, types.AtomString, nil, nil)
}

func intDim() *dimension.Tree {
	return dimension.New("year", []string{"year"}, types.AtomInt, nil, nil)
}

func TestParseCoordinate_String(t *testing.T) {
	coord, err := parseCoordinate(stringDim(), "US/NYC")
	require.NoError(t, err)
	require.Equal(t, types.Coordinate{types.StringAtom("US"), types.StringAtom("NYC")}, coord)
}

func TestParseCoordinate_Empty(t *testing.T) {
	coord, err := parseCoordinate(stringDim(), "")
	require.NoError(t, err)
	require.Empty(t, coord)
}

func TestParseCoordinate_Int(t *testing.T) {
	coord, err := parseCoordinate(intDim(), "2024")
	require.NoError(t, err)
	require.Equal(t, types.Coordinate{types.IntAtom(2024)}, coord)
}

func TestParseCoordinate_BadInt(t *testing.T) {
	_, err := parseCoordinate(intDim(), "not-a-number")
	require.Error(t, err)
}

func TestParsePattern_Wildcard(t *testing.T) {
	pattern, err := parsePattern(stringDim(), "US/*")
	require.NoError(t, err)
	require.Len(t, pattern, 2)
	require.NotNil(t, pattern[0])
	require.Equal(t, "US", pattern[0].String())
	require.Nil(t, pattern[1])
}

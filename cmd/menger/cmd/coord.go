package cmd

import (
	"strconv"
	"strings"

	"github.com/mengerdb/menger/internal/dimension"
	"github.com/mengerdb/menger/internal/types"
)

// parseCoordinate splits a "/"-separated drill path into a Coordinate of
// dim's scalar type (§6 "drill paths use / as separator").
func parseCoordinate(dim *dimension.Tree, path string) (types.Coordinate, error) {
	if path == "" {
		return types.Coordinate{}, nil
	}
	parts := strings.Split(path, "/")
	coord := make(types.Coordinate, len(parts))
	for i, part := range parts {
		atom, err := parseAtom(dim, part)
		if err != nil {
			return nil, err
		}
		coord[i] = atom
	}
	return coord, nil
}

// parsePattern is parseCoordinate's glob counterpart: a "*" segment
// becomes a wildcard position (§6 "* wildcard").
func parsePattern(dim *dimension.Tree, path string) (dimension.Pattern, error) {
	if path == "" {
		return dimension.Pattern{}, nil
	}
	parts := strings.Split(path, "/")
	pattern := make(dimension.Pattern, len(parts))
	for i, part := range parts {
		if part == "*" {
			pattern[i] = nil
			continue
		}
		atom, err := parseAtom(dim, part)
		if err != nil {
			return nil, err
		}
		pattern[i] = &atom
	}
	return pattern, nil
}

func parseAtom(dim *dimension.Tree, s string) (types.Atom, error) {
	switch dim.ValueType {
	case types.AtomInt:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return types.Atom{}, types.NewUserError("%q is not a valid int atom for dimension %q", s, dim.Label)
		}
		return types.IntAtom(v), nil
	case types.AtomFloat:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return types.Atom{}, types.NewUserError("%q is not a valid float atom for dimension %q", s, dim.Label)
		}
		return types.FloatAtom(v), nil
	default:
		return types.StringAtom(s), nil
	}
}

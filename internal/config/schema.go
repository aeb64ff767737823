package config

import (
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
	"gopkg.in/yaml.v3"
)

// SchemaConfig is the declarative description of every space a store
// serves. It is the Go-native replacement for the original's metaclass
// "schema-as-class" definitions (SPEC_FULL.md, "Schema-as-class").
//
// Spaces, and each space's dimensions and measures, preserve the order
// they were declared in the YAML document: Computed measures form a DAG
// whose topological order is the declaration order (spec.md §3, §4.3
// point 2), and a Go map would silently scramble that.
type SchemaConfig struct {
	Spaces *orderedmap.OrderedMap[string, SpaceConfig]
}

// SpaceConfig describes one space's dimensions and measures.
type SpaceConfig struct {
	Dimensions *orderedmap.OrderedMap[string, DimensionConfig]
	Measures   *orderedmap.OrderedMap[string, MeasureConfig]
}

// DimensionConfig describes one dimension of a space.
type DimensionConfig struct {
	// Type is the scalar type of node names: "string", "int", or "float".
	Type string `yaml:"type"`
	// Depth is the fixed tree depth; ignored (and implied) for Special
	// dimensions.
	Depth int `yaml:"depth"`
	// Levels names each depth, root-exclusive, length == Depth.
	Levels []string `yaml:"levels"`
	// Special selects a built-in variant: "" (none), "date" (depth 3,
	// Year/Month/Day, int atoms), or "version" (depth 1).
	Special string `yaml:"special"`
}

// MeasureConfig describes one measure of a space.
type MeasureConfig struct {
	// Kind is "sum", "average", or "difference".
	Kind string `yaml:"kind"`
	// ValueType applies to Kind=="sum" only: "int" or "float".
	ValueType string `yaml:"value_type"`
	// Args names the measures a Computed measure (average, difference)
	// draws its operands from, in argument order.
	Args []string `yaml:"args"`
}

// UnmarshalYAML decodes the mapping of space name -> space body while
// preserving document order, by walking the raw mapping node instead of
// letting yaml.v3 populate a Go map.
func (s *SchemaConfig) UnmarshalYAML(value *yaml.Node) error {
	var root struct {
		Spaces yaml.Node `yaml:"spaces"`
	}
	if err := value.Decode(&root); err != nil {
		return err
	}
	spaces, err := decodeOrderedSpaces(&root.Spaces)
	if err != nil {
		return err
	}
	s.Spaces = spaces
	return nil
}

func decodeOrderedSpaces(node *yaml.Node) (*orderedmap.OrderedMap[string, SpaceConfig], error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("spaces: expected a mapping, got %v", node.Kind)
	}
	out := orderedmap.NewOrderedMap[string, SpaceConfig]()
	for i := 0; i < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		var name string
		if err := keyNode.Decode(&name); err != nil {
			return nil, fmt.Errorf("spaces: %w", err)
		}
		space, err := decodeSpace(valNode)
		if err != nil {
			return nil, fmt.Errorf("spaces.%s: %w", name, err)
		}
		out.Set(name, space)
	}
	return out, nil
}

func decodeSpace(node *yaml.Node) (SpaceConfig, error) {
	var raw struct {
		Dimensions yaml.Node `yaml:"dimensions"`
		Measures   yaml.Node `yaml:"measures"`
	}
	if err := node.Decode(&raw); err != nil {
		return SpaceConfig{}, err
	}

	dims := orderedmap.NewOrderedMap[string, DimensionConfig]()
	if raw.Dimensions.Kind == yaml.MappingNode {
		for i := 0; i < len(raw.Dimensions.Content); i += 2 {
			var name string
			if err := raw.Dimensions.Content[i].Decode(&name); err != nil {
				return SpaceConfig{}, fmt.Errorf("dimensions: %w", err)
			}
			var dc DimensionConfig
			if err := raw.Dimensions.Content[i+1].Decode(&dc); err != nil {
				return SpaceConfig{}, fmt.Errorf("dimensions.%s: %w", name, err)
			}
			dims.Set(name, dc)
		}
	}

	msrs := orderedmap.NewOrderedMap[string, MeasureConfig]()
	if raw.Measures.Kind == yaml.MappingNode {
		for i := 0; i < len(raw.Measures.Content); i += 2 {
			var name string
			if err := raw.Measures.Content[i].Decode(&name); err != nil {
				return SpaceConfig{}, fmt.Errorf("measures: %w", err)
			}
			var mc MeasureConfig
			if err := raw.Measures.Content[i+1].Decode(&mc); err != nil {
				return SpaceConfig{}, fmt.Errorf("measures.%s: %w", name, err)
			}
			msrs.Set(name, mc)
		}
	}

	return SpaceConfig{Dimensions: dims, Measures: msrs}, nil
}

package config

import (
	"strings"
	"testing"

	"github.com/elliotchance/orderedmap/v2"
)

func TestConfigValidate_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestConfigValidate_BadURIScheme(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.URI = "mysql://localhost/menger"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for mysql:// scheme")
	}
	if !strings.Contains(err.Error(), "store.uri") {
		t.Errorf("expected error to mention store.uri, got %v", err)
	}
}

func TestConfigValidate_BadCacheRatio(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profile.CacheRatio = 1.5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for cache_ratio > 1")
	}
}

func buildSpace(t *testing.T, dims map[string]DimensionConfig, dimOrder []string, msrs map[string]MeasureConfig, msrOrder []string) SpaceConfig {
	t.Helper()
	d := orderedmap.NewOrderedMap[string, DimensionConfig]()
	for _, name := range dimOrder {
		d.Set(name, dims[name])
	}
	m := orderedmap.NewOrderedMap[string, MeasureConfig]()
	for _, name := range msrOrder {
		m.Set(name, msrs[name])
	}
	return SpaceConfig{Dimensions: d, Measures: m}
}

func TestSchemaValidate_Valid(t *testing.T) {
	space := buildSpace(t,
		map[string]DimensionConfig{
			"product": {Type: "string", Depth: 2, Levels: []string{"category", "sku"}},
		},
		[]string{"product"},
		map[string]MeasureConfig{
			"revenue": {Kind: "sum", ValueType: "float"},
			"units":   {Kind: "sum", ValueType: "int"},
			"margin":  {Kind: "difference", Args: []string{"revenue", "units"}},
		},
		[]string{"revenue", "units", "margin"},
	)

	spaces := orderedmap.NewOrderedMap[string, SpaceConfig]()
	spaces.Set("sales", space)
	schema := &SchemaConfig{Spaces: spaces}

	if err := schema.Validate(); err != nil {
		t.Errorf("expected valid schema, got %v", err)
	}
}

func TestSchemaValidate_TwoVersionDimensions(t *testing.T) {
	space := buildSpace(t,
		map[string]DimensionConfig{
			"v1": {Special: "version"},
			"v2": {Special: "version"},
		},
		[]string{"v1", "v2"},
		map[string]MeasureConfig{
			"revenue": {Kind: "sum", ValueType: "float"},
		},
		[]string{"revenue"},
	)

	spaces := orderedmap.NewOrderedMap[string, SpaceConfig]()
	spaces.Set("sales", space)
	schema := &SchemaConfig{Spaces: spaces}

	err := schema.Validate()
	if err == nil {
		t.Fatal("expected error for two version dimensions")
	}
	if !strings.Contains(err.Error(), "at most one version dimension") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestSchemaValidate_UnknownMeasureArg(t *testing.T) {
	space := buildSpace(t,
		map[string]DimensionConfig{
			"product": {Type: "string", Depth: 1, Levels: []string{"sku"}},
		},
		[]string{"product"},
		map[string]MeasureConfig{
			"margin": {Kind: "difference", Args: []string{"revenue", "units"}},
		},
		[]string{"margin"},
	)

	spaces := orderedmap.NewOrderedMap[string, SpaceConfig]()
	spaces.Set("sales", space)
	schema := &SchemaConfig{Spaces: spaces}

	err := schema.Validate()
	if err == nil {
		t.Fatal("expected error for unknown measure args")
	}
	if !strings.Contains(err.Error(), "revenue") {
		t.Errorf("expected error to name the missing arg, got %v", err)
	}
}

func TestSchemaValidate_BadDimensionDepth(t *testing.T) {
	space := buildSpace(t,
		map[string]DimensionConfig{
			"product": {Type: "string", Depth: 0},
		},
		[]string{"product"},
		map[string]MeasureConfig{
			"revenue": {Kind: "sum", ValueType: "float"},
		},
		[]string{"revenue"},
	)

	spaces := orderedmap.NewOrderedMap[string, SpaceConfig]()
	spaces.Set("sales", space)
	schema := &SchemaConfig{Spaces: spaces}

	err := schema.Validate()
	if err == nil {
		t.Fatal("expected error for depth 0 dimension")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "menger.yaml")
	content := `
store:
  uri: sqlite:///tmp/menger.db
  readonly: true
logging:
  level: debug
  format: json
profile:
  cache_ratio: 0.2
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Store.URI != "sqlite:///tmp/menger.db" {
		t.Errorf("unexpected store uri: %q", cfg.Store.URI)
	}
	if !cfg.Store.ReadOnly {
		t.Error("expected readonly true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("unexpected log level: %q", cfg.Logging.Level)
	}
	if cfg.Profile.CacheRatio != 0.2 {
		t.Errorf("unexpected cache ratio: %v", cfg.Profile.CacheRatio)
	}
	// fields left unset in the file should keep DefaultConfig's value
	if cfg.Profile.SyncIntervalSeconds != 1 {
		t.Errorf("expected default sync interval to survive, got %v", cfg.Profile.SyncIntervalSeconds)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/menger.yaml")
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("MENGER_TEST_HOST", "db.internal")

	tests := []struct {
		input    string
		expected string
	}{
		{"postgresql://${MENGER_TEST_HOST}/menger", "postgresql://db.internal/menger"},
		{"postgresql://$MENGER_TEST_HOST/menger", "postgresql://db.internal/menger"},
		{"sqlite:///tmp/menger.db", "sqlite:///tmp/menger.db"},
		{"${MENGER_TEST_UNSET}", "${MENGER_TEST_UNSET}"},
	}

	for _, tt := range tests {
		if got := expandEnvVar(tt.input); got != tt.expected {
			t.Errorf("expandEnvVar(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLoadSchema_PreservesOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	content := `
spaces:
  sales:
    dimensions:
      product:
        type: string
        depth: 2
        levels: [category, sku]
      date:
        special: date
    measures:
      revenue:
        kind: sum
        value_type: float
      units:
        kind: sum
        value_type: int
      margin:
        kind: difference
        args: [revenue, units]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp schema: %v", err)
	}

	schema, err := LoadSchema(path)
	if err != nil {
		t.Fatalf("LoadSchema() error: %v", err)
	}

	if schema.Spaces.Len() != 1 {
		t.Fatalf("expected 1 space, got %d", schema.Spaces.Len())
	}
	space, ok := schema.Spaces.Get("sales")
	if !ok {
		t.Fatal("expected space 'sales'")
	}

	var dimOrder []string
	for el := space.Dimensions.Front(); el != nil; el = el.Next() {
		dimOrder = append(dimOrder, el.Key)
	}
	if len(dimOrder) != 2 || dimOrder[0] != "product" || dimOrder[1] != "date" {
		t.Errorf("dimension order not preserved: %v", dimOrder)
	}

	var msrOrder []string
	for el := space.Measures.Front(); el != nil; el = el.Next() {
		msrOrder = append(msrOrder, el.Key)
	}
	if len(msrOrder) != 3 || msrOrder[2] != "margin" {
		t.Errorf("measure order not preserved: %v", msrOrder)
	}

	dateDim, _ := space.Dimensions.Get("date")
	if dateDim.Special != "date" {
		t.Errorf("expected date dimension special=date, got %q", dateDim.Special)
	}
}

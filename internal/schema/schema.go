// Package schema builds the runtime object graph — dimension.Tree and
// space.Space instances — from a parsed config.SchemaConfig, the Go-native
// replacement for the original's metaclass reflection (spec.md §9,
// "Schema-as-class"). Grounded on goarchive's internal/graph.Builder,
// which does the same job for one job's table-dependency graph: walk a
// config struct once at startup and produce the live objects the rest of
// the program operates on.
package schema

import (
	"fmt"

	"github.com/mengerdb/menger/internal/backend"
	"github.com/mengerdb/menger/internal/config"
	"github.com/mengerdb/menger/internal/dimension"
	"github.com/mengerdb/menger/internal/measure"
	"github.com/mengerdb/menger/internal/space"
	"github.com/mengerdb/menger/internal/types"
)

// Builder constructs spaces and dimensions from a SchemaConfig, registering
// each against store as it goes.
type Builder struct {
	cfg   *config.SchemaConfig
	store *backend.Session

	dims map[string]*dimension.Tree // label -> Tree, shared across spaces that redeclare the same name
}

// NewBuilder constructs a Builder bound to cfg and store.
func NewBuilder(cfg *config.SchemaConfig, store *backend.Session) *Builder {
	return &Builder{cfg: cfg, store: store, dims: map[string]*dimension.Tree{}}
}

// Build walks every space in declaration order, builds (or reuses) its
// dimensions, builds its measures in declaration order, registers the
// space against the store, and returns the resulting spaces and the full
// set of dimensions built (keyed by label, for internal/profile's
// Materialize and internal/verify's per-dimension checks).
func (b *Builder) Build() (map[string]*space.Space, map[string]*dimension.Tree, error) {
	spaces := map[string]*space.Space{}

	for el := b.cfg.Spaces.Front(); el != nil; el = el.Next() {
		spaceName, spaceCfg := el.Key, el.Value
		sp := space.New(spaceName, b.store)

		for dimEl := spaceCfg.Dimensions.Front(); dimEl != nil; dimEl = dimEl.Next() {
			dim, err := b.buildDimension(dimEl.Key, dimEl.Value)
			if err != nil {
				return nil, nil, fmt.Errorf("space %q: dimension %q: %w", spaceName, dimEl.Key, err)
			}
			sp.AddDimension(dim)
		}

		for msrEl := spaceCfg.Measures.Front(); msrEl != nil; msrEl = msrEl.Next() {
			m, err := buildMeasure(msrEl.Key, msrEl.Value)
			if err != nil {
				return nil, nil, fmt.Errorf("space %q: measure %q: %w", spaceName, msrEl.Key, err)
			}
			sp.AddMeasure(m)
		}

		if err := sp.Register(); err != nil {
			return nil, nil, fmt.Errorf("space %q: %w", spaceName, err)
		}
		spaces[spaceName] = sp
	}

	return spaces, b.dims, nil
}

// buildDimension returns the already-built Tree for name if a previous
// space declared it first (§6 "a dimension can back multiple spaces"),
// otherwise constructs and registers a new one from cfg.
func (b *Builder) buildDimension(name string, cfg config.DimensionConfig) (*dimension.Tree, error) {
	if dim, ok := b.dims[name]; ok {
		return dim, nil
	}

	valueType, err := atomType(cfg.Type)
	if err != nil {
		return nil, err
	}

	var dim *dimension.Tree
	switch cfg.Special {
	case "":
		dim = dimension.New(name, cfg.Levels, valueType, b.store, b.store.Bus())
	case "date":
		dim = dimension.NewDate(name, b.store, b.store.Bus())
	case "version":
		dim, err = dimension.NewVersion(name, valueType, b.store, b.store.Bus())
		if err != nil {
			return nil, err
		}
	default:
		return nil, types.NewSchemaError("dimension %q: unknown special kind %q", name, cfg.Special)
	}

	if err := b.store.RegisterDimension(dim); err != nil {
		return nil, err
	}
	b.dims[name] = dim
	return dim, nil
}

func atomType(t string) (types.AtomType, error) {
	switch t {
	case "", "string":
		return types.AtomString, nil
	case "int":
		return types.AtomInt, nil
	case "float":
		return types.AtomFloat, nil
	default:
		return 0, types.NewSchemaError("unsupported scalar type %q", t)
	}
}

func buildMeasure(name string, cfg config.MeasureConfig) (measure.Measure, error) {
	switch cfg.Kind {
	case "sum":
		valueType := measure.ValueFloat
		if cfg.ValueType == "int" {
			valueType = measure.ValueInt
		}
		return measure.NewSum(name, valueType), nil
	case "average":
		if len(cfg.Args) != 2 {
			return nil, types.NewSchemaError("measure %q: average requires exactly 2 args (total, count), got %d", name, len(cfg.Args))
		}
		return measure.NewAverage(name, cfg.Args[0], cfg.Args[1]), nil
	case "difference":
		if len(cfg.Args) != 2 {
			return nil, types.NewSchemaError("measure %q: difference requires exactly 2 args (minuend, subtrahend), got %d", name, len(cfg.Args))
		}
		return measure.NewDifference(name, cfg.Args[0], cfg.Args[1]), nil
	default:
		return nil, types.NewSchemaError("measure %q: unknown kind %q", name, cfg.Kind)
	}
}

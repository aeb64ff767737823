package space

import (
	"fmt"

	"github.com/mengerdb/menger/internal/backend"
	"github.com/mengerdb/menger/internal/depgraph"
	"github.com/mengerdb/menger/internal/dimension"
	"github.com/mengerdb/menger/internal/measure"
	"github.com/mengerdb/menger/internal/types"
)

// Cell is one column of one dice output row: either a formatted dimension
// path, a literal coordinate, or a numeric (or pre-formatted) measure
// value.
type Cell struct {
	Path  types.Coordinate
	Text  string
	Value float64
	IsNum bool
}

// Signature is the query shape used by internal/profile to pick a cache:
// the effective depth diced at, per dimension (§4.4).
type Signature map[string]int

// Plan is everything Dice needs to execute once select items are resolved
// against this space's schema — kept separate from Dice itself so
// internal/profile can compute a Signature without running the query.
type Plan struct {
	items        []types.SelectItem
	filters      types.Filter
	dimFmt       types.DimFormat
	msrFmt       bool
	extraMeasures []string   // stored measures pulled in only to feed computed measures
	computedOrder []string   // computed measures in dependency-resolved declaration order
}

// BuildPlan classifies a select list and resolves computed-measure
// dependencies (§4.3 steps 1-2), without touching the store. Exposed so
// internal/profile can compute a Signature ahead of executing Dice.
func (s *Space) BuildPlan(items []types.SelectItem, filters types.Filter) (*Plan, error) {
	selected := map[string]bool{}
	for _, it := range items {
		if it.Kind == types.SelectSum || it.Kind == types.SelectComputed {
			selected[it.Name] = true
		}
	}

	// Build the dependency subgraph reachable from the select list's
	// computed measures: an edge dependency -> dependent lets
	// depgraph.TopologicalSort (the same Kahn's-algorithm pass goarchive
	// used to order tables by foreign key) double as both cycle detection
	// and declaration-order-independent evaluation ordering here.
	g := depgraph.New()
	extra := map[string]bool{}
	var walk func(name string) error
	seen := map[string]bool{}
	walk = func(name string) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		g.AddNode(name)
		m, ok := s.Measures.Get(name)
		if !ok {
			return fmt.Errorf("dice: unknown measure %q", name)
		}
		computed, ok := m.(measure.Computed)
		if !ok {
			return nil
		}
		for _, arg := range computed.Args() {
			argMeasure, ok := s.Measures.Get(arg)
			if !ok {
				return fmt.Errorf("dice: computed measure %q references unknown arg %q", name, arg)
			}
			if _, isComputed := argMeasure.(measure.Computed); isComputed {
				g.AddEdge(arg, name)
				if err := walk(arg); err != nil {
					return err
				}
			} else if !selected[arg] {
				extra[arg] = true
			}
		}
		return nil
	}

	for _, it := range items {
		if it.Kind == types.SelectComputed {
			if err := walk(it.Name); err != nil {
				return nil, err
			}
		}
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, types.NewSchemaError("dice: computed measure dependency cycle: %v", err)
	}

	var extraMeasures []string
	for el := s.Measures.Front(); el != nil; el = el.Next() {
		if extra[el.Key] {
			extraMeasures = append(extraMeasures, el.Key)
		}
	}

	return &Plan{items: items, filters: filters, extraMeasures: extraMeasures, computedOrder: order}, nil
}

// WithFormat sets the dimension/measure output formatting for this plan.
func (p *Plan) WithFormat(dimFmt types.DimFormat, msrFmt bool) *Plan {
	p.dimFmt = dimFmt
	p.msrFmt = msrFmt
	return p
}

// Signature computes the profile-routing signature of a plan: for every
// dimension of the space, the effective depth diced at (0 if not
// projected), per §4.4.
func (s *Space) Signature(p *Plan) Signature {
	sig := make(Signature)
	for el := s.Dimensions.Front(); el != nil; el = el.Next() {
		sig[el.Key] = 0
	}
	for _, it := range p.items {
		switch it.Kind {
		case types.SelectDimension:
			if dim, ok := s.Dimensions.Get(it.Name); ok {
				sig[it.Name] = dim.Depth
			}
		case types.SelectLevel:
			sig[it.Name] = it.Depth
		}
	}
	return sig
}

// withVersionDefault appends a filter clause pinning the space's Version
// dimension to its last coordinate, when the space has one and the query
// neither projects nor filters it (§4.3 step 3).
func (s *Space) withVersionDefault(items []types.SelectItem, filters types.Filter) (types.Filter, error) {
	dim, ok := s.VersionDimension()
	if !ok {
		return filters, nil
	}
	for _, it := range items {
		if it.Name == dim.Label {
			return filters, nil
		}
	}
	for _, f := range filters {
		if f.Dimension == dim.Label {
			return filters, nil
		}
	}
	last, err := dim.LastCoord()
	if err != nil {
		return nil, err
	}
	if last == nil {
		return filters, nil
	}
	return append(append(types.Filter{}, filters...), dim.Match(nil, last)), nil
}

// Dice executes a query plan against the store and streams result rows
// (§4.3 "dice" steps 3-8). Profile routing (step 4) happens one layer up,
// in internal/profile, which may substitute a narrower ghost space before
// calling Dice.
func (s *Space) Dice(items []types.SelectItem, filters types.Filter, dimFmt types.DimFormat, msrFmt bool) ([][]Cell, error) {
	plan, err := s.BuildPlan(items, filters)
	if err != nil {
		return nil, err
	}
	plan.WithFormat(dimFmt, msrFmt)

	filters, err = s.withVersionDefault(items, filters)
	if err != nil {
		return nil, err
	}

	var groups []backend.DiceGroup
	var groupDimNames []string
	for _, it := range items {
		if it.Kind != types.SelectDimension && it.Kind != types.SelectLevel {
			continue
		}
		dim, ok := s.Dimensions.Get(it.Name)
		if !ok {
			return nil, fmt.Errorf("dice: unknown dimension %q", it.Name)
		}
		depth := dim.Depth
		if it.Kind == types.SelectLevel {
			depth = it.Depth
		}
		pattern := make(dimension.Pattern, depth)
		key, resolvedDepth, err := dim.Explode(pattern)
		if err != nil {
			return nil, err
		}
		groups = append(groups, backend.DiceGroup{DimCol: dim.Label, Closure: backend.ClosureTableName(dim), Key: key, Depth: resolvedDepth})
		groupDimNames = append(groupDimNames, dim.Label)
	}

	var clauses []backend.FilterClause
	for _, clause := range filters {
		dim, ok := s.Dimensions.Get(clause.Dimension)
		if !ok {
			return nil, fmt.Errorf("dice: filter on unknown dimension %q", clause.Dimension)
		}
		var branches []backend.FilterBranch
		for _, coord := range clause.Coords {
			pattern := make(dimension.Pattern, len(coord))
			for i := range coord {
				a := coord[i]
				pattern[i] = &a
			}
			if clause.Depth != nil {
				pattern = append(pattern, make(dimension.Pattern, *clause.Depth)...)
			}
			key, depth, err := dim.Explode(pattern)
			if err != nil {
				return nil, err
			}
			branches = append(branches, backend.FilterBranch{Key: key, Depth: depth})
		}
		clauses = append(clauses, backend.FilterClause{DimCol: dim.Label, Closure: backend.ClosureTableName(dim), Branches: branches})
	}

	measureCols := append([]string{}, plan.extraMeasures...)
	for _, it := range items {
		if it.Kind == types.SelectSum {
			measureCols = append(measureCols, it.Name)
		}
	}

	rows, err := s.store.Dice(s.Name, groups, measureCols, nil, clauses)
	if err != nil {
		return nil, err
	}

	out := make([][]Cell, 0, len(rows))
	for _, row := range rows {
		cells, err := s.renderRow(items, groupDimNames, row, measureCols, plan)
		if err != nil {
			return nil, err
		}
		out = append(out, cells)
	}
	return out, nil
}

func (s *Space) renderRow(items []types.SelectItem, groupDimNames []string, row backend.DiceRow, measureCols []string, plan *Plan) ([]Cell, error) {
	groupValue := make(map[string]int64, len(groupDimNames))
	for i, name := range groupDimNames {
		groupValue[name] = row.GroupKeys[i]
	}
	measureValue := make(map[string]float64, len(measureCols))
	for i, name := range measureCols {
		measureValue[name] = row.Values[i]
	}

	computed := map[string]float64{}
	for _, name := range plan.computedOrder {
		m, _ := s.Measures.Get(name)
		c := m.(measure.Computed)
		args := make([]float64, len(c.Args()))
		for i, arg := range c.Args() {
			if v, ok := measureValue[arg]; ok {
				args[i] = v
			} else {
				args[i] = computed[arg]
			}
		}
		result, err := c.Compute(args...)
		if err != nil {
			return nil, err
		}
		computed[name] = result
	}

	cells := make([]Cell, 0, len(items))
	for _, it := range items {
		switch it.Kind {
		case types.SelectDimension, types.SelectLevel:
			dim, _ := s.Dimensions.Get(it.Name)
			id := groupValue[it.Name]
			name, err := dim.GetName(id)
			if err != nil {
				return nil, err
			}
			cells = append(cells, formatDimCell(name, plan.dimFmt))
		case types.SelectCoordinate:
			cells = append(cells, Cell{Path: it.Value})
		case types.SelectSum:
			val := measureValue[it.Name]
			cells = append(cells, formatMeasureCell(s, it.Name, val, plan.msrFmt))
		case types.SelectComputed:
			val := computed[it.Name]
			cells = append(cells, formatMeasureCell(s, it.Name, val, plan.msrFmt))
		}
	}
	return cells, nil
}

func formatDimCell(name types.Coordinate, fmtKind types.DimFormat) Cell {
	switch fmtKind {
	case types.DimFormatFull:
		return Cell{Text: joinPath(name)}
	case types.DimFormatLeaf:
		if len(name) == 0 {
			return Cell{Text: ""}
		}
		return Cell{Text: name[len(name)-1].String()}
	default:
		return Cell{Path: name}
	}
}

func joinPath(c types.Coordinate) string {
	s := ""
	for i, a := range c {
		if i > 0 {
			s += "/"
		}
		s += a.String()
	}
	return s
}

func formatMeasureCell(s *Space, name string, val float64, msrFmt bool) Cell {
	if msrFmt {
		if m, ok := s.Measures.Get(name); ok {
			if sum, ok := m.(*measure.Sum); ok {
				return Cell{Text: sum.Format(val)}
			}
		}
	}
	return Cell{Value: val, IsNum: true}
}

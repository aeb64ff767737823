package backend

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mengerdb/menger/internal/dimension"
	"github.com/mengerdb/menger/internal/measure"
	"github.com/mengerdb/menger/internal/sqlutil"
	"github.com/mengerdb/menger/internal/types"
)

// SpaceSchema names a space's fact table and the dimensions/measures that
// back its columns, the information RegisterSpace and the fact-table
// operations below need without importing internal/space (which in turn
// imports this package).
type SpaceSchema struct {
	Name       string
	Dimensions []*dimension.Tree
	Measures   []measure.Measure
}

func factTable(name string) string { return strings.ToLower(name) }

// RegisterSpace creates a space's fact table (one integer FK column per
// dimension, one numeric column per stored measure), a unique index over
// every dimension column, and one index per dimension column, grounded on
// SqliteBackend.register's space-table DDL (§4.1, §4.3).
func (s *Session) RegisterSpace(schema SpaceSchema) error {
	table := s.q(factTable(schema.Name))

	var cols []string
	for _, dim := range schema.Dimensions {
		cols = append(cols, fmt.Sprintf(`%s INTEGER REFERENCES %s(id) NOT NULL`, s.q(dim.Label), s.q(dimTable(dim))))
	}
	for _, m := range schema.Measures {
		sum, ok := m.(*measure.Sum)
		if !ok {
			continue // computed measures have no stored column
		}
		cols = append(cols, fmt.Sprintf(`%s %s NOT NULL`, s.q(sum.Name()), sqlTypeFor(valueTypeOf(sum), s.dialect)))
	}

	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s)`, table, strings.Join(cols, ", "))
	if _, err := s.db.Exec(create); err != nil {
		return types.NewBackendError("register space "+schema.Name, err)
	}

	var dimCols []string
	for _, dim := range schema.Dimensions {
		dimCols = append(dimCols, s.q(dim.Label))
	}
	uniqueIdx := fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)`,
		s.q(factTable(schema.Name)+"_dims_idx"), table, strings.Join(dimCols, ", "))
	if _, err := s.db.Exec(uniqueIdx); err != nil {
		return types.NewBackendError("register space unique index "+schema.Name, err)
	}

	for _, dim := range schema.Dimensions {
		idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`,
			s.q(factTable(schema.Name)+"_"+strings.ToLower(dim.Label)+"_idx"), table, s.q(dim.Label))
		if _, err := s.db.Exec(idx); err != nil {
			return types.NewBackendError("register space dimension index "+schema.Name, err)
		}
	}

	s.recordFactRefs(schema)
	return nil
}

func (s *Session) recordFactRefs(schema SpaceSchema) {
	var allDimCols, measureCols []string
	for _, dim := range schema.Dimensions {
		allDimCols = append(allDimCols, dim.Label)
	}
	for _, m := range schema.Measures {
		if sum, ok := m.(*measure.Sum); ok {
			measureCols = append(measureCols, sum.Name())
		}
	}

	s.factRefsMu.Lock()
	defer s.factRefsMu.Unlock()
	if s.factRefs == nil {
		s.factRefs = make(map[string][]factRef)
	}
	for _, dim := range schema.Dimensions {
		s.factRefs[dim.Label] = append(s.factRefs[dim.Label], factRef{
			table:       factTable(schema.Name),
			col:         dim.Label,
			dimCols:     allDimCols,
			measureCols: measureCols,
		})
	}
}

// relocateFactRows re-homes every fact row of ref.table that references
// loser under ref.col to reference survivor instead, using increment
// semantics when a row already exists for survivor's coordinate tuple
// (§4.1 merge: "re-import all fact rows ... using increment load
// semantics, then delete the larger's fact rows").
func (s *Session) relocateFactRows(ref factRef, survivor, loser int64) error {
	table := s.q(ref.table)
	var selectCols []string
	for _, c := range ref.dimCols {
		selectCols = append(selectCols, s.q(c))
	}
	for _, c := range ref.measureCols {
		selectCols = append(selectCols, s.q(c))
	}

	stmt := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = %s`, strings.Join(selectCols, ", "), table, s.q(ref.col), s.ph(1))
	rows, err := s.db.Query(stmt, loser)
	if err != nil {
		return types.NewBackendError("merge fact select "+ref.table, err)
	}

	type row struct {
		dimKeys []int64
		vals    []float64
	}
	var losers []row
	for rows.Next() {
		dimKeys := make([]int64, len(ref.dimCols))
		vals := make([]float64, len(ref.measureCols))
		targets := make([]interface{}, 0, len(dimKeys)+len(vals))
		for i := range dimKeys {
			targets = append(targets, &dimKeys[i])
		}
		for i := range vals {
			targets = append(targets, &vals[i])
		}
		if err := rows.Scan(targets...); err != nil {
			rows.Close()
			return types.NewBackendError("merge fact scan "+ref.table, err)
		}
		losers = append(losers, row{dimKeys: dimKeys, vals: vals})
	}
	rows.Close()

	for _, r := range losers {
		newKeys := append([]int64(nil), r.dimKeys...)
		for i, c := range ref.dimCols {
			if c == ref.col {
				newKeys[i] = survivor
			}
		}
		if _, err := s.Load(ref.table, ref.dimCols, newKeys, ref.measureCols, r.vals, true); err != nil {
			return fmt.Errorf("merge fact load %s: %w", ref.table, err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE %s = %s`, table, s.q(ref.col), s.ph(1)), loser); err != nil {
		return types.NewBackendError("merge fact cleanup "+ref.table, err)
	}
	return nil
}

func valueTypeOf(s *measure.Sum) types.AtomType {
	if s.Type == measure.ValueInt {
		return types.AtomInt
	}
	return types.AtomFloat
}

// allZero reports whether every measure value is zero — the condition
// under which a fact row must not persist (§3 "A fact row whose every
// stored measure is zero must not persist").
func allZero(vals []float64) bool {
	for _, v := range vals {
		if v != 0 {
			return false
		}
	}
	return true
}

// Load upserts one fact row keyed by dimKeys (column name -> node ID). If
// increment is true and a row already exists, vals are added to the
// existing values; otherwise the row is replaced outright (§4.3 "load").
// An insert whose values are all zero is skipped, and an update that
// would leave every value zero deletes the row instead (§4.1 "If values
// are all zero, insert is skipped; update with all-zero values deletes
// the row"). It reports whether a row was inserted, changed, or deleted.
func (s *Session) Load(spaceName string, dimCols []string, dimKeys []int64, measureCols []string, vals []float64, increment bool) (bool, error) {
	table := s.q(factTable(spaceName))

	whereParts := make([]string, len(dimCols))
	args := make([]interface{}, len(dimKeys))
	for i, c := range dimCols {
		whereParts[i] = fmt.Sprintf(`%s = %s`, s.q(c), s.ph(i+1))
		args[i] = dimKeys[i]
	}
	where := strings.Join(whereParts, " AND ")

	selectCols := make([]string, len(measureCols))
	for i, c := range measureCols {
		selectCols[i] = s.q(c)
	}
	selectStmt := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, strings.Join(selectCols, ", "), table, where)

	existing := make([]float64, len(measureCols))
	scanTargets := make([]interface{}, len(existing))
	for i := range existing {
		scanTargets[i] = &existing[i]
	}
	err := s.db.QueryRow(selectStmt, args...).Scan(scanTargets...)

	switch {
	case err == sql.ErrNoRows:
		if allZero(vals) {
			return false, nil
		}
		return true, s.insertFact(table, dimCols, dimKeys, measureCols, vals)
	case err != nil:
		return false, types.NewBackendError("load select", err)
	}

	newVals := vals
	if increment {
		newVals = make([]float64, len(vals))
		for i := range vals {
			newVals[i] = existing[i] + vals[i]
		}
	} else {
		same := true
		for i := range vals {
			if existing[i] != vals[i] {
				same = false
				break
			}
		}
		if same {
			return false, nil
		}
	}

	if allZero(newVals) {
		return true, s.deleteFactRow(table, dimCols, dimKeys)
	}
	return true, s.updateFact(table, dimCols, dimKeys, measureCols, newVals)
}

func (s *Session) insertFact(table string, dimCols []string, dimKeys []int64, measureCols []string, vals []float64) error {
	var cols []string
	var placeholders []string
	var args []interface{}
	n := 1
	for i, c := range dimCols {
		cols = append(cols, s.q(c))
		placeholders = append(placeholders, s.ph(n))
		args = append(args, dimKeys[i])
		n++
	}
	for i, c := range measureCols {
		cols = append(cols, s.q(c))
		placeholders = append(placeholders, s.ph(n))
		args = append(args, vals[i])
		n++
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.Exec(stmt, args...); err != nil {
		return types.NewBackendError("load insert", err)
	}
	return nil
}

func (s *Session) updateFact(table string, dimCols []string, dimKeys []int64, measureCols []string, vals []float64) error {
	var setParts []string
	var args []interface{}
	n := 1
	for i, c := range measureCols {
		setParts = append(setParts, fmt.Sprintf(`%s = %s`, s.q(c), s.ph(n)))
		args = append(args, vals[i])
		n++
	}
	var whereParts []string
	for i, c := range dimCols {
		whereParts = append(whereParts, fmt.Sprintf(`%s = %s`, s.q(c), s.ph(n)))
		args = append(args, dimKeys[i])
		n++
	}
	stmt := fmt.Sprintf(`UPDATE %s SET %s WHERE %s`, table, strings.Join(setParts, ", "), strings.Join(whereParts, " AND "))
	if _, err := s.db.Exec(stmt, args...); err != nil {
		return types.NewBackendError("load update", err)
	}
	return nil
}

// Analyze refreshes the query planner's statistics after a load batch,
// matching SqliteBackend.load's trailing `ANALYZE` call.
func (s *Session) Analyze(spaceName string) error {
	if s.dialect == sqlutil.DialectPostgres {
		_, err := s.db.Exec(fmt.Sprintf(`ANALYZE %s`, s.q(factTable(spaceName))))
		return err
	}
	_, err := s.db.Exec(`ANALYZE`)
	return err
}

// DiceGroup is one cube axis of a dice query: aggregate over every fact
// row whose dimCol value descends (in its dimension's closure table) from
// key, depth edges below it.
type DiceGroup struct {
	DimCol  string
	Closure string
	Key     int64
	Depth   int
}

// DiceRow is one result row: one resolved group key per requested
// DiceGroup (in the same order), followed by one aggregated value per
// requested measure column.
type DiceRow struct {
	GroupKeys []int64
	Values    []float64
}

// FilterBranch is one allowed (key, depth) descent for a dimension-filter
// clause's closure test.
type FilterBranch struct {
	Key   int64
	Depth int
}

// FilterClause restricts the fact table to rows whose DimCol value
// descends from any of Branches (OR within a clause; multiple clauses
// passed to Dice AND together), without contributing to the select list
// or GROUP BY — the Go analogue of a query filter on an undiced dimension
// (§4.3 step 5 "Apply filters").
type FilterClause struct {
	DimCol  string
	Closure string
	Branches []FilterBranch
}

// Dice aggregates stored measures across the fact table grouped by each
// DiceGroup's closure-table ancestor, the Go analogue of
// SqliteBackend.dice/child_join (§4.3 "dice"): for each group axis, facts
// are joined to the candidate descendant nodes of `key` sitting exactly
// `depth` edges below it, and grouped by that candidate.
func (s *Session) Dice(spaceName string, groups []DiceGroup, measureCols []string, filters []FactFilter, clauses []FilterClause) ([]DiceRow, error) {
	table := s.q(factTable(spaceName))

	var selectCols, joins, groupBy []string
	var args []interface{}
	argN := 1

	for _, g := range groups {
		closure := s.q(g.Closure)
		groupAlias := fmt.Sprintf("%s_grp", g.Closure)
		joins = append(joins, fmt.Sprintf(
			`JOIN %s AS %s ON (%s.child = %s.%s AND %s.parent IN (SELECT child FROM %s WHERE parent = %s AND depth = %s))`,
			closure, groupAlias, groupAlias, table, s.q(g.DimCol), groupAlias, closure, s.ph(argN), s.ph(argN+1)))
		args = append(args, g.Key, g.Depth)
		argN += 2

		selectCols = append(selectCols, fmt.Sprintf("%s.parent", groupAlias))
		groupBy = append(groupBy, fmt.Sprintf("%s.parent", groupAlias))
	}

	for _, m := range measureCols {
		selectCols = append(selectCols, fmt.Sprintf("COALESCE(SUM(%s), 0)", s.q(m)))
	}

	stmt := fmt.Sprintf(`SELECT %s FROM %s`, strings.Join(selectCols, ", "), table)
	if len(joins) > 0 {
		stmt += " " + strings.Join(joins, " ")
	}

	var whereParts []string
	for _, clause := range clauses {
		if len(clause.Branches) == 0 {
			continue
		}
		closure := s.q(clause.Closure)
		var branchParts []string
		for _, b := range clause.Branches {
			branchParts = append(branchParts, fmt.Sprintf(
				`%s IN (SELECT child FROM %s WHERE parent = %s AND depth = %s)`,
				s.q(clause.DimCol), closure, s.ph(argN), s.ph(argN+1)))
			args = append(args, b.Key, b.Depth)
			argN += 2
		}
		whereParts = append(whereParts, "("+strings.Join(branchParts, " OR ")+")")
	}
	for _, f := range filters {
		whereParts = append(whereParts, fmt.Sprintf(`%s = %s`, s.q(f.Col), s.ph(argN)))
		args = append(args, f.Value)
		argN++
	}
	if len(whereParts) > 0 {
		stmt += " WHERE " + strings.Join(whereParts, " AND ")
	}
	if len(groupBy) > 0 {
		stmt += " GROUP BY " + strings.Join(groupBy, ", ")
	}

	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		return nil, types.NewBackendError("dice", err)
	}
	defer rows.Close()

	var out []DiceRow
	for rows.Next() {
		groupKeys := make([]int64, len(groups))
		values := make([]float64, len(measureCols))
		scanTargets := make([]interface{}, 0, len(groupKeys)+len(values))
		for i := range groupKeys {
			scanTargets = append(scanTargets, &groupKeys[i])
		}
		for i := range values {
			scanTargets = append(scanTargets, &values[i])
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, types.NewBackendError("dice scan", err)
		}
		out = append(out, DiceRow{GroupKeys: groupKeys, Values: values})
	}
	return out, rows.Err()
}

// FactFilter is an exact-match restriction applied outside the group-by
// axes (used for dimensions pinned to a single coordinate rather than
// being diced).
type FactFilter struct {
	Col   string
	Value int64
}

// DeleteFact removes every fact row matching dimKeys exactly (§4.3
// "delete").
func (s *Session) DeleteFact(spaceName string, dimCols []string, dimKeys []int64) error {
	return s.deleteFactRow(s.q(factTable(spaceName)), dimCols, dimKeys)
}

// deleteFactRow removes the row of table matching dimKeys exactly. Shared
// by DeleteFact and Load's all-zero-update-deletes path.
func (s *Session) deleteFactRow(table string, dimCols []string, dimKeys []int64) error {
	var whereParts []string
	var args []interface{}
	for i, c := range dimCols {
		whereParts = append(whereParts, fmt.Sprintf(`%s = %s`, s.q(c), s.ph(i+1)))
		args = append(args, dimKeys[i])
	}
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE %s`, table, strings.Join(whereParts, " AND "))
	if _, err := s.db.Exec(stmt, args...); err != nil {
		return types.NewBackendError("delete fact", err)
	}
	return nil
}

// ClearFact removes every row of spaceName's fact table, the "atomically
// deletes" half of snapshot's delete-and-reinsert contract (§4.3
// "snapshot") when the destination is being fully rebuilt rather than
// narrowed to a coordinate constant.
func (s *Session) ClearFact(spaceName string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s`, s.q(factTable(spaceName)))
	if _, err := s.db.Exec(stmt); err != nil {
		return types.NewBackendError("clear fact", err)
	}
	return nil
}

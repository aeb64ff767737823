package backend

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mengerdb/menger/internal/dimension"
	"github.com/mengerdb/menger/internal/event"
	"github.com/mengerdb/menger/internal/lock"
	"github.com/mengerdb/menger/internal/logger"
	"github.com/mengerdb/menger/internal/sqlutil"
	"github.com/mengerdb/menger/internal/types"
)

// Session is one bound handle to a store: a *sql.DB, the dialect it speaks,
// and the event bus its registered dimensions subscribe their caches to.
// It satisfies dimension.Store structurally, so internal/dimension never
// imports this package.
type Session struct {
	db       *sql.DB
	dialect  sqlutil.Dialect
	readOnly bool
	bus      *event.Bus
	log      *logger.Logger

	factRefsMu sync.Mutex
	factRefs   map[string][]factRef // dimension label -> fact tables referencing it
}

// factRef names one column of one fact table that stores a foreign key
// into a dimension's node table, recorded by RegisterSpace so Merge can
// re-home fact rows across every space built on the dimension being
// merged (§4.1 "merge ... for every space containing dim").
type factRef struct {
	table       string
	col         string
	dimCols     []string
	measureCols []string
}

// Bus returns the session's cache-invalidation event bus, passed to every
// dimension.New/NewVersion/NewDate call made against this session.
func (s *Session) Bus() *event.Bus { return s.bus }

// newLock builds the advisory lock named name: a cross-connection
// PostgreSQL advisory lock when the store is shared, or an in-process
// semaphore for SQLite, where SQLite's own file locking already serializes
// writers at the file level (package internal/lock, §5).
func (s *Session) newLock(name string) lock.Lock {
	if s.dialect == sqlutil.DialectPostgres {
		return lock.NewPostgresLock(s.db, name)
	}
	return lock.NewSQLiteLock(name)
}

// withDimLock serializes one structural mutation (reparent/merge/prune/
// rename/delete) of dim against every other session touching the same store
// (§5 "concurrent users... each must open its own session", guarded here
// so that guarantee holds even when they share a PostgreSQL store).
func (s *Session) withDimLock(dim *dimension.Tree, fn func() error) error {
	return lock.WithDimensionLock(context.Background(), s.newLock, dim.Label, fn)
}

func dimTable(dim *dimension.Tree) string     { return strings.ToLower(dim.Label) + "_dim" }
func closureTable(dim *dimension.Tree) string { return strings.ToLower(dim.Label) + "_closure" }

// ClosureTableName exposes a dimension's closure table name to
// internal/space, which needs it to build DiceGroup values without
// importing this package's unexported naming convention directly.
func ClosureTableName(dim *dimension.Tree) string { return closureTable(dim) }

func (s *Session) q(name string) string { return sqlutil.QuoteIdentifier(s.dialect, name) }
func (s *Session) ph(i int) string      { return sqlutil.Placeholder(s.dialect, i) }

func sqlTypeFor(t types.AtomType, dialect sqlutil.Dialect) string {
	switch t {
	case types.AtomInt:
		return "INTEGER"
	case types.AtomFloat:
		if dialect == sqlutil.DialectPostgres {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	default:
		if dialect == sqlutil.DialectPostgres {
			return "TEXT"
		}
		return "VARCHAR"
	}
}

// RegisterDimension creates a dimension's node table and closure table if
// they do not already exist, and seeds the closure table's self-referencing
// root row (§4.1, grounded on SqliteBackend.register's per-dimension DDL).
func (s *Session) RegisterDimension(dim *dimension.Tree) error {
	table := s.q(dimTable(dim))
	closure := s.q(closureTable(dim))
	sqlType := sqlTypeFor(dim.ValueType, s.dialect)

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY, name %s)`, table, sqlType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (parent INTEGER REFERENCES %s(id), child INTEGER REFERENCES %s(id), depth INTEGER)`, closure, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (parent, depth)`, s.q(closureTable(dim)+"_parent_depth_idx"), closure),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (child)`, s.q(closureTable(dim)+"_child_idx"), closure),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return types.NewBackendError("register dimension "+dim.Label, err)
		}
	}

	insertRoot := fmt.Sprintf(`INSERT INTO %s (id, name) VALUES (%s, NULL)`, table, s.rootLiteral())
	if _, err := s.execIgnoreConflict(insertRoot); err != nil {
		return types.NewBackendError("seed dimension root "+dim.Label, err)
	}
	seedClosure := fmt.Sprintf(`INSERT INTO %s (parent, child, depth) VALUES (%s, %s, 0)`, closure, s.rootLiteral(), s.rootLiteral())
	if _, err := s.execIgnoreConflict(seedClosure); err != nil {
		return types.NewBackendError("seed dimension closure root "+dim.Label, err)
	}
	return nil
}

func (s *Session) rootLiteral() string { return strconv.FormatInt(dimension.RootID, 10) }

func (s *Session) execIgnoreConflict(stmt string) (sql.Result, error) {
	if s.dialect == sqlutil.DialectPostgres {
		stmt += " ON CONFLICT DO NOTHING"
	} else {
		stmt = strings.Replace(stmt, "INSERT INTO", "INSERT OR IGNORE INTO", 1)
	}
	return s.db.Exec(stmt)
}

func atomArg(a types.Atom) interface{} {
	switch a.Type {
	case types.AtomInt:
		return a.Int
	case types.AtomFloat:
		return a.Flt
	default:
		return a.Str
	}
}

func scanAtom(rawName interface{}, t types.AtomType) types.Atom {
	switch v := rawName.(type) {
	case int64:
		if t == types.AtomInt {
			return types.IntAtom(v)
		}
	case float64:
		if t == types.AtomFloat {
			return types.FloatAtom(v)
		}
	case string:
		return types.StringAtom(v)
	}
	switch t {
	case types.AtomInt:
		return types.IntAtom(0)
	case types.AtomFloat:
		return types.FloatAtom(0)
	default:
		return types.StringAtom(fmt.Sprint(rawName))
	}
}

// GetChildren implements dimension.Store (menger/dimension.py _get_key /
// SqliteBackend.get_childs, depth fixed to 1: immediate children only).
func (s *Session) GetChildren(dim *dimension.Tree, parentID int64) ([]dimension.ChildRef, error) {
	table := s.q(dimTable(dim))
	closure := s.q(closureTable(dim))
	stmt := fmt.Sprintf(
		`SELECT d.name, d.id FROM %s AS c JOIN %s AS d ON c.child = d.id WHERE c.depth = 1 AND c.parent = %s`,
		closure, table, s.ph(1))

	rows, err := s.db.Query(stmt, parentID)
	if err != nil {
		return nil, types.NewBackendError("get_children", err)
	}
	defer rows.Close()

	var out []dimension.ChildRef
	for rows.Next() {
		var name interface{}
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, types.NewBackendError("get_children scan", err)
		}
		out = append(out, dimension.ChildRef{Name: scanAtom(name, dim.ValueType), ID: id})
	}
	return out, rows.Err()
}

// GetParents implements dimension.Store (menger/dimension.py get_name /
// SqliteBackend.get_parents): every node's immediate (depth 1) parent.
func (s *Session) GetParents(dim *dimension.Tree) ([]dimension.ParentRef, error) {
	table := s.q(dimTable(dim))
	closure := s.q(closureTable(dim))
	stmt := fmt.Sprintf(
		`SELECT d.id, d.name, c.parent FROM %s AS d JOIN %s AS c ON c.child = d.id WHERE c.depth = 1`,
		table, closure)

	rows, err := s.db.Query(stmt)
	if err != nil {
		return nil, types.NewBackendError("get_parents", err)
	}
	defer rows.Close()

	var out []dimension.ParentRef
	for rows.Next() {
		var id, parentID int64
		var name interface{}
		if err := rows.Scan(&id, &name, &parentID); err != nil {
			return nil, types.NewBackendError("get_parents scan", err)
		}
		out = append(out, dimension.ParentRef{ID: id, Name: scanAtom(name, dim.ValueType), ParentID: parentID})
	}
	return out, rows.Err()
}

// CreateCoordinate implements dimension.Store (menger/dimension.py
// create_id / SqliteBackend.create_coordinate): inserts the node row, then
// extends the closure table with one row per ancestor of the new parent
// plus the node's self-reference.
func (s *Session) CreateCoordinate(dim *dimension.Tree, name types.Atom, parentID int64) (int64, error) {
	table := s.q(dimTable(dim))
	closure := s.q(closureTable(dim))

	res, err := s.db.Exec(fmt.Sprintf(`INSERT INTO %s (name) VALUES (%s)`, table, s.ph(1)), atomArg(name))
	if err != nil {
		return 0, types.NewBackendError("create_coordinate insert", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, types.NewBackendError("create_coordinate lastrowid", err)
	}

	ancestorStmt := fmt.Sprintf(`SELECT parent, depth FROM %s WHERE child = %s`, closure, s.ph(1))
	rows, err := s.db.Query(ancestorStmt, parentID)
	if err != nil {
		return 0, types.NewBackendError("create_coordinate ancestors", err)
	}
	type ancestor struct {
		parent int64
		depth  int
	}
	var ancestors []ancestor
	for rows.Next() {
		var a ancestor
		if err := rows.Scan(&a.parent, &a.depth); err != nil {
			rows.Close()
			return 0, types.NewBackendError("create_coordinate ancestors scan", err)
		}
		ancestors = append(ancestors, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, types.NewBackendError("create_coordinate ancestors", err)
	}

	insertClosure := fmt.Sprintf(`INSERT INTO %s (parent, child, depth) VALUES (%s, %s, %s)`, closure, s.ph(1), s.ph(2), s.ph(3))
	for _, a := range ancestors {
		if _, err := s.db.Exec(insertClosure, a.parent, newID, a.depth+1); err != nil {
			return 0, types.NewBackendError("create_coordinate closure insert", err)
		}
	}
	if _, err := s.db.Exec(insertClosure, newID, newID, 0); err != nil {
		return 0, types.NewBackendError("create_coordinate self row", err)
	}

	return newID, nil
}

// DeleteCoordinate removes a node and its subtree from both tables. Every
// descendant (closure rows with this node as an ancestor) is deleted along
// with it, matching the cascading delete semantics implied by §4.2's
// "delete a dimension coordinate" operation.
func (s *Session) DeleteCoordinate(dim *dimension.Tree, id int64) error {
	return s.withDimLock(dim, func() error { return s.deleteCoordinateLocked(dim, id) })
}

func (s *Session) deleteCoordinateLocked(dim *dimension.Tree, id int64) error {
	table := s.q(dimTable(dim))
	closure := s.q(closureTable(dim))

	descendants := fmt.Sprintf(`SELECT child FROM %s WHERE parent = %s`, closure, s.ph(1))
	rows, err := s.db.Query(descendants, id)
	if err != nil {
		return types.NewBackendError("delete_coordinate descendants", err)
	}
	var ids []int64
	for rows.Next() {
		var childID int64
		if err := rows.Scan(&childID); err != nil {
			rows.Close()
			return types.NewBackendError("delete_coordinate scan", err)
		}
		ids = append(ids, childID)
	}
	rows.Close()

	for _, childID := range ids {
		if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE parent = %s OR child = %s`, closure, s.ph(1), s.ph(1)), childID); err != nil {
			return types.NewBackendError("delete_coordinate closure", err)
		}
		if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, table, s.ph(1)), childID); err != nil {
			return types.NewBackendError("delete_coordinate node", err)
		}
	}
	return nil
}

// Reparent rewrites id's closure rows to hang from newParentID: detach its
// ancestor links above depth 0, then re-derive them from newParentID's
// ancestors, preserving every descendant's relative depth (§4.2).
func (s *Session) Reparent(dim *dimension.Tree, childID, newParentID int64) error {
	return s.withDimLock(dim, func() error { return s.reparentLocked(dim, childID, newParentID) })
}

func (s *Session) reparentLocked(dim *dimension.Tree, childID, newParentID int64) error {
	closure := s.q(closureTable(dim))

	descRows, err := s.db.Query(fmt.Sprintf(`SELECT child, depth FROM %s WHERE parent = %s`, closure, s.ph(1)), childID)
	if err != nil {
		return types.NewBackendError("reparent descendants", err)
	}
	type desc struct {
		id    int64
		depth int
	}
	var descendants []desc
	for descRows.Next() {
		var d desc
		if err := descRows.Scan(&d.id, &d.depth); err != nil {
			descRows.Close()
			return types.NewBackendError("reparent descendants scan", err)
		}
		descendants = append(descendants, d)
	}
	descRows.Close()

	ancRows, err := s.db.Query(fmt.Sprintf(`SELECT parent, depth FROM %s WHERE child = %s`, closure, s.ph(1)), newParentID)
	if err != nil {
		return types.NewBackendError("reparent new ancestors", err)
	}
	type anc struct {
		id    int64
		depth int
	}
	var ancestors []anc
	for ancRows.Next() {
		var a anc
		if err := ancRows.Scan(&a.id, &a.depth); err != nil {
			ancRows.Close()
			return types.NewBackendError("reparent new ancestors scan", err)
		}
		ancestors = append(ancestors, a)
	}
	ancRows.Close()

	detachStmt := fmt.Sprintf(
		`DELETE FROM %s WHERE child IN (SELECT child FROM %s WHERE parent = %s) AND parent NOT IN (SELECT child FROM %s WHERE parent = %s)`,
		closure, closure, s.ph(1), closure, s.ph(2))
	if _, err := s.db.Exec(detachStmt, childID, childID); err != nil {
		return types.NewBackendError("reparent detach", err)
	}

	insertClosure := fmt.Sprintf(`INSERT INTO %s (parent, child, depth) VALUES (%s, %s, %s)`, closure, s.ph(1), s.ph(2), s.ph(3))
	for _, a := range ancestors {
		for _, d := range descendants {
			if _, err := s.db.Exec(insertClosure, a.id, d.id, a.depth+1+d.depth); err != nil {
				return types.NewBackendError("reparent insert", err)
			}
		}
	}
	return nil
}

// Merge folds duplicate children of parentID that share a name into one
// node: fact rows and descendants of the loser are repointed to the
// survivor, then the loser is deleted (§4.2 "merge any resulting
// duplicate", fired after every Reparent/Rename).
func (s *Session) Merge(dim *dimension.Tree, parentID int64) error {
	return s.withDimLock(dim, func() error { return s.mergeLocked(dim, parentID) })
}

func (s *Session) mergeLocked(dim *dimension.Tree, parentID int64) error {
	table := s.q(dimTable(dim))
	closure := s.q(closureTable(dim))

	stmt := fmt.Sprintf(
		`SELECT d.name, d.id FROM %s AS c JOIN %s AS d ON c.child = d.id WHERE c.depth = 1 AND c.parent = %s ORDER BY d.name, d.id`,
		closure, table, s.ph(1))
	rows, err := s.db.Query(stmt, parentID)
	if err != nil {
		return types.NewBackendError("merge query", err)
	}
	type child struct {
		name interface{}
		id   int64
	}
	var children []child
	for rows.Next() {
		var c child
		if err := rows.Scan(&c.name, &c.id); err != nil {
			rows.Close()
			return types.NewBackendError("merge scan", err)
		}
		children = append(children, c)
	}
	rows.Close()

	byName := map[string][]int64{}
	order := []string{}
	for _, c := range children {
		key := fmt.Sprint(c.name)
		if _, ok := byName[key]; !ok {
			order = append(order, key)
		}
		byName[key] = append(byName[key], c.id)
	}

	for _, key := range order {
		ids := byName[key]
		if len(ids) < 2 {
			continue
		}
		survivor := ids[0]
		for _, loser := range ids[1:] {
			if err := s.mergeInto(dim, survivor, loser); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) mergeInto(dim *dimension.Tree, survivor, loser int64) error {
	table := s.q(dimTable(dim))
	closure := s.q(closureTable(dim))

	kids, err := s.queryIDs(fmt.Sprintf(`SELECT child FROM %s WHERE parent = %d AND depth = 1`, closure, loser))
	if err != nil {
		return types.NewBackendError("merge children", err)
	}
	for _, kid := range kids {
		if err := s.reparentLocked(dim, kid, survivor); err != nil {
			return fmt.Errorf("merge reparent: %w", err)
		}
	}

	s.factRefsMu.Lock()
	refs := append([]factRef(nil), s.factRefs[dim.Label]...)
	s.factRefsMu.Unlock()

	for _, ref := range refs {
		if err := s.relocateFactRows(ref, survivor, loser); err != nil {
			return err
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE parent = %s OR child = %s`, closure, s.ph(1), s.ph(1)), loser); err != nil {
		return types.NewBackendError("merge closure cleanup", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, table, s.ph(1)), loser); err != nil {
		return types.NewBackendError("merge node delete", err)
	}
	return s.mergeLocked(dim, survivor)
}

// Prune deletes nodeID if it now has no children (§4.2 "prune old parent").
func (s *Session) Prune(dim *dimension.Tree, nodeID int64) error {
	return s.withDimLock(dim, func() error { return s.pruneLocked(dim, nodeID) })
}

func (s *Session) pruneLocked(dim *dimension.Tree, nodeID int64) error {
	if nodeID == dimension.RootID {
		return nil
	}
	closure := s.q(closureTable(dim))
	var count int
	err := s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE parent = %s AND depth = 1`, closure, s.ph(1)), nodeID).Scan(&count)
	if err != nil {
		return types.NewBackendError("prune count", err)
	}
	if count > 0 {
		return nil
	}
	return s.deleteCoordinateLocked(dim, nodeID)
}

// Rename overwrites a node's name column (§4.2).
func (s *Session) Rename(dim *dimension.Tree, id int64, newName types.Atom) error {
	return s.withDimLock(dim, func() error { return s.renameLocked(dim, id, newName) })
}

func (s *Session) renameLocked(dim *dimension.Tree, id int64, newName types.Atom) error {
	table := s.q(dimTable(dim))
	stmt := fmt.Sprintf(`UPDATE %s SET name = %s WHERE id = %s`, table, s.ph(1), s.ph(2))
	if _, err := s.db.Exec(stmt, atomArg(newName), id); err != nil {
		return types.NewBackendError("rename", err)
	}
	return nil
}

// Search finds nodes whose name contains substring, down to maxDepth edges
// below the root (0 means unbounded), returning each hit's full path and
// depth (§4.2 "search").
func (s *Session) Search(dim *dimension.Tree, substring string, maxDepth int) ([]dimension.SearchResult, error) {
	table := s.q(dimTable(dim))
	closure := s.q(closureTable(dim))

	stmt := fmt.Sprintf(
		`SELECT d.id, c.depth FROM %s AS d JOIN %s AS c ON c.child = d.id WHERE c.parent = %s AND d.name LIKE %s`,
		table, closure, s.ph(1), s.ph(2))
	args := []interface{}{dimension.RootID, "%" + substring + "%"}
	if maxDepth > 0 {
		stmt += fmt.Sprintf(` AND c.depth <= %s`, s.ph(3))
		args = append(args, maxDepth)
	}

	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		return nil, types.NewBackendError("search", err)
	}
	defer rows.Close()

	var hits []struct {
		id    int64
		depth int
	}
	for rows.Next() {
		var id int64
		var depth int
		if err := rows.Scan(&id, &depth); err != nil {
			return nil, types.NewBackendError("search scan", err)
		}
		hits = append(hits, struct {
			id    int64
			depth int
		}{id, depth})
	}

	var out []dimension.SearchResult
	for _, h := range hits {
		name, err := dim.GetName(h.id)
		if err != nil {
			return nil, err
		}
		out = append(out, dimension.SearchResult{Name: name, Depth: h.depth})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Depth < out[j].Depth })
	return out, nil
}

// Glob resolves every descendant of headKey, headLen edges below the root,
// that lies len(tail) edges below headKey, has the concrete atom
// named at each non-wildcard tail position, and (if filters are given)
// falls under one of each filter's allowed branches (§4.2 Tree.glob).
func (s *Session) Glob(dim *dimension.Tree, headKey int64, headLen int, tail dimension.Pattern, filters []dimension.GlobFilter) ([]int64, error) {
	table := s.q(dimTable(dim))
	closure := s.q(closureTable(dim))

	stmt := fmt.Sprintf(`SELECT DISTINCT c.child FROM %s AS c WHERE c.parent = %s`, closure, s.ph(1))
	args := []interface{}{headKey}
	argN := 2

	if len(tail) > 0 {
		stmt += fmt.Sprintf(` AND c.depth = %s`, s.ph(argN))
		args = append(args, len(tail))
		argN++
	}

	// A concrete (non-wildcard) tail position at offset i names the
	// candidate's ancestor len(tail)-i-1 edges above it (0 meaning the
	// candidate itself); constrain that ancestor's name to match, so e.g.
	// date.glob((nil, nil, Day(1))) only returns descendants whose Day
	// name is "1", not every leaf at this depth.
	for i, v := range tail {
		if v == nil {
			continue
		}
		dist := len(tail) - i - 1
		stmt += fmt.Sprintf(
			` AND EXISTS (SELECT 1 FROM %s AS anc_c JOIN %s AS anc_d ON anc_d.id = anc_c.parent WHERE anc_c.child = c.child AND anc_c.depth = %s AND anc_d.name = %s)`,
			closure, table, s.ph(argN), s.ph(argN+1))
		args = append(args, dist, atomArg(*v))
		argN += 2
	}

	for _, filter := range filters {
		if len(filter) == 0 {
			continue
		}
		var clauses []string
		for _, v := range filter {
			clauses = append(clauses, fmt.Sprintf(
				`c.child IN (SELECT child FROM %s WHERE parent = %s AND depth = %s)`,
				closure, s.ph(argN), s.ph(argN+1)))
			args = append(args, v.Key, v.Depth)
			argN += 2
		}
		stmt += " AND (" + strings.Join(clauses, " OR ") + ")"
	}

	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		return nil, types.NewBackendError("glob", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewBackendError("glob scan", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

package backend

import (
	"fmt"
	"strings"

	"github.com/mengerdb/menger/internal/dimension"
)

// VerifyClosure checks one dimension's closure table against §8's first
// invariant ("for every node N, exactly one self row and, for every
// ancestor A at distance k, exactly one row") without walking the whole
// table in Go: each check is a single aggregate query.
func (s *Session) VerifyClosure(dim *dimension.Tree) ([]string, error) {
	table := s.q(dimTable(dim))
	closure := s.q(closureTable(dim))
	var violations []string

	missingSelf := fmt.Sprintf(
		`SELECT d.id FROM %s AS d LEFT JOIN %s AS c ON c.parent = d.id AND c.child = d.id AND c.depth = 0 WHERE c.child IS NULL`,
		table, closure)
	if ids, err := s.queryIDs(missingSelf); err != nil {
		return nil, err
	} else {
		for _, id := range ids {
			violations = append(violations, fmt.Sprintf("node %d has no self row", id))
		}
	}

	dupPairs := fmt.Sprintf(
		`SELECT parent, child FROM %s GROUP BY parent, child HAVING COUNT(*) > 1`, closure)
	rows, err := s.db.Query(dupPairs)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var parent, child int64
		if err := rows.Scan(&parent, &child); err != nil {
			rows.Close()
			return nil, err
		}
		violations = append(violations, fmt.Sprintf("closure pair (%d,%d) is duplicated", parent, child))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	gaps := fmt.Sprintf(
		`SELECT child, COUNT(*), MIN(depth), MAX(depth) FROM %s GROUP BY child HAVING COUNT(*) != MAX(depth) + 1 OR MIN(depth) != 0`,
		closure)
	rows, err = s.db.Query(gaps)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var child int64
		var count, min, max int
		if err := rows.Scan(&child, &count, &min, &max); err != nil {
			rows.Close()
			return nil, err
		}
		violations = append(violations, fmt.Sprintf("node %d has %d ancestor rows spanning depth %d..%d (expected a contiguous 0..%d run)", child, count, min, max, max))
	}
	rows.Close()
	return violations, rows.Err()
}

func (s *Session) queryIDs(stmt string) ([]int64, error) {
	rows, err := s.db.Query(stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// VerifyFact checks a space's fact table against §8's second invariant
// ("every dimension column resolves to an existing node and not all stored
// measures are zero"). dimCols/dims line up by index; measureCols
// lists the stored (Sum) measure columns.
func (s *Session) VerifyFact(spaceName string, dimCols []string, dims []*dimension.Tree, measureCols []string) ([]string, error) {
	table := s.q(factTable(spaceName))
	var violations []string

	for i, col := range dimCols {
		nodeTable := s.q(dimTable(dims[i]))
		stmt := fmt.Sprintf(
			`SELECT COUNT(*) FROM %s AS f LEFT JOIN %s AS d ON f.%s = d.id WHERE d.id IS NULL`,
			table, nodeTable, s.q(col))
		var count int
		if err := s.db.QueryRow(stmt).Scan(&count); err != nil {
			return nil, err
		}
		if count > 0 {
			violations = append(violations, fmt.Sprintf("%d fact rows reference a nonexistent %s node", count, col))
		}
	}

	if len(measureCols) > 0 {
		var zeroChecks []string
		for _, m := range measureCols {
			zeroChecks = append(zeroChecks, fmt.Sprintf(`%s = 0`, s.q(m)))
		}
		stmt := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, table, strings.Join(zeroChecks, " AND "))
		var count int
		if err := s.db.QueryRow(stmt).Scan(&count); err != nil {
			return nil, err
		}
		if count > 0 {
			violations = append(violations, fmt.Sprintf("%d fact rows have every stored measure at zero", count))
		}
	}

	return violations, nil
}

// SumMeasure returns the raw SUM of one stored-measure column across a
// space's entire fact table, used to cross-check a no-filter dice's total
// against the table itself (§8 "sum of each stored measure across all dice
// rows equals its sum across the fact table").
func (s *Session) SumMeasure(spaceName, measureCol string) (float64, error) {
	table := s.q(factTable(spaceName))
	stmt := fmt.Sprintf(`SELECT COALESCE(SUM(%s), 0) FROM %s`, s.q(measureCol), table)
	var total float64
	err := s.db.QueryRow(stmt).Scan(&total)
	return total, err
}

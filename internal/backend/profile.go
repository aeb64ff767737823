package backend

import (
	"database/sql"
	"fmt"

	"github.com/mengerdb/menger/internal/types"
)

// ProfileRecord is one persisted row of the profiles table: a space's
// signature (already serialized to a stable string by internal/profile)
// paired with its accumulated hit count and last-known materialized row
// count (§4.4 "fetch from backend ordered by hits descending").
type ProfileRecord struct {
	Space     string
	Signature string
	Hits      int64
	RowCount  int64
	HasSize   bool
}

const profilesTable = "_profiles"

// RegisterProfileStore creates the profiles bookkeeping table, idempotent
// like RegisterDimension/RegisterSpace.
func (s *Session) RegisterProfileStore() error {
	strType := sqlTypeFor(types.AtomString, s.dialect)
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		space %s NOT NULL,
		signature %s NOT NULL,
		hits BIGINT NOT NULL DEFAULT 0,
		row_count BIGINT,
		PRIMARY KEY (space, signature)
	)`, s.q(profilesTable), strType, strType)
	_, err := s.db.Exec(ddl)
	return err
}

// RecordHit increments a signature's hit counter, creating the row if this
// is the first time the signature has been seen (§4.4 "_hits" buffer,
// flushed here rather than batched in memory since the backend already
// serializes writes per session).
func (s *Session) RecordHit(space, signature string) error {
	stmt := fmt.Sprintf(
		`INSERT INTO %s (space, signature, hits) VALUES (%s, %s, 1)
		 ON CONFLICT (space, signature) DO UPDATE SET hits = hits + 1`,
		s.q(profilesTable), s.ph(1), s.ph(2))
	_, err := s.db.Exec(stmt, space, signature)
	return err
}

// SetProfileSize records a profile's ghost-space row count after a
// snapshot, used by the next register() pass's budget accounting.
func (s *Session) SetProfileSize(space, signature string, rows int64) error {
	stmt := fmt.Sprintf(`UPDATE %s SET row_count = %s WHERE space = %s AND signature = %s`,
		s.q(profilesTable), s.ph(1), s.ph(2), s.ph(3))
	_, err := s.db.Exec(stmt, rows, space, signature)
	return err
}

// ListProfiles returns every known profile of space ordered by hits
// descending (§4.4 "register(space)").
func (s *Session) ListProfiles(space string) ([]ProfileRecord, error) {
	stmt := fmt.Sprintf(`SELECT signature, hits, row_count FROM %s WHERE space = %s ORDER BY hits DESC`,
		s.q(profilesTable), s.ph(1))
	rows, err := s.db.Query(stmt, space)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProfileRecord
	for rows.Next() {
		var rec ProfileRecord
		var rowCount sql.NullInt64
		rec.Space = space
		if err := rows.Scan(&rec.Signature, &rec.Hits, &rowCount); err != nil {
			return nil, err
		}
		rec.RowCount = rowCount.Int64
		rec.HasSize = rowCount.Valid
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SpaceSize reports the current fact-row count of space, used as the base
// of the profile cache's size budget (§4.4 "backend.size(space)").
func (s *Session) SpaceSize(space string) (int64, error) {
	stmt := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.q(factTable(space)))
	var n int64
	if err := s.db.QueryRow(stmt).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

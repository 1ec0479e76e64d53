package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/codeatlas/codeatlas/internal/chunk"
	"github.com/codeatlas/codeatlas/internal/rules"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS units (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	path             TEXT    NOT NULL,
	position         INTEGER NOT NULL,
	name             TEXT    NOT NULL,
	kind             TEXT    NOT NULL,
	start_line       INTEGER NOT NULL,
	end_line         INTEGER NOT NULL,
	code             TEXT    NOT NULL,
	signature        TEXT    NOT NULL,
	imports          TEXT    NOT NULL,
	type_names       TEXT    NOT NULL,
	calls            TEXT    NOT NULL,
	purpose          TEXT    NOT NULL,
	confidence       REAL    NOT NULL,
	domains          TEXT    NOT NULL,
	patterns         TEXT    NOT NULL,
	complexity_score INTEGER NOT NULL,
	complexity_level TEXT    NOT NULL,
	tags             TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_units_path ON units(path);
CREATE INDEX IF NOT EXISTS idx_units_purpose ON units(purpose);

CREATE TABLE IF NOT EXISTS unit_patterns (
	path  TEXT NOT NULL,
	label TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_unit_patterns_label ON unit_patterns(label);
`

// SQLiteStore persists classified units across runs. The pattern label
// set is mirrored into a side table so membership queries stay indexed
// instead of scanning JSON.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dbPath. WAL mode
// keeps concurrent readers off the writer's lock.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) ReplaceFile(ctx context.Context, path string, units []ClassifiedUnit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM units WHERE path = ?`, path); err != nil {
		return fmt.Errorf("clearing units for %s: %w", path, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM unit_patterns WHERE path = ?`, path); err != nil {
		return fmt.Errorf("clearing patterns for %s: %w", path, err)
	}

	for i, u := range units {
		if err := insertUnit(ctx, tx, path, i, &u); err != nil {
			return err
		}
		for _, label := range u.Patterns {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO unit_patterns (path, label) VALUES (?, ?)`, path, label); err != nil {
				return fmt.Errorf("inserting pattern label: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing replace for %s: %w", path, err)
	}
	return nil
}

func insertUnit(ctx context.Context, tx *sql.Tx, path string, position int, u *ClassifiedUnit) error {
	imports, err := marshalList(u.Context.Imports)
	if err != nil {
		return err
	}
	typeNames, err := marshalList(u.Context.Types)
	if err != nil {
		return err
	}
	calls, err := marshalList(u.Context.Calls)
	if err != nil {
		return err
	}
	domains, err := marshalList(u.Domains)
	if err != nil {
		return err
	}
	patterns, err := marshalList(u.Patterns)
	if err != nil {
		return err
	}
	tags, err := marshalList(u.Tags)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO units (
			path, position, name, kind, start_line, end_line, code, signature,
			imports, type_names, calls,
			purpose, confidence, domains, patterns,
			complexity_score, complexity_level, tags
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		path, position, u.Name, string(u.Kind), u.StartLine, u.EndLine, u.Code, u.Signature,
		imports, typeNames, calls,
		u.Purpose, u.Confidence, domains, patterns,
		u.Complexity.Score, string(u.Complexity.Level), tags,
	)
	if err != nil {
		return fmt.Errorf("inserting unit %s: %w", u.Name, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteFile(ctx context.Context, path string) error {
	return s.ReplaceFile(ctx, path, nil)
}

const unitColumns = `path, name, kind, start_line, end_line, code, signature,
	imports, type_names, calls, purpose, confidence, domains, patterns,
	complexity_score, complexity_level, tags`

func (s *SQLiteStore) File(ctx context.Context, path string) ([]ClassifiedUnit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+unitColumns+` FROM units WHERE path = ? ORDER BY position`, path)
	if err != nil {
		return nil, fmt.Errorf("querying units for %s: %w", path, err)
	}
	defer rows.Close()
	return scanUnits(rows)
}

func (s *SQLiteStore) Units(ctx context.Context) ([]ClassifiedUnit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+unitColumns+` FROM units ORDER BY path, position`)
	if err != nil {
		return nil, fmt.Errorf("querying all units: %w", err)
	}
	defer rows.Close()
	return scanUnits(rows)
}

func scanUnits(rows *sql.Rows) ([]ClassifiedUnit, error) {
	var units []ClassifiedUnit
	for rows.Next() {
		var (
			u                                              ClassifiedUnit
			kind, level                                    string
			imports, typeNames, calls, domains, pats, tags string
		)
		err := rows.Scan(
			&u.FilePath, &u.Name, &kind, &u.StartLine, &u.EndLine, &u.Code, &u.Signature,
			&imports, &typeNames, &calls, &u.Purpose, &u.Confidence, &domains, &pats,
			&u.Complexity.Score, &level, &tags,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning unit row: %w", err)
		}
		u.Kind = chunk.UnitKind(kind)
		u.Complexity.Level = rules.ComplexityLevel(level)
		cols := []struct {
			raw string
			dst *[]string
		}{
			{imports, &u.Context.Imports}, {typeNames, &u.Context.Types}, {calls, &u.Context.Calls},
			{domains, &u.Domains}, {pats, &u.Patterns}, {tags, &u.Tags},
		}
		for _, c := range cols {
			if err := unmarshalList(c.raw, c.dst); err != nil {
				return nil, err
			}
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (s *SQLiteStore) Paths(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT path FROM units ORDER BY path`)
}

func (s *SQLiteStore) PurposeLabels(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT purpose FROM units ORDER BY purpose`)
}

func (s *SQLiteStore) PatternLabels(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT label FROM unit_patterns ORDER BY label`)
}

func (s *SQLiteStore) PathsWithPurpose(ctx context.Context, label string) ([]string, error) {
	return s.queryStrings(ctx,
		`SELECT DISTINCT path FROM units WHERE purpose = ? ORDER BY path`, label)
}

func (s *SQLiteStore) PathsWithPattern(ctx context.Context, label string) ([]string, error) {
	return s.queryStrings(ctx,
		`SELECT DISTINCT path FROM unit_patterns WHERE label = ? ORDER BY path`, label)
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM units`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting units: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("marshaling list: %w", err)
	}
	return string(data), nil
}

func unmarshalList(raw string, dst *[]string) error {
	if raw == "" || raw == "[]" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("unmarshaling list column: %w", err)
	}
	return nil
}

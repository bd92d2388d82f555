package output

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"cilscan/internal/engine"
)

// Store persists violations in SQLite. Each analysed module is one run.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	run int64
	err error
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	module  TEXT NOT NULL,
	started TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS violations (
	run_id    INTEGER NOT NULL REFERENCES runs(id),
	check_id  TEXT NOT NULL,
	kind      TEXT NOT NULL,
	name      TEXT NOT NULL,
	il_offset INTEGER NOT NULL,
	detail    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS violations_check ON violations(check_id);
`

// OpenStore opens or creates the database at path. ":memory:" gives a
// private in-memory store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("output: open %s: %w", path, err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("output: %s: busy timeout: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("output: %s: create tables: %w", path, err)
	}
	return &Store{db: db}, nil
}

// BeginRun starts a run for module; later reports are attached to it.
func (s *Store) BeginRun(module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec("INSERT INTO runs (module, started) VALUES (?, ?)",
		module, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("output: begin run %s: %w", module, err)
	}
	s.run, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("output: begin run %s: %w", module, err)
	}
	return nil
}

// Report stores v in the current run. The first failure is kept and
// returned by Err.
func (s *Store) Report(v engine.Violation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if s.run == 0 {
		s.err = fmt.Errorf("output: report %s: no run started", v.CheckID)
		return
	}
	_, err := s.db.Exec(
		"INSERT INTO violations (run_id, check_id, kind, name, il_offset, detail) VALUES (?, ?, ?, ?, ?, ?)",
		s.run, v.CheckID, v.Entity.Kind.String(), v.Entity.Name, v.Offset, v.Detail)
	if err != nil {
		s.err = fmt.Errorf("output: store %s: %w", v.CheckID, err)
	}
}

// Err returns the first error seen by Report.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Counts returns the number of stored violations per check ID across all
// runs.
func (s *Store) Counts() (map[string]int, error) {
	rows, err := s.db.Query("SELECT check_id, COUNT(*) FROM violations GROUP BY check_id")
	if err != nil {
		return nil, fmt.Errorf("output: counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("output: counts: %w", err)
		}
		out[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("output: counts: %w", err)
	}
	return out, nil
}

// Violations returns the violations stored for module's most recent run.
func (s *Store) Violations(module string) ([]engine.Violation, error) {
	rows, err := s.db.Query(`
		SELECT v.check_id, v.kind, v.name, v.il_offset, v.detail
		FROM violations v
		WHERE v.run_id = (SELECT MAX(id) FROM runs WHERE module = ?)
		ORDER BY v.rowid`, module)
	if err != nil {
		return nil, fmt.Errorf("output: violations %s: %w", module, err)
	}
	defer rows.Close()

	var out []engine.Violation
	for rows.Next() {
		var v engine.Violation
		var kind string
		if err := rows.Scan(&v.CheckID, &kind, &v.Entity.Name, &v.Offset, &v.Detail); err != nil {
			return nil, fmt.Errorf("output: violations %s: %w", module, err)
		}
		v.Entity.Kind = parseKind(kind)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("output: violations %s: %w", module, err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func parseKind(s string) engine.EntityKind {
	switch s {
	case "type":
		return engine.EntityType
	case "method":
		return engine.EntityMethod
	}
	return engine.EntityModule
}

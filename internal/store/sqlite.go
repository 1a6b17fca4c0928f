package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/blake2b"
)

// Schema for the kasiski run history.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at_ns   INTEGER NOT NULL,
    source          TEXT NOT NULL,
    path            TEXT,
    table_name      TEXT NOT NULL,
    fingerprint     BLOB NOT NULL,
    letters         INTEGER NOT NULL,
    repeat_events   INTEGER NOT NULL,
    key_length      INTEGER NOT NULL,
    key             TEXT NOT NULL,
    degenerate      INTEGER NOT NULL,
    threshold       REAL NOT NULL,
    max_prime       INTEGER NOT NULL,
    record_hash     BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at_ns);
CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);

CREATE TABLE IF NOT EXISTS run_factors (
    run_id      INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    prime       INTEGER NOT NULL,
    exponent    INTEGER NOT NULL,
    votes       INTEGER NOT NULL,
    total       INTEGER NOT NULL,
    PRIMARY KEY (run_id, prime)
);
`

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("store: run not found")

// Store represents the SQLite run history.
type Store struct {
	db *sql.DB
}

// Fingerprint returns the BLAKE2b-256 digest of ciphertext.
func Fingerprint(ciphertext []byte) [32]byte {
	return blake2b.Sum256(ciphertext)
}

// Open opens or creates the SQLite database at the given path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InsertRun records a run with its factors and returns its ID. CreatedAt
// defaults to now.
func (s *Store) InsertRun(r *Run) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.RecordHash = computeRecordHash(r)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO runs (created_at_ns, source, path, table_name, fingerprint, letters, repeat_events,
			key_length, key, degenerate, threshold, max_prime, record_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CreatedAt.UnixNano(), r.Source, r.Path, r.Table, r.Fingerprint[:], r.Letters, r.RepeatEvents,
		r.KeyLength, r.Key, r.Degenerate, r.Threshold, r.MaxPrime, r.RecordHash[:],
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_factors (run_id, prime, exponent, votes, total)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare factor insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range r.Factors {
		if _, err := stmt.Exec(id, f.Prime, f.Exponent, f.Votes, f.Total); err != nil {
			return 0, fmt.Errorf("insert factor %d: %w", f.Prime, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}

	r.ID = id
	return id, nil
}

const runColumns = `id, created_at_ns, source, path, table_name, fingerprint, letters, repeat_events,
	key_length, key, degenerate, threshold, max_prime, record_hash`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var createdNs int64
	var path sql.NullString
	var fingerprint, recordHash []byte
	if err := row.Scan(&r.ID, &createdNs, &r.Source, &path, &r.Table, &fingerprint, &r.Letters,
		&r.RepeatEvents, &r.KeyLength, &r.Key, &r.Degenerate, &r.Threshold, &r.MaxPrime, &recordHash); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, createdNs)
	r.Path = path.String
	copy(r.Fingerprint[:], fingerprint)
	copy(r.RecordHash[:], recordHash)
	return &r, nil
}

// GetRun retrieves a run and its factors by ID.
func (s *Store) GetRun(id int64) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}

	if r.Factors, err = s.getFactors(id); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) getFactors(runID int64) ([]Factor, error) {
	rows, err := s.db.Query(`
		SELECT prime, exponent, votes, total FROM run_factors
		WHERE run_id = ? ORDER BY prime ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query factors: %w", err)
	}
	defer rows.Close()

	var factors []Factor
	for rows.Next() {
		var f Factor
		if err := rows.Scan(&f.Prime, &f.Exponent, &f.Votes, &f.Total); err != nil {
			return nil, fmt.Errorf("scan factor: %w", err)
		}
		factors = append(factors, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate factors: %w", err)
	}
	return factors, nil
}

// ListRuns returns the most recent runs, newest first. Factors are not
// loaded. A limit of zero or less returns every run.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY created_at_ns DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// FindByFingerprint returns every run over the same ciphertext, oldest first.
func (s *Store) FindByFingerprint(fp [32]byte) ([]Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs WHERE fingerprint = ? ORDER BY created_at_ns ASC, id ASC`, fp[:])
	if err != nil {
		return nil, fmt.Errorf("find runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// DeleteRun removes a run and its factors.
func (s *Store) DeleteRun(id int64) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRuns returns the number of recorded runs.
func (s *Store) CountRuns() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

// Stats summarizes the history.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{Tables: make(map[string]int)}
	rows, err := s.db.Query(`SELECT table_name, COUNT(*), SUM(degenerate) FROM runs GROUP BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			table      string
			count, deg int
		)
		if err := rows.Scan(&table, &count, &deg); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		st.Tables[table] = count
		st.Runs += count
		st.Degenerate += deg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return st, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

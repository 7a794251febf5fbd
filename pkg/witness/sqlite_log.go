package witness

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteLog is the durable witness store for long-lived realms.
type SQLiteLog struct {
	db *sql.DB
}

// OpenSQLiteLog opens (or creates) a witness database at path.
// Use ":memory:" for tests.
func OpenSQLiteLog(path string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("witness db: %w", err)
	}
	return NewSQLiteLog(db)
}

func NewSQLiteLog(db *sql.DB) (*SQLiteLog, error) {
	l := &SQLiteLog{db: db}
	if err := l.migrate(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLog) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS witnesses (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		step_id TEXT NOT NULL,
		input_hash TEXT NOT NULL,
		output_hash TEXT NOT NULL,
		certificate_signature TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL,
		predecessor_hash TEXT NOT NULL,
		chain_hash TEXT NOT NULL,
		unresolved INTEGER NOT NULL DEFAULT 0
	);`
	_, err := l.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("witness db migrate: %w", err)
	}
	return nil
}

func (l *SQLiteLog) Append(ctx context.Context, w *Witness) error {
	query := `
	INSERT INTO witnesses (step_id, input_hash, output_hash, certificate_signature, timestamp, predecessor_hash, chain_hash, unresolved)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := l.db.ExecContext(ctx, query,
		w.StepID, w.InputHash, w.OutputHash, w.CertSig,
		w.Timestamp.UTC().Format(time.RFC3339Nano),
		w.PredecessorHash, w.ChainHash, boolToInt(w.Unresolved))
	if err != nil {
		return fmt.Errorf("witness db append: %w", err)
	}
	return nil
}

func (l *SQLiteLog) List(ctx context.Context) ([]*Witness, error) {
	query := `
	SELECT step_id, input_hash, output_hash, certificate_signature, timestamp, predecessor_hash, chain_hash, unresolved
	FROM witnesses ORDER BY seq ASC`
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("witness db list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*Witness
	for rows.Next() {
		var w Witness
		var ts string
		var unresolved int
		if err := rows.Scan(&w.StepID, &w.InputHash, &w.OutputHash, &w.CertSig,
			&ts, &w.PredecessorHash, &w.ChainHash, &unresolved); err != nil {
			return nil, fmt.Errorf("witness db scan: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			w.Timestamp = t
		}
		w.Unresolved = unresolved != 0
		entries = append(entries, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("witness db list: %w", err)
	}
	return entries, nil
}

// Close releases the underlying database handle.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

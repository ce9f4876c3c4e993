package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the table in a local SQLite file. Each row is one JSON
// array of cells; the header row is stored at index 0.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sheet_rows (
    idx   INTEGER PRIMARY KEY,
    cells TEXT NOT NULL
);`

// OpenSQLiteStore opens (or creates) the database at path
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Read implements Store
func (s *SQLiteStore) Read(ctx context.Context) ([][]string, []string, error) {
	rs, err := s.db.QueryContext(ctx, `SELECT idx, cells FROM sheet_rows ORDER BY idx`)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite store: query: %w", err)
	}
	defer func() { _ = rs.Close() }()

	var (
		headers []string
		rows    [][]string
	)
	for rs.Next() {
		var (
			idx   int64
			cells string
		)
		if err := rs.Scan(&idx, &cells); err != nil {
			return nil, nil, fmt.Errorf("sqlite store: scan: %w", err)
		}
		var row []string
		if err := json.Unmarshal([]byte(cells), &row); err != nil {
			return nil, nil, fmt.Errorf("sqlite store: row %d: %w", idx, err)
		}
		if idx == 0 {
			headers = row
			continue
		}
		rows = append(rows, row)
	}
	if err := rs.Err(); err != nil {
		return nil, nil, fmt.Errorf("sqlite store: rows: %w", err)
	}
	return rows, headers, nil
}

// WriteHeaders implements Store
func (s *SQLiteStore) WriteHeaders(ctx context.Context, headers []string) error {
	cells, err := json.Marshal(headers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sheet_rows (idx, cells) VALUES (0, ?)
		 ON CONFLICT(idx) DO UPDATE SET cells = excluded.cells`, string(cells))
	if err != nil {
		return fmt.Errorf("sqlite store: write headers: %w", err)
	}
	return nil
}

// Append implements Store. The batch is written in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(idx), 0) FROM sheet_rows`).Scan(&last); err != nil {
		return fmt.Errorf("sqlite store: last index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sheet_rows (idx, cells) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite store: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range rows {
		if row == nil {
			row = []string{}
		}
		cells, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, last+int64(i)+1, string(cells)); err != nil {
			return fmt.Errorf("sqlite store: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite store: commit: %w", err)
	}
	return nil
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

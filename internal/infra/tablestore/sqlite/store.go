// Package sqlite provides an embedded table store backend. Each spreadsheet
// key maps to one database file; worksheets persist as JSON grids, one row
// per worksheet.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"researchdash/pkg/domain"
)

var (
	_ domain.Opener     = (*Store)(nil)
	_ domain.Connection = (*connection)(nil)
	_ domain.Worksheet  = (*worksheet)(nil)
)

// Store opens spreadsheet databases under a root directory.
type Store struct {
	dir string

	mu    sync.Mutex
	conns map[string]*connection
}

// NewStore constructs a sqlite-backed store rooted at dir, creating the
// directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = "./sheetdata"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create sheet dir: %w", err)
	}
	return &Store{dir: dir, conns: make(map[string]*connection)}, nil
}

// OpenByKey opens (creating on first use) the database file for key. Unlike
// the remote service there is no sharing model, so 404/403 never arise here.
func (s *Store) OpenByKey(_ context.Context, key string) (domain.Connection, error) {
	if key == "" {
		return nil, domain.APIError{Status: 404, Message: "empty spreadsheet key"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn, ok := s.conns[key]; ok {
		return conn, nil
	}
	path := filepath.Join(s.dir, key+".db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS worksheets (
		name TEXT PRIMARY KEY,
		row_capacity INTEGER NOT NULL,
		col_capacity INTEGER NOT NULL,
		grid BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create worksheets table: %w", err)
	}
	conn := &connection{db: db}
	s.conns[key] = conn
	return conn, nil
}

// Close releases all database handles.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for key, conn := range s.conns {
		if err := conn.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.conns, key)
	}
	return firstErr
}

type connection struct {
	db *sql.DB
}

func (c *connection) Worksheets(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name FROM worksheets ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list worksheets: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan worksheet name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *connection) Worksheet(ctx context.Context, name string) (domain.Worksheet, error) {
	var found string
	err := c.db.QueryRowContext(ctx, `SELECT name FROM worksheets WHERE name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrWorksheetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup worksheet: %w", err)
	}
	return &worksheet{conn: c, name: name}, nil
}

func (c *connection) AddWorksheet(ctx context.Context, name string, rowCap, colCap int) (domain.Worksheet, error) {
	payload, err := json.Marshal([][]string{})
	if err != nil {
		return nil, fmt.Errorf("marshal empty grid: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `INSERT INTO worksheets (name, row_capacity, col_capacity, grid)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET row_capacity = excluded.row_capacity, col_capacity = excluded.col_capacity, grid = excluded.grid`,
		name, rowCap, colCap, payload)
	if err != nil {
		return nil, fmt.Errorf("add worksheet: %w", err)
	}
	return &worksheet{conn: c, name: name}, nil
}

type worksheet struct {
	conn *connection
	name string
}

func (w *worksheet) Name() string { return w.name }

func (w *worksheet) ReadAll(ctx context.Context) ([][]string, error) {
	var payload []byte
	err := w.conn.db.QueryRowContext(ctx, `SELECT grid FROM worksheets WHERE name = ?`, w.name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrWorksheetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read grid: %w", err)
	}
	var grid [][]string
	if err := json.Unmarshal(payload, &grid); err != nil {
		return nil, fmt.Errorf("decode grid: %w", err)
	}
	return grid, nil
}

func (w *worksheet) WriteAll(ctx context.Context, grid [][]string) error {
	payload, err := json.Marshal(grid)
	if err != nil {
		return fmt.Errorf("encode grid: %w", err)
	}
	res, err := w.conn.db.ExecContext(ctx, `UPDATE worksheets SET grid = ? WHERE name = ?`, payload, w.name)
	if err != nil {
		return fmt.Errorf("write grid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write grid: %w", err)
	}
	if affected == 0 {
		return domain.ErrWorksheetNotFound
	}
	return nil
}

// Package postgres provides a PostgreSQL table store backend for shared
// deployments. Worksheets persist as JSONB grids keyed by (spreadsheet, name).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"researchdash/pkg/domain"
)

var (
	_ domain.Opener     = (*Store)(nil)
	_ domain.Connection = (*connection)(nil)
	_ domain.Worksheet  = (*worksheet)(nil)
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/researchdash?sslmode=disable"
)

// sqlOpen is swapped out by tests.
var sqlOpen = sql.Open

// Store shares one database across all spreadsheet keys.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN) and ensures the worksheets table exists.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sqlOpen(defaultDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := &Store{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// NewStoreWithDB wraps an existing handle; schema setup is the caller's
// responsibility. Used by tests.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS worksheets (
		spreadsheet TEXT NOT NULL,
		name TEXT NOT NULL,
		row_capacity INTEGER NOT NULL,
		col_capacity INTEGER NOT NULL,
		grid JSONB NOT NULL,
		PRIMARY KEY (spreadsheet, name)
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure worksheets table: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// OpenByKey scopes a connection to one spreadsheet key.
func (s *Store) OpenByKey(_ context.Context, key string) (domain.Connection, error) {
	if key == "" {
		return nil, domain.APIError{Status: 404, Message: "empty spreadsheet key"}
	}
	return &connection{db: s.db, spreadsheet: key}, nil
}

type connection struct {
	db          *sql.DB
	spreadsheet string
}

func (c *connection) Worksheets(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name FROM worksheets WHERE spreadsheet = $1 ORDER BY name`, c.spreadsheet)
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
	err := c.db.QueryRowContext(ctx, `SELECT name FROM worksheets WHERE spreadsheet = $1 AND name = $2`, c.spreadsheet, name).Scan(&found)
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
	_, err = c.db.ExecContext(ctx, `INSERT INTO worksheets (spreadsheet, name, row_capacity, col_capacity, grid)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (spreadsheet, name) DO UPDATE SET row_capacity = EXCLUDED.row_capacity, col_capacity = EXCLUDED.col_capacity, grid = EXCLUDED.grid`,
		c.spreadsheet, name, rowCap, colCap, payload)
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
	err := w.conn.db.QueryRowContext(ctx, `SELECT grid FROM worksheets WHERE spreadsheet = $1 AND name = $2`, w.conn.spreadsheet, w.name).Scan(&payload)
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
	res, err := w.conn.db.ExecContext(ctx, `UPDATE worksheets SET grid = $1 WHERE spreadsheet = $2 AND name = $3`,
		payload, w.conn.spreadsheet, w.name)
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

// Package memory provides an in-memory implementation of the remote table
// store used for tests and ephemeral environments. It also supports fault
// injection so callers can exercise retry and degradation paths.
package memory

import (
	"context"
	"sync"

	"researchdash/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.Opener     = (*Store)(nil)
	_ domain.Connection = (*connection)(nil)
	_ domain.Worksheet  = (*worksheet)(nil)
)

// Store holds a set of in-memory spreadsheets addressed by key.
type Store struct {
	mu           sync.Mutex
	spreadsheets map[string]*spreadsheet

	faultStatus    int
	faultRemaining int
}

type spreadsheet struct {
	order  []string
	sheets map[string]*sheetState
}

type sheetState struct {
	rowCapacity int
	colCapacity int
	grid        [][]string
}

// NewStore constructs a store seeded with empty spreadsheets for the given
// keys. Opening any other key fails with a 404 APIError, mirroring the
// remote service.
func NewStore(keys ...string) *Store {
	s := &Store{spreadsheets: make(map[string]*spreadsheet)}
	for _, key := range keys {
		s.spreadsheets[key] = &spreadsheet{sheets: make(map[string]*sheetState)}
	}
	return s
}

// InjectFaults makes the next n store operations fail with the given remote
// status. Used by tests to simulate rate limiting and outages.
func (s *Store) InjectFaults(n, status int) {
	s.mu.Lock()
	s.faultRemaining = n
	s.faultStatus = status
	s.mu.Unlock()
}

func (s *Store) fault() error {
	if s.faultRemaining > 0 {
		s.faultRemaining--
		return domain.APIError{Status: s.faultStatus, Message: "injected fault"}
	}
	return nil
}

// OpenByKey returns a connection to the spreadsheet with the given key.
func (s *Store) OpenByKey(_ context.Context, key string) (domain.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(); err != nil {
		return nil, err
	}
	sheet, ok := s.spreadsheets[key]
	if !ok {
		return nil, domain.APIError{Status: 404, Message: "spreadsheet " + key + " not found"}
	}
	return &connection{store: s, sheet: sheet}, nil
}

type connection struct {
	store *Store
	sheet *spreadsheet
}

func (c *connection) Worksheets(context.Context) ([]string, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.store.fault(); err != nil {
		return nil, err
	}
	return append([]string(nil), c.sheet.order...), nil
}

func (c *connection) Worksheet(_ context.Context, name string) (domain.Worksheet, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.store.fault(); err != nil {
		return nil, err
	}
	if _, ok := c.sheet.sheets[name]; !ok {
		return nil, domain.ErrWorksheetNotFound
	}
	return &worksheet{conn: c, name: name}, nil
}

func (c *connection) AddWorksheet(_ context.Context, name string, rows, cols int) (domain.Worksheet, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.store.fault(); err != nil {
		return nil, err
	}
	if _, ok := c.sheet.sheets[name]; !ok {
		c.sheet.order = append(c.sheet.order, name)
	}
	// A concurrent creator racing past the existence check would land here
	// too; last one wins, matching the remote service.
	c.sheet.sheets[name] = &sheetState{rowCapacity: rows, colCapacity: cols}
	return &worksheet{conn: c, name: name}, nil
}

type worksheet struct {
	conn *connection
	name string
}

func (w *worksheet) Name() string { return w.name }

func (w *worksheet) ReadAll(context.Context) ([][]string, error) {
	w.conn.store.mu.Lock()
	defer w.conn.store.mu.Unlock()
	if err := w.conn.store.fault(); err != nil {
		return nil, err
	}
	state, ok := w.conn.sheet.sheets[w.name]
	if !ok {
		return nil, domain.ErrWorksheetNotFound
	}
	return cloneGrid(state.grid), nil
}

func (w *worksheet) WriteAll(_ context.Context, grid [][]string) error {
	w.conn.store.mu.Lock()
	defer w.conn.store.mu.Unlock()
	if err := w.conn.store.fault(); err != nil {
		return err
	}
	state, ok := w.conn.sheet.sheets[w.name]
	if !ok {
		return domain.ErrWorksheetNotFound
	}
	state.grid = cloneGrid(grid)
	return nil
}

// Capacity reports the stored row and column capacity for a worksheet.
// Test hook.
func (s *Store) Capacity(key, name string) (rows, cols int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sheet, found := s.spreadsheets[key]
	if !found {
		return 0, 0, false
	}
	state, found := sheet.sheets[name]
	if !found {
		return 0, 0, false
	}
	return state.rowCapacity, state.colCapacity, true
}

func cloneGrid(grid [][]string) [][]string {
	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = append([]string(nil), row...)
	}
	return out
}

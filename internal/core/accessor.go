package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"researchdash/pkg/domain"
)

const (
	// defaultCacheTTL bounds how stale a cached read snapshot may be.
	defaultCacheTTL = 120 * time.Second
	// defaultRowCapacity sizes newly created worksheets.
	defaultRowCapacity = 2000
	// minColumnCapacity keeps headroom for columns added later.
	minColumnCapacity = 26
)

// AccessorConfig assembles an Accessor. Opener and SheetKey are required;
// everything else has working defaults.
type AccessorConfig struct {
	Opener Opener
	// SheetKey is the spreadsheet key, either bare or embedded in a share
	// URL; it is normalized before use.
	SheetKey   string
	CacheTTL   time.Duration
	ReadRetry  RetryPolicy
	WriteRetry RetryPolicy
	Clock      clockwork.Clock
	Logger     Logger
	Metrics    MetricsRecorder
}

// Accessor mediates all traffic to one remote spreadsheet: it memoizes the
// connection, retries rate-limited calls, creates missing worksheets sized
// with headroom, and serves reads from a TTL-bounded snapshot cache that any
// write invalidates wholesale.
type Accessor struct {
	opener  Opener
	key     string
	ttl     time.Duration
	reader  *Retrier
	writer  *Retrier
	clock   clockwork.Clock
	log     Logger
	metrics MetricsRecorder

	connMu sync.Mutex
	conn   Connection

	cacheMu sync.Mutex
	cache   map[string]cacheEntry
}

type cacheEntry struct {
	table    Table
	storedAt time.Time
}

// NewAccessor validates the configuration and constructs an Accessor.
func NewAccessor(cfg AccessorConfig) (*Accessor, error) {
	if cfg.Opener == nil {
		return nil, errors.New("accessor: opener is required")
	}
	key := NormalizeSheetKey(cfg.SheetKey)
	if key == "" {
		return nil, errors.New("accessor: sheet key is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.ReadRetry.MaxAttempts == 0 {
		cfg.ReadRetry = DefaultReadRetry()
	}
	if cfg.WriteRetry.MaxAttempts == 0 {
		cfg.WriteRetry = DefaultWriteRetry()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	a := &Accessor{
		opener:  cfg.Opener,
		key:     key,
		ttl:     cfg.CacheTTL,
		reader:  NewRetrier(cfg.ReadRetry, cfg.Clock),
		writer:  NewRetrier(cfg.WriteRetry, cfg.Clock),
		clock:   cfg.Clock,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		cache:   make(map[string]cacheEntry),
	}
	a.reader.OnRetry(func() { a.metrics.RetryScheduled("read") })
	a.writer.OnRetry(func() { a.metrics.RetryScheduled("write") })
	return a, nil
}

// Key returns the normalized spreadsheet key.
func (a *Accessor) Key() string {
	return a.key
}

// connect opens the spreadsheet once and reuses the handle afterwards.
func (a *Accessor) connect(ctx context.Context) (Connection, error) {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	if a.conn != nil {
		return a.conn, nil
	}
	var conn Connection
	err := a.reader.Do(ctx, func() error {
		var opErr error
		conn, opErr = a.opener.OpenByKey(ctx, a.key)
		return opErr
	})
	if err != nil {
		return nil, a.diagnose(err)
	}
	a.conn = conn
	return conn, nil
}

// diagnose wraps the two actionable remote failures with instructions the
// operator can act on; everything else passes through untouched.
func (a *Accessor) diagnose(err error) error {
	switch {
	case domain.NotFound(err):
		return fmt.Errorf("spreadsheet %q not found; verify the configured sheet key: %w", a.key, err)
	case domain.PermissionDenied(err):
		return fmt.Errorf("access to spreadsheet %q denied; share it with the service account: %w", a.key, err)
	default:
		return err
	}
}

// EnsureWorksheet returns the named worksheet, creating it with the given
// header and capacity headroom when absent. Safe to call repeatedly.
func (a *Accessor) EnsureWorksheet(ctx context.Context, name string, columns []string) (Worksheet, error) {
	conn, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	var ws Worksheet
	err = a.reader.Do(ctx, func() error {
		var opErr error
		ws, opErr = conn.Worksheet(ctx, name)
		return opErr
	})
	if err == nil {
		return ws, nil
	}
	if !errors.Is(err, domain.ErrWorksheetNotFound) {
		return nil, a.diagnose(err)
	}

	cols := len(columns)
	if cols < minColumnCapacity {
		cols = minColumnCapacity
	}
	err = a.writer.Do(ctx, func() error {
		var opErr error
		ws, opErr = conn.AddWorksheet(ctx, name, defaultRowCapacity, cols)
		return opErr
	})
	if err != nil {
		return nil, a.diagnose(err)
	}
	if err := a.writer.Do(ctx, func() error {
		return ws.WriteAll(ctx, [][]string{columns})
	}); err != nil {
		return nil, a.diagnose(err)
	}
	a.log.Info("worksheet created", "worksheet", name, "columns", len(columns))
	return ws, nil
}

// Load reads the worksheet backing the category and period into a normalized
// table, creating it when absent. Fresh results are cached for the
// configured TTL; when the remote stays rate limited through the whole retry
// budget the call degrades to an empty table and logs a warning rather than
// failing the read path.
func (a *Accessor) Load(ctx context.Context, category Category, period Period) (Table, error) {
	name := category.WorksheetName(period)
	columns := category.Columns()
	key := cacheKey(name, columns)

	if table, ok := a.cached(key); ok {
		a.metrics.CacheEvent(true)
		return table, nil
	}
	a.metrics.CacheEvent(false)

	start := a.clock.Now()
	table, err := a.loadRemote(ctx, name, columns)
	a.metrics.Observe(ctx, "load", err == nil, a.clock.Since(start))
	if err != nil {
		if domain.RateLimited(err) {
			a.log.Warn("remote stayed rate limited, serving empty table",
				"worksheet", name, "error", err)
			return domain.NewTable(columns), nil
		}
		return Table{}, a.diagnose(err)
	}

	a.cacheMu.Lock()
	a.cache[key] = cacheEntry{table: table.Clone(), storedAt: a.clock.Now()}
	a.cacheMu.Unlock()
	return table, nil
}

func (a *Accessor) loadRemote(ctx context.Context, name string, columns []string) (Table, error) {
	ws, err := a.EnsureWorksheet(ctx, name, columns)
	if err != nil {
		return Table{}, err
	}
	var grid [][]string
	if err := a.reader.Do(ctx, func() error {
		var opErr error
		grid, opErr = ws.ReadAll(ctx)
		return opErr
	}); err != nil {
		return Table{}, err
	}
	return tableFromGrid(grid).DropEmpty().Normalize(columns), nil
}

// Save replaces the worksheet contents for the category and period with the
// table, header row included, then invalidates every cached snapshot.
func (a *Accessor) Save(ctx context.Context, category Category, period Period, table Table) error {
	name := category.WorksheetName(period)
	columns := category.Columns()
	normalized := table.Normalize(columns)

	ws, err := a.EnsureWorksheet(ctx, name, columns)
	if err != nil {
		return err
	}
	grid := gridFromTable(normalized)
	start := a.clock.Now()
	err = a.writer.Do(ctx, func() error {
		return ws.WriteAll(ctx, grid)
	})
	a.metrics.Observe(ctx, "save", err == nil, a.clock.Since(start))
	if err != nil {
		return a.diagnose(err)
	}
	a.InvalidateCache()
	a.log.Debug("worksheet replaced", "worksheet", name, "rows", len(normalized.Rows))
	return nil
}

// Worksheets lists the worksheet names currently present in the spreadsheet.
func (a *Accessor) Worksheets(ctx context.Context) ([]string, error) {
	conn, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := a.reader.Do(ctx, func() error {
		var opErr error
		names, opErr = conn.Worksheets(ctx)
		return opErr
	}); err != nil {
		return nil, a.diagnose(err)
	}
	return names, nil
}

// InvalidateCache drops every cached read snapshot.
func (a *Accessor) InvalidateCache() {
	a.cacheMu.Lock()
	a.cache = make(map[string]cacheEntry)
	a.cacheMu.Unlock()
}

func (a *Accessor) cached(key string) (Table, bool) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	entry, ok := a.cache[key]
	if !ok {
		return Table{}, false
	}
	if a.clock.Since(entry.storedAt) >= a.ttl {
		delete(a.cache, key)
		return Table{}, false
	}
	return entry.table.Clone(), true
}

// cacheKey couples the worksheet name with a fingerprint of the declared
// columns so a schema change never serves a stale shape.
func cacheKey(name string, columns []string) string {
	return name + "\x00" + strings.Join(columns, "\x1f")
}

// tableFromGrid interprets the first row as the header and the rest as data.
func tableFromGrid(grid [][]string) Table {
	if len(grid) == 0 {
		return Table{}
	}
	header := grid[0]
	t := domain.NewTable(append([]string(nil), header...))
	for _, cells := range grid[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(cells) {
				row[col] = cells[i]
			} else {
				row[col] = ""
			}
		}
		t = t.Append(row)
	}
	return t
}

// gridFromTable renders header plus data rows in column order.
func gridFromTable(t Table) [][]string {
	grid := make([][]string, 0, len(t.Rows)+1)
	grid = append(grid, append([]string(nil), t.Columns...))
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			cells[i] = row[col]
		}
		grid = append(grid, cells)
	}
	return grid
}

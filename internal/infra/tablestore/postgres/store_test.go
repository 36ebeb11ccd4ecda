package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"researchdash/pkg/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStoreWithDB(db), mock
}

func expectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWorksheetLookup(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	conn, err := store.OpenByKey(ctx, "dept-sheet")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	query := regexp.QuoteMeta(`SELECT name FROM worksheets WHERE spreadsheet = $1 AND name = $2`)
	mock.ExpectQuery(query).
		WithArgs("dept-sheet", "Patents__2025–26").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Patents__2025–26"))
	if _, err := conn.Worksheet(ctx, "Patents__2025–26"); err != nil {
		t.Fatalf("lookup: %v", err)
	}

	mock.ExpectQuery(query).
		WithArgs("dept-sheet", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	if _, err := conn.Worksheet(ctx, "missing"); !errors.Is(err, domain.ErrWorksheetNotFound) {
		t.Fatalf("expected ErrWorksheetNotFound, got %v", err)
	}
	expectations(t, mock)
}

func TestReadAllDecodesGrid(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	conn, _ := store.OpenByKey(ctx, "dept-sheet")

	lookup := regexp.QuoteMeta(`SELECT name FROM worksheets WHERE spreadsheet = $1 AND name = $2`)
	mock.ExpectQuery(lookup).
		WithArgs("dept-sheet", "tab").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("tab"))
	ws, err := conn.Worksheet(ctx, "tab")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	read := regexp.QuoteMeta(`SELECT grid FROM worksheets WHERE spreadsheet = $1 AND name = $2`)
	mock.ExpectQuery(read).
		WithArgs("dept-sheet", "tab").
		WillReturnRows(sqlmock.NewRows([]string{"grid"}).AddRow([]byte(`[["Faculty","Status"],["A","Filed"]]`)))
	grid, err := ws.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(grid) != 2 || grid[1][1] != "Filed" {
		t.Fatalf("unexpected grid %v", grid)
	}
	expectations(t, mock)
}

func TestWriteAllRequiresExistingWorksheet(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	conn, _ := store.OpenByKey(ctx, "dept-sheet")

	add := regexp.QuoteMeta(`INSERT INTO worksheets`)
	mock.ExpectExec(add).
		WithArgs("dept-sheet", "tab", 2000, 26, []byte(`[]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ws, err := conn.AddWorksheet(ctx, "tab", 2000, 26)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	write := regexp.QuoteMeta(`UPDATE worksheets SET grid = $1 WHERE spreadsheet = $2 AND name = $3`)
	mock.ExpectExec(write).
		WithArgs([]byte(`[["h"]]`), "dept-sheet", "tab").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := ws.WriteAll(ctx, [][]string{{"h"}}); !errors.Is(err, domain.ErrWorksheetNotFound) {
		t.Fatalf("expected ErrWorksheetNotFound on zero rows, got %v", err)
	}
	expectations(t, mock)
}

func TestEmptyKeyRejected(t *testing.T) {
	store, _ := newMockStore(t)
	if _, err := store.OpenByKey(context.Background(), ""); !domain.NotFound(err) {
		t.Fatalf("expected 404 for empty key, got %v", err)
	}
}

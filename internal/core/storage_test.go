package core

import (
	"testing"

	"researchdash/internal/infra/tablestore/memory"
	"researchdash/internal/infra/tablestore/sqlite"
)

func TestOpenTableStoreMemory(t *testing.T) {
	t.Setenv("RESEARCHDASH_STORE_DRIVER", "memory")
	t.Setenv("RESEARCHDASH_SHEET_KEY", testKey)

	opener, err := OpenTableStore()
	if err != nil {
		t.Fatalf("OpenTableStore: %v", err)
	}
	if _, ok := opener.(*memory.Store); !ok {
		t.Fatalf("opener = %T, want *memory.Store", opener)
	}
}

func TestOpenTableStoreDefaultsToSQLite(t *testing.T) {
	t.Setenv("RESEARCHDASH_STORE_DRIVER", "")
	t.Setenv("RESEARCHDASH_SQLITE_DIR", t.TempDir())

	opener, err := OpenTableStore()
	if err != nil {
		t.Fatalf("OpenTableStore: %v", err)
	}
	store, ok := opener.(*sqlite.Store)
	if !ok {
		t.Fatalf("opener = %T, want *sqlite.Store", opener)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenTableStoreUnknownDriver(t *testing.T) {
	t.Setenv("RESEARCHDASH_STORE_DRIVER", "etcd")
	if _, err := OpenTableStore(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenTableStoreRESTRequiresURL(t *testing.T) {
	t.Setenv("RESEARCHDASH_STORE_DRIVER", "rest")
	t.Setenv("RESEARCHDASH_REST_URL", "")
	if _, err := OpenTableStore(); err == nil {
		t.Fatal("expected error when the rest url is unset")
	}
}

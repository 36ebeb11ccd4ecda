package core

import (
	"fmt"
	"os"

	"researchdash/internal/infra/tablestore/memory"
	"researchdash/internal/infra/tablestore/postgres"
	"researchdash/internal/infra/tablestore/rest"
	"researchdash/internal/infra/tablestore/sqlite"
	"researchdash/pkg/domain"
)

// StorageDriver identifies a concrete table store backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite files
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageREST     StorageDriver = "rest"     // remote sheets-style HTTP service
)

// OpenTableStore selects a backend using environment variables. Defaults to
// sqlite when unset.
//
//	RESEARCHDASH_STORE_DRIVER: memory|sqlite|postgres|rest (default sqlite)
//	RESEARCHDASH_SHEET_KEY: spreadsheet key or share URL (all drivers)
//	RESEARCHDASH_SQLITE_DIR: directory for sqlite files (default ./data)
//	RESEARCHDASH_POSTGRES_DSN: postgres DSN when driver=postgres
//	RESEARCHDASH_REST_URL / RESEARCHDASH_REST_TOKEN: remote service when driver=rest
func OpenTableStore() (domain.Opener, error) {
	driver := os.Getenv("RESEARCHDASH_STORE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		key := NormalizeSheetKey(os.Getenv("RESEARCHDASH_SHEET_KEY"))
		return memory.NewStore(key), nil
	case StorageSQLite:
		dir := os.Getenv("RESEARCHDASH_SQLITE_DIR")
		if dir == "" {
			dir = "data"
		}
		return sqlite.NewStore(dir)
	case StoragePostgres:
		return postgres.NewStore(os.Getenv("RESEARCHDASH_POSTGRES_DSN"))
	case StorageREST:
		return rest.OpenFromEnv()
	default:
		return nil, fmt.Errorf("unknown store driver %s", driver)
	}
}

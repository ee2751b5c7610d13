package testutil

import (
	"database/sql"
	"fldoe-standards/lib/sqliteutil"
	"fldoe-standards/lib/telemetry"
	"fmt"
	"path/filepath"
	"testing"
)

type ServiceParams struct {
	Name string
	// if unspecified, it will skip applying a schema
	DbSchema string
	// if unspecified, a fresh database is created in a temp directory
	DbPath string
}

type ServiceResult struct {
	DB     *sql.DB
	DbPath string
}

// SetupService prepares telemetry and a sqlite database for a test,
// both are torn down when the test finishes.
func SetupService(t testing.TB, params ServiceParams) ServiceResult {
	cleanup := telemetry.SetupForTesting(t, fmt.Sprintf("test:%s", params.Name))
	t.Cleanup(cleanup)

	dbpath := params.DbPath
	if dbpath == "" {
		dbpath = filepath.Join(t.TempDir(), "test.db")
	}
	sqlite, err := sqliteutil.OpenDB(params.DbSchema, dbpath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		sqlite.Close()
	})

	return ServiceResult{
		DB:     sqlite,
		DbPath: dbpath,
	}
}

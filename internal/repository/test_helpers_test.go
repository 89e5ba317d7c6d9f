package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/iliyamo/booking-reconciler/internal/database"
)

// createTestStore opens a migrated SQLite store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, database.DriverSQLite); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	return NewStore(db, database.TxOptions(database.DriverSQLite))
}

// queryIDs returns the first column of every row matched by query.
func queryIDs(t *testing.T, store *Store, query string, args ...any) []uint64 {
	t.Helper()
	rows, err := store.DB().Query(query, args...)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("Scan() failed: %v", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	return ids
}

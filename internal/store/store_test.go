package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dukerupert/famquest/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedFamily creates a family with one member per name and returns their ids.
func seedFamily(t *testing.T, db *sql.DB, names ...string) (int64, []int64) {
	t.Helper()
	ctx := context.Background()

	f, err := NewFamilyStore(db).Create(ctx, "Test Family")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}

	ms := NewFamilyMemberStore(db)
	ids := make([]int64, len(names))
	for i, name := range names {
		m, err := ms.Create(ctx, f.ID, name, "#3B82F6", "😀")
		if err != nil {
			t.Fatalf("create member %s: %v", name, err)
		}
		ids[i] = m.ID
	}
	return f.ID, ids
}

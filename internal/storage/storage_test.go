package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/lotas/tabflow/internal/colors"
)

// testDB creates a temporary database for testing.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "tabflow.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not found: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if count != len(migrations) {
		t.Errorf("expected %d migrations recorded, got %d", len(migrations), count)
	}
}

func TestOpenDBTwiceIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "again.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("first OpenDB: %v", err)
	}
	db.Close()

	db, err = OpenDB(dbPath)
	if err != nil {
		t.Fatalf("second OpenDB: %v", err)
	}
	defer db.Close()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if count != len(migrations) {
		t.Errorf("expected %d migrations recorded, got %d", len(migrations), count)
	}
}

func TestLoadColorStateEmpty(t *testing.T) {
	db := testDB(t)

	s, err := LoadColorState(context.Background(), db)
	if err != nil {
		t.Fatalf("LoadColorState: %v", err)
	}
	if len(s.Domains) != 0 || s.NextIndex != 0 {
		t.Errorf("got %+v, want empty state", s)
	}
	if s.Domains == nil {
		t.Error("expected non-nil map")
	}
}

func TestSaveAndLoadColorState(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	want := colors.State{
		Domains:   map[string]string{"example.com": "#007AFF", "go.dev": "#34C759"},
		NextIndex: 2,
	}
	if err := SaveColorState(ctx, db, want); err != nil {
		t.Fatalf("SaveColorState: %v", err)
	}

	got, err := LoadColorState(ctx, db)
	if err != nil {
		t.Fatalf("LoadColorState: %v", err)
	}
	if got.NextIndex != 2 {
		t.Errorf("NextIndex = %d, want 2", got.NextIndex)
	}
	if len(got.Domains) != 2 || got.Domains["go.dev"] != "#34C759" {
		t.Errorf("Domains = %v", got.Domains)
	}

	// Overwrite: both keys change together.
	want.Domains["mozilla.org"] = "#FF9500"
	want.NextIndex = 3
	if err := SaveColorState(ctx, db, want); err != nil {
		t.Fatalf("SaveColorState overwrite: %v", err)
	}
	got, _ = LoadColorState(ctx, db)
	if got.NextIndex != 3 || len(got.Domains) != 3 {
		t.Errorf("after overwrite got %+v", got)
	}
}

func TestLoadColorStateCorrupt(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := SetValues(ctx, db, map[string]string{KeyColorIndex: "not-a-number"}); err != nil {
		t.Fatalf("SetValues: %v", err)
	}
	if _, err := LoadColorState(ctx, db); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestGetValueMissing(t *testing.T) {
	db := testDB(t)

	_, ok, err := GetValue(context.Background(), db, "nope")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if ok {
		t.Error("expected missing key")
	}
}

func TestColorStoreRoundTrip(t *testing.T) {
	db := testDB(t)
	store := ColorStore{DB: db}

	a := colors.NewAssigner(store, 0)
	a.Assign("example.com")
	a.Assign("go.dev")
	a.Close()

	b := colors.NewAssigner(store, 0)
	if err := b.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := b.Assign("go.dev"); got != colors.Palette[1] {
		t.Errorf("go.dev = %s, want %s", got, colors.Palette[1])
	}
	if got := b.Assign("mozilla.org"); got != colors.Palette[2] {
		t.Errorf("mozilla.org = %s, want %s", got, colors.Palette[2])
	}
}

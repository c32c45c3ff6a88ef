package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"bottleswap-server/internal/platform/storage"
)

func newTestSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&storage.ScanSession{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func TestSQLiteStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLite(newTestSQLiteDB(t), Config{TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewSQLite error: %v", err)
	}

	session := sampleSession("sqlite-1")
	session.Provenance = map[string]any{"scale_factor": 0.5}

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Brand != session.Brand || got.Shape != "bottle" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.Region == nil || got.Region.Height != 0.5 {
		t.Fatalf("region did not survive the round trip: %+v", got.Region)
	}
	if got.Provenance["scale_factor"] == nil {
		t.Fatalf("provenance did not survive the round trip: %+v", got.Provenance)
	}

	// Saving again replaces, not duplicates.
	session.Status = "morphed"
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("second Save error: %v", err)
	}
	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one session after upsert, got %v", list)
	}

	if err := store.Remove(ctx, session.ID); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := store.Get(ctx, session.ID); err == nil {
		t.Fatal("expected missing session after removal")
	}
}

func TestSQLiteStoreCleanup(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLite(newTestSQLiteDB(t), Config{TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewSQLite error: %v", err)
	}

	expired := time.Now().Add(-time.Minute)
	session := sampleSession("sqlite-expired")
	session.CreatedAt = time.Now().Add(-time.Hour)
	session.ExpiresAt = &expired

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := store.CleanupExpired(ctx); err != nil {
		t.Fatalf("CleanupExpired error: %v", err)
	}
	if _, err := store.Get(ctx, session.ID); err == nil {
		t.Fatal("expected get to fail for expired session")
	}
}

func TestFactorySelectsDriver(t *testing.T) {
	mem, err := New(Config{Driver: DriverMemory}, Dependencies{})
	if err != nil {
		t.Fatalf("memory driver: %v", err)
	}
	_ = mem.Close(context.Background())

	if _, err := New(Config{Driver: DriverSQLite}, Dependencies{}); err == nil {
		t.Fatal("sqlite driver without handle should fail")
	}
	if _, err := New(Config{Driver: "bogus"}, Dependencies{}); err == nil {
		t.Fatal("unknown driver should fail")
	}
}

// Package testutil provides database fixtures for package tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/islandsafe/patrolplan/internal/database"
)

// NewTestDB creates a migrated database in a temp dir. It is closed when
// the test finishes.
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "patrol.db"),
		Profile: database.ProfileCache,
		Name:    "patrol",
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// RegionFixture is a row inserted by SeedRegions.
type RegionFixture struct {
	ID        int
	Name      string
	Risk      *int
	Allocated int
}

// SeedRegions inserts the given regions.
func SeedRegions(t *testing.T, db *sql.DB, regions ...RegionFixture) {
	t.Helper()
	for _, r := range regions {
		_, err := db.Exec(`INSERT INTO regions (id, name, current_risk, police_allocated, updated_at)
			VALUES (?, ?, ?, ?, ?)`, r.ID, r.Name, r.Risk, r.Allocated, time.Now().Unix())
		if err != nil {
			t.Fatalf("failed to seed region %d: %v", r.ID, err)
		}
	}
}

// EventFixture is a row inserted by SeedEvents.
type EventFixture struct {
	RegionID  int
	Type      string
	Severity  int
	CreatedAt time.Time
}

// SeedEvents inserts intelligence rows with fixed timestamps.
func SeedEvents(t *testing.T, db *sql.DB, events ...EventFixture) {
	t.Helper()
	for _, e := range events {
		typ := e.Type
		if typ == "" {
			typ = "Crime"
		}
		created := e.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		_, err := db.Exec(`INSERT INTO intelligence (region_id, type, description, severity, created_at)
			VALUES (?, ?, ?, ?, ?)`, e.RegionID, typ, "seeded test report", e.Severity, created.UnixMilli())
		if err != nil {
			t.Fatalf("failed to seed event for region %d: %v", e.RegionID, err)
		}
	}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

package devstate

import (
	"path/filepath"
	"testing"
	"time"

	"checkweigh/core/config"
	"checkweigh/core/store"
)

func testManager(t *testing.T) (*Manager, *store.DB) {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	// nil Redis exercises the degraded SQL-only path
	return NewManager(db, nil), db
}

func TestHeartbeatWithoutRedis(t *testing.T) {
	m, db := testManager(t)
	db.CreateOrRotateDevice("rpi1", "key-1", "")

	m.RecordHeartbeat("rpi1", 120, 227.0, "v1")

	all, err := m.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d devices, want 1", len(all))
	}
	if all[0].Status != "active" {
		t.Errorf("status = %q, want active", all[0].Status)
	}
	if time.Since(all[0].LastSeen) > time.Minute {
		t.Errorf("last_seen not updated: %v", all[0].LastSeen)
	}
}

func TestSilentDeviceIsUnknown(t *testing.T) {
	m, db := testManager(t)
	// Registered but never spoke; last_seen stays NULL
	if _, err := db.Exec(`INSERT INTO devices (name, api_key) VALUES ('rpi2', 'key-2')`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	all, err := m.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 1 || all[0].Status != "unknown" {
		t.Fatalf("got %+v, want one unknown device", all)
	}
}

func TestGetAllPersistsStaleStatus(t *testing.T) {
	m, db := testManager(t)
	db.CreateOrRotateDevice("rpi1", "key-1", "")
	old := time.Now().UTC().Add(-StaleAfter - time.Minute).Format("2006-01-02 15:04:05")
	if _, err := db.Exec(db.Q(`UPDATE devices SET last_seen=? WHERE name=?`), old, "rpi1"); err != nil {
		t.Fatalf("age device: %v", err)
	}

	all, err := m.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 1 || all[0].Status != "stale" {
		t.Fatalf("got %+v, want one stale device", all)
	}

	// The computed staleness must land in the device row itself.
	stored, err := db.ListDevices()
	if err != nil {
		t.Fatalf("list devices: %v", err)
	}
	if stored[0].Status != "stale" {
		t.Errorf("stored status = %q, want stale", stored[0].Status)
	}
}

func TestResetWithoutRedis(t *testing.T) {
	m, _ := testManager(t)
	// Degraded mode has no live records to drop; must be a no-op.
	m.Reset()
}

func TestStaleStatus(t *testing.T) {
	if got := staleStatus(time.Now().Add(-StaleAfter - time.Second)); got != "stale" {
		t.Errorf("old heartbeat: %q, want stale", got)
	}
	if got := staleStatus(time.Now()); got != "active" {
		t.Errorf("fresh heartbeat: %q, want active", got)
	}
}

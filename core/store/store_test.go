package store

import (
	"os"
	"path/filepath"
	"testing"

	"checkweigh/core/config"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: dbPath},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})
	return db
}

// --- Device tests ---

func TestDeviceRegistrationAndRotation(t *testing.T) {
	db := testDB(t)

	id1, err := db.CreateOrRotateDevice("rpi1", "key-1", "10.0.0.5")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id1 == 0 {
		t.Fatal("ID should be assigned")
	}

	got, err := db.GetDeviceByKey("key-1")
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if got.Name != "rpi1" || got.ID != id1 {
		t.Errorf("got %+v", got)
	}

	// Re-registering the same name rotates the key, same row
	id2, err := db.CreateOrRotateDevice("rpi1", "key-2", "10.0.0.5")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if id2 != id1 {
		t.Errorf("rotation changed ID: %d -> %d", id1, id2)
	}
	if _, err := db.GetDeviceByKey("key-1"); !IsNotFound(err) {
		t.Errorf("old key should be gone, got err=%v", err)
	}
	if _, err := db.GetDeviceByKey("key-2"); err != nil {
		t.Errorf("new key lookup: %v", err)
	}
}

func TestDeviceDeleteRequiresMatchingKey(t *testing.T) {
	db := testDB(t)

	if _, err := db.CreateOrRotateDevice("rpi1", "key-1", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := db.DeleteDeviceByNameAndKey("rpi1", "wrong-key")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 0 {
		t.Fatal("delete with wrong key should remove nothing")
	}

	n, err = db.DeleteDeviceByNameAndKey("rpi1", "key-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted %d rows, want 1", n)
	}
}

func TestResetDevices(t *testing.T) {
	db := testDB(t)

	db.CreateOrRotateDevice("rpi1", "key-1", "")
	db.CreateOrRotateDevice("rpi2", "key-2", "")

	n, err := db.ResetDevices()
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n != 2 {
		t.Errorf("reset removed %d rows, want 2", n)
	}
	devices, err := db.ListDevices()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("devices remain after reset: %+v", devices)
	}
}

// --- Product tests ---

func TestProductUpsert(t *testing.T) {
	db := testDB(t)

	id, err := db.UpsertProduct("jam 500g", 500, 3)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	p, err := db.GetProduct(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.WeightGrams != 500 || p.ModelLabel != 3 {
		t.Errorf("got %+v", p)
	}

	// Same name updates in place
	id2, err := db.UpsertProduct("jam 500g", 505, 4)
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if id2 != id {
		t.Errorf("upsert changed ID: %d -> %d", id, id2)
	}
	p, _ = db.GetProduct(id)
	if p.WeightGrams != 505 || p.ModelLabel != 4 {
		t.Errorf("update not applied: %+v", p)
	}

	products, err := db.ListProducts()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("catalog has %d entries, want 1", len(products))
	}
}

// --- Incident tests ---

func TestIncidentLog(t *testing.T) {
	db := testDB(t)

	pid, _ := db.UpsertProduct("jam 500g", 500, 3)
	did, _ := db.CreateOrRotateDevice("rpi1", "key-1", "")

	if _, err := db.InsertIncident(&pid, &did, 510.0, 3, "correct"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.InsertIncident(&pid, &did, 530.0, 3, "incorrect"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.InsertIncident(nil, nil, 12.0, -1, "error"); err != nil {
		t.Fatalf("insert orphan: %v", err)
	}

	incidents, err := db.ListRecentIncidents(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(incidents) != 3 {
		t.Fatalf("got %d incidents, want 3", len(incidents))
	}
	// Newest first
	if incidents[0].Verdict != "error" {
		t.Errorf("first verdict = %q, want error", incidents[0].Verdict)
	}
	if incidents[0].ProductName != nil {
		t.Errorf("orphan incident should have nil product name")
	}
	if incidents[2].ProductName == nil || *incidents[2].ProductName != "jam 500g" {
		t.Errorf("joined product name = %v", incidents[2].ProductName)
	}

	n, err := db.CountIncidents()
	if err != nil || n != 3 {
		t.Errorf("count = %d (err %v), want 3", n, err)
	}
}

// --- Admin + audit tests ---

func TestAdminUsers(t *testing.T) {
	db := testDB(t)

	exists, err := db.AdminUserExists()
	if err != nil || exists {
		t.Fatalf("fresh db exists=%v err=%v", exists, err)
	}

	if err := db.CreateAdminUser("admin", "hash1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	u, err := db.GetAdminUser("admin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.PasswordHash != "hash1" {
		t.Errorf("hash = %q", u.PasswordHash)
	}

	if err := db.UpdateAdminPassword("admin", "hash2"); err != nil {
		t.Fatalf("update: %v", err)
	}
	u, _ = db.GetAdminUser("admin")
	if u.PasswordHash != "hash2" {
		t.Errorf("hash after update = %q", u.PasswordHash)
	}
}

func TestAuditLog(t *testing.T) {
	db := testDB(t)

	db.AppendAudit("device", 1, "register", "", "rpi1", "system")
	db.AppendAudit("product", 2, "upsert", "", "jam 500g", "admin")

	entries, err := db.ListAuditLog(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].EntityType != "product" {
		t.Errorf("newest first: got %q", entries[0].EntityType)
	}
}

func TestRebind(t *testing.T) {
	got := Rebind("SELECT * FROM devices WHERE name=? AND api_key=?")
	want := "SELECT * FROM devices WHERE name=$1 AND api_key=$2"
	if got != want {
		t.Errorf("Rebind = %q, want %q", got, want)
	}
}

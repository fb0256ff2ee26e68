package messaging

import (
	"path/filepath"
	"testing"

	"checkweigh/core/config"
	"checkweigh/core/devstate"
	"checkweigh/core/store"
	"checkweigh/protocol"
)

func testHandler(t *testing.T) (*CoreHandler, *store.DB) {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCoreHandler(devstate.NewManager(db, nil)), db
}

func encode(t *testing.T, msgType string, dst protocol.Address, payload any) []byte {
	t.Helper()
	env, err := protocol.NewEnvelope(msgType, protocol.Address{Role: protocol.RoleEdge, Device: "rpi1"}, dst, payload)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	data, err := env.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func TestConsumerRoutesHeartbeatToDeviceState(t *testing.T) {
	handler, db := testHandler(t)
	db.CreateOrRotateDevice("rpi1", "key-1", "")

	c := NewConsumer(nil, "checkweigh/status", handler)
	c.ingestor.HandleRaw(encode(t, protocol.TypeDeviceHeartbeat,
		protocol.Address{Role: protocol.RoleCore},
		&protocol.DeviceHeartbeat{DeviceName: "rpi1", Uptime: 60, WeightGrams: 227, ModelVersion: "v1"}))

	dev, err := db.GetDeviceByName("rpi1")
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if dev.LastSeen == nil {
		t.Fatal("heartbeat did not touch last_seen")
	}
}

func TestConsumerIgnoresEdgeAddressedTraffic(t *testing.T) {
	handler, db := testHandler(t)
	db.CreateOrRotateDevice("rpi1", "key-1", "")

	c := NewConsumer(nil, "checkweigh/status", handler)
	// Addressed to the fleet, not to the core; must not be processed
	c.ingestor.HandleRaw(encode(t, protocol.TypeDeviceHeartbeat,
		protocol.Address{Role: protocol.RoleEdge, Device: protocol.DeviceBroadcast},
		&protocol.DeviceHeartbeat{DeviceName: "rpi1", Uptime: 60}))

	dev, _ := db.GetDeviceByName("rpi1")
	if dev.LastSeen != nil {
		t.Fatal("edge-addressed message should have been filtered")
	}
}

func TestHelloPopulatesLiveFields(t *testing.T) {
	handler, db := testHandler(t)
	db.CreateOrRotateDevice("rpi1", "key-1", "")

	c := NewConsumer(nil, "checkweigh/status", handler)
	c.ingestor.HandleRaw(encode(t, protocol.TypeDeviceHello,
		protocol.Address{Role: protocol.RoleCore},
		&protocol.DeviceHello{DeviceName: "rpi1", Hostname: "scale-rig", Version: "1.0.0"}))

	dev, _ := db.GetDeviceByName("rpi1")
	if dev.LastSeen == nil {
		t.Fatal("hello did not touch last_seen")
	}
}

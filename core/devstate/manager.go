// Package devstate tracks the live state of edge devices: SQL holds the
// durable registration, Redis the volatile heartbeat view. A nil Redis
// store degrades to SQL-only operation.
package devstate

import (
	"context"
	"log"
	"time"

	"checkweigh/core/store"
)

// StaleAfter is how long a device may go silent before it is shown as
// unreachable.
const StaleAfter = 2 * time.Minute

type Manager struct {
	db    *store.DB
	redis *RedisStore
}

func NewManager(db *store.DB, redis *RedisStore) *Manager {
	return &Manager{db: db, redis: redis}
}

// RecordHello registers a device announcement.
func (m *Manager) RecordHello(deviceName, hostname, version, modelVersion string) {
	if err := m.db.TouchDeviceLastSeen(deviceName); err != nil {
		log.Printf("devstate: touch %s: %v", deviceName, err)
	}
	m.setLive(&DeviceLive{
		DeviceName:   deviceName,
		Hostname:     hostname,
		Version:      version,
		ModelVersion: modelVersion,
		LastSeen:     time.Now(),
		Status:       "active",
	})
}

// RecordHeartbeat updates the device's live view from a heartbeat.
func (m *Manager) RecordHeartbeat(deviceName string, uptime int64, weightGrams float64, modelVersion string) {
	if err := m.db.TouchDeviceLastSeen(deviceName); err != nil {
		log.Printf("devstate: touch %s: %v", deviceName, err)
	}

	live := &DeviceLive{
		DeviceName:   deviceName,
		Uptime:       uptime,
		WeightGrams:  weightGrams,
		ModelVersion: modelVersion,
		LastSeen:     time.Now(),
		Status:       "active",
	}
	// Preserve hello-only fields across heartbeats
	if prev := m.getLive(deviceName); prev != nil {
		live.Hostname = prev.Hostname
		live.Version = prev.Version
	}
	m.setLive(live)
}

// GetAll returns the live view of every known device. Devices silent
// past StaleAfter are marked stale; registered devices with no live
// record at all show as unknown.
func (m *Manager) GetAll() ([]DeviceLive, error) {
	devices, err := m.db.ListDevices()
	if err != nil {
		return nil, err
	}

	var out []DeviceLive
	for _, d := range devices {
		entry := DeviceLive{DeviceName: d.Name, Status: "unknown"}
		if live := m.getLive(d.Name); live != nil {
			entry = *live
			entry.Status = staleStatus(live.LastSeen)
		} else if d.LastSeen != nil {
			entry.LastSeen = *d.LastSeen
			entry.Status = staleStatus(entry.LastSeen)
		}
		// Write computed staleness back so the device row agrees even
		// when Redis is unavailable.
		if entry.Status != "unknown" && entry.Status != d.Status {
			if err := m.db.MarkDeviceStatus(d.Name, entry.Status); err != nil {
				log.Printf("devstate: mark %s %s: %v", d.Name, entry.Status, err)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// Reset drops the live record of every device, e.g. after a registry
// wipe.
func (m *Manager) Reset() {
	if m.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.redis.FlushAll(ctx); err != nil {
		log.Printf("devstate: reset: %v", err)
	}
}

// Forget drops the live record for a device, e.g. after unregistration.
func (m *Manager) Forget(deviceName string) {
	if m.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.redis.RemoveDevice(ctx, deviceName); err != nil {
		log.Printf("devstate: forget %s: %v", deviceName, err)
	}
}

func (m *Manager) setLive(live *DeviceLive) {
	if m.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.redis.SetLive(ctx, live); err != nil {
		log.Printf("devstate: set live %s: %v", live.DeviceName, err)
	}
}

func (m *Manager) getLive(deviceName string) *DeviceLive {
	if m.redis == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	live, err := m.redis.GetLive(ctx, deviceName)
	if err != nil {
		log.Printf("devstate: get live %s: %v", deviceName, err)
		return nil
	}
	return live
}

func staleStatus(lastSeen time.Time) string {
	if time.Since(lastSeen) > StaleAfter {
		return "stale"
	}
	return "active"
}

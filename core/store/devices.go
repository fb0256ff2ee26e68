package store

import (
	"database/sql"
	"errors"
	"time"
)

// Device is a registered edge node.
type Device struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	APIKey    string     `json:"-"`
	Address   string     `json:"address"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	LastSeen  *time.Time `json:"last_seen"`
}

// CreateOrRotateDevice upserts a device by name with a fresh API key.
// Re-registering an existing device invalidates its previous key.
func (db *DB) CreateOrRotateDevice(name, apiKey, address string) (int64, error) {
	_, err := db.Exec(db.Q(`
		INSERT INTO devices (name, api_key, address, status)
		VALUES (?, ?, ?, 'active')
		ON CONFLICT(name) DO UPDATE SET
			api_key = excluded.api_key,
			address = excluded.address,
			status = 'active'
	`), name, apiKey, address)
	if err != nil {
		return 0, err
	}
	var id int64
	err = db.QueryRow(db.Q(`SELECT id FROM devices WHERE name=?`), name).Scan(&id)
	return id, err
}

// GetDeviceByKey looks up a device by its API key.
func (db *DB) GetDeviceByKey(apiKey string) (*Device, error) {
	var d Device
	var createdAt any
	var lastSeen any
	err := db.QueryRow(db.Q(`
		SELECT id, name, api_key, address, status, created_at, last_seen
		FROM devices WHERE api_key=?
	`), apiKey).Scan(&d.ID, &d.Name, &d.APIKey, &d.Address, &d.Status, &createdAt, &lastSeen)
	if err != nil {
		return nil, err
	}
	d.CreatedAt = parseTime(createdAt)
	d.LastSeen = parseTimePtr(lastSeen)
	return &d, nil
}

// GetDeviceByName looks up a device by name.
func (db *DB) GetDeviceByName(name string) (*Device, error) {
	var d Device
	var createdAt any
	var lastSeen any
	err := db.QueryRow(db.Q(`
		SELECT id, name, api_key, address, status, created_at, last_seen
		FROM devices WHERE name=?
	`), name).Scan(&d.ID, &d.Name, &d.APIKey, &d.Address, &d.Status, &createdAt, &lastSeen)
	if err != nil {
		return nil, err
	}
	d.CreatedAt = parseTime(createdAt)
	d.LastSeen = parseTimePtr(lastSeen)
	return &d, nil
}

// DeleteDeviceByNameAndKey removes a device only when the caller holds
// its current key. Returns the number of rows removed.
func (db *DB) DeleteDeviceByNameAndKey(name, apiKey string) (int64, error) {
	res, err := db.Exec(db.Q(`DELETE FROM devices WHERE name=? AND api_key=?`), name, apiKey)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// TouchDeviceLastSeen updates the device's last_seen timestamp.
func (db *DB) TouchDeviceLastSeen(name string) error {
	_, err := db.Exec(db.Q(`
		UPDATE devices SET last_seen = datetime('now','localtime'), status = 'active'
		WHERE name=?
	`), name)
	return err
}

// MarkDeviceStatus sets a device's status field.
func (db *DB) MarkDeviceStatus(name, status string) error {
	_, err := db.Exec(db.Q(`UPDATE devices SET status=? WHERE name=?`), status, name)
	return err
}

// ListDevices returns all registered devices.
func (db *DB) ListDevices() ([]Device, error) {
	rows, err := db.Query(db.Q(`
		SELECT id, name, api_key, address, status, created_at, last_seen
		FROM devices ORDER BY name
	`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		var createdAt, lastSeen any
		if err := rows.Scan(&d.ID, &d.Name, &d.APIKey, &d.Address, &d.Status, &createdAt, &lastSeen); err != nil {
			return nil, err
		}
		d.CreatedAt = parseTime(createdAt)
		d.LastSeen = parseTimePtr(lastSeen)
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// ResetDevices removes every device registration. Returns the number of
// rows removed.
func (db *DB) ResetDevices() (int64, error) {
	res, err := db.Exec(`DELETE FROM devices`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IsNotFound reports whether err is the no-rows sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

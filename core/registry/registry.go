// Package registry manages device enrollment and API key auth.
package registry

import (
	"errors"
	"fmt"
	"log"

	"checkweigh/core/store"

	"github.com/google/uuid"
)

var (
	// ErrUnauthorized covers bad shared secrets and unknown API keys.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the named device is not registered.
	ErrNotFound = errors.New("device not found")
	// ErrInvalidName means the request named no device. A malformed
	// request, not a credential failure.
	ErrInvalidName = errors.New("invalid device name")
)

// Registry issues and checks device credentials.
type Registry struct {
	db           *store.DB
	sharedSecret string
}

func New(db *store.DB, sharedSecret string) *Registry {
	return &Registry{db: db, sharedSecret: sharedSecret}
}

// Register enrolls a device under the shared provisioning secret and
// returns its ID and a fresh API key. Re-registering an existing name
// rotates the key; the old one stops working immediately.
func (r *Registry) Register(deviceName, secret, address string) (int64, string, error) {
	if deviceName == "" {
		return 0, "", ErrInvalidName
	}
	if secret != r.sharedSecret {
		return 0, "", fmt.Errorf("%w: bad shared secret", ErrUnauthorized)
	}

	apiKey := uuid.New().String()
	id, err := r.db.CreateOrRotateDevice(deviceName, apiKey, address)
	if err != nil {
		return 0, "", fmt.Errorf("register device %q: %w", deviceName, err)
	}
	if err := r.db.AppendAudit("device", id, "register", "", deviceName, "system"); err != nil {
		log.Printf("registry: audit register: %v", err)
	}
	log.Printf("registry: device %q registered (id=%d)", deviceName, id)
	return id, apiKey, nil
}

// CheckSecret reports whether the presented provisioning secret matches.
func (r *Registry) CheckSecret(secret string) bool {
	return secret == r.sharedSecret
}

// Authenticate resolves an API key to its device. Empty or never-issued
// keys fail with ErrUnauthorized.
func (r *Registry) Authenticate(apiKey string) (*store.Device, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing api key", ErrUnauthorized)
	}
	dev, err := r.db.GetDeviceByKey(apiKey)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: unknown api key", ErrUnauthorized)
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return dev, nil
}

// Unregister removes a device. The caller must present the device's
// current API key.
func (r *Registry) Unregister(deviceName, apiKey string) error {
	n, err := r.db.DeleteDeviceByNameAndKey(deviceName, apiKey)
	if err != nil {
		return fmt.Errorf("unregister device %q: %w", deviceName, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, deviceName)
	}
	if err := r.db.AppendAudit("device", 0, "unregister", deviceName, "", "system"); err != nil {
		log.Printf("registry: audit unregister: %v", err)
	}
	return nil
}

// Reset wipes every device registration. Requires the shared secret.
func (r *Registry) Reset(secret string) (int64, error) {
	if secret != r.sharedSecret {
		return 0, fmt.Errorf("%w: bad shared secret", ErrUnauthorized)
	}
	n, err := r.db.ResetDevices()
	if err != nil {
		return 0, fmt.Errorf("reset devices: %w", err)
	}
	if err := r.db.AppendAudit("device", 0, "reset", fmt.Sprintf("%d devices", n), "", "system"); err != nil {
		log.Printf("registry: audit reset: %v", err)
	}
	log.Printf("registry: removed %d device registrations", n)
	return n, nil
}

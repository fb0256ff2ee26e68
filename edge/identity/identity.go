// Package identity manages the edge device's registration state and its
// persisted API-key credential.
package identity

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// State is the registration state of the device.
type State int

const (
	StateUnregistered State = iota
	StateRegistering
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

// Registrar is the core-side registration endpoint as seen from the edge.
type Registrar interface {
	Register(ctx context.Context, deviceName, sharedSecret string) (deviceID int64, apiKey string, err error)
	Unregister(ctx context.Context, deviceName, apiKey string) error
}

// Identity holds the device's credential and registration state.
// Bootstrap and Rotate are not safe to run concurrently with each other;
// the mutex protects readers against an in-flight transition.
type Identity struct {
	mu         sync.Mutex
	credFile   string
	deviceName string
	state      State
	apiKey     string
	deviceID   int64
}

// New creates an Identity in the unregistered state.
func New(credFile, deviceName string) *Identity {
	return &Identity{
		credFile:   credFile,
		deviceName: deviceName,
		state:      StateUnregistered,
	}
}

// Bootstrap establishes a registered identity. If a persisted credential
// exists, it is loaded without any network call. Otherwise the device
// registers with the core using the shared secret; a failure here is
// fatal to startup, the device never proceeds with an empty key.
func (id *Identity) Bootstrap(ctx context.Context, reg Registrar, sharedSecret string) error {
	id.mu.Lock()
	defer id.mu.Unlock()

	data, err := os.ReadFile(id.credFile)
	if err == nil {
		key := strings.TrimSpace(string(data))
		if key != "" {
			id.apiKey = key
			id.state = StateRegistered
			log.Printf("identity: loaded credential from %s", id.credFile)
			return nil
		}
		// Empty file is treated as no credential.
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read credential file: %w", err)
	}

	id.state = StateRegistering
	deviceID, key, err := reg.Register(ctx, id.deviceName, sharedSecret)
	if err != nil {
		id.state = StateUnregistered
		return fmt.Errorf("register device %q: %w", id.deviceName, err)
	}
	if key == "" {
		id.state = StateUnregistered
		return fmt.Errorf("register device %q: core returned empty api key", id.deviceName)
	}

	if err := id.persist(key); err != nil {
		id.state = StateUnregistered
		return err
	}
	id.apiKey = key
	id.deviceID = deviceID
	id.state = StateRegistered
	log.Printf("identity: registered device %q (id=%d)", id.deviceName, deviceID)
	return nil
}

// Rotate explicitly re-registers under the same name. The core rotates
// the key in place; the persisted credential is overwritten so the old
// key is never used again.
func (id *Identity) Rotate(ctx context.Context, reg Registrar, sharedSecret string) error {
	id.mu.Lock()
	defer id.mu.Unlock()

	deviceID, key, err := reg.Register(ctx, id.deviceName, sharedSecret)
	if err != nil {
		return fmt.Errorf("rotate key for %q: %w", id.deviceName, err)
	}
	if err := id.persist(key); err != nil {
		return err
	}
	id.apiKey = key
	id.deviceID = deviceID
	id.state = StateRegistered
	log.Printf("identity: rotated key for device %q", id.deviceName)
	return nil
}

// Unregister removes the device's registration on the core and deletes
// the local credential.
func (id *Identity) Unregister(ctx context.Context, reg Registrar) error {
	id.mu.Lock()
	defer id.mu.Unlock()

	if id.state != StateRegistered {
		return fmt.Errorf("unregister: device is %s", id.state)
	}
	if err := reg.Unregister(ctx, id.deviceName, id.apiKey); err != nil {
		return fmt.Errorf("unregister device %q: %w", id.deviceName, err)
	}
	if err := os.Remove(id.credFile); err != nil && !os.IsNotExist(err) {
		log.Printf("identity: remove credential file: %v", err)
	}
	id.apiKey = ""
	id.deviceID = 0
	id.state = StateUnregistered
	return nil
}

func (id *Identity) persist(key string) error {
	if err := os.WriteFile(id.credFile, []byte(key+"\n"), 0600); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

// APIKey returns the current credential.
func (id *Identity) APIKey() string {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.apiKey
}

// State returns the current registration state.
func (id *Identity) State() State {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.state
}

// DeviceName returns the configured device name.
func (id *Identity) DeviceName() string { return id.deviceName }

// DeviceID returns the core-issued device ID, or 0 when bootstrapped
// from a persisted credential.
func (id *Identity) DeviceID() int64 {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.deviceID
}

package identity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRegistrar counts calls and issues sequential keys.
type fakeRegistrar struct {
	calls       int
	unregisters int
	failWith    error
	lastKey     string
}

func (f *fakeRegistrar) Register(_ context.Context, deviceName, _ string) (int64, string, error) {
	f.calls++
	if f.failWith != nil {
		return 0, "", f.failWith
	}
	f.lastKey = deviceName + "-key-" + strings.Repeat("x", f.calls)
	return int64(f.calls), f.lastKey, nil
}

func (f *fakeRegistrar) Unregister(_ context.Context, _, _ string) error {
	f.unregisters++
	return f.failWith
}

func credPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cwedge.key")
}

func TestBootstrapRegisters(t *testing.T) {
	path := credPath(t)
	reg := &fakeRegistrar{}
	id := New(path, "rpi1")

	if id.State() != StateUnregistered {
		t.Fatalf("initial state = %v", id.State())
	}
	if err := id.Bootstrap(context.Background(), reg, "abc123"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if id.State() != StateRegistered {
		t.Errorf("state = %v, want registered", id.State())
	}
	if reg.calls != 1 {
		t.Errorf("register calls = %d, want 1", reg.calls)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read credential: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != id.APIKey() {
		t.Errorf("persisted key = %q, in-memory key = %q", got, id.APIKey())
	}
}

func TestBootstrapIdempotentFromFile(t *testing.T) {
	path := credPath(t)
	if err := os.WriteFile(path, []byte("saved-key\n"), 0600); err != nil {
		t.Fatal(err)
	}

	reg := &fakeRegistrar{}
	id := New(path, "rpi1")
	if err := id.Bootstrap(context.Background(), reg, "abc123"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if reg.calls != 0 {
		t.Errorf("register calls = %d, want 0 (credential on disk)", reg.calls)
	}
	if id.APIKey() != "saved-key" {
		t.Errorf("apiKey = %q, want %q", id.APIKey(), "saved-key")
	}
	if id.State() != StateRegistered {
		t.Errorf("state = %v, want registered", id.State())
	}
}

func TestBootstrapFailureIsFatal(t *testing.T) {
	path := credPath(t)
	wantErr := errors.New("bad shared secret")
	reg := &fakeRegistrar{failWith: wantErr}
	id := New(path, "rpi1")

	err := id.Bootstrap(context.Background(), reg, "wrong")
	if !errors.Is(err, wantErr) {
		t.Fatalf("Bootstrap = %v, want wrapped %v", err, wantErr)
	}
	if id.State() != StateUnregistered {
		t.Errorf("state = %v, want unregistered", id.State())
	}
	if id.APIKey() != "" {
		t.Errorf("apiKey = %q, want empty", id.APIKey())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("credential file should not exist after failed registration")
	}
}

func TestRotateOverwritesCredential(t *testing.T) {
	path := credPath(t)
	reg := &fakeRegistrar{}
	id := New(path, "rpi1")

	if err := id.Bootstrap(context.Background(), reg, "abc123"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	first := id.APIKey()

	if err := id.Rotate(context.Background(), reg, "abc123"); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	second := id.APIKey()
	if first == second {
		t.Error("rotation must produce a different key")
	}

	data, _ := os.ReadFile(path)
	if got := strings.TrimSpace(string(data)); got != second {
		t.Errorf("persisted key = %q, want rotated key %q", got, second)
	}
}

func TestUnregisterRemovesCredential(t *testing.T) {
	path := credPath(t)
	reg := &fakeRegistrar{}
	id := New(path, "rpi1")

	if err := id.Bootstrap(context.Background(), reg, "abc123"); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if err := id.Unregister(context.Background(), reg); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if id.State() != StateUnregistered {
		t.Errorf("state = %v, want unregistered", id.State())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("credential file should be removed")
	}
	if reg.unregisters != 1 {
		t.Errorf("unregister calls = %d, want 1", reg.unregisters)
	}
}

func TestUnregisterWhenNotRegistered(t *testing.T) {
	id := New(credPath(t), "rpi1")
	if err := id.Unregister(context.Background(), &fakeRegistrar{}); err == nil {
		t.Fatal("expected error when unregistering an unregistered device")
	}
}

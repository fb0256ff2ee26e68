package modelhub

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func TestEmptyHub(t *testing.T) {
	h := New(t.TempDir())

	if _, err := h.Version(); !errors.Is(err, ErrNoModel) {
		t.Errorf("version on empty hub: err = %v, want ErrNoModel", err)
	}
	if _, err := h.ArtifactPath(); !errors.Is(err, ErrNoModel) {
		t.Errorf("artifact on empty hub: err = %v, want ErrNoModel", err)
	}
}

func TestPublishAndReplace(t *testing.T) {
	h := New(t.TempDir())

	if err := h.Publish("v1", strings.NewReader("weights-one")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	v, err := h.Version()
	if err != nil || v != "v1" {
		t.Fatalf("version = %q err=%v, want v1", v, err)
	}
	path, err := h.ArtifactPath()
	if err != nil {
		t.Fatalf("artifact path: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "weights-one" {
		t.Errorf("artifact = %q", data)
	}

	if err := h.Publish("v2", strings.NewReader("weights-two")); err != nil {
		t.Fatalf("republish: %v", err)
	}
	v, _ = h.Version()
	if v != "v2" {
		t.Errorf("version after republish = %q", v)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "weights-two" {
		t.Errorf("artifact after republish = %q", data)
	}
}

func TestPublishRejectsEmptyVersion(t *testing.T) {
	h := New(t.TempDir())
	if err := h.Publish("  ", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for blank version")
	}
}

func TestPublishLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	h := New(dir)
	if err := h.Publish("v1", strings.NewReader("weights")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

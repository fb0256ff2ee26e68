// Package modelhub stores the published classifier artifact and its
// version tag.
package modelhub

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	artifactName = "model.bin"
	versionName  = "VERSION"
)

// ErrNoModel means nothing has been published yet.
var ErrNoModel = errors.New("no model published")

// Hub owns the model directory. Publishes swap the artifact by rename,
// so a concurrent download never reads a half-written file.
type Hub struct {
	mu  sync.Mutex
	dir string
}

func New(dir string) *Hub {
	return &Hub{dir: dir}
}

// Version returns the current published version tag, or ErrNoModel.
func (h *Hub) Version() (string, error) {
	data, err := os.ReadFile(filepath.Join(h.dir, versionName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoModel
		}
		return "", fmt.Errorf("read version: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ArtifactPath returns the path of the live artifact, or ErrNoModel when
// nothing has been published.
func (h *Hub) ArtifactPath() (string, error) {
	path := filepath.Join(h.dir, artifactName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoModel
		}
		return "", err
	}
	return path, nil
}

// Publish installs a new artifact under the given version tag. The
// artifact lands first, then the version marker; a crash in between
// leaves the previous version recorded against the new bytes, which
// devices resolve on their next reconcile.
func (h *Hub) Publish(version string, r io.Reader) error {
	if strings.TrimSpace(version) == "" {
		return fmt.Errorf("publish: empty version")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(h.dir, 0755); err != nil {
		return fmt.Errorf("model dir: %w", err)
	}

	tmp, err := os.CreateTemp(h.dir, artifactName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(h.dir, artifactName)); err != nil {
		return fmt.Errorf("install artifact: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(h.dir, versionName), []byte(version+"\n")); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

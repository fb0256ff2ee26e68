// Package modelsync keeps the edge's classifier model in step with the
// core's published version.
package modelsync

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	artifactName = "model.bin"
	versionName  = "VERSION"
)

// Source serves the current model version tag and artifact bytes.
// The core API client satisfies this.
type Source interface {
	ModelVersion(ctx context.Context) (string, error)
	FetchModel(ctx context.Context, w io.Writer) error
}

// Reloader is signalled after a successful artifact swap. Loaded lets
// the syncer tell a fresh process with an installed artifact apart from
// a steady-state version match.
type Reloader interface {
	Reload() error
	Loaded() bool
}

// Syncer reconciles the local model directory against the core. The
// artifact and its version marker are replaced by rename, so an
// in-flight classification never observes a partial write: the old
// model stays fully usable until the swap lands.
type Syncer struct {
	source   Source
	reloader Reloader
	dir      string
	interval time.Duration

	kickChan chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a syncer for the given model directory.
func New(source Source, reloader Reloader, dir string, interval time.Duration) *Syncer {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Syncer{
		source:   source,
		reloader: reloader,
		dir:      dir,
		interval: interval,
		kickChan: make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

// SetReloader installs the reload target. Call before Start; the
// classifier needs ModelPath first, so construction is two-step.
func (s *Syncer) SetReloader(r Reloader) { s.reloader = r }

// ModelPath returns the path of the live artifact.
func (s *Syncer) ModelPath() string { return filepath.Join(s.dir, artifactName) }

// LocalVersion returns the locally recorded version tag, or "" when no
// model has ever been installed.
func (s *Syncer) LocalVersion() string {
	data, err := os.ReadFile(filepath.Join(s.dir, versionName))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Reconcile fetches the core's version tag and, on mismatch, downloads
// and atomically installs the new artifact, then signals the reloader.
// Any failure leaves the existing model and version untouched.
func (s *Syncer) Reconcile(ctx context.Context) error {
	remote, err := s.source.ModelVersion(ctx)
	if err != nil {
		return fmt.Errorf("fetch model version: %w", err)
	}
	local := s.LocalVersion()
	if strings.EqualFold(remote, local) {
		// After a restart the artifact is current but nothing is
		// loaded yet; a failure here retries on the next tick.
		if err := s.loadInstalled(); err != nil {
			log.Printf("modelsync: load installed model %s: %v", local, err)
		}
		return nil
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("model dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, artifactName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := s.source.FetchModel(ctx, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("fetch model %s: %w", remote, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}

	// Publish by rename: artifact first, then the version marker. A
	// crash in between leaves the old version recorded, which just
	// re-downloads on the next reconcile.
	if err := os.Rename(tmpName, s.ModelPath()); err != nil {
		return fmt.Errorf("install artifact: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, versionName), []byte(remote+"\n")); err != nil {
		return fmt.Errorf("record version: %w", err)
	}

	if s.reloader != nil {
		if err := s.reloader.Reload(); err != nil {
			return fmt.Errorf("reload classifier: %w", err)
		}
	}
	log.Printf("modelsync: installed model %s (was %q)", remote, local)
	return nil
}

// loadInstalled reloads from the on-disk artifact when the reloader has
// nothing loaded yet. No-op without a reloader or an artifact.
func (s *Syncer) loadInstalled() error {
	if s.reloader == nil || s.reloader.Loaded() {
		return nil
	}
	if _, err := os.Stat(s.ModelPath()); err != nil {
		return nil
	}
	return s.reloader.Reload()
}

// Start runs an immediate reconcile and then the periodic loop. Failures
// are logged and retried on the next tick, never fatal.
func (s *Syncer) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop halts the reconcile loop.
func (s *Syncer) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

// Kick requests an out-of-band reconcile, e.g. when the core announces
// a new model over telemetry. Coalesces if one is already pending.
func (s *Syncer) Kick() {
	select {
	case s.kickChan <- struct{}{}:
	default:
	}
}

func (s *Syncer) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.reconcileLogged()

	for {
		select {
		case <-s.stopChan:
			return
		case <-s.kickChan:
			s.reconcileLogged()
		case <-ticker.C:
			s.reconcileLogged()
		}
	}
}

func (s *Syncer) reconcileLogged() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := s.Reconcile(ctx); err != nil {
		log.Printf("modelsync: reconcile: %v", err)
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

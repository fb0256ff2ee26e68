// Package classify wraps the visual classifier as an opaque capability.
// Inference itself is external; this package owns model loading and the
// atomic swap ModelSync relies on.
package classify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// ErrNoModel is returned when classification is requested before any
// model has been loaded.
var ErrNoModel = errors.New("no classifier model loaded")

// Classifier maps an image to a label index.
type Classifier interface {
	Classify(image []byte) (int, error)
}

// Func adapts a plain function to the Classifier interface.
type Func func(image []byte) (int, error)

func (f Func) Classify(image []byte) (int, error) { return f(image) }

// LoadFunc builds a Classifier from a model artifact on disk.
type LoadFunc func(modelPath string) (Classifier, error)

// Reloadable is an atomically swappable classifier. In-flight Classify
// calls keep using the classifier they dereferenced; Reload publishes a
// replacement without any intermediate state being observable.
type Reloadable struct {
	path string
	load LoadFunc
	cur  atomic.Pointer[Classifier]
}

// NewReloadable creates a holder for the model at path. No model is
// loaded until the first Reload.
func NewReloadable(path string, load LoadFunc) *Reloadable {
	return &Reloadable{path: path, load: load}
}

// Reload loads the artifact and swaps it in. On load failure the
// previous classifier stays current.
func (r *Reloadable) Reload() error {
	c, err := r.load(r.path)
	if err != nil {
		return fmt.Errorf("load model %s: %w", r.path, err)
	}
	r.cur.Store(&c)
	return nil
}

// Classify runs the currently loaded classifier.
func (r *Reloadable) Classify(image []byte) (int, error) {
	p := r.cur.Load()
	if p == nil {
		return 0, ErrNoModel
	}
	return (*p).Classify(image)
}

// Loaded reports whether a model has been loaded.
func (r *Reloadable) Loaded() bool { return r.cur.Load() != nil }

// CommandLoader returns a LoadFunc that shells out to an external
// inference command: `command <modelPath> <imagePath>`, which prints the
// predicted label index on stdout.
func CommandLoader(command string) LoadFunc {
	return func(modelPath string) (Classifier, error) {
		if _, err := os.Stat(modelPath); err != nil {
			return nil, err
		}
		return &commandClassifier{command: command, modelPath: modelPath}, nil
	}
}

type commandClassifier struct {
	command   string
	modelPath string
}

func (c *commandClassifier) Classify(image []byte) (int, error) {
	f, err := os.CreateTemp("", "cwcapture-*.jpg")
	if err != nil {
		return 0, err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(image); err != nil {
		f.Close()
		return 0, err
	}
	f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, c.command, c.modelPath, f.Name())
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("run classifier: %w", err)
	}
	label, err := strconv.Atoi(strings.TrimSpace(out.String()))
	if err != nil {
		return 0, fmt.Errorf("parse classifier output %q: %w", out.String(), err)
	}
	return label, nil
}

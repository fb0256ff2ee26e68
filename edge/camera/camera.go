// Package camera wraps image capture as an opaque capability.
package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Camera captures one image of whatever is on the scale.
type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
}

// CommandCamera shells out to a capture tool (libcamera-jpeg on the
// reference hardware) that writes a JPEG to OutputPath.
type CommandCamera struct {
	Command    string
	OutputPath string
	Width      int
	Height     int
}

func (c *CommandCamera) Capture(ctx context.Context) ([]byte, error) {
	args := []string{"-o", c.OutputPath, "-n",
		"--width", strconv.Itoa(c.Width),
		"--height", strconv.Itoa(c.Height),
	}
	cmd := exec.CommandContext(ctx, c.Command, args...)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	data, err := os.ReadFile(c.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return data, nil
}

// FileCamera serves a fixed image from disk. Used on bench rigs with no
// camera attached.
type FileCamera struct {
	Path string
}

func (c *FileCamera) Capture(context.Context) ([]byte, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

package cfg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/l3aro/pycfg/internal/log"
)

// Default renderer settings.
const (
	DefaultDotPath = "dot"
	DefaultFormat  = "png"
)

// Renderer turns a Graph into an image by running Graphviz.
type Renderer struct {
	// DotPath is the layout tool, looked up in PATH when it has no separator.
	DotPath string
	// Format is passed as -T<format>.
	Format string
	// TempDir holds the intermediate DOT file. Empty means os.TempDir.
	TempDir string
	Logger  log.Logger
}

// NewRenderer returns a Renderer using dot and png.
func NewRenderer() *Renderer {
	return &Renderer{DotPath: DefaultDotPath, Format: DefaultFormat, Logger: log.Nop()}
}

func (r *Renderer) tool() string {
	if r.DotPath == "" {
		return DefaultDotPath
	}
	return r.DotPath
}

func (r *Renderer) format() string {
	if r.Format == "" {
		return DefaultFormat
	}
	return r.Format
}

func (r *Renderer) logger() log.Logger {
	if r.Logger == nil {
		return log.Nop()
	}
	return r.Logger
}

// LookPath resolves the layout tool to an executable path.
func (r *Renderer) LookPath() (string, error) {
	return exec.LookPath(r.tool())
}

// Render writes the DOT serialization of g to a temporary file and runs
// `<tool> -T<format> <tmp> -o <out>`. A non-zero exit is reported as a
// *RenderError carrying the tool's stderr. The temporary file is removed on
// every path.
func (r *Renderer) Render(ctx context.Context, g *Graph, out string) error {
	data, err := g.DOT()
	if err != nil {
		return fmt.Errorf("encoding dot: %w", err)
	}

	tmp, err := os.CreateTemp(r.TempDir, "pycfg-*.dot")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	tool := r.tool()
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, tool, "-T"+r.format(), tmpPath, "-o", out)
	cmd.Stderr = &stderr

	r.logger().Debug("running layout tool", "tool", tool, "format", r.format(), "out", out)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &RenderError{
				Tool:     tool,
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
				Err:      err,
			}
		}
		return fmt.Errorf("running %s: %w", tool, err)
	}
	return nil
}

package cfg

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is matched by every *UnsupportedError.
	ErrUnsupported = errors.New("unsupported construct")
	// ErrLoopControl is matched by every *LoopControlError.
	ErrLoopControl = errors.New("loop control outside loop")
)

// UnsupportedError reports a statement or test expression the builder has
// no CFG shape for.
type UnsupportedError struct {
	Construct string // tree-sitter node type, or a short description
	Line      int
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported construct %s at line %d", e.Construct, e.Line)
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

// LoopControlError reports a break or continue with no enclosing loop.
type LoopControlError struct {
	Keyword string
	Line    int
}

func (e *LoopControlError) Error() string {
	return fmt.Sprintf("%q outside loop at line %d", e.Keyword, e.Line)
}

func (e *LoopControlError) Is(target error) bool { return target == ErrLoopControl }

// RenderError reports a failed run of the external layout tool.
type RenderError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *RenderError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with status %d: %s", e.Tool, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s exited with status %d: %v", e.Tool, e.ExitCode, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

package render

import (
	"errors"
	"fmt"

	"github.com/opd-ai/go-gbuf/internal/command"
)

var (
	// ErrNoFrame is returned by Replay when nothing has been rendered yet.
	ErrNoFrame = errors.New("no retained frame")
	// ErrInvalidSize is returned for non-positive surface dimensions.
	ErrInvalidSize = errors.New("surface dimensions must be positive")
	// ErrImageNotFound is returned by drawimage for an uncached image id.
	ErrImageNotFound = errors.New("image not found")
)

// CommandExecutionError records a command that failed during a pass.
// The pass skips the command and continues.
type CommandExecutionError struct {
	// Index is the position of the command within the frame.
	Index int
	Name  string
	Op    command.Opcode
	Err   error
}

// Error implements the error interface.
func (e *CommandExecutionError) Error() string {
	return fmt.Sprintf("command %d (%s): %v", e.Index, e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *CommandExecutionError) Unwrap() error {
	return e.Err
}

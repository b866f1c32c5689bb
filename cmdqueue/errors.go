package cmdqueue

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout matches every *TimeoutError with errors.Is.
	ErrTimeout = errors.New("cmdqueue: command timeout")

	// ErrCleared is returned to commands dropped by Processor.Clear.
	ErrCleared = errors.New("cmdqueue: command dropped, queue cleared")

	// ErrNoTransmit indicates a command without a transmit function.
	ErrNoTransmit = errors.New("cmdqueue: command has no transmit function")
)

// TimeoutError reports that no acceptable response arrived within the
// command's budget. The link stays usable.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("cmdqueue: %s timed out after %s", e.Command, e.Timeout)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// panicError wraps a value recovered from a panicking parser.
type panicError struct {
	command string
	value   any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("cmdqueue: %s parser panicked: %v", e.command, e.value)
}

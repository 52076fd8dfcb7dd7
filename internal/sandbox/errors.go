package sandbox

import (
	"fmt"
	"time"
)

// ExecutionError reports a script that threw, or a capability call that
// failed inside one. Stack carries the script-side trace when available.
type ExecutionError struct {
	Message string
	Stack   string
}

func (e *ExecutionError) Error() string {
	return "script execution failed: " + e.Message
}

// TimeoutError reports a deadline that elapsed before the script settled.
// Distinct from ExecutionError so callers can retry with a larger budget.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("script execution timed out after %s", e.Timeout)
}

package cli

import "fmt"

// Gate outcomes map to dedicated exit codes so wrapping scripts can tell a
// denial apart from a crash. Zero is success, one is any other error.
const (
	ExitDenied              = 3
	ExitConfirmationPending = 4
)

// ExitError carries a process exit code out of a command RunE. The message,
// when set, is printed to stderr instead of cobra's error formatting.
type ExitError struct {
	code    int
	message string
}

func exitCode(code int) *ExitError {
	return &ExitError{code: code}
}

func exitCodef(code int, format string, args ...any) *ExitError {
	return &ExitError{code: code, message: fmt.Sprintf(format, args...)}
}

func (e *ExitError) Error() string {
	if e == nil {
		return ""
	}
	if e.message != "" {
		return e.message
	}
	return fmt.Sprintf("exit status %d", e.code)
}

// Code returns the process exit code; a nil receiver degrades to 1.
func (e *ExitError) Code() int {
	if e == nil {
		return 1
	}
	return e.code
}

func (e *ExitError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

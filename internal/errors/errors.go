// Package errors provides the coded failure classes of the watcher and their
// process exit codes.
//
// Usage:
//
//	// In components - return typed errors
//	if err := unix.InotifyAddWatch(fd, dir, mask); err != nil {
//	    return errors.Wrapf(err, errors.CodeIssue, "watching %s", dir)
//	}
//
//	// In main - translate into an exit status
//	os.Exit(errors.ExitCode(err))
//
//	// Or check the class with errors.Is
//	if errors.Is(err, errors.ErrWait) {
//	    ...
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)

// Code represents a machine-readable failure class.
type Code string

// Failure classes, one per distinct exit status.
const (
	CodeArgument        Code = "ARGUMENT"
	CodePathResolution  Code = "PATH_RESOLUTION"
	CodeOpen            Code = "OPEN"
	CodeIssue           Code = "ISSUE"
	CodeWait            Code = "WAIT"
	CodeRecordRetrieval Code = "RECORD_RETRIEVAL"
)

const exitCodeUnclassified = 1

// ExitCode returns the process exit status for a failure class.
func (c Code) ExitCode() int {
	switch c {
	case CodeArgument:
		return 1
	case CodeOpen:
		return 2
	case CodePathResolution:
		return 3
	case CodeIssue:
		return 4
	case CodeWait:
		return 5
	case CodeRecordRetrieval:
		return 6
	default:
		return exitCodeUnclassified
	}
}

// Error is a classified failure with a message and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// ExitCode returns the process exit status for this error.
func (e *Error) ExitCode() int {
	return e.Code.ExitCode()
}

// Sentinel errors for use with errors.Is().
var (
	ErrArgument        = &Error{Code: CodeArgument, Message: "invalid arguments"}
	ErrPathResolution  = &Error{Code: CodePathResolution, Message: "cannot resolve path"}
	ErrOpen            = &Error{Code: CodeOpen, Message: "cannot open watch handle"}
	ErrIssue           = &Error{Code: CodeIssue, Message: "cannot issue watch request"}
	ErrWait            = &Error{Code: CodeWait, Message: "wait for changes failed"}
	ErrRecordRetrieval = &Error{Code: CodeRecordRetrieval, Message: "cannot retrieve change records"}
)

// ExitCode maps any error to a process exit status. Errors without a class
// exit with status 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	return exitCodeUnclassified
}

// Constructor functions for creating errors with custom messages.

// Argument creates an argument error.
func Argument(msg string) *Error {
	return &Error{Code: CodeArgument, Message: msg}
}

// Argumentf creates an argument error with formatted message.
func Argumentf(format string, args ...any) *Error {
	return &Error{Code: CodeArgument, Message: fmt.Sprintf(format, args...)}
}

// PathResolution creates a path resolution error.
func PathResolution(msg string) *Error {
	return &Error{Code: CodePathResolution, Message: msg}
}

// PathResolutionf creates a path resolution error with formatted message.
func PathResolutionf(format string, args ...any) *Error {
	return &Error{Code: CodePathResolution, Message: fmt.Sprintf(format, args...)}
}

// Issue creates a request issue error.
func Issue(msg string) *Error {
	return &Error{Code: CodeIssue, Message: msg}
}

// Issuef creates a request issue error with formatted message.
func Issuef(format string, args ...any) *Error {
	return &Error{Code: CodeIssue, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// Package lperr defines the error taxonomy shared across Lighterceptor's
// components: transport, harness, protocol and programmer errors (see
// spec §7).
package lperr

import "fmt"

// Code classifies a Lighterceptor error for callers that need to branch on
// failure kind (e.g. deciding whether a Run-level rejection is recoverable).
type Code string

const (
	// CodeTransport marks a fetch failure, non-2xx response, or timeout.
	// Recorded on a RequestRecord; the one case that surfaces from Run()
	// is a URL input whose root document cannot be fetched.
	CodeTransport Code = "TRANSPORT"

	// CodeHarness marks a DOM construction or script evaluation failure.
	// Recoverable unless it is the root document.
	CodeHarness Code = "HARNESS"

	// CodeProtocol marks a RequestInterceptor callback returning a value
	// outside {Buffer, string, null, undefined}.
	CodeProtocol Code = "PROTOCOL"

	// CodeProgrammer marks API misuse: invalid adapter target kind, a
	// replay preamble missing required globals, and the like. Thrown
	// synchronously at the API boundary, never captured into a Snapshot.
	CodeProgrammer Code = "PROGRAMMER"
)

// Error is the internal error type carrying a Code. It implements the
// error interface and supports wrapping via Unwrap.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given code, message, and wrapped cause.
func New(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Transport builds a CodeTransport error.
func Transport(message string, err error) *Error {
	return New(CodeTransport, message, err)
}

// Harness builds a CodeHarness error.
func Harness(message string, err error) *Error {
	return New(CodeHarness, message, err)
}

// Protocol builds a CodeProtocol error.
func Protocol(message string, err error) *Error {
	return New(CodeProtocol, message, err)
}

// Programmer builds a CodeProgrammer error.
func Programmer(message string, err error) *Error {
	return New(CodeProgrammer, message, err)
}

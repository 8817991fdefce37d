package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// ErrorCode represents a unique identifier for specific error conditions in appkit.
type ErrorCode int

const (
	ErrCodeUnknown       ErrorCode = 1000
	ErrCodeConfigInvalid ErrorCode = 1001

	// Setup: platform handshake and launch preconditions
	ErrCodeDaemonize       ErrorCode = 2001
	ErrCodeServiceRegister ErrorCode = 2002
	ErrCodeInstanceLock    ErrorCode = 2003
	ErrCodeSignalSource    ErrorCode = 2004
	ErrCodeControlSocket   ErrorCode = 2005

	// Logic: misuse by the embedding program, never reported as a plain error value
	ErrCodeGuardMismatch ErrorCode = 9001
	ErrCodeGlobalContext ErrorCode = 9002
	ErrCodeBinderState   ErrorCode = 9003
	ErrCodeNilAspect     ErrorCode = 9004
)

// logicFloor separates environment failures from programming mistakes.
const logicFloor ErrorCode = 9000

// Error is a structured error carrying an error code, the operation being
// performed, the underlying cause and the source location that raised it.
type Error struct {
	// Code is the specific error code.
	Code ErrorCode
	// Msg is a human-readable description of the error.
	Msg string
	// Operation describes the action being performed when the error occurred.
	Operation string
	// Err is the underlying error that caused this error, if any.
	Err error
	// Location is the file:line that created the error.
	Location string
}

// Error returns a formatted string representation of the error.
func (e *Error) Error() string {
	s := fmt.Sprintf("[%d] %s: %s", e.Code, e.Operation, e.Msg)
	if e.Err != nil {
		s = fmt.Sprintf("%s (cause: %v)", s, e.Err)
	}
	if e.Location != "" {
		s = fmt.Sprintf("%s at %s", s, e.Location)
	}
	return s
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by code so callers can compare against a template.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// New creates a new Error with the specified code, operation, message, and underlying error.
// The location of the caller is recorded.
func New(code ErrorCode, op, msg string, err error) error {
	return &Error{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Err:       err,
		Location:  caller(2),
	}
}

// Logic builds the value panicked with when the embedding program misuses the API.
func Logic(code ErrorCode, op, msg string) *Error {
	return &Error{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Location:  caller(2),
	}
}

// IsLogic reports whether err is a logic error.
func IsLogic(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Code >= logicFloor
}

// CodeOf extracts the code of err, or ErrCodeUnknown.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeUnknown
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// Personal.AI order the ending

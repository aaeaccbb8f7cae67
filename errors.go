package a1fs

import (
	"fmt"
	"syscall"
)

// DriverError is a wrapper around a system errno code with a customizable
// message. Engine operations return errors.DiskoError values, not this type.
type DriverError struct {
	ErrnoCode syscall.Errno
	message   string
}

func (e DriverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.ErrnoCode.Error()
}

func (e DriverError) Unwrap() error {
	return e.ErrnoCode
}

// NewDriverError creates a DriverError with a default message derived from
// the errno code.
func NewDriverError(errnoCode syscall.Errno) *DriverError {
	return &DriverError{ErrnoCode: errnoCode, message: errnoCode.Error()}
}

// NewDriverErrorWithMessage creates a DriverError from an errno code with a
// custom message.
func NewDriverErrorWithMessage(errnoCode syscall.Errno, message string) *DriverError {
	return &DriverError{
		ErrnoCode: errnoCode,
		message:   fmt.Sprintf("%s: %s", errnoCode.Error(), message),
	}
}

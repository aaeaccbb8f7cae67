// Package errors defines the error-kind taxonomy the engine raises,
// independent of any particular errno encoding.
package errors

import (
	"fmt"
	"syscall"
)

// DiskoError is a named error kind from the engine's taxonomy. Each constant
// also carries the POSIX errno the adapter should report for it.
type DiskoError string

const ErrNoEntry = DiskoError("no such file or directory")
const ErrNotADirectory = DiskoError("not a directory")
const ErrNameTooLong = DiskoError("file name too long")
const ErrNotEmpty = DiskoError("directory not empty")
const ErrNoSpace = DiskoError("no space left on device")
const ErrOutOfMemory = DiskoError("cannot allocate memory")
const ErrCorruptImage = DiskoError("structure needs cleaning")
const ErrExists = DiskoError("file exists")
const ErrInvalidArgument = DiskoError("invalid argument")

func (e DiskoError) Error() string {
	return string(e)
}

// Errno maps a DiskoError kind to the nearest POSIX errno, for use at the
// adapter boundary and when constructing a1fs.DriverError values.
func (e DiskoError) Errno() syscall.Errno {
	switch e {
	case ErrNoEntry:
		return syscall.ENOENT
	case ErrNotADirectory:
		return syscall.ENOTDIR
	case ErrNameTooLong:
		return syscall.ENAMETOOLONG
	case ErrNotEmpty:
		return syscall.ENOTEMPTY
	case ErrNoSpace:
		return syscall.ENOSPC
	case ErrOutOfMemory:
		return syscall.ENOMEM
	case ErrCorruptImage:
		return syscall.EUCLEAN
	case ErrExists:
		return syscall.EEXIST
	case ErrInvalidArgument:
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}

func (e DiskoError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), message),
		originalError: e,
	}
}

func (e DiskoError) WrapError(err error) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: err,
	}
}

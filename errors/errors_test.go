package errors_test

import (
	stderrors "errors"
	"syscall"
	"testing"

	"github.com/a1fs/a1fs/errors"
	"github.com/stretchr/testify/assert"
)

func TestDiskoErrorWithMessage(t *testing.T) {
	newErr := errors.ErrNotEmpty.WithMessage("asdfqwerty")
	assert.Equal(t, "directory not empty: asdfqwerty", newErr.Error())
	assert.ErrorIs(t, newErr, errors.ErrNotEmpty)
}

func TestDiskoErrorWrapError(t *testing.T) {
	originalErr := stderrors.New("original error")
	newErr := errors.ErrExists.WrapError(originalErr)

	assert.Equal(t, "file exists: original error", newErr.Error())
	assert.ErrorIs(t, newErr, originalErr)
}

func TestErrnoMapping(t *testing.T) {
	assert.Equal(t, syscall.ENOENT, errors.ErrNoEntry.Errno())
	assert.Equal(t, syscall.ENOTDIR, errors.ErrNotADirectory.Errno())
	assert.Equal(t, syscall.ENAMETOOLONG, errors.ErrNameTooLong.Errno())
	assert.Equal(t, syscall.ENOTEMPTY, errors.ErrNotEmpty.Errno())
	assert.Equal(t, syscall.ENOSPC, errors.ErrNoSpace.Errno())
	assert.Equal(t, syscall.ENOMEM, errors.ErrOutOfMemory.Errno())
	assert.Equal(t, syscall.EUCLEAN, errors.ErrCorruptImage.Errno())
}

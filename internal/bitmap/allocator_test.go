package bitmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a1fs/a1fs/errors"
	"github.com/a1fs/a1fs/internal/bitmap"
)

func TestAllocateFirstAscending(t *testing.T) {
	data := make([]byte, 4096)
	alloc := bitmap.FromBytes(data, 10)

	i, err := alloc.AllocateFirst()
	require.NoError(t, err)
	assert.Equal(t, uint(0), i)

	i, err = alloc.AllocateFirst()
	require.NoError(t, err)
	assert.Equal(t, uint(1), i)

	require.NoError(t, alloc.Free(0))

	i, err = alloc.AllocateFirst()
	require.NoError(t, err)
	assert.Equal(t, uint(0), i, "freeing a lower bit makes it the next allocation")
}

func TestAllocateFirstExhausted(t *testing.T) {
	data := make([]byte, 4096)
	alloc := bitmap.FromBytes(data, 3)
	for i := 0; i < 3; i++ {
		_, err := alloc.AllocateFirst()
		require.NoError(t, err)
	}
	_, err := alloc.AllocateFirst()
	assert.ErrorIs(t, err, errors.ErrNoSpace)
}

func TestFreeRejectsOutOfRangeAndAlreadyFree(t *testing.T) {
	data := make([]byte, 4096)
	alloc := bitmap.FromBytes(data, 4)

	err := alloc.Free(10)
	assert.Error(t, err)

	err = alloc.Free(0)
	assert.Error(t, err, "freeing a bit that was never allocated is an error")
}

func TestPopCountRespectsTotalUnits(t *testing.T) {
	data := make([]byte, 4096)
	// Set a bit beyond TotalUnits directly; PopCount must ignore it.
	data[1] = 0xFF
	alloc := bitmap.FromBytes(data, 4)
	assert.Equal(t, uint(0), alloc.PopCount())

	_, err := alloc.AllocateFirst()
	require.NoError(t, err)
	assert.Equal(t, uint(1), alloc.PopCount())
}

func TestSetBypassesScan(t *testing.T) {
	data := make([]byte, 4096)
	alloc := bitmap.FromBytes(data, 8)
	alloc.Set(5, true)
	assert.True(t, alloc.Get(5))
	alloc.Set(5, false)
	assert.False(t, alloc.Get(5))
}

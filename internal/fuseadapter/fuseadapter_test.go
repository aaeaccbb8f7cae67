package fuseadapter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/a1fs/a1fs/errors"
	"github.com/a1fs/a1fs/internal/layout"
)

func TestChildPathJoinsUnderLimit(t *testing.T) {
	p, err := childPath("/a", "b")
	assert.NoError(t, err)
	assert.Equal(t, "/a/b", p)
}

func TestChildPathRejectsPathAtOrOverLimit(t *testing.T) {
	longName := strings.Repeat("x", layout.PathMax)
	_, err := childPath("/", longName)
	assert.ErrorIs(t, err, errors.ErrNameTooLong)
}

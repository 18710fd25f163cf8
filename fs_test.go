package wwwfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	valid := []string{"a", "file.txt", "with space", "ünïcode", "..."}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), "name %q", name)
	}

	invalid := []string{"", ".", "..", "a/b", `a\b`, "nul\x00byte"}
	for _, name := range invalid {
		err := ValidateName(name)
		require.Error(t, err, "name %q", name)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}

func TestOpError(t *testing.T) {
	err := &OpError{Op: "open file", Name: "a.txt", Err: ErrNotFound}

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrExists)
	assert.Equal(t, `wwwfs: open file "a.txt": entry not found`, err.Error())

	var opErr *OpError
	require.ErrorAs(t, error(err), &opErr)
	assert.Equal(t, "a.txt", opErr.Name)
}

func TestEntryKindString(t *testing.T) {
	assert.Equal(t, "file", KindFile.String())
	assert.Equal(t, "directory", KindDirectory.String())
}

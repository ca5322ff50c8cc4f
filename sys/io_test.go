package sys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()

	fn := filepath.Join(dir, "foo")
	assert.False(t, Exists(fn))

	assert.NoError(t, os.WriteFile(fn, []byte("bar"), 0644))
	assert.True(t, Exists(fn))

	assert.True(t, Exists(dir), "directories count too")

	assert.NoError(t, os.Remove(fn))
	assert.False(t, Exists(fn))
}

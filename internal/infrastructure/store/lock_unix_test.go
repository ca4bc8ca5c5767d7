//go:build unix

package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncDir(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, syncDir(dir))
	assert.Error(t, syncDir(filepath.Join(dir, "missing")))

	file := filepath.Join(dir, "plain")
	assert.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	assert.Error(t, syncDir(file), "a regular file is not a directory")
}

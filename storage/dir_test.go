package storage

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirMake(t *testing.T) {
	t.Parallel()

	t.Run("temporary", func(t *testing.T) {
		t.Parallel()

		var d Dir
		require.NoError(t, d.Make(t.TempDir(), ""))
		assert.DirExists(t, d.Dir)

		require.NoError(t, d.Cleanup())
		assert.NoDirExists(t, d.Dir)
	})

	t.Run("user_supplied", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		var d Dir
		require.NoError(t, d.Make("", dir))
		assert.Equal(t, dir, d.Dir)

		require.NoError(t, d.Cleanup())
		_, err := os.Stat(dir)
		assert.NoError(t, err, "user supplied directory must be kept")
	})

	t.Run("bad_tmp_dir", func(t *testing.T) {
		t.Parallel()

		var d Dir
		assert.Error(t, d.Make("/nonexistent/pagekit/tmp", ""))
	})
}

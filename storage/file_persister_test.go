package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFilePersister(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		existing string
		data     string
	}{
		{
			name: "screenshot",
			path: "screenshot_TestLogin.png",
			data: "\x89PNG",
		},
		{
			name: "nested_dir",
			path: "run-1/failures/screenshot_TestLogin.png",
			data: "\x89PNG",
		},
		{
			name:     "replaces",
			path:     "screenshot_TestLogin.png",
			existing: "an older and longer screenshot",
			data:     "new",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			p := filepath.Join(dir, filepath.FromSlash(tc.path))
			if tc.existing != "" {
				require.NoError(t, os.WriteFile(p, []byte(tc.existing), 0o600))
			}

			l := &LocalFilePersister{}
			require.NoError(t, l.Persist(context.Background(), p, strings.NewReader(tc.data)))

			bb, err := os.ReadFile(p)
			require.NoError(t, err)
			assert.Equal(t, tc.data, string(bb))

			// no temporary files left behind
			entries, err := os.ReadDir(filepath.Dir(p))
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}
}

func TestLocalFilePersisterMode(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "report.json")
	l := &LocalFilePersister{Mode: 0o644}
	require.NoError(t, l.Persist(context.Background(), p, strings.NewReader("{}")))

	fi, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), fi.Mode().Perm())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestLocalFilePersisterErrors(t *testing.T) {
	t.Parallel()

	t.Run("read_error", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		p := filepath.Join(dir, "broken.png")
		l := &LocalFilePersister{}
		err := l.Persist(context.Background(), p, failingReader{})
		require.ErrorContains(t, err, "boom")

		_, err = os.Stat(p)
		assert.True(t, os.IsNotExist(err))
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
	t.Run("canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		l := &LocalFilePersister{}
		err := l.Persist(ctx, filepath.Join(t.TempDir(), "x.png"), strings.NewReader("x"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

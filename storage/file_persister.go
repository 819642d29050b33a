package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilePersister stores artifacts such as failure screenshots. Callers pass
// a slash separated path and do not care whether it ends up on disk or in
// a bucket.
type FilePersister interface {
	Persist(ctx context.Context, path string, data io.Reader) error
}

// DefaultFileMode is used for artifacts written by LocalFilePersister.
const DefaultFileMode os.FileMode = 0o600

// LocalFilePersister writes artifacts to the local disk.
//
// The data is first written to a temporary file next to the destination
// and renamed into place, so a reader never sees a half written
// screenshot.
type LocalFilePersister struct {
	// Mode of the created file. Zero means DefaultFileMode.
	Mode os.FileMode
}

// Persist writes data to path, creating parent directories and replacing
// any existing file.
func (l *LocalFilePersister) Persist(ctx context.Context, path string, data io.Reader) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := filepath.Clean(filepath.FromSlash(path))
	dir := filepath.Dir(dst)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %q: %w", dst, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %q: %w", dst, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %q: %w", tmp.Name(), err)
	}

	mode := l.Mode
	if mode == 0 {
		mode = DefaultFileMode
	}
	if err = os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("setting mode of %q: %w", dst, err)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("moving artifact into place at %q: %w", dst, err)
	}

	return nil
}

package storage

import (
	"fmt"
	"os"
)

// Dir is a directory used by the browser for its user data.
// A temporary directory is removed again by Cleanup, a user supplied one
// is left in place.
type Dir struct {
	Dir    string
	remove bool
}

// Make uses dir when it is set, otherwise it creates a temporary
// directory inside tmpDir (the OS default when empty).
func (d *Dir) Make(tmpDir, dir string) error {
	if dir != "" {
		d.Dir = dir
		return nil
	}

	var err error
	if d.Dir, err = os.MkdirTemp(tmpDir, "pagekit-browser-data-*"); err != nil {
		return fmt.Errorf("creating a temporary directory: %w", err)
	}
	d.remove = true

	return nil
}

// Cleanup removes the directory if Make created it.
func (d *Dir) Cleanup() error {
	if !d.remove {
		return nil
	}
	if err := os.RemoveAll(d.Dir); err != nil {
		return fmt.Errorf("removing %q: %w", d.Dir, err)
	}
	return nil
}

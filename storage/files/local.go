// Package files stores participant attachments on the local filesystem.
package files

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Store keeps files flat under a single directory. Callers are expected to
// pass sanitized basenames only.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating uploads directory")
	}
	return &Store{dir: dir}, nil
}

func (st *Store) path(name string) string {
	return filepath.Join(st.dir, filepath.Base(name))
}

func (st *Store) Save(name string, r io.Reader) error {
	f, err := os.Create(st.path(name))
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return errors.Wrap(err, "writing file")
	}
	return errors.Wrap(f.Close(), "closing file")
}

func (st *Store) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(st.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, "attachment file missing")
		}
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

func (st *Store) Delete(name string) error {
	if err := os.Remove(st.path(name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting file")
	}
	return nil
}

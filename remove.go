package lmdbm

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	dataFile = "data.mdb"
	lockFile = "lock.mdb"
)

// RemoveStore removes the store in directory path: its data file, its lock
// file, and then the directory itself, which must then be empty. With
// missingOK, artifacts which do not exist are skipped.
func RemoveStore(path string, missingOK bool) error {
	return RemoveStoreFS(afero.NewOsFs(), path, missingOK)
}

// RemoveStoreFS is RemoveStore over filesystem fs.
func RemoveStoreFS(fs afero.Fs, path string, missingOK bool) error {
	return removeStore(fs, path, missingOK)
}

func removeStore(fs afero.Fs, path string, missingOK bool) error {
	for _, name := range []string{
		filepath.Join(path, dataFile),
		filepath.Join(path, lockFile),
		path,
	} {
		if err := fs.Remove(name); err != nil {
			if missingOK && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return errors.WithMessagef(err, "lmdbm: remove %s", name)
		}
	}
	return nil
}

package lmdbm

// backup.go implements hot backups of an open store.
//
// A backup is a consistent point-in-time copy of the environment, taken
// inside a read transaction, so writers are not blocked while it runs.

import (
	"os"
	"path/filepath"

	"github.com/aalhour/lmdbm/internal/logging"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Backup writes a consistent copy of the store into directory dst, which
// must not exist. With compact, free pages are omitted and the copy is
// renumbered, which is slower but yields a smaller file.
//
// The copy is a complete store: open it with Open like any other.
func (s *Store) Backup(dst string, compact bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.logger.Infof(logging.NSBackup+"copying %s to %s (compact=%t)", s.path, dst, compact)

	if dst == "" {
		return errors.New("lmdbm: backup directory path cannot be empty")
	}
	// The engine writes the copy through the OS, whatever Options.FS is.
	var fs = afero.NewOsFs()
	if _, err := fs.Stat(dst); err == nil {
		return errors.Errorf("lmdbm: backup directory already exists: %s", dst)
	} else if !errors.Is(err, os.ErrNotExist) {
		return errors.WithMessagef(err, "lmdbm: backup to %s", dst)
	}
	if err := fs.MkdirAll(dst, s.opts.Perm|0o700); err != nil {
		return errors.WithMessagef(err, "lmdbm: create backup directory %s", dst)
	}

	if err := s.env.Copy(dst, compact); err != nil {
		_ = fs.RemoveAll(dst)
		return errors.WithMessagef(toStoreError(err), "lmdbm: backup to %s", dst)
	}

	if fi, err := fs.Stat(filepath.Join(dst, dataFile)); err == nil {
		s.logger.Infof(logging.NSBackup+"completed: %s written", humanize.IBytes(uint64(fi.Size())))
	}
	return nil
}

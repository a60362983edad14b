package lmdbm

import "github.com/pkg/errors"

// With opens the store at path, runs fn with it, and closes it. The store
// is closed exactly once whether fn returns normally, returns an error or
// panics. An error from fn takes precedence over an error from Close.
func With(path string, opts *Options, fn func(*Store) error) error {
	s, err := Open(path, opts)
	if err != nil {
		return err
	}
	return use(s, fn)
}

func use(s *Store, fn func(*Store) error) (err error) {
	defer func() {
		// fn may have closed the store itself.
		if cerr := s.Close(); cerr != nil && !errors.Is(cerr, ErrClosed) && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

package lmdbm

import (
	"fmt"

	"github.com/aalhour/lmdbm/internal/engine"
	"github.com/aalhour/lmdbm/internal/logging"
	"github.com/aalhour/lmdbm/internal/transform"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a key is not present in the store.
	ErrNotFound = errors.New("lmdbm: key not found")

	// ErrInvalidMode is returned for an unrecognized open mode.
	ErrInvalidMode = errors.New("lmdbm: invalid open mode")

	// ErrInvalidOptions is returned when Options fail validation.
	ErrInvalidOptions = errors.New("lmdbm: invalid options")

	// ErrSpaceExhausted is the engine's map-full signal. It is retried by
	// the grower and only surfaces wrapped in a GrowthFailedError.
	ErrSpaceExhausted = engine.ErrMapFull

	// ErrGrowthFailed is matched by every GrowthFailedError.
	ErrGrowthFailed = errors.New("lmdbm: map growth failed")

	// ErrCorruptData is returned when a stored value cannot be decoded.
	ErrCorruptData = transform.ErrCorrupt

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("lmdbm: store is closed")

	// ErrReadOnly is returned by writes to a store opened with ModeReadOnly.
	ErrReadOnly = engine.ErrReadOnly

	// ErrTextUnsupported is returned by the text entry points of a store
	// whose pipeline only accepts bytes.
	ErrTextUnsupported = transform.ErrTextUnsupported

	// ErrTextUnrepresentable is returned by text entry points given a key
	// the pipeline's text encoding cannot represent.
	ErrTextUnrepresentable = transform.ErrTextUnrepresentable

	// ErrTxnActive is returned when the map could not be resized, or the
	// store closed, because transactions stayed open past Options.ResizeWait.
	ErrTxnActive = engine.ErrTxnActive
)

// GrowthFailedError reports a write that still did not fit after the
// configured number of attempts. It matches ErrGrowthFailed and
// logging.ErrFatal with errors.Is, and unwraps to the last engine error.
type GrowthFailedError struct {
	// Attempts is the number of write attempts made.
	Attempts int
	// MapSize is the map size at the final attempt, in bytes. The map is
	// doubled only between attempts, so after n attempts it is the initial
	// size doubled n-1 times; there is no extra growth after the last
	// failure.
	MapSize int64
	// Err is the error of the final attempt.
	Err error
}

func (e *GrowthFailedError) Error() string {
	return fmt.Sprintf("lmdbm: write did not fit after %d attempts (map size %d): %v",
		e.Attempts, e.MapSize, e.Err)
}

func (e *GrowthFailedError) Unwrap() error { return e.Err }

// Is reports whether target is ErrGrowthFailed or logging.ErrFatal.
func (e *GrowthFailedError) Is(target error) bool {
	return target == ErrGrowthFailed || target == logging.ErrFatal
}

// toStoreError maps engine errors onto the package's sentinels.
func toStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, engine.ErrClosed):
		return ErrClosed
	default:
		return err
	}
}

package lmdbm

// options.go implements store configuration options.

import (
	"os"
	"time"

	"github.com/aalhour/lmdbm/internal/logging"
	"github.com/aalhour/lmdbm/internal/transform"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Logger is an alias for the logging.Logger interface.
// This allows users to pass their own logger implementation.
type Logger = logging.Logger

// Pipeline is an alias for the transform.Pipeline interface.
type Pipeline = transform.Pipeline

// Codec is an alias for the value compression codec.
type Codec = transform.Codec

// CompressionOptions configures a compressing pipeline.
type CompressionOptions = transform.Options

// Codec constants.
const (
	CodecGzip   = transform.Gzip
	CodecZlib   = transform.Zlib
	CodecSnappy = transform.Snappy
	CodecLZ4    = transform.LZ4
	CodecZstd   = transform.Zstd
	CodecRaw    = transform.Raw
)

const (
	// DefaultMapSize is the initial map size of a new environment (1 MiB).
	DefaultMapSize int64 = 1 << 20

	// DefaultMaxGrowAttempts bounds the write attempts of one operation.
	DefaultMaxGrowAttempts = 12

	// DefaultPerm is the permission of created store files.
	DefaultPerm os.FileMode = 0o755

	// DefaultResizeWait bounds how long a map resize waits for open
	// transactions to finish.
	DefaultResizeWait = 5 * time.Second
)

// Options configures a Store.
type Options struct {
	// Mode selects how an existing or missing store is treated.
	// Default: ModeReadOnly
	Mode OpenMode

	// Perm is the file mode of created store files.
	// Default: 0o755
	Perm os.FileMode

	// MapSize is the initial map size in bytes. LMDB never shrinks an
	// existing environment below the space its data uses.
	// Default: 1 MiB
	MapSize int64

	// SubDatabase names the key space to bind. Empty selects the unnamed
	// root database.
	SubDatabase string

	// MaxGrowAttempts is the number of write attempts per operation before
	// growth is abandoned. The map is doubled between attempts.
	// Default: 12
	MaxGrowAttempts int

	// Pipeline transforms keys and values at the engine boundary.
	// Default: transform.Identity
	Pipeline Pipeline

	// Logger receives store diagnostics. Growth failure is reported through
	// Logger.Fatalf; install a fatal handler to react to it.
	// Default: logging.NewDefaultLogger(logging.LevelWarn)
	Logger Logger

	// Statistics collects operation counters. If nil, the store keeps its
	// own.
	Statistics Statistics

	// FS is the filesystem used to prepare and remove store directories.
	// The engine itself, and therefore Backup, always uses the OS
	// filesystem.
	// Default: afero.NewOsFs()
	FS afero.Fs

	// NoSync skips the flush at commit. Durability then relies on Sync.
	NoSync bool

	// ResizeWait bounds how long growing the map, or closing the store,
	// waits for transactions of other goroutines to finish. New
	// transactions are held back meanwhile. If the wait expires, for
	// example because the writing goroutine itself holds an open iterator,
	// the write fails with an error matching ErrTxnActive.
	// Default: 5s
	ResizeWait time.Duration
}

// DefaultOptions returns the default options: read-only, 1 MiB map,
// 12 attempts, identity pipeline.
func DefaultOptions() *Options {
	return &Options{
		Mode:            ModeReadOnly,
		Perm:            DefaultPerm,
		MapSize:         DefaultMapSize,
		MaxGrowAttempts: DefaultMaxGrowAttempts,
		Pipeline:        transform.Identity{},
		Logger:          logging.NewDefaultLogger(logging.LevelWarn),
		FS:              afero.NewOsFs(),
		ResizeWait:      DefaultResizeWait,
	}
}

// Validate checks the options for consistency.
func (o *Options) Validate() error {
	switch {
	case !o.Mode.valid():
		return errors.WithMessagef(ErrInvalidMode, "mode %d", int(o.Mode))
	case o.MapSize < 0:
		return errors.WithMessagef(ErrInvalidOptions, "negative map size %d", o.MapSize)
	case o.MaxGrowAttempts < 0:
		return errors.WithMessagef(ErrInvalidOptions, "negative grow attempts %d", o.MaxGrowAttempts)
	case o.ResizeWait < 0:
		return errors.WithMessagef(ErrInvalidOptions, "negative resize wait %s", o.ResizeWait)
	}
	return nil
}

// withDefaults returns a copy of o with zero fields replaced by defaults.
func (o *Options) withDefaults() *Options {
	out := DefaultOptions()
	if o == nil {
		return out
	}
	opts := *o
	if opts.Perm == 0 {
		opts.Perm = out.Perm
	}
	if opts.MapSize == 0 {
		opts.MapSize = out.MapSize
	}
	if opts.MaxGrowAttempts == 0 {
		opts.MaxGrowAttempts = out.MaxGrowAttempts
	}
	if opts.Pipeline == nil {
		opts.Pipeline = out.Pipeline
	}
	opts.Logger = logging.OrDefault(opts.Logger)
	if opts.FS == nil {
		opts.FS = out.FS
	}
	if opts.ResizeWait == 0 {
		opts.ResizeWait = out.ResizeWait
	}
	return &opts
}

// CompressedOptions returns options whose pipeline gzips values at level 9
// and encodes text keys as Latin-1.
func CompressedOptions(mode OpenMode) *Options {
	opts := DefaultOptions()
	opts.Mode = mode
	opts.Pipeline = MustCompressing(DefaultCompressionOptions())
	return opts
}

// ParseCodec returns the Codec named by s, e.g. "gzip" or "zstd".
func ParseCodec(s string) (Codec, error) {
	c, err := transform.ParseCodec(s)
	if err != nil {
		return 0, errors.WithMessage(ErrInvalidOptions, err.Error())
	}
	return c, nil
}

// DefaultCompressionOptions returns gzip at level 9 without checksums.
func DefaultCompressionOptions() CompressionOptions { return transform.DefaultOptions() }

// NewCompressing returns a compressing pipeline for the given codec options.
func NewCompressing(opts CompressionOptions) (Pipeline, error) {
	p, err := transform.NewCompressing(opts)
	if err != nil {
		return nil, errors.WithMessage(ErrInvalidOptions, err.Error())
	}
	return p, nil
}

// MustCompressing is like NewCompressing but panics on invalid options.
func MustCompressing(opts CompressionOptions) Pipeline {
	p, err := NewCompressing(opts)
	if err != nil {
		panic(err)
	}
	return p
}

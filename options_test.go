package lmdbm

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aalhour/lmdbm/internal/logging"
	"github.com/aalhour/lmdbm/internal/transform"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	var opts = DefaultOptions()
	require.Equal(t, ModeReadOnly, opts.Mode)
	require.Equal(t, int64(1<<20), opts.MapSize)
	require.Equal(t, 12, opts.MaxGrowAttempts)
	require.Equal(t, DefaultPerm, opts.Perm)
	require.Equal(t, 5*time.Second, opts.ResizeWait)
	require.Equal(t, "identity", opts.Pipeline.String())
	require.NoError(t, opts.Validate())
}

func TestOptionsWithDefaults(t *testing.T) {
	var opts = (&Options{Mode: ModeCreate, MapSize: 4096}).withDefaults()
	require.Equal(t, ModeCreate, opts.Mode)
	require.Equal(t, int64(4096), opts.MapSize)
	require.Equal(t, DefaultMaxGrowAttempts, opts.MaxGrowAttempts)
	require.NotNil(t, opts.Pipeline)
	require.NotNil(t, opts.Logger)
	require.NotNil(t, opts.FS)
	require.Equal(t, DefaultResizeWait, opts.ResizeWait)

	var nilOpts *Options
	require.Equal(t, ModeReadOnly, nilOpts.withDefaults().Mode)
}

func TestOptionsValidate(t *testing.T) {
	require.ErrorIs(t, (&Options{Mode: ModeRecreate + 1}).Validate(), ErrInvalidMode)
	require.ErrorIs(t, (&Options{MapSize: -1}).Validate(), ErrInvalidOptions)
	require.ErrorIs(t, (&Options{MaxGrowAttempts: -1}).Validate(), ErrInvalidOptions)
	require.ErrorIs(t, (&Options{ResizeWait: -time.Second}).Validate(), ErrInvalidOptions)
}

func TestNewCompressingInvalid(t *testing.T) {
	_, err := NewCompressing(CompressionOptions{Codec: CodecZstd, Level: 42})
	require.ErrorIs(t, err, ErrInvalidOptions)
	require.Panics(t, func() { MustCompressing(CompressionOptions{Level: 42}) })
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]OpenMode{
		"r": ModeReadOnly, "read-only": ModeReadOnly,
		"w": ModeReadWrite, "read-write": ModeReadWrite,
		"c": ModeCreate, "create": ModeCreate,
		"n": ModeRecreate, "recreate": ModeRecreate,
		" C ": ModeCreate,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseMode("rw")
	require.ErrorIs(t, err, ErrInvalidMode)

	for _, m := range []OpenMode{ModeReadOnly, ModeReadWrite, ModeCreate, ModeRecreate} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
	require.False(t, ModeReadOnly.Writable())
	require.True(t, ModeRecreate.Writable())
}

func TestParseOptionsFile(t *testing.T) {
	opts, err := ParseOptionsFile(strings.NewReader(`
mode: create
perm: "0700"
map_size: 64MiB
sub_database: sessions
max_grow_attempts: 5
no_sync: true
log_level: debug
compression:
  codec: zstd
  level: 3
  checksum: true
`))
	require.NoError(t, err)
	require.Equal(t, ModeCreate, opts.Mode)
	require.Equal(t, os.FileMode(0o700), opts.Perm)
	require.Equal(t, int64(64<<20), opts.MapSize)
	require.Equal(t, "sessions", opts.SubDatabase)
	require.Equal(t, 5, opts.MaxGrowAttempts)
	require.True(t, opts.NoSync)
	require.Equal(t, "zstd-3+xxh3", opts.Pipeline.String())
	require.Equal(t, logging.LevelDebug, opts.Logger.(*logging.DefaultLogger).Level())
}

func TestParseOptionsFileDefaults(t *testing.T) {
	opts, err := ParseOptionsFile(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, DefaultMapSize, opts.MapSize)
	require.Equal(t, "identity", opts.Pipeline.String())

	opts, err = ParseOptionsFile(strings.NewReader("compression: {}\n"))
	require.NoError(t, err)
	require.Equal(t, "gzip-9", opts.Pipeline.String())
}

func TestParseOptionsFileErrors(t *testing.T) {
	for _, doc := range []string{
		"mode: sideways\n",
		"perm: rwx\n",
		"map_size: lots\n",
		"log_level: loud\n",
		"compression:\n  codec: bzip2\n",
		"compression:\n  level: 11\n",
		"unknown_field: 1\n",
	} {
		_, err := ParseOptionsFile(strings.NewReader(doc))
		require.Error(t, err, doc)
	}
}

func TestOptionsFileRoundTrip(t *testing.T) {
	var fs = afero.NewMemMapFs()
	var f = &FileOptions{
		Mode:        "n",
		MapSize:     "2 MiB",
		Compression: &FileCompression{Codec: transform.LZ4.String(), Level: 1},
	}
	require.NoError(t, WriteOptionsFile(fs, "/etc/lmdbm.yaml", f))

	opts, err := LoadOptionsFile(fs, "/etc/lmdbm.yaml")
	require.NoError(t, err)
	require.Equal(t, ModeRecreate, opts.Mode)
	require.Equal(t, int64(2<<20), opts.MapSize)
	require.Equal(t, "lz4-1", opts.Pipeline.String())
	require.Same(t, fs, opts.FS)

	_, err = LoadOptionsFile(fs, "/missing.yaml")
	require.Error(t, err)
}

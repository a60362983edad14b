package lmdbm

// options_file.go implements YAML options files.
//
// Example:
//
//	mode: create
//	perm: "0755"
//	map_size: 64MiB
//	sub_database: sessions
//	max_grow_attempts: 12
//	log_level: info
//	compression:
//	  codec: zstd
//	  level: 3
//	  checksum: true

import (
	"bytes"
	"io"
	"os"
	"strconv"

	"github.com/aalhour/lmdbm/internal/logging"
	"github.com/aalhour/lmdbm/internal/transform"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

// FileOptions is the YAML form of Options. Zero fields keep their defaults.
type FileOptions struct {
	Mode            string           `yaml:"mode,omitempty"`
	Perm            string           `yaml:"perm,omitempty"`
	MapSize         string           `yaml:"map_size,omitempty"`
	SubDatabase     string           `yaml:"sub_database,omitempty"`
	MaxGrowAttempts int              `yaml:"max_grow_attempts,omitempty"`
	NoSync          bool             `yaml:"no_sync,omitempty"`
	LogLevel        string           `yaml:"log_level,omitempty"`
	Compression     *FileCompression `yaml:"compression,omitempty"`
}

// FileCompression selects a compressing pipeline.
type FileCompression struct {
	Codec    string `yaml:"codec,omitempty"`
	Level    int    `yaml:"level,omitempty"`
	Checksum bool   `yaml:"checksum,omitempty"`
}

// LoadOptionsFile reads and parses the options file at path.
func LoadOptionsFile(fs afero.Fs, path string) (*Options, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.WithMessagef(err, "lmdbm: read options file %s", path)
	}
	opts, err := ParseOptionsFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.WithMessagef(err, "lmdbm: options file %s", path)
	}
	opts.FS = fs
	return opts, nil
}

// ParseOptionsFile parses YAML options from r.
func ParseOptionsFile(r io.Reader) (*Options, error) {
	var f FileOptions
	var dec = yaml.NewDecoder(r)
	dec.SetStrict(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, errors.WithMessage(ErrInvalidOptions, err.Error())
	}
	return f.Options()
}

// WriteOptionsFile writes f as YAML to path.
func WriteOptionsFile(fs afero.Fs, path string, f *FileOptions) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return errors.WithMessage(err, "lmdbm: marshal options")
	}
	if err = afero.WriteFile(fs, path, data, 0o644); err != nil {
		return errors.WithMessagef(err, "lmdbm: write options file %s", path)
	}
	return nil
}

// Options converts f into validated Options.
func (f *FileOptions) Options() (*Options, error) {
	var opts = DefaultOptions()
	var err error

	if f.Mode != "" {
		if opts.Mode, err = ParseMode(f.Mode); err != nil {
			return nil, err
		}
	}
	if f.Perm != "" {
		perm, err := strconv.ParseUint(f.Perm, 8, 32)
		if err != nil {
			return nil, errors.WithMessagef(ErrInvalidOptions, "perm %q", f.Perm)
		}
		opts.Perm = os.FileMode(perm)
	}
	if f.MapSize != "" {
		size, err := humanize.ParseBytes(f.MapSize)
		if err != nil {
			return nil, errors.WithMessagef(ErrInvalidOptions, "map_size %q: %v", f.MapSize, err)
		}
		opts.MapSize = int64(size)
	}
	if f.MaxGrowAttempts != 0 {
		opts.MaxGrowAttempts = f.MaxGrowAttempts
	}
	opts.SubDatabase = f.SubDatabase
	opts.NoSync = f.NoSync

	if f.LogLevel != "" {
		level, err := logging.ParseLevel(f.LogLevel)
		if err != nil {
			return nil, errors.WithMessagef(ErrInvalidOptions, "log_level %q", f.LogLevel)
		}
		opts.Logger = logging.NewDefaultLogger(level)
	}
	if c := f.Compression; c != nil {
		var copts = transform.Options{Level: c.Level, Checksum: c.Checksum}
		if c.Codec != "" {
			if copts.Codec, err = transform.ParseCodec(c.Codec); err != nil {
				return nil, errors.WithMessage(ErrInvalidOptions, err.Error())
			}
		}
		if opts.Pipeline, err = NewCompressing(copts); err != nil {
			return nil, err
		}
	}
	if err = opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}
